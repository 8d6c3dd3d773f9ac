package viz

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matsen/citegraph/internal/graph"
	"github.com/matsen/citegraph/internal/paper"
	"github.com/matsen/citegraph/internal/rank"
	"github.com/matsen/citegraph/internal/storage"
)

// buildSnapshot returns A<-B (twice), A<-C, C<-D with D a placeholder.
func buildSnapshot(t *testing.T) *graph.Snapshot {
	t.Helper()
	g := graph.New()
	for _, id := range []string{"A", "B", "C"} {
		p := paper.Paper{ID: id, Title: "Paper " + id, Year: 2000, CitationCount: 1}
		if _, _, err := g.UpsertNode(id, &p); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range [][2]string{{"B", "A"}, {"B", "A"}, {"C", "A"}, {"D", "C"}} {
		if _, err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}
	return g.Freeze()
}

func TestBuildGraph_SelectsTopAndCollapsesEdges(t *testing.T) {
	s := buildSnapshot(t)
	// handles: A=0 B=1 C=2 D=3
	scores := []float64{1.0, 0.2, 0.6, 0.1}

	data := BuildGraph(s, scores, 3)

	if len(data.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(data.Nodes))
	}
	wantOrder := []string{"A", "C", "B"}
	for i, id := range wantOrder {
		if data.Nodes[i].ID != id {
			t.Errorf("node %d = %s, want %s", i, data.Nodes[i].ID, id)
		}
	}
	if data.Nodes[0].Rank != 1.0 || data.Nodes[0].Type != NodeTypePaper {
		t.Errorf("A = %+v", data.Nodes[0])
	}

	// D is not selected, so D->C is dropped; B->A collapses to one edge.
	if len(data.Edges) != 2 {
		t.Fatalf("edges = %+v", data.Edges)
	}
	if data.Edges[0] != (Edge{Source: "B", Target: "A", Count: 2}) {
		t.Errorf("edge 0 = %+v", data.Edges[0])
	}
	if data.Edges[1] != (Edge{Source: "C", Target: "A", Count: 1}) {
		t.Errorf("edge 1 = %+v", data.Edges[1])
	}
}

func TestBuildGraph_PlaceholderType(t *testing.T) {
	s := buildSnapshot(t)
	data := BuildGraph(s, nil, 0)
	if len(data.Nodes) != 4 {
		t.Fatalf("got %d nodes", len(data.Nodes))
	}
	for _, n := range data.Nodes {
		want := NodeTypePaper
		if n.ID == "D" {
			want = NodeTypePlaceholder
		}
		if n.Type != want {
			t.Errorf("%s type = %s, want %s", n.ID, n.Type, want)
		}
	}
}

func TestBuildGraphFromDatabase(t *testing.T) {
	s := buildSnapshot(t)
	res := &rank.Result{Scores: []float64{1.0, 0.2, 0.6, 0.1}}

	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "g.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.StoreGraph(context.Background(), s, res); err != nil {
		t.Fatal(err)
	}

	data, err := BuildGraphFromDatabase(db, 3)
	if err != nil {
		t.Fatalf("BuildGraphFromDatabase: %v", err)
	}
	if len(data.Nodes) != 3 || data.Nodes[0].ID != "A" {
		t.Fatalf("nodes = %+v", data.Nodes)
	}
	got := map[Edge]bool{}
	for _, e := range data.Edges {
		got[e] = true
	}
	if len(got) != 2 || !got[Edge{Source: "B", Target: "A", Count: 2}] || !got[Edge{Source: "C", Target: "A", Count: 1}] {
		t.Errorf("edges = %+v", data.Edges)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Errorf("got %q", got)
	}
}

func TestToCytoscapeJSON(t *testing.T) {
	data := &GraphData{
		Nodes: []Node{{ID: "A", Type: NodeTypePaper, Label: "A", Rank: 1}, {ID: "B", Type: NodeTypePaper, Label: "B"}},
		Edges: []Edge{{Source: "B", Target: "A", Count: 2}},
	}
	out, err := data.ToCytoscapeJSON()
	if err != nil {
		t.Fatal(err)
	}

	var elements CytoscapeElements
	if err := json.Unmarshal([]byte(out), &elements); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(elements.Nodes) != 2 || len(elements.Edges) != 1 {
		t.Fatalf("elements = %+v", elements)
	}
	if elements.Edges[0].Data.ID != "B-A-0" || elements.Edges[0].Data.Count != 2 {
		t.Errorf("edge = %+v", elements.Edges[0].Data)
	}
}

func TestGenerateHTML(t *testing.T) {
	data := &GraphData{Nodes: []Node{{ID: "A", Type: NodeTypePaper, Label: "<b>A</b>", Rank: 1}}}

	html, err := GenerateHTML(data, HTMLOptions{Layout: "concentric", Title: "My graph"})
	if err != nil {
		t.Fatalf("GenerateHTML: %v", err)
	}
	if !strings.Contains(html, "<title>My graph</title>") {
		t.Error("missing title")
	}
	if !strings.Contains(html, `const layout = "concentric"`) {
		t.Error("missing layout")
	}
	if strings.Contains(html, "<b>A</b>") {
		t.Error("label not escaped in embedded JSON")
	}
	if !strings.Contains(html, "cytoscape.min.js") {
		t.Error("missing cytoscape script")
	}
}

func TestGenerateHTML_Errors(t *testing.T) {
	if _, err := GenerateHTML(nil, DefaultOptions()); err == nil {
		t.Error("expected error for nil graph")
	}
	if _, err := GenerateHTML(&GraphData{Nodes: []Node{{ID: "A"}}}, HTMLOptions{Layout: "spiral"}); err == nil {
		t.Error("expected error for unknown layout")
	}
	html, err := GenerateHTML(&GraphData{}, DefaultOptions())
	if err != nil || !strings.Contains(html, "No graph data") {
		t.Errorf("empty graph: %v", err)
	}
}

func TestGenerateHTML_RankedSidebar(t *testing.T) {
	data := &GraphData{Nodes: []Node{
		{ID: "low", Type: NodeTypePaper, Label: "Low", Rank: 0.1},
		{ID: "top", Type: NodeTypePaper, Label: "Top", Rank: 1},
		{ID: "stub", Type: NodeTypePlaceholder, Label: "stub", Rank: 0.5},
	}}

	html, err := GenerateHTML(data, DefaultOptions())
	if err != nil {
		t.Fatalf("GenerateHTML: %v", err)
	}
	top := strings.Index(html, `data-id="top"`)
	stub := strings.Index(html, `data-id="stub"`)
	low := strings.Index(html, `data-id="low"`)
	if top < 0 || stub < 0 || low < 0 {
		t.Fatal("sidebar entries missing")
	}
	if !(top < stub && stub < low) {
		t.Errorf("sidebar not in rank order: top=%d stub=%d low=%d", top, stub, low)
	}
	if !strings.Contains(html, `data-id="stub" class="stub"`) {
		t.Error("placeholder not marked in sidebar")
	}
	if !strings.Contains(html, "3 papers, 0 citation links") {
		t.Error("missing counts")
	}
}

func TestRankedNodes_Limit(t *testing.T) {
	var nodes []Node
	for i := 0; i < 40; i++ {
		nodes = append(nodes, Node{ID: fmt.Sprintf("P%d", i), Rank: float64(i)})
	}
	got := rankedNodes(nodes, SidebarSize)
	if len(got) != SidebarSize {
		t.Fatalf("len = %d, want %d", len(got), SidebarSize)
	}
	if got[0].ID != "P39" {
		t.Errorf("first = %s, want P39", got[0].ID)
	}
	if nodes[0].ID != "P0" {
		t.Error("input slice reordered")
	}
}
