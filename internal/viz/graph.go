package viz

import (
	"fmt"
	"sort"

	"github.com/matsen/citegraph/internal/graph"
	"github.com/matsen/citegraph/internal/paper"
	"github.com/matsen/citegraph/internal/storage"
)

// DefaultMaxNodes bounds how many papers a page shows.
const DefaultMaxNodes = 200

// maxLabelRunes truncates long titles on the canvas; tooltips show the full title.
const maxLabelRunes = 40

// BuildGraph selects the maxNodes highest-scoring papers of s and the
// citations among them. scores is indexed by handle.
func BuildGraph(s *graph.Snapshot, scores []float64, maxNodes int) *GraphData {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	handles := make([]graph.Handle, s.Len())
	for i := range handles {
		handles[i] = graph.Handle(i)
	}
	score := func(h graph.Handle) float64 {
		if int(h) < len(scores) {
			return scores[h]
		}
		return 0
	}
	sort.SliceStable(handles, func(i, j int) bool {
		return score(handles[i]) > score(handles[j])
	})
	if len(handles) > maxNodes {
		handles = handles[:maxNodes]
	}

	selected := make(map[graph.Handle]bool, len(handles))
	data := &GraphData{Nodes: make([]Node, 0, len(handles))}
	for _, h := range handles {
		selected[h] = true
		data.Nodes = append(data.Nodes, newPaperNode(s.Node(h), score(h)))
	}

	counts := make(map[graph.Arc]int)
	var order []graph.Arc
	for _, a := range s.Arcs() {
		if !selected[a.From] || !selected[a.To] {
			continue
		}
		if counts[a] == 0 {
			order = append(order, a)
		}
		counts[a]++
	}
	for _, a := range order {
		data.Edges = append(data.Edges, Edge{
			Source: s.Node(a.From).ID,
			Target: s.Node(a.To).ID,
			Count:  counts[a],
		})
	}
	return data
}

// BuildGraphFromDatabase builds the same view from a stored graph.
func BuildGraphFromDatabase(db *storage.DB, maxNodes int) (*GraphData, error) {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}

	top, err := db.TopRanked(maxNodes)
	if err != nil {
		return nil, err
	}

	data := &GraphData{Nodes: make([]Node, 0, len(top))}
	selected := make(map[string]bool, len(top))
	for _, n := range top {
		selected[n.ID] = true
		data.Nodes = append(data.Nodes, newPaperNode(n.Paper, n.Rank))
	}

	for _, n := range top {
		out, err := db.GetEdgesBySource(n.ID)
		if err != nil {
			return nil, fmt.Errorf("retrieving citations of %s: %w", n.ID, err)
		}
		// Rows arrive sorted by target, so parallel citations are adjacent.
		for _, c := range out {
			if !selected[c.CitedID] {
				continue
			}
			last := len(data.Edges) - 1
			if last >= 0 && data.Edges[last].Source == c.CitingID && data.Edges[last].Target == c.CitedID {
				data.Edges[last].Count++
				continue
			}
			data.Edges = append(data.Edges, Edge{Source: c.CitingID, Target: c.CitedID, Count: 1})
		}
	}
	return data, nil
}

// newPaperNode creates a visualization node from a paper and its rank.
func newPaperNode(p paper.Paper, rank float64) Node {
	nodeType := NodeTypePaper
	if p.Placeholder {
		nodeType = NodeTypePlaceholder
	}
	return Node{
		ID:            p.ID,
		Type:          nodeType,
		Label:         truncate(p.Label(), maxLabelRunes),
		Title:         p.Title,
		Year:          p.Year,
		CitationCount: p.CitationCount,
		URL:           p.URL,
		Rank:          rank,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
