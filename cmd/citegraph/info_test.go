package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/matsen/citegraph/internal/graph"
	"github.com/matsen/citegraph/internal/rank"
	"github.com/matsen/citegraph/internal/storage"
)

func TestCollectInfo(t *testing.T) {
	g := graph.New()
	for _, e := range [][2]string{{"A", "B"}, {"A", "B"}, {"A", "B"}, {"C", "C"}, {"C", "B"}} {
		if _, err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}
	s := g.Freeze()
	res, err := rank.NewEngine(rank.DefaultOptions(), zerolog.Nop()).Rank(s)
	if err != nil {
		t.Fatal(err)
	}

	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "info.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.StoreGraph(context.Background(), s, res); err != nil {
		t.Fatal(err)
	}

	info, err := collectInfo(db, 5)
	if err != nil {
		t.Fatalf("collectInfo: %v", err)
	}
	if info.Nodes != 3 || info.Edges != 5 {
		t.Errorf("counts = %d nodes, %d edges, want 3 and 5", info.Nodes, info.Edges)
	}
	if info.Run.RunID != res.RunID.String() {
		t.Errorf("run id = %q, want %q", info.Run.RunID, res.RunID)
	}
	if info.Run.SelfCitations != 1 {
		t.Errorf("self citations = %d, want 1", info.Run.SelfCitations)
	}
	if len(info.RepeatedPairs) != 1 || info.RepeatedPairs[0].CitingID != "A" || info.RepeatedPairs[0].Count != 3 {
		t.Errorf("repeated pairs = %+v", info.RepeatedPairs)
	}
}
