package rank

import (
	"sort"

	"github.com/matsen/citegraph/internal/graph"
)

// Ranked is one paper with its score.
type Ranked struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Year          int     `json:"year"`
	CitationCount int     `json:"citation_count"`
	Rank          float64 `json:"rank"`
}

// Top returns the n highest-scoring papers, ties broken by handle order.
// n <= 0 returns every paper.
func (r *Result) Top(s *graph.Snapshot, n int) []Ranked {
	order := make([]int, len(r.Scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return r.Scores[order[a]] > r.Scores[order[b]]
	})

	if n <= 0 || n > len(order) {
		n = len(order)
	}
	out := make([]Ranked, 0, n)
	for _, h := range order[:n] {
		p := s.Node(graph.Handle(h))
		out = append(out, Ranked{
			ID:            p.ID,
			Title:         p.Title,
			Year:          p.Year,
			CitationCount: p.CitationCount,
			Rank:          r.Scores[h],
		})
	}
	return out
}
