package graph

import (
	"github.com/matsen/citegraph/internal/edge"
	"github.com/matsen/citegraph/internal/paper"
)

// Snapshot is a read-only view of a frozen graph. Slices returned by its
// accessors must not be modified.
type Snapshot struct {
	nodes     []paper.Paper
	index     map[string]Handle
	arcs      []Arc
	outDegree []int
}

// Len returns the number of papers.
func (s *Snapshot) Len() int { return len(s.nodes) }

// EdgeCount returns the number of arcs, counting parallel arcs separately.
func (s *Snapshot) EdgeCount() int { return len(s.arcs) }

// Nodes returns all papers in handle order.
func (s *Snapshot) Nodes() []paper.Paper { return s.nodes }

// Node returns the paper at h.
func (s *Snapshot) Node(h Handle) paper.Paper { return s.nodes[h] }

// Arcs returns all arcs in insertion order.
func (s *Snapshot) Arcs() []Arc { return s.arcs }

// Index returns the handle for an ID.
func (s *Snapshot) Index(id string) (Handle, bool) {
	h, ok := s.index[id]
	return h, ok
}

// OutDegree returns the number of arcs leaving h.
func (s *Snapshot) OutDegree(h Handle) int { return s.outDegree[h] }

// Citations returns every arc as an ID pair, duplicates included.
func (s *Snapshot) Citations() []edge.Citation {
	out := make([]edge.Citation, len(s.arcs))
	for i, a := range s.arcs {
		out[i] = edge.Citation{CitingID: s.nodes[a.From].ID, CitedID: s.nodes[a.To].ID}
	}
	return out
}

// DuplicateArcs reports ID pairs that occur more than once.
func (s *Snapshot) DuplicateArcs() map[edge.Citation]int {
	return edge.Multiplicity(s.Citations())
}

// Stats returns node and edge counts.
func (s *Snapshot) Stats() Stats {
	st := Stats{Nodes: len(s.nodes), Edges: len(s.arcs)}
	for _, p := range s.nodes {
		if p.Placeholder {
			st.Placeholders++
		}
	}
	st.Authoritative = st.Nodes - st.Placeholders
	return st
}
