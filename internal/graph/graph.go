// Package graph reconciles paper metadata and citation events into one
// directed multigraph keyed by paper ID.
//
// Papers live in an append-only arena addressed by dense Handles; a
// separate map resolves external IDs to handles. Once assigned, a handle
// is never reused or renumbered.
package graph

import (
	"errors"
	"sync"

	"github.com/matsen/citegraph/internal/edge"
	"github.com/matsen/citegraph/internal/paper"
	"github.com/matsen/citegraph/internal/s2"
)

// Handle is the dense internal index of a paper.
type Handle int

// Arc is one directed citation between two handles.
type Arc struct {
	From Handle // citing
	To   Handle // cited
}

// Errors returned by graph mutations.
var (
	ErrEmptyID = errors.New("paper id is required")
	ErrFrozen  = errors.New("graph is frozen")
)

// Insertion reports what AddCitation changed.
type Insertion struct {
	Arc           Arc
	CitingCreated bool
	CitedCreated  bool
}

// Stats is a point-in-time count of graph contents.
type Stats struct {
	Nodes         int `json:"nodes"`
	Authoritative int `json:"authoritative"`
	Placeholders  int `json:"placeholders"`
	Edges         int `json:"edges"`
}

// Graph is the mutable citation graph used during ingestion. All mutating
// methods are safe for concurrent use; each runs its whole
// resolve-or-create-then-append sequence under one lock.
type Graph struct {
	mu           sync.Mutex
	nodes        []paper.Paper
	index        map[string]Handle
	arcs         []Arc
	outDegree    []int
	placeholders int
	frozen       bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{index: make(map[string]Handle)}
}

// PlaceholderFor builds the default record for an ID referenced by an edge
// without metadata.
func PlaceholderFor(id string) paper.Paper {
	return paper.Paper{
		ID:          id,
		Title:       paper.UnknownTitle,
		URL:         s2.PaperURL(id),
		Placeholder: true,
	}
}

// UpsertNode creates the paper if its ID is unknown and returns its handle.
// A nil meta creates a placeholder with default fields. For a known ID the
// call leaves stored metadata untouched and created is false.
func (g *Graph) UpsertNode(id string, meta *paper.Paper) (h Handle, created bool, err error) {
	if id == "" {
		return 0, false, ErrEmptyID
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return 0, false, ErrFrozen
	}

	if meta == nil {
		h, created = g.resolveLocked(PlaceholderFor(id))
		return h, created, nil
	}
	p := meta.Normalize()
	p.ID = id
	p.Placeholder = false
	if p.URL == "" {
		p.URL = s2.PaperURL(id)
	}
	h, created = g.resolveLocked(p)
	return h, created, nil
}

// AddEdge records citingID -> citedID, creating placeholder papers for
// either side that is not yet known. Edges are appended unconditionally,
// so repeating a pair yields parallel arcs.
func (g *Graph) AddEdge(citingID, citedID string) (Arc, error) {
	if err := (edge.Citation{CitingID: citingID, CitedID: citedID}).Validate(); err != nil {
		return Arc{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return Arc{}, ErrFrozen
	}

	from, _ := g.resolveLocked(PlaceholderFor(citingID))
	to, _ := g.resolveLocked(PlaceholderFor(citedID))
	return g.appendLocked(from, to), nil
}

// AddCitation records one citation event. The cited side is created from
// the event's descriptor when unknown; the citing side, when unknown, gets
// a placeholder titled with its own ID.
func (g *Graph) AddCitation(citingID string, cited paper.Paper) (Insertion, error) {
	if err := (edge.Citation{CitingID: citingID, CitedID: cited.ID}).Validate(); err != nil {
		return Insertion{}, err
	}

	citedRec := cited.Normalize()
	citedRec.Placeholder = true
	if citedRec.URL == "" {
		citedRec.URL = s2.PaperURL(cited.ID)
	}

	citingRec := PlaceholderFor(citingID)
	citingRec.Title = citingID

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return Insertion{}, ErrFrozen
	}

	var ins Insertion
	var to, from Handle
	to, ins.CitedCreated = g.resolveLocked(citedRec)
	from, ins.CitingCreated = g.resolveLocked(citingRec)
	ins.Arc = g.appendLocked(from, to)
	return ins, nil
}

// resolveLocked returns the handle for p.ID, appending p if the ID is new.
func (g *Graph) resolveLocked(p paper.Paper) (Handle, bool) {
	if h, ok := g.index[p.ID]; ok {
		return h, false
	}
	h := Handle(len(g.nodes))
	g.nodes = append(g.nodes, p)
	g.outDegree = append(g.outDegree, 0)
	g.index[p.ID] = h
	if p.Placeholder {
		g.placeholders++
	}
	return h, true
}

func (g *Graph) appendLocked(from, to Handle) Arc {
	a := Arc{From: from, To: to}
	g.arcs = append(g.arcs, a)
	g.outDegree[from]++
	return a
}

// Lookup returns the handle for an ID.
func (g *Graph) Lookup(id string) (Handle, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.index[id]
	return h, ok
}

// Node returns a copy of the paper stored at h.
func (g *Graph) Node(h Handle) (paper.Paper, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h < 0 || int(h) >= len(g.nodes) {
		return paper.Paper{}, false
	}
	return g.nodes[h], true
}

// Len returns the number of papers.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// EdgeCount returns the number of arcs, counting parallel arcs separately.
func (g *Graph) EdgeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.arcs)
}

// Stats returns node and edge counts.
func (g *Graph) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		Nodes:         len(g.nodes),
		Authoritative: len(g.nodes) - g.placeholders,
		Placeholders:  g.placeholders,
		Edges:         len(g.arcs),
	}
}

// Freeze ends ingestion. Later mutations fail with ErrFrozen. The returned
// snapshot shares storage with the graph, which is safe because nothing
// can write to it any more.
func (g *Graph) Freeze() *Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frozen = true
	return &Snapshot{
		nodes:     g.nodes,
		index:     g.index,
		arcs:      g.arcs,
		outDegree: g.outDegree,
	}
}
