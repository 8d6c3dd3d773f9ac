// Package viz renders the highest-ranked part of a citation graph as an
// interactive Cytoscape.js page.
package viz

// Node types.
const (
	NodeTypePaper       = "paper"
	NodeTypePlaceholder = "placeholder"
)

// GraphData contains all data needed to render the visualization.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node represents a paper in the graph.
type Node struct {
	ID   string `json:"id"`
	Type string `json:"type"` // "paper" or "placeholder"

	// Display
	Label string `json:"label"`

	// Tooltip fields
	Title         string `json:"title,omitempty"`
	Year          int    `json:"year,omitempty"`
	CitationCount int    `json:"citationCount"`
	URL           string `json:"url,omitempty"`

	// Sizing
	Rank float64 `json:"rank"`
}

// Edge is a citation between two displayed papers. Parallel citations are
// collapsed into one edge with a count.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// IsEmpty returns true if the graph has no nodes.
func (g *GraphData) IsEmpty() bool {
	return len(g.Nodes) == 0
}
