// Package paper defines the node record of the citation graph.
package paper

import "strings"

// Defaults applied to fields a citation event leaves out.
const (
	UnknownID    = "unknown"
	UnknownTitle = "unknown"
)

// Paper is a single node of the citation graph.
type Paper struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Year          int    `json:"year"`
	CitationCount int    `json:"citation_count"`
	Abstract      string `json:"abstract"`

	// Placeholder is true when the paper was synthesized because an edge
	// referenced it before (or without) a metadata record.
	Placeholder bool `json:"placeholder,omitempty"`
}

// NormalizeText collapses line breaks to single spaces so the value fits
// on one line of any tabular or graph output.
func NormalizeText(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

// Normalize returns a copy with text fields cleaned and negative counts
// clamped to zero.
func (p Paper) Normalize() Paper {
	p.Abstract = NormalizeText(p.Abstract)
	p.Title = NormalizeText(p.Title)
	if p.CitationCount < 0 {
		p.CitationCount = 0
	}
	return p
}

// Label is the display name used by graph renderers.
func (p Paper) Label() string {
	if p.Title != "" {
		return p.Title
	}
	return p.ID
}
