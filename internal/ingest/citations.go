package ingest

import (
	"bytes"
	"encoding/json"

	"github.com/matsen/citegraph/internal/paper"
)

var jsonNull = []byte("null")

// CitationEvent is one parsed line of the citation-event stream.
type CitationEvent struct {
	CitingID string
	Cited    paper.Paper
}

// ParseCitationEvent decodes one JSON line of the form
//
//	{"citingPaperId": "...", "citedPaper": {"paperId": ..., "title": ..., "year": ..., "citationCount": ..., "abstract": ...}}
//
// Every citedPaper field is optional; a missing or wrongly typed field
// takes its default.
func ParseCitationEvent(line []byte) (CitationEvent, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(line, &top); err != nil {
		return CitationEvent{}, malformed("invalid JSON object: %v", err)
	}
	if top == nil {
		return CitationEvent{}, malformed("not a JSON object")
	}

	citingID, ok := stringValue(top["citingPaperId"])
	if !ok || citingID == "" {
		return CitationEvent{}, malformed("missing citingPaperId")
	}

	var cited map[string]json.RawMessage
	raw, present := top["citedPaper"]
	if !present || json.Unmarshal(raw, &cited) != nil || cited == nil {
		return CitationEvent{}, malformed("missing citedPaper object")
	}

	return CitationEvent{
		CitingID: citingID,
		Cited: paper.Paper{
			ID:            stringOr(cited["paperId"], paper.UnknownID),
			Title:         stringOr(cited["title"], paper.UnknownTitle),
			Year:          intOr(cited["year"], 0),
			CitationCount: intOr(cited["citationCount"], 0),
			Abstract:      stringOr(cited["abstract"], ""),
		},
	}, nil
}

func stringValue(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func stringOr(raw json.RawMessage, def string) string {
	s, ok := stringValue(raw)
	if !ok || s == "" {
		return def
	}
	return s
}

func intOr(raw json.RawMessage, def int) int {
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return def
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return def
	}
	return n
}
