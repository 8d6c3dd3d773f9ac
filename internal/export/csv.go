package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/matsen/citegraph/internal/graph"
)

// NodeHeader is the column layout of WriteNodesCSV.
var NodeHeader = []string{"id", "label", "year", "citationCount", "url", "pageRank", "abstract"}

// EdgeHeader is the column layout of WriteEdgesCSV.
var EdgeHeader = []string{"source_id", "target_id"}

// WriteNodesCSV writes one row per node. scores is indexed by handle; a
// nil slice writes 0 for every rank.
func WriteNodesCSV(w io.Writer, s *graph.Snapshot, scores []float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(NodeHeader); err != nil {
		return err
	}

	row := make([]string, len(NodeHeader))
	for h, p := range s.Nodes() {
		score := 0.0
		if h < len(scores) {
			score = scores[h]
		}
		row[0] = p.ID
		row[1] = p.Label()
		row[2] = strconv.Itoa(p.Year)
		row[3] = strconv.Itoa(p.CitationCount)
		row[4] = p.URL
		row[5] = strconv.FormatFloat(score, 'g', -1, 64)
		row[6] = p.Abstract
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteEdgesCSV writes one row per recorded citation, parallel citations
// included.
func WriteEdgesCSV(w io.Writer, s *graph.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EdgeHeader); err != nil {
		return err
	}
	for _, c := range s.Citations() {
		if err := cw.Write([]string{c.CitingID, c.CitedID}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
