// Package export writes a ranked citation graph to interchange formats.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/matsen/citegraph/internal/graph"
)

var dotEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", "",
)

func escapeDOT(s string) string {
	return dotEscaper.Replace(s)
}

// WriteDOT writes s as a Graphviz digraph. Nodes are named by handle and
// carry their metadata as attributes. When scores is non-nil each node
// also gets a pageRank attribute; scores is indexed by handle.
func WriteDOT(w io.Writer, s *graph.Snapshot, scores []float64) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph G {")
	for h, p := range s.Nodes() {
		fmt.Fprintf(bw, `  %d [label="%s", year="%d", citationCount="%d", url="%s", id="%s", abstract="%s"`,
			h, escapeDOT(p.Label()), p.Year, p.CitationCount,
			escapeDOT(p.URL), escapeDOT(p.ID), escapeDOT(p.Abstract))
		if p.Placeholder {
			bw.WriteString(`, placeholder="true"`)
		}
		if scores != nil && h < len(scores) {
			fmt.Fprintf(bw, `, pageRank="%s"`, strconv.FormatFloat(scores[h], 'g', -1, 64))
		}
		bw.WriteString("];\n")
	}
	for _, a := range s.Arcs() {
		fmt.Fprintf(bw, "  %d -> %d;\n", a.From, a.To)
	}
	fmt.Fprintln(bw, "}")

	return bw.Flush()
}
