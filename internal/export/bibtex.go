package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/matsen/citegraph/internal/paper"
	"github.com/matsen/citegraph/internal/s2"
)

var citeKeyUnsafe = regexp.MustCompile(`[^A-Za-z0-9:_\-.]`)

// ToBibTeX converts a paper to a BibTeX entry. Papers carry no venue or
// author data, so every entry is @misc.
func ToBibTeX(p paper.Paper) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@misc{%s,\n", citeKey(p.ID)))
	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(p.Label())))

	if p.Year > 0 {
		b.WriteString(fmt.Sprintf("  year = {%d},\n", p.Year))
	}

	if id := s2.ParsePaperID(p.ID); id.Type == "DOI" {
		b.WriteString(fmt.Sprintf("  doi = {%s},\n", s2.NormalizeDOI(id.Value)))
	}

	if p.URL != "" {
		b.WriteString(fmt.Sprintf("  url = {%s},\n", p.URL))
	}

	if p.Abstract != "" {
		b.WriteString(fmt.Sprintf("  abstract = {%s},\n", escapeLatex(p.Abstract)))
	}

	b.WriteString("}\n")

	return b.String()
}

// ToBibTeXList converts multiple papers to BibTeX format.
func ToBibTeXList(papers []paper.Paper) string {
	var entries []string
	for _, p := range papers {
		entries = append(entries, ToBibTeX(p))
	}
	return strings.Join(entries, "\n")
}

func citeKey(id string) string {
	return citeKeyUnsafe.ReplaceAllString(id, "_")
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	// Order matters: & must be first (before other escapes that might produce &)
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
