// Package s2 handles Semantic Scholar paper identifiers and fetches
// reference lists from the Semantic Scholar Graph API.
package s2

import (
	"regexp"
	"strings"
)

// Common identifier prefixes supported by Semantic Scholar.
var identifierPrefixes = []string{
	"DOI:",
	"ARXIV:",
	"PMID:",
	"PMCID:",
	"CorpusId:",
	"URL:",
	"MAG:",
	"ACL:",
}

// s2IDPattern matches a 40-character hex string (raw S2 paper ID).
var s2IDPattern = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// PaperPageURL is the Semantic Scholar landing page prefix for raw paper IDs.
const PaperPageURL = "https://www.semanticscholar.org/paper/"

// PaperIdentifier represents a parsed paper identifier.
type PaperIdentifier struct {
	Type  string // DOI, ARXIV, PMID, PMCID, CorpusId, URL, MAG, ACL, S2, or LOCAL
	Value string
}

// String returns the S2 API format for the identifier.
func (p PaperIdentifier) String() string {
	switch p.Type {
	case "S2", "LOCAL":
		return p.Value
	default:
		return p.Type + ":" + p.Value
	}
}

// ParsePaperID parses a paper identifier string into a PaperIdentifier.
// Supports formats:
//   - DOI:10.1038/nature12373
//   - ARXIV:2106.15928
//   - PMID:19872477
//   - CorpusId:215416146
//   - URL:https://arxiv.org/abs/2106.15928
//   - Raw 40-character S2 paper ID
//
// Anything else is returned with Type "LOCAL".
func ParsePaperID(id string) PaperIdentifier {
	id = strings.TrimSpace(id)

	for _, prefix := range identifierPrefixes {
		if strings.HasPrefix(strings.ToUpper(id), strings.ToUpper(prefix)) {
			return PaperIdentifier{
				Type:  strings.TrimSuffix(prefix, ":"),
				Value: id[len(prefix):],
			}
		}
	}

	if s2IDPattern.MatchString(id) {
		return PaperIdentifier{Type: "S2", Value: id}
	}

	return PaperIdentifier{Type: "LOCAL", Value: id}
}

// NormalizeDOI normalizes a DOI to a consistent format for comparison.
// It removes common URL prefixes (https://doi.org/, DOI:) and converts to lowercase.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi.org/")
	doi = strings.TrimPrefix(doi, "DOI:")
	return strings.ToLower(doi)
}

// PaperURL derives a canonical URL for a paper from its identifier alone.
// DOIs and arXiv IDs resolve to their own resolvers; everything else is
// treated as a Semantic Scholar paper ID.
func PaperURL(id string) string {
	pid := ParsePaperID(id)
	switch pid.Type {
	case "DOI":
		return "https://doi.org/" + NormalizeDOI(pid.Value)
	case "ARXIV":
		return "https://arxiv.org/abs/" + pid.Value
	case "URL":
		return pid.Value
	default:
		return PaperPageURL + strings.TrimSpace(id)
	}
}
