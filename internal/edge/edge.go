// Package edge defines the citation link between two papers.
package edge

import "errors"

// Citation is a directed link from a citing paper to a cited paper.
// Citations are not deduplicated: the same pair may occur many times and
// a paper may cite itself.
type Citation struct {
	CitingID string `json:"source_id"`
	CitedID  string `json:"target_id"`
}

// Validation errors.
var (
	ErrEmptyCitingID = errors.New("citing paper id is required")
	ErrEmptyCitedID  = errors.New("cited paper id is required")
)

// Validate checks that both endpoints are named.
func (c Citation) Validate() error {
	if c.CitingID == "" {
		return ErrEmptyCitingID
	}
	if c.CitedID == "" {
		return ErrEmptyCitedID
	}
	return nil
}

// IsSelfCitation reports whether the paper cites itself.
func (c Citation) IsSelfCitation() bool {
	return c.CitingID == c.CitedID
}

// Multiplicity counts how often each ordered pair occurs.
// Only pairs that appear more than once are returned.
func Multiplicity(citations []Citation) map[Citation]int {
	counts := make(map[Citation]int, len(citations))
	for _, c := range citations {
		counts[c]++
	}

	duplicates := make(map[Citation]int)
	for key, count := range counts {
		if count > 1 {
			duplicates[key] = count
		}
	}
	return duplicates
}
