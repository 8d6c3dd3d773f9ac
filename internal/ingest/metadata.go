package ingest

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/matsen/citegraph/internal/paper"
)

// MetadataFields is the number of columns a metadata record must carry:
// id, url, title, year, citationCount, abstract.
const MetadataFields = 6

// ParseMetadataRecord converts one CSV record into an authoritative paper.
func ParseMetadataRecord(fields []string) (paper.Paper, error) {
	if len(fields) < MetadataFields {
		return paper.Paper{}, malformed("expected %d fields, got %d", MetadataFields, len(fields))
	}

	id := strings.TrimSpace(fields[0])
	if id == "" {
		return paper.Paper{}, malformed("empty paper id")
	}

	year, err := parseInt(fields[3])
	if err != nil {
		return paper.Paper{}, conversion("year %q: %v", fields[3], err)
	}
	citations, err := parseInt(fields[4])
	if err != nil {
		return paper.Paper{}, conversion("citationCount %q: %v", fields[4], err)
	}

	p := paper.Paper{
		ID:            id,
		URL:           strings.TrimSpace(fields[1]),
		Title:         fields[2],
		Year:          year,
		CitationCount: citations,
		Abstract:      fields[5],
	}
	return p.Normalize(), nil
}

var (
	errNotInteger = errors.New("not an integer")
	errOutOfRange = errors.New("out of 32-bit range")
)

// parseInt accepts plain integers and integral floats such as "12.0",
// which dataframe exports produce for columns that once held nulls. Both
// forms must fit in 32 bits.
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return boundInt32(float64(n))
	} else if errors.Is(err, strconv.ErrRange) {
		return 0, errOutOfRange
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errNotInteger
	}
	if f != math.Trunc(f) {
		return 0, errNotInteger
	}
	return boundInt32(f)
}

func boundInt32(f float64) (int, error) {
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, errOutOfRange
	}
	return int(f), nil
}
