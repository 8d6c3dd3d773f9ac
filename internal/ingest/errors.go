// Package ingest reads paper metadata and citation events into a graph.
// Bad input records are skipped and counted; they never stop ingestion.
package ingest

import (
	"errors"
	"fmt"
)

// Record failure kinds.
var (
	// ErrMalformed marks a record with missing fields or broken structure.
	ErrMalformed = errors.New("malformed record")

	// ErrConversion marks a record whose numeric field does not parse.
	ErrConversion = errors.New("type conversion failed")
)

// Kind names used in logs and metrics.
const (
	KindMalformed  = "malformed"
	KindConversion = "conversion"
	KindRejected   = "rejected"
)

// RecordError describes one skipped input record.
type RecordError struct {
	Source string // file name or stream label
	Line   int    // 1-based line number, 0 if unknown
	Err    error
}

func (e *RecordError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Kind classifies the failure for counting.
func (e *RecordError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrConversion):
		return KindConversion
	case errors.Is(e.Err, ErrMalformed):
		return KindMalformed
	default:
		return KindRejected
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

func conversion(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConversion, fmt.Sprintf(format, args...))
}
