package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/matsen/citegraph/internal/paper"
)

// Source kinds used as metric labels.
const (
	SourceMetadata  = "metadata"
	SourceCitations = "citations"
)

// SourceStats counts what happened to the records of one input.
type SourceStats struct {
	Source     string `json:"source"`
	Kind       string `json:"kind"`
	Records    int    `json:"records"`
	Processed  int    `json:"processed"`
	Skipped    int    `json:"skipped"`
	Malformed  int    `json:"malformed"`
	Conversion int    `json:"conversion"`

	// Metadata only: ids already present when the record arrived.
	Duplicates int `json:"duplicates,omitempty"`

	// Citations only: endpoints synthesized as placeholders.
	CitingCreated int `json:"citing_created,omitempty"`
	CitedCreated  int `json:"cited_created,omitempty"`
}

func (s *SourceStats) skip(e *RecordError) {
	s.Skipped++
	switch e.Kind() {
	case KindMalformed:
		s.Malformed++
	case KindConversion:
		s.Conversion++
	}
}

// SkipFunc receives every record that was skipped.
type SkipFunc func(*RecordError)

// ReadMetadataCSV streams metadata records from r. The first row is a
// header and is discarded. Valid records are passed to fn; an error from
// fn aborts the read. Invalid records are reported to onSkip and counted.
//
// A quoted field may continue onto following lines. While such a field is
// open, a line that parses on its own as a complete record ends it: the
// open record is abandoned, each of its lines is counted as malformed, and
// reading resumes at that line. An unterminated quote therefore costs only
// the lines it covered before the next good record.
func ReadMetadataCSV(ctx context.Context, r io.Reader, source string, fn func(paper.Paper) error, onSkip SkipFunc) (SourceStats, error) {
	stats := SourceStats{Source: source, Kind: SourceMetadata}
	header := true

	skip := func(line int, err error) {
		stats.Records++
		rerr := &RecordError{Source: source, Line: line, Err: err}
		stats.skip(rerr)
		if onSkip != nil {
			onSkip(rerr)
		}
	}

	emit := func(line int, text string) error {
		record, err := parseCSVRecord(text)
		if header {
			header = false
			return nil
		}
		if err != nil {
			skip(line, malformed("%v", err))
			return nil
		}
		p, err := ParseMetadataRecord(record)
		if err != nil {
			skip(line, err)
			return nil
		}
		stats.Records++
		if err := fn(p); err != nil {
			return err
		}
		stats.Processed++
		return nil
	}

	var (
		pending      []string
		pendingStart int
	)
	abandon := func() {
		for i := range pending {
			if header {
				header = false
				continue
			}
			skip(pendingStart+i, malformed("unterminated quoted field"))
		}
		pending = nil
	}

	br := bufio.NewReaderSize(r, 64*1024)
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		raw, readErr := br.ReadString('\n')
		if len(raw) > 0 {
			line++
			text := strings.TrimRight(raw, "\r\n")

			continued := false
			if len(pending) > 0 {
				if isCompleteRecord(text) {
					abandon()
				} else {
					pending = append(pending, text)
					if !openQuote(text, true) {
						if err := emit(pendingStart, strings.Join(pending, "\n")); err != nil {
							return stats, err
						}
						pending = nil
					}
					continued = true
				}
			}

			if !continued && strings.TrimSpace(text) != "" {
				if openQuote(text, false) {
					pending = []string{text}
					pendingStart = line
				} else if err := emit(line, text); err != nil {
					return stats, err
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			abandon()
			return stats, nil
		}
		if readErr != nil {
			return stats, fmt.Errorf("reading %s: %w", source, readErr)
		}
	}
}

// openQuote reports whether a quoted field is still open at the end of
// line. inQuote is the state carried in from the previous line. Quoting
// follows encoding/csv with LazyQuotes: a field is quoted only when it
// starts with a quote, "" is an escaped quote, and a quote not followed by
// a comma or the line end is literal.
func openQuote(line string, inQuote bool) bool {
	fieldStart := !inQuote
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inQuote {
			if c == '"' {
				if i+1 < len(line) && line[i+1] == '"' {
					i++
				} else if i+1 == len(line) || line[i+1] == ',' {
					inQuote = false
				}
			}
			continue
		}
		if c == ',' {
			fieldStart = true
			continue
		}
		if c == '"' && fieldStart {
			inQuote = true
		}
		fieldStart = false
	}
	return inQuote
}

// isCompleteRecord reports whether line alone is a valid metadata record.
func isCompleteRecord(line string) bool {
	if openQuote(line, false) {
		return false
	}
	record, err := parseCSVRecord(line)
	if err != nil {
		return false
	}
	_, err = ParseMetadataRecord(record)
	return err == nil
}

// parseCSVRecord decodes one logical CSV record.
func parseCSVRecord(text string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	record, err := cr.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, perr.Err
		}
		return nil, err
	}
	return record, nil
}

// ReadCitationEvents streams newline-delimited citation events from r.
// Blank lines are ignored. The line number of each event is passed to fn
// alongside it.
func ReadCitationEvents(ctx context.Context, r io.Reader, source string, fn func(line int, ev CitationEvent) error, onSkip SkipFunc) (SourceStats, error) {
	stats := SourceStats{Source: source, Kind: SourceCitations}

	br := bufio.NewReaderSize(r, 64*1024)
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		raw, readErr := br.ReadBytes('\n')
		if len(raw) > 0 {
			line++
			if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
				stats.Records++
				ev, err := ParseCitationEvent(trimmed)
				if err != nil {
					rerr := &RecordError{Source: source, Line: line, Err: err}
					stats.skip(rerr)
					if onSkip != nil {
						onSkip(rerr)
					}
				} else {
					if err := fn(line, ev); err != nil {
						return stats, err
					}
					stats.Processed++
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			return stats, nil
		}
		if readErr != nil {
			return stats, fmt.Errorf("reading %s: %w", source, readErr)
		}
	}
}
