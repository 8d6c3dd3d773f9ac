package s2

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines.
// Cited-paper abstracts make reference lines long.
const MaxJSONLLineCapacity = 4 * 1024 * 1024

// WriteReferences writes references as JSONL lines.
func WriteReferences(w io.Writer, refs []Reference) error {
	for _, r := range refs {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding reference: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing reference: %w", err)
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	return nil
}

// ReadProcessedIDs returns the set of citing paper IDs already present in
// a citation-event file. A missing file yields an empty set. Lines that do
// not parse are ignored; the ingest side accounts for them.
func ReadProcessedIDs(path string) (map[string]bool, error) {
	ids := make(map[string]bool)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ids, nil
		}
		return nil, fmt.Errorf("opening references file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r struct {
			CitingPaperID string `json:"citingPaperId"`
		}
		if err := json.Unmarshal(line, &r); err != nil || r.CitingPaperID == "" {
			continue
		}
		ids[r.CitingPaperID] = true
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading references file: %w", err)
	}

	return ids, nil
}
