package s2

import "encoding/json"

// Reference is one citation event: the citing paper and the raw cited-paper
// object exactly as the API returned it. Its JSON form is the line format
// of a citation-event file.
type Reference struct {
	CitingPaperID string          `json:"citingPaperId"`
	CitedPaper    json.RawMessage `json:"citedPaper"`
}

// referencesPage is one page of the /paper/{id}/references endpoint.
type referencesPage struct {
	Offset int  `json:"offset"`
	Next   *int `json:"next,omitempty"`
	Data   []struct {
		CitedPaper json.RawMessage `json:"citedPaper"`
	} `json:"data"`

	// Error bodies carry one of these instead of data.
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FetchResult holds every reference retrieved for one paper.
type FetchResult struct {
	PaperID    string
	References []Reference
	Pages      int
	// Truncated is set when the API's result window ran out before the
	// reference list did.
	Truncated bool
}

// HarvestStats summarizes a Harvest run.
type HarvestStats struct {
	Requested  int `json:"requested"`
	Skipped    int `json:"skipped"`
	Fetched    int `json:"fetched"`
	Failed     int `json:"failed"`
	Truncated  int `json:"truncated"`
	References int `json:"references"`
}
