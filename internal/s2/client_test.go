package s2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient returns a client pointed at srv with no throttling or backoff.
func newTestClient(t *testing.T, srv *httptest.Server, opts ...ClientOption) *Client {
	t.Helper()
	t.Setenv("S2_API_KEY", "")
	base := []ClientOption{
		WithBaseURL(srv.URL),
		WithRateLimit(10000),
		WithRetries(3, 0),
	}
	return NewClient(append(base, opts...)...)
}

func paperIDFromPath(path string) string {
	return strings.TrimSuffix(strings.TrimPrefix(path, "/paper/"), "/references")
}

func TestFetchReferences_Paginates(t *testing.T) {
	var limits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limits = append(limits, r.URL.Query().Get("limit"))
		if got := r.URL.Query().Get("fields"); got != ReferenceFields {
			t.Errorf("fields = %q", got)
		}
		switch r.URL.Query().Get("offset") {
		case "0":
			fmt.Fprint(w, `{"offset":0,"next":2,"data":[{"citedPaper":{"paperId":"B"}},{"citedPaper":{"paperId":"C"}}]}`)
		case "2":
			fmt.Fprint(w, `{"offset":2,"data":[{"citedPaper":{"paperId":"D","title":"Dee"}}]}`)
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithPageSize(2))
	res, err := c.FetchReferences(context.Background(), "A")
	if err != nil {
		t.Fatalf("FetchReferences() error = %v", err)
	}

	if res.Pages != 2 {
		t.Errorf("Pages = %d, want 2", res.Pages)
	}
	if len(res.References) != 3 {
		t.Fatalf("got %d references, want 3", len(res.References))
	}
	for _, ref := range res.References {
		if ref.CitingPaperID != "A" {
			t.Errorf("CitingPaperID = %q, want A", ref.CitingPaperID)
		}
	}
	if res.Truncated {
		t.Error("Truncated = true, want false")
	}
	if strings.Join(limits, ",") != "2,2" {
		t.Errorf("limits = %v", limits)
	}
}

func TestFetchReferences_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"offset":0,"data":[{"citedPaper":{"paperId":"B"}}]}`)
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv).FetchReferences(context.Background(), "A")
	if err != nil {
		t.Fatalf("FetchReferences() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(res.References) != 1 {
		t.Errorf("got %d references, want 1", len(res.References))
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name    string
		backoff time.Duration
		attempt int
		want    time.Duration
	}{
		{"first attempt", time.Second, 0, time.Second},
		{"doubles", time.Second, 3, 8 * time.Second},
		{"capped", time.Second, 10, MaxBackoff},
		{"large attempt does not wrap", time.Second, 70, MaxBackoff},
		{"huge attempt does not wrap", time.Millisecond, 1 << 20, MaxBackoff},
		{"initial above cap", 2 * time.Hour, 0, MaxBackoff},
		{"no backoff", 0, 50, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(WithRetries(100, tt.backoff))
			if got := c.backoffDelay(tt.attempt); got != tt.want {
				t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestFetchReferences_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).FetchReferences(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestFetchReferences_ErrorBodyExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"message":"Too Many Requests"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, WithRetries(2, 0)).FetchReferences(context.Background(), "A")
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestFetchReferences_TruncatesAtAPIWindow(t *testing.T) {
	var lastLimit int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		lastLimit = limit
		fmt.Fprintf(w, `{"offset":%d,"next":%d,"data":[{"citedPaper":{"paperId":"X%d"}}]}`, offset, offset+limit, offset)
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv).FetchReferences(context.Background(), "A")
	if err != nil {
		t.Fatalf("FetchReferences() error = %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if res.Pages != 10 {
		t.Errorf("Pages = %d, want 10", res.Pages)
	}
	if lastLimit != 999 {
		t.Errorf("last limit = %d, want 999", lastLimit)
	}
}

func TestFetchReferences_SendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Errorf("x-api-key = %q", got)
		}
		fmt.Fprint(w, `{"offset":0,"data":[]}`)
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv, WithAPIKey("secret")).FetchReferences(context.Background(), "A"); err != nil {
		t.Fatal(err)
	}
}

func TestHarvest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch paperIDFromPath(r.URL.Path) {
		case "A":
			fmt.Fprint(w, `{"offset":0,"data":[{"citedPaper":{"paperId":"Z"}}]}`)
		case "C":
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	var (
		mu  sync.Mutex
		got []string
	)
	sink := func(res *FetchResult) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, res.PaperID)
		return nil
	}

	stats, err := newTestClient(t, srv).Harvest(context.Background(), []string{"A", "B", "C"}, map[string]bool{"B": true}, 2, sink)
	if err != nil {
		t.Fatalf("Harvest() error = %v", err)
	}

	want := HarvestStats{Requested: 3, Skipped: 1, Fetched: 1, Failed: 1, References: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if len(got) != 1 || got[0] != "A" {
		t.Errorf("sink saw %v, want [A]", got)
	}
}

func TestHarvest_SinkErrorStopsRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"offset":0,"data":[]}`)
	}))
	defer srv.Close()

	boom := errors.New("disk full")
	_, err := newTestClient(t, srv).Harvest(context.Background(), []string{"A"}, nil, 1, func(*FetchResult) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestWriteReferencesAndReadProcessedIDs(t *testing.T) {
	refs := []Reference{
		{CitingPaperID: "A", CitedPaper: json.RawMessage(`{"paperId":"B"}`)},
		{CitingPaperID: "C", CitedPaper: json.RawMessage(`{"paperId":"B"}`)},
	}

	var buf bytes.Buffer
	if err := WriteReferences(&buf, refs); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Errorf("wrote %d lines, want 2", n)
	}

	path := filepath.Join(t.TempDir(), "refs.jsonl")
	content := buf.String() + "not json\n\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	ids, err := ReadProcessedIDs(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || !ids["A"] || !ids["C"] {
		t.Errorf("ids = %v, want A and C", ids)
	}
}

func TestReadProcessedIDs_MissingFile(t *testing.T) {
	ids, err := ReadProcessedIDs(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty set, got %v", ids)
	}
}
