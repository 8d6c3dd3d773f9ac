package s2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Semantic Scholar Graph API base URL.
	BaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// RateLimit is the default request rate (requests per second).
	RateLimit = 1.0

	// ReferenceFields are the cited-paper fields requested for each reference.
	ReferenceFields = "paperId,title,year,citationCount,abstract"

	// DefaultPageSize is the largest page the references endpoint serves.
	DefaultPageSize = 1000

	// MaxReferences is the API's offset+limit window for reference lists.
	MaxReferences = 9999

	// DefaultMaxRetries bounds attempts per page.
	DefaultMaxRetries = 8

	// DefaultBackoff is the first retry delay; it doubles on each attempt.
	DefaultBackoff = time.Second

	// MaxBackoff caps a single retry delay.
	MaxBackoff = time.Minute
)

// Client is a rate-limited HTTP client for the Semantic Scholar Graph API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
	pageSize   int
	maxRetries int
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests. An empty key
// keeps the one read from S2_API_KEY.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		if key != "" {
			c.apiKey = key
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithRateLimit sets the sustained request rate in requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithPageSize sets the number of references requested per page.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 && n <= DefaultPageSize {
			c.pageSize = n
		}
	}
}

// WithRetries sets the attempt budget per page and the initial backoff.
func WithRetries(maxRetries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
		if backoff >= 0 {
			c.backoff = backoff
		}
	}
}

// WithLogger sets the logger used for retry and progress messages.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Graph API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		pageSize:   DefaultPageSize,
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
		sleep:      sleepContext,
		logger:     zerolog.Nop(),
	}

	if key := os.Getenv("S2_API_KEY"); key != "" {
		c.apiKey = key
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FetchReferences pages through every reference of a paper.
func (c *Client) FetchReferences(ctx context.Context, paperID string) (*FetchResult, error) {
	result := &FetchResult{PaperID: paperID}

	offset := 0
	for {
		limit := c.pageSize
		if offset+limit > MaxReferences {
			limit = MaxReferences - offset
		}
		if limit <= 0 {
			result.Truncated = true
			break
		}

		page, err := c.fetchPageWithRetry(ctx, paperID, offset, limit)
		if err != nil {
			return nil, err
		}
		result.Pages++

		for _, d := range page.Data {
			if len(d.CitedPaper) == 0 {
				continue
			}
			result.References = append(result.References, Reference{
				CitingPaperID: paperID,
				CitedPaper:    d.CitedPaper,
			})
		}

		if page.Next == nil || *page.Next <= offset {
			break
		}
		offset = *page.Next
	}

	return result, nil
}

// fetchPageWithRetry retries retryable failures with exponential backoff.
func (c *Client) fetchPageWithRetry(ctx context.Context, paperID string, offset, limit int) (*referencesPage, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		page, err := c.fetchPage(ctx, paperID, offset, limit)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err

		delay := c.backoffDelay(attempt)
		c.logger.Warn().
			Err(err).
			Str("paper_id", paperID).
			Int("offset", offset).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("reference page request failed")

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("fetching references for %s after %d attempts: %w", paperID, c.maxRetries, lastErr)
}

// backoffDelay doubles the initial backoff per attempt, capped at MaxBackoff.
func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.backoff <= 0 {
		return 0
	}
	delay := c.backoff
	for i := 0; i < attempt && delay < MaxBackoff; i++ {
		delay *= 2
	}
	return min(delay, MaxBackoff)
}

// fetchPage performs a single references request.
func (c *Client) fetchPage(ctx context.Context, paperID string, offset, limit int) (*referencesPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("fields", ReferenceFields)
	reqURL := c.baseURL + "/paper/" + paperID + "/references?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
	}

	if err := checkHTTPErrors(resp, paperID); err != nil {
		return nil, err
	}

	var page referencesPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if page.Message != "" || page.Error != "" {
		return nil, fmt.Errorf("%w: %s%s", ErrInvalidResponse, page.Message, page.Error)
	}

	return &page, nil
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, paperID string) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, paperID)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthError, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			PaperID:    paperID,
		}
	}
	return nil
}

// Harvest fetches references for each id not present in skip, running up
// to workers requests at once. Per-paper failures are logged and counted;
// only a sink error or context cancellation stops the run. Calls to sink
// are serialized.
func (c *Client) Harvest(ctx context.Context, ids []string, skip map[string]bool, workers int, sink func(*FetchResult) error) (HarvestStats, error) {
	if workers <= 0 {
		workers = 1
	}

	var (
		mu    sync.Mutex
		stats = HarvestStats{Requested: len(ids)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, id := range ids {
		if skip[id] {
			mu.Lock()
			stats.Skipped++
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			res, err := c.FetchReferences(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Error().Err(err).Str("paper_id", id).Msg("giving up on paper")
				mu.Lock()
				stats.Failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if err := sink(res); err != nil {
				return fmt.Errorf("writing references for %s: %w", id, err)
			}
			stats.Fetched++
			stats.References += len(res.References)
			if res.Truncated {
				stats.Truncated++
				c.logger.Warn().Str("paper_id", id).Int("references", len(res.References)).Msg("reference list truncated at API window")
			}
			return nil
		})
	}

	err := g.Wait()
	return stats, err
}
