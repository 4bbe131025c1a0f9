// Package brave wraps the Brave web-search API with quota accounting.
// The API is metered: 401 means a bad key (permanent failure), 402 means
// the paid quota is exhausted for the run, 429 is a retryable rate limit.
package brave

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/riqlabs/labmatch-cli/internal/resilience"
)

const defaultBaseURL = "https://api.search.brave.com/res/v1"

// ErrInvalidKey indicates the API rejected the subscription key. The client
// is permanently failed; the run should abort.
var ErrInvalidKey = errors.New("brave: invalid API key")

// Result is one web search hit.
type Result struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Client performs metered web searches.
type Client interface {
	// Search returns results for the query. Once the quota is exhausted it
	// returns empty results without issuing network calls.
	Search(ctx context.Context, query string) ([]Result, error)

	// QuotaExhausted reports whether the API returned 402 at any point.
	// Callers must check it before batch loops.
	QuotaExhausted() bool

	// QueriesUsed returns the number of successful queries this run.
	QueriesUsed() int
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithDelay sets the minimum spacing between search calls.
func WithDelay(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithMaxRetries sets the retry ceiling for 429s and network errors.
func WithMaxRetries(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithResultCount sets the requested result-page size.
func WithResultCount(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.resultCount = n
		}
	}
}

// WithRetryBase sets the base unit for exponential backoff on 429s and
// network errors. Mainly for tests.
func WithRetryBase(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.retryBase = d
		}
	}
}

type httpClient struct {
	apiKey      string
	baseURL     string
	http        *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	resultCount int
	retryBase   time.Duration

	mu             sync.Mutex
	queriesUsed    int
	quotaExhausted bool
	invalidKey     bool
}

// NewClient creates a search client. An empty key yields a client that
// never issues calls and always returns empty results.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter:     rate.NewLimiter(rate.Every(600*time.Millisecond), 1),
		maxRetries:  3,
		resultCount: 10,
		retryBase:   time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchResponse struct {
	Web struct {
		Results []Result `json:"results"`
	} `json:"web"`
}

func (c *httpClient) QuotaExhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quotaExhausted
}

func (c *httpClient) QueriesUsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queriesUsed
}

func (c *httpClient) Search(ctx context.Context, query string) ([]Result, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	c.mu.Lock()
	if c.quotaExhausted {
		c.mu.Unlock()
		return nil, nil
	}
	if c.invalidKey {
		c.mu.Unlock()
		return nil, ErrInvalidKey
	}
	c.mu.Unlock()

	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(c.resultCount))
	reqURL := c.baseURL + "/web/search?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "brave: rate limiter")
		}

		results, retryAfter, err := c.doSearch(ctx, reqURL)
		if err == nil {
			c.mu.Lock()
			c.queriesUsed++
			c.mu.Unlock()
			return results, nil
		}
		if errors.Is(err, ErrInvalidKey) {
			c.mu.Lock()
			c.invalidKey = true
			c.mu.Unlock()
			return nil, err
		}
		if errors.Is(err, errQuotaExhausted) {
			c.mu.Lock()
			c.quotaExhausted = true
			c.mu.Unlock()
			zap.L().Error("search quota exhausted; disabling further queries")
			return nil, nil
		}
		lastErr = err
		if !resilience.IsTransient(err) {
			return nil, err
		}

		if attempt < c.maxRetries-1 {
			delay := retryAfter
			if delay <= 0 {
				delay = time.Duration(1<<uint(attempt+1)) * c.retryBase
			}
			zap.L().Warn("search retry",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	// Give up on this query only; the run continues.
	zap.L().Warn("search query abandoned after retries", zap.Error(lastErr))
	return nil, nil
}

var errQuotaExhausted = errors.New("brave: quota exhausted")

func (c *httpClient) doSearch(ctx context.Context, reqURL string) ([]Result, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "brave: create request")
	}
	// No explicit Accept-Encoding: the transport negotiates gzip itself and
	// transparently decompresses; setting the header by hand disables that.
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, resilience.NewTransientError(eris.Wrap(err, "brave: send request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, 0, ErrInvalidKey
	case http.StatusPaymentRequired:
		return nil, 0, errQuotaExhausted
	case http.StatusTooManyRequests:
		var after time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, parseErr := strconv.Atoi(v); parseErr == nil {
				after = time.Duration(secs) * time.Second
			}
		}
		return nil, after, resilience.NewTransientError(eris.New("brave: rate limited"), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, resilience.NewTransientError(eris.Wrap(err, "brave: read response"), 0)
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("brave: unexpected status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, 0, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, 0, err
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, 0, eris.Wrap(err, "brave: unmarshal response")
	}
	return result.Web.Results, 0, nil
}
