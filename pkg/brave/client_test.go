package brave

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPage = `{
	"web": {
		"results": [
			{"url": "https://www.chem.harvard.edu/~jdoe/", "title": "Jane Doe Lab", "description": "Research group of Jane Doe"},
			{"url": "https://example.org/other", "title": "Other", "description": ""}
		]
	}
}`

func fastClient(url string) Client {
	return NewClient("test-key",
		WithBaseURL(url),
		WithDelay(time.Millisecond),
		WithMaxRetries(3),
		WithRetryBase(time.Millisecond),
	)
}

func TestSearchReturnsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/web/search", r.URL.Path)
		assert.Equal(t, "jane doe harvard", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.Header.Get("X-Subscription-Token"))
		_, _ = w.Write([]byte(searchPage))
	}))
	defer srv.Close()

	c := fastClient(srv.URL)
	results, err := c.Search(context.Background(), "jane doe harvard")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Jane Doe Lab", results[0].Title)
	assert.Equal(t, 1, c.QueriesUsed())
}

func TestSearchDecodesGzipResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The API serves gzip whenever the client advertises it. The
		// transport must be the one advertising, so it also decompresses.
		require.Contains(t, r.Header.Get("Accept-Encoding"), "gzip")
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "application/json")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(searchPage))
		require.NoError(t, gz.Close())
	}))
	defer srv.Close()

	c := fastClient(srv.URL)
	results, err := c.Search(context.Background(), "jane doe harvard")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, strings.HasPrefix(results[0].URL, "https://www.chem.harvard.edu/"))
}

func TestSearchNoKeyNeverCalls(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL), WithDelay(time.Millisecond))
	results, err := c.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int32(0), calls.Load())
}

func TestSearchInvalidKeyIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := fastClient(srv.URL)
	_, err := c.Search(context.Background(), "q1")
	assert.ErrorIs(t, err, ErrInvalidKey)

	// Subsequent calls fail fast without touching the network.
	_, err = c.Search(context.Background(), "q2")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, c.QuotaExhausted())
}

func TestSearchQuotaExhaustedIsSticky(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := fastClient(srv.URL)
	results, err := c.Search(context.Background(), "q1")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.True(t, c.QuotaExhausted())

	// No further network calls once exhausted.
	results, err = c.Search(context.Background(), "q2")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, c.QueriesUsed())
}

func TestSearchRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(searchPage))
	}))
	defer srv.Close()

	c := fastClient(srv.URL)
	results, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int32(2), calls.Load())
	assert.False(t, c.QuotaExhausted())
}

func TestSearchGivesUpAfterRetryCeiling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := fastClient(srv.URL)
	results, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int32(3), calls.Load())
	assert.False(t, c.QuotaExhausted())
}
