// Package openalex is a thin client for the OpenAlex author catalog.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/riqlabs/labmatch-cli/internal/resilience"
)

const defaultBaseURL = "https://api.openalex.org"

// Client performs OpenAlex catalog operations.
type Client interface {
	// ListAuthors returns one page of authors whose last known institution
	// matches institutionID. Pages are 1-based.
	ListAuthors(ctx context.Context, institutionID string, page, perPage int) (*AuthorsPage, error)
}

// AuthorsPage is one page of an author listing.
type AuthorsPage struct {
	Meta    PageMeta `json:"meta"`
	Results []Author `json:"results"`
}

// PageMeta carries listing totals.
type PageMeta struct {
	Count int `json:"count"`
}

// Author is a catalog author entry.
type Author struct {
	ID                    string        `json:"id"`
	DisplayName           string        `json:"display_name"`
	ORCID                 string        `json:"orcid"`
	WorksCount            int           `json:"works_count"`
	CitedByCount          int           `json:"cited_by_count"`
	SummaryStats          SummaryStats  `json:"summary_stats"`
	LastKnownInstitutions []Affiliation `json:"last_known_institutions"`
	Topics                []Topic       `json:"topics"`
	Concepts              []Concept     `json:"x_concepts"`
}

// SummaryStats holds bibliometric indices.
type SummaryStats struct {
	HIndex   int `json:"h_index"`
	I10Index int `json:"i10_index"`
}

// Affiliation is a known institutional affiliation.
type Affiliation struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Topic is a weighted research topic.
type Topic struct {
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

// Concept is a weighted, leveled research concept.
type Concept struct {
	DisplayName string  `json:"display_name"`
	Level       int     `json:"level"`
	Score       float64 `json:"score"`
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

type httpClient struct {
	contactEmail string
	baseURL      string
	http         *http.Client
	retry        resilience.RetryConfig
}

// NewClient creates an OpenAlex client. The contact email is sent in the
// User-Agent per the API's polite-pool convention.
func NewClient(contactEmail string, opts ...Option) Client {
	c := &httpClient{
		contactEmail: contactEmail,
		baseURL:      defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
	c.retry.OnRetry = resilience.RetryLogger("openalex", "list_authors")
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) ListAuthors(ctx context.Context, institutionID string, page, perPage int) (*AuthorsPage, error) {
	q := url.Values{}
	q.Set("filter", "last_known_institutions.id:"+institutionID)
	q.Set("per_page", fmt.Sprint(perPage))
	q.Set("page", fmt.Sprint(page))
	reqURL := c.baseURL + "/authors?" + q.Encode()

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*AuthorsPage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "openalex: create request")
		}
		req.Header.Set("User-Agent", "labmatch-cli/1.0 (mailto:"+c.contactEmail+")")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "openalex: send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "openalex: read response")
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("openalex: unexpected status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		var result AuthorsPage
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, eris.Wrap(err, "openalex: unmarshal response")
		}
		return &result, nil
	})
}
