// Package orcid looks up public emails in the ORCID registry. Registry
// emails are self-asserted by the researcher, so a hit is high confidence.
package orcid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://pub.orcid.org/v3.0"

// idRe matches a bare ORCID identifier inside a URL or string.
var idRe = regexp.MustCompile(`\d{4}-\d{4}-\d{4}-\d{3}[\dX]`)

// Client performs registry lookups.
type Client interface {
	// Email returns the first public email for the identifier, or "" when
	// the person has none (a 404 is "no public email", not an error).
	Email(ctx context.Context, orcidURL string) (string, error)
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
	baseURL string
	http    *http.Client
}

// NewClient creates a registry client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ExtractID pulls the bare identifier out of an ORCID URL, or "" if none.
func ExtractID(orcidURL string) string {
	return idRe.FindString(orcidURL)
}

type emailResponse struct {
	Email []struct {
		Email string `json:"email"`
	} `json:"email"`
}

func (c *httpClient) Email(ctx context.Context, orcidURL string) (string, error) {
	id := ExtractID(orcidURL)
	if id == "" {
		return "", eris.Errorf("orcid: no identifier in %q", orcidURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+id+"/email", nil)
	if err != nil {
		return "", eris.Wrap(err, "orcid: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "labmatch-cli/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "orcid: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "orcid: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("orcid: unexpected status %d", resp.StatusCode)
	}

	var result emailResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", eris.Wrap(err, "orcid: unmarshal response")
	}

	for _, entry := range result.Email {
		email := strings.ToLower(strings.TrimSpace(entry.Email))
		if email != "" && strings.Contains(email, "@") {
			return email, nil
		}
	}
	return "", nil
}
