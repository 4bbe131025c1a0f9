package orcid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractID(t *testing.T) {
	assert.Equal(t, "0000-0002-1825-0097", ExtractID("https://orcid.org/0000-0002-1825-0097"))
	assert.Equal(t, "0000-0002-1825-009X", ExtractID("0000-0002-1825-009X"))
	assert.Equal(t, "", ExtractID("https://example.edu/people/jane"))
}

func TestEmailReturnsFirstPublicEmail(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":[{"email":"  Jane.Doe@example.edu "},{"email":"other@example.edu"}]}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	email, err := client.Email(context.Background(), "https://orcid.org/0000-0002-1825-0097")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.edu", email)
	assert.Equal(t, "/0000-0002-1825-0097/email", gotPath)
}

func TestEmailNotFoundIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	email, err := client.Email(context.Background(), "0000-0002-1825-0097")
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestEmailEmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"email":[]}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	email, err := client.Email(context.Background(), "0000-0002-1825-0097")
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestEmailBadIdentifier(t *testing.T) {
	client := NewClient()
	_, err := client.Email(context.Background(), "not an orcid")
	require.Error(t, err)
}

func TestEmailServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.Email(context.Background(), "0000-0002-1825-0097")
	require.Error(t, err)
}
