package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riqlabs/labmatch-cli/internal/config"
)

const testInstitutionsYAML = `example:
  name: Example University
  openalex_id: I123456789
  email_domains:
    - example.edu
  website_domain: example.edu
  directories:
    - https://cs.example.edu/people
  skip_email_sites: []
  contact_page_sites: []
`

func withTestConfig(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "institutions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testInstitutionsYAML), 0o644))

	prev := cfg
	cfg = &config.Config{Institutions: config.InstitutionsConfig{File: path}}
	t.Cleanup(func() { cfg = prev })
}

func TestLoadInstitution(t *testing.T) {
	withTestConfig(t)

	inst, err := loadInstitution("example")
	require.NoError(t, err)
	assert.Equal(t, "Example University", inst.Name)
	assert.Equal(t, "I123456789", inst.OpenAlexID)
	assert.Equal(t, []string{"example.edu"}, inst.EmailDomains)
	assert.Len(t, inst.Directories, 1)
}

func TestLoadInstitution_UnknownKey(t *testing.T) {
	withTestConfig(t)

	_, err := loadInstitution("nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown institution")
	assert.Contains(t, err.Error(), "example")
}

func TestLoadInstitution_MissingFile(t *testing.T) {
	prev := cfg
	cfg = &config.Config{Institutions: config.InstitutionsConfig{File: "/nonexistent/institutions.yaml"}}
	t.Cleanup(func() { cfg = prev })

	_, err := loadInstitution("example")
	require.Error(t, err)
}
