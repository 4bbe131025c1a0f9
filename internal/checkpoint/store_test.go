package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riqlabs/labmatch-cli/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), "Harvard University", "run-1")
	require.NoError(t, err)
	return s
}

func sampleRecords() []model.FacultyRecord {
	a := model.NewFacultyRecord("Jane Doe")
	a.HIndex = 50
	b := model.NewFacultyRecord("Bob Smith")
	b.Email = model.EmailFact{
		Value:      "bsmith@harvard.edu",
		Source:     model.SourceORCID,
		Confidence: model.ConfidenceHigh,
	}
	return []model.FacultyRecord{a, b}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	extra := map[string]json.RawMessage{
		"email_cache": json.RawMessage(`{"jane doe":"jdoe@harvard.edu"}`),
	}
	require.NoError(t, s.Save(model.PhaseDirectories, sampleRecords(), extra))

	snap, err := s.Load(model.PhaseDirectories)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDirectories, snap.Meta.Phase)
	assert.Equal(t, "harvard_university", snap.Meta.Institution)
	assert.Equal(t, "run-1", snap.Meta.RunID)
	assert.Equal(t, 2, snap.Count)
	require.Len(t, snap.Faculty, 2)
	assert.Equal(t, "Jane Doe", snap.Faculty[0].Name)
	assert.Equal(t, model.ConfidenceHigh, snap.Faculty[1].Email.Confidence)
	assert.Contains(t, string(snap.Extra["email_cache"]), "jdoe@harvard.edu")
}

func TestLoadMissingPhase(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(model.PhaseWebsites)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCorruptSnapshotTreatedAsMissing(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "harvard", "run-1")
	require.NoError(t, err)

	path := filepath.Join(dir, "harvard_websites.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err = s.Load(model.PhaseWebsites)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatestPhaseScansBackward(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LatestPhase()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(model.PhaseExtract, sampleRecords(), nil))
	require.NoError(t, s.Save(model.PhaseWebsites, sampleRecords(), nil))

	latest, err := s.LatestPhase()
	require.NoError(t, err)
	assert.Equal(t, model.PhaseWebsites, latest)
}

func TestClearRemovesOnlyOwnInstitution(t *testing.T) {
	dir := t.TempDir()
	harvard, err := NewStore(dir, "harvard", "run-1")
	require.NoError(t, err)
	mit, err := NewStore(dir, "mit", "run-2")
	require.NoError(t, err)

	require.NoError(t, harvard.Save(model.PhaseExtract, sampleRecords(), nil))
	require.NoError(t, mit.Save(model.PhaseExtract, sampleRecords(), nil))

	require.NoError(t, harvard.Clear())

	_, err = harvard.Load(model.PhaseExtract)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = mit.Load(model.PhaseExtract)
	assert.NoError(t, err)
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(model.PhaseWebsites, sampleRecords(), nil))
	require.NoError(t, s.Save(model.PhaseExtract, sampleRecords(), nil))

	assert.Equal(t, []model.Phase{model.PhaseExtract, model.PhaseWebsites}, s.List())
}
