// Package checkpoint persists the faculty-record set after each pipeline
// phase so an interrupted run can resume without re-spending quota.
package checkpoint

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/riqlabs/labmatch-cli/internal/model"
)

// ErrNotFound is returned when no snapshot exists for a phase.
var ErrNotFound = errors.New("checkpoint: not found")

const snapshotVersion = "1"

// Meta is stamped into every snapshot.
type Meta struct {
	Phase       model.Phase `json:"phase"`
	Timestamp   time.Time   `json:"timestamp"`
	Institution string      `json:"institution"`
	Version     string      `json:"version"`
	RunID       string      `json:"run_id,omitempty"`
}

// Snapshot is one phase's persisted state: the full record array plus
// phase-specific side caches.
type Snapshot struct {
	Meta    Meta                       `json:"meta"`
	Count   int                        `json:"count"`
	Faculty []model.FacultyRecord      `json:"faculty"`
	Extra   map[string]json.RawMessage `json:"extra,omitempty"`
}

// Store owns snapshot files for one institution under a directory.
// Phases read and write snapshots through it but never share file handles.
type Store struct {
	dir         string
	institution string
	runID       string
}

// NewStore creates the checkpoint directory if needed.
func NewStore(dir, institution, runID string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "checkpoint: create dir")
	}
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(institution), " ", "_"))
	return &Store{dir: dir, institution: key, runID: runID}, nil
}

func (s *Store) path(phase model.Phase) string {
	return filepath.Join(s.dir, s.institution+"_"+string(phase)+".json")
}

// Save persists a named snapshot. Extra carries phase-specific side caches
// (e.g. the directory name-to-contact cache) as raw JSON values.
func (s *Store) Save(phase model.Phase, records []model.FacultyRecord, extra map[string]json.RawMessage) error {
	snap := Snapshot{
		Meta: Meta{
			Phase:       phase,
			Timestamp:   time.Now().UTC(),
			Institution: s.institution,
			Version:     snapshotVersion,
			RunID:       s.runID,
		},
		Count:   len(records),
		Faculty: records,
		Extra:   extra,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "checkpoint: marshal %s", phase)
	}

	// Write-then-rename so a crash mid-write never leaves a corrupt
	// snapshot in place of a good one.
	tmp := s.path(phase) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "checkpoint: write %s", phase)
	}
	if err := os.Rename(tmp, s.path(phase)); err != nil {
		return eris.Wrapf(err, "checkpoint: rename %s", phase)
	}

	zap.L().Info("checkpoint saved",
		zap.String("phase", string(phase)),
		zap.Int("records", len(records)),
	)
	return nil
}

// Load returns the snapshot for a phase. A missing file yields ErrNotFound;
// a corrupt file is logged and also reported as ErrNotFound, never fatal.
func (s *Store) Load(phase model.Phase) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(phase))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "checkpoint: read %s", phase)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		zap.L().Warn("corrupt checkpoint treated as missing",
			zap.String("phase", string(phase)),
			zap.Error(err),
		)
		return nil, ErrNotFound
	}
	return &snap, nil
}

// LatestPhase scans the phase list from most- to least-advanced and returns
// the first phase with a snapshot, or ErrNotFound when none exist.
func (s *Store) LatestPhase() (model.Phase, error) {
	for i := len(model.AllPhases) - 1; i >= 0; i-- {
		phase := model.AllPhases[i]
		if _, err := os.Stat(s.path(phase)); err == nil {
			return phase, nil
		}
	}
	return "", ErrNotFound
}

// Clear deletes all snapshots for this institution.
func (s *Store) Clear() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, s.institution+"_*.json"))
	if err != nil {
		return eris.Wrap(err, "checkpoint: glob")
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return eris.Wrapf(err, "checkpoint: remove %s", m)
		}
		zap.L().Info("checkpoint deleted", zap.String("file", filepath.Base(m)))
	}
	return nil
}

// List returns the phases that currently have snapshots, in pipeline order.
func (s *Store) List() []model.Phase {
	var phases []model.Phase
	for _, phase := range model.AllPhases {
		if _, err := os.Stat(s.path(phase)); err == nil {
			phases = append(phases, phase)
		}
	}
	return phases
}
