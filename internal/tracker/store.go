package tracker

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

// TableStore persists the tracking table. The JSON document on disk is a
// cache of in-memory state, never the other way around; reconciliation can
// always rebuild it from Jira.
type TableStore interface {
	Load() *Table
	Save(t *Table) error
}

// Store keeps the table in a single JSON document, written atomically via a
// temp-file rename. A best-effort advisory lock reduces (not eliminates) the
// risk of a second process writing concurrently.
type Store struct {
	path     string
	fileLock *flock.Flock
	mu       sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{
		path:     path,
		fileLock: flock.New(path + ".lock"),
	}
}

// Load reads the on-disk document. A missing file yields an empty table and
// establishes the file; an unreadable or unparsable one degrades to an empty
// table rather than failing, relying on reconciliation to repopulate.
// Individual malformed records are dropped, the rest kept.
func (s *Store) Load() *Table {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		table := NewTable()
		if saveErr := s.Save(table); saveErr != nil {
			slog.Warn("Failed to establish tracking file", "path", s.path, "error", saveErr)
		} else {
			slog.Info("Created new tracking file", "path", s.path)
		}
		return table
	}
	if err != nil {
		slog.Warn("Tracking file unreadable, resuming fresh", "path", s.path, "error", err)
		return NewTable()
	}
	if len(bytes.TrimSpace(data)) == 0 {
		slog.Warn("Tracking file empty, resuming fresh", "path", s.path)
		return NewTable()
	}

	var raw struct {
		Primary   map[string]json.RawMessage `json:"primaryStatus"`
		Lifecycle map[string]json.RawMessage `json:"lifecycleStatus"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("Tracking file corrupted, resuming fresh", "path", s.path, "error", err)
		return NewTable()
	}

	table := NewTable()
	decodeDimension(raw.Primary, table.Primary, DimensionPrimary)
	decodeDimension(raw.Lifecycle, table.Lifecycle, DimensionLifecycle)

	slog.Info("Loaded tracking file",
		"path", s.path,
		"primary", len(table.Primary),
		"lifecycle", len(table.Lifecycle),
	)
	return table
}

func decodeDimension(raw map[string]json.RawMessage, out map[string]*Record, dim Dimension) {
	for key, data := range raw {
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			slog.Warn("Dropping malformed tracking record", "issue", key, "dimension", dim, "error", err)
			continue
		}
		if rec.StartTime.IsZero() {
			slog.Warn("Dropping tracking record without start time", "issue", key, "dimension", dim)
			continue
		}
		out[key] = &rec
	}
}

// Save serializes the table and atomically renames it over the real path, so
// a crash mid-write never leaves a half-written file. Failing to take the
// advisory lock defers the save instead of risking interleaved writes.
func (s *Store) Save(t *Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}

	locked, err := s.fileLock.TryLock()
	if err != nil || !locked {
		slog.Warn("Tracking file lock unavailable, deferring save", "path", s.path, "error", err)
		return nil
	}
	defer func() {
		if unlockErr := s.fileLock.Unlock(); unlockErr != nil {
			slog.Warn("Failed to release tracking file lock", "path", s.path, "error", unlockErr)
		}
	}()

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		slog.Error("Failed to save tracking file", "path", s.path, "error", err)
		s.saveFallback(data)
		return err
	}

	slog.Debug("Saved tracking file", "path", s.path, "records", t.Len())
	return nil
}

// saveFallback is a last resort when the real path is unwritable: park the
// snapshot in the temp dir so an operator can recover it.
func (s *Store) saveFallback(data []byte) {
	fallback := filepath.Join(os.TempDir(), "campwatch-"+filepath.Base(s.path))
	if err := atomic.WriteFile(fallback, bytes.NewReader(data)); err != nil {
		slog.Error("Fallback save failed", "path", fallback, "error", err)
		return
	}
	slog.Warn("Saved tracking snapshot to fallback location", "path", fallback)
}
