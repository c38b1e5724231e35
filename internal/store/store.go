// Package store persists the last fully-successful snapshot. The cache
// masks transient total outages: a new run that fails to price an
// instrument borrows the cached current value (only) so the report
// still renders, while percentages are left absent — a stale trend
// figure is worse than a missing one.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/falcoza/marketreporternew/internal/market"
)

// SnapshotStore is the injected persistence dependency of the
// aggregator. Load returning (nil, nil) means no snapshot has been
// saved yet.
type SnapshotStore interface {
	Load() (*market.Snapshot, error)
	Save(*market.Snapshot) error
}

// FileStore persists the snapshot as a single JSON document. The file
// is read once at the start of a run and written at most once at the
// end; runs do not overlap, so no locking is needed.
type FileStore struct {
	Path string
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the cached snapshot. A missing file is not an error.
func (s *FileStore) Load() (*market.Snapshot, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot cache: %w", err)
	}

	var snap market.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("corrupt snapshot cache %s: %w", s.Path, err)
	}
	return &snap, nil
}

// Save writes the snapshot atomically (write-then-rename).
func (s *FileStore) Save(snap *market.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot cache: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("failed to replace snapshot cache: %w", err)
	}
	return nil
}

// MemStore is an in-memory SnapshotStore for tests and dry runs.
type MemStore struct {
	Snapshot *market.Snapshot
}

// Load returns the held snapshot.
func (s *MemStore) Load() (*market.Snapshot, error) { return s.Snapshot, nil }

// Save replaces the held snapshot.
func (s *MemStore) Save(snap *market.Snapshot) error {
	s.Snapshot = snap
	return nil
}

// Backfill copies the cached Today value into each row of partial
// whose Today is null, marking the borrowed source. Percentage fields
// are never copied: they are recomputed fresh on the next successful
// run. Returns the number of rows backfilled.
func Backfill(partial, cached *market.Snapshot) int {
	if partial == nil || cached == nil {
		return 0
	}
	filled := 0
	for i, row := range partial.Rows {
		if row.Today.Valid {
			continue
		}
		old, ok := cached.Row(row.ID)
		if !ok || !old.Today.Valid {
			continue
		}
		partial.Rows[i].Today = old.Today
		partial.Rows[i].Source = old.Source + " (cached)"
		filled++
	}
	return filled
}
