package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	qerrors "github.com/quarryhq/quarry/internal/errors"
)

// schemaVersion is the registry snapshot layout version.
const schemaVersion = "1.0"

// snapshotFile is the persisted registry layout.
type snapshotFile struct {
	Version   string             `json:"version"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Documents map[string]*Record `json:"documents"`
}

// loadSnapshot reads the snapshot at path. A missing file starts a fresh
// registry; an unreadable or unparsable file is an error the caller must
// treat as fatal.
func loadSnapshot(path string) (*snapshotFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		now := time.Now()
		return &snapshotFile{
			Version:   schemaVersion,
			CreatedAt: now,
			UpdatedAt: now,
			Documents: make(map[string]*Record),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry snapshot: %w", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, qerrors.New(qerrors.ErrCodeCorruptRegistry,
			fmt.Sprintf("registry snapshot %s is corrupt", path), err).
			WithSuggestion("run quarry rebuild to regenerate the registry")
	}
	if snap.Version != schemaVersion {
		return nil, qerrors.New(qerrors.ErrCodeCorruptRegistry,
			fmt.Sprintf("registry snapshot %s has unsupported version %q", path, snap.Version), nil).
			WithSuggestion("run quarry rebuild to regenerate the registry")
	}
	if snap.Documents == nil {
		snap.Documents = make(map[string]*Record)
	}
	return &snap, nil
}

// saveLocked writes the snapshot atomically via a temp file and rename.
// Callers must hold the write lock.
func (r *Registry) saveLocked() error {
	r.snap.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(r.snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save registry snapshot: %w", err)
	}
	return nil
}
