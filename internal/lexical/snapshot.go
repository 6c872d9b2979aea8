package lexical

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	qerrors "github.com/quarryhq/quarry/internal/errors"
)

// snapshotVersion guards the persisted layout. Bump on incompatible changes
// to the snapshot struct.
const snapshotVersion = 1

// snapshot is the gob form of a built index: the tokenized corpus plus the
// parameters it was built with. Scoring state is recomputed on load, so the
// snapshot never goes stale against the scoring code.
type snapshot struct {
	Version int
	K1      float64
	B       float64
	Docs    []snapshotDoc
}

type snapshotDoc struct {
	ID     string
	Domain string
	Tokens []string
}

// Save writes the index to path atomically via a temp file and rename.
// Saving an unbuilt index returns ErrNotBuilt.
func (i *Index) Save(path string) error {
	i.mu.RLock()
	st := i.state
	k1, b := i.k1, i.b
	i.mu.RUnlock()

	if st == nil {
		return ErrNotBuilt
	}

	snap := snapshot{Version: snapshotVersion, K1: k1, B: b}
	snap.Docs = make([]snapshotDoc, len(st.docs))
	for n, d := range st.docs {
		snap.Docs[n] = snapshotDoc{ID: d.id, Domain: d.domain, Tokens: d.tokens}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize snapshot: %w", err)
	}

	slog.Debug("lexical_snapshot_saved",
		slog.String("path", path),
		slog.Int("documents", len(snap.Docs)))

	return nil
}

// Load replaces the index contents from a snapshot written by Save. The
// persisted K1 and B replace the configured values so loaded scores match
// the scores at save time. A snapshot that cannot be decoded is unusable;
// the index keeps its previous state and the caller must rebuild. A missing
// file is reported via the wrapped os error, detectable with
// errors.Is(err, fs.ErrNotExist).
func (i *Index) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return qerrors.New(qerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("snapshot %s is corrupt", path), err).
			WithSuggestion("run quarry rebuild to regenerate the index")
	}
	if snap.Version != snapshotVersion {
		return qerrors.New(qerrors.ErrCodeCorruptIndex,
			fmt.Sprintf("snapshot %s has unsupported version %d", path, snap.Version), nil).
			WithSuggestion("run quarry rebuild to regenerate the index")
	}

	docs := make([]indexedDoc, len(snap.Docs))
	for n, d := range snap.Docs {
		tf := make(map[string]int, len(d.Tokens))
		for _, t := range d.Tokens {
			tf[t]++
		}
		docs[n] = indexedDoc{id: d.ID, domain: d.Domain, tokens: d.Tokens, tf: tf}
	}
	st := buildState(docs)

	i.mu.Lock()
	i.state = st
	i.k1 = snap.K1
	i.b = snap.B
	i.mu.Unlock()

	slog.Debug("lexical_snapshot_loaded",
		slog.String("path", path),
		slog.Int("documents", len(docs)))

	return nil
}
