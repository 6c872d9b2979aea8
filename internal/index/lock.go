package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked indicates another process holds the data directory writer lock.
var ErrLocked = errors.New("index: data directory locked by another writer")

// writerLock guards the data directory against concurrent writers across
// processes. Readers are unaffected; only indexing and rebuilds take it.
type writerLock struct {
	fl     *flock.Flock
	locked bool
}

// acquireWriterLock takes a non-blocking exclusive lock under dataDir. An
// empty dataDir disables locking so in-memory setups stay free of
// filesystem state.
func acquireWriterLock(dataDir string) (*writerLock, error) {
	if dataDir == "" {
		return &writerLock{}, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	fl := flock.New(filepath.Join(dataDir, ".writer.lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire writer lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &writerLock{fl: fl, locked: true}, nil
}

// release drops the lock. Safe on a disabled or already released lock.
func (l *writerLock) release() {
	if l == nil || !l.locked {
		return
	}
	_ = l.fl.Unlock()
	l.locked = false
}
