package async

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// lockFileName marks an active run inside the data dir. A leftover lock
// after process death is how stale runs are detected.
const lockFileName = "indexing.lock"

// IndexFunc is the indexing work a BackgroundIndexer runs. It reports
// through the supplied progress tracker and honors ctx cancellation.
type IndexFunc func(ctx context.Context, progress *Progress) error

// IndexerConfig configures a BackgroundIndexer.
type IndexerConfig struct {
	// DataDir receives the run lock and the persisted status file.
	DataDir string

	// FlushInterval is how often the status file is rewritten while the
	// run is active. Zero means once per second.
	FlushInterval time.Duration
}

// BackgroundIndexer runs an IndexFunc in a goroutine, maintains a lock
// file marking the run, and keeps the status file current so other
// processes can observe progress.
type BackgroundIndexer struct {
	cfg      IndexerConfig
	progress *Progress

	// IndexFunc is the work to run. Commands wrap an orchestrator batch
	// here; tests inject stubs.
	IndexFunc IndexFunc

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	active bool
	runErr error
}

// NewBackgroundIndexer creates an indexer that has not started yet.
func NewBackgroundIndexer(cfg IndexerConfig) *BackgroundIndexer {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	return &BackgroundIndexer{
		cfg:      cfg,
		progress: NewProgress(),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Progress returns the tracker for this run.
func (b *BackgroundIndexer) Progress() *Progress {
	return b.progress
}

// IsRunning reports whether the run is still active.
func (b *BackgroundIndexer) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Start launches the run in a background goroutine and returns
// immediately. Calling Start on a running indexer is a no-op; use Wait
// to block until completion.
func (b *BackgroundIndexer) Start(ctx context.Context) {
	if !b.begin() {
		return
	}
	go b.run(ctx)
}

// begin flips the indexer to active, reporting false when it already was.
func (b *BackgroundIndexer) begin() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active {
		return false
	}
	b.active = true
	return true
}

func (b *BackgroundIndexer) run(parent context.Context) {
	ctx, cancel := b.mergeStop(parent)
	defer cancel()

	err := b.execute(ctx)
	if err != nil {
		b.progress.SetError(err.Error())
	} else {
		b.progress.SetReady()
	}
	b.flush()

	b.mu.Lock()
	b.runErr = err
	b.active = false
	b.mu.Unlock()
	close(b.done)
}

// execute holds the run lock for the duration of the indexing work and
// keeps the status file fresh while it runs.
func (b *BackgroundIndexer) execute(ctx context.Context) error {
	release, err := b.acquireRunLock()
	if err != nil {
		return err
	}
	defer release()

	go b.flushLoop(ctx)

	if b.IndexFunc == nil {
		return nil
	}
	return b.IndexFunc(ctx, b.progress)
}

// mergeStop derives a context that is cancelled by the parent or by Stop,
// whichever comes first.
func (b *BackgroundIndexer) mergeStop(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-b.quit:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// acquireRunLock writes the timestamped lock file and returns its
// release function.
func (b *BackgroundIndexer) acquireRunLock() (func(), error) {
	if err := os.MkdirAll(b.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(b.cfg.DataDir, lockFileName)
	stamp := []byte(time.Now().Format(time.RFC3339))
	if err := os.WriteFile(path, stamp, 0o644); err != nil {
		return nil, fmt.Errorf("write run lock: %w", err)
	}
	return func() { _ = os.Remove(path) }, nil
}

// flushLoop rewrites the status file on an interval until the run ends.
func (b *BackgroundIndexer) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.flush()
		case <-ctx.Done():
			return
		}
	}
}

func (b *BackgroundIndexer) flush() {
	if err := WriteStatusFile(b.cfg.DataDir, b.progress.Snapshot()); err != nil {
		slog.Warn("status_file_write_failed", slog.String("error", err.Error()))
	}
}

// Stop signals the run to cancel and waits for it to finish. A no-op
// when nothing is running, and safe to call more than once.
func (b *BackgroundIndexer) Stop() {
	if !b.IsRunning() {
		return
	}
	b.stopOnce.Do(func() { close(b.quit) })
	<-b.done
}

// Wait blocks until the run completes and returns its error, if any.
func (b *BackgroundIndexer) Wait() error {
	<-b.done
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runErr
}

// HasIncompleteLock reports whether a previous run left its lock behind,
// which means it died before finishing and the indexes may be stale.
func HasIncompleteLock(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, lockFileName))
	return err == nil
}
