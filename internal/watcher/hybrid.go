package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quarryhq/quarry/internal/scanner"
)

// HybridWatcher implements Watcher with fsnotify as the primary
// mechanism and a polling fallback when the OS watcher cannot be
// created. Both feeds converge on one filter and debouncer, so
// consumers cannot tell the mechanisms apart.
type HybridWatcher struct {
	opts      Options
	root      string
	debouncer *Debouncer
	wanted    map[string]bool // normalized extension set, nil accepts all

	native *fsnotify.Watcher
	poller *PollingWatcher

	batches chan []FileEvent
	errs    chan error
	quit    chan struct{}

	mu      sync.RWMutex
	stopped bool
	dropped atomic.Uint64
}

var _ Watcher = (*HybridWatcher)(nil)

// NewHybridWatcher creates a watcher with the given options.
func NewHybridWatcher(opts Options) (*HybridWatcher, error) {
	opts = opts.WithDefaults()
	h := &HybridWatcher{
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		wanted:    extensionFilter(opts.Extensions),
		batches:   make(chan []FileEvent, opts.EventBufferSize),
		errs:      make(chan error, 10),
		quit:      make(chan struct{}),
	}

	native, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("os watcher unavailable, falling back to polling",
			slog.String("error", err.Error()))
		h.poller = NewPollingWatcher(opts.PollInterval)
		return h, nil
	}
	h.native = native
	return h, nil
}

// Start begins watching root recursively. It blocks until ctx is
// cancelled or Stop is called.
func (h *HybridWatcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	h.root = abs

	go h.pumpBatches(ctx)

	if h.native == nil {
		return h.runPolling(ctx)
	}
	return h.runNative(ctx)
}

// runNative registers the directory tree and then routes OS events
// through the shared filter until shutdown.
func (h *HybridWatcher) runNative(ctx context.Context) error {
	if err := h.watchTree(h.root); err != nil {
		return fmt.Errorf("register directories: %w", err)
	}

	for {
		select {
		case ev, ok := <-h.native.Events:
			if !ok {
				return nil
			}
			h.routeNative(ev)
		case err, ok := <-h.native.Errors:
			if !ok {
				return nil
			}
			h.reportError(err)
		case <-h.quit:
			return nil
		case <-ctx.Done():
			_ = h.Stop()
			return ctx.Err()
		}
	}
}

// runPolling feeds the poller's raw events through the shared filter.
// The poller itself blocks in Start; a side goroutine drains its
// channels.
func (h *HybridWatcher) runPolling(ctx context.Context) error {
	go func() {
		for {
			select {
			case ev, ok := <-h.poller.Events():
				if !ok {
					return
				}
				h.process(ev.Path, ev.Operation, ev.IsDir)
			case err, ok := <-h.poller.Errors():
				if !ok {
					return
				}
				h.reportError(err)
			case <-h.quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return h.poller.Start(ctx, h.root)
}

// routeNative maps an fsnotify event onto an Operation and hands it to
// the shared filter.
func (h *HybridWatcher) routeNative(ev fsnotify.Event) {
	rel, err := filepath.Rel(h.root, ev.Name)
	if err != nil {
		rel = ev.Name
	}
	rel = filepath.ToSlash(rel)

	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
		// A new directory must be registered before its contents start
		// changing, or those events are lost.
		if isDir && !hiddenSegment(rel) && !scanner.Matches(rel, h.opts.Exclude) {
			_ = h.native.Add(ev.Name)
		}
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		// Chmod and other metadata-only changes never affect the index.
		return
	}

	h.process(rel, op, isDir)
}

// process applies the config-file, hidden-path, exclude, and extension
// filters, then hands the event to the debouncer. Shared by the native
// and polling paths so both modes see identical filtering.
func (h *HybridWatcher) process(rel string, op Operation, isDir bool) {
	if rel == "" || rel == "." {
		return
	}
	rel = filepath.ToSlash(rel)

	// The project config is a hidden file, so this check runs before the
	// hidden-path filter.
	if !isDir && isConfigFile(rel) {
		h.debouncer.Add(FileEvent{
			Path:      rel,
			AbsPath:   h.abs(rel),
			Operation: OpConfigChange,
			Timestamp: time.Now(),
		})
		return
	}

	if hiddenSegment(rel) || scanner.Matches(rel, h.opts.Exclude) {
		return
	}

	// Extension filtering applies to file creates and modifies only. A
	// deleted entry cannot be inspected, so its path may be a former
	// directory; letting it through costs the consumer at most a no-op
	// removal.
	if !isDir && (op == OpCreate || op == OpModify) && !h.wantsFile(rel) {
		return
	}

	h.debouncer.Add(FileEvent{
		Path:      rel,
		AbsPath:   h.abs(rel),
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

// pumpBatches moves debounced batches to the output channel.
func (h *HybridWatcher) pumpBatches(ctx context.Context) {
	for {
		select {
		case batch, ok := <-h.debouncer.Output():
			if !ok {
				return
			}
			if len(batch) > 0 {
				h.deliver(batch)
			}
		case <-h.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// watchTree registers root and every non-hidden, non-excluded directory
// below it with the OS watcher.
func (h *HybridWatcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(dir string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}

		rel, _ := filepath.Rel(h.root, dir)
		if rel == "." {
			return h.native.Add(dir)
		}

		rel = filepath.ToSlash(rel)
		if hiddenSegment(rel) || scanner.Matches(rel, h.opts.Exclude) {
			return filepath.SkipDir
		}
		return h.native.Add(dir)
	})
}

// wantsFile reports whether the file passes the extension filter.
func (h *HybridWatcher) wantsFile(rel string) bool {
	return len(h.wanted) == 0 || h.wanted[strings.ToLower(path.Ext(rel))]
}

// abs rebuilds the absolute path for a slash-relative one.
func (h *HybridWatcher) abs(rel string) string {
	return filepath.Join(h.root, filepath.FromSlash(rel))
}

// deliver hands a batch to the consumer, dropping it when the buffer is
// full. The send happens under the read lock and is non-blocking, so it
// can never race Stop closing the channel.
func (h *HybridWatcher) deliver(batch []FileEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}

	select {
	case h.batches <- batch:
	default:
		n := h.dropped.Add(1)
		slog.Warn("event buffer full, dropping batch",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", n))
	}
}

// reportError forwards a non-fatal error without ever blocking the
// watch loop.
func (h *HybridWatcher) reportError(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}

	select {
	case h.errs <- err:
	default:
	}
}

// Stop halts the watcher and releases OS resources. Safe to call more
// than once.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil
	}
	h.stopped = true

	close(h.quit)
	h.debouncer.Stop()
	if h.native != nil {
		_ = h.native.Close()
	}
	if h.poller != nil {
		_ = h.poller.Stop()
	}
	close(h.batches)
	close(h.errs)
	return nil
}

// Events returns the channel of debounced event batches.
func (h *HybridWatcher) Events() <-chan []FileEvent {
	return h.batches
}

// Errors returns the channel of non-fatal errors.
func (h *HybridWatcher) Errors() <-chan error {
	return h.errs
}

// DroppedBatches returns how many event batches were discarded because
// the consumer fell behind.
func (h *HybridWatcher) DroppedBatches() uint64 {
	return h.dropped.Load()
}

// WatcherType reports which mechanism is active, "fsnotify" or
// "polling".
func (h *HybridWatcher) WatcherType() string {
	if h.native != nil {
		return "fsnotify"
	}
	return "polling"
}

// isConfigFile reports whether the path names a project config file at
// any depth.
func isConfigFile(rel string) bool {
	base := path.Base(rel)
	return base == ".quarry.yaml" || base == ".quarry.yml"
}

// hiddenSegment reports whether any path component is dot-prefixed,
// which covers .git, .quarry, and editor scratch directories alike.
func hiddenSegment(rel string) bool {
	return slices.ContainsFunc(strings.Split(rel, "/"), func(seg string) bool {
		return len(seg) > 1 && seg[0] == '.'
	})
}

// extensionFilter normalizes a list of extensions into a lookup set.
// Entries gain a leading dot when missing and compare case-insensitively.
func extensionFilter(exts []string) map[string]bool {
	if len(exts) == 0 {
		return nil
	}
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}
