package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// PollingWatcher detects changes by rescanning the tree on an interval and
// diffing modification time and size against the previous snapshot. It is
// the fallback for filesystems where fsnotify cannot deliver events.
type PollingWatcher struct {
	interval time.Duration
	root     string

	evs  chan FileEvent
	errs chan error
	quit chan struct{}

	mu      sync.Mutex
	last    map[string]entryState
	stopped bool
}

// entryState is the per-path fingerprint the diff keys on. Content is
// never read; a same-size same-mtime rewrite goes undetected, which the
// poll interval already makes a best-effort mechanism anyway.
type entryState struct {
	mod  time.Time
	size int64
	dir  bool
}

// NewPollingWatcher creates a polling watcher with the given rescan
// interval.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		last:     make(map[string]entryState),
		evs:      make(chan FileEvent, 100),
		errs:     make(chan error, 10),
		quit:     make(chan struct{}),
	}
}

// Start establishes a baseline snapshot and then rescans until ctx is
// cancelled or Stop is called.
func (p *PollingWatcher) Start(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	p.root = abs

	if err := p.baseline(); err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := p.diff(); err != nil {
				p.report(err)
			}
		case <-p.quit:
			return nil
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		}
	}
}

// Stop halts polling and closes the channels. Safe to call more than once.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	p.stopped = true

	close(p.quit)
	close(p.evs)
	close(p.errs)
	return nil
}

// Events returns the channel of raw (undebounced) file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.evs
}

// Errors returns the channel of scan errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errs
}

// baseline records the current tree state without emitting events.
func (p *PollingWatcher) baseline() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.walk(func(rel string, state entryState) {
		p.last[rel] = state
	})
}

// diff rescans the tree, emits events for anything that changed since the
// previous snapshot, and installs the new snapshot.
func (p *PollingWatcher) diff() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string]entryState, len(p.last))
	err := p.walk(func(rel string, state entryState) {
		next[rel] = state
		prev, ok := p.last[rel]
		switch {
		case !ok:
			p.emit(rel, OpCreate, state.dir)
		case prev.mod != state.mod || prev.size != state.size:
			p.emit(rel, OpModify, state.dir)
		}
	})
	if err != nil {
		return fmt.Errorf("rescan tree: %w", err)
	}

	for rel, prev := range p.last {
		if _, still := next[rel]; !still {
			p.emit(rel, OpDelete, prev.dir)
		}
	}

	p.last = next
	return nil
}

// walk visits every entry under the root, pruning hidden directories such
// as .git and .quarry so their contents never enter the snapshot. Hidden
// files at any level stay visible; the hybrid layer decides what to do
// with them (the project config file is one).
func (p *PollingWatcher) walk(visit func(rel string, state entryState)) error {
	return filepath.WalkDir(p.root, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries drop out of the snapshot
		}
		rel, err := filepath.Rel(p.root, name)
		if err != nil || rel == "." {
			return nil
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		visit(filepath.ToSlash(rel), entryState{
			mod:  info.ModTime(),
			size: info.Size(),
			dir:  d.IsDir(),
		})
		return nil
	})
}

// report forwards a scan error, dropping it when nobody is draining.
func (p *PollingWatcher) report(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	select {
	case p.errs <- err:
	default:
	}
}

// emit sends an event without blocking the scan. Must be called with the
// lock held.
func (p *PollingWatcher) emit(rel string, op Operation, dir bool) {
	if p.stopped {
		return
	}
	ev := FileEvent{Path: rel, Operation: op, IsDir: dir, Timestamp: time.Now()}
	select {
	case p.evs <- ev:
	default:
		slog.Warn("poll buffer full, dropping event",
			slog.String("path", rel),
			slog.String("op", op.String()))
	}
}
