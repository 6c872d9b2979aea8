package watcher

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// Debouncer coalesces rapid file events so a burst of saves becomes one
// indexing decision per path. Events for the same path inside the window
// merge by operation sequence:
//   - CREATE then MODIFY = CREATE (file is still new to the index)
//   - CREATE then DELETE = nothing (file never became visible)
//   - MODIFY then DELETE = DELETE
//   - DELETE then CREATE = MODIFY (file was replaced in place)
//
// Anything else keeps the latest event.
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingEvent
	output  chan []FileEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event FileEvent
	// firstOp is the operation that opened this window for the path; the
	// merge rules key off it rather than the latest operation.
	firstOp Operation
}

// NewDebouncer creates a debouncer that flushes pending events once the
// window elapses without new activity.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []FileEvent, 10),
	}
}

// Add records an event for debouncing, merging it with any pending event
// for the same path.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	existing, ok := d.pending[event.Path]
	if !ok {
		d.pending[event.Path] = &pendingEvent{event: event, firstOp: event.Operation}
		d.scheduleFlush()
		return
	}

	merged, drop := coalesce(existing.firstOp, existing.event, event)
	if drop {
		delete(d.pending, event.Path)
	} else {
		existing.event = merged
	}
	d.scheduleFlush()
}

// coalesce merges a pending event with a newly arrived one for the same
// path. drop reports that the pair cancelled out entirely.
func coalesce(firstOp Operation, pending, incoming FileEvent) (merged FileEvent, drop bool) {
	switch firstOp {
	case OpCreate:
		switch incoming.Operation {
		case OpModify:
			// Still unseen by consumers, so the create stands.
			return pending, false
		case OpDelete:
			return FileEvent{}, true
		}
	case OpDelete:
		if incoming.Operation == OpCreate {
			incoming.Operation = OpModify
			return incoming, false
		}
	}
	return incoming, false
}

// scheduleFlush restarts the window timer. Must be called with the lock
// held.
func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits every pending event as one path-sorted batch. Sorting
// keeps batch contents deterministic for consumers and logs.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, p := range d.pending {
		batch = append(batch, p.event)
	}
	clear(d.pending)
	slices.SortFunc(batch, func(a, b FileEvent) int {
		return strings.Compare(a.Path, b.Path)
	})

	select {
	case d.output <- batch:
	default:
		slog.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of debounced event batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop halts the debouncer and closes the output channel. Safe to call
// more than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
