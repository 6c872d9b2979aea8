package watcher

import (
	"context"
	"time"
)

// Operation identifies the kind of filesystem change.
type Operation int

const (
	// OpCreate indicates a new file or directory appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing file's content changed.
	OpModify
	// OpDelete indicates a file or directory was removed.
	OpDelete
	// OpRename indicates a file or directory was renamed away. If the new
	// name is still inside the watched root it arrives as a separate
	// OpCreate event.
	OpRename
	// OpConfigChange indicates the project config file (.quarry.yaml or
	// .quarry.yml) was modified. Consumers reload settings instead of
	// treating it as document content.
	OpConfigChange
)

var opNames = [...]string{
	OpCreate:       "CREATE",
	OpModify:       "MODIFY",
	OpDelete:       "DELETE",
	OpRename:       "RENAME",
	OpConfigChange: "CONFIG_CHANGE",
}

// String returns the uppercase event name used in logs.
func (op Operation) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return "UNKNOWN"
	}
	return opNames[op]
}

// FileEvent is a single debounced filesystem change.
type FileEvent struct {
	// Path is relative to the watched root, slash-separated.
	Path string

	// AbsPath is the absolute path of the changed file.
	AbsPath string

	// Operation is the coalesced change type.
	Operation Operation

	// IsDir reports whether the event is for a directory. Delete and
	// rename events report false when the entry can no longer be
	// inspected.
	IsDir bool

	// Timestamp is when the change was observed.
	Timestamp time.Time
}

// Watcher delivers batches of debounced file events for a directory tree.
type Watcher interface {
	// Start begins watching path recursively. It blocks until ctx is
	// cancelled or Stop is called.
	Start(ctx context.Context, path string) error

	// Stop halts the watcher and releases OS resources. Safe to call
	// more than once.
	Stop() error

	// Events returns the channel of debounced event batches. The channel
	// is closed when the watcher stops.
	Events() <-chan []FileEvent

	// Errors returns the channel of non-fatal errors. The watcher keeps
	// running after sending one. Closed when the watcher stops.
	Errors() <-chan error
}

// Options configures watcher behavior.
type Options struct {
	// DebounceWindow is how long a path must stay quiet before its
	// pending event is flushed. Default: 500ms.
	DebounceWindow time.Duration

	// PollInterval is the rescan period when falling back to polling.
	// Default: 5s.
	PollInterval time.Duration

	// EventBufferSize is the capacity of the batch channel. When the
	// consumer lags, whole batches are dropped and counted rather than
	// blocking the watch loop. Default: 256.
	EventBufferSize int

	// Extensions limits file events to these extensions (".md", ".pdf").
	// Empty means every file. Directory events always pass the filter.
	Extensions []string

	// Exclude lists scan-style patterns for paths to ignore, matched
	// with the same rules the scanner applies during a batch scan.
	Exclude []string
}

// DefaultOptions returns the options used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 256,
	}
}

// WithDefaults returns a copy with defaults applied to zero fields.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
