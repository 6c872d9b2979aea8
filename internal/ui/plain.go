package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// PlainRenderer writes one line per event with no ANSI escapes, for
// pipes and CI logs.
type PlainRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start and Stop are no-ops; plain output holds no terminal state.
func (r *PlainRenderer) Start(context.Context) error { return nil }

func (r *PlainRenderer) Stop() error { return nil }

// UpdateProgress writes lines like "[EMBED] 120/400 - docs/guide.md".
// Events with no total and no detail are dropped rather than printed
// as empty brackets.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	detail := event.Message
	if detail == "" {
		detail = event.CurrentFile
	}

	switch {
	case event.Total > 0:
		r.emit("[%s] %d/%d - %s", event.Stage.Icon(), event.Current, event.Total, detail)
	case detail != "":
		r.emit("[%s] %s", event.Stage.Icon(), detail)
	}
}

func (r *PlainRenderer) AddError(event ErrorEvent) {
	tag := "ERROR"
	if event.IsWarn {
		tag = "WARN"
	}
	if event.File == "" {
		r.emit("%s: %v", tag, event.Err)
		return
	}
	r.emit("%s: %s: %v", tag, event.File, event.Err)
}

// Complete prints the final summary and, when known, the embedder line.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	var b strings.Builder
	fmt.Fprintf(&b, "Complete: %d documents, %d units indexed in %s",
		stats.Documents, stats.Units, stats.Duration.Round(100*time.Millisecond))
	if stats.Skipped > 0 || stats.Failed > 0 {
		fmt.Fprintf(&b, " (%d skipped, %d failed)", stats.Skipped, stats.Failed)
	}
	r.emit("%s", b.String())

	if emb := stats.Embedder; emb.Provider != "" {
		r.emit("Embedder: %s (%s, %d dims)", emb.Provider, emb.Model, emb.Dimensions)
	}
}

// emit writes one line; the lock keeps concurrent events unscrambled.
func (r *PlainRenderer) emit(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.out, format+"\n", args...)
}

var _ Renderer = (*PlainRenderer)(nil)
