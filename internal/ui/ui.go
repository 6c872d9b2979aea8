// Package ui renders indexing progress and status: a live TUI for
// interactive terminals, plain line output for pipes and CI.
package ui

import (
	"context"
	"io"
	"os"
	"slices"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage identifies one step of the indexing pipeline.
type Stage int

const (
	StageScanning Stage = iota // document discovery
	StageParsing               // per-document text extraction
	StageChunking              // unit splitting
	StageEmbedding             // vector generation
	StageIndexing              // persistence and index registration
	StageComplete
)

// stageLabels pairs each stage with its display name and the bracketed
// tag plain output uses.
var stageLabels = [...]struct{ name, tag string }{
	StageScanning:  {"Scanning", "SCAN"},
	StageParsing:   {"Parsing", "PARSE"},
	StageChunking:  {"Chunking", "CHUNK"},
	StageEmbedding: {"Embedding", "EMBED"},
	StageIndexing:  {"Indexing", "INDEX"},
	StageComplete:  {"Complete", "DONE"},
}

// String returns the human-readable stage name.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageLabels) {
		return "Unknown"
	}
	return stageLabels[s].name
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	if s < 0 || int(s) >= len(stageLabels) {
		return "???"
	}
	return stageLabels[s].tag
}

// ProgressEvent reports advancement within a stage. Current and Total
// count units of whatever the stage processes; Total zero means the
// stage has no known end yet.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string // document being worked on, if any
	Message     string // free-form note, takes precedence over CurrentFile
}

// ErrorEvent reports a per-file failure or warning.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool // warnings are counted separately and do not fail the run
}

// EmbedderInfo names the embedding backend for the completion summary.
type EmbedderInfo struct {
	Provider   string
	Model      string
	Dimensions int
}

// CompletionStats is the final tally shown when indexing finishes.
type CompletionStats struct {
	Documents int
	Units     int
	Skipped   int
	Failed    int
	Duration  time.Duration
	Embedder  EmbedderInfo
}

// Renderer is what the indexing pipeline drives to show progress.
// UpdateProgress, AddError, and Complete may be called from any
// goroutine between Start and Stop.
type Renderer interface {
	// Start begins rendering. For the TUI this takes over the terminal
	// until Stop.
	Start(ctx context.Context) error

	// UpdateProgress reports stage advancement.
	UpdateProgress(event ProgressEvent)

	// AddError records a per-file failure or warning.
	AddError(event ErrorEvent)

	// Complete shows the final summary.
	Complete(stats CompletionStats)

	// Stop tears the renderer down and restores the terminal.
	Stop() error
}

// Config selects and tunes the renderer.
type Config struct {
	Output       io.Writer // destination stream, usually os.Stdout
	ForcePlain   bool      // skip the TUI even on a terminal
	NoColor      bool
	SpinnerStyle string // "dots", "line", "minidot", "points"
	ProjectDir   string // shown in the TUI header when set
}

// ConfigOption adjusts a Config in NewConfig.
type ConfigOption func(*Config)

// WithForcePlain forces plain line output even on a terminal.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithSpinnerStyle selects the spinner animation by name.
func WithSpinnerStyle(style string) ConfigOption {
	return func(c *Config) { c.SpinnerStyle = style }
}

// WithProjectDir puts the project path in the TUI header.
func WithProjectDir(dir string) ConfigOption {
	return func(c *Config) { c.ProjectDir = dir }
}

// NewConfig builds a renderer config for the given output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output, SpinnerStyle: "dots"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer picks the display for the current environment: the live
// TUI when output is an interactive terminal, plain line output for
// pipes, CI, and forced-plain runs.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || DetectCI() || !IsTTY(cfg.Output) {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY reports whether w writes to an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// DetectNoColor reports whether NO_COLOR is set in the environment.
func DetectNoColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}

// DetectCI reports whether one of the common CI markers is set.
func DetectCI() bool {
	markers := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	return slices.ContainsFunc(markers, func(v string) bool {
		_, set := os.LookupEnv(v)
		return set
	})
}
