package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StatusInfo aggregates index health for the status command.
type StatusInfo struct {
	ProjectName      string    `json:"project_name"`
	TotalDocuments   int       `json:"total_documents"`
	TotalUnits       int       `json:"total_units"`
	PendingDocuments int       `json:"pending_documents,omitempty"`
	FailedDocuments  int       `json:"failed_documents,omitempty"`
	LastIndexed      time.Time `json:"last_indexed"`

	// Storage sizes in bytes.
	RegistrySize int64 `json:"registry_size"`
	StoreSize    int64 `json:"store_size"`
	LexicalSize  int64 `json:"lexical_size"`
	VectorSize   int64 `json:"vector_size"`
	TotalSize    int64 `json:"total_size"`

	// Component status.
	EmbedderProvider string `json:"embedder_provider"`
	EmbedderStatus   string `json:"embedder_status"` // "ready", "offline", "error"
	EmbedderModel    string `json:"embedder_model,omitempty"`
	IndexerStatus    string `json:"indexer_status,omitempty"` // "indexing", "ready", "error"
	IndexerStage     string `json:"indexer_stage,omitempty"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render writes a human-readable status report.
func (r *StatusRenderer) Render(info StatusInfo) error {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("%s", r.styles.Header.Render("Index Status: "+info.ProjectName))
	line("")
	line("  Documents:    %d", info.TotalDocuments)
	line("  Units:        %d", info.TotalUnits)
	if info.PendingDocuments > 0 {
		line("  Pending:      %d", info.PendingDocuments)
	}
	if info.FailedDocuments > 0 {
		line("  Failed:       %d", info.FailedDocuments)
	}
	if !info.LastIndexed.IsZero() {
		line("  Last indexed: %s", formatTime(info.LastIndexed))
	}
	line("")

	line("  Storage:")
	sizes := []struct {
		label string
		bytes int64
	}{
		{"Registry:", info.RegistrySize},
		{"Units:   ", info.StoreSize},
		{"Lexical: ", info.LexicalSize},
		{"Vectors: ", info.VectorSize},
		{"Total:   ", info.TotalSize},
	}
	for _, s := range sizes {
		line("    %s %s", s.label, FormatBytes(s.bytes))
	}
	line("")

	line("  Embedder:")
	line("    Provider: %s", info.EmbedderProvider)
	line("    Status:   %s", r.renderStatus(info.EmbedderStatus))
	if info.EmbedderModel != "" {
		line("    Model:    %s", info.EmbedderModel)
	}

	if info.IndexerStatus != "" {
		line("")
		stage := ""
		if info.IndexerStage != "" {
			stage = " (" + info.IndexerStage + ")"
		}
		line("  Indexer: %s%s", r.renderStatus(info.IndexerStatus), stage)
	}

	_, err := io.WriteString(r.out, b.String())
	return err
}

// RenderJSON writes the status as indented JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.out, string(data))
	return err
}

// renderStatus colors a component status string.
func (r *StatusRenderer) renderStatus(status string) string {
	var style lipgloss.Style
	switch status {
	case "ready", "running":
		style = r.styles.Success
	case "indexing", "offline", "stopped":
		style = r.styles.Warning
	case "error":
		style = r.styles.Error
	default:
		return status
	}
	return style.Render(status)
}

// formatTime renders a timestamp relative to now for recent values.
func formatTime(t time.Time) string {
	diff := time.Since(t)
	if diff < time.Minute {
		return "just now"
	}
	steps := []struct {
		under time.Duration
		per   time.Duration
		unit  string
	}{
		{time.Hour, time.Minute, "minute"},
		{24 * time.Hour, time.Hour, "hour"},
		{7 * 24 * time.Hour, 24 * time.Hour, "day"},
	}
	for _, s := range steps {
		if diff < s.under {
			return agoString(int(diff/s.per), s.unit)
		}
	}
	return t.Format("2006-01-02 15:04")
}

func agoString(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FormatBytes renders a byte count in human-readable form.
func FormatBytes(n int64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
	)
	f := float64(n)
	switch {
	case n >= gb:
		return fmt.Sprintf("%.1f GB", f/gb)
	case n >= mb:
		return fmt.Sprintf("%.1f MB", f/mb)
	case n >= kb:
		return fmt.Sprintf("%.1f KB", f/kb)
	}
	return fmt.Sprintf("%d B", n)
}
