package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

// LogEntry is one parsed line of the JSON log.
type LogEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Msg     string         `json:"msg"`
	Attrs   map[string]any `json:"-"`
	Raw     string         `json:"-"`
	IsValid bool           `json:"-"`
}

// ViewerConfig filters and styles viewer output.
type ViewerConfig struct {
	// Level drops entries below this level when set.
	Level string

	// Pattern drops lines it does not match when set.
	Pattern *regexp.Regexp

	// NoColor disables ANSI level coloring.
	NoColor bool
}

// Viewer reads the JSON log back for the logs command: tail, follow,
// filter, render.
type Viewer struct {
	cfg ViewerConfig
	out io.Writer
}

// NewViewer builds a viewer writing rendered entries to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	return &Viewer{cfg: cfg, out: out}
}

// Tail returns the entries among the last n lines of the log that pass
// the configured filters.
func (v *Viewer) Tail(path string, n int) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if n <= 0 {
		return nil, nil
	}

	// Ring of the last n lines; log files can be large.
	ring := make([]string, 0, n)
	next := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		if len(ring) < n {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[next] = scanner.Text()
		next = (next + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	lines := append(ring[next:], ring[:next]...)

	var entries []LogEntry
	for _, line := range lines {
		if entry := v.parseLine(line); v.matchesFilter(entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// followPollInterval is how often Follow checks the file for new lines.
const followPollInterval = 100 * time.Millisecond

// Follow streams entries appended to the log file onto entries until
// the context is cancelled. It starts at the current end of the file.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- LogEntry) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek log end: %w", err)
	}
	rd := bufio.NewReader(file)
	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !v.forward(ctx, rd, entries) {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// forward pumps every complete line currently buffered in rd through the
// filters onto entries. It reports false when the context ends mid-send.
func (v *Viewer) forward(ctx context.Context, rd *bufio.Reader, entries chan<- LogEntry) bool {
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return true
		}
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			continue
		}
		entry := v.parseLine(line)
		if !v.matchesFilter(entry) {
			continue
		}
		select {
		case entries <- entry:
		case <-ctx.Done():
			return false
		}
	}
}

// FormatEntry renders one entry as a display line. Lines that never
// parsed render raw.
func (v *Viewer) FormatEntry(entry LogEntry) string {
	if !entry.IsValid {
		return entry.Raw
	}

	var b strings.Builder
	b.WriteString(entry.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(v.formatLevel(entry.Level))
	b.WriteByte(' ')
	b.WriteString(entry.Msg)

	// Attributes render in key order so repeated views line up.
	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Attrs[k])
	}
	return b.String()
}

// Print renders entries to the viewer's writer, one line each.
func (v *Viewer) Print(entries []LogEntry) {
	for _, e := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(e))
	}
}

// parseLine decodes one JSON log line. Non-JSON lines come back with
// IsValid false and the raw text preserved.
func (v *Viewer) parseLine(line string) LogEntry {
	entry := LogEntry{Raw: line}

	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return entry
	}
	entry.IsValid = true

	if s, ok := fields["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			entry.Time = t
		}
	}
	entry.Level, _ = fields["level"].(string)
	entry.Msg, _ = fields["msg"].(string)

	delete(fields, "time")
	delete(fields, "level")
	delete(fields, "msg")
	entry.Attrs = fields
	return entry
}

// matchesFilter applies the level floor and the pattern filter.
func (v *Viewer) matchesFilter(entry LogEntry) bool {
	if v.cfg.Level != "" && LevelFromString(entry.Level) < LevelFromString(v.cfg.Level) {
		return false
	}
	if v.cfg.Pattern != nil && !v.cfg.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}

// formatLevel pads or truncates to the fixed five-column level field.
func (v *Viewer) formatLevel(level string) string {
	padded := fmt.Sprintf("%-5.5s", strings.ToUpper(level))
	if v.cfg.NoColor {
		return padded
	}
	switch strings.ToLower(level) {
	case "debug":
		return "\033[90m" + padded + "\033[0m"
	case "info":
		return "\033[32m" + padded + "\033[0m"
	case "warn", "warning":
		return "\033[33m" + padded + "\033[0m"
	case "error":
		return "\033[31m" + padded + "\033[0m"
	default:
		return padded
	}
}
