package ui

import (
	"slices"
	"strings"
)

// sparkBlocks are the eight block characters used to draw throughput bars,
// lowest to full height.
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline keeps a ring buffer of throughput samples and renders them as a
// single line of block characters. Not safe for concurrent use; the progress
// tracker guards it with its own lock.
type Sparkline struct {
	samples []float64
	width   int
	head    int
	count   int
	max     float64
}

// NewSparkline creates a sparkline holding width samples. A non-positive
// width falls back to 60.
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 60
	}
	return &Sparkline{samples: make([]float64, width), width: width}
}

// Add records a sample, overwriting the oldest once the buffer is full.
func (s *Sparkline) Add(value float64) {
	if value > s.max {
		s.max = value
	}
	s.samples[s.head] = value
	s.head = (s.head + 1) % s.width

	// Old peaks age out of the buffer, so rescan once per revolution.
	if s.count++; s.count%s.width == 0 {
		s.rescanMax()
	}
}

func (s *Sparkline) rescanMax() {
	s.max = max(slices.Max(s.samples), 1)
}

// Render returns the full-width sparkline, oldest sample first. Positions
// not yet filled render as spaces.
func (s *Sparkline) Render() string {
	return s.RenderWidth(s.width)
}

// RenderWidth renders the most recent samples that fit in width columns,
// padding with spaces when fewer samples exist.
func (s *Sparkline) RenderWidth(width int) string {
	if width <= 0 || width > s.width {
		width = s.width
	}
	if s.count == 0 {
		return strings.Repeat(" ", width)
	}
	if s.max <= 0 {
		s.rescanMax()
	}

	filled := s.count
	if filled > s.width {
		filled = s.width
	}
	// Oldest surviving sample sits at head once the ring has wrapped.
	start := 0
	if s.count >= s.width {
		start = s.head
	}
	skip := 0
	if filled > width {
		skip = filled - width
	}

	var sb strings.Builder
	sb.Grow(width * 3)
	for i := skip; i < filled; i++ {
		idx := (start + i) % s.width
		sb.WriteRune(sparkBlocks[s.level(s.samples[idx])])
	}
	for i := filled - skip; i < width; i++ {
		sb.WriteRune(' ')
	}
	return sb.String()
}

// level maps a sample onto an index into sparkBlocks.
func (s *Sparkline) level(value float64) int {
	if s.max <= 0 {
		return 0
	}
	idx := int(value / s.max * float64(len(sparkBlocks)-1))
	if idx < 0 {
		return 0
	}
	if idx >= len(sparkBlocks) {
		return len(sparkBlocks) - 1
	}
	return idx
}

// Clear resets the buffer to its initial empty state.
func (s *Sparkline) Clear() {
	clear(s.samples)
	s.head, s.count, s.max = 0, 0, 0
}

// Count returns the number of samples recorded since the last Clear.
func (s *Sparkline) Count() int { return s.count }

// Max returns the scaling maximum currently in effect.
func (s *Sparkline) Max() float64 { return s.max }
