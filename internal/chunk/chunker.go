// Package chunk splits page text into retrieval units sized by content
// density. Instead of overlapping text between units, each unit carries a
// short extractive summary of its predecessor, which preserves continuity at
// a fraction of the token cost.
package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"

	qerrors "github.com/quarryhq/quarry/internal/errors"
)

// Config holds the sizing parameters. All sizes count runes, not bytes, so
// non-Latin scripts chunk the same as ASCII.
type Config struct {
	// MinSize and MaxSize bound the per-page unit size.
	MinSize int
	MaxSize int
	// SizeStep is the granularity the computed size is floored to.
	SizeStep int
	// ScaleFactor controls how fast unit size grows with page length:
	// size = MinSize + pageChars/ScaleFactor before clamping.
	ScaleFactor int
	// SummaryMaxChars caps the carried context summary.
	SummaryMaxChars int
}

// DefaultConfig returns the standard sizing parameters.
func DefaultConfig() Config {
	return Config{
		MinSize:         256,
		MaxSize:         1536,
		SizeStep:        64,
		ScaleFactor:     8,
		SummaryMaxChars: 150,
	}
}

// Unit is one chunk of a page. The orchestrator annotates it further
// (section path, content type, topics) before persisting.
type Unit struct {
	// Text is what downstream consumers see: RawText, possibly prefixed
	// with the carried context summary.
	Text string
	// RawText is the page slice itself, trimmed of edge whitespace.
	RawText string
	// PreviousSummary is the context carried into this unit, empty for the
	// first unit of an uncarried page.
	PreviousSummary string
	PageNumber      int
	IndexInPage     int
	// CharCount is the rune length of the consumed page slice, including
	// the boundary whitespace trimmed from RawText.
	CharCount int
	// SizeClass is the unit size chosen for this unit's page.
	SizeClass  int
	HasContext bool
}

// Summarizer produces the context summary carried to the next unit.
type Summarizer func(text string) string

// Option configures a Chunker.
type Option func(*Chunker)

// WithSummarizer replaces the built-in extractive summary.
func WithSummarizer(fn Summarizer) Option {
	return func(c *Chunker) { c.summarize = fn }
}

// Chunker splits pages into units. Chunking is sequential within a document
// because context flows from each unit to the next.
type Chunker struct {
	cfg       Config
	summarize Summarizer
}

// New validates the configuration and returns a chunker. Bounds errors are
// fatal: a chunker that cannot honor its size contract must never start.
func New(cfg Config, opts ...Option) (*Chunker, error) {
	bounds := func(format string, args ...any) error {
		return qerrors.New(qerrors.ErrCodeChunkBounds, fmt.Sprintf(format, args...), nil)
	}
	if cfg.MinSize <= 0 {
		return nil, bounds("min size must be positive, got %d", cfg.MinSize)
	}
	if cfg.MaxSize < cfg.MinSize {
		return nil, bounds("max size %d must be >= min size %d", cfg.MaxSize, cfg.MinSize)
	}
	if cfg.SizeStep <= 0 {
		return nil, bounds("size step must be positive, got %d", cfg.SizeStep)
	}
	if cfg.ScaleFactor <= 0 {
		return nil, bounds("scale factor must be positive, got %d", cfg.ScaleFactor)
	}
	if cfg.SummaryMaxChars < 0 {
		return nil, bounds("summary max chars must not be negative, got %d", cfg.SummaryMaxChars)
	}

	c := &Chunker{cfg: cfg}
	c.summarize = c.extractiveSummary
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SizeForPage computes the unit size for a page of pageChars runes: scaled
// from the minimum by page length, clamped to [MinSize, MaxSize], floored to
// the step, and never below the minimum.
func (c *Chunker) SizeForPage(pageChars int) int {
	size := c.cfg.MinSize + pageChars/c.cfg.ScaleFactor
	if size > c.cfg.MaxSize {
		size = c.cfg.MaxSize
	}
	if size < c.cfg.MinSize {
		size = c.cfg.MinSize
	}
	size = (size / c.cfg.SizeStep) * c.cfg.SizeStep
	if size < c.cfg.MinSize {
		size = c.cfg.MinSize
	}
	return size
}

// boundarySeparators are tried in preference order: paragraph break, line
// break, then sentence terminators.
var boundarySeparators = []string{"\n\n", "\n", ". ", "। ", "؟ ", "? "}

// boundaryCut returns the rune offset to cut a full-size slice at its most
// natural boundary. Only boundaries past half of size qualify, which
// guarantees forward progress.
func boundaryCut(slice []rune, size int) (int, bool) {
	s := string(slice)
	for _, sep := range boundarySeparators {
		bytePos := strings.LastIndex(s, sep)
		if bytePos < 0 {
			continue
		}
		runePos := utf8.RuneCountInString(s[:bytePos])
		if float64(runePos) > float64(size)*0.5 {
			return runePos + utf8.RuneCountInString(sep), true
		}
	}
	return 0, false
}

// ChunkPage splits one page into units, threading the context summary from
// unit to unit. incomingContext seeds the first unit; the returned context
// is what the next page should receive (unchanged when the page produced no
// units). An empty or whitespace-only page yields no units; a page shorter
// than the unit size yields exactly one.
func (c *Chunker) ChunkPage(pageText string, pageNumber int, incomingContext string) ([]Unit, string) {
	size := c.SizeForPage(utf8.RuneCountInString(pageText))

	text := []rune(strings.TrimSpace(pageText))
	if len(text) == 0 {
		return nil, incomingContext
	}

	var units []Unit
	context := incomingContext
	start := 0
	for idx := 0; start < len(text); idx++ {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		slice := text[start:end]

		if end < len(text) {
			if cut, ok := boundaryCut(slice, size); ok {
				slice = slice[:cut]
				end = start + cut
			}
		}

		raw := strings.TrimSpace(string(slice))
		unit := Unit{
			Text:            raw,
			RawText:         raw,
			PreviousSummary: context,
			PageNumber:      pageNumber,
			IndexInPage:     idx,
			CharCount:       len(slice),
			SizeClass:       size,
			HasContext:      context != "",
		}
		if context != "" {
			unit.Text = fmt.Sprintf("[context: %s]\n\n%s", context, raw)
		}
		units = append(units, unit)

		context = c.summarize(raw)
		start = end
	}

	return units, context
}

// ChunkDocument chunks every page in order. When carryAcrossPages is set,
// the last unit's summary seeds the first unit of the next page, skipping
// over empty pages; otherwise each page starts with empty context.
func (c *Chunker) ChunkDocument(pages []string, carryAcrossPages bool) []Unit {
	var all []Unit
	context := ""
	for i, page := range pages {
		incoming := ""
		if carryAcrossPages {
			incoming = context
		}
		units, outgoing := c.ChunkPage(page, i+1, incoming)
		all = append(all, units...)
		if carryAcrossPages {
			context = outgoing
		}
	}
	return all
}

// PagePlan describes how one page would be chunked without chunking it.
type PagePlan struct {
	Page           int
	CharCount      int
	SizeClass      int
	EstimatedUnits int
}

// Plan previews the chunking of a document, page by page.
func (c *Chunker) Plan(pages []string) []PagePlan {
	plans := make([]PagePlan, len(pages))
	for i, page := range pages {
		chars := utf8.RuneCountInString(page)
		size := c.SizeForPage(chars)
		estimated := 0
		if strings.TrimSpace(page) != "" {
			estimated = chars / size
			if estimated < 1 {
				estimated = 1
			}
		}
		plans[i] = PagePlan{
			Page:           i + 1,
			CharCount:      chars,
			SizeClass:      size,
			EstimatedUnits: estimated,
		}
	}
	return plans
}
