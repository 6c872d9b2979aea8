package parse

import (
	"context"
	"strings"
)

// TextParser reads plain text as a single page with no structure markers.
type TextParser struct{}

// NewTextParser returns a plain-text parser.
func NewTextParser() *TextParser { return &TextParser{} }

// Extensions implements Parser.
func (p *TextParser) Extensions() []string { return []string{".txt", ".text"} }

// Parse implements Parser.
func (p *TextParser) Parse(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := readNormalized(path)
	if err != nil {
		return nil, err
	}
	return singlePageDocument(path, "text", strings.TrimSpace(text), nil), nil
}
