package parse

import (
	"context"
	"regexp"
	"strings"
)

var atxHeaderRe = regexp.MustCompile(`^(#{1,6})\s+(\S.*)$`)

// MarkdownParser reads Markdown as a single page. The text already carries
// ATX header lines, so it passes through unchanged; headers are collected
// for metadata, skipping fenced code blocks.
type MarkdownParser struct{}

// NewMarkdownParser returns a Markdown parser.
func NewMarkdownParser() *MarkdownParser { return &MarkdownParser{} }

// Extensions implements Parser.
func (p *MarkdownParser) Extensions() []string { return []string{".md", ".markdown"} }

// Parse implements Parser.
func (p *MarkdownParser) Parse(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := readNormalized(path)
	if err != nil {
		return nil, err
	}

	var headers []string
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := atxHeaderRe.FindStringSubmatch(trimmed); m != nil {
			headers = append(headers, strings.TrimSpace(m[2]))
		}
	}

	return singlePageDocument(path, "markdown", strings.TrimSpace(text), headers), nil
}
