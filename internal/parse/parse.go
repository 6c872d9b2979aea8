// Package parse turns source documents into per-page text with inline
// structure markers. Headers are emitted as ATX lines ("## Title") whatever
// the source format, so downstream stages derive section paths and content
// types without knowing which parser produced the text.
package parse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	qerrors "github.com/quarryhq/quarry/internal/errors"
)

// Page is one unit of pagination: a PDF page, a workbook sheet, or the
// whole file for unpaginated formats.
type Page struct {
	Number    int
	Text      string
	Headers   []string
	HasTables bool
}

// CharCount returns the page length in runes.
func (p Page) CharCount() int { return utf8.RuneCountInString(p.Text) }

// Document is one parsed source file.
type Document struct {
	Path   string
	Name   string
	Method string
	Pages  []Page
}

// PageTexts returns the page texts in order, ready for chunking.
func (d *Document) PageTexts() []string {
	texts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		texts[i] = p.Text
	}
	return texts
}

// Headers returns every detected header in reading order.
func (d *Document) Headers() []string {
	var headers []string
	for _, p := range d.Pages {
		headers = append(headers, p.Headers...)
	}
	return headers
}

// TotalChars returns the document length in runes.
func (d *Document) TotalChars() int {
	total := 0
	for _, p := range d.Pages {
		total += p.CharCount()
	}
	return total
}

// HasTables reports whether any page carries tabular content.
func (d *Document) HasTables() bool {
	for _, p := range d.Pages {
		if p.HasTables {
			return true
		}
	}
	return false
}

// Parser extracts one file format.
type Parser interface {
	// Parse reads the file and returns its pages. Failures are scoped to
	// the document: callers record them and move on.
	Parse(ctx context.Context, path string) (*Document, error)
	// Extensions lists the file extensions this parser owns, with dots.
	Extensions() []string
}

// Registry dispatches files to parsers by extension.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds a registry from the given parsers. Later parsers win
// extension collisions.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// Default returns a registry covering every built-in format.
func Default() *Registry {
	return NewRegistry(
		NewPDFParser(),
		NewMarkdownParser(),
		NewTextParser(),
		NewOfficeParser(),
		NewSheetParser(),
	)
}

// Register adds a parser for its extensions.
func (r *Registry) Register(p Parser) {
	for _, ext := range p.Extensions() {
		r.parsers[strings.ToLower(ext)] = p
	}
}

// For returns the parser owning the path's extension.
func (r *Registry) For(path string) (Parser, bool) {
	p, ok := r.parsers[strings.ToLower(filepath.Ext(path))]
	return p, ok
}

// Supported returns the registered extensions, sorted.
func (r *Registry) Supported() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Parse dispatches the file to its format parser. An unsupported extension
// is a document-scoped parse failure, not a batch failure.
func (r *Registry) Parse(ctx context.Context, path string) (*Document, error) {
	p, ok := r.For(path)
	if !ok {
		return nil, qerrors.ParseError(fmt.Sprintf("unsupported file type %q", filepath.Ext(path)), nil)
	}
	return p.Parse(ctx, path)
}

// singlePageDocument wraps unpaginated content as a one-page document.
func singlePageDocument(path, method, text string, headers []string) *Document {
	return &Document{
		Path:   path,
		Name:   filepath.Base(path),
		Method: method,
		Pages:  []Page{{Number: 1, Text: text, Headers: headers}},
	}
}

// readNormalized loads a text file and normalizes encoding and line endings.
func readNormalized(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", qerrors.ParseError(fmt.Sprintf("failed to read %s", filepath.Base(path)), err)
	}
	return normalizeText(data), nil
}

// normalizeText repairs invalid UTF-8 and unifies line endings.
func normalizeText(data []byte) string {
	if !utf8.Valid(data) {
		data = []byte(strings.ToValidUTF8(string(data), "�"))
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n")
}

// xmlUnescaper covers the predefined XML entities. Office extractors run it
// after tag stripping; numeric references other than &#39; are left alone.
var xmlUnescaper = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&#39;", "'",
)
