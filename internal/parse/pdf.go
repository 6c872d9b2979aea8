package parse

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	qerrors "github.com/quarryhq/quarry/internal/errors"
)

const (
	// pdfHeaderScale is how much larger than body text a font must be to
	// count as a header size.
	pdfHeaderScale = 1.15
	// pdfMaxHeaderLevels caps how many distinct header sizes map to levels.
	pdfMaxHeaderLevels = 3
	// pdfMaxHeaderLen rejects runs of large text that are too long to be
	// a title, like pull quotes.
	pdfMaxHeaderLen = 120
	// pdfPlainHeaderLen bounds the line-shape heuristic used when the
	// document has a single font size.
	pdfPlainHeaderLen = 60
	// pdfPlainHeaderMaxShare disables the line-shape heuristic when too
	// many rows qualify, which means the signal is noise.
	pdfPlainHeaderMaxShare = 0.25
	// pdfWordGapScale is the fraction of the font size a horizontal gap
	// must exceed before a space is inserted between fragments.
	pdfWordGapScale = 0.3
)

// PDFParser extracts PDF pages. Positioned text fragments are reassembled
// into rows, and font sizes across the whole document decide which rows are
// headers. Documents with no positioned text fall back to plain extraction.
type PDFParser struct{}

// NewPDFParser returns a PDF parser.
func NewPDFParser() *PDFParser { return &PDFParser{} }

// Extensions implements Parser.
func (p *PDFParser) Extensions() []string { return []string{".pdf"} }

// Parse implements Parser.
func (p *PDFParser) Parse(ctx context.Context, path string) (doc *Document, err error) {
	// The pdf library panics on malformed xref tables and broken streams,
	// so a corrupt file must not take down a batch.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = qerrors.ParseError(fmt.Sprintf("pdf reader panicked on %s: %v", filepath.Base(path), r), nil)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, qerrors.ParseError(fmt.Sprintf("failed to open pdf %s", filepath.Base(path)), err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	pageRows := make([][]pdfRow, numPages)
	plainTexts := make([]string, numPages)
	positioned := 0
	sizes := newSizeHistogram()

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows := assembleRows(page.Content().Text)
		if len(rows) > 0 {
			positioned++
			pageRows[i-1] = rows
			for _, row := range rows {
				sizes.add(row.size, utf8.RuneCountInString(row.text))
			}
			continue
		}
		// No positioned fragments. Some generators only expose text
		// through the font-decoded path.
		if text, perr := page.GetPlainText(nil); perr == nil {
			plainTexts[i-1] = strings.TrimSpace(normalizeText([]byte(text)))
		}
	}

	levels := sizes.headerLevels()
	pages := make([]Page, 0, numPages)
	for i := 0; i < numPages; i++ {
		number := i + 1
		if rows := pageRows[i]; rows != nil {
			pages = append(pages, renderPDFPage(number, rows, levels))
			continue
		}
		pages = append(pages, Page{Number: number, Text: plainTexts[i]})
	}

	method := "pdf"
	if positioned == 0 {
		method = "pdf-plain"
	}
	return &Document{
		Path:   path,
		Name:   filepath.Base(path),
		Method: method,
		Pages:  pages,
	}, nil
}

// pdfRow is one reassembled line of page text.
type pdfRow struct {
	text string
	size float64
}

// assembleRows groups positioned fragments into rows by vertical position,
// orders each row left to right, and inserts spaces across word gaps.
func assembleRows(frags []pdf.Text) []pdfRow {
	if len(frags) == 0 {
		return nil
	}

	byY := make(map[float64][]pdf.Text)
	for _, t := range frags {
		if t.S == "" {
			continue
		}
		y := math.Round(t.Y*2) / 2
		byY[y] = append(byY[y], t)
	}

	ys := make([]float64, 0, len(byY))
	for y := range byY {
		ys = append(ys, y)
	}
	// PDF coordinates grow upward, so reading order is descending Y.
	sort.Sort(sort.Reverse(sort.Float64Slice(ys)))

	rows := make([]pdfRow, 0, len(ys))
	for _, y := range ys {
		line := byY[y]
		sort.Slice(line, func(i, j int) bool { return line[i].X < line[j].X })

		var b strings.Builder
		lastEnd := 0.0
		rowSize := newSizeHistogram()
		for _, t := range line {
			if lastEnd > 0 && t.X-lastEnd > t.FontSize*pdfWordGapScale {
				b.WriteByte(' ')
			}
			b.WriteString(t.S)
			lastEnd = t.X + t.W
			rowSize.add(t.FontSize, utf8.RuneCountInString(t.S))
		}
		text := strings.TrimSpace(normalizeText([]byte(b.String())))
		if text == "" {
			continue
		}
		rows = append(rows, pdfRow{text: text, size: rowSize.leader()})
	}
	return rows
}

// renderPDFPage lays rows out as page text, marking headers as ATX lines
// separated from surrounding text by blank lines.
func renderPDFPage(number int, rows []pdfRow, levels map[float64]int) Page {
	page := Page{Number: number}
	useShape := len(levels) == 0 && shapeHeuristicUsable(rows)

	var b strings.Builder
	for _, row := range rows {
		level := 0
		if l, ok := levels[row.size]; ok && headerText(row.text, pdfMaxHeaderLen) {
			level = l
		} else if useShape && looksLikeHeading(row.text) {
			level = 2
		}
		if level > 0 {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(strings.Repeat("#", level))
			b.WriteByte(' ')
			b.WriteString(row.text)
			b.WriteString("\n\n")
			page.Headers = append(page.Headers, row.text)
			continue
		}
		b.WriteString(row.text)
		b.WriteByte('\n')
	}
	page.Text = strings.TrimSpace(b.String())
	return page
}

// sizeHistogram tracks how many runes each rounded font size carries.
type sizeHistogram struct {
	volume map[float64]int
}

func newSizeHistogram() *sizeHistogram {
	return &sizeHistogram{volume: make(map[float64]int)}
}

func (h *sizeHistogram) add(size float64, runes int) {
	if size <= 0 || runes <= 0 {
		return
	}
	h.volume[math.Round(size*2)/2] += runes
}

// leader returns the size carrying the most text. Ties take the smaller
// size, which keeps occasional large glyphs from promoting a row.
func (h *sizeHistogram) leader() float64 {
	best, bestVol := 0.0, -1
	for size, vol := range h.volume {
		if vol > bestVol || (vol == bestVol && size < best) {
			best, bestVol = size, vol
		}
	}
	return best
}

// headerLevels maps every font size sufficiently above body size to a
// header level, largest size first. A document with one effective size
// yields no levels.
func (h *sizeHistogram) headerLevels() map[float64]int {
	body := h.leader()
	if body <= 0 {
		return nil
	}
	var large []float64
	for size := range h.volume {
		if size >= body*pdfHeaderScale {
			large = append(large, size)
		}
	}
	if len(large) == 0 {
		return nil
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(large)))
	if len(large) > pdfMaxHeaderLevels {
		large = large[:pdfMaxHeaderLevels]
	}
	levels := make(map[float64]int, len(large))
	for i, size := range large {
		levels[size] = i + 1
	}
	return levels
}

// shapeHeuristicUsable reports whether line-shape header detection is worth
// applying. When most rows look like headings the document is probably a
// form or a slide deck and the heuristic would shred it.
func shapeHeuristicUsable(rows []pdfRow) bool {
	if len(rows) == 0 {
		return false
	}
	candidates := 0
	for _, row := range rows {
		if looksLikeHeading(row.text) {
			candidates++
		}
	}
	return float64(candidates)/float64(len(rows)) <= pdfPlainHeaderMaxShare
}

// looksLikeHeading reports whether a row reads like a section title: short,
// wordy, no terminal punctuation, and not a bullet.
func looksLikeHeading(text string) bool {
	if !headerText(text, pdfPlainHeaderLen) {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	if strings.ContainsRune(".!?:;,", last) {
		return false
	}
	first, _ := utf8.DecodeRuneInString(text)
	return !strings.ContainsRune("•-*", first)
}

// headerText reports whether text is short enough and wordy enough to be a
// header at all.
func headerText(text string, maxLen int) bool {
	n := utf8.RuneCountInString(text)
	if n == 0 || n > maxLen {
		return false
	}
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
