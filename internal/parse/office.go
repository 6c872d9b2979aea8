package parse

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	qerrors "github.com/quarryhq/quarry/internal/errors"
)

const wordMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

var (
	docxRunRe   = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	docxStyleRe = regexp.MustCompile(`<w:pStyle[^>]+w:val="([^"]+)"`)

	// Attributes must be absent or start with whitespace so that longer
	// tag names like text:page-number do not match.
	odtBlockRe = regexp.MustCompile(`(?s)<text:h(\s[^>]*)?>(.*?)</text:h>|<text:p(\s[^>]*)?>(.*?)</text:p>`)
	odtLevelRe = regexp.MustCompile(`text:outline-level="(\d+)"`)
	xmlTagRe   = regexp.MustCompile(`<[^>]+>`)

	odtInlineReplacer = strings.NewReplacer(
		"<text:tab/>", "\t",
		"<text:line-break/>", "\n",
		"<text:s/>", " ",
	)
)

// OfficeParser extracts word-processing archives: DOCX and ODT. Both are zip
// containers holding XML; paragraphs become blank-line separated blocks and
// styled headings become ATX lines.
type OfficeParser struct{}

// NewOfficeParser returns a DOCX and ODT parser.
func NewOfficeParser() *OfficeParser { return &OfficeParser{} }

// Extensions implements Parser.
func (p *OfficeParser) Extensions() []string { return []string{".docx", ".odt"} }

// Parse implements Parser.
func (p *OfficeParser) Parse(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, qerrors.ParseError(fmt.Sprintf("%s is not a zip archive", filepath.Base(path)), err)
	}
	defer zr.Close()

	if strings.EqualFold(filepath.Ext(path), ".odt") {
		return p.parseODT(path, zr)
	}
	return p.parseDOCX(path, zr)
}

func (p *OfficeParser) parseDOCX(path string, zr *zip.ReadCloser) (*Document, error) {
	part, ok := zipPart(zr, docxMainPart(zr))
	if !ok {
		return nil, qerrors.ParseError(fmt.Sprintf("no document part in %s", filepath.Base(path)), nil)
	}

	var blocks, headers []string
	for _, par := range strings.Split(string(part), "</w:p>") {
		runs := docxRunRe.FindAllStringSubmatch(par, -1)
		if len(runs) == 0 {
			continue
		}
		var b strings.Builder
		for _, run := range runs {
			// Runs split words mid-token on formatting changes, so they
			// concatenate with no separator.
			b.WriteString(run[1])
		}
		text := strings.TrimSpace(xmlUnescaper.Replace(b.String()))
		if text == "" {
			continue
		}
		if level := docxHeadingLevel(par); level > 0 {
			blocks = append(blocks, strings.Repeat("#", level)+" "+text)
			headers = append(headers, text)
			continue
		}
		blocks = append(blocks, text)
	}

	text := normalizeText([]byte(strings.Join(blocks, "\n\n")))
	return singlePageDocument(path, "docx", text, headers), nil
}

// docxMainPart resolves the main document part from [Content_Types].xml.
// Writers are free to rename word/document.xml, and some do.
func docxMainPart(zr *zip.ReadCloser) string {
	const fallback = "word/document.xml"
	data, ok := zipPart(zr, "[Content_Types].xml")
	if !ok {
		return fallback
	}
	var types struct {
		Overrides []struct {
			PartName    string `xml:"PartName,attr"`
			ContentType string `xml:"ContentType,attr"`
		} `xml:"Override"`
	}
	if err := xml.Unmarshal(data, &types); err != nil {
		return fallback
	}
	for _, o := range types.Overrides {
		if o.ContentType == wordMainContentType {
			return strings.TrimPrefix(o.PartName, "/")
		}
	}
	return fallback
}

// docxHeadingLevel reads the paragraph style. Heading1..Heading9 map to
// levels, Title maps to level 1, everything else is body text.
func docxHeadingLevel(par string) int {
	m := docxStyleRe.FindStringSubmatch(par)
	if m == nil {
		return 0
	}
	style := strings.ToLower(m[1])
	if style == "title" {
		return 1
	}
	rest := strings.TrimPrefix(style, "heading")
	if rest == style {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0
	}
	if n > 6 {
		n = 6
	}
	return n
}

func (p *OfficeParser) parseODT(path string, zr *zip.ReadCloser) (*Document, error) {
	part, ok := zipPart(zr, "content.xml")
	if !ok {
		return nil, qerrors.ParseError(fmt.Sprintf("no content.xml in %s", filepath.Base(path)), nil)
	}

	content := odtInlineReplacer.Replace(string(part))
	var blocks, headers []string
	for _, m := range odtBlockRe.FindAllStringSubmatch(content, -1) {
		heading := strings.HasPrefix(m[0], "<text:h")
		attrs, inner := m[3], m[4]
		if heading {
			attrs, inner = m[1], m[2]
		}
		text := strings.TrimSpace(xmlUnescaper.Replace(xmlTagRe.ReplaceAllString(inner, "")))
		if text == "" {
			continue
		}
		if heading {
			level := 1
			if lm := odtLevelRe.FindStringSubmatch(attrs); lm != nil {
				if n, err := strconv.Atoi(lm[1]); err == nil && n >= 1 {
					level = n
					if level > 6 {
						level = 6
					}
				}
			}
			blocks = append(blocks, strings.Repeat("#", level)+" "+text)
			headers = append(headers, text)
			continue
		}
		blocks = append(blocks, text)
	}

	text := normalizeText([]byte(strings.Join(blocks, "\n\n")))
	return singlePageDocument(path, "odt", text, headers), nil
}

// zipPart reads one named file out of an archive.
func zipPart(zr *zip.ReadCloser, name string) ([]byte, bool) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, false
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, false
		}
		return data, true
	}
	return nil, false
}

// SheetParser extracts workbooks one sheet per page. Rows render in pipe
// notation so downstream typing recognizes them as tables.
type SheetParser struct{}

// NewSheetParser returns a spreadsheet parser.
func NewSheetParser() *SheetParser { return &SheetParser{} }

// Extensions implements Parser.
func (p *SheetParser) Extensions() []string { return []string{".xlsx", ".xlsm"} }

// Parse implements Parser.
func (p *SheetParser) Parse(ctx context.Context, path string) (*Document, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, qerrors.ParseError(fmt.Sprintf("failed to open workbook %s", filepath.Base(path)), err)
	}
	defer wb.Close()

	var pages []Page
	for i, sheet := range wb.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := wb.GetRows(sheet)
		if err != nil {
			continue
		}
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			empty := true
			for _, cell := range row {
				cell = strings.TrimSpace(cell)
				if cell != "" {
					empty = false
				}
				cells = append(cells, cell)
			}
			if empty {
				continue
			}
			lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		}
		if len(lines) == 0 {
			continue
		}
		pages = append(pages, Page{
			// Sheet position survives even when empty sheets are skipped.
			Number:    i + 1,
			Text:      normalizeText([]byte("## " + sheet + "\n\n" + strings.Join(lines, "\n"))),
			Headers:   []string{sheet},
			HasTables: true,
		})
	}

	return &Document{
		Path:   path,
		Name:   filepath.Base(path),
		Method: "xlsx",
		Pages:  pages,
	}, nil
}
