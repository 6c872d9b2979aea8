package index

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/quarryhq/quarry/internal/store"
)

var (
	headerLine  = regexp.MustCompile(`^(#{1,6})\s+(\S.*)$`)
	listOrdinal = regexp.MustCompile(`^\d+[.)]\s`)
)

// sectionTracker derives hierarchical section paths from the header lines
// parsers emit inline. Units must be observed in document order; the tracker
// keeps a stack of open sections with strictly increasing header levels.
type sectionTracker struct {
	stack []section
}

type section struct {
	level int
	title string
}

// observe folds one unit into the tracker and returns the section path the
// unit belongs to. A unit that opens with a header belongs to the section
// that header starts, not the one it closes.
func (t *sectionTracker) observe(rawText string) string {
	var path string
	captured := false
	for _, line := range strings.Split(rawText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := headerLine.FindStringSubmatch(trimmed); m != nil {
			t.push(len(m[1]), strings.TrimSpace(m[2]))
		}
		if !captured {
			path = t.path()
			captured = true
		}
	}
	if !captured {
		return t.path()
	}
	return path
}

// push closes every section at the same or deeper level before opening the
// new one.
func (t *sectionTracker) push(level int, title string) {
	keep := 0
	for _, s := range t.stack {
		if s.level >= level {
			break
		}
		keep++
	}
	t.stack = append(t.stack[:keep], section{level: level, title: title})
}

func (t *sectionTracker) path() string {
	if len(t.stack) == 0 {
		return ""
	}
	titles := make([]string, len(t.stack))
	for i, s := range t.stack {
		titles[i] = s.title
	}
	return strings.Join(titles, " > ")
}

// classifyContent types a unit by its first content line after any header
// lines, so a unit that opens a section is typed by the section body.
// Spreadsheet rows render in pipe notation, so a leading pipe means tabular
// content. Units that are nothing but headers type as headers.
func classifyContent(rawText string) string {
	sawHeader := false
	for _, line := range strings.Split(rawText, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			sawHeader = true
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "|"):
			return store.ContentTypeTable
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "),
			strings.HasPrefix(trimmed, "• "), listOrdinal.MatchString(trimmed):
			return store.ContentTypeList
		default:
			return store.ContentTypeText
		}
	}
	if sawHeader {
		return store.ContentTypeHeader
	}
	return store.ContentTypeText
}

// unitID builds a unit identifier from the document name plus a random
// suffix. The readable stem makes index dumps and logs traceable back to
// their source document.
func unitID(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(stem) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	slug := b.String()
	if slug == "" {
		slug = "doc"
	}
	return slug + "_" + uuid.NewString()[:8]
}
