package store

import "time"

// Content types recorded on stored units. The orchestrator assigns them from
// unit text shape; search filters and stats group by them.
const (
	ContentTypeText   = "text"
	ContentTypeTable  = "table"
	ContentTypeList   = "list"
	ContentTypeHeader = "header"
)

// Unit is one stored retrieval unit with its placement and classification
// metadata. ID is unique across the corpus; Fingerprint ties the unit to the
// registry record of its source document.
type Unit struct {
	ID          string
	Fingerprint string
	Path        string
	Page        int
	Position    int
	Text        string
	RawText     string
	Context     string
	SectionPath string
	ContentType string
	Domain      string
	Topics      []string
	CharCount   int
	SizeClass   int
	CreatedAt   time.Time
}

// Stats summarizes store contents for the status and stats surfaces.
type Stats struct {
	Units        int
	Documents    int
	Domains      map[string]int
	ContentTypes map[string]int
}
