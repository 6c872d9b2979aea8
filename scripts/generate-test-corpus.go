//go:build ignore

// Generates a synthetic document corpus for benchmarks and manual testing.
// File names carry the keywords the domain classifier matches on, so the
// output exercises domain inference as well as parsing and chunking.
// Usage: go run scripts/generate-test-corpus.go -files 500 -output testdata/corpus
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	numFiles  = flag.Int("files", 500, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/corpus", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var rng *rand.Rand

// domainSpec drives one business domain: the filename stems the classifier
// keys on, and the vocabulary the body text is assembled from.
type domainSpec struct {
	dir      string
	stems    []string
	sections []string
	subjects []string
	verbs    []string
	objects  []string

	// hebrewStem and hebrewLines are set for domains whose real corpora
	// mix Hebrew documents in. Empty elsewhere.
	hebrewStem  string
	hebrewLines []string
}

var domainSpecs = []domainSpec{
	{
		dir:      "finance",
		stems:    []string{"invoice", "budget", "expense"},
		sections: []string{"Payment Terms", "Approval Flow", "Quarterly Targets", "Reimbursements", "Vendor Accounts", "Audit Notes"},
		subjects: []string{"The finance team", "Accounts payable", "Each cost center", "The quarterly budget", "Every vendor invoice", "The reimbursement system"},
		verbs:    []string{"reconciles", "approves", "reviews", "allocates", "tracks", "escalates"},
		objects:  []string{"outstanding payments within thirty days", "purchase orders above the approval threshold", "travel expenses against the annual budget", "recurring subscription charges", "currency conversion differences", "supplier credit notes"},
		hebrewStem: "חשבונית",
		hebrewLines: []string{
			"חשבונית מס נשלחת ללקוח בתחילת כל חודש.",
			"התקציב הרבעוני מאושר על ידי סמנכ\"ל הכספים.",
			"החזרי הוצאות מטופלים תוך חמישה ימי עסקים.",
		},
	},
	{
		dir:      "legal",
		stems:    []string{"contract", "nda", "terms"},
		sections: []string{"Definitions", "Confidentiality", "Term and Termination", "Liability", "Governing Law", "Amendments"},
		subjects: []string{"The receiving party", "Either party", "The service provider", "This agreement", "The disclosing party", "The indemnified party"},
		verbs:    []string{"shall maintain", "may terminate", "agrees to protect", "warrants", "shall not disclose", "retains"},
		objects:  []string{"all confidential information in strict confidence", "the agreement with ninety days written notice", "intellectual property created under this engagement", "compliance with applicable data protection law", "records for the statutory retention period", "the right to audit once per calendar year"},
		hebrewStem: "חוזה",
		hebrewLines: []string{
			"חוזה השכירות מתחדש אוטומטית בתום כל שנה.",
			"סעיף הסודיות חל גם לאחר סיום ההתקשרות.",
		},
	},
	{
		dir:      "hr",
		stems:    []string{"handbook", "onboarding", "payroll"},
		sections: []string{"First Week", "Benefits Enrollment", "Leave Policy", "Performance Reviews", "Code of Conduct", "Exit Process"},
		subjects: []string{"New employees", "Every manager", "The people team", "Each department", "Full-time staff", "The benefits provider"},
		verbs:    []string{"complete", "schedule", "accrue", "submit", "review", "coordinate"},
		objects:  []string{"security training during the first week", "annual leave at two days per month", "expense-backed relocation support", "quarterly feedback conversations", "equipment requests through the portal", "payroll changes before the monthly cutoff"},
	},
	{
		dir:      "engineering",
		stems:    []string{"runbook", "postmortem", "deploy"},
		sections: []string{"Symptoms", "Diagnosis", "Mitigation", "Rollout Plan", "Rollback", "Follow-ups"},
		subjects: []string{"The on-call engineer", "The deployment pipeline", "Each canary stage", "The ingestion service", "The alerting rule", "The database migration"},
		verbs:    []string{"restarts", "promotes", "drains", "verifies", "rolls back", "escalates"},
		objects:  []string{"the affected workers one availability zone at a time", "traffic to the new version after health checks pass", "connections before the schema change runs", "replica lag against the five second threshold", "the release when error rates double", "to the secondary region during regional outages"},
	},
	{
		dir:      "operations",
		stems:    []string{"procedure", "sop", "inventory"},
		sections: []string{"Scope", "Prerequisites", "Steps", "Verification", "Exceptions", "Records"},
		subjects: []string{"The warehouse shift lead", "Every incoming shipment", "The logistics coordinator", "Each storage location", "The fulfillment process", "The weekly stock count"},
		verbs:    []string{"verifies", "labels", "schedules", "reconciles", "inspects", "documents"},
		objects:  []string{"package contents against the manifest", "perishable goods for same-day routing", "carrier pickups before noon", "discrepancies above two percent", "safety equipment at the start of each shift", "cold chain temperatures every four hours"},
	},
	{
		dir:      "support",
		stems:    []string{"faq", "troubleshooting"},
		sections: []string{"Common Questions", "Before You Start", "Known Issues", "Workarounds", "Escalation", "Contact"},
		subjects: []string{"Most login failures", "The sync client", "A stuck export", "The mobile app", "Password resets", "The status page"},
		verbs:    []string{"resolve after", "retries", "recovers by", "requires", "expire within", "reflects"},
		objects:  []string{"clearing the cached session and signing in again", "the upload three times before surfacing an error", "restarting with the diagnostics flag enabled", "version 4.2 or newer of the desktop client", "one hour for security reasons", "incidents within five minutes of detection"},
		hebrewStem: "תמיכה",
		hebrewLines: []string{
			"פניות תמיכה נענות תוך יום עסקים אחד.",
			"ניתן לאפס סיסמה דרך פורטל השירות העצמי.",
		},
	},
}

// Neutral filename suffixes. None of these collide with a classifier
// keyword, so the stem alone decides the domain.
var suffixes = []string{"guide", "notes", "overview", "summary", "review", "update", "archive", "2024", "2025"}

func main() {
	flag.Parse()
	rng = rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}
	for _, spec := range domainSpecs {
		if err := os.MkdirAll(filepath.Join(*outputDir, spec.dir), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating subdirectory %s: %v\n", spec.dir, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generating %d documents in %s...\n", *numFiles, *outputDir)

	// Mostly markdown, with a slice of plain text to cover the fallback
	// parsing path.
	mdFiles := *numFiles * 85 / 100
	txtFiles := *numFiles - mdFiles

	generated := 0
	for i := 0; i < mdFiles; i++ {
		if err := generateDoc(i, ".md"); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating document %d: %v\n", i, err)
			continue
		}
		generated++
	}
	for i := 0; i < txtFiles; i++ {
		if err := generateDoc(mdFiles+i, ".txt"); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating document %d: %v\n", mdFiles+i, err)
			continue
		}
		generated++
	}

	fmt.Printf("Generated %d documents successfully.\n", generated)
}

func pick(pool []string) string {
	return pool[rng.Intn(len(pool))]
}

// capitalize uppercases the first rune. Hebrew stems pass through
// unchanged.
func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func sentence(spec domainSpec) string {
	return fmt.Sprintf("%s %s %s.", pick(spec.subjects), pick(spec.verbs), pick(spec.objects))
}

func paragraph(spec domainSpec, sentences int) string {
	parts := make([]string, sentences)
	for i := range parts {
		parts[i] = sentence(spec)
	}
	return strings.Join(parts, " ")
}

// docShape returns section and paragraph counts for one document. The
// spread keeps most documents short while producing enough long ones to
// reach the larger chunk sizes.
func docShape() (sections, paragraphs int) {
	switch n := rng.Intn(10); {
	case n < 5:
		return 2 + rng.Intn(2), 1 + rng.Intn(2)
	case n < 9:
		return 4 + rng.Intn(4), 2 + rng.Intn(3)
	default:
		return 10 + rng.Intn(8), 3 + rng.Intn(4)
	}
}

func generateDoc(index int, ext string) error {
	spec := domainSpecs[index%len(domainSpecs)]

	stem := pick(spec.stems)
	hebrew := spec.hebrewStem != "" && rng.Intn(6) == 0
	if hebrew {
		stem = spec.hebrewStem
	}
	name := fmt.Sprintf("%s-%s-%03d%s", stem, pick(suffixes), index, ext)

	var b strings.Builder
	title := capitalize(stem)
	sections, paragraphs := docShape()

	if ext == ".md" {
		fmt.Fprintf(&b, "# %s %d\n\n", title, index)
		for s := 0; s < sections; s++ {
			fmt.Fprintf(&b, "## %s\n\n", spec.sections[s%len(spec.sections)])
			for p := 0; p < paragraphs; p++ {
				b.WriteString(paragraph(spec, 2+rng.Intn(4)))
				b.WriteString("\n\n")
			}
		}
		if hebrew {
			b.WriteString("## הערות\n\n")
			for _, line := range spec.hebrewLines {
				b.WriteString(line)
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	} else {
		fmt.Fprintf(&b, "%s %d\n\n", title, index)
		for s := 0; s < sections; s++ {
			for p := 0; p < paragraphs; p++ {
				b.WriteString(paragraph(spec, 2+rng.Intn(4)))
				b.WriteString("\n\n")
			}
		}
	}

	path := filepath.Join(*outputDir, spec.dir, name)
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
