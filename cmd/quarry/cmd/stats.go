package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/internal/config"
	"github.com/quarryhq/quarry/internal/lexical"
	"github.com/quarryhq/quarry/internal/registry"
	"github.com/quarryhq/quarry/internal/store"
)

// documentStats summarizes registry state for the stats report.
type documentStats struct {
	Total   int `json:"total"`
	Indexed int `json:"indexed"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
	Deleted int `json:"deleted,omitempty"`
}

// unitStats summarizes the unit store for the stats report.
type unitStats struct {
	Total         int            `json:"total"`
	Documents     int            `json:"documents"`
	ByDomain      map[string]int `json:"by_domain,omitempty"`
	ByContentType map[string]int `json:"by_content_type,omitempty"`
}

// lexicalStats summarizes the lexical snapshot for the stats report.
type lexicalStats struct {
	Documents    int     `json:"documents"`
	Terms        int     `json:"terms"`
	AvgDocLength float64 `json:"avg_doc_length"`
	K1           float64 `json:"k1"`
	B            float64 `json:"b"`
}

// statsReport is the full stats output; Lexical is nil when no snapshot
// exists yet.
type statsReport struct {
	Documents documentStats `json:"documents"`
	Units     unitStats     `json:"units"`
	Lexical   *lexicalStats `json:"lexical,omitempty"`
}

func newStatsCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show detailed index statistics",
		Long: `Stats breaks the index down by document state, unit domain, and content
type, and reports the lexical index's term counts and scoring parameters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "output statistics as JSON")
	return cmd
}

func runStats(cmd *cobra.Command, jsonOut bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	root := findRoot(cwd)
	if err := ensureIndexed(root); err != nil {
		return err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	report, err := collectStats(cmd, cfg, root)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printStats(cmd.OutOrStdout(), report)
	return nil
}

func collectStats(cmd *cobra.Command, cfg *config.Config, root string) (*statsReport, error) {
	reg, err := registry.New(cfg.RegistryFile(root))
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	regStats := reg.Stats()

	report := &statsReport{
		Documents: documentStats{
			Total:   regStats.TotalDocuments,
			Indexed: regStats.Indexed,
			Pending: regStats.Pending,
			Failed:  regStats.Failed,
			Deleted: regStats.Deleted,
		},
	}

	units, err := store.Open(cfg.CorpusFile(root))
	if err != nil {
		return nil, fmt.Errorf("open unit store: %w", err)
	}
	defer func() { _ = units.Close() }()

	storeStats, err := units.Stats(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("read store statistics: %w", err)
	}
	report.Units = unitStats{
		Total:         storeStats.Units,
		Documents:     storeStats.Documents,
		ByDomain:      storeStats.Domains,
		ByContentType: storeStats.ContentTypes,
	}

	snapshotPath := cfg.LexicalSnapshotFile(root)
	if fileExists(snapshotPath) {
		idx := lexical.New(lexical.WithK1(cfg.Search.K1), lexical.WithB(cfg.Search.B))
		if err := idx.Load(snapshotPath); err == nil {
			s := idx.Stats()
			k1, b := idx.Params()
			report.Lexical = &lexicalStats{
				Documents:    s.DocumentCount,
				Terms:        s.TermCount,
				AvgDocLength: s.AvgDocLength,
				K1:           k1,
				B:            b,
			}
		}
	}

	return report, nil
}

func printStats(w io.Writer, report *statsReport) {
	fmt.Fprintf(w, "Index Statistics\n")
	fmt.Fprintf(w, "================\n\n")

	fmt.Fprintf(w, "Documents\n")
	fmt.Fprintf(w, "  Total:    %d\n", report.Documents.Total)
	fmt.Fprintf(w, "  Indexed:  %d\n", report.Documents.Indexed)
	if report.Documents.Pending > 0 {
		fmt.Fprintf(w, "  Pending:  %d\n", report.Documents.Pending)
	}
	if report.Documents.Failed > 0 {
		fmt.Fprintf(w, "  Failed:   %d\n", report.Documents.Failed)
	}
	if report.Documents.Deleted > 0 {
		fmt.Fprintf(w, "  Deleted:  %d\n", report.Documents.Deleted)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Units\n")
	fmt.Fprintf(w, "  Total:      %d\n", report.Units.Total)
	fmt.Fprintf(w, "  Documents:  %d\n", report.Units.Documents)
	printBreakdown(w, "By domain", report.Units.ByDomain)
	printBreakdown(w, "By content type", report.Units.ByContentType)
	fmt.Fprintln(w)

	if report.Lexical != nil {
		fmt.Fprintf(w, "Lexical Index\n")
		fmt.Fprintf(w, "  Documents:       %d\n", report.Lexical.Documents)
		fmt.Fprintf(w, "  Terms:           %d\n", report.Lexical.Terms)
		fmt.Fprintf(w, "  Avg doc length:  %.1f\n", report.Lexical.AvgDocLength)
		fmt.Fprintf(w, "  BM25 k1 / b:     %.2f / %.2f\n", report.Lexical.K1, report.Lexical.B)
	}
}

// printBreakdown writes a count map sorted by count descending, names
// breaking ties.
func printBreakdown(w io.Writer, label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}

	type entry struct {
		name  string
		count int
	}
	entries := make([]entry, 0, len(counts))
	width := 0
	for name, count := range counts {
		entries = append(entries, entry{name, count})
		if len(name) > width {
			width = len(name)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})

	fmt.Fprintf(w, "\n  %s:\n", label)
	for _, e := range entries {
		fmt.Fprintf(w, "    %-*s  %d\n", width, e.name, e.count)
	}
}
