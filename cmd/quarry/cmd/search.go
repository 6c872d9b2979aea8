package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	qerrors "github.com/quarryhq/quarry/internal/errors"
	"github.com/quarryhq/quarry/internal/output"
	"github.com/quarryhq/quarry/internal/search"
)

// searchOptions carries the flags for the search command.
type searchOptions struct {
	limit   int
	domain  string
	mode    string
	format  string
	explain bool
}

func newSearchCmd() *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents",
		Long: `Search runs the query against the lexical and vector indexes and fuses
their rankings. Results carry the source path, page, and a short snippet.

Modes:
  hybrid    lexical and semantic, fused (default)
  lexical   BM25 keyword matching only
  semantic  embedding similarity only`,
		Example: `  quarry search "connection pool timeout"
  quarry search -d architecture "deployment topology"
  quarry search -m lexical -n 20 "invoice"
  quarry search -f json "quarterly targets"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "maximum results (0 uses the configured default)")
	cmd.Flags().StringVarP(&opts.domain, "domain", "d", "", "restrict results to one domain")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "search mode: hybrid, lexical, or semantic")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text or json")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "show per-backend ranks and scores")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts *searchOptions) error {
	ctx := cmd.Context()
	setupFileLogging()

	var mode search.Mode
	switch opts.mode {
	case "hybrid":
		mode = search.ModeHybrid
	case "lexical":
		mode = search.ModeLexical
	case "semantic":
		mode = search.ModeSemantic
	default:
		return qerrors.ValidationError(fmt.Sprintf("unknown mode %q", opts.mode), nil).
			WithSuggestion("use --mode hybrid, lexical, or semantic")
	}
	if opts.format != "text" && opts.format != "json" {
		return qerrors.ValidationError(fmt.Sprintf("unknown format %q", opts.format), nil).
			WithSuggestion("use --format text or --format json")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	root := findRoot(cwd)
	if err := ensureIndexed(root); err != nil {
		return err
	}

	ws, err := openWorkspace(ctx, root, workspaceOptions{lexicalOnly: mode == search.ModeLexical})
	if err != nil {
		return err
	}
	defer ws.Close()

	retriever, err := ws.retriever()
	if err != nil {
		return err
	}

	results, err := retriever.Search(ctx, query, search.Options{
		TopK:   opts.limit,
		Domain: opts.domain,
		Mode:   mode,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if opts.format == "json" {
		return printResultsJSON(cmd, results)
	}
	printResultsText(cmd, query, results, opts.explain)
	return nil
}

func printResultsText(cmd *cobra.Command, query string, results []search.Result, explain bool) {
	w := cmd.OutOrStdout()
	out := output.New(w)

	if len(results) == 0 {
		out.Statusf("🔍", "No results for %q", query)
		out.Hint("Try different keywords, or run 'quarry index' if documents changed")
		return
	}

	out.Statusf("🔍", "Found %d results for %q:", len(results), query)
	cwd, _ := os.Getwd()
	for i, r := range results {
		fmt.Fprintf(w, "\n%d. %s", i+1, displayPath(cwd, r.Unit.Path, r.Unit.Page))
		if explain {
			fmt.Fprintf(w, "\n   score=%.4f lexical=%.4f (rank %s) semantic=%.4f (rank %s) both=%v\n",
				r.CombinedScore,
				r.LexicalScore, rankLabel(r.LexicalRank),
				r.SemanticScore, rankLabel(r.SemanticRank),
				r.InBothLists)
		} else {
			fmt.Fprintf(w, " (score: %.3f)\n", r.CombinedScore)
		}
		if r.Unit.SectionPath != "" {
			fmt.Fprintf(w, "   § %s\n", r.Unit.SectionPath)
		}
		for _, line := range snippetLines(r.Unit.RawText, 3) {
			fmt.Fprintf(w, "   %s\n", line)
		}
	}
}

func printResultsJSON(cmd *cobra.Command, results []search.Result) error {
	type jsonResult struct {
		Path    string  `json:"path"`
		Page    int     `json:"page,omitempty"`
		Domain  string  `json:"domain,omitempty"`
		Section string  `json:"section,omitempty"`
		Score   float64 `json:"score"`
		Text    string  `json:"text"`
	}

	items := make([]jsonResult, 0, len(results))
	for _, r := range results {
		items = append(items, jsonResult{
			Path:    r.Unit.Path,
			Page:    r.Unit.Page,
			Domain:  r.Unit.Domain,
			Section: r.Unit.SectionPath,
			Score:   r.CombinedScore,
			Text:    r.Unit.RawText,
		})
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("render results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// displayPath renders a unit's source location relative to the working
// directory, with a page suffix for paginated formats.
func displayPath(cwd, path string, page int) string {
	display := path
	if cwd != "" {
		if rel, err := filepath.Rel(cwd, path); err == nil && !strings.HasPrefix(rel, "..") {
			display = rel
		}
	}
	if page > 0 {
		return fmt.Sprintf("%s:%d", display, page)
	}
	return display
}

// rankLabel shows a backend rank, with "-" for units that backend never
// returned.
func rankLabel(rank int) string {
	if rank <= 0 {
		return "-"
	}
	return fmt.Sprintf("#%d", rank)
}

// snippetLines returns up to max leading lines of text, dropping trailing
// blank lines so short units render tight.
func snippetLines(text string, max int) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > max {
		lines = lines[:max]
	}
	n := len(lines)
	for n > 0 && strings.TrimSpace(lines[n-1]) == "" {
		n--
	}
	return lines[:n]
}
