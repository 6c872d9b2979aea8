package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quarryhq/quarry/internal/dense"
	"github.com/quarryhq/quarry/internal/embed"
	"github.com/quarryhq/quarry/internal/lexical"
	"github.com/quarryhq/quarry/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// ErrNoSemanticBackend is returned when semantic-only search is requested
// on a retriever built without a dense index.
var ErrNoSemanticBackend = errors.New("semantic backend not configured")

// Retriever answers queries by fanning out to the lexical index and the
// dense index, fusing their candidate lists, and enriching the winners from
// the unit store.
//
// A retriever borrows its backends; the caller that opened them closes
// them. Both backends may serve many queries concurrently, but neither may
// be mutated mid-query: index updates swap state wholesale, so a query
// sees either the old or the new index, never a partial one.
type Retriever struct {
	lexical  LexicalSearcher
	dense    DenseSearcher
	embedder embed.Embedder
	units    UnitFetcher
	fusion   *Fusion
	cfg      Config
}

// NewRetriever wires a retriever from its backends. The lexical index and
// unit store are required. The dense index and embedder are optional but
// must be supplied together; without them the retriever serves lexical
// results only.
func NewRetriever(lexIdx LexicalSearcher, denseIdx DenseSearcher, embedder embed.Embedder, units UnitFetcher, cfg Config) (*Retriever, error) {
	if lexIdx == nil {
		return nil, fmt.Errorf("%w: lexical index is required", ErrNilDependency)
	}
	if units == nil {
		return nil, fmt.Errorf("%w: unit store is required", ErrNilDependency)
	}
	if (denseIdx == nil) != (embedder == nil) {
		return nil, fmt.Errorf("%w: dense index and embedder must be provided together", ErrNilDependency)
	}

	cfg = cfg.withDefaults()
	r := &Retriever{
		lexical:  lexIdx,
		dense:    denseIdx,
		embedder: embedder,
		units:    units,
		fusion:   NewFusion(cfg.RRFConstant),
		cfg:      cfg,
	}
	if denseIdx == nil {
		slog.Warn("retriever_lexical_only",
			slog.String("reason", "no dense backend configured"))
	}
	return r, nil
}

// Search runs a query in the requested mode and returns up to TopK ranked
// results. A blank query returns no results and no error.
//
// In hybrid mode both backends are consulted concurrently, each bounded by
// the configured backend timeout. One backend failing or timing out
// degrades the query to the other backend with a logged warning; the
// query fails only when no backend produced candidates.
//
// The domain filter is pushed down to the lexical index, which applies it
// after scoring, and is applied to dense candidates after enrichment.
func (r *Retriever) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	opts = r.applyDefaults(opts)

	switch opts.Mode {
	case ModeLexical:
		return r.searchLexical(ctx, query, opts)
	case ModeSemantic:
		return r.searchSemantic(ctx, query, opts)
	}

	start := time.Now()
	sem, lex, err := r.gather(ctx, query, opts.Domain)
	if err != nil {
		return nil, err
	}

	candidates := r.fusion.Fuse(sem, lex, *opts.Weights)
	results, err := r.enrich(ctx, candidates, opts.Domain, opts.TopK)
	if err != nil {
		return nil, err
	}

	slog.Debug("search_complete",
		slog.String("query", query),
		slog.Int("semantic_candidates", len(sem)),
		slog.Int("lexical_candidates", len(lex)),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", time.Since(start)))
	return results, nil
}

// SearchLexicalOnly answers from the lexical index alone, bypassing
// fusion. Combined scores are raw BM25 scores.
func (r *Retriever) SearchLexicalOnly(ctx context.Context, query string, opts Options) ([]Result, error) {
	opts.Mode = ModeLexical
	return r.Search(ctx, query, opts)
}

// SearchSemanticOnly answers from the dense index alone, bypassing fusion.
// Combined scores are similarity scores.
func (r *Retriever) SearchSemanticOnly(ctx context.Context, query string, opts Options) ([]Result, error) {
	opts.Mode = ModeSemantic
	return r.Search(ctx, query, opts)
}

// applyDefaults fills in default values for query options.
func (r *Retriever) applyDefaults(opts Options) Options {
	if opts.TopK <= 0 {
		opts.TopK = r.cfg.DefaultTopK
	}
	if opts.TopK > r.cfg.MaxTopK {
		opts.TopK = r.cfg.MaxTopK
	}
	if opts.Mode == "" {
		opts.Mode = ModeHybrid
	}
	if opts.Weights == nil {
		w := r.cfg.Weights
		opts.Weights = &w
	}
	return opts
}

// gather runs the lexical and dense searches concurrently, each under its
// own backend timeout. Backend failures are recorded, logged as
// degradations, and absorbed; an error comes back only when every
// available backend failed. The zero-candidate lists of a failed backend
// fuse as empty, so callers always fuse exactly the backends that
// completed.
func (r *Retriever) gather(ctx context.Context, query, domain string) (sem []dense.Result, lex []lexical.Result, err error) {
	g, gctx := errgroup.WithContext(ctx)

	var lexErr, semErr error

	g.Go(func() error {
		lctx, cancel := context.WithTimeout(gctx, r.cfg.BackendTimeout)
		defer cancel()

		results, searchErr := r.lexical.Search(lctx, query, r.cfg.LexicalTopK, domain)
		if searchErr != nil {
			lexErr = searchErr
			return nil
		}
		lex = results
		return nil
	})

	semAvailable := r.dense != nil
	if semAvailable {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, r.cfg.BackendTimeout)
			defer cancel()

			vector, embedErr := r.embedder.Embed(sctx, query)
			if embedErr != nil {
				semErr = fmt.Errorf("embed query: %w", embedErr)
				return nil
			}
			results, searchErr := r.dense.Search(sctx, vector, r.cfg.SemanticTopK)
			if searchErr != nil {
				semErr = searchErr
				return nil
			}
			sem = results
			return nil
		})
	}

	if waitErr := g.Wait(); waitErr != nil {
		return nil, nil, waitErr
	}

	if lexErr != nil {
		if errors.Is(lexErr, lexical.ErrNotBuilt) {
			slog.Warn("lexical_index_not_built",
				slog.String("query", query))
		} else {
			slog.Warn("lexical_search_degraded",
				slog.String("error", lexErr.Error()))
		}
	}
	if semErr != nil {
		slog.Warn("dense_search_degraded",
			slog.String("error", semErr.Error()))
	}

	if lexErr != nil && !semAvailable {
		return nil, nil, lexErr
	}
	if lexErr != nil && semErr != nil {
		return nil, nil, errors.Join(lexErr, semErr)
	}
	return sem, lex, nil
}

// searchLexical serves a lexical-only query. The index applies the domain
// filter itself, so enrichment skips it. An unbuilt index yields empty
// results with a logged degradation rather than an error.
func (r *Retriever) searchLexical(ctx context.Context, query string, opts Options) ([]Result, error) {
	lctx, cancel := context.WithTimeout(ctx, r.cfg.BackendTimeout)
	defer cancel()

	hits, err := r.lexical.Search(lctx, query, r.cfg.LexicalTopK, opts.Domain)
	if err != nil {
		if errors.Is(err, lexical.ErrNotBuilt) {
			slog.Warn("lexical_index_not_built",
				slog.String("query", query))
			return []Result{}, nil
		}
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	candidates := make([]*FusedCandidate, len(hits))
	for i, h := range hits {
		candidates[i] = &FusedCandidate{
			UnitID:        h.ID,
			CombinedScore: h.Score,
			LexicalScore:  h.Score,
			LexicalRank:   i + 1,
		}
	}
	return r.enrich(ctx, candidates, "", opts.TopK)
}

// searchSemantic serves a semantic-only query.
func (r *Retriever) searchSemantic(ctx context.Context, query string, opts Options) ([]Result, error) {
	if r.dense == nil {
		return nil, ErrNoSemanticBackend
	}

	sctx, cancel := context.WithTimeout(ctx, r.cfg.BackendTimeout)
	defer cancel()

	vector, err := r.embedder.Embed(sctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := r.dense.Search(sctx, vector, r.cfg.SemanticTopK)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}

	candidates := make([]*FusedCandidate, len(hits))
	for i, h := range hits {
		candidates[i] = &FusedCandidate{
			UnitID:        h.ID,
			CombinedScore: float64(h.Score),
			SemanticScore: float64(h.Score),
			SemanticRank:  i + 1,
		}
	}
	return r.enrich(ctx, candidates, opts.Domain, opts.TopK)
}

// enrich resolves candidates to stored units in one batch, applies the
// domain filter, and truncates to topK while preserving fused order.
func (r *Retriever) enrich(ctx context.Context, candidates []*FusedCandidate, domain string, topK int) ([]Result, error) {
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.UnitID
	}

	units, err := r.units.GetUnits(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch units: %w", err)
	}
	byID := make(map[string]store.Unit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}

	results := make([]Result, 0, min(topK, len(candidates)))
	for _, c := range candidates {
		if len(results) >= topK {
			break
		}
		unit, ok := byID[c.UnitID]
		if !ok {
			// An index entry without a stored unit is an orphan from an
			// incomplete delete; compaction reclaims it.
			slog.Debug("search_orphan_skipped",
				slog.String("unit_id", c.UnitID))
			continue
		}
		if domain != "" && unit.Domain != domain {
			continue
		}
		results = append(results, Result{
			Unit:          unit,
			CombinedScore: c.CombinedScore,
			LexicalScore:  c.LexicalScore,
			SemanticScore: c.SemanticScore,
			LexicalRank:   c.LexicalRank,
			SemanticRank:  c.SemanticRank,
			InBothLists:   c.InBothLists,
		})
	}
	return results, nil
}
