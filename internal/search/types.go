// Package search merges lexical and dense retrieval into one ranked list.
// Candidate lists from both backends are combined with weighted Reciprocal
// Rank Fusion and enriched from the unit store before being returned.
package search

import (
	"context"
	"time"

	"github.com/quarryhq/quarry/internal/dense"
	"github.com/quarryhq/quarry/internal/lexical"
	"github.com/quarryhq/quarry/internal/store"
)

// LexicalSearcher is the keyword backend. The domain filter is applied by
// the index itself, after scoring, so ranks reflect the whole corpus.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, topK int, domainFilter string) ([]lexical.Result, error)
}

// DenseSearcher is the vector backend. It carries no domain filter; dense
// candidates are filtered after enrichment.
type DenseSearcher interface {
	Search(ctx context.Context, query []float32, k int) ([]dense.Result, error)
}

// UnitFetcher resolves unit IDs to stored units, preserving request order
// and omitting IDs it no longer holds.
type UnitFetcher interface {
	GetUnits(ctx context.Context, ids []string) ([]store.Unit, error)
}

var (
	_ LexicalSearcher = (*lexical.Index)(nil)
	_ DenseSearcher   = (*dense.Index)(nil)
	_ UnitFetcher     = (*store.UnitStore)(nil)
)

// Mode selects which backends a query consults.
type Mode string

const (
	// ModeHybrid queries both backends and fuses their rankings.
	ModeHybrid Mode = "hybrid"

	// ModeLexical consults only the lexical index. Scores are raw BM25.
	ModeLexical Mode = "lexical"

	// ModeSemantic consults only the dense index. Scores are cosine
	// similarity.
	ModeSemantic Mode = "semantic"
)

// Weights sets the relative influence of each backend during fusion.
type Weights struct {
	// Lexical is the fusion weight for keyword ranks.
	Lexical float64

	// Semantic is the fusion weight for dense ranks.
	Semantic float64
}

// DefaultWeights favors semantic matches, which handle paraphrased queries
// better than exact keyword overlap.
func DefaultWeights() Weights {
	return Weights{
		Lexical:  0.4,
		Semantic: 0.6,
	}
}

// Options configures a single query.
type Options struct {
	// TopK is the maximum number of results to return. Zero applies the
	// configured default.
	TopK int

	// Domain restricts results to units with this domain tag. Empty means
	// no restriction.
	Domain string

	// Mode selects the backends to consult. Empty means ModeHybrid.
	Mode Mode

	// Weights overrides the configured fusion weights for this query.
	Weights *Weights
}

// Result is one ranked passage. Ranks are 1-indexed positions in the
// backend candidate lists; zero means the unit was absent from that list,
// and the matching score field is meaningless.
type Result struct {
	// Unit carries the passage text and its source metadata.
	Unit store.Unit

	// CombinedScore is the fused score in hybrid mode, or the raw backend
	// score in a single-backend mode.
	CombinedScore float64

	// LexicalScore is the BM25 score from the lexical index.
	LexicalScore float64

	// SemanticScore is the similarity score from the dense index.
	SemanticScore float64

	// LexicalRank is the position in the lexical candidate list.
	LexicalRank int

	// SemanticRank is the position in the dense candidate list.
	SemanticRank int

	// InBothLists reports that both backends proposed this unit.
	InBothLists bool
}

// Config holds retriever tuning. Zero fields take the DefaultConfig value.
type Config struct {
	// Weights are the default fusion weights.
	Weights Weights

	// RRFConstant is the fusion smoothing parameter k. Larger values
	// flatten the influence of rank differences at the tail.
	RRFConstant int

	// SemanticTopK is how many candidates the dense backend is asked for.
	SemanticTopK int

	// LexicalTopK is how many candidates the lexical index is asked for.
	LexicalTopK int

	// DefaultTopK is the result count when Options.TopK is zero.
	DefaultTopK int

	// MaxTopK caps Options.TopK.
	MaxTopK int

	// BackendTimeout bounds each backend call within one query. A backend
	// that misses the deadline is dropped from fusion, not waited for.
	BackendTimeout time.Duration
}

// DefaultConfig returns the retriever defaults.
func DefaultConfig() Config {
	return Config{
		Weights:        DefaultWeights(),
		RRFConstant:    DefaultRRFConstant,
		SemanticTopK:   20,
		LexicalTopK:    20,
		DefaultTopK:    10,
		MaxTopK:        100,
		BackendTimeout: 5 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Weights.Lexical <= 0 && c.Weights.Semantic <= 0 {
		c.Weights = d.Weights
	}
	if c.RRFConstant <= 0 {
		c.RRFConstant = d.RRFConstant
	}
	if c.SemanticTopK <= 0 {
		c.SemanticTopK = d.SemanticTopK
	}
	if c.LexicalTopK <= 0 {
		c.LexicalTopK = d.LexicalTopK
	}
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = d.DefaultTopK
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = d.MaxTopK
	}
	if c.BackendTimeout <= 0 {
		c.BackendTimeout = d.BackendTimeout
	}
	return c
}
