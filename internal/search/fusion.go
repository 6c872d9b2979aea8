package search

import (
	"sort"

	"github.com/quarryhq/quarry/internal/dense"
	"github.com/quarryhq/quarry/internal/lexical"
)

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.).
const DefaultRRFConstant = 60

// FusedCandidate is one unit in the fused ranking, before enrichment.
// A zero rank means the unit was absent from that backend's list and that
// list contributed nothing to the combined score.
type FusedCandidate struct {
	UnitID        string
	CombinedScore float64
	LexicalScore  float64
	LexicalRank   int
	SemanticScore float64
	SemanticRank  int
	InBothLists   bool
}

// Fusion merges per-backend rankings with weighted Reciprocal Rank Fusion.
//
// Each list contributes weight_i / (k + rank_i) for the units it contains,
// with ranks 1-indexed. A unit in only one list keeps just that single
// term; absence is worth zero, not a synthetic worst rank. Combined scores
// are the raw term sums, so the documented formula can be checked against
// the output directly.
type Fusion struct {
	K int
}

// NewFusion returns a Fusion with the given smoothing constant.
// Nonpositive k falls back to DefaultRRFConstant.
func NewFusion(k int) *Fusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Fusion{K: k}
}

// Fuse combines a dense candidate list and a lexical candidate list into
// one ranking ordered by descending combined score.
//
// Ties are broken by the better semantic rank (present before absent),
// then the better lexical rank, then insertion order into the union, with
// the semantic list enumerated first.
func (f *Fusion) Fuse(semantic []dense.Result, lex []lexical.Result, w Weights) []*FusedCandidate {
	capacity := len(semantic) + len(lex)
	if capacity == 0 {
		return []*FusedCandidate{}
	}

	byID := make(map[string]*FusedCandidate, capacity)
	ordered := make([]*FusedCandidate, 0, capacity)

	getOrCreate := func(id string) *FusedCandidate {
		if c, ok := byID[id]; ok {
			return c
		}
		c := &FusedCandidate{UnitID: id}
		byID[id] = c
		ordered = append(ordered, c)
		return c
	}

	for rank, r := range semantic {
		c := getOrCreate(r.ID)
		c.SemanticScore = float64(r.Score)
		c.SemanticRank = rank + 1
		c.CombinedScore += w.Semantic / float64(f.K+rank+1)
	}

	for rank, r := range lex {
		c := getOrCreate(r.ID)
		c.LexicalScore = r.Score
		c.LexicalRank = rank + 1
		c.CombinedScore += w.Lexical / float64(f.K+rank+1)
		if c.SemanticRank > 0 {
			c.InBothLists = true
		}
	}

	// Stable sort so full ties keep insertion order.
	sort.SliceStable(ordered, func(i, j int) bool {
		return f.less(ordered[i], ordered[j])
	})

	return ordered
}

// less reports whether a should rank before b.
func (f *Fusion) less(a, b *FusedCandidate) bool {
	if a.CombinedScore != b.CombinedScore {
		return a.CombinedScore > b.CombinedScore
	}
	if a.SemanticRank != b.SemanticRank {
		return rankBefore(a.SemanticRank, b.SemanticRank)
	}
	if a.LexicalRank != b.LexicalRank {
		return rankBefore(a.LexicalRank, b.LexicalRank)
	}
	return false
}

// rankBefore orders two distinct ranks: present beats absent, and among
// present ranks the smaller (better) one wins.
func rankBefore(a, b int) bool {
	if a == 0 {
		return false
	}
	if b == 0 {
		return true
	}
	return a < b
}
