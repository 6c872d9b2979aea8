package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/internal/dense"
	"github.com/quarryhq/quarry/internal/lexical"
)

func semanticList(ids ...string) []dense.Result {
	results := make([]dense.Result, len(ids))
	for i, id := range ids {
		results[i] = dense.Result{ID: id, Score: 0.95 - float32(i)*0.05}
	}
	return results
}

func lexicalList(ids ...string) []lexical.Result {
	results := make([]lexical.Result, len(ids))
	for i, id := range ids {
		results[i] = lexical.Result{ID: id, Score: 6.0 - float64(i)*0.5}
	}
	return results
}

func candidatesByID(candidates []*FusedCandidate) map[string]*FusedCandidate {
	byID := make(map[string]*FusedCandidate, len(candidates))
	for _, c := range candidates {
		byID[c.UnitID] = c
	}
	return byID
}

func TestFuse_UnionOfBothLists(t *testing.T) {
	// Given candidate lists that overlap on A and C
	semantic := semanticList("A", "C", "D")
	lex := lexicalList("A", "B", "C")
	fusion := NewFusion(DefaultRRFConstant)

	// When fusing with the default weights
	candidates := fusion.Fuse(semantic, lex, DefaultWeights())

	// Then the union of both lists comes back, ranked, with per-list ranks
	require.Len(t, candidates, 4)
	assert.Equal(t, "A", candidates[0].UnitID)

	byID := candidatesByID(candidates)
	assert.Equal(t, 1, byID["A"].SemanticRank)
	assert.Equal(t, 1, byID["A"].LexicalRank)
	assert.True(t, byID["A"].InBothLists)

	assert.Equal(t, 0, byID["B"].SemanticRank)
	assert.Equal(t, 2, byID["B"].LexicalRank)
	assert.False(t, byID["B"].InBothLists)

	assert.Equal(t, 3, byID["D"].SemanticRank)
	assert.Equal(t, 0, byID["D"].LexicalRank)
	assert.False(t, byID["D"].InBothLists)

	assert.True(t, byID["C"].InBothLists)
}

func TestFuse_DocumentedExample(t *testing.T) {
	// Given a unit ranked 1st semantically and 3rd lexically
	semantic := semanticList("unit-7", "other-a")
	lex := lexicalList("other-b", "other-c", "unit-7")
	weights := Weights{Semantic: 0.6, Lexical: 0.4}
	fusion := NewFusion(60)

	// When fusing
	candidates := fusion.Fuse(semantic, lex, weights)
	byID := candidatesByID(candidates)

	// Then its combined score is 0.6/61 + 0.4/63
	assert.InDelta(t, 0.01618, byID["unit-7"].CombinedScore, 0.00001)
	assert.Equal(t, "unit-7", candidates[0].UnitID)

	// And single-list units carry exactly their single term
	assert.InEpsilon(t, 0.6/62.0, byID["other-a"].CombinedScore, 1e-12)
	assert.InEpsilon(t, 0.4/61.0, byID["other-b"].CombinedScore, 1e-12)
}

func TestFuse_AbsenceContributesZero(t *testing.T) {
	// Given a unit present only in the lexical list
	semantic := semanticList("A")
	lex := lexicalList("A", "B")
	fusion := NewFusion(DefaultRRFConstant)

	// When fusing
	candidates := fusion.Fuse(semantic, lex, DefaultWeights())
	byID := candidatesByID(candidates)

	// Then the missing list adds nothing, not a synthetic worst rank
	assert.InEpsilon(t, 0.4/62.0, byID["B"].CombinedScore, 1e-12)
	assert.Equal(t, 0, byID["B"].SemanticRank)
	assert.Zero(t, byID["B"].SemanticScore)
}

func TestFuse_ScoresAreRawSums(t *testing.T) {
	// Given overlapping lists
	semantic := semanticList("A", "B")
	lex := lexicalList("A")
	weights := DefaultWeights()
	fusion := NewFusion(DefaultRRFConstant)

	// When fusing
	candidates := fusion.Fuse(semantic, lex, weights)

	// Then scores are the raw term sums, not normalized to the maximum
	require.NotEmpty(t, candidates)
	top := candidates[0]
	assert.Equal(t, "A", top.UnitID)
	assert.InEpsilon(t, 0.6/61.0+0.4/61.0, top.CombinedScore, 1e-12)
	assert.NotEqual(t, 1.0, top.CombinedScore)

	for i := 1; i < len(candidates); i++ {
		assert.LessOrEqual(t, candidates[i].CombinedScore, candidates[i-1].CombinedScore)
	}
}

func TestFuse_TieBreakOrder(t *testing.T) {
	// Given zero weights, so every combined score ties at zero
	semantic := semanticList("A", "B")
	lex := lexicalList("C", "D", "B")
	fusion := NewFusion(DefaultRRFConstant)

	// When fusing
	candidates := fusion.Fuse(semantic, lex, Weights{})

	// Then the better semantic rank wins, then the better lexical rank
	require.Len(t, candidates, 4)
	order := make([]string, len(candidates))
	for i, c := range candidates {
		order[i] = c.UnitID
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, order)
}

func TestFuse_EmptyInputs(t *testing.T) {
	fusion := NewFusion(DefaultRRFConstant)

	t.Run("both empty", func(t *testing.T) {
		candidates := fusion.Fuse(nil, nil, DefaultWeights())
		require.NotNil(t, candidates)
		assert.Empty(t, candidates)
	})

	t.Run("semantic empty", func(t *testing.T) {
		candidates := fusion.Fuse(nil, lexicalList("A", "B"), DefaultWeights())
		require.Len(t, candidates, 2)
		assert.Equal(t, "A", candidates[0].UnitID)
		assert.Equal(t, 1, candidates[0].LexicalRank)
		assert.Equal(t, 0, candidates[0].SemanticRank)
	})

	t.Run("lexical empty", func(t *testing.T) {
		candidates := fusion.Fuse(semanticList("A", "B"), nil, DefaultWeights())
		require.Len(t, candidates, 2)
		assert.Equal(t, "A", candidates[0].UnitID)
		assert.Equal(t, 1, candidates[0].SemanticRank)
		assert.Equal(t, 0, candidates[0].LexicalRank)
	})
}

func TestFuse_PreservesBackendScores(t *testing.T) {
	// Given lists with known backend scores
	semantic := []dense.Result{{ID: "A", Score: 0.91}}
	lex := []lexical.Result{{ID: "A", Score: 4.25}}
	fusion := NewFusion(DefaultRRFConstant)

	// When fusing
	candidates := fusion.Fuse(semantic, lex, DefaultWeights())

	// Then the original scores survive alongside the combined score
	require.Len(t, candidates, 1)
	assert.InDelta(t, 0.91, candidates[0].SemanticScore, 1e-6)
	assert.Equal(t, 4.25, candidates[0].LexicalScore)
}

func TestNewFusion_SmoothingConstant(t *testing.T) {
	assert.Equal(t, DefaultRRFConstant, NewFusion(0).K)
	assert.Equal(t, DefaultRRFConstant, NewFusion(-5).K)
	assert.Equal(t, 10, NewFusion(10).K)

	// A smaller k amplifies rank differences
	candidates := NewFusion(10).Fuse(semanticList("A"), nil, Weights{Semantic: 1.0})
	require.Len(t, candidates, 1)
	assert.InEpsilon(t, 1.0/11.0, candidates[0].CombinedScore, 1e-12)
}

func BenchmarkFuse(b *testing.B) {
	sizes := []int{20, 100, 1000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("candidates_%d", size), func(b *testing.B) {
			// Half of each list overlaps with the other
			semantic := make([]dense.Result, size)
			lex := make([]lexical.Result, size)
			for i := 0; i < size; i++ {
				semantic[i] = dense.Result{ID: fmt.Sprintf("unit-%d", i), Score: 0.9}
				lex[i] = lexical.Result{ID: fmt.Sprintf("unit-%d", i+size/2), Score: 3.0}
			}
			fusion := NewFusion(DefaultRRFConstant)
			weights := DefaultWeights()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				fusion.Fuse(semantic, lex, weights)
			}
		})
	}
}
