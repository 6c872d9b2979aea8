package lexical

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_BuildAndSearch_Basic(t *testing.T) {
	// Given: a small corpus
	idx := New()
	docs := []Doc{
		{ID: "1", Text: "nightly backup schedule", Domain: "guides"},
		{ID: "2", Text: "restore from backup", Domain: "guides"},
		{ID: "3", Text: "user permissions model", Domain: "guides"},
	}
	require.NoError(t, idx.Build(context.Background(), docs))

	// When: searching for a shared term
	results, err := idx.Search(context.Background(), "backup", 10, "")
	require.NoError(t, err)

	// Then: both matching documents are returned with positive scores
	require.Len(t, results, 2)
	assert.Greater(t, results[0].Score, 0.0)
	assert.Greater(t, results[1].Score, 0.0)

	// And: the non-matching document is absent
	for _, r := range results {
		assert.NotEqual(t, "3", r.ID)
	}
}

func TestIndex_Search_ExactScore(t *testing.T) {
	// Given: a single document, so idf = ln(2/2)+1 = 1 and dl = avgLen
	idx := New()
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "1", Text: "alpha beta alpha"},
	}))

	// When: searching a term with tf=2 in a length-3 document
	results, err := idx.Search(context.Background(), "alpha", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Then: score = 1 * (2*(1.5+1)) / (2 + 1.5*(1-0.75+0.75*3/3)) = 5/3.5
	assert.InDelta(t, 5.0/3.5, results[0].Score, 1e-12)
}

func TestIndex_Search_RareTermRanksHigher(t *testing.T) {
	// Given: "error" in every document, "authentication" in one
	idx := New()
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "1", Text: "error handling guide"},
		{ID: "2", Text: "error logging guide"},
		{ID: "3", Text: "authentication error guide"},
	}))

	// When: querying with both a common and a rare term
	results, err := idx.Search(context.Background(), "authentication error", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Then: the document carrying the rare term ranks first
	assert.Equal(t, "3", results[0].ID)
}

func TestIndex_Search_TermFrequencySaturates(t *testing.T) {
	// Given: equal-length documents with different term frequencies
	idx := New()
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "1", Text: "cache cache miss"},
		{ID: "2", Text: "cache miss miss"},
	}))

	// When: searching the shared term
	results, err := idx.Search(context.Background(), "cache", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Then: higher tf wins, but sublinearly (5/3.5 vs 2.5/2.5 with idf=1)
	assert.Equal(t, "1", results[0].ID)
	assert.Equal(t, "2", results[1].ID)
	assert.InDelta(t, 5.0/3.5, results[0].Score, 1e-12)
	assert.InDelta(t, 1.0, results[1].Score, 1e-12)
	assert.Less(t, results[0].Score, 2*results[1].Score)
}

func TestIndex_Search_OOVQueryReturnsEmpty(t *testing.T) {
	// Given: a built corpus
	idx := New()
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "1", Text: "observability runbook"},
	}))

	// When: querying a term absent from the corpus
	results, err := idx.Search(context.Background(), "quartz", 10, "")

	// Then: empty results, no error
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_Search_TiesKeepIndexingOrder(t *testing.T) {
	// Given: two identical documents and one unrelated
	idx := New()
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "first", Text: "alpha beta"},
		{ID: "second", Text: "alpha beta"},
		{ID: "other", Text: "gamma delta"},
	}))

	// When: searching a term both duplicates share
	results, err := idx.Search(context.Background(), "alpha", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Then: equal scores preserve indexing order
	assert.Equal(t, "first", results[0].ID)
	assert.Equal(t, "second", results[1].ID)
	assert.InDelta(t, results[0].Score, results[1].Score, 1e-12)
}

func TestIndex_Search_TopKTruncates(t *testing.T) {
	// Given: five matching documents
	idx := New()
	docs := make([]Doc, 5)
	for i := range docs {
		docs[i] = Doc{ID: fmt.Sprintf("u%d", i), Text: "shared term content"}
	}
	require.NoError(t, idx.Build(context.Background(), docs))

	// When: asking for two
	results, err := idx.Search(context.Background(), "shared", 2, "")
	require.NoError(t, err)

	// Then: exactly two come back
	assert.Len(t, results, 2)

	// And: topK of zero returns nothing
	results, err = idx.Search(context.Background(), "shared", 0, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_Search_DomainFilterAppliedAfterScoring(t *testing.T) {
	// Given: api documents that outscore every guides document
	idx := New()
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "a1", Text: "cache cache cache cache", Domain: "api"},
		{ID: "a2", Text: "cache cache miss miss", Domain: "api"},
		{ID: "g1", Text: "cache miss", Domain: "guides"},
		{ID: "g2", Text: "cache miss miss miss", Domain: "guides"},
	}))

	// When: filtering to guides with topK=2
	results, err := idx.Search(context.Background(), "cache", 2, "guides")
	require.NoError(t, err)

	// Then: both guides documents are returned even though neither is in
	// the unfiltered top two
	require.Len(t, results, 2)
	assert.Equal(t, "g1", results[0].ID)
	assert.Equal(t, "g2", results[1].ID)
	assert.Equal(t, "guides", results[0].Domain)

	// And: scores come from the whole corpus (avgLen=3.5, idf=1), not a
	// corpus restricted to the filtered domain
	assert.InDelta(t, 140.0/113.0, results[0].Score, 1e-12)

	// And: an unknown domain yields no hits
	results, err = idx.Search(context.Background(), "cache", 2, "blog")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_Search_EmptyQuery(t *testing.T) {
	// Given: a built index
	idx := New()
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "1", Text: "some content here"},
	}))

	// When/Then: empty, whitespace, and punctuation-only queries return
	// empty results without error
	for _, q := range []string{"", "   ", "?!...", "a"} {
		results, err := idx.Search(context.Background(), q, 10, "")
		require.NoError(t, err)
		assert.Empty(t, results, "query %q", q)
	}
}

func TestIndex_Search_Unbuilt_ReturnsErrNotBuilt(t *testing.T) {
	// Given: a fresh index
	idx := New()
	assert.False(t, idx.IsBuilt())

	// When: searching before Build
	results, err := idx.Search(context.Background(), "anything", 10, "")

	// Then: the degradation sentinel comes back with no results
	require.ErrorIs(t, err, ErrNotBuilt)
	assert.Empty(t, results)

	// And: building flips IsBuilt
	require.NoError(t, idx.Build(context.Background(), []Doc{{ID: "1", Text: "anything at all"}}))
	assert.True(t, idx.IsBuilt())
}

func TestIndex_Build_EmptyCorpus(t *testing.T) {
	// Given: a build over zero documents
	idx := New()
	require.NoError(t, idx.Build(context.Background(), nil))

	// Then: the index counts as built and searches cleanly
	assert.True(t, idx.IsBuilt())
	assert.Equal(t, 0, idx.Count())

	results, err := idx.Search(context.Background(), "anything", 10, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_Search_CaseInsensitive(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "1", Text: "Deployment Checklist"},
	}))

	results, err := idx.Search(context.Background(), "DEPLOYMENT checklist", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].ID)
}

func TestIndex_Search_Hebrew(t *testing.T) {
	// Given: a Hebrew document
	idx := New()
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "1", Text: "מדריך גיבוי נתונים", Domain: "guides"},
		{ID: "2", Text: "release process notes", Domain: "guides"},
	}))

	// When: querying in Hebrew
	results, err := idx.Search(context.Background(), "גיבוי", 10, "")
	require.NoError(t, err)

	// Then: the Hebrew document is found
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].ID)
}

func TestIndex_Search_DuplicateQueryTermsAccumulate(t *testing.T) {
	// Given: one document
	idx := New()
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "1", Text: "alpha beta gamma"},
	}))

	// When: querying the same term once and twice
	once, err := idx.Search(context.Background(), "alpha", 10, "")
	require.NoError(t, err)
	twice, err := idx.Search(context.Background(), "alpha alpha", 10, "")
	require.NoError(t, err)

	// Then: each occurrence contributes independently
	require.Len(t, once, 1)
	require.Len(t, twice, 1)
	assert.InDelta(t, 2*once[0].Score, twice[0].Score, 1e-12)
}

func TestIndex_Add_ExtendsCorpus(t *testing.T) {
	// Given: a built corpus of one document
	idx := New()
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "1", Text: "redis cache layer", Domain: "api"},
	}))

	// When: adding a second document
	require.NoError(t, idx.Add(context.Background(), []Doc{
		{ID: "2", Text: "postgres storage layer", Domain: "api"},
	}))

	// Then: the new document is searchable
	results, err := idx.Search(context.Background(), "postgres", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2", results[0].ID)

	// And: document frequencies cover both documents
	results, err = idx.Search(context.Background(), "layer", 10, "")
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 2, idx.Count())
}

func TestIndex_Add_ReplacesExistingID(t *testing.T) {
	// Given: an indexed document
	idx := New()
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "u1", Text: "stale draft wording"},
	}))

	// When: adding a document with the same ID
	require.NoError(t, idx.Add(context.Background(), []Doc{
		{ID: "u1", Text: "fresh final wording"},
	}))

	// Then: only the new content is searchable
	results, err := idx.Search(context.Background(), "stale", 10, "")
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(context.Background(), "fresh", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "u1", results[0].ID)
	assert.Equal(t, 1, idx.Count())
}

func TestIndex_Add_OnUnbuiltBehavesLikeBuild(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Add(context.Background(), []Doc{
		{ID: "1", Text: "first ever document"},
	}))

	assert.True(t, idx.IsBuilt())
	results, err := idx.Search(context.Background(), "document", 10, "")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestIndex_Remove(t *testing.T) {
	// Given: two indexed documents
	idx := New()
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "1", Text: "document one unique"},
		{ID: "2", Text: "document two different"},
	}))

	// When: removing one
	require.NoError(t, idx.Remove(context.Background(), []string{"1"}))

	// Then: it is gone and the other survives
	results, err := idx.Search(context.Background(), "unique", 10, "")
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(context.Background(), "different", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2", results[0].ID)

	// And: removing an unknown ID is a no-op
	require.NoError(t, idx.Remove(context.Background(), []string{"missing"}))
	assert.Equal(t, 1, idx.Count())

	// And: removing from an unbuilt index reports ErrNotBuilt
	assert.ErrorIs(t, New().Remove(context.Background(), []string{"1"}), ErrNotBuilt)
}

func TestIndex_Rebuild_ReplacesContents(t *testing.T) {
	// Given: an index built from one corpus
	idx := New()
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "old", Text: "legacy playbook"},
	}))

	// When: building again from a different corpus
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "new", Text: "current playbook"},
	}))

	// Then: the old corpus is gone entirely
	results, err := idx.Search(context.Background(), "legacy", 10, "")
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = idx.Search(context.Background(), "playbook", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].ID)
}

func TestIndex_Stats(t *testing.T) {
	// Given: an unbuilt index
	idx := New()
	assert.Equal(t, Stats{}, idx.Stats())

	// When: building a known corpus
	require.NoError(t, idx.Build(context.Background(), []Doc{
		{ID: "1", Text: "alpha beta"},
		{ID: "2", Text: "beta gamma delta beta"},
	}))

	// Then: stats reflect it
	stats := idx.Stats()
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Equal(t, 4, stats.TermCount)
	assert.InDelta(t, 3.0, stats.AvgDocLength, 1e-12)
}

func TestIndex_Params(t *testing.T) {
	// Defaults
	k1, b := New().Params()
	assert.InDelta(t, DefaultK1, k1, 1e-12)
	assert.InDelta(t, DefaultB, b, 1e-12)

	// Options override them
	k1, b = New(WithK1(2.0), WithB(0.5)).Params()
	assert.InDelta(t, 2.0, k1, 1e-12)
	assert.InDelta(t, 0.5, b, 1e-12)
}

func TestIndex_ConcurrentSearchDuringRebuild(t *testing.T) {
	// Given: two corpora with different match counts for the same query
	corpusA := []Doc{
		{ID: "a1", Text: "alpha one"},
		{ID: "a2", Text: "alpha two"},
	}
	corpusB := []Doc{
		{ID: "b1", Text: "alpha one"},
		{ID: "b2", Text: "alpha two"},
		{ID: "b3", Text: "alpha three"},
	}

	idx := New()
	require.NoError(t, idx.Build(context.Background(), corpusA))

	// When: searches run while the index is rebuilt repeatedly
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				results, err := idx.Search(context.Background(), "alpha", 10, "")
				assert.NoError(t, err)
				// Then: every search sees a complete corpus, never a
				// partial one
				n := len(results)
				assert.True(t, n == 2 || n == 3, "got %d results", n)
			}
		}()
	}

	for i := 0; i < 50; i++ {
		require.NoError(t, idx.Build(context.Background(), corpusB))
		require.NoError(t, idx.Build(context.Background(), corpusA))
	}
	close(stop)
	wg.Wait()
}

func TestIndex_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Build, Add, Remove, and Search all honor cancellation
	idx := New()
	docs := []Doc{{ID: "1", Text: "some content"}}
	assert.ErrorIs(t, idx.Build(ctx, docs), context.Canceled)
	assert.ErrorIs(t, idx.Add(ctx, docs), context.Canceled)

	require.NoError(t, idx.Build(context.Background(), docs))
	assert.ErrorIs(t, idx.Remove(ctx, []string{"1"}), context.Canceled)

	_, err := idx.Search(ctx, "content", 10, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func benchmarkCorpus(n int) []Doc {
	words := []string{
		"backup", "restore", "retention", "snapshot", "policy",
		"storage", "archive", "cache", "index", "replica",
	}
	docs := make([]Doc, n)
	for i := range docs {
		var sb strings.Builder
		for j := 0; j < 40; j++ {
			sb.WriteString(words[(i+j*7)%len(words)])
			sb.WriteByte(' ')
		}
		docs[i] = Doc{ID: fmt.Sprintf("u%04d", i), Text: sb.String(), Domain: "bench"}
	}
	return docs
}

func BenchmarkIndex_Build(b *testing.B) {
	docs := benchmarkCorpus(1000)
	idx := New()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := idx.Build(context.Background(), docs); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkIndex_Search(b *testing.B) {
	idx := New()
	if err := idx.Build(context.Background(), benchmarkCorpus(1000)); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := idx.Search(context.Background(), "backup retention policy", 10, ""); err != nil {
			b.Fatal(err)
		}
	}
}
