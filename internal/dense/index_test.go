package dense

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := New(DefaultConfig(4))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func addVec(t *testing.T, ix *Index, id string, v []float32) {
	t.Helper()
	require.NoError(t, ix.Add(context.Background(), []string{id}, [][]float32{v}))
}

func TestNew_RequiresPositiveDimensions(t *testing.T) {
	_, err := New(Config{Dimensions: 0})
	assert.Error(t, err)
}

func TestIndex_SearchRanksByCloseness(t *testing.T) {
	// Given
	ix := newTestIndex(t)
	addVec(t, ix, "a", []float32{1, 0, 0, 0})
	addVec(t, ix, "b", []float32{0, 1, 0, 0})
	addVec(t, ix, "c", []float32{0.9, 0.1, 0, 0})

	// When
	results, err := ix.Search(context.Background(), []float32{1, 0, 0, 0}, 2)

	// Then the exact match leads and the near match follows
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-6)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestIndex_RejectsDimensionMismatch(t *testing.T) {
	// Given
	ix := newTestIndex(t)

	// When adding a 3-wide vector to a 4-wide index
	err := ix.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0}})

	// Then
	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Got)

	// And the same guard protects search
	_, err = ix.Search(context.Background(), []float32{1, 0}, 1)
	assert.ErrorAs(t, err, &dimErr)
}

func TestIndex_AddReplacesExistingID(t *testing.T) {
	// Given
	ix := newTestIndex(t)
	addVec(t, ix, "a", []float32{1, 0, 0, 0})

	// When the same ID gets a new vector
	addVec(t, ix, "a", []float32{0, 1, 0, 0})

	// Then one live vector remains and it answers at its new position
	assert.Equal(t, 1, ix.Count())
	results, err := ix.Search(context.Background(), []float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-6)

	// And the old node lingers as an orphan
	assert.Equal(t, Stats{Live: 1, GraphNodes: 2, Orphans: 1}, ix.Stats())
}

func TestIndex_RemoveIsLazyUntilCompact(t *testing.T) {
	// Given
	ix := newTestIndex(t)
	addVec(t, ix, "a", []float32{1, 0, 0, 0})
	addVec(t, ix, "b", []float32{0, 1, 0, 0})
	addVec(t, ix, "c", []float32{0, 0, 1, 0})

	// When
	require.NoError(t, ix.Remove(context.Background(), []string{"b"}))

	// Then the removed ID is gone from results but not from the graph
	assert.Equal(t, 2, ix.Count())
	assert.False(t, ix.Contains("b"))
	results, err := ix.Search(context.Background(), []float32{0, 1, 0, 0}, 3)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "b", r.ID)
	}
	assert.Equal(t, 1, ix.Stats().Orphans)

	// When compacted
	require.NoError(t, ix.Compact())

	// Then the orphan is reclaimed and live vectors still answer
	assert.Equal(t, Stats{Live: 2, GraphNodes: 2, Orphans: 0}, ix.Stats())
	results, err = ix.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestIndex_SearchReachesPastOrphans(t *testing.T) {
	// Given a cluster near the query that has been removed
	ix := newTestIndex(t)
	addVec(t, ix, "r1", []float32{1, 0, 0, 0})
	addVec(t, ix, "r2", []float32{0.99, 0.01, 0, 0})
	addVec(t, ix, "r3", []float32{0.98, 0.02, 0, 0})
	addVec(t, ix, "live", []float32{0.5, 0.5, 0, 0})
	require.NoError(t, ix.Remove(context.Background(), []string{"r1", "r2", "r3"}))

	// When asking for one neighbor
	results, err := ix.Search(context.Background(), []float32{1, 0, 0, 0}, 1)

	// Then the surviving vector is found even though orphans rank closer
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "live", results[0].ID)
}

func TestIndex_SearchEmptyIndex(t *testing.T) {
	ix := newTestIndex(t)
	results, err := ix.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_SaveLoadRoundTrip(t *testing.T) {
	// Given a populated index saved to disk
	ix := newTestIndex(t)
	addVec(t, ix, "a", []float32{1, 0, 0, 0})
	addVec(t, ix, "b", []float32{0, 1, 0, 0})
	path := filepath.Join(t.TempDir(), "index", "vectors.hnsw")
	require.NoError(t, ix.Save(path))

	// When loaded into a fresh index
	loaded, err := New(DefaultConfig(8))
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()
	require.NoError(t, loaded.Load(path))

	// Then contents and the persisted config win over the fresh one
	assert.Equal(t, 2, loaded.Count())
	assert.True(t, loaded.Contains("a"))
	results, err := loaded.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)

	// And the sidecar reports the embedding width
	dims, err := ReadDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 4, dims)
}

func TestReadDimensions_MissingIndexMeansFreshStart(t *testing.T) {
	dims, err := ReadDimensions(filepath.Join(t.TempDir(), "vectors.hnsw"))
	require.NoError(t, err)
	assert.Equal(t, 0, dims)
}

func TestIndex_CloseIsIdempotentAndFinal(t *testing.T) {
	// Given
	ix := newTestIndex(t)
	require.NoError(t, ix.Close())

	// Then
	require.NoError(t, ix.Close())
	assert.Error(t, ix.Add(context.Background(), []string{"a"}, [][]float32{{1, 0, 0, 0}}))
	_, err := ix.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	assert.Error(t, err)
	assert.Equal(t, 0, ix.Count())
}

func TestIndex_LoadMissingFileFails(t *testing.T) {
	ix := newTestIndex(t)
	err := ix.Load(filepath.Join(t.TempDir(), "nope.hnsw"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata")
}

func BenchmarkIndex_Search(b *testing.B) {
	ix, err := New(DefaultConfig(128))
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = ix.Close() }()

	rng := rand.New(rand.NewSource(42))
	ids := make([]string, 1000)
	vectors := make([][]float32, 1000)
	for i := range ids {
		ids[i] = fmt.Sprintf("unit-%04d", i)
		vec := make([]float32, 128)
		for j := range vec {
			vec[j] = rng.Float32()
		}
		vectors[i] = vec
	}
	if err := ix.Add(context.Background(), ids, vectors); err != nil {
		b.Fatal(err)
	}

	query := make([]float32, 128)
	for j := range query {
		query[j] = rng.Float32()
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ix.Search(context.Background(), query, 10); err != nil {
			b.Fatal(err)
		}
	}
}
