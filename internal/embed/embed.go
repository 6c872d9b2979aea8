// Package embed generates vector embeddings for document text.
//
// Two providers are available: a remote HTTP embedding service and a
// deterministic hash-based fallback that works offline. Both produce
// unit-length vectors, so cosine similarity reduces to a dot product.
package embed

import (
	"context"
	"errors"
	"math"
	"time"
)

// errClosed is returned by every provider entry point after Close.
var errClosed = errors.New("embedder is closed")

const (
	// DefaultBatchSize is the number of texts sent per embedding request.
	DefaultBatchSize = 32

	// MaxBatchSize caps a single request to bound request size and memory.
	MaxBatchSize = 256

	// DefaultWarmTimeout bounds a request when the service answered
	// recently and the model is expected to be loaded.
	DefaultWarmTimeout = 30 * time.Second

	// DefaultColdTimeout bounds the first request after an idle period,
	// when the service may need to load the model first.
	DefaultColdTimeout = 120 * time.Second

	// ModelIdleThreshold is the idle duration after which the service is
	// assumed to have unloaded the model.
	ModelIdleThreshold = 5 * time.Minute

	// DefaultDimensions is the vector width assumed for the remote
	// provider when neither config nor the service supplies one.
	DefaultDimensions = 768

	// StaticDimensions is the vector width of the hash-based embedder.
	StaticDimensions = 256
)

// ProgressFunc receives (completed, total) counts while a batch embeds.
type ProgressFunc func(completed, total int)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. The result
	// slice is index-aligned with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector width.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the embedder is ready to serve.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales v to unit length. A zero vector is returned
// unchanged since it has no direction to preserve.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
