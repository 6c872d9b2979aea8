package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

// Feature weights for the hash-based vector. Whole words carry most of
// the signal; character trigrams keep inflected forms of the same word
// close together.
const (
	wordWeight = 0.7
	gramWeight = 0.3
	gramWidth  = 3
)

// StaticEmbedder generates embeddings by hashing word and character
// n-gram features into a fixed-width vector. It is deterministic and
// needs no network or model files, trading semantic quality for
// availability. Tokenization works on runes so non-Latin scripts
// produce usable features.
type StaticEmbedder struct {
	mu     sync.RWMutex // guards closed
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder returns a ready-to-use hashing embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// guard rejects calls on a closed embedder.
func (e *StaticEmbedder) guard() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return errClosed
	}
	return nil
}

// Embed generates the embedding for a single text. Blank text yields a
// zero vector.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}
	return normalizeVector(featureVector(trimmed)), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// featureVector accumulates hashed word and trigram weights into a raw
// unnormalized vector.
func featureVector(text string) []float32 {
	vec := make([]float32, StaticDimensions)
	for _, word := range tokenizeProse(text) {
		vec[featureIndex(word)] += wordWeight
	}
	for _, gram := range runeNgrams(text, gramWidth) {
		vec[featureIndex(gram)] += gramWeight
	}
	return vec
}

// tokenizeProse splits text into lowercased runs of letters and digits.
func tokenizeProse(text string) []string {
	var tokens []string
	var current []rune
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current = append(current, unicode.ToLower(r))
			continue
		}
		if len(current) > 0 {
			tokens = append(tokens, string(current))
			current = current[:0]
		}
	}
	if len(current) > 0 {
		tokens = append(tokens, string(current))
	}
	return tokens
}

// runeNgrams extracts sliding windows from the letters and digits of
// text. Separators are dropped first, so grams cross word boundaries.
// Windows are taken over runes, not bytes, keeping multi-byte scripts
// intact.
func runeNgrams(text string, n int) []string {
	var runes []rune
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			runes = append(runes, unicode.ToLower(r))
		}
	}
	if len(runes) < n {
		return nil
	}

	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}

// featureIndex maps a feature string to a vector slot with FNV-64a.
func featureIndex(feature string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	return int(h.Sum64() % StaticDimensions)
}

// Dimensions returns the embedding vector width.
func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

// ModelName identifies the provider in status output.
func (e *StaticEmbedder) ModelName() string {
	return "static"
}

// Available reports readiness, which for this provider only ends at
// Close.
func (e *StaticEmbedder) Available(_ context.Context) bool {
	return e.guard() == nil
}

// Close marks the embedder closed; there is nothing else to release.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}
