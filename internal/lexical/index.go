// Package lexical provides the BM25 keyword index over retrieval units.
// Scoring state is immutable once built: every mutation constructs a complete
// replacement state and swaps it in, so concurrent searches never observe a
// half-built index.
package lexical

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
)

// Default BM25 parameters. K1 controls term frequency saturation, B controls
// document length normalization.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// batchCheckInterval is how often long loops poll for cancellation.
const batchCheckInterval = 256

// ErrNotBuilt is returned when the index is used before Build or Load has
// completed. Callers treat it as a degradation signal, not a failure.
var ErrNotBuilt = errors.New("lexical index not built")

// Doc is a retrieval unit to be indexed.
type Doc struct {
	ID     string
	Text   string
	Domain string
}

// Result is a single ranked hit.
type Result struct {
	ID     string
	Score  float64
	Domain string
}

// Stats describes a built index.
type Stats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// indexedDoc is the tokenized form of one document. tokens preserves the
// original sequence so the corpus can be persisted and extended without
// retokenizing; tf is derived from it.
type indexedDoc struct {
	id     string
	domain string
	tokens []string
	tf     map[string]int
}

// indexState is the immutable scoring state. A state is fully constructed
// before it is installed on the Index and never modified afterwards.
type indexState struct {
	docs   []indexedDoc
	idf    map[string]float64
	avgLen float64
}

// Index scores documents with Okapi BM25. Safe for concurrent use: searches
// run against the last installed state while mutations prepare the next one.
type Index struct {
	mu    sync.RWMutex
	state *indexState
	k1    float64
	b     float64
	keep  []RuneRange
}

// Option configures an Index.
type Option func(*Index)

// WithK1 overrides the term frequency saturation parameter.
func WithK1(k1 float64) Option {
	return func(i *Index) { i.k1 = k1 }
}

// WithB overrides the length normalization parameter.
func WithB(b float64) Option {
	return func(i *Index) { i.b = b }
}

// WithKeepRanges overrides the tokenizer keep ranges.
func WithKeepRanges(keep []RuneRange) Option {
	return func(i *Index) { i.keep = keep }
}

// New returns an empty, unbuilt index.
func New(opts ...Option) *Index {
	idx := &Index{
		k1:   DefaultK1,
		b:    DefaultB,
		keep: DefaultKeepRanges,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Build tokenizes docs and replaces the entire index contents. Building with
// an empty slice produces a built, empty index. Tokenization runs outside the
// lock; searches keep answering from the previous state until the swap.
func (i *Index) Build(ctx context.Context, docs []Doc) error {
	indexed := make([]indexedDoc, 0, len(docs))
	for n, doc := range docs {
		if n%batchCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		indexed = append(indexed, newIndexedDoc(doc, i.keep))
	}

	st := buildState(indexed)

	i.mu.Lock()
	i.state = st
	i.mu.Unlock()
	return nil
}

// Add indexes additional documents without retokenizing the existing corpus.
// A document whose ID is already indexed replaces the previous entry, moving
// it to the end of the indexing order. Add on an unbuilt index behaves like
// Build.
func (i *Index) Add(ctx context.Context, docs []Doc) error {
	if len(docs) == 0 {
		return nil
	}

	indexed := make([]indexedDoc, 0, len(docs))
	for n, doc := range docs {
		if n%batchCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		indexed = append(indexed, newIndexedDoc(doc, i.keep))
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	var existing []indexedDoc
	if i.state != nil {
		existing = i.state.docs
	}

	replaced := make(map[string]struct{}, len(indexed))
	for _, d := range indexed {
		replaced[d.id] = struct{}{}
	}

	merged := make([]indexedDoc, 0, len(existing)+len(indexed))
	for _, d := range existing {
		if _, ok := replaced[d.id]; ok {
			continue
		}
		merged = append(merged, d)
	}
	merged = append(merged, indexed...)

	i.state = buildState(merged)
	return nil
}

// Remove drops documents by ID. Unknown IDs are ignored. Removing from an
// unbuilt index returns ErrNotBuilt.
func (i *Index) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state == nil {
		return ErrNotBuilt
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := make([]indexedDoc, 0, len(i.state.docs))
	for _, d := range i.state.docs {
		if _, ok := drop[d.id]; ok {
			continue
		}
		kept = append(kept, d)
	}
	if len(kept) == len(i.state.docs) {
		return nil
	}

	i.state = buildState(kept)
	return nil
}

// Search scores the query against every document and returns up to topK hits
// in descending score order. Documents scoring zero are excluded. Equal
// scores keep indexing order. When domainFilter is non-empty, non-matching
// documents are skipped after scoring, so topK counts only hits from the
// requested domain. An unbuilt index returns ErrNotBuilt so callers can
// degrade instead of failing.
func (i *Index) Search(ctx context.Context, query string, topK int, domainFilter string) ([]Result, error) {
	i.mu.RLock()
	st := i.state
	k1, b := i.k1, i.b
	keep := i.keep
	i.mu.RUnlock()

	if st == nil {
		return nil, ErrNotBuilt
	}
	if topK <= 0 {
		return []Result{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := TokenizeWith(query, keep)
	if len(terms) == 0 {
		return []Result{}, nil
	}

	type scoredDoc struct {
		pos   int
		score float64
	}
	hits := make([]scoredDoc, 0)
	for pos := range st.docs {
		if pos%batchCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		s := st.score(&st.docs[pos], terms, k1, b)
		if s <= 0 {
			continue
		}
		hits = append(hits, scoredDoc{pos: pos, score: s})
	}
	if len(hits) == 0 {
		return []Result{}, nil
	}

	// Stable sort so equal scores keep indexing order.
	sort.SliceStable(hits, func(x, y int) bool { return hits[x].score > hits[y].score })

	results := make([]Result, 0, min(topK, len(hits)))
	for _, h := range hits {
		if len(results) >= topK {
			break
		}
		doc := &st.docs[h.pos]
		if domainFilter != "" && doc.domain != domainFilter {
			continue
		}
		results = append(results, Result{ID: doc.id, Score: h.score, Domain: doc.domain})
	}
	return results, nil
}

// IsBuilt reports whether Build or Load has completed at least once.
func (i *Index) IsBuilt() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state != nil
}

// Count returns the number of indexed documents.
func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.state == nil {
		return 0
	}
	return len(i.state.docs)
}

// Stats returns corpus statistics. An unbuilt index reports the zero value.
func (i *Index) Stats() Stats {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.state == nil {
		return Stats{}
	}
	return Stats{
		DocumentCount: len(i.state.docs),
		TermCount:     len(i.state.idf),
		AvgDocLength:  i.state.avgLen,
	}
}

// Params returns the BM25 parameters the index scores with.
func (i *Index) Params() (k1, b float64) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.k1, i.b
}

// newIndexedDoc tokenizes one document and counts its term frequencies.
func newIndexedDoc(doc Doc, keep []RuneRange) indexedDoc {
	tokens := TokenizeWith(doc.Text, keep)
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return indexedDoc{id: doc.ID, domain: doc.Domain, tokens: tokens, tf: tf}
}

// buildState computes document frequencies, smoothed IDF, and the average
// document length for a fully tokenized corpus.
func buildState(docs []indexedDoc) *indexState {
	df := make(map[string]int)
	totalLen := 0
	for _, d := range docs {
		totalLen += len(d.tokens)
		for term := range d.tf {
			df[term]++
		}
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		// Smoothed IDF stays positive even for terms present in every document.
		idf[term] = math.Log((n+1)/float64(count+1)) + 1
	}

	avgLen := 0.0
	if len(docs) > 0 {
		avgLen = float64(totalLen) / n
	}

	return &indexState{docs: docs, idf: idf, avgLen: avgLen}
}

// score sums the BM25 contribution of every query term against one document.
// Repeated query terms contribute once per occurrence.
func (st *indexState) score(doc *indexedDoc, terms []string, k1, b float64) float64 {
	dl := float64(len(doc.tokens))
	var total float64
	for _, term := range terms {
		tf := doc.tf[term]
		if tf == 0 {
			continue
		}
		freq := float64(tf)
		numerator := freq * (k1 + 1)
		denominator := freq + k1*(1-b+b*dl/st.avgLen)
		total += st.idf[term] * (numerator / denominator)
	}
	return total
}
