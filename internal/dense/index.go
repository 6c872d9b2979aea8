// Package dense holds unit embedding vectors in an HNSW graph for
// approximate nearest neighbor search. The graph lives in memory and
// persists as an exported graph file plus a gob metadata sidecar.
package dense

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// Config controls graph construction and search.
type Config struct {
	Dimensions int
	M          int
	EfSearch   int
	Metric     string
}

// DefaultConfig returns the standard graph parameters for the given
// embedding width.
func DefaultConfig(dimensions int) Config {
	return Config{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   20,
		Metric:     "cos",
	}
}

// Result is one nearest neighbor hit.
type Result struct {
	ID       string
	Distance float32
	Score    float32
}

// ErrDimensionMismatch reports a vector whose width does not match the
// index.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dense: dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Index maps unit IDs to vectors in an HNSW graph. String IDs translate to
// internal uint64 keys; removal is lazy because the graph misbehaves when
// nodes are deleted outright, so orphaned nodes stay until Compact.
type Index struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	cfg   Config

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

// metadata is the persisted sidecar: ID mappings plus the config the graph
// was built with.
type metadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  Config
}

// New creates an empty index.
func New(cfg Config) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dense: dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	return &Index{
		graph:  newGraph(cfg),
		cfg:    cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}, nil
}

func newGraph(cfg Config) *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25
	return graph
}

// Add inserts vectors under their unit IDs. An existing ID is replaced; the
// old node is orphaned, not deleted.
func (ix *Index) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("dense: ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return fmt.Errorf("dense: index is closed")
	}

	for _, v := range vectors {
		if len(v) != ix.cfg.Dimensions {
			return ErrDimensionMismatch{Expected: ix.cfg.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if oldKey, exists := ix.idMap[id]; exists {
			delete(ix.keyMap, oldKey)
			delete(ix.idMap, id)
		}

		key := ix.nextKey
		ix.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if ix.cfg.Metric == "cos" {
			normalizeInPlace(vec)
		}

		ix.graph.Add(hnsw.MakeNode(key, vec))
		ix.idMap[id] = key
		ix.keyMap[key] = id
	}
	return nil
}

// Search returns up to k nearest live neighbors, best first. Orphaned nodes
// are skipped; the graph query over-fetches by the orphan count so lazy
// deletions cannot starve the result set.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return nil, fmt.Errorf("dense: index is closed")
	}
	if len(query) != ix.cfg.Dimensions {
		return nil, ErrDimensionMismatch{Expected: ix.cfg.Dimensions, Got: len(query)}
	}
	if ix.graph.Len() == 0 || k <= 0 {
		return []Result{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if ix.cfg.Metric == "cos" {
		normalizeInPlace(q)
	}

	fetch := k + (ix.graph.Len() - len(ix.idMap))
	if fetch > ix.graph.Len() {
		fetch = ix.graph.Len()
	}

	nodes := ix.graph.Search(q, fetch)
	results := make([]Result, 0, k)
	for _, node := range nodes {
		id, live := ix.keyMap[node.Key]
		if !live {
			continue
		}
		distance := ix.graph.Distance(q, node.Value)
		results = append(results, Result{
			ID:       id,
			Distance: distance,
			Score:    distanceToScore(distance, ix.cfg.Metric),
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Remove drops unit IDs from the index. Their graph nodes are orphaned and
// reclaimed by the next Compact.
func (ix *Index) Remove(ctx context.Context, ids []string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return fmt.Errorf("dense: index is closed")
	}

	for _, id := range ids {
		if key, exists := ix.idMap[id]; exists {
			delete(ix.keyMap, key)
			delete(ix.idMap, id)
		}
	}
	return nil
}

// Contains reports whether the ID is live in the index.
func (ix *Index) Contains(id string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return false
	}
	_, exists := ix.idMap[id]
	return exists
}

// Count returns the number of live vectors.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return 0
	}
	return len(ix.idMap)
}

// Stats describes graph occupancy for compaction decisions.
type Stats struct {
	Live       int
	GraphNodes int
	Orphans    int
}

// Stats returns graph occupancy counts.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return Stats{}
	}
	return Stats{
		Live:       len(ix.idMap),
		GraphNodes: ix.graph.Len(),
		Orphans:    ix.graph.Len() - len(ix.idMap),
	}
}

// Compact rebuilds the graph from live vectors, discarding orphaned nodes.
func (ix *Index) Compact() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return fmt.Errorf("dense: index is closed")
	}

	fresh := newGraph(ix.cfg)
	idMap := make(map[string]uint64, len(ix.idMap))
	keyMap := make(map[uint64]string, len(ix.idMap))
	var next uint64
	for id, key := range ix.idMap {
		vec, ok := ix.graph.Lookup(key)
		if !ok {
			continue
		}
		fresh.Add(hnsw.MakeNode(next, vec))
		idMap[id] = next
		keyMap[next] = id
		next++
	}

	ix.graph = fresh
	ix.idMap = idMap
	ix.keyMap = keyMap
	ix.nextKey = next
	return nil
}

// Save writes the graph and its metadata sidecar atomically.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return fmt.Errorf("dense: index is closed")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	if err := ix.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	if err := ix.saveMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

func (ix *Index) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := metadata{
		IDMap:   ix.idMap,
		NextKey: ix.nextKey,
		Config:  ix.cfg,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load replaces index contents from a saved graph. The metadata sidecar is
// read first because it carries the config the graph was built with.
func (ix *Index) Load(path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return fmt.Errorf("dense: index is closed")
	}

	if err := ix.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	// Import requires an io.ByteReader.
	if err := ix.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}
	return nil
}

func (ix *Index) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer file.Close()

	var meta metadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	ix.cfg = meta.Config
	ix.graph = newGraph(meta.Config)
	ix.idMap = meta.IDMap
	ix.nextKey = meta.NextKey
	ix.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range meta.IDMap {
		ix.keyMap[key] = id
	}
	return nil
}

// ReadDimensions reports the embedding width of a saved index, or 0 when no
// index exists yet. Used at startup to catch provider changes before they
// corrupt the graph.
func ReadDimensions(path string) (int, error) {
	file, err := os.Open(path + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open metadata: %w", err)
	}
	defer file.Close()

	var meta metadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return 0, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return meta.Config.Dimensions, nil
}

// Close releases the graph. Safe to call twice.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	ix.graph = nil
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore maps distance to a 0..1 similarity. Cosine distance spans
// 0..2; L2 spans 0..infinity.
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
