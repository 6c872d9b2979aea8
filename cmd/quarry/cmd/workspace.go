package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/quarryhq/quarry/internal/chunk"
	"github.com/quarryhq/quarry/internal/config"
	"github.com/quarryhq/quarry/internal/dense"
	"github.com/quarryhq/quarry/internal/embed"
	"github.com/quarryhq/quarry/internal/index"
	"github.com/quarryhq/quarry/internal/lexical"
	"github.com/quarryhq/quarry/internal/parse"
	"github.com/quarryhq/quarry/internal/registry"
	"github.com/quarryhq/quarry/internal/search"
	"github.com/quarryhq/quarry/internal/store"
	"github.com/quarryhq/quarry/internal/taxonomy"
	"github.com/quarryhq/quarry/internal/ui"
)

// workspace bundles the opened index components for one project. Commands
// open it, use the orchestrator or retriever built from it, and Close it.
type workspace struct {
	cfg     *config.Config
	root    string
	dataDir string

	registry *registry.Registry
	units    *store.UnitStore
	lexical  *lexical.Index
	dense    *dense.Index
	embedder embed.Embedder
}

// workspaceOptions controls which components openWorkspace builds.
type workspaceOptions struct {
	// offline forces the static embedder regardless of config.
	offline bool

	// lexicalOnly skips the embedder and vector index entirely.
	lexicalOnly bool
}

// openWorkspace loads the project config and opens the registry, unit
// store, and retrieval indexes under root. The lexical snapshot and the
// vector graph are loaded when present; a snapshot that fails to load is
// logged and left for index sync to rebuild from the store.
func openWorkspace(ctx context.Context, root string, opts workspaceOptions) (*workspace, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dataDir := cfg.ResolveDataDir(root)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	reg, err := registry.New(cfg.RegistryFile(root))
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	units, err := store.Open(cfg.CorpusFile(root))
	if err != nil {
		return nil, fmt.Errorf("open unit store: %w", err)
	}

	ws := &workspace{
		cfg:      cfg,
		root:     root,
		dataDir:  dataDir,
		registry: reg,
		units:    units,
		lexical:  lexical.New(lexical.WithK1(cfg.Search.K1), lexical.WithB(cfg.Search.B)),
	}

	snapshotPath := cfg.LexicalSnapshotFile(root)
	if fileExists(snapshotPath) {
		if err := ws.lexical.Load(snapshotPath); err != nil {
			slog.Warn("lexical_snapshot_load_failed",
				slog.String("path", snapshotPath),
				slog.String("error", err.Error()))
		}
	}

	if !opts.lexicalOnly {
		if err := ws.openDense(ctx, opts.offline); err != nil {
			ws.Close()
			return nil, err
		}
	}

	return ws, nil
}

// openDense builds the embedder, sizes the vector index to its output
// width, and loads the saved graph when its width still matches. A saved
// graph with a different width means the embedding provider changed; it is
// abandoned and rebuilt from the store by the next index sync.
func (ws *workspace) openDense(ctx context.Context, offline bool) error {
	embedder, err := embed.NewEmbedder(ctx, embed.Options{
		Provider:   ws.cfg.Embeddings.Provider,
		Endpoint:   ws.cfg.Embeddings.Endpoint,
		Model:      ws.cfg.Embeddings.Model,
		Dimensions: ws.cfg.Embeddings.Dimensions,
		BatchSize:  ws.cfg.Embeddings.BatchSize,
		RateLimit:  ws.cfg.Embeddings.RateLimit,
		CacheSize:  ws.cfg.Embeddings.CacheSize,
		Offline:    offline,
	})
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	ws.embedder = embedder

	dims := embedder.Dimensions()
	denseIdx, err := dense.New(dense.DefaultConfig(dims))
	if err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	ws.dense = denseIdx

	vectorPath := ws.cfg.VectorFile(ws.root)
	savedDims, err := dense.ReadDimensions(vectorPath)
	if err != nil {
		slog.Warn("vector_metadata_unreadable",
			slog.String("path", vectorPath),
			slog.String("error", err.Error()))
		return nil
	}
	switch {
	case savedDims == 0:
		// No saved graph yet.
	case savedDims != dims:
		slog.Warn("vector_dimensions_changed",
			slog.Int("saved", savedDims),
			slog.Int("embedder", dims))
	default:
		if err := ws.dense.Load(vectorPath); err != nil {
			slog.Warn("vector_load_failed",
				slog.String("path", vectorPath),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// Close releases every component that holds resources.
func (ws *workspace) Close() {
	if ws.embedder != nil {
		_ = ws.embedder.Close()
	}
	if ws.dense != nil {
		_ = ws.dense.Close()
	}
	if ws.units != nil {
		_ = ws.units.Close()
	}
}

// orchestrator builds the indexing orchestrator over this workspace.
// workers overrides the configured worker count when positive.
func (ws *workspace) orchestrator(renderer ui.Renderer, workers int) (*index.Orchestrator, error) {
	chunker, err := chunk.New(chunk.Config{
		MinSize:         ws.cfg.Chunking.MinSize,
		MaxSize:         ws.cfg.Chunking.MaxSize,
		SizeStep:        ws.cfg.Chunking.SizeStep,
		ScaleFactor:     ws.cfg.Chunking.ScaleFactor,
		SummaryMaxChars: ws.cfg.Chunking.SummaryMaxChars,
	})
	if err != nil {
		return nil, fmt.Errorf("create chunker: %w", err)
	}

	tax := taxonomy.Default()
	tax.Extend(ws.cfg.Taxonomy.Topics, ws.cfg.Taxonomy.Domains)

	if workers <= 0 {
		workers = ws.cfg.Performance.IndexWorkers
	}

	return index.NewOrchestrator(
		index.Config{
			DataDir:          ws.dataDir,
			LexicalSnapshot:  ws.cfg.LexicalSnapshotFile(ws.root),
			VectorPath:       ws.cfg.VectorFile(ws.root),
			Workers:          workers,
			MaxFileSize:      int64(ws.cfg.Performance.MaxFileSizeMB) << 20,
			MaxFiles:         ws.cfg.Performance.MaxFiles,
			Include:          ws.cfg.Paths.Include,
			Exclude:          ws.cfg.Paths.Exclude,
			CarryAcrossPages: ws.cfg.Chunking.CarryAcrossPages,
			EmbedBatchSize:   ws.cfg.Embeddings.BatchSize,
		},
		index.Dependencies{
			Registry: ws.registry,
			Store:    ws.units,
			Lexical:  ws.lexical,
			Dense:    ws.dense,
			Embedder: ws.embedder,
			Parsers:  parse.Default(),
			Chunker:  chunker,
			Taxonomy: tax,
			Renderer: renderer,
		},
	)
}

// retriever builds the hybrid retriever over this workspace. Without a
// vector index it serves lexical results only.
func (ws *workspace) retriever() (*search.Retriever, error) {
	timeout, err := time.ParseDuration(ws.cfg.Search.BackendTimeout)
	if err != nil {
		timeout = 0
	}

	searchCfg := search.Config{
		Weights: search.Weights{
			Lexical:  ws.cfg.Search.LexicalWeight,
			Semantic: ws.cfg.Search.SemanticWeight,
		},
		RRFConstant:    ws.cfg.Search.RRFConstant,
		SemanticTopK:   ws.cfg.Search.SemanticTopK,
		LexicalTopK:    ws.cfg.Search.LexicalTopK,
		DefaultTopK:    ws.cfg.Search.MaxResults,
		BackendTimeout: timeout,
	}

	// A nil *dense.Index must not become a non-nil interface value.
	var denseSearcher search.DenseSearcher
	if ws.dense != nil {
		denseSearcher = ws.dense
	}
	var embedder embed.Embedder
	if ws.embedder != nil {
		embedder = ws.embedder
	}
	return search.NewRetriever(ws.lexical, denseSearcher, embedder, ws.units, searchCfg)
}

// findRoot locates the project root for a command, walking up from start
// and settling on start itself when no project marker is found.
func findRoot(start string) string {
	root, err := config.FindProjectRoot(start)
	if err != nil {
		return start
	}
	return root
}

// ensureIndexed verifies an index exists under root before a read command
// opens the workspace, so a bare checkout gets guidance instead of empty
// results.
func ensureIndexed(root string) error {
	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if fileExists(cfg.RegistryFile(root)) || fileExists(cfg.CorpusFile(root)) {
		return nil
	}
	return fmt.Errorf("no index found in %s\nRun 'quarry index' to create one", cfg.ResolveDataDir(root))
}
