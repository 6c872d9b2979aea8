package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/internal/async"
	"github.com/quarryhq/quarry/internal/config"
	"github.com/quarryhq/quarry/internal/embed"
	"github.com/quarryhq/quarry/internal/registry"
	"github.com/quarryhq/quarry/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and storage usage",
		Long: `Status reports document and unit counts, storage sizes, the embedding
backend's reachability, and whether an indexing run is in progress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "output status as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, jsonOut bool) error {
	ctx := cmd.Context()

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	root := findRoot(cwd)

	// Status is the command people run when something is wrong, so a
	// broken config file downgrades to defaults instead of aborting.
	cfg, err := config.Load(root)
	if err != nil {
		slog.Warn("config_load_failed", slog.String("error", err.Error()))
		cfg = config.NewConfig()
	}

	if !fileExists(cfg.RegistryFile(root)) && !fileExists(cfg.CorpusFile(root)) {
		return fmt.Errorf("no index found in %s\nRun 'quarry index' to create one", cfg.ResolveDataDir(root))
	}

	info, err := collectStatus(ctx, cfg, root)
	if err != nil {
		return err
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOut {
		return renderer.RenderJSON(*info)
	}
	return renderer.Render(*info)
}

// collectStatus gathers registry counts, storage sizes, backend
// reachability, and any in-flight indexing run into one report.
func collectStatus(ctx context.Context, cfg *config.Config, root string) (*ui.StatusInfo, error) {
	reg, err := registry.New(cfg.RegistryFile(root))
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	stats := reg.Stats()
	info := &ui.StatusInfo{
		ProjectName:      filepath.Base(root),
		TotalDocuments:   stats.TotalDocuments,
		TotalUnits:       stats.TotalUnits,
		PendingDocuments: stats.Pending,
		FailedDocuments:  stats.Failed,
		RegistrySize:     getFileSize(cfg.RegistryFile(root)),
		StoreSize:        getFileSize(cfg.CorpusFile(root)),
		LexicalSize:      getFileSize(cfg.LexicalSnapshotFile(root)),
		VectorSize:       getFileSize(cfg.VectorFile(root)),
	}
	info.TotalSize = info.RegistrySize + info.StoreSize + info.LexicalSize + info.VectorSize

	for _, rec := range reg.All() {
		if rec.IndexedAt != nil && rec.IndexedAt.After(info.LastIndexed) {
			info.LastIndexed = *rec.IndexedAt
		}
	}

	info.EmbedderProvider, info.EmbedderModel, info.EmbedderStatus = probeEmbedder(ctx, cfg)

	if snap, ok, err := async.ReadStatusFile(cfg.ResolveDataDir(root)); err == nil && ok {
		info.IndexerStatus = snap.Status
		if snap.Status == string(async.StatusIndexing) {
			info.IndexerStage = snap.Stage
		}
	}

	return info, nil
}

// probeEmbedder checks the configured embedding backend with a short
// deadline. The full factory is skipped here so status answers quickly
// even when the backend is down.
func probeEmbedder(ctx context.Context, cfg *config.Config) (provider, model, status string) {
	p := embed.ParseProvider(cfg.Embeddings.Provider)
	if p == embed.ProviderStatic {
		return p.String(), embed.NewStaticEmbedder().ModelName(), "ready"
	}

	rc := embed.DefaultRemoteConfig()
	if cfg.Embeddings.Endpoint != "" {
		rc.Endpoint = cfg.Embeddings.Endpoint
	}
	if cfg.Embeddings.Model != "" {
		rc.Model = cfg.Embeddings.Model
	}
	rc.Dimensions = cfg.Embeddings.Dimensions

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	e, err := embed.NewRemoteEmbedder(probeCtx, rc)
	if err != nil {
		return p.String(), rc.Model, "offline"
	}
	defer func() { _ = e.Close() }()
	return p.String(), e.ModelName(), "ready"
}

// getFileSize returns a file's size, or zero when it does not exist.
func getFileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
