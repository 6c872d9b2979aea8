package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/internal/async"
	"github.com/quarryhq/quarry/internal/index"
	"github.com/quarryhq/quarry/internal/logging"
	"github.com/quarryhq/quarry/internal/output"
	"github.com/quarryhq/quarry/internal/ui"
)

// indexOptions carries the shared flags of the index and rebuild commands.
type indexOptions struct {
	noTUI   bool
	offline bool
	workers int
}

func (o *indexOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.noTUI, "no-tui", false, "disable the interactive progress display")
	cmd.Flags().BoolVar(&o.offline, "offline", false, "embed locally without contacting a backend")
	cmd.Flags().IntVar(&o.workers, "workers", 0, "parallel indexing workers (0 uses the configured count)")
}

func newIndexCmd() *cobra.Command {
	opts := &indexOptions{}

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index documents for search",
		Long: `Index scans a directory for supported documents, chunks them, and adds
them to the lexical and vector indexes. Unchanged documents are skipped,
so repeat runs only process what moved.

With no path it indexes the current project from its root.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runIndex(cmd, dir, opts)
		},
	}

	opts.register(cmd)
	return cmd
}

func runIndex(cmd *cobra.Command, dir string, opts *indexOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setupFileLogging()

	absPath, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve path %s: %w", dir, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", absPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", absPath)
	}

	root := findRoot(absPath)
	_, err = runIndexAt(ctx, cmd, root, absPath, opts, false)
	if errors.Is(err, context.Canceled) {
		output.New(cmd.OutOrStdout()).Warning("Indexing interrupted, partial progress was saved")
		return nil
	}
	return err
}

// runIndexAt opens the workspace rooted at root and indexes dir through a
// background run, so the status file stays current for other processes.
// Individual document failures end up in the summary, not in the returned
// error; the error reports batch-level problems only.
func runIndexAt(ctx context.Context, cmd *cobra.Command, root, dir string, opts *indexOptions, rebuild bool) (*index.BatchSummary, error) {
	ws, err := openWorkspace(ctx, root, workspaceOptions{offline: opts.offline})
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	if async.HasIncompleteLock(ws.dataDir) {
		slog.Warn("previous_indexing_incomplete", slog.String("data_dir", ws.dataDir))
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI),
		ui.WithProjectDir(root),
	))

	bi := async.NewBackgroundIndexer(async.IndexerConfig{DataDir: ws.dataDir})
	relay := &progressRelay{inner: renderer, progress: bi.Progress()}

	orch, err := ws.orchestrator(relay, opts.workers)
	if err != nil {
		return nil, err
	}

	if err := renderer.Start(ctx); err != nil {
		return nil, fmt.Errorf("start renderer: %w", err)
	}
	defer func() { _ = renderer.Stop() }()

	var summary *index.BatchSummary
	bi.IndexFunc = func(ctx context.Context, _ *async.Progress) error {
		if !rebuild {
			if needed, err := orch.NeedsSync(ctx); err == nil && needed {
				slog.Info("index_sync_started")
				if err := orch.SyncIndexes(ctx); err != nil {
					return fmt.Errorf("sync indexes: %w", err)
				}
			}
		}
		var runErr error
		if rebuild {
			summary, runErr = orch.RebuildFromScratch(ctx, dir)
		} else {
			summary, runErr = orch.IndexBatch(ctx, dir)
		}
		return runErr
	}

	bi.Start(ctx)
	if err := bi.Wait(); err != nil {
		return summary, err
	}
	return summary, nil
}

// progressRelay forwards renderer events to the visible renderer while
// mirroring them into the background run's progress tracker, so processes
// reading the status file see the same state the terminal shows.
type progressRelay struct {
	inner    ui.Renderer
	progress *async.Progress
	started  bool
	stage    ui.Stage
}

func (r *progressRelay) Start(ctx context.Context) error { return r.inner.Start(ctx) }

func (r *progressRelay) UpdateProgress(ev ui.ProgressEvent) {
	if ev.Stage != ui.StageComplete {
		if !r.started || ev.Stage != r.stage {
			r.started = true
			r.stage = ev.Stage
			r.progress.SetStage(asyncStage(ev.Stage), ev.Total)
		}
		if ev.Current > 0 {
			r.progress.UpdateDocuments(ev.Current)
		}
	}
	r.inner.UpdateProgress(ev)
}

func (r *progressRelay) AddError(ev ui.ErrorEvent) { r.inner.AddError(ev) }

func (r *progressRelay) Complete(stats ui.CompletionStats) {
	r.progress.AddUnits(stats.Units)
	r.inner.Complete(stats)
}

func (r *progressRelay) Stop() error { return r.inner.Stop() }

// asyncStage maps display stages onto persisted status stages.
func asyncStage(s ui.Stage) async.Stage {
	switch s {
	case ui.StageScanning:
		return async.StageScanning
	case ui.StageParsing:
		return async.StageParsing
	case ui.StageChunking:
		return async.StageChunking
	case ui.StageEmbedding:
		return async.StageEmbedding
	default:
		return async.StageIndexing
	}
}

// loggingCleanup holds the close function for the file logger installed
// by setupFileLogging.
var loggingCleanup func()

// setupFileLogging routes slog to the log file only, keeping stdout clean
// for command output. The --debug flag already installed a logger, which
// wins. Logging failures are not fatal to the command.
func setupFileLogging() {
	if debugMode {
		return
	}
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		loggingCleanup = cleanup
	}
}
