package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/internal/index"
	"github.com/quarryhq/quarry/internal/output"
	"github.com/quarryhq/quarry/internal/parse"
	"github.com/quarryhq/quarry/internal/watcher"
)

// watchOptions carries the flags for the watch command.
type watchOptions struct {
	offline bool
}

func newWatchCmd() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch for document changes and keep the index current",
		Long: `Watch indexes the directory once to catch up, then applies filesystem
changes as they happen. New and modified documents are reindexed,
deleted ones are withdrawn from search.

Runs until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runWatch(cmd, dir, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.offline, "offline", false, "embed locally without contacting a backend")
	return cmd
}

func runWatch(cmd *cobra.Command, dir string, opts *watchOptions) error {
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
	ws, err := openWorkspace(ctx, root, workspaceOptions{offline: opts.offline})
	if err != nil {
		return err
	}
	defer ws.Close()

	orch, err := ws.orchestrator(nil, 0)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())

	// Catch up first so change events arrive against a current index.
	summary, err := orch.IndexBatch(ctx, absPath)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("initial index: %w", err)
	}
	out.Statusf("⚡", "Caught up: %d indexed, %d skipped, %d failed", summary.Indexed, summary.Skipped, summary.Failed)

	debounce, err := time.ParseDuration(ws.cfg.Performance.WatchDebounce)
	if err != nil {
		debounce = 0
	}
	w, err := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow: debounce,
		Extensions:     parse.Default().Supported(),
		Exclude:        ws.cfg.Paths.Exclude,
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(ctx, absPath) }()
	defer func() { _ = w.Stop() }()

	out.Statusf("👀", "Watching %s for changes (%s, Ctrl-C to stop)", absPath, w.WatcherType())

	events := w.Events()
	watchErrs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			if w.DroppedBatches() > 0 {
				out.Warning("Some change batches were dropped; run 'quarry index' to catch up")
			}
			out.Newline()
			out.Status("", "Stopped watching")
			return nil
		case err := <-startErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watch %s: %w", absPath, err)
			}
			return nil
		case batch, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			applyChanges(ctx, orch, out, batch)
		case werr, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			slog.Warn("watch_error", slog.String("error", werr.Error()))
		}
	}
}

// applyChanges folds one debounced batch of filesystem events into the
// index and prints a one-line summary.
func applyChanges(ctx context.Context, orch *index.Orchestrator, out *output.Writer, events []watcher.FileEvent) {
	var indexed, removed, failed int
	var sweep, configChanged bool

	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}
		switch ev.Operation {
		case watcher.OpConfigChange:
			configChanged = true

		case watcher.OpCreate, watcher.OpModify:
			if ev.IsDir {
				summary, err := orch.IndexBatch(ctx, ev.AbsPath)
				if err != nil {
					slog.Warn("watch_batch_failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
					failed++
					continue
				}
				indexed += summary.Indexed
				failed += summary.Failed
				continue
			}
			res, err := orch.IndexDocument(ctx, ev.AbsPath)
			switch {
			case err != nil:
				slog.Warn("watch_index_failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
				failed++
			case res.Skipped:
				// Unchanged content, nothing to report.
			default:
				indexed++
			}

		case watcher.OpDelete, watcher.OpRename:
			// Deleted directories surface with IsDir false once the entry
			// is gone; the registry sweep below catches their children.
			ok, err := orch.RemoveByPath(ctx, ev.AbsPath)
			if err != nil {
				slog.Warn("watch_remove_failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
				continue
			}
			if ok {
				removed++
			} else {
				sweep = true
			}
		}
	}

	if sweep {
		if records, err := orch.CleanupMissing(ctx); err == nil {
			removed += len(records)
		} else {
			slog.Warn("watch_cleanup_failed", slog.String("error", err.Error()))
		}
	}

	if configChanged {
		out.Warning("Config changed; restart watch to apply the new settings")
	}

	var parts []string
	if indexed > 0 {
		parts = append(parts, fmt.Sprintf("%d indexed", indexed))
	}
	if removed > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", removed))
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	if len(parts) > 0 {
		out.Statusf("⚡", "%s", strings.Join(parts, ", "))
	}
}
