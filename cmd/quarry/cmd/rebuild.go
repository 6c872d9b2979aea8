package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/internal/output"
)

func newRebuildCmd() *cobra.Command {
	opts := &indexOptions{}

	cmd := &cobra.Command{
		Use:   "rebuild [path]",
		Short: "Rebuild all indexes from scratch",
		Long: `Rebuild discards the registry, unit store, and both indexes, then
indexes every document again. Use it after corruption, after changing
the embedding provider, or when skip detection misbehaves.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runRebuild(cmd, dir, opts)
		},
	}

	opts.register(cmd)
	return cmd
}

func runRebuild(cmd *cobra.Command, dir string, opts *indexOptions) error {
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
	out := output.New(cmd.OutOrStdout())
	out.Status("🔄", "Rebuilding indexes from scratch...")

	_, err = runIndexAt(ctx, cmd, root, absPath, opts, true)
	if errors.Is(err, context.Canceled) {
		out.Warning("Rebuild interrupted, run 'quarry rebuild' again to finish")
		return nil
	}
	return err
}
