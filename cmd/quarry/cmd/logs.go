package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/internal/logging"
	"github.com/quarryhq/quarry/internal/ui"
)

// logsOptions holds flags for the logs command.
type logsOptions struct {
	lines  int
	follow bool
	level  string
	grep   string
	file   string
}

func (o *logsOptions) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&o.lines, "lines", "n", 50, "number of lines to show")
	cmd.Flags().BoolVarP(&o.follow, "follow", "f", false, "keep streaming new entries")
	cmd.Flags().StringVar(&o.level, "level", "", "minimum level to show (debug, info, warn, error)")
	cmd.Flags().StringVar(&o.grep, "grep", "", "only show lines matching this pattern")
	cmd.Flags().StringVar(&o.file, "file", "", "log file to read (default: the quarry log)")
}

func newLogsCmd() *cobra.Command {
	opts := &logsOptions{}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show quarry's own log output",
		Long: `Show recent entries from the quarry log file.

Indexing and watching write a structured log alongside their terminal
output. This command reads it back, newest entries last, with optional
level and pattern filtering. --follow keeps streaming new entries until
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	opts.register(cmd)
	return cmd
}

func runLogs(cmd *cobra.Command, opts *logsOptions) error {
	path, err := logging.FindLogFile(opts.file)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.grep != "" {
		pattern, err = regexp.Compile(opts.grep)
		if err != nil {
			return fmt.Errorf("invalid --grep pattern: %w", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: ui.DetectNoColor(),
	}, cmd.OutOrStdout())

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream := make(chan logging.LogEntry, 64)
	followErr := make(chan error, 1)
	go func() {
		followErr <- viewer.Follow(ctx, path, stream)
	}()

	for {
		select {
		case entry := <-stream:
			viewer.Print([]logging.LogEntry{entry})
		case err := <-followErr:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}
