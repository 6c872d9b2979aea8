// Package cmd provides the CLI commands for quarry.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/internal/logging"
	"github.com/quarryhq/quarry/internal/profiling"
	"github.com/quarryhq/quarry/pkg/version"
)

// Diagnostic flags, shared across all subcommands.
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	debugMode    bool
)

// teardowns holds stop functions registered while starting diagnostics.
// stopProfilingAndLogging runs them in reverse order.
var teardowns []func()

// NewRootCmd creates the root command for the quarry CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarry",
		Short: "Hybrid document search for project knowledge bases",
		Long: `Quarry indexes the documents in a project (PDF, Markdown, Office
files, plain text) and answers queries with hybrid retrieval: BM25
keyword matching fused with semantic similarity.

Run 'quarry init' in a project to get started, then 'quarry search'.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		// main prints the error itself, with code and hint when present.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetVersionTemplate("quarry version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.quarry/logs/")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newRebuildCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts debug logging and CPU/trace profiling
// when the matching flags are set. Whatever started gets a stop function
// on the teardown stack, so a failure partway leaves nothing running.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	start := func(flag string, begin func(string) (func(), error), what string) error {
		if flag == "" {
			return nil
		}
		stop, err := begin(flag)
		if err != nil {
			runTeardowns()
			return fmt.Errorf("start %s: %w", what, err)
		}
		teardowns = append(teardowns, stop)
		return nil
	}

	if debugMode {
		logger, closeLog, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("set up debug logging: %w", err)
		}
		teardowns = append(teardowns, closeLog)
		slog.SetDefault(logger)
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	if err := start(profileCPU, profiling.StartCPU, "CPU profile"); err != nil {
		return err
	}
	return start(profileTrace, profiling.StartTrace, "trace")
}

// stopProfilingAndLogging unwinds the teardown stack, then snapshots
// the heap if requested. The heap write forces a GC, so the CPU profile
// must already be stopped.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	runTeardowns()
	if profileMem != "" {
		if err := profiling.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("write memory profile: %w", err)
		}
	}
	return nil
}

func runTeardowns() {
	for i := len(teardowns) - 1; i >= 0; i-- {
		teardowns[i]()
	}
	teardowns = nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// fileExists reports whether path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
