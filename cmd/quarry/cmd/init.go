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

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/configs"
	"github.com/quarryhq/quarry/internal/config"
	"github.com/quarryhq/quarry/internal/output"
	"github.com/quarryhq/quarry/pkg/version"
)

// initOptions carries the flags for the init command.
type initOptions struct {
	force      bool
	offline    bool
	configOnly bool
	noTUI      bool
}

func newInitCmd() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize quarry for this project",
		Long: `Init writes a starter config, adds the data directory to .gitignore,
and indexes the project's documents.

An existing config file is never overwritten. --force rebuilds the
indexes from scratch but still leaves the config alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.force, "force", false, "rebuild the indexes even if already initialized")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "embed locally without contacting a backend")
	cmd.Flags().BoolVar(&opts.configOnly, "config-only", false, "write the config without indexing")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "disable the interactive progress display")

	return cmd
}

func runInit(cmd *cobra.Command, opts *initOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setupFileLogging()

	out := output.New(cmd.OutOrStdout())
	out.Statusf("🚀", "Quarry %s - Initializing...", version.Version)
	out.Newline()

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	root := findRoot(cwd)

	if projectConfigExists(root) && !opts.force && !opts.configOnly {
		out.Status("📄", "Already initialized, config preserved")
		out.Hint("Run 'quarry index' to refresh, or 'quarry init --force' to rebuild from scratch")
		return nil
	}

	wrote, err := writeProjectConfig(root)
	if err != nil {
		return err
	}
	if wrote {
		out.Success("Created .quarry.yaml")
	} else {
		out.Status("📄", "Config already exists, keeping it")
	}

	added, err := ensureGitignore(root)
	if err != nil {
		slog.Warn("gitignore_update_failed", slog.String("error", err.Error()))
	} else if added {
		out.Success("Added .quarry/ to .gitignore")
	}

	if dirs := config.DiscoverDocDirs(root); len(dirs) > 0 {
		out.Statusf("📁", "Document directories: %s", strings.Join(dirs, ", "))
	}

	if opts.configOnly {
		out.Newline()
		out.Success("Initialized (config only)")
		printNextSteps(out)
		return nil
	}

	out.Newline()
	out.Status("📚", "Indexing project documents...")
	idxOpts := &indexOptions{noTUI: opts.noTUI, offline: opts.offline}
	if _, err := runIndexAt(ctx, cmd, root, root, idxOpts, opts.force); err != nil {
		if errors.Is(err, context.Canceled) {
			out.Warning("Indexing interrupted, run 'quarry index' to finish")
			return nil
		}
		return err
	}

	printNextSteps(out)
	return nil
}

func projectConfigExists(root string) bool {
	return projectConfigPath(root) != ""
}

// writeProjectConfig writes the starter config unless one already exists.
// Existing configs are never overwritten, --force included.
func writeProjectConfig(root string) (bool, error) {
	if projectConfigExists(root) {
		return false, nil
	}
	path := filepath.Join(root, ".quarry.yaml")
	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// ensureGitignore adds the data directory to .gitignore, creating the
// file when missing. Reports whether an entry was added.
func ensureGitignore(root string) (bool, error) {
	path := filepath.Join(root, ".gitignore")
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	content := string(data)
	if hasQuarryIgnore(content) {
		return false, nil
	}

	eol := "\n"
	if strings.Contains(content, "\r\n") {
		eol = "\r\n"
	}

	var b strings.Builder
	b.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		b.WriteString(eol)
	}
	if content != "" {
		b.WriteString(eol)
	}
	b.WriteString("# Quarry index data" + eol)
	b.WriteString(".quarry/" + eol)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// hasQuarryIgnore reports whether .gitignore already covers the data
// directory in any of the usual spellings.
func hasQuarryIgnore(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		entry := strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		switch entry {
		case ".quarry", ".quarry/", "/.quarry", "/.quarry/":
			return true
		}
	}
	return false
}

func printNextSteps(out *output.Writer) {
	out.Newline()
	out.Status("✨", "Next steps:")
	out.Status("", "quarry search \"your query\"   find passages across documents")
	out.Status("", "quarry watch                 keep the index current")
	out.Status("", "quarry status                check index health")
}
