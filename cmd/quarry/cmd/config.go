package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quarryhq/quarry/configs"
	"github.com/quarryhq/quarry/internal/config"
	"github.com/quarryhq/quarry/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the user-level configuration",
		Long: `Manage the machine-wide config file that applies to every project.

The user config holds machine-level settings: the embedding endpoint,
worker counts, the default log level. Project .quarry.yaml files
override it, and QUARRY_* environment variables override both.`,
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd(), newConfigPathCmd(), newConfigRestoreCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	force := false
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user config file",
		Long: `Write a commented user config template to the XDG config directory.

If the file already exists, --force upgrades it in place: settings are
kept, missing options gain their current defaults, and the old file is
backed up first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(output.New(cmd.OutOrStdout()), force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "upgrade an existing config in place")
	return cmd
}

func runConfigInit(out *output.Writer, force bool) error {
	path := config.GetUserConfigPath()
	if config.UserConfigExists() {
		if !force {
			out.Warning("User config already exists")
			out.Statusf("📁", "Location: %s", path)
			out.Hint("Run 'quarry config init --force' to add new options while keeping your settings")
			return nil
		}
		return upgradeUserConfig(out, path)
	}

	if err := os.MkdirAll(config.GetUserConfigDir(), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.UserConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("write user config: %w", err)
	}
	out.Success("Created user config")
	out.Statusf("📁", "Location: %s", path)
	out.Hint("Run 'quarry config show' to see the effective settings")
	return nil
}

// upgradeUserConfig rewrites an existing user config with any newly
// added options filled from defaults. The previous file survives as a
// timestamped backup.
func upgradeUserConfig(out *output.Writer, path string) error {
	backupPath, err := config.BackupUserConfig()
	if err != nil {
		return fmt.Errorf("back up user config: %w", err)
	}

	// The raw file, before defaults fill it in, shows which options the
	// user has never seen.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read user config: %w", err)
	}
	var raw config.Config
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse user config: %w", err)
	}
	added := raw.MergeNewDefaults()

	cfg, err := config.LoadUserConfig()
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("user config vanished during upgrade")
	}
	if err := cfg.WriteYAML(path); err != nil {
		return err
	}

	out.Success("User config upgraded, settings preserved")
	out.Statusf("💾", "Backup: %s", backupPath)
	if len(added) == 0 {
		out.Status("✓", "No new options; already up to date")
		return nil
	}
	out.Status("✨", "New options added with defaults:")
	for _, field := range added {
		out.Statusf("", "  %s", field)
	}
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		asJSON bool
		source string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration as quarry sees it.

By default every source is merged: defaults, user config, project
config, environment. --source narrows the view to a single layer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd.OutOrStdout(), asJSON, source)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "layer to show: merged, user, project, or defaults")
	return cmd
}

func runConfigShow(w io.Writer, asJSON bool, source string) error {
	out := output.New(w)
	cfg, desc, err := configAtSource(source, out)
	if err != nil || cfg == nil {
		return err
	}

	if asJSON {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("render config: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	out.Statusf("📋", "Configuration source: %s", desc)
	out.Newline()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	fmt.Fprint(w, string(data))
	return nil
}

// configAtSource resolves one configuration layer. A nil config with a
// nil error means the layer has no file and guidance was printed.
func configAtSource(source string, out *output.Writer) (*config.Config, string, error) {
	switch source {
	case "defaults":
		return config.NewConfig(), "built-in defaults", nil

	case "user":
		cfg, err := config.LoadUserConfig()
		if err != nil {
			return nil, "", err
		}
		if cfg == nil {
			out.Warning("No user config file")
			out.Statusf("📁", "Expected at: %s", config.GetUserConfigPath())
			out.Hint("Run 'quarry config init' to create one")
			return nil, "", nil
		}
		return cfg, fmt.Sprintf("user (%s)", config.GetUserConfigPath()), nil

	case "project":
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		root := findRoot(cwd)
		path := projectConfigPath(root)
		if path == "" {
			out.Warning("No project config file")
			out.Statusf("📁", "Expected at: %s", filepath.Join(root, ".quarry.yaml"))
			out.Hint("Run 'quarry init' to create one")
			return nil, "", nil
		}
		cfg := config.NewConfig()
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("read project config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("parse project config: %w", err)
		}
		return cfg, fmt.Sprintf("project (%s)", path), nil

	case "merged":
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		cfg, err := config.Load(findRoot(cwd))
		if err != nil {
			return nil, "", err
		}
		return cfg, "merged (defaults + user + project + env)", nil

	default:
		return nil, "", fmt.Errorf("unknown source %q, use merged, user, project, or defaults", source)
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	list := false
	cmd := &cobra.Command{
		Use:   "restore [backup-file]",
		Short: "Restore the user config from a backup",
		Long: `Restore the user config from a timestamped backup.

config init --force and restore itself back up the current file before
writing, so the file being replaced is never lost. Without an argument
the newest backup is restored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigRestore(output.New(cmd.OutOrStdout()), args, list)
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list available backups instead of restoring")
	return cmd
}

func runConfigRestore(out *output.Writer, args []string, list bool) error {
	path := config.GetUserConfigPath()
	backups, err := config.ListBackups(path)
	if err != nil {
		return err
	}

	if list {
		if len(backups) == 0 {
			out.Status("📁", "No backups found")
			return nil
		}
		out.Status("📁", "Backups, newest first:")
		for _, b := range backups {
			out.Statusf("", "  %s", b)
		}
		return nil
	}

	var backup string
	switch {
	case len(args) == 1:
		backup = args[0]
	case len(backups) > 0:
		backup = backups[0]
	default:
		out.Warning("No backups to restore")
		out.Hint("Backups are created when 'quarry config init --force' rewrites the file")
		return nil
	}

	if err := config.RestoreConfig(path, backup); err != nil {
		return err
	}
	out.Successf("Restored user config from %s", backup)
	return nil
}

// projectConfigPath returns the project config file in root, or "".
func projectConfigPath(root string) string {
	for _, name := range []string{".quarry.yaml", ".quarry.yml"} {
		if path := filepath.Join(root, name); fileExists(path) {
			return path
		}
	}
	return ""
}
