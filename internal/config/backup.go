package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	// MaxBackups bounds how many timestamped backups are kept per file.
	MaxBackups = 3

	// BackupSuffix separates a backup's name from the file it copies.
	BackupSuffix = ".bak"
)

// BackupConfig copies configPath aside before it gets overwritten,
// naming the copy <path>.bak.<timestamp>. It returns the backup path,
// or "" when there is nothing to back up.
func BackupConfig(configPath string) (string, error) {
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read config for backup: %w", err)
	}

	stamp := time.Now().Format("20060102-150405")
	backupPath := configPath + BackupSuffix + "." + stamp
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	// The backup itself succeeded; pruning older ones is best-effort.
	_ = pruneBackups(configPath)
	return backupPath, nil
}

// BackupUserConfig backs up the user config file.
func BackupUserConfig() (string, error) {
	return BackupConfig(GetUserConfigPath())
}

// ListBackups returns the backups of configPath, newest first. The
// timestamp embedded in each name makes lexical order chronological.
func ListBackups(configPath string) ([]string, error) {
	dir := filepath.Dir(configPath)
	prefix := filepath.Base(configPath) + BackupSuffix + "."

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list config directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	slices.SortFunc(names, func(a, b string) int { return strings.Compare(b, a) })

	var backups []string
	for _, name := range names {
		backups = append(backups, filepath.Join(dir, name))
	}
	return backups, nil
}

// pruneBackups drops the oldest backups past MaxBackups.
func pruneBackups(configPath string) error {
	backups, err := ListBackups(configPath)
	if err != nil {
		return err
	}
	for _, old := range backups[min(MaxBackups, len(backups)):] {
		_ = os.Remove(old)
	}
	return nil
}

// RestoreConfig replaces configPath with the contents of backupPath.
// Whatever currently sits at configPath is backed up first.
func RestoreConfig(configPath, backupPath string) error {
	data, err := os.ReadFile(backupPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %w", err)
	}
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	if _, err := BackupConfig(configPath); err != nil {
		return fmt.Errorf("backup current config before restore: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("write restored config: %w", err)
	}
	return nil
}
