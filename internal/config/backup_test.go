package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackup plants a backup file for configPath with a chosen stamp,
// so tests control ordering without racing the clock.
func fakeBackup(t *testing.T, configPath, stamp, content string) string {
	t.Helper()
	path := configPath + BackupSuffix + "." + stamp
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBackupConfig_NothingToBackUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".quarry.yaml")

	backup, err := BackupConfig(path)

	require.NoError(t, err)
	assert.Empty(t, backup)
}

func TestBackupConfig_CopiesContentAside(t *testing.T) {
	// Given: a config file about to be overwritten
	path := filepath.Join(t.TempDir(), ".quarry.yaml")
	content := "version: 1\nembeddings:\n  provider: static\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// When: backing it up
	backup, err := BackupConfig(path)
	require.NoError(t, err)

	// Then: the copy sits next to the original with a stamped name
	assert.True(t, strings.HasPrefix(backup, path+BackupSuffix+"."))
	got, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestBackupUserConfig_LandsNextToUserConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	backup, err := BackupUserConfig()

	require.NoError(t, err)
	assert.Equal(t, GetUserConfigDir(), filepath.Dir(backup))
}

func TestListBackups_NewestFirst(t *testing.T) {
	// Given: three backups whose stamps fix their age
	path := filepath.Join(t.TempDir(), ".quarry.yaml")
	oldest := fakeBackup(t, path, "19990101-000000", "a")
	middle := fakeBackup(t, path, "19990102-000000", "b")
	newest := fakeBackup(t, path, "19990103-000000", "c")

	// When: listing
	backups, err := ListBackups(path)

	// Then: newest first, by the stamp in the name
	require.NoError(t, err)
	assert.Equal(t, []string{newest, middle, oldest}, backups)
}

func TestListBackups_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".quarry.yaml")
	want := fakeBackup(t, path, "19990101-000000", "x")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".quarry.yml.bak.19990101-000000"), []byte("x"), 0o644))

	backups, err := ListBackups(path)

	require.NoError(t, err)
	assert.Equal(t, []string{want}, backups)
}

func TestListBackups_EmptyWhenNoneExist(t *testing.T) {
	backups, err := ListBackups(filepath.Join(t.TempDir(), ".quarry.yaml"))
	require.NoError(t, err)
	assert.Empty(t, backups)

	// A missing directory reads as no backups, not an error.
	backups, err = ListBackups(filepath.Join(t.TempDir(), "absent", ".quarry.yaml"))
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestBackupConfig_PrunesBeyondLimit(t *testing.T) {
	// Given: a config plus more old backups than the limit keeps
	path := filepath.Join(t.TempDir(), ".quarry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("live"), 0o644))
	for _, stamp := range []string{
		"19990101-000000",
		"19990102-000000",
		"19990103-000000",
		"19990104-000000",
	} {
		fakeBackup(t, path, stamp, "old")
	}

	// When: taking one more backup
	backup, err := BackupConfig(path)
	require.NoError(t, err)

	// Then: only the newest survive, the fresh backup among them
	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
	assert.Equal(t, backup, backups[0])

	got, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "live", string(got))
}

func TestRestoreConfig_MissingBackup(t *testing.T) {
	dir := t.TempDir()

	err := RestoreConfig(filepath.Join(dir, ".quarry.yaml"), filepath.Join(dir, "no-such.bak"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup file not found")
}

func TestRestoreConfig_ReplacesCurrentAndKeepsIt(t *testing.T) {
	// Given: a live config and an older backup to return to
	path := filepath.Join(t.TempDir(), ".quarry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("current"), 0o644))
	backup := fakeBackup(t, path, "19990101-000000", "restored")

	// When: restoring
	require.NoError(t, RestoreConfig(path, backup))

	// Then: the backup's content is live again
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "restored", string(got))

	// And: the replaced content was itself backed up first
	backups, err := ListBackups(path)
	require.NoError(t, err)
	var saved []string
	for _, b := range backups {
		data, err := os.ReadFile(b)
		require.NoError(t, err)
		saved = append(saved, string(data))
	}
	assert.Contains(t, saved, "current")
}

func TestRestoreConfig_CreatesMissingConfig(t *testing.T) {
	// Given: a backup but no live config at all
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	backup := fakeBackup(t, path, "19990101-000000", "from backup")

	// When: restoring
	require.NoError(t, RestoreConfig(path, backup))

	// Then: the config exists now, and no safety backup was taken
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from backup", string(got))

	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.Equal(t, []string{backup}, backups)
}
