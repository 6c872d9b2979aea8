package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/version"
)

func runVersionCmd(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	// A nil slice would make cobra read os.Args, which holds test flags.
	cmd.SetArgs(append([]string{}, args...))
	require.NoError(t, cmd.Execute())
	return buf.String()
}

func TestVersionCmd_HumanLine(t *testing.T) {
	out := runVersionCmd(t)

	assert.Contains(t, out, "quarry")
	assert.Contains(t, out, version.Version)
	assert.Contains(t, out, "commit")
}

func TestVersionCmd_ShortIsBareNumber(t *testing.T) {
	out := runVersionCmd(t, "--short")

	assert.Equal(t, version.Version, strings.TrimSpace(out))
}

func TestVersionCmd_JSONCarriesBuildMetadata(t *testing.T) {
	out := runVersionCmd(t, "--json")

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info["version"])
	for _, key := range []string{"commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, info, key)
	}
}

func TestVersionCmd_RejectsArguments(t *testing.T) {
	cmd := newVersionCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})

	assert.Error(t, cmd.Execute())
}

func TestVersionCmd_ReachableFromRoot(t *testing.T) {
	sub, _, err := NewRootCmd().Find([]string{"version"})

	require.NoError(t, err)
	assert.Equal(t, "version", sub.Name())
}
