package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCmd_RequiresQuery(t *testing.T) {
	// Given: a search command with no arguments
	cmd := newSearchCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	// When: executing
	err := cmd.Execute()

	// Then: it should refuse to run without a query
	assert.Error(t, err)
}

func TestSearchCmd_RejectsUnknownMode(t *testing.T) {
	// Given: a search command with a bogus mode
	cmd := newSearchCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"timeout settings", "--mode", "psychic"})

	// When: executing
	err := cmd.Execute()

	// Then: the mode is rejected before any index access
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestSearchCmd_RejectsUnknownFormat(t *testing.T) {
	// Given: a search command with a bogus format
	cmd := newSearchCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"timeout settings", "--format", "xml"})

	// When: executing
	err := cmd.Execute()

	// Then: the format is rejected before any index access
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestSearchCmd_NoIndexGivesGuidance(t *testing.T) {
	// Given: a directory that was never indexed
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldWd) }()

	cmd := newSearchCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"anything"})

	// When: searching
	err := cmd.Execute()

	// Then: the error points at quarry index
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
	assert.Contains(t, err.Error(), "quarry index")
}

func TestSearchCmd_LexicalEndToEnd(t *testing.T) {
	// Given: an indexed project with one markdown document
	tmpDir := t.TempDir()
	doc := "# Network Guide\n\nThe ingress load balancer terminates TLS for every tenant.\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "network.md"), []byte(doc), 0o644))

	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldWd) }()

	idx := newIndexCmd()
	idx.SetOut(&bytes.Buffer{})
	idx.SetErr(&bytes.Buffer{})
	idx.SetArgs([]string{"--offline", "--no-tui"})
	require.NoError(t, idx.Execute())

	// When: searching in lexical mode
	var stdout bytes.Buffer
	cmd := newSearchCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"load balancer", "--mode", "lexical"})

	err := cmd.Execute()

	// Then: the document comes back with its path and snippet
	require.NoError(t, err)
	output := stdout.String()
	assert.Contains(t, output, "Found")
	assert.Contains(t, output, "network.md")
	assert.Contains(t, output, "load balancer")
}

func TestDisplayPath(t *testing.T) {
	tests := []struct {
		name string
		cwd  string
		path string
		page int
		want string
	}{
		{"relative inside cwd", "/work", "/work/docs/guide.md", 0, "docs/guide.md"},
		{"outside cwd stays absolute", "/work", "/elsewhere/notes.md", 0, "/elsewhere/notes.md"},
		{"page suffix", "/work", "/work/specs/manual.pdf", 12, "specs/manual.pdf:12"},
		{"no cwd", "", "/x/y.md", 0, "/x/y.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, displayPath(tt.cwd, tt.path, tt.page))
		})
	}
}

func TestSnippetLines(t *testing.T) {
	// Given: text longer than the snippet window
	text := "first line\nsecond line\nthird line\nfourth line"

	// When: taking a three line snippet
	lines := snippetLines(text, 3)

	// Then: only the leading lines survive
	assert.Equal(t, []string{"first line", "second line", "third line"}, lines)
}

func TestSnippetLines_DropsTrailingBlanks(t *testing.T) {
	// Given: a short unit that ends in blank lines
	text := "only line\n\n\n"

	// When: taking a snippet
	lines := snippetLines(text, 3)

	// Then: the blanks are trimmed away
	assert.Equal(t, []string{"only line"}, lines)
}

func TestRankLabel(t *testing.T) {
	assert.Equal(t, "#3", rankLabel(3))
	assert.Equal(t, "-", rankLabel(0))
	assert.Equal(t, "-", rankLabel(-1))
}
