package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{OpConfigChange, "CONFIG_CHANGE"},
		{Operation(99), "UNKNOWN"},
		{Operation(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}

func TestOptions_Defaults(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 500*time.Millisecond, opts.DebounceWindow)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 256, opts.EventBufferSize)
	assert.Nil(t, opts.Extensions)
	assert.Nil(t, opts.Exclude)
}

func TestOptions_WithDefaultsFillsOnlyZeroFields(t *testing.T) {
	partial := Options{DebounceWindow: 100 * time.Millisecond}.WithDefaults()
	assert.Equal(t, 100*time.Millisecond, partial.DebounceWindow)
	assert.Equal(t, 5*time.Second, partial.PollInterval)
	assert.Equal(t, 256, partial.EventBufferSize)

	custom := Options{
		DebounceWindow:  time.Second,
		PollInterval:    10 * time.Second,
		EventBufferSize: 32,
		Extensions:      []string{".md"},
		Exclude:         []string{"**/drafts/**"},
	}
	assert.Equal(t, custom, custom.WithDefaults())
}

func TestHiddenSegment(t *testing.T) {
	tests := []struct {
		rel  string
		want bool
	}{
		{"notes.md", false},
		{"docs/guide.md", false},
		{".quarry/units.db", true},
		{".git", true},
		{"docs/.obsidian/workspace.json", true},
		{".secret.md", true},
		{".", false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, hiddenSegment(tt.rel))
		})
	}
}

func TestExtensionFilter(t *testing.T) {
	set := extensionFilter([]string{"md", ".PDF", " txt ", ""})
	assert.Equal(t, map[string]bool{".md": true, ".pdf": true, ".txt": true}, set)

	assert.Nil(t, extensionFilter(nil), "no extensions means no filtering")
}

func TestWantsFile(t *testing.T) {
	limited := &HybridWatcher{wanted: extensionFilter([]string{"md"})}
	assert.True(t, limited.wantsFile("docs/guide.md"))
	assert.True(t, limited.wantsFile("UPPER.MD"))
	assert.False(t, limited.wantsFile("docs/guide.pdf"))
	assert.False(t, limited.wantsFile("Makefile"))

	open := &HybridWatcher{}
	assert.True(t, open.wantsFile("anything.xyz"))
}

func TestIsConfigFile(t *testing.T) {
	assert.True(t, isConfigFile(".quarry.yaml"))
	assert.True(t, isConfigFile(".quarry.yml"))
	assert.True(t, isConfigFile("nested/.quarry.yaml"))
	assert.False(t, isConfigFile("quarry.yaml"))
	assert.False(t, isConfigFile("notes.md"))
}
