package ui

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderStatusInfo(t *testing.T, info StatusInfo) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewStatusRenderer(&buf, true).Render(info))
	return buf.String()
}

func TestStatusRenderer_FullLayout(t *testing.T) {
	out := renderStatusInfo(t, StatusInfo{
		ProjectName:      "handbook",
		TotalDocuments:   42,
		TotalUnits:       512,
		PendingDocuments: 3,
		FailedDocuments:  1,
		LastIndexed:      time.Now(),
		RegistrySize:     1 << 10,
		StoreSize:        2 << 20,
		LexicalSize:      512,
		VectorSize:       3 << 20,
		TotalSize:        5<<20 + 512 + 1<<10,
		EmbedderProvider: "ollama",
		EmbedderStatus:   "ready",
		EmbedderModel:    "nomic-embed-text",
		IndexerStatus:    "indexing",
		IndexerStage:     "embedding",
	})

	want := strings.Join([]string{
		"Index Status: handbook",
		"",
		"  Documents:    42",
		"  Units:        512",
		"  Pending:      3",
		"  Failed:       1",
		"  Last indexed: just now",
		"",
		"  Storage:",
		"    Registry: 1.0 KB",
		"    Units:    2.0 MB",
		"    Lexical:  512 B",
		"    Vectors:  3.0 MB",
		"    Total:    5.0 MB",
		"",
		"  Embedder:",
		"    Provider: ollama",
		"    Status:   ready",
		"    Model:    nomic-embed-text",
		"",
		"  Indexer: indexing (embedding)",
		"",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestStatusRenderer_MinimalLayoutOmitsSections(t *testing.T) {
	out := renderStatusInfo(t, StatusInfo{
		ProjectName:      "notes",
		TotalDocuments:   7,
		TotalUnits:       31,
		EmbedderProvider: "static",
		EmbedderStatus:   "ready",
	})

	assert.NotContains(t, out, "Pending:")
	assert.NotContains(t, out, "Failed:")
	assert.NotContains(t, out, "Last indexed:")
	assert.NotContains(t, out, "Model:")
	assert.NotContains(t, out, "Indexer:")
	assert.Contains(t, out, "  Documents:    7")
	assert.Contains(t, out, "    Provider: static")
}

func TestStatusRenderer_IndexerWithoutStage(t *testing.T) {
	out := renderStatusInfo(t, StatusInfo{
		ProjectName:      "notes",
		EmbedderProvider: "static",
		EmbedderStatus:   "ready",
		IndexerStatus:    "ready",
	})

	assert.Contains(t, out, "  Indexer: ready\n")
	assert.NotContains(t, out, "( ")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	var buf bytes.Buffer
	info := StatusInfo{
		ProjectName:      "handbook",
		TotalDocuments:   42,
		TotalUnits:       512,
		EmbedderProvider: "ollama",
		EmbedderStatus:   "ready",
	}
	require.NoError(t, NewStatusRenderer(&buf, false).RenderJSON(info))

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, `"project_name": "handbook"`)

	var parsed StatusInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, info, parsed)
}

func TestStatusRenderer_JSONOmitsEmptyOptionals(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewStatusRenderer(&buf, false).RenderJSON(StatusInfo{ProjectName: "x"}))

	out := buf.String()
	assert.NotContains(t, out, "pending_documents")
	assert.NotContains(t, out, "failed_documents")
	assert.NotContains(t, out, "embedder_model")
	assert.NotContains(t, out, "indexer_status")
}

func TestStatusRenderer_UnknownStatusPassesThrough(t *testing.T) {
	r := NewStatusRenderer(&bytes.Buffer{}, true)
	assert.Equal(t, "n/a", r.renderStatus("n/a"))
	assert.Equal(t, "ready", r.renderStatus("ready"))
}

func TestStatusRenderer_NoEscapeSequencesWhenNoColor(t *testing.T) {
	out := renderStatusInfo(t, StatusInfo{
		ProjectName:      "handbook",
		EmbedderProvider: "ollama",
		EmbedderStatus:   "error",
		IndexerStatus:    "error",
	})
	assert.NotContains(t, out, "\x1b")
}

func TestFormatTime_Buckets(t *testing.T) {
	now := time.Now()
	old := now.Add(-45 * 24 * time.Hour)

	tests := []struct {
		at   time.Time
		want string
	}{
		{now, "just now"},
		{now.Add(-90 * time.Second), "1 minute ago"},
		{now.Add(-5 * time.Minute), "5 minutes ago"},
		{now.Add(-time.Hour), "1 hour ago"},
		{now.Add(-26 * time.Hour), "1 day ago"},
		{now.Add(-3 * 24 * time.Hour), "3 days ago"},
		{old, old.Format("2006-01-02 15:04")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatTime(tt.at))
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1 << 20, "1.0 MB"},
		{3 << 29, "1.5 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.n))
	}
}
