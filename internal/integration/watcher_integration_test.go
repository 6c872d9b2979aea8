package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/internal/search"
	"github.com/quarryhq/quarry/internal/watcher"
)

// Tests for the live watching path: real files change on disk and the
// hybrid watcher reports them, debounced, over its event channel.

func startWatcher(t *testing.T, dir string, opts watcher.Options) (*watcher.HybridWatcher, context.Context) {
	t.Helper()

	w, err := watcher.NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	go func() { _ = w.Start(ctx, dir) }()
	t.Cleanup(func() { _ = w.Stop() })

	// Give the backend time to register its directory watches.
	time.Sleep(200 * time.Millisecond)
	return w, ctx
}

func waitForEvent(t *testing.T, ctx context.Context, w *watcher.HybridWatcher, match func(watcher.FileEvent) bool) watcher.FileEvent {
	t.Helper()

	for {
		select {
		case batch, ok := <-w.Events():
			if !ok {
				t.Fatal("event channel closed before the expected event arrived")
			}
			for _, ev := range batch {
				if match(ev) {
					return ev
				}
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for an event")
		}
	}
}

func testOptions() watcher.Options {
	return watcher.Options{
		DebounceWindow:  100 * time.Millisecond,
		EventBufferSize: 100,
	}.WithDefaults()
}

func TestWatcher_EmitsCreateForNewFile(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watcher over an empty directory
	dir := t.TempDir()
	w, ctx := startWatcher(t, dir, testOptions())

	// When: a document appears
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\n"), 0o644))

	// Then: a create event arrives for it
	ev := waitForEvent(t, ctx, w, func(ev watcher.FileEvent) bool {
		return ev.Path == "notes.md"
	})
	assert.Equal(t, watcher.OpCreate, ev.Operation)
	assert.Equal(t, "notes.md", filepath.Base(ev.AbsPath))
	assert.False(t, ev.IsDir)
}

func TestWatcher_CoalescesWriteBurstsIntoOneModify(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watcher over a directory with one existing document
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.md")
	require.NoError(t, os.WriteFile(path, []byte("draft\n"), 0o644))
	w, ctx := startWatcher(t, dir, testOptions())

	// When: the document is rewritten several times in quick succession
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("revision\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	// Then: the burst collapses into a single modify event
	ev := waitForEvent(t, ctx, w, func(ev watcher.FileEvent) bool {
		return ev.Path == "guide.md"
	})
	assert.Equal(t, watcher.OpModify, ev.Operation)
}

func TestWatcher_EmitsDeleteForRemovedFile(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watcher over a directory with one existing document
	dir := t.TempDir()
	path := filepath.Join(dir, "old.md")
	require.NoError(t, os.WriteFile(path, []byte("obsolete\n"), 0o644))
	w, ctx := startWatcher(t, dir, testOptions())

	// When: the document is removed
	require.NoError(t, os.Remove(path))

	// Then: a delete event arrives for it
	ev := waitForEvent(t, ctx, w, func(ev watcher.FileEvent) bool {
		return ev.Path == "old.md"
	})
	assert.Equal(t, watcher.OpDelete, ev.Operation)
}

func TestWatcher_ExtensionFilterSkipsOtherFiles(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watcher that only cares about markdown
	dir := t.TempDir()
	opts := testOptions()
	opts.Extensions = []string{".md"}
	w, ctx := startWatcher(t, dir, opts)

	// When: a scratch file and a document appear together
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.md"), []byte("# Doc\n"), 0o644))

	// Then: the document is reported and the scratch file never is
	waitForEvent(t, ctx, w, func(ev watcher.FileEvent) bool {
		require.NotEqual(t, "scratch.tmp", ev.Path)
		return ev.Path == "doc.md"
	})
}

func TestWatcher_FlagsProjectConfigChanges(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watcher over a project directory
	dir := t.TempDir()
	w, ctx := startWatcher(t, dir, testOptions())

	// When: the project config file is written
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".quarry.yaml"), []byte("workers: 2\n"), 0o644))

	// Then: it surfaces as a config change rather than a document event
	ev := waitForEvent(t, ctx, w, func(ev watcher.FileEvent) bool {
		return ev.Path == ".quarry.yaml"
	})
	assert.Equal(t, watcher.OpConfigChange, ev.Operation)
}

func TestWatcher_FeedsOrchestrator(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexing pipeline and a watcher over its document root
	p := newPipeline(t)
	w, ctx := startWatcher(t, p.docsDir, testOptions())

	// When: a new document shows up and its event drives the orchestrator
	p.writeDoc(t, "billing.md", "# Billing\n\nInvoices are generated monthly.\n")
	ev := waitForEvent(t, ctx, w, func(ev watcher.FileEvent) bool {
		return ev.Path == "billing.md"
	})
	require.Equal(t, watcher.OpCreate, ev.Operation)

	res, err := p.orch.IndexDocument(context.Background(), ev.AbsPath)
	require.NoError(t, err)
	require.True(t, res.Success)

	// Then: the document is immediately searchable
	results, err := p.retriever(t).Search(context.Background(), "invoices", search.Options{
		Mode: search.ModeLexical,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "billing.md", filepath.Base(results[0].Unit.Path))
}
