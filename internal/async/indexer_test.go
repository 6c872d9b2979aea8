package async

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndexer(t *testing.T, fn IndexFunc) (*BackgroundIndexer, string) {
	t.Helper()
	dir := t.TempDir()
	bi := NewBackgroundIndexer(IndexerConfig{DataDir: dir})
	bi.IndexFunc = fn
	return bi, dir
}

func TestNewBackgroundIndexer_Idle(t *testing.T) {
	bi := NewBackgroundIndexer(IndexerConfig{DataDir: t.TempDir()})
	require.NotNil(t, bi.Progress())
	assert.False(t, bi.IsRunning())
	assert.Equal(t, time.Second, bi.cfg.FlushInterval, "zero flush interval gets the default")
}

func TestBackgroundIndexer_RunsToCompletion(t *testing.T) {
	var ran atomic.Bool
	bi, _ := newTestIndexer(t, func(ctx context.Context, progress *Progress) error {
		ran.Store(true)
		return nil
	})

	bi.Start(context.Background())
	assert.True(t, bi.IsRunning())

	require.NoError(t, bi.Wait())
	assert.True(t, ran.Load())
	assert.False(t, bi.IsRunning())
}

func TestBackgroundIndexer_FinalSnapshotIsReady(t *testing.T) {
	bi, _ := newTestIndexer(t, func(ctx context.Context, progress *Progress) error {
		progress.SetStage(StageScanning, 20)
		progress.UpdateDocuments(10)
		progress.SetStage(StageIndexing, 20)
		progress.UpdateDocuments(20)
		progress.AddUnits(140)
		return nil
	})

	bi.Start(context.Background())
	require.NoError(t, bi.Wait())

	snap := bi.Progress().Snapshot()
	assert.Equal(t, "ready", snap.Status)
	assert.Equal(t, 20, snap.DocumentsProcessed)
	assert.Equal(t, 140, snap.UnitsIndexed)
}

func TestBackgroundIndexer_StopCancelsTheTask(t *testing.T) {
	var cancelled atomic.Bool
	bi, _ := newTestIndexer(t, func(ctx context.Context, progress *Progress) error {
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return errors.New("never cancelled")
		}
	})

	bi.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	bi.Stop()

	assert.True(t, cancelled.Load())
	assert.False(t, bi.IsRunning())
}

func TestBackgroundIndexer_StopIsIdempotent(t *testing.T) {
	bi, _ := newTestIndexer(t, func(ctx context.Context, progress *Progress) error {
		<-ctx.Done()
		return ctx.Err()
	})

	// Stopping before Start must not hang on the never-closed done channel.
	bi.Stop()

	bi.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	bi.Stop()
	bi.Stop()
	assert.False(t, bi.IsRunning())
}

func TestBackgroundIndexer_ParentContextCancels(t *testing.T) {
	var cancelled atomic.Bool
	bi, _ := newTestIndexer(t, func(ctx context.Context, progress *Progress) error {
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	bi.Start(ctx)
	time.Sleep(5 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, bi.Wait(), context.Canceled)
	assert.True(t, cancelled.Load())
}

func TestBackgroundIndexer_WaitBlocksUntilDone(t *testing.T) {
	bi, _ := newTestIndexer(t, func(ctx context.Context, progress *Progress) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	bi.Start(context.Background())
	start := time.Now()
	require.NoError(t, bi.Wait())
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestBackgroundIndexer_RunLockLifecycle(t *testing.T) {
	dir := t.TempDir()
	bi := NewBackgroundIndexer(IndexerConfig{DataDir: dir})

	var locked atomic.Bool
	bi.IndexFunc = func(ctx context.Context, progress *Progress) error {
		locked.Store(HasIncompleteLock(dir))
		return nil
	}

	bi.Start(context.Background())
	require.NoError(t, bi.Wait())

	assert.True(t, locked.Load(), "lock should exist while the task runs")
	assert.False(t, HasIncompleteLock(dir), "lock should be released afterwards")
}

func TestBackgroundIndexer_PersistsStatusFile(t *testing.T) {
	bi, dir := newTestIndexer(t, func(ctx context.Context, progress *Progress) error {
		progress.SetStage(StageIndexing, 3)
		progress.UpdateDocuments(3)
		progress.AddUnits(17)
		return nil
	})
	bi.cfg.FlushInterval = 10 * time.Millisecond

	bi.Start(context.Background())
	require.NoError(t, bi.Wait())

	snap, ok, err := ReadStatusFile(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ready", snap.Status)
	assert.Equal(t, 3, snap.DocumentsProcessed)
	assert.Equal(t, 17, snap.UnitsIndexed)
}

func TestBackgroundIndexer_TaskErrorReachesEverything(t *testing.T) {
	bi, dir := newTestIndexer(t, func(ctx context.Context, progress *Progress) error {
		return errors.New("embedding backend unavailable")
	})

	bi.Start(context.Background())
	require.EqualError(t, bi.Wait(), "embedding backend unavailable")

	snap := bi.Progress().Snapshot()
	assert.Equal(t, "error", snap.Status)
	assert.Equal(t, "embedding backend unavailable", snap.ErrorMessage)

	persisted, ok, err := ReadStatusFile(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "error", persisted.Status)
}

func TestBackgroundIndexer_LockFailureSurfaces(t *testing.T) {
	// A plain file where the data dir should be makes MkdirAll fail.
	parent := t.TempDir()
	blocked := filepath.Join(parent, "data")
	require.NoError(t, os.WriteFile(blocked, []byte("in the way"), 0o644))

	bi := NewBackgroundIndexer(IndexerConfig{DataDir: blocked})
	bi.Start(context.Background())

	err := bi.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create data dir")
	assert.Equal(t, "error", bi.Progress().Snapshot().Status)
}

func TestBackgroundIndexer_StartWhileRunningIsNoop(t *testing.T) {
	var runs atomic.Int32
	bi, _ := newTestIndexer(t, func(ctx context.Context, progress *Progress) error {
		runs.Add(1)
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	ctx := context.Background()
	bi.Start(ctx)
	bi.Start(ctx)
	bi.Start(ctx)
	require.NoError(t, bi.Wait())

	assert.Equal(t, int32(1), runs.Load())
}

func TestHasIncompleteLock(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, HasIncompleteLock(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "indexing.lock"), []byte("stamp"), 0o644))
	assert.True(t, HasIncompleteLock(dir))
}
