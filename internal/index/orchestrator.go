// Package index coordinates the document indexing pipeline. The
// orchestrator drives each document through discovery, parsing, chunking,
// classification, embedding, and registration, keeping the registry, unit
// store, and retrieval indexes consistent with one another. The registry is
// the source of truth; the lexical and vector indexes are derived state
// that can always be rebuilt from the store.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quarryhq/quarry/internal/chunk"
	"github.com/quarryhq/quarry/internal/dense"
	"github.com/quarryhq/quarry/internal/embed"
	qerrors "github.com/quarryhq/quarry/internal/errors"
	"github.com/quarryhq/quarry/internal/lexical"
	"github.com/quarryhq/quarry/internal/parse"
	"github.com/quarryhq/quarry/internal/registry"
	"github.com/quarryhq/quarry/internal/scanner"
	"github.com/quarryhq/quarry/internal/store"
	"github.com/quarryhq/quarry/internal/taxonomy"
	"github.com/quarryhq/quarry/internal/ui"
)

const (
	// perUnitTopics caps topic labels attached to a single unit.
	perUnitTopics = 5
	// perDocTopics caps topic labels rolled up to the document record.
	perDocTopics = 10
	// denseCompactThreshold is how many removals accumulate before the
	// vector graph is compacted at the end of a batch.
	denseCompactThreshold = 256
)

// Dependencies holds the collaborators for an Orchestrator.
type Dependencies struct {
	// Registry tracks per-document indexing state. Required.
	Registry *registry.Registry

	// Store persists retrieval units. Required.
	Store *store.UnitStore

	// Lexical is the keyword index. Required.
	Lexical *lexical.Index

	// Dense is the vector index. Optional; provided together with
	// Embedder or not at all.
	Dense *dense.Index

	// Embedder generates unit vectors. Optional; paired with Dense.
	Embedder embed.Embedder

	// Parsers extracts text from source documents. Required.
	Parsers *parse.Registry

	// Chunker splits page text into retrieval units. Required.
	Chunker *chunk.Chunker

	// Taxonomy classifies units and documents. Required.
	Taxonomy *taxonomy.Taxonomy

	// Renderer receives progress events. Optional.
	Renderer ui.Renderer
}

// Config tunes orchestrator behavior.
type Config struct {
	// DataDir is the directory guarded by the cross-process writer lock.
	// Empty disables locking.
	DataDir string

	// LexicalSnapshot is where the keyword index is saved after each
	// batch. Empty disables the snapshot.
	LexicalSnapshot string

	// VectorPath is where the vector index is saved after each batch.
	// Empty disables the snapshot.
	VectorPath string

	// Workers bounds batch concurrency. Zero means NumCPU.
	Workers int

	// MaxFileSize skips documents larger than this many bytes. Zero
	// means the scanner default.
	MaxFileSize int64

	// MaxFiles caps documents per batch scan. Zero means no cap.
	MaxFiles int

	// Include restricts scanning to matching paths when non-empty.
	Include []string

	// Exclude drops matching paths from scanning.
	Exclude []string

	// CarryAcrossPages carries chunk context across page boundaries.
	CarryAcrossPages bool

	// EmbedBatchSize bounds texts per embedding call. Zero means the
	// embedder default.
	EmbedBatchSize int
}

// Orchestrator drives documents through the indexing pipeline. Public
// writer methods serialize on an internal mutex and, when DataDir is set,
// on a cross-process file lock, so one Orchestrator is safe to share.
type Orchestrator struct {
	cfg  Config
	deps Dependencies

	mu       sync.Mutex
	removals atomic.Int64
}

// NewOrchestrator validates dependencies and returns a ready orchestrator.
func NewOrchestrator(cfg Config, deps Dependencies) (*Orchestrator, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("unit store is required")
	}
	if deps.Lexical == nil {
		return nil, fmt.Errorf("lexical index is required")
	}
	if deps.Parsers == nil {
		return nil, fmt.Errorf("parser registry is required")
	}
	if deps.Chunker == nil {
		return nil, fmt.Errorf("chunker is required")
	}
	if deps.Taxonomy == nil {
		return nil, fmt.Errorf("taxonomy is required")
	}
	if (deps.Dense == nil) != (deps.Embedder == nil) {
		return nil, fmt.Errorf("vector index and embedder must be provided together")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = embed.DefaultBatchSize
	}
	if cfg.EmbedBatchSize > embed.MaxBatchSize {
		cfg.EmbedBatchSize = embed.MaxBatchSize
	}
	return &Orchestrator{cfg: cfg, deps: deps}, nil
}

// IndexDocument indexes the document at path. Unchanged documents are
// skipped. Failures are recorded against the document in the registry and
// returned in the result; the error return mirrors result.Err.
func (o *Orchestrator) IndexDocument(ctx context.Context, path string) (*IndexingResult, error) {
	lock, err := o.lockWriter()
	if err != nil {
		return nil, err
	}
	defer o.unlockWriter(lock)

	res := o.indexOne(ctx, path)
	return res, res.Err
}

// IndexBatch discovers documents under dir and indexes everything new or
// changed. Document failures are isolated: each is recorded in the summary
// and the batch continues. Cancellation stops between documents; the
// partial summary is returned alongside the context error.
func (o *Orchestrator) IndexBatch(ctx context.Context, dir string) (*BatchSummary, error) {
	lock, err := o.lockWriter()
	if err != nil {
		return nil, err
	}
	defer o.unlockWriter(lock)

	return o.indexBatchLocked(ctx, dir)
}

// RebuildFromScratch drops every document record, all stored units, and
// both retrieval indexes, then reindexes dir from nothing. It is the
// explicit recovery path for corrupted or doubted state; nothing invokes
// it automatically.
func (o *Orchestrator) RebuildFromScratch(ctx context.Context, dir string) (*BatchSummary, error) {
	lock, err := o.lockWriter()
	if err != nil {
		return nil, err
	}
	defer o.unlockWriter(lock)

	slog.Info("index_rebuild_started", "dir", dir)

	// Registry records go first so a failure below leaves documents
	// marked for reindexing rather than half forgotten.
	for _, rec := range o.deps.Registry.All() {
		if _, _, err := o.deps.Registry.Remove(rec.Fingerprint); err != nil {
			return nil, fmt.Errorf("clear registry: %w", err)
		}
	}

	var ids []string
	if err := o.deps.Store.ForEachUnit(ctx, func(u store.Unit) error {
		ids = append(ids, u.ID)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("walk units: %w", err)
	}
	if err := o.deps.Store.DeleteUnits(ctx, ids); err != nil {
		return nil, fmt.Errorf("clear store: %w", err)
	}

	if err := o.deps.Lexical.Build(ctx, nil); err != nil {
		return nil, fmt.Errorf("reset lexical index: %w", err)
	}
	if o.deps.Dense != nil {
		if err := o.deps.Dense.Remove(ctx, ids); err != nil {
			return nil, fmt.Errorf("reset vector index: %w", err)
		}
		if err := o.deps.Dense.Compact(); err != nil {
			return nil, fmt.Errorf("compact vector index: %w", err)
		}
		o.removals.Store(0)
	}

	return o.indexBatchLocked(ctx, dir)
}

// RemoveDocument removes the document with the given fingerprint and
// withdraws its units from the store and indexes. Returns false when no
// such document is registered.
func (o *Orchestrator) RemoveDocument(ctx context.Context, fingerprint string) (bool, error) {
	lock, err := o.lockWriter()
	if err != nil {
		return false, err
	}
	defer o.unlockWriter(lock)

	ids, found, err := o.deps.Registry.Remove(fingerprint)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	o.withdraw(ctx, ids)
	slog.Info("index_document_removed", "fingerprint", shortFP(fingerprint), "units", len(ids))
	return true, nil
}

// RemoveByPath removes every document registered under path and withdraws
// its units. Returns false when the path is unknown.
func (o *Orchestrator) RemoveByPath(ctx context.Context, path string) (bool, error) {
	lock, err := o.lockWriter()
	if err != nil {
		return false, err
	}
	defer o.unlockWriter(lock)

	ids, found, err := o.deps.Registry.RemoveByPath(path)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	o.withdraw(ctx, ids)
	slog.Info("index_path_removed", "path", path, "units", len(ids))
	return true, nil
}

// CleanupMissing marks documents whose files no longer exist as deleted
// and withdraws their units. Returns the affected records.
func (o *Orchestrator) CleanupMissing(ctx context.Context) ([]*registry.Record, error) {
	lock, err := o.lockWriter()
	if err != nil {
		return nil, err
	}
	defer o.unlockWriter(lock)

	removed, err := o.deps.Registry.CleanupMissing()
	if err != nil {
		return nil, err
	}
	for _, rec := range removed {
		o.withdraw(ctx, rec.UnitIDs)
	}
	if len(removed) > 0 {
		slog.Info("index_missing_cleaned", "documents", len(removed))
	}
	return removed, nil
}

// NeedsSync reports whether the derived indexes disagree with the store on
// unit count. Count equality is a cheap proxy; syncing is always safe.
func (o *Orchestrator) NeedsSync(ctx context.Context) (bool, error) {
	stored, err := o.deps.Store.Count(ctx)
	if err != nil {
		return false, err
	}
	if !o.deps.Lexical.IsBuilt() {
		return stored > 0, nil
	}
	if o.deps.Lexical.Count() != stored {
		return true, nil
	}
	if o.deps.Dense != nil && o.deps.Dense.Count() != stored {
		return true, nil
	}
	return false, nil
}

// SyncIndexes rebuilds the lexical index from the store and restores any
// vectors missing from the vector index. The derived indexes can trail the
// store after a crash between commit and snapshot; syncing at startup
// brings them back in line.
func (o *Orchestrator) SyncIndexes(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var (
		docs    []lexical.Doc
		missing []store.Unit
	)
	err := o.deps.Store.ForEachUnit(ctx, func(u store.Unit) error {
		docs = append(docs, lexical.Doc{ID: u.ID, Text: u.Text, Domain: u.Domain})
		if o.deps.Dense != nil && !o.deps.Dense.Contains(u.ID) {
			missing = append(missing, u)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk units: %w", err)
	}

	if err := o.deps.Lexical.Build(ctx, docs); err != nil {
		return fmt.Errorf("rebuild lexical index: %w", err)
	}

	if len(missing) > 0 {
		slog.Info("index_vector_repair", "missing", len(missing))
		if err := o.restoreVectors(ctx, missing); err != nil {
			return fmt.Errorf("restore vectors: %w", err)
		}
	}
	slog.Info("index_sync_complete", "units", len(docs), "restored", len(missing))
	return nil
}

// indexBatchLocked runs a batch with the writer locks already held.
func (o *Orchestrator) indexBatchLocked(ctx context.Context, dir string) (*BatchSummary, error) {
	start := time.Now()
	slog.Info("index_batch_started", "dir", dir)
	o.emit(ui.ProgressEvent{Stage: ui.StageScanning, Message: "Discovering documents"})

	files, err := scanner.Collect(ctx, scanner.Options{
		Root:        dir,
		Extensions:  o.deps.Parsers.Supported(),
		Include:     o.cfg.Include,
		Exclude:     o.cfg.Exclude,
		MaxFileSize: o.cfg.MaxFileSize,
		MaxFiles:    o.cfg.MaxFiles,
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	sources := make([]registry.Source, 0, len(files))
	for _, f := range files {
		src, err := registry.FingerprintFile(f.AbsPath)
		if err != nil {
			o.warn(f.AbsPath, err)
			continue
		}
		sources = append(sources, src)
	}

	pending := o.deps.Registry.ListPending(sources)
	summary := &BatchSummary{
		Scanned: len(sources),
		Skipped: len(sources) - len(pending),
	}
	slog.Info("index_scan_complete",
		"files", len(sources),
		"pending", len(pending),
		"skipped", summary.Skipped,
	)

	if len(pending) > 0 {
		o.runWorkers(ctx, pending, summary)
	}

	o.finishBatch(ctx, summary, start)
	return summary, ctx.Err()
}

// runWorkers indexes pending sources on a bounded pool. Workers never
// propagate document errors; cancellation is the only thing that stops the
// pool early, and it is checked before each document starts.
func (o *Orchestrator) runWorkers(ctx context.Context, pending []registry.Source, summary *BatchSummary) {
	var (
		mu   sync.Mutex
		done int
	)
	total := len(pending)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for _, src := range pending {
		src := src
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := o.indexOne(gctx, src.Path)

			mu.Lock()
			defer mu.Unlock()
			done++
			o.collect(summary, res)
			o.emit(ui.ProgressEvent{
				Stage:       ui.StageIndexing,
				Current:     done,
				Total:       total,
				CurrentFile: filepath.Base(res.Path),
			})
			return nil
		})
	}
	_ = g.Wait()
}

// collect folds one document result into the batch summary. Callers hold
// the summary lock.
func (o *Orchestrator) collect(summary *BatchSummary, res *IndexingResult) {
	switch {
	case res.Skipped:
		summary.Skipped++
	case res.Success:
		summary.Indexed++
		summary.Units += res.UnitCount
	default:
		summary.Failed++
		summary.Failures = append(summary.Failures, *res)
		o.warn(res.Path, res.Err)
	}
}

// finishBatch compacts, snapshots, and reports completion.
func (o *Orchestrator) finishBatch(ctx context.Context, summary *BatchSummary, start time.Time) {
	o.maybeCompact()
	o.saveSnapshots()

	summary.Duration = time.Since(start)
	o.emit(ui.ProgressEvent{Stage: ui.StageComplete})
	if o.deps.Renderer != nil {
		o.deps.Renderer.Complete(o.completionStats(ctx, summary))
	}
	slog.Info("index_batch_complete",
		"scanned", summary.Scanned,
		"indexed", summary.Indexed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"units", summary.Units,
		"duration", summary.Duration.Round(time.Millisecond),
	)
}

// indexOne runs the full pipeline for one document. A revision conflict
// means another writer advanced the document while this one worked; the
// registry state is re-checked and the pipeline retried once before the
// conflict is surfaced as this document's failure.
func (o *Orchestrator) indexOne(ctx context.Context, path string) *IndexingResult {
	start := time.Now()
	res := &IndexingResult{Path: path}

	src, err := registry.FingerprintFile(path)
	if err != nil {
		res.Err = fmt.Errorf("fingerprint %s: %w", path, err)
		res.Duration = time.Since(start)
		return res
	}
	res.Path = src.Path
	res.Fingerprint = src.Fingerprint

	if !o.deps.Registry.NeedsUpdate(src) {
		res.Success = true
		res.Skipped = true
		res.Duration = time.Since(start)
		slog.Debug("index_skip_unchanged", "path", src.Path, "fingerprint", shortFP(src.Fingerprint))
		return res
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		err := o.attemptIndex(ctx, src, res)
		if err == nil {
			res.Success = true
			res.Duration = time.Since(start)
			slog.Info("index_document_complete",
				"path", src.Path,
				"units", res.UnitCount,
				"pages", res.PageCount,
				"domain", res.Domain,
				"duration", res.Duration.Round(time.Millisecond),
			)
			return res
		}
		lastErr = err
		if !errors.Is(err, registry.ErrConflict) {
			break
		}
		if !o.deps.Registry.NeedsUpdate(src) {
			// The competing writer indexed the same content.
			res.Success = true
			res.Skipped = true
			res.Duration = time.Since(start)
			slog.Debug("index_conflict_superseded", "path", src.Path)
			return res
		}
		slog.Warn("index_conflict_retry", "path", src.Path, "attempt", attempt+1)
	}

	res.Err = lastErr
	res.Duration = time.Since(start)

	// A cancelled run leaves the document pending for the next pass. A
	// conflict leaves the competing writer's record alone.
	if ctx.Err() == nil && !errors.Is(lastErr, registry.ErrConflict) {
		if rec, ok := o.deps.Registry.Get(src.Fingerprint); ok {
			if _, ferr := o.deps.Registry.RegisterFailed(src, lastErr, rec.Revision); ferr != nil {
				slog.Warn("index_mark_failed_error", "path", src.Path, "error", ferr)
			}
		}
	}
	return res
}

// attemptIndex runs one pipeline pass for src under the revision token
// taken at its start and fills res with document facts on success.
func (o *Orchestrator) attemptIndex(ctx context.Context, src registry.Source, res *IndexingResult) error {
	pending, err := o.deps.Registry.RegisterPending(src)
	if err != nil {
		return fmt.Errorf("register pending: %w", err)
	}

	name := filepath.Base(src.Path)
	o.emit(ui.ProgressEvent{Stage: ui.StageParsing, CurrentFile: name})

	doc, err := o.deps.Parsers.Parse(ctx, src.Path)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	o.emit(ui.ProgressEvent{Stage: ui.StageChunking, CurrentFile: name})
	build := o.buildUnits(src, doc)

	var vectors [][]float32
	if o.deps.Embedder != nil && len(build.units) > 0 {
		o.emit(ui.ProgressEvent{Stage: ui.StageEmbedding, CurrentFile: name})
		vectors, err = o.embedUnits(ctx, build.units)
		if err != nil {
			return fmt.Errorf("embed %s: %w", name, err)
		}
	}

	o.emit(ui.ProgressEvent{Stage: ui.StageIndexing, CurrentFile: name})
	if err := o.commit(ctx, src, build, vectors, pending.Revision); err != nil {
		return err
	}

	res.UnitCount = len(build.units)
	res.PageCount = build.pageCount
	res.Domain = build.domain
	res.Topics = build.topics
	return nil
}

// docBuild carries a chunked, classified document ready to commit.
type docBuild struct {
	units     []store.Unit
	ids       []string
	pageCount int
	domain    string
	topics    []string
}

// buildUnits chunks doc page by page and annotates every unit with its
// section path, content type, topics, and identifier. Page numbers come
// from the parser, not the slice position: parsers may skip empty pages.
func (o *Orchestrator) buildUnits(src registry.Source, doc *parse.Document) *docBuild {
	var chunked []chunk.Unit
	carry := ""
	for _, page := range doc.Pages {
		pageUnits, next := o.deps.Chunker.ChunkPage(page.Text, page.Number, carry)
		chunked = append(chunked, pageUnits...)
		if o.cfg.CarryAcrossPages {
			carry = next
		}
	}

	build := &docBuild{
		units:     make([]store.Unit, 0, len(chunked)),
		ids:       make([]string, 0, len(chunked)),
		pageCount: len(doc.Pages),
		domain:    o.deps.Taxonomy.DomainFromPath(src.Path),
	}
	tracker := &sectionTracker{}
	tally := newTopicTally()

	for i, cu := range chunked {
		topics := topN(o.deps.Taxonomy.ClassifyText(cu.RawText), perUnitTopics)
		tally.add(topics)
		id := unitID(src.Path)
		build.ids = append(build.ids, id)
		build.units = append(build.units, store.Unit{
			ID:          id,
			Fingerprint: src.Fingerprint,
			Path:        src.Path,
			Page:        cu.PageNumber,
			Position:    i,
			Text:        cu.Text,
			RawText:     cu.RawText,
			Context:     cu.PreviousSummary,
			SectionPath: tracker.observe(cu.RawText),
			ContentType: classifyContent(cu.RawText),
			Domain:      build.domain,
			Topics:      topics,
			CharCount:   cu.CharCount,
			SizeClass:   cu.SizeClass,
		})
	}
	build.topics = tally.top(perDocTopics)
	return build
}

// embedUnits generates vectors for the units' enriched text in bounded
// batches. Any failure aborts the attempt before commit, so the document
// lands in the failed state rather than half indexed.
func (o *Orchestrator) embedUnits(ctx context.Context, units []store.Unit) ([][]float32, error) {
	vectors := make([][]float32, 0, len(units))
	for start := 0; start < len(units); start += o.cfg.EmbedBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+o.cfg.EmbedBatchSize, len(units))
		texts := make([]string, 0, end-start)
		for _, u := range units[start:end] {
			texts = append(texts, u.Text)
		}
		batch, err := o.deps.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// commit persists units, advances the registry, then registers the units
// with the retrieval indexes. Units reach the store before the registry
// commits, so a crash leaves at worst unreferenced units, never a registry
// entry pointing at missing ones.
func (o *Orchestrator) commit(ctx context.Context, src registry.Source, build *docBuild, vectors [][]float32, expectedRevision int) error {
	if err := o.deps.Store.PutUnits(ctx, build.units); err != nil {
		return fmt.Errorf("persist units: %w", err)
	}

	_, err := o.deps.Registry.RegisterIndexed(src, build.ids, build.pageCount, build.domain, build.topics, expectedRevision)
	if err != nil {
		// This attempt lost the race. Its units go, the winner's stay.
		if derr := o.deps.Store.DeleteUnits(ctx, build.ids); derr != nil {
			slog.Warn("index_conflict_cleanup_error", "path", src.Path, "error", derr)
		}
		return err
	}

	o.purgeStale(ctx, src.Fingerprint, build.ids)
	o.registerUnits(ctx, build, vectors)

	// Superseded fingerprints for the same path surrender their units.
	orphaned, err := o.deps.Registry.ReconcilePath(src.Path, src.Fingerprint)
	if err != nil {
		slog.Warn("index_reconcile_error", "path", src.Path, "error", err)
	} else {
		o.withdraw(ctx, orphaned)
	}
	return nil
}

// purgeStale removes units that share the fingerprint but are not part of
// the current commit. An interrupted earlier attempt can leave them behind.
func (o *Orchestrator) purgeStale(ctx context.Context, fingerprint string, keep []string) {
	existing, err := o.deps.Store.UnitsForDocument(ctx, fingerprint)
	if err != nil {
		slog.Warn("index_stale_scan_error", "fingerprint", shortFP(fingerprint), "error", err)
		return
	}
	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}
	var stale []string
	for _, u := range existing {
		if _, ok := keepSet[u.ID]; !ok {
			stale = append(stale, u.ID)
		}
	}
	if len(stale) > 0 {
		slog.Debug("index_stale_purged", "fingerprint", shortFP(fingerprint), "count", len(stale))
		o.withdraw(ctx, stale)
	}
}

// registerUnits adds committed units to the lexical and vector indexes.
// Failures here degrade retrieval but never invalidate the commit; the
// next sync repairs the indexes from the store.
func (o *Orchestrator) registerUnits(ctx context.Context, build *docBuild, vectors [][]float32) {
	if len(build.units) == 0 {
		return
	}
	docs := make([]lexical.Doc, 0, len(build.units))
	for _, u := range build.units {
		docs = append(docs, lexical.Doc{ID: u.ID, Text: u.Text, Domain: u.Domain})
	}
	if err := o.deps.Lexical.Add(ctx, docs); err != nil {
		slog.Warn("index_lexical_add_error", "error", err)
	}
	if o.deps.Dense != nil && len(vectors) == len(build.ids) {
		if err := o.deps.Dense.Add(ctx, build.ids, vectors); err != nil {
			slog.Warn("index_dense_add_error", "error", err)
		}
	}
}

// withdraw removes unit IDs from the store and both retrieval indexes.
// Failures are logged and swallowed: withdrawal runs on cleanup paths
// where the registry state is already correct.
func (o *Orchestrator) withdraw(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := o.deps.Store.DeleteUnits(ctx, ids); err != nil {
		slog.Warn("index_withdraw_store_error", "count", len(ids), "error", err)
	}
	if err := o.deps.Lexical.Remove(ctx, ids); err != nil && !errors.Is(err, lexical.ErrNotBuilt) {
		slog.Warn("index_withdraw_lexical_error", "count", len(ids), "error", err)
	}
	if o.deps.Dense != nil {
		if err := o.deps.Dense.Remove(ctx, ids); err != nil {
			slog.Warn("index_withdraw_dense_error", "count", len(ids), "error", err)
		}
		o.removals.Add(int64(len(ids)))
	}
}

// restoreVectors embeds units in batches and adds them to the vector index.
func (o *Orchestrator) restoreVectors(ctx context.Context, units []store.Unit) error {
	if o.deps.Embedder == nil || o.deps.Dense == nil {
		return nil
	}
	for start := 0; start < len(units); start += o.cfg.EmbedBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+o.cfg.EmbedBatchSize, len(units))
		batch := units[start:end]
		texts := make([]string, 0, len(batch))
		ids := make([]string, 0, len(batch))
		for _, u := range batch {
			texts = append(texts, u.Text)
			ids = append(ids, u.ID)
		}
		vectors, err := o.deps.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if err := o.deps.Dense.Add(ctx, ids, vectors); err != nil {
			return err
		}
	}
	return nil
}

// maybeCompact rebuilds the vector graph once enough removals accumulate.
// Removed vectors linger in the graph as dead weight until compaction.
func (o *Orchestrator) maybeCompact() {
	if o.deps.Dense == nil || o.removals.Load() < denseCompactThreshold {
		return
	}
	if err := o.deps.Dense.Compact(); err != nil {
		slog.Warn("index_dense_compact_error", "error", err)
		return
	}
	o.removals.Store(0)
}

// saveSnapshots persists the derived indexes and checkpoints the store.
// Snapshot failures are logged, not fatal: both indexes rebuild from the
// store on the next sync.
func (o *Orchestrator) saveSnapshots() {
	if o.cfg.LexicalSnapshot != "" && o.deps.Lexical.IsBuilt() {
		if err := o.deps.Lexical.Save(o.cfg.LexicalSnapshot); err != nil {
			slog.Warn("index_lexical_snapshot_error", "path", o.cfg.LexicalSnapshot, "error", err)
		}
	}
	if o.deps.Dense != nil && o.cfg.VectorPath != "" {
		if err := o.deps.Dense.Save(o.cfg.VectorPath); err != nil {
			slog.Warn("index_vector_snapshot_error", "path", o.cfg.VectorPath, "error", err)
		}
	}
	if err := o.deps.Store.Checkpoint(); err != nil {
		slog.Warn("index_store_checkpoint_error", "error", err)
	}
}

// lockWriter takes the in-process mutex and the cross-process file lock.
func (o *Orchestrator) lockWriter() (*writerLock, error) {
	o.mu.Lock()
	lock, err := acquireWriterLock(o.cfg.DataDir)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	return lock, nil
}

func (o *Orchestrator) unlockWriter(lock *writerLock) {
	lock.release()
	o.mu.Unlock()
}

// emit forwards a progress event when a renderer is attached.
func (o *Orchestrator) emit(event ui.ProgressEvent) {
	if o.deps.Renderer != nil {
		o.deps.Renderer.UpdateProgress(event)
	}
}

// warn reports a per-document problem without failing the batch.
func (o *Orchestrator) warn(path string, err error) {
	args := append([]any{"path", path}, qerrors.LogFields(err)...)
	slog.Warn("index_document_failed", args...)
	if o.deps.Renderer != nil {
		o.deps.Renderer.AddError(ui.ErrorEvent{File: filepath.Base(path), Err: err, IsWarn: true})
	}
}

func (o *Orchestrator) completionStats(ctx context.Context, summary *BatchSummary) ui.CompletionStats {
	stats := ui.CompletionStats{
		Documents: summary.Indexed,
		Units:     summary.Units,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
		Duration:  summary.Duration,
	}
	if o.deps.Embedder != nil {
		info := embed.GetInfo(ctx, o.deps.Embedder)
		stats.Embedder = ui.EmbedderInfo{
			Provider:   string(info.Provider),
			Model:      info.Model,
			Dimensions: info.Dimensions,
		}
	}
	return stats
}

// topicTally rolls unit topics up to a document-level ranking. Ties keep
// first-seen order so rankings are stable across runs.
type topicTally struct {
	counts map[string]int
	order  []string
}

func newTopicTally() *topicTally {
	return &topicTally{counts: make(map[string]int)}
}

func (t *topicTally) add(topics []string) {
	for _, topic := range topics {
		if _, seen := t.counts[topic]; !seen {
			t.order = append(t.order, topic)
		}
		t.counts[topic]++
	}
}

func (t *topicTally) top(n int) []string {
	ranked := make([]string, len(t.order))
	copy(ranked, t.order)
	sort.SliceStable(ranked, func(a, b int) bool {
		return t.counts[ranked[a]] > t.counts[ranked[b]]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func topN(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

func shortFP(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
