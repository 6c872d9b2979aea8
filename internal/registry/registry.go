// Package registry tracks every source document's content fingerprint and
// indexing lifecycle. It is the only authority on whether a document needs
// (re)processing. Records are keyed by content hash, not path, so a renamed
// file is recognized as already indexed and an edited file as a new document.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Status is the indexing lifecycle state of a document.
type Status string

const (
	StatusPending Status = "pending"
	StatusIndexed Status = "indexed"
	StatusFailed  Status = "failed"
	StatusDeleted Status = "deleted"
)

// ErrConflict is returned when a commit carries a stale revision, meaning
// another writer won the race for this fingerprint. Callers re-check
// NeedsUpdate with fresh state and retry once before giving up on the
// document.
var ErrConflict = errors.New("registry: revision conflict")

// Record is the durable state of one document.
type Record struct {
	Fingerprint string     `json:"fingerprint"`
	DisplayName string     `json:"display_name"`
	Path        string     `json:"path"`
	Status      Status     `json:"status"`
	IndexedAt   *time.Time `json:"indexed_at,omitempty"`
	SizeBytes   int64      `json:"size_bytes"`
	PageCount   int        `json:"page_count,omitempty"`
	UnitIDs     []string   `json:"unit_ids,omitempty"`
	Domain      string     `json:"domain,omitempty"`
	Topics      []string   `json:"topics,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Revision    int        `json:"revision"`
}

// UnitCount returns the number of retrieval units produced from this document.
func (rec *Record) UnitCount() int {
	return len(rec.UnitIDs)
}

func (rec *Record) clone() *Record {
	c := *rec
	if rec.IndexedAt != nil {
		t := *rec.IndexedAt
		c.IndexedAt = &t
	}
	c.UnitIDs = append([]string(nil), rec.UnitIDs...)
	c.Topics = append([]string(nil), rec.Topics...)
	return &c
}

// Stats summarizes the registry contents.
type Stats struct {
	TotalDocuments int
	TotalUnits     int
	Indexed        int
	Pending        int
	Failed         int
	Deleted        int
}

// Registry is the process-wide store of document records. All operations are
// safe for concurrent use; every mutation persists the snapshot before
// returning.
type Registry struct {
	mu   sync.RWMutex
	path string
	snap *snapshotFile
}

// New loads the registry snapshot at path, or starts empty when the file does
// not exist. A snapshot that exists but cannot be parsed is fatal: the caller
// must not index over possibly inconsistent state, and recovery requires an
// explicit rebuild.
func New(path string) (*Registry, error) {
	snap, err := loadSnapshot(path)
	if err != nil {
		return nil, err
	}
	return &Registry{path: path, snap: snap}, nil
}

// Path returns the snapshot location.
func (r *Registry) Path() string {
	return r.path
}

// Get returns a copy of the record for a fingerprint.
func (r *Registry) Get(fingerprint string) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.snap.Documents[fingerprint]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// All returns copies of every record, ordered by path for stable output.
func (r *Registry) All() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make([]*Record, 0, len(r.snap.Documents))
	for _, rec := range r.snap.Documents {
		records = append(records, rec.clone())
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records
}

// IsIndexed reports whether this exact content has already been indexed.
func (r *Registry) IsIndexed(src Source) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.snap.Documents[src.Fingerprint]
	return ok && rec.Status == StatusIndexed
}

// NeedsUpdate reports whether the source must be (re)processed: true when no
// record exists for its fingerprint, or the previous attempt is pending or
// failed, or the record was marked deleted and the file is back on disk.
func (r *Registry) NeedsUpdate(src Source) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.needsUpdateLocked(src)
}

func (r *Registry) needsUpdateLocked(src Source) bool {
	rec, ok := r.snap.Documents[src.Fingerprint]
	if !ok {
		return true
	}
	switch rec.Status {
	case StatusPending, StatusFailed, StatusDeleted:
		return true
	}
	return false
}

// ListPending filters sources down to those that need processing.
func (r *Registry) ListPending(sources []Source) []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pending := make([]Source, 0, len(sources))
	for _, src := range sources {
		if r.needsUpdateLocked(src) {
			pending = append(pending, src)
		}
	}
	return pending
}

// RegisterPending claims a source for processing: it writes a fresh pending
// record and returns it. The record's Revision is the token later commits
// must present. Claiming resets any previous record for the fingerprint.
func (r *Registry) RegisterPending(src Source) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := &Record{
		Fingerprint: src.Fingerprint,
		DisplayName: filepath.Base(src.Path),
		Path:        src.Path,
		Status:      StatusPending,
		SizeBytes:   src.SizeBytes,
		Revision:    r.revisionLocked(src.Fingerprint) + 1,
	}
	r.snap.Documents[src.Fingerprint] = rec
	if err := r.saveLocked(); err != nil {
		return nil, err
	}
	return rec.clone(), nil
}

// RegisterIndexed commits a successful indexing run. expectedRevision must
// match the record's current revision (the value RegisterPending returned);
// a mismatch means another writer reached this fingerprint first and the
// commit is rejected with ErrConflict. The registry snapshot is written only
// here, after the caller has already persisted the units, so a crash in
// between leaves the document pending, never falsely indexed.
func (r *Registry) RegisterIndexed(src Source, unitIDs []string, pageCount int, domain string, topics []string, expectedRevision int) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur := r.revisionLocked(src.Fingerprint); cur != expectedRevision {
		return nil, fmt.Errorf("%w: fingerprint %s at revision %d, expected %d", ErrConflict, shortFingerprint(src.Fingerprint), cur, expectedRevision)
	}

	now := time.Now()
	rec := &Record{
		Fingerprint: src.Fingerprint,
		DisplayName: filepath.Base(src.Path),
		Path:        src.Path,
		Status:      StatusIndexed,
		IndexedAt:   &now,
		SizeBytes:   src.SizeBytes,
		PageCount:   pageCount,
		UnitIDs:     append([]string(nil), unitIDs...),
		Domain:      domain,
		Topics:      append([]string(nil), topics...),
		Revision:    expectedRevision + 1,
	}
	r.snap.Documents[src.Fingerprint] = rec
	if err := r.saveLocked(); err != nil {
		return nil, err
	}
	return rec.clone(), nil
}

// RegisterFailed records a failed processing attempt so the document is
// retried on the next run. The same revision check as RegisterIndexed
// applies.
func (r *Registry) RegisterFailed(src Source, cause error, expectedRevision int) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur := r.revisionLocked(src.Fingerprint); cur != expectedRevision {
		return nil, fmt.Errorf("%w: fingerprint %s at revision %d, expected %d", ErrConflict, shortFingerprint(src.Fingerprint), cur, expectedRevision)
	}

	rec := &Record{
		Fingerprint: src.Fingerprint,
		DisplayName: filepath.Base(src.Path),
		Path:        src.Path,
		Status:      StatusFailed,
		SizeBytes:   src.SizeBytes,
		LastError:   cause.Error(),
		Revision:    expectedRevision + 1,
	}
	r.snap.Documents[src.Fingerprint] = rec
	if err := r.saveLocked(); err != nil {
		return nil, err
	}
	return rec.clone(), nil
}

// Remove drops a record entirely and returns the unit IDs the caller must
// purge from the unit store and search indexes. The boolean reports whether
// the fingerprint was known.
func (r *Registry) Remove(fingerprint string) ([]string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.snap.Documents[fingerprint]
	if !ok {
		return nil, false, nil
	}
	delete(r.snap.Documents, fingerprint)
	if err := r.saveLocked(); err != nil {
		return nil, true, err
	}
	return append([]string(nil), rec.UnitIDs...), true, nil
}

// RemoveByPath drops every record whose path matches and returns their unit
// IDs. Used when a watcher reports a deletion: the file is gone, so its
// content can no longer be fingerprinted.
func (r *Registry) RemoveByPath(path string) ([]string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var unitIDs []string
	found := false
	for fp, rec := range r.snap.Documents {
		if rec.Path != path {
			continue
		}
		found = true
		unitIDs = append(unitIDs, rec.UnitIDs...)
		delete(r.snap.Documents, fp)
	}
	if !found {
		return nil, false, nil
	}
	if err := r.saveLocked(); err != nil {
		return nil, true, err
	}
	return unitIDs, true, nil
}

// ReconcilePath drops records that share a path with keepFingerprint but
// carry a different fingerprint. These are superseded versions of an edited
// document; their units must be purged by the caller. Returns the orphaned
// unit IDs.
func (r *Registry) ReconcilePath(path, keepFingerprint string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var orphaned []string
	changed := false
	for fp, rec := range r.snap.Documents {
		if rec.Path != path || fp == keepFingerprint {
			continue
		}
		orphaned = append(orphaned, rec.UnitIDs...)
		delete(r.snap.Documents, fp)
		changed = true
	}
	if !changed {
		return nil, nil
	}
	if err := r.saveLocked(); err != nil {
		return nil, err
	}
	return orphaned, nil
}

// CleanupMissing marks records whose backing file no longer exists as
// deleted and returns copies of the newly deleted records so the caller can
// purge their units.
func (r *Registry) CleanupMissing() ([]*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*Record
	for _, rec := range r.snap.Documents {
		if rec.Status == StatusDeleted {
			continue
		}
		if _, err := os.Stat(rec.Path); os.IsNotExist(err) {
			rec.Status = StatusDeleted
			rec.Revision++
			removed = append(removed, rec.clone())
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	if err := r.saveLocked(); err != nil {
		return nil, err
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Path < removed[j].Path })
	return removed, nil
}

// Stats computes registry totals. Unit counts cover indexed documents only.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{TotalDocuments: len(r.snap.Documents)}
	for _, rec := range r.snap.Documents {
		switch rec.Status {
		case StatusIndexed:
			stats.Indexed++
			stats.TotalUnits += len(rec.UnitIDs)
		case StatusPending:
			stats.Pending++
		case StatusFailed:
			stats.Failed++
		case StatusDeleted:
			stats.Deleted++
		}
	}
	return stats
}

// DocumentsByDomain returns copies of the indexed records in one domain,
// ordered by path.
func (r *Registry) DocumentsByDomain(domain string) []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []*Record
	for _, rec := range r.snap.Documents {
		if rec.Status == StatusIndexed && rec.Domain == domain {
			records = append(records, rec.clone())
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records
}

// revisionLocked returns the current revision for a fingerprint, 0 when no
// record exists.
func (r *Registry) revisionLocked(fingerprint string) int {
	if rec, ok := r.snap.Documents[fingerprint]; ok {
		return rec.Revision
	}
	return 0
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
