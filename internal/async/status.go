// Package async runs indexing work in the background and tracks its
// progress. The tracker snapshot is persisted as a JSON status file in the
// data directory so that `quarry status` in another process can report on
// a run that is still going.
package async

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Status is the overall state of an indexing run.
type Status string

const (
	// StatusIndexing means a run is in progress.
	StatusIndexing Status = "indexing"
	// StatusReady means the last run completed and search is current.
	StatusReady Status = "ready"
	// StatusError means the last run failed.
	StatusError Status = "error"
)

// Stage is the pipeline phase an indexing run is currently in.
type Stage string

const (
	StageScanning  Stage = "scanning"
	StageParsing   Stage = "parsing"
	StageChunking  Stage = "chunking"
	StageEmbedding Stage = "embedding"
	StageIndexing  Stage = "indexing"
)

// ProgressSnapshot is an immutable view of indexing progress, also the
// wire form of the persisted status file.
type ProgressSnapshot struct {
	Status             string    `json:"status"`
	Stage              string    `json:"stage"`
	DocumentsTotal     int       `json:"documents_total"`
	DocumentsProcessed int       `json:"documents_processed"`
	UnitsIndexed       int       `json:"units_indexed"`
	ProgressPct        float64   `json:"progress_pct"`
	ElapsedSeconds     int       `json:"elapsed_seconds"`
	StartedAt          time.Time `json:"started_at"`
	ErrorMessage       string    `json:"error_message,omitempty"`
}

// Progress tracks an indexing run. All methods are safe for concurrent
// use; the orchestrator's workers update it while a flush loop reads it.
type Progress struct {
	mu sync.RWMutex

	status             Status
	stage              Stage
	documentsTotal     int
	documentsProcessed int
	unitsIndexed       int
	startTime          time.Time
	errorMessage       string
}

// NewProgress creates a tracker initialized to the scanning stage.
func NewProgress() *Progress {
	return &Progress{status: StatusIndexing, stage: StageScanning, startTime: time.Now()}
}

// SetStage moves the run to a new stage. The document total carries the
// count the stage operates over and is usually set once during scanning.
func (p *Progress) SetStage(stage Stage, totalDocs int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
	p.documentsTotal = totalDocs
}

// UpdateDocuments records how many documents have finished the pipeline.
func (p *Progress) UpdateDocuments(processed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.documentsProcessed = processed
}

// AddUnits adds freshly indexed units to the running total.
func (p *Progress) AddUnits(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unitsIndexed += n
}

// SetError marks the run as failed.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusError
	p.errorMessage = message
}

// SetReady marks the run as complete.
func (p *Progress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusReady
}

// IsIndexing reports whether the run is still in progress.
func (p *Progress) IsIndexing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status == StatusIndexing
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.documentsTotal > 0 {
		pct = float64(p.documentsProcessed) / float64(p.documentsTotal) * 100.0
	}

	return ProgressSnapshot{
		Status:             string(p.status),
		Stage:              string(p.stage),
		DocumentsTotal:     p.documentsTotal,
		DocumentsProcessed: p.documentsProcessed,
		UnitsIndexed:       p.unitsIndexed,
		ProgressPct:        pct,
		ElapsedSeconds:     int(time.Since(p.startTime).Seconds()),
		StartedAt:          p.startTime,
		ErrorMessage:       p.errorMessage,
	}
}

const statusFileName = "status.json"

// WriteStatusFile atomically replaces the status file in dataDir with the
// given snapshot.
func WriteStatusFile(dataDir string, snap ProgressSnapshot) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	path := filepath.Join(dataDir, statusFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace status: %w", err)
	}
	return nil
}

// ReadStatusFile loads the last persisted snapshot from dataDir. ok is
// false when no run has ever written one.
func ReadStatusFile(dataDir string) (snap ProgressSnapshot, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(dataDir, statusFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return ProgressSnapshot{}, false, nil
	}
	if err != nil {
		return ProgressSnapshot{}, false, fmt.Errorf("read status: %w", err)
	}

	if err := json.Unmarshal(data, &snap); err != nil {
		return ProgressSnapshot{}, false, fmt.Errorf("decode status: %w", err)
	}
	return snap, true, nil
}
