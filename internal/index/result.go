package index

import "time"

// IndexingResult reports the outcome of indexing a single document.
type IndexingResult struct {
	// Path is the absolute document path.
	Path string
	// Fingerprint is the content hash of the document.
	Fingerprint string
	// Success is true when the document is indexed or was already current.
	Success bool
	// Skipped is true when the document was already indexed at this
	// fingerprint and no work was done.
	Skipped bool
	// UnitCount is the number of units produced by this run.
	UnitCount int
	// PageCount is the number of pages extracted from the document.
	PageCount int
	// Domain is the classified knowledge domain.
	Domain string
	// Topics are the document-level topic labels.
	Topics []string
	// Duration is the wall time spent on this document.
	Duration time.Duration
	// Err is the failure cause when Success is false.
	Err error
}

// BatchSummary aggregates the outcome of a batch indexing run.
type BatchSummary struct {
	// Scanned is the number of candidate documents discovered.
	Scanned int
	// Indexed is the number of documents indexed this run.
	Indexed int
	// Skipped is the number of documents already current.
	Skipped int
	// Failed is the number of documents that could not be indexed.
	Failed int
	// Units is the total number of units produced this run.
	Units int
	// Duration is the wall time for the whole batch.
	Duration time.Duration
	// Failures holds the per-document results for failed documents.
	Failures []IndexingResult
}
