// Package errors carries classified failures across the indexing and
// search pipeline, together with the retry and circuit breaker machinery
// that acts on those classifications.
//
// Every QuarryError holds a stable ERR_NNN_NAME code. The first digit of
// NNN picks the category (1 config, 2 io, 3 backend, 4 validation, 5
// internal); severity and retryability are lookups on the full code. The
// classification lives here next to the codes, not at the call sites.
package errors

// Category groups codes by subsystem.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryBackend    Category = "BACKEND"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity tells the caller how to react.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"   // stop the run
	SeverityError   Severity = "ERROR"   // fail the operation, continue the run
	SeverityWarning Severity = "WARNING" // degraded, keep going
)

// Error codes. Each is produced by at least one call site; add codes in
// the numeric range of their category.
const (
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"
	ErrCodeChunkBounds   = "ERR_102_CHUNK_BOUNDS"

	ErrCodeFileNotFound    = "ERR_201_FILE_NOT_FOUND"
	ErrCodeCorruptIndex    = "ERR_202_CORRUPT_INDEX"
	ErrCodeCorruptRegistry = "ERR_203_CORRUPT_REGISTRY"
	ErrCodeParseFailed     = "ERR_204_PARSE_FAILED"

	ErrCodeBackendTimeout     = "ERR_301_BACKEND_TIMEOUT"
	ErrCodeBackendUnavailable = "ERR_302_BACKEND_UNAVAILABLE"

	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"

	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryByDigit is keyed by the first digit of a code's number.
var categoryByDigit = map[byte]Category{
	'1': CategoryConfig,
	'2': CategoryIO,
	'3': CategoryBackend,
	'4': CategoryValidation,
}

// categoryFromCode maps the code's leading digit to its category. A
// malformed code counts as internal.
func categoryFromCode(code string) Category {
	if len(code) < 5 || code[:4] != "ERR_" {
		return CategoryInternal
	}
	if cat, ok := categoryByDigit[code[4]]; ok {
		return cat
	}
	return CategoryInternal
}

// severityFromCode ranks a code. Corrupt persisted state and rejected
// configuration stop the run before it starts; retryable backend trouble
// is only a degradation; everything else fails its own operation and
// lets the run continue.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeCorruptRegistry,
		ErrCodeConfigInvalid, ErrCodeChunkBounds:
		return SeverityFatal
	}
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode reports whether an operation failing under this code
// may succeed on a later attempt.
func isRetryableCode(code string) bool {
	return code == ErrCodeBackendTimeout || code == ErrCodeBackendUnavailable
}
