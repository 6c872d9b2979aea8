package errors

import (
	"errors"
	"fmt"
)

// QuarryError is a failure with a stable code. Category, severity, and
// the retryable flag all derive from the code, so call sites pick a code
// and the classification follows.
type QuarryError struct {
	Code       string            // stable identifier, e.g. "ERR_204_PARSE_FAILED"
	Message    string            // human-readable description
	Category   Category          // derived from the code's numeric range
	Severity   Severity          // derived from the code
	Retryable  bool              // derived from the code
	Cause      error             // wrapped error, nil for root failures
	Details    map[string]string // optional context, flattened into logs
	Suggestion string            // optional remediation shown to the user
}

// New builds a QuarryError for code, deriving its classification. The
// cause may be nil.
func New(code, message string, cause error) *QuarryError {
	return &QuarryError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Retryable: isRetryableCode(code),
		Cause:     cause,
	}
}

// Wrap classifies an existing error under code, reusing its text as the
// message. Wrapping nil returns nil.
func Wrap(code string, err error) *QuarryError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

func (e *QuarryError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		// Skip the cause when Wrap already adopted its text as the message.
		if cause := e.Cause.Error(); cause != msg {
			msg = msg + ": " + cause
		}
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

func (e *QuarryError) Unwrap() error {
	return e.Cause
}

// Is matches QuarryErrors by code alone, so errors.Is works against a
// template built with New regardless of message.
func (e *QuarryError) Is(target error) bool {
	t, ok := target.(*QuarryError)
	return ok && e.Code == t.Code
}

// WithDetail attaches one key-value pair of context and returns e.
func (e *QuarryError) WithDetail(key, value string) *QuarryError {
	if e.Details == nil {
		e.Details = make(map[string]string, 1)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets the remediation hint and returns e.
func (e *QuarryError) WithSuggestion(s string) *QuarryError {
	e.Suggestion = s
	return e
}

// Constructors for the common cases. Each applies the canonical code of
// its category; call New directly when a more specific code fits.

// ConfigError reports unusable configuration. Fatal: nothing runs on a
// config that failed validation.
func ConfigError(message string, cause error) *QuarryError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError reports a file or snapshot access failure.
func IOError(message string, cause error) *QuarryError {
	return New(ErrCodeFileNotFound, message, cause)
}

// BackendError reports a remote backend failure, retryable by default.
func BackendError(message string, cause error) *QuarryError {
	return New(ErrCodeBackendTimeout, message, cause)
}

// ParseError reports a failure extracting text from one document. It
// fails that document only, never the batch.
func ParseError(message string, cause error) *QuarryError {
	return New(ErrCodeParseFailed, message, cause)
}

// ValidationError reports rejected input.
func ValidationError(message string, cause error) *QuarryError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError reports a bug or an unclassified failure.
func InternalError(message string, cause error) *QuarryError {
	return New(ErrCodeInternal, message, cause)
}

// classified finds the first QuarryError in err's chain.
func classified(err error) (*QuarryError, bool) {
	var qe *QuarryError
	ok := errors.As(err, &qe)
	return qe, ok
}

// IsRetryable reports whether err carries a retryable classification
// anywhere in its chain. Unclassified errors are not retryable.
func IsRetryable(err error) bool {
	qe, ok := classified(err)
	return ok && qe.Retryable
}

// IsFatal reports whether err carries a fatal classification anywhere in
// its chain. Fatal errors abort the run instead of failing one document.
func IsFatal(err error) bool {
	qe, ok := classified(err)
	return ok && qe.Severity == SeverityFatal
}

// GetCode returns err's error code, or "" for unclassified errors.
func GetCode(err error) string {
	if qe, ok := classified(err); ok {
		return qe.Code
	}
	return ""
}

// GetCategory returns err's category, or "" for unclassified errors.
func GetCategory(err error) Category {
	if qe, ok := classified(err); ok {
		return qe.Category
	}
	return ""
}
