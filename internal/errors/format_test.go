package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCLI_NilIsEmpty(t *testing.T) {
	assert.Equal(t, "", FormatCLI(nil))
}

func TestFormatCLI_PlainErrorIsOneLine(t *testing.T) {
	out := FormatCLI(errors.New("unknown command \"serach\""))

	assert.Equal(t, "Error: unknown command \"serach\"\n", out)
}

func TestFormatCLI_ClassifiedPrintsHintAndCode(t *testing.T) {
	err := New(ErrCodeBackendUnavailable, "no embedding service reachable", nil).
		WithSuggestion("start the embedding service or set embeddings.provider to static")

	out := FormatCLI(err)

	assert.Equal(t, "Error: no embedding service reachable\n"+
		"  Hint: start the embedding service or set embeddings.provider to static\n"+
		"  Code: ERR_302_BACKEND_UNAVAILABLE\n", out)
}

func TestFormatCLI_CausePrintsOnItsOwnLine(t *testing.T) {
	cause := errors.New("lexical_weight must be between 0 and 1, got 1.50")
	err := ConfigError("invalid configuration", cause)

	out := FormatCLI(err)

	assert.Contains(t, out, "Error: invalid configuration\n")
	assert.Contains(t, out, "  Cause: lexical_weight must be between 0 and 1, got 1.50\n")
	assert.Contains(t, out, "  Code: ERR_101_CONFIG_INVALID\n")
}

func TestFormatCLI_SkipsCauseWhenWrapAdoptedIt(t *testing.T) {
	err := Wrap(ErrCodeInternal, errors.New("store closed"))

	out := FormatCLI(err)

	assert.Equal(t, "Error: store closed\n  Code: ERR_501_INTERNAL\n", out)
}

func TestFormatCLI_FindsClassificationInsideChain(t *testing.T) {
	inner := ParseError("no document part in slides.pptx", nil)
	wrapped := fmt.Errorf("indexing: %w", inner)

	out := FormatCLI(wrapped)

	assert.Contains(t, out, "Error: no document part in slides.pptx\n")
	assert.Contains(t, out, "  Code: ERR_204_PARSE_FAILED\n")
}

func TestLogFields_NilIsNil(t *testing.T) {
	assert.Nil(t, LogFields(nil))
}

func TestLogFields_PlainErrorIsSinglePair(t *testing.T) {
	fields := LogFields(errors.New("boom"))

	assert.Equal(t, []any{"error", "boom"}, fields)
}

func TestLogFields_FullClassification(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := New(ErrCodeParseFailed, "failed to read report.pdf", cause).
		WithSuggestion("re-export the file").
		WithDetail("path", "docs/report.pdf").
		WithDetail("bytes", "0")

	fields := LogFields(err)

	// Details come last, in key order, under a detail_ prefix.
	assert.Equal(t, []any{
		"error_code", ErrCodeParseFailed,
		"error", "failed to read report.pdf",
		"category", "IO",
		"severity", "ERROR",
		"retryable", false,
		"cause", "unexpected EOF",
		"suggestion", "re-export the file",
		"detail_bytes", "0",
		"detail_path", "docs/report.pdf",
	}, fields)
}

func TestLogFields_PairsStayBalanced(t *testing.T) {
	err := BackendError("timeout", errors.New("deadline exceeded")).
		WithDetail("endpoint", "http://localhost:8080")

	fields := LogFields(err)

	require.NotEmpty(t, fields)
	assert.Zero(t, len(fields)%2)
}
