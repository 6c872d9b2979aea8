package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FormatCLI renders err for terminal output. A classified error prints
// its message, its cause, the remediation hint when one is set, and the
// code for reference. Anything else prints as a single Error line.
func FormatCLI(err error) string {
	if err == nil {
		return ""
	}
	var qe *QuarryError
	if !errors.As(err, &qe) {
		return fmt.Sprintf("Error: %s\n", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", qe.Message)
	if qe.Cause != nil && qe.Cause.Error() != qe.Message {
		fmt.Fprintf(&sb, "  Cause: %s\n", qe.Cause)
	}
	if qe.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", qe.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", qe.Code)
	return sb.String()
}

// LogFields flattens err into alternating key-value pairs for slog. A
// classified error contributes its code, message, category, severity,
// and retryability, the cause and suggestion when present, and each
// detail under a detail_ prefix in key order. Anything else contributes
// a single error field.
func LogFields(err error) []any {
	if err == nil {
		return nil
	}
	var qe *QuarryError
	if !errors.As(err, &qe) {
		return []any{"error", err.Error()}
	}

	fields := []any{
		"error_code", qe.Code,
		"error", qe.Message,
		"category", string(qe.Category),
		"severity", string(qe.Severity),
		"retryable", qe.Retryable,
	}
	if qe.Cause != nil {
		fields = append(fields, "cause", qe.Cause.Error())
	}
	if qe.Suggestion != "" {
		fields = append(fields, "suggestion", qe.Suggestion)
	}
	if len(qe.Details) > 0 {
		keys := make([]string, 0, len(qe.Details))
		for k := range qe.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = append(fields, "detail_"+k, qe.Details[k])
		}
	}
	return fields
}
