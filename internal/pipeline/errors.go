package pipeline

import "fmt"

// ValidationError reports bad or missing input: a malformed file, an unknown
// format, a missing column or a bad row value. It is user-correctable and
// never retried automatically.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// UpstreamError reports a failed or timed-out call to an external service
// (the completion model or the aggregation provider). Timeout distinguishes
// retryable timeouts from other upstream failures.
type UpstreamError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: upstream call timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: upstream call failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// CategorizationError means the model replied but the response could not be
// repaired into valid JSON. RawText carries the offending payload for
// diagnostics. Categorization is best-effort: this never blocks an import
// that already succeeded.
type CategorizationError struct {
	RawText string
	Err     error
}

func (e *CategorizationError) Error() string {
	return fmt.Sprintf("model returned invalid JSON: %v (text: %s)", e.Err, e.RawText)
}

func (e *CategorizationError) Unwrap() error { return e.Err }
