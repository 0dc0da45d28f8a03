package store

import "fmt"

// SchemaError is fatal: the backend rejected constraint/index creation for
// a non-idempotent reason (spec.md §4.2, §7).
type SchemaError struct{ Err error }

func (e *SchemaError) Error() string { return fmt.Sprintf("schema error: %v", e.Err) }
func (e *SchemaError) Unwrap() error { return e.Err }

// WriteError is per-batch and recoverable: transient I/O retried with
// backoff; if all retries fail the batch's diagnostics are surfaced and
// the pipeline continues with the next batch (spec.md §4.2, §7).
type WriteError struct {
	Attempts int
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write error after %d attempts: %v", e.Attempts, e.Err)
}
func (e *WriteError) Unwrap() error { return e.Err }

// QueryError wraps a failed read-only query (spec.md §4.2, §7).
type QueryError struct{ Err error }

func (e *QueryError) Error() string { return fmt.Sprintf("query error: %v", e.Err) }
func (e *QueryError) Unwrap() error { return e.Err }
