package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound signals a lookup miss from the durable store. A cache miss
// is never an error; this only applies to by-ID store lookups.
var ErrNotFound = errors.New("not found")

// ValidationError reports bad caller input (empty summary id, etc.).
// It surfaces immediately to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// ModelUnavailableError reports that the model endpoint could not be
// reached after the retry budget was exhausted.
type ModelUnavailableError struct {
	Attempts int
	Err      error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model unavailable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// StorageError wraps a durable-store failure. Best-effort side paths
// (recency bumps, derived analyses) log and swallow it; primary write
// paths surface it as a failed operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsMissingRelation reports whether err looks like SQLite's "no such
// table" condition. Optional analytics writes treat this as non-fatal
// and skip the write rather than failing the operation.
func IsMissingRelation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "no such table")
}
