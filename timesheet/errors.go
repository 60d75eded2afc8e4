/*
errors.go - Error taxonomy of the engine

ERROR CATEGORIES:
  1. Validation - Missing field, invalid time range, out-of-range input.
     Always raised before any write.
  2. Conflict - Duplicate entry per day, disallowed status transition,
     edit of a released entry.
  3. NotFound - Entry ids (or users) absent in a lookup or batch.

USAGE:
  Callers branch with errors.Is on the sentinels:

    if errors.Is(err, timesheet.ErrConflict) {
        // 409
    }

  or extract details with errors.As on the structured types.

SEE ALSO:
  - api/handlers.go: Maps categories to HTTP status codes
  - store/sqlite/sqlite.go: Maps UNIQUE violations to ErrDuplicateEntry
*/
package timesheet

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")

	// ErrDuplicateEntry is returned by stores when a second entry for the
	// same (user, work date) is written. It matches ErrConflict as well.
	ErrDuplicateEntry = &ConflictError{Reason: "an entry already exists for this user and day"}
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes rejected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError describes a request that contradicts the current state.
type ConflictError struct {
	Reason   string
	EntryIDs []EntryID
}

func (e *ConflictError) Error() string {
	if len(e.EntryIDs) == 0 {
		return "conflict: " + e.Reason
	}
	return fmt.Sprintf("conflict: %s (entries: %s)", e.Reason, joinIDs(e.EntryIDs))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Is makes every store-level duplicate comparable to ErrDuplicateEntry.
func (e *ConflictError) Is(target error) bool {
	return target == ErrDuplicateEntry && e.Reason == ErrDuplicateEntry.Reason
}

// NotFoundError lists the ids that could not be loaded.
type NotFoundError struct {
	Kind string
	IDs  []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, strings.Join(e.IDs, ", "))
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool   { return errors.Is(err, ErrConflict) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }

func validationErr(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func entryNotFound(ids ...EntryID) *NotFoundError {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return &NotFoundError{Kind: "time entry", IDs: out}
}

func joinIDs(ids []EntryID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
