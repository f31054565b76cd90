/*
errors.go - Error taxonomy for the ledger engine

ERROR CATEGORIES:
  1. Validation    - malformed input, surfaced verbatim (400)
  2. Past start    - financial edit after the plan started (422)
  3. Not found     - unknown plan / participant / payment id (404)
  4. Conflict      - stale ExpectedVersion on update (409)
  5. Persistence   - store or transaction failure (500)

No error is retried by the engine. Every failure ends the request that
triggered it; the store transaction rolls back whatever was written.

USAGE:
  if errors.Is(err, pardna.ErrPastStartDate) { ... }

  var nf *pardna.NotFoundError
  if errors.As(err, &nf) { log.Printf("missing %s %s", nf.Kind, nf.ID) }
*/
package pardna

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation    = errors.New("validation failed")
	ErrPastStartDate = errors.New("plan start date has passed")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("plan was modified concurrently")
	ErrPersistence   = errors.New("persistence failure")

	// ErrBoundaryUnavailable means the interval enumeration produced fewer
	// boundaries than the plan has periods. This is a defect, not user error.
	ErrBoundaryUnavailable = errors.New("period boundary unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError lists every problem found in a request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validation builds a ValidationError from a single message.
func Validation(format string, args ...any) *ValidationError {
	return &ValidationError{Problems: []string{fmt.Sprintf(format, args...)}}
}

// PastStartDateError is returned for a financially impacting change to a
// plan that has already started.
type PastStartDateError struct {
	PlanID    PlanID
	StartDate time.Time
	Fields    []string
}

func (e *PastStartDateError) Error() string {
	return fmt.Sprintf("cannot change %s on plan %s: start date %s has passed",
		strings.Join(e.Fields, ", "), e.PlanID, e.StartDate.Format("2006-01-02"))
}

func (e *PastStartDateError) Unwrap() error { return ErrPastStartDate }

// NotFoundError names the kind of record that is missing.
type NotFoundError struct {
	Kind string // "plan", "participant", "payment", "ledger"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError is returned when ExpectedVersion no longer matches.
type ConflictError struct {
	PlanID   PlanID
	Expected int
	Actual   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("plan %s is at version %d, expected %d", e.PlanID, e.Actual, e.Expected)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// PersistenceError wraps a store failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the cause.
func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPastStartDate) ||
		errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// persistence wraps store errors, passing engine errors through untouched.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClientError(err) || IsNotFound(err) || errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrBoundaryUnavailable) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
