/*
errors.go - Centralized error types for the rent engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (HTTP layer) map these to status codes.

ERROR CATEGORIES:
  1. Validation errors - rejected before persistence
  2. Not-found / deleted - operating on a missing or soft-deleted event
  3. Period errors - year/month outside the sane range
  4. Storage errors - persistence failures, surfaced with partial progress

USAGE:
  if errors.Is(err, rent.ErrNotFound) { ... }

  var recalcErr *rent.RecalcError
  if errors.As(err, &recalcErr) {
      report(recalcErr.PeriodsUpdated)
  }
*/
package rent

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when operating on a nonexistent event id.
	ErrNotFound = errors.New("event not found")

	// ErrEventDeleted is returned when editing a soft-deleted event.
	// Undelete it first.
	ErrEventDeleted = errors.New("event is deleted")

	// ErrInvalidPeriod is returned when a year/month is out of range.
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrStorage wraps persistence-layer failures.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a missing or malformed input field. These are
// rejected at the mutation boundary, before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RecalcError reports a recalculation that failed partway. Periods written
// before the failure stay written (the operation is idempotent, so a re-run
// self-heals); PeriodsUpdated tells the caller how far it got.
type RecalcError struct {
	PeriodsUpdated int
	Failed         PeriodKey
	Err            error
}

func (e *RecalcError) Error() string {
	return fmt.Sprintf("recalculation failed at %s after %d periods: %v",
		e.Failed, e.PeriodsUpdated, e.Err)
}

func (e *RecalcError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrEventDeleted)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
