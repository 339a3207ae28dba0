/*
errors.go - Centralized error types for the budget ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Storage failures are wrapped with %w and propagated unchanged; only
  input problems are modelled here.

ERROR CATEGORIES:
  1. Validation errors - Rejected expense input (state left unchanged)
  2. Lookup errors - Missing optional records surfaced at the API edge
  3. Format errors - Malformed period identifiers

SEE ALSO:
  - ledger.go: Returns these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the parent of every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPeriod is returned when a period identifier is not "YYYY-MM".
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrUserNotFound is returned when no display-name record exists.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoQuest is returned when accepting a quest that was never generated.
	ErrNoQuest = errors.New("no savings quest available")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrNoQuest)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
