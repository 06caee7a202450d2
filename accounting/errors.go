/*
errors.go - Centralized error types for the accounting engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The engine itself is total over well-formed inputs and never fails at
  runtime; these errors cover input validation at the edges and the
  conditions the store and API layers surface.

USAGE:
  Callers classify with errors.Is:

    if errors.Is(err, accounting.ErrDuplicateCharge) {
        // retried billing run hit the uniqueness backstop; not a failure
    }

SEE ALSO:
  - period.go: ParsePeriodToken returns ErrInvalidPeriodToken
  - store/sqlite: maps the RENT-charge unique index to ErrDuplicateCharge
*/
package accounting

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriodToken is returned when a billing period token is
	// not a canonical 6-digit "YYYYMM" string.
	ErrInvalidPeriodToken = errors.New("invalid period token")

	// ErrInvalidAmount is returned when a monetary input fails edge
	// validation (e.g. a non-positive rent amount on a lease).
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrDuplicateCharge is returned when persistence rejects a second
	// RENT charge for the same (lease, period). This is the uniqueness
	// backstop behind the generator's idempotency; hitting it on a
	// retried billing run is expected, not a failure.
	ErrDuplicateCharge = errors.New("duplicate rent charge for period")

	// ErrLeaseNotFound is returned when a referenced lease doesn't exist.
	ErrLeaseNotFound = errors.New("lease not found")

	// ErrChargeNotFound is returned when a referenced charge doesn't exist.
	ErrChargeNotFound = errors.New("charge not found")

	// ErrNotFound is the generic missing-record error for other entities.
	ErrNotFound = errors.New("record not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateChargeError identifies which lease and period collided.
type DuplicateChargeError struct {
	LeaseID      LeaseID
	PeriodYYYYMM string
}

func (e *DuplicateChargeError) Error() string {
	return fmt.Sprintf("rent charge already exists for lease %s period %s", e.LeaseID, e.PeriodYYYYMM)
}

func (e *DuplicateChargeError) Unwrap() error { return ErrDuplicateCharge }

// InvalidAmountError reports the offending value.
type InvalidAmountError struct {
	Field  string
	Amount Money
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount for %s: %s", e.Field, e.Amount)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriodToken) ||
		errors.Is(err, ErrInvalidAmount)
}

// IsConflict returns true if the error is a uniqueness collision.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateCharge)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLeaseNotFound) ||
		errors.Is(err, ErrChargeNotFound) ||
		errors.Is(err, ErrNotFound)
}
