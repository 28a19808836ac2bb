/*
errors.go - Centralized error types for the TOIL engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP status codes.

ERROR CATEGORIES:
  1. Ledger errors - Persistence and concurrency failures
  2. Validation errors - Business rule violations
  3. Lookup errors - Missing employees or requests

USAGE:
  Callers classify with errors.Is():

    if errors.Is(err, toil.ErrInsufficientBalance) {
        // reject the leave request, 422
    }

SEE ALSO:
  - ledger.go: Uses these errors
  - leave.go: Returns InsufficientBalanceError on redemption
  - api/handlers.go: Maps errors to HTTP responses
*/
package toil

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when an entry with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInvalidTimesheetState is returned when accrual is attempted for a
	// timesheet that is not in approved state.
	ErrInvalidTimesheetState = errors.New("timesheet not in approved state")

	// ErrInsufficientBalance is returned when a redemption exceeds the
	// available TOIL balance.
	ErrInsufficientBalance = errors.New("insufficient TOIL balance")

	// ErrLedgerWriteConflict is returned when a concurrent write prevented
	// the ledger append. Retryable.
	ErrLedgerWriteConflict = errors.New("ledger write conflict")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrRequestNotFound is returned when a referenced leave request doesn't exist.
	ErrRequestNotFound = errors.New("leave request not found")

	// ErrInvalidRequestState is returned when a leave request transition is
	// not allowed from its current status.
	ErrInvalidRequestState = errors.New("leave request not in a valid state for this action")

	// ErrInvalidPeriod is returned when a leave period is malformed or
	// contains no working days.
	ErrInvalidPeriod = errors.New("invalid leave period")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
// Amounts are in hours; Error() reports both hours and days because
// that is how employees reason about TOIL.
type InsufficientBalanceError struct {
	EmployeeID  EmployeeID
	Available   decimal.Decimal
	Requested   decimal.Decimal
	Shortfall   decimal.Decimal
	HoursPerDay decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	if e.Available.IsZero() {
		return "you have no TOIL balance available: TOIL is earned through approved overtime hours"
	}
	return fmt.Sprintf("insufficient TOIL balance: you have %s hours (%s days) available, but are requesting %s hours (%s days)",
		e.Available, e.days(e.Available), e.Requested, e.days(e.Requested))
}

func (e *InsufficientBalanceError) days(hours decimal.Decimal) decimal.Decimal {
	perDay := e.HoursPerDay
	if perDay.IsZero() {
		perDay = decimal.NewFromFloat(DefaultHoursPerDay)
	}
	return hours.Div(perDay).Round(2)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// InvalidTimesheetStateError reports an accrual attempt on a timesheet
// that has not been approved.
type InvalidTimesheetStateError struct {
	TimesheetID string
	Status      TimesheetStatus
}

func (e *InvalidTimesheetStateError) Error() string {
	return fmt.Sprintf("timesheet %s is %s, only approved timesheets accrue TOIL", e.TimesheetID, e.Status)
}

func (e *InvalidTimesheetStateError) Unwrap() error {
	return ErrInvalidTimesheetState
}

// InvalidRequestStateError reports a leave request transition attempted
// from the wrong status.
type InvalidRequestStateError struct {
	RequestID string
	Status    RequestStatus
	Action    string
}

func (e *InvalidRequestStateError) Error() string {
	return fmt.Sprintf("cannot %s leave request %s in status %s", e.Action, e.RequestID, e.Status)
}

func (e *InvalidRequestStateError) Unwrap() error {
	return ErrInvalidRequestState
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLedgerWriteConflict)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidTimesheetState) ||
		errors.Is(err, ErrInvalidRequestState) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrRequestNotFound)
}
