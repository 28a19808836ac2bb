/*
accrual.go - Overtime to TOIL conversion

PURPOSE:
  Turns an approved timesheet into a TOIL accrual. Hours worked beyond
  the contracted week accrue one-for-one; each accrual carries a fixed
  expiry date six months out.

RULES:
  - Only approved timesheets accrue. Draft, submitted, and rejected
    timesheets are rejected with ErrInvalidTimesheetState.
  - accrued = max(0, workedHours - standardWeekHours). A 37.5 hour or
    shorter week accrues nothing and writes no entry.
  - The idempotency key is derived from the timesheet ID, so approving
    the same timesheet twice records TOIL exactly once.

SEE ALSO:
  - ledger.go: Write path
  - sweep.go: Forfeits accruals past their expiry date
*/
package toil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCRUAL ENGINE
// =============================================================================

type AccrualEngine struct {
	Ledger            *Ledger
	StandardWeekHours decimal.Decimal
	ExpiryMonths      int

	// Now is overridable for tests.
	Now func() time.Time
}

func NewAccrualEngine(ledger *Ledger) *AccrualEngine {
	return &AccrualEngine{
		Ledger:            ledger,
		StandardWeekHours: decimal.NewFromFloat(DefaultStandardWeekHours),
		ExpiryMonths:      DefaultExpiryMonths,
		Now:               time.Now,
	}
}

// AccrualResult reports what an approval produced. Accrued is false
// when the week had no overtime or the timesheet was already processed.
type AccrualResult struct {
	Accrued bool
	Entry   *Entry
}

// HoursAccrued returns the accrued hours, zero when nothing accrued.
func (r *AccrualResult) HoursAccrued() decimal.Decimal {
	if r.Entry == nil {
		return decimal.Zero
	}
	return r.Entry.Hours.Value
}

// Accrue records the overtime from an approved timesheet as a TOIL
// accrual. Re-processing the same timesheet is a no-op, not an error.
func (e *AccrualEngine) Accrue(ctx context.Context, approval TimesheetApproval) (*AccrualResult, error) {
	if approval.Status != TimesheetApproved {
		return nil, &InvalidTimesheetStateError{
			TimesheetID: approval.TimesheetID,
			Status:      approval.Status,
		}
	}

	worked := decimal.NewFromFloat(approval.WorkedHours)
	overtime := worked.Sub(e.StandardWeekHours)
	if !overtime.IsPositive() {
		// Nothing earned: no entry, zero-hour records would only
		// pollute the ledger.
		return &AccrualResult{Accrued: false}, nil
	}

	approvedAt := approval.ApprovedAt
	if approvedAt.IsZero() {
		approvedAt = e.Now()
	}
	accrualDate := DateOnly(approvedAt)

	entry := Entry{
		ID:              EntryID(uuid.NewString()),
		EmployeeID:      approval.EmployeeID,
		Kind:            KindAccrual,
		Hours:           Amount{Value: overtime, Unit: UnitHours},
		SourceReference: approval.TimesheetID,
		AccrualDate:     accrualDate,
		ExpiryDate:      ExpiryDateFor(accrualDate, e.ExpiryMonths),
		Reason:          fmt.Sprintf("overtime beyond %s contracted hours", e.StandardWeekHours),
		IdempotencyKey:  AccrualKey(approval.TimesheetID),
		CreatedAt:       approvedAt,
	}

	if err := e.Ledger.Append(ctx, entry); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			// Timesheet already accrued, e.g. a replayed approval webhook.
			return &AccrualResult{Accrued: false}, nil
		}
		return nil, err
	}
	return &AccrualResult{Accrued: true, Entry: &entry}, nil
}

// AccrualKey is the deterministic idempotency key for a timesheet's
// accrual entry.
func AccrualKey(timesheetID string) string {
	return "accrue-" + timesheetID
}
