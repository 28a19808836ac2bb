/*
Package toil implements Time-Off-In-Lieu accounting.

PURPOSE:
  Employees who work beyond their contracted weekly hours earn TOIL:
  compensatory leave measured in hours, redeemable as leave days, and
  forfeited six months after it was earned. This package contains the
  domain core: the append-only ledger, the overtime accrual engine, the
  expiry sweeper, balance queries, and the leave redemption gate.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: an hour/day quantity backed by decimal.Decimal
  - Entry: an immutable ledger record (accrual, consumption, expiry, reversal)
  - TimesheetApproval: the event that feeds the accrual engine
  - Employee/Entry IDs: type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: ledger entries are never edited, only offset
  2. Precision: decimal arithmetic, no floating-point drift in balances
  3. Explicit events: workflow state arrives as plain values, not shared
     request-scoped objects

SEE ALSO:
  - ledger.go: append-only persistence contract
  - accrual.go: overtime to accrual conversion
  - sweep.go: retention-window expiry
  - balance.go: balance and expiring-soon projections
  - leave.go: leave request lifecycle
*/
package toil

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DEFAULTS - Standard UK accountancy-practice working pattern
// =============================================================================

const (
	// DefaultStandardWeekHours is the contracted working week. Hours logged
	// beyond this threshold on an approved timesheet accrue as TOIL.
	DefaultStandardWeekHours = 37.5

	// DefaultHoursPerDay converts between TOIL hours and leave days.
	DefaultHoursPerDay = 7.5

	// DefaultExpiryMonths is the retention window: accrued hours unused
	// this many months after the accrual date are forfeited.
	DefaultExpiryMonths = 6
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitHours Unit = "hours"
	UnitDays  Unit = "days"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func Hours(value float64) Amount { return NewAmount(value, UnitHours) }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount              { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) Abs() Amount               { return Amount{Value: a.Value.Abs(), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }

// InDays converts an hour amount to days at the given day length.
func (a Amount) InDays(hoursPerDay decimal.Decimal) Amount {
	return Amount{Value: a.Value.Div(hoursPerDay), Unit: UnitDays}
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type EntryID string

// =============================================================================
// LEDGER ENTRY - Atomic change to an employee's TOIL balance
// =============================================================================

type EntryKind string

const (
	KindAccrual     EntryKind = "accrual"     // Overtime earned (positive hours)
	KindConsumption EntryKind = "consumption" // Approved TOIL leave (negative hours)
	KindExpiry      EntryKind = "expiry"      // Forfeited after retention window (negative hours)
	KindReversal    EntryKind = "reversal"    // Correction restoring consumed hours (positive hours)
)

// Entry is an immutable ledger record. Accrual and reversal entries carry
// positive hours; consumption and expiry entries carry negative hours.
// An employee's balance is the sum of all entry hours.
type Entry struct {
	ID         EntryID
	EmployeeID EmployeeID
	Kind       EntryKind
	Hours      Amount

	// SourceReference links the entry to its originating business event:
	// the timesheet ID for accruals, the leave request ID for consumption
	// and reversals, the accrual entry ID for expiries.
	SourceReference string

	// AccrualDate and ExpiryDate are set only on accrual entries.
	// ExpiryDate is fixed at creation time: AccrualDate plus the
	// retention window.
	AccrualDate time.Time
	ExpiryDate  time.Time

	Reason         string
	IdempotencyKey string
	CreatedAt      time.Time
}

// IsDebit reports whether the entry reduces the balance.
func (e Entry) IsDebit() bool {
	return e.Kind == KindConsumption || e.Kind == KindExpiry
}

// =============================================================================
// TIMESHEET APPROVAL - Event consumed by the accrual engine
// =============================================================================

type TimesheetStatus string

const (
	TimesheetDraft     TimesheetStatus = "draft"
	TimesheetSubmitted TimesheetStatus = "submitted"
	TimesheetApproved  TimesheetStatus = "approved"
	TimesheetRejected  TimesheetStatus = "rejected"
)

// TimesheetApproval is the immutable record of a timesheet reaching
// approved state. It is passed by value into the accrual engine; the
// engine never reaches back into timesheet storage.
type TimesheetApproval struct {
	TimesheetID string
	EmployeeID  EmployeeID
	WorkedHours float64
	Status      TimesheetStatus
	ApprovedAt  time.Time
	WeekEnding  time.Time
}

// =============================================================================
// BALANCE - Aggregate views computed from the ledger
// =============================================================================

// BalanceSummary is the point-in-time aggregate an employee sees.
type BalanceSummary struct {
	EmployeeID   EmployeeID
	BalanceHours Amount
	BalanceDays  Amount
	AsOf         time.Time
}

// ExpiringSlice is the unconsumed remainder of one accrual entry that
// will be forfeited if unused by its expiry date.
type ExpiringSlice struct {
	EntryID        EntryID
	AccrualDate    time.Time
	ExpiryDate     time.Time
	RemainingHours Amount
}

// ExpiringBalance summarises hours at risk within a look-ahead window.
type ExpiringBalance struct {
	EmployeeID         EmployeeID
	TotalExpiringHours Amount
	TotalExpiringDays  Amount
	Slices             []ExpiringSlice
}
