/*
balance.go - Derived balance and expiry projections

PURPOSE:
  Everything an employee or manager sees about TOIL is computed here by
  replaying the ledger. There is no stored balance column to drift.

PROJECTIONS:
  Balance:      sum of all entry hours, plus the day equivalent
  ExpiringSoon: per-accrual unconsumed remainders whose expiry date
                falls inside a look-ahead window

ATTRIBUTION:
  Consumption is attributed to accruals oldest-first (FIFO). Expiry
  entries are attributed to the accrual they reference. Reversals
  restore hours to the oldest accrual with headroom. The same walk is
  shared with the sweeper so "what is about to expire" and "what the
  sweep will forfeit" can never disagree.

SEE ALSO:
  - sweep.go: Uses the remainder walk to build expiry entries
*/
package toil

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE SERVICE
// =============================================================================

type BalanceService struct {
	Store       Store
	HoursPerDay decimal.Decimal
}

func NewBalanceService(store Store) *BalanceService {
	return &BalanceService{
		Store:       store,
		HoursPerDay: decimal.NewFromFloat(DefaultHoursPerDay),
	}
}

// Balance returns the employee's current TOIL balance in hours and days.
func (s *BalanceService) Balance(ctx context.Context, employeeID EmployeeID, asOf time.Time) (*BalanceSummary, error) {
	entries, err := s.Store.Load(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	hours := SumHours(entries)
	return &BalanceSummary{
		EmployeeID:   employeeID,
		BalanceHours: Amount{Value: hours, Unit: UnitHours},
		BalanceDays:  Amount{Value: hours.Div(s.HoursPerDay), Unit: UnitDays},
		AsOf:         asOf,
	}, nil
}

// ExpiringSoon returns the accrual remainders expiring within daysAhead
// days of asOf. Already-expired remainders are excluded; the sweep owns
// those.
func (s *BalanceService) ExpiringSoon(ctx context.Context, employeeID EmployeeID, asOf time.Time, daysAhead int) (*ExpiringBalance, error) {
	entries, err := s.Store.Load(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	today := DateOnly(asOf)
	horizon := today.AddDate(0, 0, daysAhead)

	result := &ExpiringBalance{
		EmployeeID:         employeeID,
		TotalExpiringHours: Hours(0),
		TotalExpiringDays:  NewAmount(0, UnitDays),
	}
	for _, rem := range AccrualRemainders(entries) {
		if !rem.Remaining.IsPositive() {
			continue
		}
		if rem.Entry.ExpiryDate.Before(today) || rem.Entry.ExpiryDate.After(horizon) {
			continue
		}
		result.Slices = append(result.Slices, ExpiringSlice{
			EntryID:        rem.Entry.ID,
			AccrualDate:    rem.Entry.AccrualDate,
			ExpiryDate:     rem.Entry.ExpiryDate,
			RemainingHours: Amount{Value: rem.Remaining, Unit: UnitHours},
		})
		result.TotalExpiringHours = result.TotalExpiringHours.Add(Amount{Value: rem.Remaining, Unit: UnitHours})
	}
	result.TotalExpiringDays = result.TotalExpiringHours.InDays(s.HoursPerDay)
	return result, nil
}

// SumHours is the plain balance: positive accruals and reversals minus
// consumption and expiry.
func SumHours(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Hours.Value)
	}
	return total
}

// =============================================================================
// FIFO REMAINDER WALK
// =============================================================================

// AccrualRemainder pairs an accrual entry with the hours of it not yet
// consumed, expired, or otherwise drained.
type AccrualRemainder struct {
	Entry     Entry
	Remaining decimal.Decimal
}

// AccrualRemainders replays the ledger and attributes every debit to an
// accrual. Accruals are ordered by accrual date (ties broken by
// creation time); debits drain oldest-first, except expiry entries,
// which target the accrual named by their SourceReference. Reversals
// refill oldest-first, capped at each accrual's original hours.
func AccrualRemainders(entries []Entry) []AccrualRemainder {
	var remainders []AccrualRemainder
	byID := make(map[EntryID]int)

	for _, e := range entries {
		if e.Kind != KindAccrual {
			continue
		}
		remainders = append(remainders, AccrualRemainder{Entry: e, Remaining: e.Hours.Value})
	}
	sort.SliceStable(remainders, func(i, j int) bool {
		a, b := remainders[i].Entry, remainders[j].Entry
		if !a.AccrualDate.Equal(b.AccrualDate) {
			return a.AccrualDate.Before(b.AccrualDate)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	for i, rem := range remainders {
		byID[rem.Entry.ID] = i
	}

	for _, e := range entries {
		switch e.Kind {
		case KindAccrual:
			// Handled above.
		case KindExpiry:
			amount := e.Hours.Value.Abs()
			if i, ok := byID[EntryID(e.SourceReference)]; ok {
				remainders[i].Remaining = remainders[i].Remaining.Sub(amount)
				if remainders[i].Remaining.IsNegative() {
					remainders[i].Remaining = decimal.Zero
				}
			} else {
				drainFIFO(remainders, amount)
			}
		case KindConsumption:
			drainFIFO(remainders, e.Hours.Value.Abs())
		case KindReversal:
			refillFIFO(remainders, e.Hours.Value.Abs())
		}
	}
	return remainders
}

func drainFIFO(remainders []AccrualRemainder, amount decimal.Decimal) {
	for i := range remainders {
		if !amount.IsPositive() {
			return
		}
		take := decimal.Min(remainders[i].Remaining, amount)
		if !take.IsPositive() {
			continue
		}
		remainders[i].Remaining = remainders[i].Remaining.Sub(take)
		amount = amount.Sub(take)
	}
}

func refillFIFO(remainders []AccrualRemainder, amount decimal.Decimal) {
	for i := range remainders {
		if !amount.IsPositive() {
			return
		}
		headroom := remainders[i].Entry.Hours.Value.Sub(remainders[i].Remaining)
		give := decimal.Min(headroom, amount)
		if !give.IsPositive() {
			continue
		}
		remainders[i].Remaining = remainders[i].Remaining.Add(give)
		amount = amount.Sub(give)
	}
}
