/*
sweep.go - Retention-window expiry sweep

PURPOSE:
  Walks every employee's ledger and forfeits the unconsumed remainder
  of each accrual whose expiry date has passed, by appending negative
  expiry entries. The sweep is the only writer of expiry entries.

GUARANTEES:
  - Idempotent: each expiry entry is keyed on its accrual, so running
    the sweep twice in a row forfeits nothing extra. A re-run after a
    partial failure completes the remaining work.
  - Isolated: one employee's failure is recorded and skipped; the
    sweep continues with the rest.
  - Exact: only the unconsumed remainder is forfeited. Hours already
    taken as leave are never expired on top.

TRIGGERS:
  - POST /api/cron/expire-toil (external scheduler)
  - api/scheduler.go (optional in-process ticker)

SEE ALSO:
  - balance.go: The shared remainder walk
*/
package toil

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// SWEEPER
// =============================================================================

type Sweeper struct {
	Store Store
	Log   logrus.FieldLogger
}

func NewSweeper(store Store, log logrus.FieldLogger) *Sweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweeper{Store: store, Log: log}
}

// SweepFailure records one employee the sweep could not process.
type SweepFailure struct {
	EmployeeID EmployeeID
	Err        error
}

// SweepSummary is the outcome of one sweep run.
type SweepSummary struct {
	RanAt              time.Time
	EmployeesProcessed int
	EmployeesAffected  int
	EntriesExpired     int
	HoursExpired       decimal.Decimal
	Failures           []SweepFailure
}

// Run expires every overdue accrual remainder as of the given time.
// An accrual is overdue when asOf's calendar date is strictly after
// its expiry date.
func (s *Sweeper) Run(ctx context.Context, asOf time.Time) (*SweepSummary, error) {
	ids, err := s.Store.EmployeeIDs(ctx)
	if err != nil {
		return nil, err
	}

	summary := &SweepSummary{RanAt: asOf, HoursExpired: decimal.Zero}
	for _, id := range ids {
		expired, err := s.sweepEmployee(ctx, id, asOf)
		if err != nil {
			// One bad ledger must not block everyone else's expiry.
			s.Log.WithError(err).WithField("employee_id", id).Error("expiry sweep failed for employee")
			summary.Failures = append(summary.Failures, SweepFailure{EmployeeID: id, Err: err})
			continue
		}
		summary.EmployeesProcessed++
		if len(expired) > 0 {
			summary.EmployeesAffected++
			summary.EntriesExpired += len(expired)
			for _, e := range expired {
				summary.HoursExpired = summary.HoursExpired.Add(e.Hours.Value.Abs())
			}
		}
	}

	s.Log.WithFields(logrus.Fields{
		"employees_processed": summary.EmployeesProcessed,
		"employees_affected":  summary.EmployeesAffected,
		"entries_expired":     summary.EntriesExpired,
		"hours_expired":       summary.HoursExpired,
		"failures":            len(summary.Failures),
	}).Info("expiry sweep complete")
	return summary, nil
}

func (s *Sweeper) sweepEmployee(ctx context.Context, id EmployeeID, asOf time.Time) ([]Entry, error) {
	entries, err := s.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	today := DateOnly(asOf)
	priorExpiries := make(map[string]int)
	for _, e := range entries {
		if e.Kind == KindExpiry {
			priorExpiries[e.SourceReference]++
		}
	}

	var batch []Entry
	for _, rem := range AccrualRemainders(entries) {
		if !rem.Remaining.IsPositive() {
			continue
		}
		if !rem.Entry.ExpiryDate.Before(today) {
			continue
		}
		batch = append(batch, Entry{
			ID:              EntryID(uuid.NewString()),
			EmployeeID:      id,
			Kind:            KindExpiry,
			Hours:           Amount{Value: rem.Remaining.Neg(), Unit: UnitHours},
			SourceReference: string(rem.Entry.ID),
			Reason:          fmt.Sprintf("TOIL expired %s, unused %d months after accrual", rem.Entry.ExpiryDate.Format("2006-01-02"), DefaultExpiryMonths),
			IdempotencyKey:  expiryKey(rem.Entry.ID, priorExpiries[string(rem.Entry.ID)]),
			CreatedAt:       asOf,
		})
	}
	if len(batch) == 0 {
		return nil, nil
	}
	if err := s.Store.AppendBatch(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// expiryKey is deterministic per accrual. The sequence suffix only
// appears when an accrual is expired a second time, which can happen
// after a reversal restores hours to an already-swept accrual.
func expiryKey(accrualID EntryID, priorExpiries int) string {
	if priorExpiries == 0 {
		return "expire-" + string(accrualID)
	}
	return fmt.Sprintf("expire-%s-%d", accrualID, priorExpiries+1)
}
