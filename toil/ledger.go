/*
ledger.go - Append-only TOIL entry log

PURPOSE:
  The Ledger is the immutable source of truth for all balance changes.
  Every accrual, consumption, expiry, and reversal is recorded here.
  Balance is always computed by replaying entries - there's no
  separate "balance" field that can get out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, entries cannot be modified
  3. AUDITABLE: Every balance change is traceable with full context
  4. IDEMPOTENT: Same idempotency key = same entry (no duplicates)

CORRECTIONS:
  If a mistake is made, you don't edit the entry. Instead:
  1. Create a reversal entry (opposite sign)
  2. Both original and reversal remain in the ledger
  3. Net effect is correction, but history is preserved

EXAMPLE FLOW:
  1. Employee works 45h week: accrual +7.5
  2. Takes a TOIL day: consumption -7.5
  3. Leave cancelled before it starts: reversal +7.5

  Balance: [+7.5, -7.5, +7.5] = 7.5 hours

SEE ALSO:
  - store.go: Low-level persistence interface
  - balance.go: Derived balance and expiry projections
*/
package toil

import (
	"context"
	"time"
)

// =============================================================================
// LEDGER - Append-only entry log over a Store
// =============================================================================

// Ledger enforces the idempotency contract before delegating to its
// Store. It is the only write path the engines use.
type Ledger struct {
	Store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store}
}

func (l *Ledger) Append(ctx context.Context, entry Entry) error {
	if entry.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, entry.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, entry)
}

func (l *Ledger) AppendBatch(ctx context.Context, entries []Entry) error {
	// Check all idempotency keys first
	for _, entry := range entries {
		if entry.IdempotencyKey != "" {
			exists, err := l.Store.Exists(ctx, entry.IdempotencyKey)
			if err != nil {
				return err
			}
			if exists {
				return ErrDuplicateIdempotencyKey
			}
		}
	}
	return l.Store.AppendBatch(ctx, entries)
}

// History returns all entries for an employee, chronologically. Read-only.
func (l *Ledger) History(ctx context.Context, employeeID EmployeeID) ([]Entry, error) {
	return l.Store.Load(ctx, employeeID)
}

// HistoryInRange returns entries with CreatedAt in [from, to]. Read-only.
func (l *Ledger) HistoryInRange(ctx context.Context, employeeID EmployeeID, from, to time.Time) ([]Entry, error) {
	return l.Store.LoadRange(ctx, employeeID, from, to)
}
