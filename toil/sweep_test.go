package toil_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/toil-engine/toil"
)

func newTestSweeper(s toil.Store) *toil.Sweeper {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return toil.NewSweeper(s, log)
}

// =============================================================================
// EXPIRY TIMING TESTS
// =============================================================================

func TestSweep_OverdueAccrual_Expired(t *testing.T) {
	// GIVEN: An accrual from 10 January, expiring 10 July
	// WHEN: The sweep runs on 11 July
	// THEN: The full remainder is forfeited and the balance drops to zero

	s := newTestStore()
	ctx := context.Background()

	acc := accrualAt(t, s, "emp-1", 7.5, date(2025, time.January, 10))

	summary, err := newTestSweeper(s).Run(ctx, date(2025, time.July, 11))

	require.NoError(t, err)
	assert.Equal(t, 1, summary.EntriesExpired)
	assert.Equal(t, 1, summary.EmployeesAffected)
	assert.True(t, summary.HoursExpired.Equal(decimal.NewFromFloat(7.5)))
	assert.True(t, balanceHours(t, s, "emp-1").IsZero())

	entries, err := s.Load(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	expiry := entries[1]
	assert.Equal(t, toil.KindExpiry, expiry.Kind)
	assert.Equal(t, string(acc.ID), expiry.SourceReference)
	assert.Equal(t, "expire-"+string(acc.ID), expiry.IdempotencyKey)
	assert.True(t, expiry.Hours.IsNegative())
}

func TestSweep_ExpiryDateIsToday_NotYetExpired(t *testing.T) {
	// GIVEN: An accrual expiring exactly today
	// WHEN: The sweep runs
	// THEN: Nothing is forfeited; hours survive through their expiry date

	s := newTestStore()

	accrualAt(t, s, "emp-1", 7.5, date(2025, time.January, 10)) // expires 2025-07-10

	summary, err := newTestSweeper(s).Run(context.Background(), date(2025, time.July, 10))

	require.NoError(t, err)
	assert.Zero(t, summary.EntriesExpired)
	assert.True(t, balanceHours(t, s, "emp-1").Equal(decimal.NewFromFloat(7.5)))
}

func TestSweep_ExpiresOnlyUnconsumedRemainder(t *testing.T) {
	// GIVEN: A 7.5h accrual with 3h already taken as leave
	// WHEN: The accrual passes its expiry date
	// THEN: Only the 4.5h remainder is forfeited

	s := newTestStore()
	ctx := context.Background()

	accrualAt(t, s, "emp-1", 7.5, date(2025, time.January, 10))
	require.NoError(t, s.Append(ctx, toil.Entry{
		ID: "con-1", EmployeeID: "emp-1", Kind: toil.KindConsumption,
		Hours: toil.Hours(-3), IdempotencyKey: "consume-req-1",
		CreatedAt: date(2025, time.February, 1),
	}))

	summary, err := newTestSweeper(s).Run(ctx, date(2025, time.July, 11))

	require.NoError(t, err)
	assert.True(t, summary.HoursExpired.Equal(decimal.NewFromFloat(4.5)))
	assert.True(t, balanceHours(t, s, "emp-1").IsZero())
}

func TestSweep_MixedAges_ExpiresOnlyOverdue(t *testing.T) {
	// GIVEN: One overdue accrual and one still inside its window
	// WHEN: The sweep runs
	// THEN: Only the overdue accrual is forfeited

	s := newTestStore()

	accrualAt(t, s, "emp-1", 7.5, date(2025, time.January, 10)) // expired 10 July
	accrualAt(t, s, "emp-1", 5, date(2025, time.May, 12))       // expires 12 November

	summary, err := newTestSweeper(s).Run(context.Background(), date(2025, time.July, 11))

	require.NoError(t, err)
	assert.Equal(t, 1, summary.EntriesExpired)
	assert.True(t, balanceHours(t, s, "emp-1").Equal(decimal.NewFromInt(5)))
}

// =============================================================================
// IDEMPOTENCY AND ISOLATION TESTS
// =============================================================================

func TestSweep_Rerun_ForfeitsNothingExtra(t *testing.T) {
	// GIVEN: A sweep that already expired an accrual
	// WHEN: The sweep runs again at a later time
	// THEN: No further entries are written and the balance is unchanged

	s := newTestStore()
	ctx := context.Background()

	accrualAt(t, s, "emp-1", 7.5, date(2025, time.January, 10))

	sweeper := newTestSweeper(s)
	first, err := sweeper.Run(ctx, date(2025, time.July, 11))
	require.NoError(t, err)
	require.Equal(t, 1, first.EntriesExpired)

	second, err := sweeper.Run(ctx, date(2025, time.August, 1))
	require.NoError(t, err)
	assert.Zero(t, second.EntriesExpired)
	assert.True(t, balanceHours(t, s, "emp-1").IsZero())

	entries, err := s.Load(ctx, "emp-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSweep_ReversalAfterExpiry_SecondExpiryKeyed(t *testing.T) {
	// GIVEN: An expired accrual later refilled by a reversal
	// WHEN: The sweep runs again
	// THEN: The restored hours expire too, under a distinct idempotency key

	s := newTestStore()
	ctx := context.Background()

	acc := accrualAt(t, s, "emp-1", 7.5, date(2025, time.January, 10))

	sweeper := newTestSweeper(s)
	_, err := sweeper.Run(ctx, date(2025, time.July, 11))
	require.NoError(t, err)

	// A cancelled leave restores 3 hours onto the swept accrual.
	require.NoError(t, s.Append(ctx, toil.Entry{
		ID: "rev-1", EmployeeID: "emp-1", Kind: toil.KindReversal,
		Hours: toil.Hours(3), IdempotencyKey: "cancel-req-1",
		CreatedAt: date(2025, time.July, 20),
	}))

	summary, err := sweeper.Run(ctx, date(2025, time.August, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EntriesExpired)
	assert.True(t, summary.HoursExpired.Equal(decimal.NewFromInt(3)))
	assert.True(t, balanceHours(t, s, "emp-1").IsZero())

	entries, err := s.Load(ctx, "emp-1")
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, "expire-"+string(acc.ID)+"-2", last.IdempotencyKey)
}

// faultyStore fails Load for one employee so the sweep's isolation can
// be observed.
type faultyStore struct {
	toil.Store
	failFor toil.EmployeeID
}

func (f *faultyStore) Load(ctx context.Context, id toil.EmployeeID) ([]toil.Entry, error) {
	if id == f.failFor {
		return nil, errors.New("disk on fire")
	}
	return f.Store.Load(ctx, id)
}

func TestSweep_EmployeeFailure_OthersStillSwept(t *testing.T) {
	// GIVEN: Two employees with overdue TOIL, one with a broken ledger
	// WHEN: The sweep runs
	// THEN: The healthy employee is swept; the failure is recorded

	mem := newTestStore()
	ctx := context.Background()

	accrualAt(t, mem, "emp-bad", 7.5, date(2025, time.January, 10))
	accrualAt(t, mem, "emp-good", 5, date(2025, time.January, 10))

	s := &faultyStore{Store: mem, failFor: "emp-bad"}
	summary, err := newTestSweeper(s).Run(ctx, date(2025, time.July, 11))

	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, toil.EmployeeID("emp-bad"), summary.Failures[0].EmployeeID)
	assert.Equal(t, 1, summary.EmployeesProcessed)
	assert.True(t, balanceHours(t, mem, "emp-good").IsZero(), "healthy employee still swept")
	assert.True(t, balanceHours(t, mem, "emp-bad").Equal(decimal.NewFromFloat(7.5)), "failed employee untouched")
}
