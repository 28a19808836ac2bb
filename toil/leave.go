/*
leave.go - TOIL leave request lifecycle

PURPOSE:
  Employees redeem accrued TOIL as leave days. A request moves through
  pending -> approved | rejected | cancelled; an approved request may
  still be cancelled before the leave is taken. Only approval and
  cancellation of an approved request touch the ledger.

BALANCE CHECKS:
  Submission checks the balance for early feedback, but the binding
  check happens inside the approval transaction. Two pending requests
  can both pass the submission check against the same hours; whichever
  is approved second fails the transactional re-check and is rejected
  with InsufficientBalanceError.

DAY COUNTING:
  A request for Monday to Friday is 5 working days regardless of
  weekends inside the span; Saturdays, Sundays, and bank holidays are
  skipped. Hours requested = working days * hours per day.

SEE ALSO:
  - store.go: LeaveStore.WithTx provides the atomic approval unit
  - errors.go: InsufficientBalanceError carries the shortfall detail
*/
package toil

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

type LeaveRequest struct {
	ID         string
	EmployeeID EmployeeID
	StartDate  time.Time
	EndDate    time.Time
	Days       int
	Hours      decimal.Decimal
	Status     RequestStatus
	Notes      string

	ReviewedBy     string
	ReviewComments string
	ReviewedAt     time.Time
	CreatedAt      time.Time
	ConsumptionRef string // ledger entry ID written at approval
}

// =============================================================================
// REDEMPTION GATE
// =============================================================================

// RedemptionGate owns the leave request lifecycle and is the only
// writer of consumption and reversal entries.
type RedemptionGate struct {
	Store       LeaveStore
	Calendar    HolidayCalendar
	HoursPerDay decimal.Decimal

	Now func() time.Time
}

func NewRedemptionGate(store LeaveStore, cal HolidayCalendar) *RedemptionGate {
	if cal == nil {
		cal = NopCalendar{}
	}
	return &RedemptionGate{
		Store:       store,
		Calendar:    cal,
		HoursPerDay: decimal.NewFromFloat(DefaultHoursPerDay),
		Now:         time.Now,
	}
}

// Submit validates the period and balance, then records a pending
// request. The balance check here is advisory; approval re-checks
// inside a transaction.
func (g *RedemptionGate) Submit(ctx context.Context, employeeID EmployeeID, start, end time.Time, notes string) (*LeaveRequest, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date before start date", ErrInvalidPeriod)
	}
	days := WorkingDays(start, end, g.Calendar)
	if days == 0 {
		return nil, fmt.Errorf("%w: period contains no working days", ErrInvalidPeriod)
	}
	hours := decimal.NewFromInt(int64(days)).Mul(g.HoursPerDay)

	if _, err := g.Store.GetEmployee(ctx, employeeID); err != nil {
		return nil, err
	}
	available, err := g.available(ctx, g.Store, employeeID)
	if err != nil {
		return nil, err
	}
	if hours.GreaterThan(available) {
		return nil, &InsufficientBalanceError{
			EmployeeID:  employeeID,
			Available:   available,
			Requested:   hours,
			Shortfall:   hours.Sub(available),
			HoursPerDay: g.HoursPerDay,
		}
	}

	req := LeaveRequest{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		StartDate:  DateOnly(start),
		EndDate:    DateOnly(end),
		Days:       days,
		Hours:      hours,
		Status:     RequestPending,
		Notes:      notes,
		CreatedAt:  g.Now(),
	}
	if err := g.Store.SaveRequest(ctx, req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Approve flips a pending request to approved and appends the
// consumption entry, atomically. The balance is re-computed inside the
// transaction so concurrent approvals cannot overdraw; a write
// conflict is retried once before surfacing.
func (g *RedemptionGate) Approve(ctx context.Context, requestID, reviewerID, comments string) (*LeaveRequest, error) {
	req, err := g.approveOnce(ctx, requestID, reviewerID, comments)
	if IsRetryable(err) {
		req, err = g.approveOnce(ctx, requestID, reviewerID, comments)
	}
	return req, err
}

func (g *RedemptionGate) approveOnce(ctx context.Context, requestID, reviewerID, comments string) (*LeaveRequest, error) {
	var approved *LeaveRequest
	err := g.Store.WithTx(ctx, func(s LeaveStore) error {
		req, err := s.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != RequestPending {
			return &InvalidRequestStateError{RequestID: requestID, Status: req.Status, Action: "approve"}
		}

		available, err := g.available(ctx, s, req.EmployeeID)
		if err != nil {
			return err
		}
		if req.Hours.GreaterThan(available) {
			return &InsufficientBalanceError{
				EmployeeID:  req.EmployeeID,
				Available:   available,
				Requested:   req.Hours,
				Shortfall:   req.Hours.Sub(available),
				HoursPerDay: g.HoursPerDay,
			}
		}

		entry := Entry{
			ID:              EntryID(uuid.NewString()),
			EmployeeID:      req.EmployeeID,
			Kind:            KindConsumption,
			Hours:           Amount{Value: req.Hours.Neg(), Unit: UnitHours},
			SourceReference: req.ID,
			Reason:          fmt.Sprintf("TOIL leave %s to %s (%d days)", req.StartDate.Format("2006-01-02"), req.EndDate.Format("2006-01-02"), req.Days),
			IdempotencyKey:  "consume-" + req.ID,
			CreatedAt:       g.Now(),
		}
		if err := s.Append(ctx, entry); err != nil {
			return err
		}

		req.Status = RequestApproved
		req.ReviewedBy = reviewerID
		req.ReviewComments = comments
		req.ReviewedAt = g.Now()
		req.ConsumptionRef = string(entry.ID)
		if err := s.SaveRequest(ctx, *req); err != nil {
			return err
		}
		approved = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// Reject flips a pending request to rejected. The ledger is untouched;
// nothing was consumed yet.
func (g *RedemptionGate) Reject(ctx context.Context, requestID, reviewerID, comments string) (*LeaveRequest, error) {
	req, err := g.Store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != RequestPending {
		return nil, &InvalidRequestStateError{RequestID: requestID, Status: req.Status, Action: "reject"}
	}
	req.Status = RequestRejected
	req.ReviewedBy = reviewerID
	req.ReviewComments = comments
	req.ReviewedAt = g.Now()
	if err := g.Store.SaveRequest(ctx, *req); err != nil {
		return nil, err
	}
	return req, nil
}

// Cancel withdraws a request. Cancelling a pending request is a status
// change only. Cancelling an approved request additionally appends a
// reversal entry restoring the consumed hours; the original
// consumption entry is never touched.
func (g *RedemptionGate) Cancel(ctx context.Context, requestID string) (*LeaveRequest, error) {
	var cancelled *LeaveRequest
	err := g.Store.WithTx(ctx, func(s LeaveStore) error {
		req, err := s.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		switch req.Status {
		case RequestPending:
			// No ledger entry exists yet.
		case RequestApproved:
			entry := Entry{
				ID:              EntryID(uuid.NewString()),
				EmployeeID:      req.EmployeeID,
				Kind:            KindReversal,
				Hours:           Amount{Value: req.Hours, Unit: UnitHours},
				SourceReference: req.ID,
				Reason:          "leave cancelled, hours restored",
				IdempotencyKey:  "cancel-" + req.ID,
				CreatedAt:       g.Now(),
			}
			if err := s.Append(ctx, entry); err != nil {
				return err
			}
		default:
			return &InvalidRequestStateError{RequestID: requestID, Status: req.Status, Action: "cancel"}
		}

		req.Status = RequestCancelled
		if err := s.SaveRequest(ctx, *req); err != nil {
			return err
		}
		cancelled = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (g *RedemptionGate) available(ctx context.Context, s Store, employeeID EmployeeID) (decimal.Decimal, error) {
	entries, err := s.Load(ctx, employeeID)
	if err != nil {
		return decimal.Zero, err
	}
	return SumHours(entries), nil
}
