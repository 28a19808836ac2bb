/*
handlers.go - HTTP API handlers for the TOIL engine

PURPOSE:
  Exposes the TOIL engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                      List all employees
    POST   /api/employees                      Create employee
    GET    /api/employees/{id}                 Get employee details
    GET    /api/employees/{id}/balance         Balance in hours and days
    GET    /api/employees/{id}/toil/history    Full ledger history
    GET    /api/employees/{id}/toil/expiring   Hours expiring soon
    GET    /api/employees/{id}/leave           Leave requests

  Timesheets:
    POST   /api/timesheets/{id}/approve        Approve and accrue overtime

  Leave:
    POST   /api/leave                          Submit a leave request
    GET    /api/leave/pending                  Requests awaiting review
    POST   /api/leave/{id}/approve             Approve (consumes TOIL)
    POST   /api/leave/{id}/reject              Reject
    POST   /api/leave/{id}/cancel              Cancel (reversal if approved)

  Operations:
    POST   /api/cron/expire-toil               Run the expiry sweep
    GET    /api/admin/sweeps                   Sweep audit trail
    GET/POST/DELETE /api/holidays              Bank holiday admin
    GET    /api/scenarios                      Demo scenarios (see scenarios.go)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (engine, gate, sweeper)
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  - 400: Validation errors, invalid state transitions
  - 404: Employee or request not found
  - 409: Conflict (idempotency, write conflict)
  - 422: Insufficient TOIL balance
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/toil-engine/store/sqlite"
	"github.com/warp/toil-engine/toil"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Accrual *toil.AccrualEngine
	Balance *toil.BalanceService
	Gate    *toil.RedemptionGate
	Sweeper *toil.Sweeper
	Log     logrus.FieldLogger
	Metrics *Metrics
}

// NewHandler wires the domain services over a single SQLite store.
func NewHandler(store *sqlite.Store, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ledger := toil.NewLedger(store)
	gate := toil.NewRedemptionGate(store, store)
	return &Handler{
		Store:   store,
		Accrual: toil.NewAccrualEngine(ledger),
		Balance: toil.NewBalanceService(store),
		Gate:    gate,
		Sweeper: toil.NewSweeper(store, log),
		Log:     log,
		Metrics: NewMetrics(),
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = EmployeeDTO{
			ID:        string(e.ID),
			Name:      e.Name,
			Email:     e.Email,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	emp, err := h.Store.GetEmployee(r.Context(), toil.EmployeeID(id))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, EmployeeDTO{
		ID:        string(emp.ID),
		Name:      emp.Name,
		Email:     emp.Email,
		CreatedAt: emp.CreatedAt.Format(time.RFC3339),
	})
}

// CreateEmployee creates a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	emp := toil.Employee{
		ID:        toil.EmployeeID(req.ID),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}

	writeJSON(w, http.StatusCreated, EmployeeDTO{
		ID:        string(emp.ID),
		Name:      emp.Name,
		Email:     emp.Email,
		CreatedAt: emp.CreatedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// BALANCE AND HISTORY HANDLERS
// =============================================================================

// GetBalance returns the employee's TOIL balance in hours and days.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := toil.EmployeeID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetEmployee(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}

	summary, err := h.Balance.Balance(r.Context(), id, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", err)
		return
	}

	hours, _ := summary.BalanceHours.Value.Float64()
	days, _ := summary.BalanceDays.Value.Round(2).Float64()
	writeJSON(w, http.StatusOK, BalanceDTO{
		EmployeeID:   string(summary.EmployeeID),
		BalanceHours: hours,
		BalanceDays:  days,
		AsOf:         summary.AsOf.Format(time.RFC3339),
	})
}

// GetHistory returns the employee's full ledger.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := toil.EmployeeID(chi.URLParam(r, "id"))

	entries, err := h.Store.Load(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// GetExpiring returns accrual remainders expiring within the look-ahead
// window. days_ahead defaults to 30 and is capped at 90.
func (h *Handler) GetExpiring(w http.ResponseWriter, r *http.Request) {
	id := toil.EmployeeID(chi.URLParam(r, "id"))

	daysAhead := 30
	if raw := r.URL.Query().Get("days_ahead"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "days_ahead must be a positive integer", err)
			return
		}
		daysAhead = parsed
	}
	if daysAhead > 90 {
		daysAhead = 90
	}

	expiring, err := h.Balance.ExpiringSoon(r.Context(), id, time.Now().UTC(), daysAhead)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute expiring balance", err)
		return
	}

	totalHours, _ := expiring.TotalExpiringHours.Value.Float64()
	totalDays, _ := expiring.TotalExpiringDays.Value.Round(2).Float64()
	dto := ExpiringBalanceDTO{
		EmployeeID:         string(expiring.EmployeeID),
		DaysAhead:          daysAhead,
		TotalExpiringHours: totalHours,
		TotalExpiringDays:  totalDays,
		Slices:             []ExpiringSliceDTO{},
	}
	for _, s := range expiring.Slices {
		remaining, _ := s.RemainingHours.Value.Float64()
		dto.Slices = append(dto.Slices, ExpiringSliceDTO{
			EntryID:        string(s.EntryID),
			AccrualDate:    s.AccrualDate.Format("2006-01-02"),
			ExpiryDate:     s.ExpiryDate.Format("2006-01-02"),
			RemainingHours: remaining,
		})
	}

	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// TIMESHEET HANDLERS
// =============================================================================

// ApproveTimesheet records a timesheet approval and accrues any overtime.
func (h *Handler) ApproveTimesheet(w http.ResponseWriter, r *http.Request) {
	timesheetID := chi.URLParam(r, "id")

	var req ApproveTimesheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}
	status := toil.TimesheetStatus(req.Status)
	if req.Status == "" {
		status = toil.TimesheetApproved
	}

	approval := toil.TimesheetApproval{
		TimesheetID: timesheetID,
		EmployeeID:  toil.EmployeeID(req.EmployeeID),
		WorkedHours: req.WorkedHours,
		Status:      status,
		ApprovedAt:  time.Now().UTC(),
	}
	if req.WeekEnding != "" {
		weekEnding, err := time.Parse("2006-01-02", req.WeekEnding)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid week_ending format (use YYYY-MM-DD)", err)
			return
		}
		approval.WeekEnding = weekEnding
	}

	result, err := h.Accrual.Accrue(r.Context(), approval)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := AccrualResponseDTO{Accrued: result.Accrued}
	if result.Accrued {
		hours, _ := result.Entry.Hours.Value.Float64()
		resp.HoursAccrued = hours
		resp.ExpiryDate = result.Entry.ExpiryDate.Format("2006-01-02")
		resp.Message = fmt.Sprintf("Accrued %s hours of TOIL", result.Entry.Hours.Value)
		h.Metrics.AccrualsTotal.Inc()
		h.Metrics.HoursAccruedTotal.Add(hours)
	} else {
		resp.Message = "No TOIL accrued for this timesheet"
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// SubmitLeave creates a pending TOIL leave request.
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	var req SubmitLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	created, err := h.Gate.Submit(r.Context(), toil.EmployeeID(req.EmployeeID), start, end, req.Notes)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(*created))
}

// ListPendingLeave returns all requests awaiting review.
func (h *Handler) ListPendingLeave(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Store.PendingRequests(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pending requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// ListEmployeeLeave returns all of an employee's requests.
func (h *Handler) ListEmployeeLeave(w http.ResponseWriter, r *http.Request) {
	id := toil.EmployeeID(chi.URLParam(r, "id"))

	reqs, err := h.Store.RequestsByEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// ApproveLeave approves a pending request, consuming TOIL.
func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body ReviewLeaveRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	approved, err := h.Gate.Approve(r.Context(), id, body.ReviewerID, body.Comments)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Metrics.LeaveDecisionsTotal.WithLabelValues("approved").Inc()
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*approved))
}

// RejectLeave rejects a pending request. The ledger is untouched.
func (h *Handler) RejectLeave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body ReviewLeaveRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	rejected, err := h.Gate.Reject(r.Context(), id, body.ReviewerID, body.Comments)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Metrics.LeaveDecisionsTotal.WithLabelValues("rejected").Inc()
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*rejected))
}

// CancelLeave withdraws a request, restoring hours if it was approved.
func (h *Handler) CancelLeave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cancelled, err := h.Gate.Cancel(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Metrics.LeaveDecisionsTotal.WithLabelValues("cancelled").Inc()
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*cancelled))
}

// =============================================================================
// SWEEP HANDLERS
// =============================================================================

// ExpireToil runs the expiry sweep. Wired to the external cron endpoint;
// also called by the in-process scheduler.
func (h *Handler) ExpireToil(w http.ResponseWriter, r *http.Request) {
	summary, err := h.RunSweep(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Expiry sweep failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toSweepResponseDTO(summary))
}

// RunSweep executes the sweep and records the run for the audit trail.
func (h *Handler) RunSweep(ctx context.Context) (*toil.SweepSummary, error) {
	now := time.Now().UTC()
	summary, err := h.Sweeper.Run(ctx, now)
	if err != nil {
		return nil, err
	}

	h.Metrics.SweepRunsTotal.Inc()
	h.Metrics.EntriesExpiredTotal.Add(float64(summary.EntriesExpired))

	run := sqlite.SweepRun{
		ID:                 uuid.NewString(),
		RanAt:              summary.RanAt,
		EmployeesProcessed: summary.EmployeesProcessed,
		EmployeesAffected:  summary.EmployeesAffected,
		EntriesExpired:     summary.EntriesExpired,
		HoursExpired:       summary.HoursExpired.String(),
		Failures:           len(summary.Failures),
	}
	if err := h.Store.SaveSweepRun(ctx, run); err != nil {
		h.Log.WithError(err).Warn("failed to record sweep run")
	}
	return summary, nil
}

// ListSweepRuns returns the sweep audit trail.
func (h *Handler) ListSweepRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.Store.ListSweepRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sweep runs", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns all bank holidays.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}

	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = HolidayDTO{
			ID:   hol.ID,
			Date: hol.Date.Format("2006-01-02"),
			Name: hol.Name,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a bank holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	holiday := sqlite.Holiday{
		ID:   uuid.NewString(),
		Date: date,
		Name: req.Name,
	}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
		return
	}

	writeJSON(w, http.StatusCreated, HolidayDTO{
		ID:   holiday.ID,
		Date: holiday.Date.Format("2006-01-02"),
		Name: holiday.Name,
	})
}

// DeleteHoliday removes a bank holiday.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteHoliday(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case toil.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, toil.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, "Insufficient TOIL balance", err)
	case errors.Is(err, toil.ErrDuplicateIdempotencyKey),
		errors.Is(err, toil.ErrLedgerWriteConflict):
		writeError(w, http.StatusConflict, "Conflict", err)
	case toil.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		h.Log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
