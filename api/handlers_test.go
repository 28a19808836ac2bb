/*
handlers_test.go - HTTP-level tests for the TOIL API

Tests run against the full chi router over an in-memory SQLite store,
so routing, JSON codecs, and error mapping are all exercised.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/toil-engine/store/sqlite"
	"github.com/warp/toil-engine/toil"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	h := NewHandler(store, log)
	return h, NewRouter(h)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

func createEmployee(t *testing.T, router http.Handler, id, name string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/employees", CreateEmployeeRequest{ID: id, Name: name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func approveTimesheet(t *testing.T, router http.Handler, timesheetID, employeeID string, workedHours float64) AccrualResponseDTO {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/timesheets/"+timesheetID+"/approve",
		ApproveTimesheetRequest{EmployeeID: employeeID, WorkedHours: workedHours})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[AccrualResponseDTO](t, rec)
}

// =============================================================================
// EMPLOYEE AND BALANCE ENDPOINTS
// =============================================================================

func TestAPI_CreateEmployee_ThenEmptyBalance(t *testing.T) {
	_, router := newTestServer(t)

	createEmployee(t, router, "emp-1", "Priya Shah")

	rec := doJSON(t, router, http.MethodGet, "/api/employees/emp-1/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decode[BalanceDTO](t, rec)
	assert.Equal(t, "emp-1", balance.EmployeeID)
	assert.Zero(t, balance.BalanceHours)
	assert.Zero(t, balance.BalanceDays)
}

func TestAPI_GetBalance_UnknownEmployee_404(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/employees/ghost/balance", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CreateEmployee_MissingName_400(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/employees", CreateEmployeeRequest{ID: "emp-1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// TIMESHEET APPROVAL ENDPOINT
// =============================================================================

func TestAPI_ApproveTimesheet_AccruesOvertime(t *testing.T) {
	// GIVEN: An employee and a 45 hour approved timesheet
	// WHEN: The approval webhook fires
	// THEN: 7.5 hours accrue and the balance reflects one day

	_, router := newTestServer(t)
	createEmployee(t, router, "emp-1", "Priya Shah")

	resp := approveTimesheet(t, router, "ts-1", "emp-1", 45)

	assert.True(t, resp.Accrued)
	assert.Equal(t, 7.5, resp.HoursAccrued)
	assert.Equal(t, "Accrued 7.5 hours of TOIL", resp.Message)
	assert.NotEmpty(t, resp.ExpiryDate)

	rec := doJSON(t, router, http.MethodGet, "/api/employees/emp-1/balance", nil)
	balance := decode[BalanceDTO](t, rec)
	assert.Equal(t, 7.5, balance.BalanceHours)
	assert.Equal(t, 1.0, balance.BalanceDays)
}

func TestAPI_ApproveTimesheet_NoOvertime_NothingAccrued(t *testing.T) {
	_, router := newTestServer(t)
	createEmployee(t, router, "emp-1", "Priya Shah")

	resp := approveTimesheet(t, router, "ts-1", "emp-1", 37.5)

	assert.False(t, resp.Accrued)
	assert.Equal(t, "No TOIL accrued for this timesheet", resp.Message)
}

func TestAPI_ApproveTimesheet_Replay_NoDoubleAccrual(t *testing.T) {
	// GIVEN: A timesheet approval already processed
	// WHEN: The webhook is replayed
	// THEN: The response is still 200 and the balance is unchanged

	_, router := newTestServer(t)
	createEmployee(t, router, "emp-1", "Priya Shah")

	first := approveTimesheet(t, router, "ts-1", "emp-1", 45)
	require.True(t, first.Accrued)

	second := approveTimesheet(t, router, "ts-1", "emp-1", 45)
	assert.False(t, second.Accrued)

	rec := doJSON(t, router, http.MethodGet, "/api/employees/emp-1/balance", nil)
	balance := decode[BalanceDTO](t, rec)
	assert.Equal(t, 7.5, balance.BalanceHours)
}

func TestAPI_ApproveTimesheet_NonApprovedStatus_400(t *testing.T) {
	_, router := newTestServer(t)
	createEmployee(t, router, "emp-1", "Priya Shah")

	rec := doJSON(t, router, http.MethodPost, "/api/timesheets/ts-1/approve",
		ApproveTimesheetRequest{EmployeeID: "emp-1", WorkedHours: 45, Status: "draft"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// EXPIRING BALANCE ENDPOINT
// =============================================================================

func TestAPI_GetExpiring_DefaultWindowEmpty(t *testing.T) {
	// A fresh accrual expires six months out, well past the default
	// 30 day look-ahead.
	_, router := newTestServer(t)
	createEmployee(t, router, "emp-1", "Priya Shah")
	approveTimesheet(t, router, "ts-1", "emp-1", 45)

	rec := doJSON(t, router, http.MethodGet, "/api/employees/emp-1/toil/expiring", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	expiring := decode[ExpiringBalanceDTO](t, rec)
	assert.Equal(t, 30, expiring.DaysAhead)
	assert.Zero(t, expiring.TotalExpiringHours)
	assert.Empty(t, expiring.Slices)
}

func TestAPI_GetExpiring_InvalidDaysAhead_400(t *testing.T) {
	_, router := newTestServer(t)

	for _, q := range []string{"0", "-3", "soon"} {
		rec := doJSON(t, router, http.MethodGet, "/api/employees/emp-1/toil/expiring?days_ahead="+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "days_ahead=%s", q)
	}
}

func TestAPI_GetExpiring_WindowCappedAt90(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/employees/emp-1/toil/expiring?days_ahead=365", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	expiring := decode[ExpiringBalanceDTO](t, rec)
	assert.Equal(t, 90, expiring.DaysAhead)
}

// =============================================================================
// LEAVE ENDPOINTS
// =============================================================================

func TestAPI_SubmitLeave_ZeroBalance_422(t *testing.T) {
	_, router := newTestServer(t)
	createEmployee(t, router, "emp-1", "Priya Shah")

	rec := doJSON(t, router, http.MethodPost, "/api/leave", SubmitLeaveRequest{
		EmployeeID: "emp-1", StartDate: "2025-06-09", EndDate: "2025-06-09",
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Contains(t, errResp.Details, "TOIL is earned through approved overtime hours")
}

func TestAPI_LeaveLifecycle_SubmitApproveCancel(t *testing.T) {
	// GIVEN: 37.5 hours of accrued TOIL
	// WHEN: A five day request is submitted, approved, then cancelled
	// THEN: The balance drops to zero on approval and is fully restored
	//       by the cancellation reversal

	_, router := newTestServer(t)
	createEmployee(t, router, "emp-1", "Priya Shah")
	approveTimesheet(t, router, "ts-1", "emp-1", 75) // 37.5h overtime

	rec := doJSON(t, router, http.MethodPost, "/api/leave", SubmitLeaveRequest{
		EmployeeID: "emp-1", StartDate: "2025-06-09", EndDate: "2025-06-13", Notes: "half term",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	submitted := decode[LeaveRequestDTO](t, rec)
	assert.Equal(t, 5, submitted.Days)
	assert.Equal(t, 37.5, submitted.Hours)
	assert.Equal(t, "pending", submitted.Status)

	// Shows up in the pending queue.
	rec = doJSON(t, router, http.MethodGet, "/api/leave/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[[]LeaveRequestDTO](t, rec)
	require.Len(t, pending, 1)

	// Approve consumes the full balance.
	rec = doJSON(t, router, http.MethodPost, "/api/leave/"+submitted.ID+"/approve",
		ReviewLeaveRequest{ReviewerID: "mgr-1", Comments: "enjoy"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[LeaveRequestDTO](t, rec)
	assert.Equal(t, "approved", approved.Status)
	assert.Equal(t, "mgr-1", approved.ReviewedBy)

	rec = doJSON(t, router, http.MethodGet, "/api/employees/emp-1/balance", nil)
	assert.Zero(t, decode[BalanceDTO](t, rec).BalanceHours)

	// Cancel restores the hours.
	rec = doJSON(t, router, http.MethodPost, "/api/leave/"+submitted.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decode[LeaveRequestDTO](t, rec).Status)

	rec = doJSON(t, router, http.MethodGet, "/api/employees/emp-1/balance", nil)
	assert.Equal(t, 37.5, decode[BalanceDTO](t, rec).BalanceHours)

	// The ledger keeps the full story: accrual, consumption, reversal.
	rec = doJSON(t, router, http.MethodGet, "/api/employees/emp-1/toil/history", nil)
	history := decode[[]EntryDTO](t, rec)
	require.Len(t, history, 3)
	assert.Equal(t, "accrual", history[0].Kind)
	assert.Equal(t, "consumption", history[1].Kind)
	assert.Equal(t, "reversal", history[2].Kind)
}

func TestAPI_ApproveLeave_Twice_400(t *testing.T) {
	_, router := newTestServer(t)
	createEmployee(t, router, "emp-1", "Priya Shah")
	approveTimesheet(t, router, "ts-1", "emp-1", 45)

	rec := doJSON(t, router, http.MethodPost, "/api/leave", SubmitLeaveRequest{
		EmployeeID: "emp-1", StartDate: "2025-06-09", EndDate: "2025-06-09",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	submitted := decode[LeaveRequestDTO](t, rec)

	rec = doJSON(t, router, http.MethodPost, "/api/leave/"+submitted.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/leave/"+submitted.ID+"/approve", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_RejectLeave_KeepsBalance(t *testing.T) {
	_, router := newTestServer(t)
	createEmployee(t, router, "emp-1", "Priya Shah")
	approveTimesheet(t, router, "ts-1", "emp-1", 45)

	rec := doJSON(t, router, http.MethodPost, "/api/leave", SubmitLeaveRequest{
		EmployeeID: "emp-1", StartDate: "2025-06-09", EndDate: "2025-06-09",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	submitted := decode[LeaveRequestDTO](t, rec)

	rec = doJSON(t, router, http.MethodPost, "/api/leave/"+submitted.ID+"/reject",
		ReviewLeaveRequest{ReviewerID: "mgr-1", Comments: "busy season"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rejected", decode[LeaveRequestDTO](t, rec).Status)

	rec = doJSON(t, router, http.MethodGet, "/api/employees/emp-1/balance", nil)
	assert.Equal(t, 7.5, decode[BalanceDTO](t, rec).BalanceHours)
}

// =============================================================================
// SWEEP AND ADMIN ENDPOINTS
// =============================================================================

func TestAPI_ExpireToil_SweepsOverdueAccruals(t *testing.T) {
	// GIVEN: An accrual written over six months ago (seeded directly,
	//        the HTTP path always stamps accruals with today's date)
	// WHEN: The cron endpoint fires
	// THEN: The remainder is forfeited and the run is recorded

	h, router := newTestServer(t)
	createEmployee(t, router, "emp-1", "Priya Shah")

	old := time.Now().UTC().AddDate(0, -7, 0)
	accrualDate := toil.DateOnly(old)
	require.NoError(t, h.Store.Append(context.Background(), toil.Entry{
		ID:             "e-old",
		EmployeeID:     "emp-1",
		Kind:           toil.KindAccrual,
		Hours:          toil.Hours(7.5),
		AccrualDate:    accrualDate,
		ExpiryDate:     toil.ExpiryDateFor(accrualDate, toil.DefaultExpiryMonths),
		IdempotencyKey: "accrue-ts-old",
		CreatedAt:      old,
	}))

	rec := doJSON(t, router, http.MethodPost, "/api/cron/expire-toil", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sweep := decode[SweepResponseDTO](t, rec)
	assert.True(t, sweep.Success)
	assert.Equal(t, 1, sweep.EntriesExpired)
	assert.Equal(t, 7.5, sweep.HoursExpired)

	rec = doJSON(t, router, http.MethodGet, "/api/employees/emp-1/balance", nil)
	assert.Zero(t, decode[BalanceDTO](t, rec).BalanceHours)

	rec = doJSON(t, router, http.MethodGet, "/api/admin/sweeps", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]sqlite.SweepRun](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].EntriesExpired)
}

func TestAPI_ExpireToil_Rerun_NothingMoreExpires(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/cron/expire-toil", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/cron/expire-toil", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sweep := decode[SweepResponseDTO](t, rec)
	assert.Zero(t, sweep.EntriesExpired)
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

func TestAPI_Holidays_AffectWorkingDayCount(t *testing.T) {
	// GIVEN: Monday 26 May 2025 registered as a bank holiday
	// WHEN: Leave is requested Monday through Tuesday
	// THEN: Only one working day is charged

	_, router := newTestServer(t)
	createEmployee(t, router, "emp-1", "Priya Shah")
	approveTimesheet(t, router, "ts-1", "emp-1", 45)

	rec := doJSON(t, router, http.MethodPost, "/api/holidays",
		CreateHolidayRequest{Date: "2025-05-26", Name: "Spring bank holiday"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/holidays", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]HolidayDTO](t, rec), 1)

	rec = doJSON(t, router, http.MethodPost, "/api/leave", SubmitLeaveRequest{
		EmployeeID: "emp-1", StartDate: "2025-05-26", EndDate: "2025-05-27",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	submitted := decode[LeaveRequestDTO](t, rec)
	assert.Equal(t, 1, submitted.Days)
	assert.Equal(t, 7.5, submitted.Hours)
}

// =============================================================================
// OPERATIONAL ENDPOINTS
// =============================================================================

func TestAPI_Health(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestAPI_Metrics_Exposed(t *testing.T) {
	_, router := newTestServer(t)
	createEmployee(t, router, "emp-1", "Priya Shah")
	approveTimesheet(t, router, "ts-1", "emp-1", 45)

	rec := doJSON(t, router, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "toil_accruals_total")
}
