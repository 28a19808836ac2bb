package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_ListCatalog(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	catalog := decode[[]Scenario](t, rec)
	require.Len(t, catalog, 4)
	assert.Equal(t, "new-starter", catalog[0].ID)
}

func TestScenarios_LoadUnknown_400(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load",
		map[string]string{"scenario_id": "nope"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenarios_BusySeason_SeedsAccrualsAndPendingLeave(t *testing.T) {
	// GIVEN: A clean server
	// WHEN: The busy-season scenario loads
	// THEN: The demo employee holds three weeks of overtime and one
	//       request sits in the pending queue

	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load",
		map[string]string{"scenario_id": "busy-season"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/employees/emp-demo/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decode[BalanceDTO](t, rec)
	// 7.5 + 11 + 4.5 overtime hours.
	assert.Equal(t, 23.0, balance.BalanceHours)

	rec = doJSON(t, router, http.MethodGet, "/api/leave/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]LeaveRequestDTO](t, rec), 1)
}

func TestScenarios_ExpiringSoon_WithinLookahead(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load",
		map[string]string{"scenario_id": "expiring-soon"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/employees/emp-demo/toil/expiring", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	expiring := decode[ExpiringBalanceDTO](t, rec)
	require.Len(t, expiring.Slices, 1, "only the old accrual is inside the 30 day window")
	assert.Equal(t, 7.5, expiring.TotalExpiringHours)
}

func TestScenarios_CancelledLeave_ReversalVisible(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load",
		map[string]string{"scenario_id": "cancelled-leave"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/employees/emp-demo/toil/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]EntryDTO](t, rec)
	require.Len(t, history, 3)
	assert.Equal(t, "reversal", history[2].Kind)

	// Net balance back to the original accrual.
	rec = doJSON(t, router, http.MethodGet, "/api/employees/emp-demo/balance", nil)
	assert.Equal(t, 7.5, decode[BalanceDTO](t, rec).BalanceHours)
}

func TestScenarios_LoadResetsPreviousData(t *testing.T) {
	_, router := newTestServer(t)
	createEmployee(t, router, "emp-1", "Old Data")

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load",
		map[string]string{"scenario_id": "new-starter"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/employees", nil)
	employees := decode[[]EmployeeDTO](t, rec)
	require.Len(t, employees, 1)
	assert.Equal(t, "emp-demo", employees[0].ID)
}
