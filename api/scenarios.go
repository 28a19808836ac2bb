/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates employees, ledger
	entries, and leave requests that demonstrate specific features.

AVAILABLE SCENARIOS:

	new-starter:     Employee with no TOIL yet, shows the empty state
	busy-season:     Several overtime weeks accrued, one pending request
	expiring-soon:   Accruals about to hit their six month expiry
	cancelled-leave: Approved leave cancelled, reversal in the ledger

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create employees
 3. Feed timesheet approvals through the accrual engine
 4. Optionally submit/approve/cancel leave through the redemption gate

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "busy-season"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Domain wiring the loaders reuse
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/toil-engine/toil"
)

// =============================================================================
// SCENARIO CATALOG
// =============================================================================

// Scenario describes a loadable demo dataset.
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []Scenario{
	{
		ID:          "new-starter",
		Name:        "New starter",
		Description: "One employee with no TOIL accrued yet",
	},
	{
		ID:          "busy-season",
		Name:        "Busy season",
		Description: "Overtime accrued across January, one pending leave request",
	},
	{
		ID:          "expiring-soon",
		Name:        "Expiring soon",
		Description: "Accruals approaching their six month expiry date",
	},
	{
		ID:          "cancelled-leave",
		Name:        "Cancelled leave",
		Description: "Approved leave cancelled, hours restored via reversal",
	},
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the database and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "new-starter":
		err = loadNewStarterScenario(ctx, h)
	case "busy-season":
		err = loadBusySeasonScenario(ctx, h)
	case "expiring-soon":
		err = loadExpiringSoonScenario(ctx, h)
	case "cancelled-leave":
		err = loadCancelledLeaveScenario(ctx, h)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	if err != nil {
		h.Log.WithError(err).WithField("scenario", req.ScenarioID).Error("scenario load failed")
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"loaded":   req.ScenarioID,
		"employee": "emp-demo",
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func seedEmployee(ctx context.Context, h *Handler) error {
	return h.Store.SaveEmployee(ctx, toil.Employee{
		ID:        "emp-demo",
		Name:      "Priya Shah",
		Email:     "priya@example.com",
		CreatedAt: time.Now().UTC(),
	})
}

// accrueWeek runs a worked week through the real accrual engine so demo
// data takes the production write path.
func accrueWeek(ctx context.Context, h *Handler, timesheetID string, workedHours float64, approvedAt time.Time) error {
	_, err := h.Accrual.Accrue(ctx, toil.TimesheetApproval{
		TimesheetID: timesheetID,
		EmployeeID:  "emp-demo",
		WorkedHours: workedHours,
		Status:      toil.TimesheetApproved,
		ApprovedAt:  approvedAt,
		WeekEnding:  approvedAt,
	})
	return err
}

func loadNewStarterScenario(ctx context.Context, h *Handler) error {
	return seedEmployee(ctx, h)
}

func loadBusySeasonScenario(ctx context.Context, h *Handler) error {
	if err := seedEmployee(ctx, h); err != nil {
		return err
	}

	// Self-assessment deadline crunch: three heavy weeks in a row.
	now := time.Now().UTC()
	weeks := []struct {
		id      string
		hours   float64
		daysAgo int
	}{
		{"ts-demo-1", 45, 28},
		{"ts-demo-2", 48.5, 21},
		{"ts-demo-3", 42, 14},
	}
	for _, wk := range weeks {
		if err := accrueWeek(ctx, h, wk.id, wk.hours, now.AddDate(0, 0, -wk.daysAgo)); err != nil {
			return err
		}
	}

	// A recovery day awaiting manager review.
	start := nextMonday(now)
	_, err := h.Gate.Submit(ctx, "emp-demo", start, start, "recovery day after busy season")
	return err
}

func loadExpiringSoonScenario(ctx context.Context, h *Handler) error {
	if err := seedEmployee(ctx, h); err != nil {
		return err
	}

	now := time.Now().UTC()
	// Accrued five and a half months ago: expires in roughly two weeks.
	if err := accrueWeek(ctx, h, "ts-demo-old", 45, now.AddDate(0, -5, -15)); err != nil {
		return err
	}
	// Recent accrual, nowhere near expiry.
	return accrueWeek(ctx, h, "ts-demo-new", 41, now.AddDate(0, 0, -7))
}

func loadCancelledLeaveScenario(ctx context.Context, h *Handler) error {
	if err := seedEmployee(ctx, h); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := accrueWeek(ctx, h, "ts-demo-1", 45, now.AddDate(0, 0, -14)); err != nil {
		return err
	}

	start := nextMonday(now)
	req, err := h.Gate.Submit(ctx, "emp-demo", start, start, "plans changed")
	if err != nil {
		return err
	}
	if _, err := h.Gate.Approve(ctx, req.ID, "mgr-demo", "approved"); err != nil {
		return err
	}
	_, err = h.Gate.Cancel(ctx, req.ID)
	return err
}

// nextMonday returns the first Monday strictly after t.
func nextMonday(t time.Time) time.Time {
	d := toil.DateOnly(t).AddDate(0, 0, 1)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
