/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/toil-engine/toil"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BalanceDTO is the employee-facing balance summary.
type BalanceDTO struct {
	EmployeeID   string  `json:"employee_id"`
	BalanceHours float64 `json:"balance_hours"`
	BalanceDays  float64 `json:"balance_days"`
	AsOf         string  `json:"as_of"`
}

// EntryDTO represents a ledger entry.
type EntryDTO struct {
	ID              string  `json:"id"`
	EmployeeID      string  `json:"employee_id"`
	Kind            string  `json:"kind"`
	Hours           float64 `json:"hours"`
	SourceReference string  `json:"source_reference,omitempty"`
	AccrualDate     string  `json:"accrual_date,omitempty"`
	ExpiryDate      string  `json:"expiry_date,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// ApproveTimesheetRequest is the body for timesheet approval.
type ApproveTimesheetRequest struct {
	EmployeeID  string  `json:"employee_id"`
	WorkedHours float64 `json:"worked_hours"`
	Status      string  `json:"status"`
	WeekEnding  string  `json:"week_ending,omitempty"`
}

// AccrualResponseDTO is returned after a timesheet approval.
type AccrualResponseDTO struct {
	Accrued      bool    `json:"accrued"`
	HoursAccrued float64 `json:"hours_accrued"`
	ExpiryDate   string  `json:"expiry_date,omitempty"`
	Message      string  `json:"message"`
}

// ExpiringSliceDTO is one accrual remainder at risk of forfeiture.
type ExpiringSliceDTO struct {
	EntryID        string  `json:"entry_id"`
	AccrualDate    string  `json:"accrual_date"`
	ExpiryDate     string  `json:"expiry_date"`
	RemainingHours float64 `json:"remaining_hours"`
}

// ExpiringBalanceDTO summarises hours expiring within the window.
type ExpiringBalanceDTO struct {
	EmployeeID         string             `json:"employee_id"`
	DaysAhead          int                `json:"days_ahead"`
	TotalExpiringHours float64            `json:"total_expiring_hours"`
	TotalExpiringDays  float64            `json:"total_expiring_days"`
	Slices             []ExpiringSliceDTO `json:"expiring"`
}

// SubmitLeaveRequest is the body for a leave request submission.
type SubmitLeaveRequest struct {
	EmployeeID string `json:"employee_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Notes      string `json:"notes,omitempty"`
}

// ReviewLeaveRequest is the body for approve/reject actions.
type ReviewLeaveRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Comments   string `json:"comments,omitempty"`
}

// LeaveRequestDTO represents a leave request.
type LeaveRequestDTO struct {
	ID             string  `json:"id"`
	EmployeeID     string  `json:"employee_id"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	Days           int     `json:"days"`
	Hours          float64 `json:"hours"`
	Status         string  `json:"status"`
	Notes          string  `json:"notes,omitempty"`
	ReviewedBy     string  `json:"reviewed_by,omitempty"`
	ReviewComments string  `json:"review_comments,omitempty"`
	ReviewedAt     string  `json:"reviewed_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// SweepResponseDTO is returned by the expiry sweep endpoints.
type SweepResponseDTO struct {
	Success            bool    `json:"success"`
	EmployeesProcessed int     `json:"employees_processed"`
	EmployeesAffected  int     `json:"employees_affected"`
	EntriesExpired     int     `json:"entries_expired"`
	HoursExpired       float64 `json:"hours_expired"`
	Failures           int     `json:"failures"`
}

// HolidayDTO represents a bank holiday.
type HolidayDTO struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Name string `json:"name"`
}

// CreateHolidayRequest is the body for adding a holiday.
type CreateHolidayRequest struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEntryDTO(e toil.Entry) EntryDTO {
	hours, _ := e.Hours.Value.Float64()
	dto := EntryDTO{
		ID:              string(e.ID),
		EmployeeID:      string(e.EmployeeID),
		Kind:            string(e.Kind),
		Hours:           hours,
		SourceReference: e.SourceReference,
		Reason:          e.Reason,
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
	}
	if !e.AccrualDate.IsZero() {
		dto.AccrualDate = e.AccrualDate.Format("2006-01-02")
	}
	if !e.ExpiryDate.IsZero() {
		dto.ExpiryDate = e.ExpiryDate.Format("2006-01-02")
	}
	return dto
}

func toEntryDTOs(entries []toil.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toLeaveRequestDTO(req toil.LeaveRequest) LeaveRequestDTO {
	hours, _ := req.Hours.Float64()
	dto := LeaveRequestDTO{
		ID:             req.ID,
		EmployeeID:     string(req.EmployeeID),
		StartDate:      req.StartDate.Format("2006-01-02"),
		EndDate:        req.EndDate.Format("2006-01-02"),
		Days:           req.Days,
		Hours:          hours,
		Status:         string(req.Status),
		Notes:          req.Notes,
		ReviewedBy:     req.ReviewedBy,
		ReviewComments: req.ReviewComments,
		CreatedAt:      req.CreatedAt.Format(time.RFC3339),
	}
	if !req.ReviewedAt.IsZero() {
		dto.ReviewedAt = req.ReviewedAt.Format(time.RFC3339)
	}
	return dto
}

func toLeaveRequestDTOs(reqs []toil.LeaveRequest) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(reqs))
	for i, r := range reqs {
		dtos[i] = toLeaveRequestDTO(r)
	}
	return dtos
}

func toSweepResponseDTO(summary *toil.SweepSummary) SweepResponseDTO {
	hours, _ := summary.HoursExpired.Float64()
	return SweepResponseDTO{
		Success:            len(summary.Failures) == 0,
		EmployeesProcessed: summary.EmployeesProcessed,
		EmployeesAffected:  summary.EmployeesAffected,
		EntriesExpired:     summary.EntriesExpired,
		HoursExpired:       hours,
		Failures:           len(summary.Failures),
	}
}
