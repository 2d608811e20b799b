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

MONEY AND HOURS:
  Domain code carries decimal.Decimal. DTOs expose plain JSON numbers,
  which is what the frontend consumes. The conversion happens only at
  this boundary.

VALIDATION:
  Validation is done in handlers and services, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - rent/types.go: Domain model
*/
package api

import (
	"time"

	"github.com/hearth/rent-engine/rent"
	"github.com/hearth/rent-engine/worklog"
)

// =============================================================================
// RENT TYPES
// =============================================================================

// PeriodDTO represents one month's rent calculation in API responses.
type PeriodDTO struct {
	Year              int     `json:"year"`
	Month             int     `json:"month"`
	HoursWorked       float64 `json:"hours_worked"`
	HoursFromPrevious float64 `json:"hours_from_previous"`
	HoursApplied      float64 `json:"hours_applied"`
	HoursCarriedOver  float64 `json:"hours_carried_over"`
	DiscountApplied   float64 `json:"discount_applied"`
	AmountDue         float64 `json:"amount_due"`
	AmountPaid        float64 `json:"amount_paid"`
	PaymentStatus     string  `json:"payment_status"`
	CalculatedAt      string  `json:"calculated_at,omitempty"`
}

// SummaryDTO is the aggregate view across all periods.
type SummaryDTO struct {
	TotalPeriods         int     `json:"total_periods"`
	OutstandingBalance   float64 `json:"outstanding_balance"`
	TotalDiscountApplied float64 `json:"total_discount_applied"`
	TotalAmountPaid      float64 `json:"total_amount_paid"`
}

// EventDTO represents a rent event in API responses.
type EventDTO struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Date          string  `json:"date"`
	Year          int     `json:"year"`
	Month         int     `json:"month"`
	Amount        float64 `json:"amount"`
	Description   string  `json:"description"`
	Notes         string  `json:"notes,omitempty"`
	PaymentDate   string  `json:"payment_date,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	WorkLogID     string  `json:"work_log_id,omitempty"`
	Deleted       bool    `json:"deleted,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

// CreateEventRequest is the request to create or update a rent event.
type CreateEventRequest struct {
	Type        string  `json:"type"`
	Date        string  `json:"date"`
	Year        int     `json:"year,omitempty"`
	Month       int     `json:"month,omitempty"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Notes       string  `json:"notes,omitempty"`
	Actor       string  `json:"actor,omitempty"`
}

// RecordPaymentRequest is the request to record a rent payment against
// a period.
type RecordPaymentRequest struct {
	Year          int     `json:"year"`
	Month         int     `json:"month"`
	Amount        float64 `json:"amount"`
	PaymentDate   string  `json:"payment_date"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	Actor         string  `json:"actor,omitempty"`
}

// RecalculateResponse reports how far a full recalculation got.
type RecalculateResponse struct {
	PeriodsUpdated int `json:"periods_updated"`
}

// AuditEntryDTO represents one audit record in API responses.
type AuditEntryDTO struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Actor      string         `json:"actor"`
	Timestamp  string         `json:"timestamp"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
}

// =============================================================================
// WORK LOG TYPES
// =============================================================================

// WorkLogDTO represents a completed work entry in API responses.
// Duration is minutes.
type WorkLogDTO struct {
	ID          string  `json:"id"`
	Worker      string  `json:"worker"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Duration    int     `json:"duration"`
	Description string  `json:"description"`
	Billable    bool    `json:"billable"`
	Credit      float64 `json:"credit"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// CreateWorkLogRequest is the request to create or update a work entry.
type CreateWorkLogRequest struct {
	Worker      string `json:"worker"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Duration    int    `json:"duration"`
	Description string `json:"description"`
	Billable    *bool  `json:"billable,omitempty"`
	Actor       string `json:"actor,omitempty"`
}

// TimerRequest names the worker a timer operation applies to. Stop also
// carries the description for the resulting work entry.
type TimerRequest struct {
	Worker      string `json:"worker"`
	Description string `json:"description,omitempty"`
}

// TimerStatusDTO reports the state of a worker's timer.
type TimerStatusDTO struct {
	Active         bool   `json:"active"`
	SessionID      string `json:"session_id,omitempty"`
	Worker         string `json:"worker,omitempty"`
	Status         string `json:"status,omitempty"`
	StartedAt      string `json:"started_at,omitempty"`
	ElapsedMinutes int    `json:"elapsed_minutes"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`

	// Set only for partial recalculation failures.
	PeriodsUpdated *int `json:"periods_updated,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toPeriodDTO(p rent.Period) PeriodDTO {
	dto := PeriodDTO{
		Year:              p.Key.Year,
		Month:             int(p.Key.Month),
		HoursWorked:       p.HoursWorked.InexactFloat64(),
		HoursFromPrevious: p.HoursFromPrevious.InexactFloat64(),
		HoursApplied:      p.HoursApplied.InexactFloat64(),
		HoursCarriedOver:  p.HoursCarriedOver.InexactFloat64(),
		DiscountApplied:   p.DiscountApplied.InexactFloat64(),
		AmountDue:         p.AmountDue.InexactFloat64(),
		AmountPaid:        p.AmountPaid.InexactFloat64(),
		PaymentStatus:     string(p.Status()),
	}
	if !p.CalculatedAt.IsZero() {
		dto.CalculatedAt = p.CalculatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toEventDTO(e rent.Event) EventDTO {
	dto := EventDTO{
		ID:            e.ID,
		Type:          string(e.Type),
		Date:          e.Date.Format("2006-01-02"),
		Year:          e.Year,
		Month:         int(e.Month),
		Amount:        e.Amount.InexactFloat64(),
		Description:   e.Description,
		Notes:         e.Notes,
		PaymentMethod: e.PaymentMethod,
		WorkLogID:     e.WorkLogID,
		Deleted:       e.Deleted,
	}
	if !e.PaymentDate.IsZero() {
		dto.PaymentDate = e.PaymentDate.Format("2006-01-02")
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !e.UpdatedAt.IsZero() {
		dto.UpdatedAt = e.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toAuditEntryDTO(a rent.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:         a.ID,
		Action:     string(a.Action),
		EntityType: a.EntityType,
		EntityID:   a.EntityID,
		Actor:      a.Actor,
		Timestamp:  a.Timestamp.UTC().Format(time.RFC3339),
		Before:     a.Before,
		After:      a.After,
	}
}

func (h *Handler) toWorkLogDTO(e worklog.Entry) WorkLogDTO {
	dto := WorkLogDTO{
		ID:          e.ID,
		Worker:      e.Worker,
		StartTime:   e.StartTime.UTC().Format(time.RFC3339),
		EndTime:     e.EndTime.UTC().Format(time.RFC3339),
		Duration:    e.Duration,
		Description: e.Description,
		Billable:    e.Billable,
		Credit:      h.Work.EntryCredit(e).InexactFloat64(),
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !e.UpdatedAt.IsZero() {
		dto.UpdatedAt = e.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toTimerStatusDTO(s worklog.Session, active bool, elapsed int) TimerStatusDTO {
	if !active {
		return TimerStatusDTO{Active: false}
	}
	return TimerStatusDTO{
		Active:         true,
		SessionID:      s.ID,
		Worker:         s.Worker,
		Status:         string(s.Status),
		StartedAt:      s.StartedAt.UTC().Format(time.RFC3339),
		ElapsedMinutes: elapsed,
	}
}
