/*
handlers.go - HTTP API handlers for the rent tracking system

PURPOSE:
  Exposes the rent engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Rent:
    GET    /rent/summary               Aggregate across all periods
    GET    /rent/periods               All calculated periods
    GET    /rent/period/{year}/{month} One period (computed on the
                                           fly when not yet stored)
    POST   /rent/recalculate-all       Full chronological recalculation
    POST   /rent/payment               Record a rent payment

  Events:
    GET    /rent/events                List events (filterable)
    POST   /rent/events                Create event
    GET    /rent/events/{id}           Get event
    PUT    /rent/events/{id}           Update event
    DELETE /rent/events/{id}           Soft-delete event
    POST   /rent/events/{id}/undelete  Restore a soft-deleted event
    GET    /rent/audit                 Audit trail

  Work logs:
    GET    /work-logs                  List entries
    POST   /work-logs                  Create entry
    GET    /work-logs/{id}             Get entry
    PUT    /work-logs/{id}             Update entry
    DELETE /work-logs/{id}             Delete entry

  Timer:
    POST   /timer/start                Start a session
    POST   /timer/pause                Pause the active session
    POST   /timer/resume               Resume a paused session
    POST   /timer/stop                 Stop and create a work entry
    POST   /timer/cancel               Discard the active session
    GET    /timer/status               Current session state

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid period, deleted-event mutation
  - 404: Resource not found
  - 409: Timer state conflicts
  - 500: Storage errors; partial recalculation failures additionally
         carry periods_updated so the caller knows how far it got

SECURITY NOTE:
  Currently NO authentication or authorization. This is a personal
  tracker deployed on a private network.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/hearth/rent-engine/rent"
	"github.com/hearth/rent-engine/worklog"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Rent  *rent.Service
	Work  *worklog.Service
	Timer *worklog.Timer
	Log   *logrus.Logger

	// DefaultWorker is used when a timer request omits the worker.
	DefaultWorker string
}

// NewHandler creates a new handler.
func NewHandler(rentSvc *rent.Service, workSvc *worklog.Service, timer *worklog.Timer, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		Rent:  rentSvc,
		Work:  workSvc,
		Timer: timer,
		Log:   log,
	}
}

// =============================================================================
// RENT HANDLERS
// =============================================================================

// GetSummary returns the aggregate view across all periods.
// GET /rent/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Rent.GetSummary(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to compute summary", err)
		return
	}

	writeJSON(w, http.StatusOK, SummaryDTO{
		TotalPeriods:         summary.TotalPeriods,
		OutstandingBalance:   summary.OutstandingBalance.InexactFloat64(),
		TotalDiscountApplied: summary.TotalDiscountApplied.InexactFloat64(),
		TotalAmountPaid:      summary.TotalAmountPaid.InexactFloat64(),
	})
}

// ListPeriods returns all calculated periods in chronological order.
// GET /rent/periods
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Rent.ListPeriods(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list periods", err)
		return
	}

	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPeriod returns one period. A month with no stored record yet comes
// back as a zero-state calculation, not a 404.
// GET /rent/period/{year}/{month}
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	key, err := periodKeyFromURL(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	period, err := h.Rent.GetPeriod(r.Context(), key)
	if err != nil {
		h.writeDomainError(w, "Failed to get period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(period))
}

// RecalculateAll rebuilds every period from the earliest event forward.
// POST /rent/recalculate-all
func (h *Handler) RecalculateAll(w http.ResponseWriter, r *http.Request) {
	updated, err := h.Rent.RecalculateAll(r.Context(), actorFromRequest(r))
	if err != nil {
		h.writeDomainError(w, "Recalculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RecalculateResponse{PeriodsUpdated: updated})
}

// RecordPayment records a rent payment against a period.
// POST /rent/payment
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	key := rent.PeriodKey{Year: req.Year, Month: time.Month(req.Month)}
	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment_date", err)
		return
	}

	event, err := h.Rent.RecordPayment(r.Context(), key,
		decimal.NewFromFloat(req.Amount), paymentDate,
		req.PaymentMethod, req.Notes, req.Actor)
	if err != nil {
		h.writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventDTO(event))
}

// QueryAudit returns audit entries newest-first.
// GET /rent/audit?entity_id=&limit=
func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	entries, err := h.Rent.QueryAudit(r.Context(), r.URL.Query().Get("entity_id"), limit)
	if err != nil {
		h.writeDomainError(w, "Failed to query audit log", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, a := range entries {
		dtos[i] = toAuditEntryDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

// ListEvents returns events matching the query filters.
// GET /rent/events?year=&month=&type=&include_deleted=
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := rent.EventFilter{
		Type:           rent.EventType(q.Get("type")),
		IncludeDeleted: q.Get("include_deleted") == "true",
	}
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		filter.Year = year
	}
	if raw := q.Get("month"); raw != "" {
		month, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month", err)
			return
		}
		filter.Month = time.Month(month)
	}

	events, err := h.Rent.ListEvents(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list events", err)
		return
	}

	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEvent creates a rent event and triggers recalculation.
// POST /rent/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeEventInput(w, r)
	if !ok {
		return
	}

	event, err := h.Rent.CreateEvent(r.Context(), input)
	if err != nil {
		h.writeDomainError(w, "Failed to create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventDTO(event))
}

// GetEvent returns one event, deleted or not.
// GET /rent/events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.Rent.Events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get event", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// UpdateEvent replaces an event's fields and triggers recalculation
// from the earlier of the old and new periods.
// PUT /rent/events/{id}
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeEventInput(w, r)
	if !ok {
		return
	}

	event, err := h.Rent.UpdateEvent(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.writeDomainError(w, "Failed to update event", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// DeleteEvent soft-deletes an event. The record stays queryable and can
// be restored via undelete.
// DELETE /rent/events/{id}
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	err := h.Rent.DeleteEvent(r.Context(), chi.URLParam(r, "id"), actorFromRequest(r))
	if err != nil {
		h.writeDomainError(w, "Failed to delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UndeleteEvent restores a soft-deleted event.
// POST /rent/events/{id}/undelete
func (h *Handler) UndeleteEvent(w http.ResponseWriter, r *http.Request) {
	err := h.Rent.UndeleteEvent(r.Context(), chi.URLParam(r, "id"), actorFromRequest(r))
	if err != nil {
		h.writeDomainError(w, "Failed to undelete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeEventInput(w http.ResponseWriter, r *http.Request) (rent.EventInput, bool) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return rent.EventInput{}, false
	}

	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return rent.EventInput{}, false
	}

	return rent.EventInput{
		Type:        rent.EventType(req.Type),
		Date:        date,
		Year:        req.Year,
		Month:       time.Month(req.Month),
		Amount:      decimal.NewFromFloat(req.Amount),
		Description: req.Description,
		Notes:       req.Notes,
		Actor:       req.Actor,
	}, true
}

// =============================================================================
// WORK LOG HANDLERS
// =============================================================================

// ListWorkLogs returns entries newest-first.
// GET /work-logs?worker=&limit=
func (h *Handler) ListWorkLogs(w http.ResponseWriter, r *http.Request) {
	filter := worklog.EntryFilter{Worker: r.URL.Query().Get("worker")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	entries, err := h.Work.ListEntries(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list work logs", err)
		return
	}

	dtos := make([]WorkLogDTO, len(entries))
	for i, e := range entries {
		dtos[i] = h.toWorkLogDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateWorkLog creates a work entry. Creditable entries also create a
// linked rent event.
// POST /work-logs
func (h *Handler) CreateWorkLog(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeEntryInput(w, r)
	if !ok {
		return
	}

	entry, err := h.Work.CreateEntry(r.Context(), input)
	if err != nil {
		h.writeDomainError(w, "Failed to create work log", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toWorkLogDTO(entry))
}

// GetWorkLog returns one entry.
// GET /work-logs/{id}
func (h *Handler) GetWorkLog(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Work.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get work log", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWorkLogDTO(entry))
}

// UpdateWorkLog updates an entry and keeps its linked rent event in sync.
// PUT /work-logs/{id}
func (h *Handler) UpdateWorkLog(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeEntryInput(w, r)
	if !ok {
		return
	}

	entry, err := h.Work.UpdateEntry(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.writeDomainError(w, "Failed to update work log", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toWorkLogDTO(entry))
}

// DeleteWorkLog removes an entry and soft-deletes its linked rent event.
// DELETE /work-logs/{id}
func (h *Handler) DeleteWorkLog(w http.ResponseWriter, r *http.Request) {
	err := h.Work.DeleteEntry(r.Context(), chi.URLParam(r, "id"), actorFromRequest(r))
	if err != nil {
		h.writeDomainError(w, "Failed to delete work log", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeEntryInput(w http.ResponseWriter, r *http.Request) (worklog.EntryInput, bool) {
	var req CreateWorkLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return worklog.EntryInput{}, false
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_time", err)
		return worklog.EntryInput{}, false
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_time", err)
		return worklog.EntryInput{}, false
	}

	billable := true
	if req.Billable != nil {
		billable = *req.Billable
	}

	return worklog.EntryInput{
		Worker:      req.Worker,
		StartTime:   start,
		EndTime:     end,
		Duration:    req.Duration,
		Description: req.Description,
		Billable:    billable,
		Actor:       req.Actor,
	}, true
}

// =============================================================================
// TIMER HANDLERS
// =============================================================================

// StartTimer starts a session for the worker.
// POST /timer/start
func (h *Handler) StartTimer(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTimerRequest(w, r)
	if !ok {
		return
	}

	session, err := h.Timer.Start(r.Context(), req.Worker)
	if err != nil {
		h.writeDomainError(w, "Failed to start timer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimerStatusDTO(session, true, 0))
}

// PauseTimer pauses the active session.
// POST /timer/pause
func (h *Handler) PauseTimer(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTimerRequest(w, r)
	if !ok {
		return
	}

	session, err := h.Timer.Pause(r.Context(), req.Worker)
	if err != nil {
		h.writeDomainError(w, "Failed to pause timer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimerStatusDTO(session, true, session.AccumulatedMin))
}

// ResumeTimer resumes a paused session.
// POST /timer/resume
func (h *Handler) ResumeTimer(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTimerRequest(w, r)
	if !ok {
		return
	}

	session, err := h.Timer.Resume(r.Context(), req.Worker)
	if err != nil {
		h.writeDomainError(w, "Failed to resume timer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimerStatusDTO(session, true, session.AccumulatedMin))
}

// StopTimer completes the session and creates the work entry.
// POST /timer/stop
func (h *Handler) StopTimer(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTimerRequest(w, r)
	if !ok {
		return
	}

	entry, err := h.Timer.Stop(r.Context(), req.Worker, req.Description)
	if err != nil {
		h.writeDomainError(w, "Failed to stop timer", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toWorkLogDTO(entry))
}

// CancelTimer discards the active session without creating an entry.
// POST /timer/cancel
func (h *Handler) CancelTimer(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTimerRequest(w, r)
	if !ok {
		return
	}

	if err := h.Timer.Cancel(r.Context(), req.Worker); err != nil {
		h.writeDomainError(w, "Failed to cancel timer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TimerStatus reports the worker's current session state.
// GET /timer/status?worker=
func (h *Handler) TimerStatus(w http.ResponseWriter, r *http.Request) {
	worker := r.URL.Query().Get("worker")
	if worker == "" {
		worker = h.DefaultWorker
	}
	if worker == "" {
		writeError(w, http.StatusBadRequest, "worker is required", nil)
		return
	}

	session, active, err := h.Timer.Status(r.Context(), worker)
	if err != nil {
		h.writeDomainError(w, "Failed to get timer status", err)
		return
	}

	elapsed := 0
	if active {
		elapsed = session.ElapsedMinutes(h.Timer.Clock.Now())
	}
	writeJSON(w, http.StatusOK, toTimerStatusDTO(session, active, elapsed))
}

func (h *Handler) decodeTimerRequest(w http.ResponseWriter, r *http.Request) (TimerRequest, bool) {
	var req TimerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return req, false
	}
	if req.Worker == "" {
		req.Worker = h.DefaultWorker
	}
	if req.Worker == "" {
		writeError(w, http.StatusBadRequest, "worker is required", nil)
		return req, false
	}
	return req, true
}

// =============================================================================
// HELPERS
// =============================================================================

func periodKeyFromURL(r *http.Request) (rent.PeriodKey, error) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return rent.PeriodKey{}, fmt.Errorf("invalid year: %w", err)
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		return rent.PeriodKey{}, fmt.Errorf("invalid month: %w", err)
	}
	return rent.PeriodKey{Year: year, Month: time.Month(month)}, nil
}

// parseDate accepts a bare date or a full RFC3339 timestamp.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func actorFromRequest(r *http.Request) string {
	return r.URL.Query().Get("actor")
}

// writeDomainError maps domain errors to HTTP statuses. Partial
// recalculation failures carry the progress count in the payload.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	var recalcErr *rent.RecalcError
	if errors.As(err, &recalcErr) {
		h.Log.WithError(err).Error(message)
		resp := ErrorResponse{Error: message, Details: err.Error()}
		resp.PeriodsUpdated = &recalcErr.PeriodsUpdated
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	switch {
	case rent.IsNotFound(err) || errors.Is(err, worklog.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case rent.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, worklog.ErrSessionActive),
		errors.Is(err, worklog.ErrNoActiveSession),
		errors.Is(err, worklog.ErrNotPaused):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.Log.WithError(err).Error(message)
		writeError(w, http.StatusInternalServerError, message, err)
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
