/*
service.go - Validated event mutations and period queries

PURPOSE:
  The boundary callers (HTTP layer, work-log subsystem) use. Validates
  input, applies the mutation to the event store, writes an audit entry,
  then hands the affected range to the recalculator.

MUTATION -> RECALCULATION RANGE:
  create    from the new event's period
  edit      from the EARLIER of the old and new period (an edit moving an
            event from June to March must recompute March forward)
  delete    from the event's period
  undelete  from the event's period
  payment   from the payment's period

ERROR RECOVERY:
  Validation and not-found errors surface before anything is written.
  Audit failures are logged and swallowed - losing a display-only audit
  row must not fail the mutation that produced it.

SEE ALSO:
  - recalc.go: Executes the chosen range
  - worklog/: Feeds work_value_change events through CreateEvent
*/
package rent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Service applies validated mutations to the event ledger and keeps the
// derived periods current.
type Service struct {
	Events  EventStore
	Periods PeriodStore
	Audit   AuditLog
	Recalc  *Recalculator
	Clock   Clock
	Log     *logrus.Logger
}

// NewService wires the mutation service. The recalculator shares the
// service's stores, config and clock.
func NewService(events EventStore, periods PeriodStore, audit AuditLog, cfg Config, clock Clock, log *logrus.Logger) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Service{
		Events:  events,
		Periods: periods,
		Audit:   audit,
		Recalc:  NewRecalculator(events, periods, cfg, clock, log),
		Clock:   clock,
		Log:     log,
	}
}

// =============================================================================
// INPUT TYPES
// =============================================================================

// EventInput carries the caller-supplied fields of a create or edit.
// Year/Month override the period derived from Date when set.
type EventInput struct {
	Type        EventType
	Date        time.Time
	Year        int
	Month       time.Month
	Amount      decimal.Decimal
	Description string
	Notes       string
	Actor       string

	// Payment subtype fields.
	PaymentDate   time.Time
	PaymentMethod string

	// Link back to the producing work-log entry, when any.
	WorkLogID string
}

func (in EventInput) validate() error {
	switch in.Type {
	case EventWorkValue, EventPayment, EventAdjustment, EventManual:
	case "":
		return &ValidationError{Field: "type", Reason: "required"}
	default:
		return &ValidationError{Field: "type", Reason: "unknown event type " + string(in.Type)}
	}
	if in.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if strings.TrimSpace(in.Description) == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	if in.Type == EventPayment && in.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "payments must not be negative"}
	}
	return nil
}

// key resolves the rent period the input feeds: an explicit override when
// both parts are set, otherwise the date's month.
func (in EventInput) key() PeriodKey {
	if in.Year != 0 && in.Month != 0 {
		return PeriodKey{Year: in.Year, Month: in.Month}
	}
	return KeyFor(in.Date)
}

// =============================================================================
// MUTATIONS
// =============================================================================

// CreateEvent validates and persists a new event, then recalculates from
// its period forward.
func (s *Service) CreateEvent(ctx context.Context, in EventInput) (Event, error) {
	if err := in.validate(); err != nil {
		return Event{}, err
	}
	key := in.key()
	if err := key.Validate(); err != nil {
		return Event{}, err
	}

	now := s.Clock.Now()
	e := Event{
		ID:            uuid.NewString(),
		Type:          in.Type,
		Date:          normalizeDate(in.Date),
		Year:          key.Year,
		Month:         key.Month,
		Amount:        in.Amount,
		Description:   strings.TrimSpace(in.Description),
		Notes:         in.Notes,
		PaymentDate:   normalizeDate(in.PaymentDate),
		PaymentMethod: in.PaymentMethod,
		WorkLogID:     in.WorkLogID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.Events.PutEvent(ctx, e); err != nil {
		return Event{}, wrapStorage("creating event", err)
	}

	action := AuditEventCreated
	if e.Type == EventPayment {
		action = AuditPaymentRecorded
	}
	s.audit(ctx, action, e.ID, in.Actor, nil, eventSnapshot(e))
	if _, err := s.Recalc.RecalculateFrom(ctx, key); err != nil {
		return e, err
	}
	return e, nil
}

// UpdateEvent edits an existing, non-deleted event. When the edit moves the
// event between periods, recalculation spans both the old and the new
// period, so neither side keeps a stale record.
func (s *Service) UpdateEvent(ctx context.Context, id string, in EventInput) (Event, error) {
	old, err := s.Events.GetEvent(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if old.Deleted {
		return Event{}, ErrEventDeleted
	}
	if err := in.validate(); err != nil {
		return Event{}, err
	}
	newKey := in.key()
	if err := newKey.Validate(); err != nil {
		return Event{}, err
	}

	updated := old
	updated.Type = in.Type
	updated.Date = normalizeDate(in.Date)
	updated.Year = newKey.Year
	updated.Month = newKey.Month
	updated.Amount = in.Amount
	updated.Description = strings.TrimSpace(in.Description)
	updated.Notes = in.Notes
	updated.PaymentDate = normalizeDate(in.PaymentDate)
	updated.PaymentMethod = in.PaymentMethod
	if in.WorkLogID != "" {
		updated.WorkLogID = in.WorkLogID
	}
	updated.UpdatedAt = s.Clock.Now()

	if err := s.Events.PutEvent(ctx, updated); err != nil {
		return Event{}, wrapStorage("updating event", err)
	}

	s.audit(ctx, AuditEventUpdated, id, in.Actor, eventSnapshot(old), eventSnapshot(updated))

	oldKey := PeriodKey{Year: old.Year, Month: old.Month}
	if _, err := s.Recalc.RecalculateSpan(ctx, EarlierOf(oldKey, newKey), LaterOf(oldKey, newKey)); err != nil {
		return updated, err
	}
	return updated, nil
}

// DeleteEvent soft-deletes: the record stays for audit but drops out of all
// future calculation.
func (s *Service) DeleteEvent(ctx context.Context, id, actor string) error {
	return s.setDeleted(ctx, id, actor, true)
}

// UndeleteEvent reverses a soft delete, restoring the event's contribution
// to its period.
func (s *Service) UndeleteEvent(ctx context.Context, id, actor string) error {
	return s.setDeleted(ctx, id, actor, false)
}

func (s *Service) setDeleted(ctx context.Context, id, actor string, deleted bool) error {
	e, err := s.Events.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if e.Deleted == deleted {
		// Already in the requested state; recalculation would be a no-op.
		return nil
	}

	before := eventSnapshot(e)
	e.Deleted = deleted
	e.UpdatedAt = s.Clock.Now()

	if err := s.Events.PutEvent(ctx, e); err != nil {
		return wrapStorage("flagging event", err)
	}

	action := AuditEventDeleted
	if !deleted {
		action = AuditEventUndeleted
	}
	s.audit(ctx, action, id, actor, before, eventSnapshot(e))

	_, err = s.Recalc.RecalculateFrom(ctx, PeriodKey{Year: e.Year, Month: e.Month})
	return err
}

// RecordPayment is the constrained payment path: non-negative amount
// against an explicit period.
func (s *Service) RecordPayment(ctx context.Context, key PeriodKey, amount decimal.Decimal, date time.Time, method, notes, actor string) (Event, error) {
	if err := key.Validate(); err != nil {
		return Event{}, err
	}
	if amount.IsNegative() {
		return Event{}, &ValidationError{Field: "amount", Reason: "payments must not be negative"}
	}
	if date.IsZero() {
		date = s.Clock.Now()
	}

	return s.CreateEvent(ctx, EventInput{
		Type:          EventPayment,
		Date:          date,
		Year:          key.Year,
		Month:         key.Month,
		Amount:        amount,
		Description:   "Rent payment for " + key.String(),
		Notes:         notes,
		PaymentDate:   date,
		PaymentMethod: method,
		Actor:         actor,
	})
}

// RecalculateAll re-derives every period from the earliest event ever.
func (s *Service) RecalculateAll(ctx context.Context, actor string) (int, error) {
	updated, err := s.Recalc.RecalculateAll(ctx)
	if err == nil {
		s.audit(ctx, AuditRecalculation, "all", actor, nil, map[string]any{"periods_updated": updated})
	}
	return updated, err
}

// =============================================================================
// QUERIES
// =============================================================================

// GetPeriod returns the derived record for a period. A period with no
// stored record but a valid key yields a zero-state derivation rather than
// an error, matching what recalculation would produce for it.
func (s *Service) GetPeriod(ctx context.Context, key PeriodKey) (Period, error) {
	if err := key.Validate(); err != nil {
		return Period{}, err
	}
	p, err := s.Periods.GetPeriod(ctx, key)
	if IsNotFound(err) {
		result, cerr := ComputePeriod(key, decimal.Zero, nil, s.Recalc.Config, s.Clock.Now())
		if cerr != nil {
			return Period{}, cerr
		}
		return result.Period, nil
	}
	if err != nil {
		return Period{}, wrapStorage("reading period", err)
	}
	return p, nil
}

// ListPeriods returns all derived periods in chronological order.
func (s *Service) ListPeriods(ctx context.Context) ([]Period, error) {
	periods, err := s.Periods.ListPeriods(ctx)
	if err != nil {
		return nil, wrapStorage("listing periods", err)
	}
	return periods, nil
}

// ListEvents returns events matching the filter, malformed records
// excluded. Deleted events appear only when the filter asks for them.
func (s *Service) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	events, err := s.Events.ListEvents(ctx, filter)
	if err != nil {
		return nil, wrapStorage("listing events", err)
	}
	out := events[:0]
	for _, e := range events {
		if !e.Valid() {
			s.Log.WithFields(logrus.Fields{"event_id": e.ID}).
				Warn("excluding malformed event from listing")
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// GetSummary aggregates totals across every derived period.
func (s *Service) GetSummary(ctx context.Context) (Summary, error) {
	periods, err := s.ListPeriods(ctx)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		TotalPeriods:         len(periods),
		OutstandingBalance:   decimal.Zero,
		TotalDiscountApplied: decimal.Zero,
		TotalAmountPaid:      decimal.Zero,
	}
	for _, p := range periods {
		sum.OutstandingBalance = sum.OutstandingBalance.Add(p.Outstanding())
		sum.TotalDiscountApplied = sum.TotalDiscountApplied.Add(p.DiscountApplied)
		sum.TotalAmountPaid = sum.TotalAmountPaid.Add(p.AmountPaid)
	}
	return sum, nil
}

// QueryAudit returns recent audit entries for an entity id ("" = all).
func (s *Service) QueryAudit(ctx context.Context, entityID string, limit int) ([]AuditEntry, error) {
	if s.Audit == nil {
		return nil, nil
	}
	entries, err := s.Audit.QueryAudit(ctx, entityID, limit)
	if err != nil {
		return nil, wrapStorage("querying audit log", err)
	}
	return entries, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) audit(ctx context.Context, action AuditAction, entityID, actor string, before, after map[string]any) {
	if s.Audit == nil {
		return
	}
	if actor == "" {
		actor = "system"
	}
	entry := AuditEntry{
		ID:         uuid.NewString(),
		Action:     action,
		EntityType: "rent_event",
		EntityID:   entityID,
		Actor:      actor,
		Timestamp:  s.Clock.Now(),
		Before:     before,
		After:      after,
	}
	if err := s.Audit.AppendAudit(ctx, entry); err != nil {
		s.Log.WithFields(logrus.Fields{"action": action, "entity_id": entityID}).
			WithError(err).Warn("audit append failed")
	}
}

func eventSnapshot(e Event) map[string]any {
	snap := map[string]any{
		"type":        string(e.Type),
		"date":        e.Date.Format("2006-01-02"),
		"year":        e.Year,
		"month":       int(e.Month),
		"amount":      e.Amount.String(),
		"description": e.Description,
		"deleted":     e.Deleted,
	}
	if e.Notes != "" {
		snap["notes"] = e.Notes
	}
	if e.PaymentMethod != "" {
		snap["payment_method"] = e.PaymentMethod
	}
	if e.WorkLogID != "" {
		snap["work_log_id"] = e.WorkLogID
	}
	return snap
}

func normalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsClientError(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
