/*
service.go - Entry CRUD and the rent-event linkage

PURPOSE:
  Work-log entries are the raw time records; only billable entries by the
  credit worker change rent. The linkage is kept consistent through edits:

  create entry -> create linked work_value_change event
  edit entry   -> update linked event's amount/date (or create/soft-delete
                  it when billability flips)
  delete entry -> soft-delete linked event

  Every linked-event mutation goes through the rent service, so the
  affected periods recalculate automatically.

SEE ALSO:
  - rent/service.go: The mutations this wraps
*/
package worklog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/hearth/rent-engine/rent"
)

const minutesPerHour = 60

// Service manages work-log entries and their linked rent events.
type Service struct {
	Entries EntryStore
	Rent    *rent.Service

	// CreditWorker is the worker whose billable time earns rent credit.
	CreditWorker string

	// HourlyRate converts entry minutes to the linked event's amount.
	// Matches the rent engine's hourly credit rate so hours derived back
	// from the amount equal the hours worked.
	HourlyRate decimal.Decimal

	Clock rent.Clock
	Log   *logrus.Logger
}

func NewService(entries EntryStore, rentSvc *rent.Service, creditWorker string, hourlyRate decimal.Decimal, clock rent.Clock, log *logrus.Logger) *Service {
	if clock == nil {
		clock = rent.SystemClock()
	}
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Service{
		Entries:      entries,
		Rent:         rentSvc,
		CreditWorker: creditWorker,
		HourlyRate:   hourlyRate,
		Clock:        clock,
		Log:          log,
	}
}

// =============================================================================
// ENTRY CRUD
// =============================================================================

// EntryInput carries the caller-supplied fields of an entry.
type EntryInput struct {
	Worker      string
	StartTime   time.Time
	EndTime     time.Time
	Duration    int // minutes
	Description string
	Billable    bool
	Actor       string
}

func (in EntryInput) validate() error {
	if strings.TrimSpace(in.Worker) == "" {
		return &rent.ValidationError{Field: "worker", Reason: "required"}
	}
	if in.StartTime.IsZero() {
		return &rent.ValidationError{Field: "start_time", Reason: "required"}
	}
	if strings.TrimSpace(in.Description) == "" {
		return &rent.ValidationError{Field: "description", Reason: "required"}
	}
	if in.Duration < 0 {
		return &rent.ValidationError{Field: "duration", Reason: "must not be negative"}
	}
	return nil
}

// CreateEntry records completed work. Billable credit-worker entries emit
// a work_value_change event into the rent ledger.
func (s *Service) CreateEntry(ctx context.Context, in EntryInput) (Entry, error) {
	if err := in.validate(); err != nil {
		return Entry{}, err
	}

	now := s.Clock.Now()
	e := Entry{
		ID:          uuid.NewString(),
		Worker:      strings.TrimSpace(in.Worker),
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Duration:    in.Duration,
		Description: strings.TrimSpace(in.Description),
		Billable:    in.Billable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Entries.PutEntry(ctx, e); err != nil {
		return Entry{}, err
	}

	if s.earnsCredit(e) {
		_, err := s.Rent.CreateEvent(ctx, rent.EventInput{
			Type:        rent.EventWorkValue,
			Date:        e.StartTime,
			Amount:      s.creditAmount(e.Duration),
			Description: e.Description,
			WorkLogID:   e.ID,
			Actor:       in.Actor,
		})
		if err != nil {
			return Entry{}, fmt.Errorf("linking rent event: %w", err)
		}
	}

	return e, nil
}

// UpdateEntry edits an entry and keeps its linked rent event consistent:
// amount and date follow the entry, and flipping billability creates or
// soft-deletes the event.
func (s *Service) UpdateEntry(ctx context.Context, id string, in EntryInput) (Entry, error) {
	old, err := s.Entries.GetEntry(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if err := in.validate(); err != nil {
		return Entry{}, err
	}

	updated := old
	updated.Worker = strings.TrimSpace(in.Worker)
	updated.StartTime = in.StartTime
	updated.EndTime = in.EndTime
	updated.Duration = in.Duration
	updated.Description = strings.TrimSpace(in.Description)
	updated.Billable = in.Billable
	updated.UpdatedAt = s.Clock.Now()

	if err := s.Entries.PutEntry(ctx, updated); err != nil {
		return Entry{}, err
	}

	if err := s.syncLinkedEvent(ctx, old, updated, in.Actor); err != nil {
		return Entry{}, err
	}
	return updated, nil
}

// DeleteEntry removes the entry and soft-deletes its linked rent event, so
// the credit drops out of the period totals on the next recalculation.
func (s *Service) DeleteEntry(ctx context.Context, id, actor string) error {
	e, err := s.Entries.GetEntry(ctx, id)
	if err != nil {
		return err
	}

	if err := s.Entries.DeleteEntry(ctx, id); err != nil {
		return err
	}

	linked, err := s.linkedEvent(ctx, e.ID)
	if err != nil {
		return err
	}
	if linked != nil {
		if err := s.Rent.DeleteEvent(ctx, linked.ID, actor); err != nil {
			return fmt.Errorf("soft-deleting linked rent event: %w", err)
		}
	}
	return nil
}

// GetEntry returns one entry.
func (s *Service) GetEntry(ctx context.Context, id string) (Entry, error) {
	return s.Entries.GetEntry(ctx, id)
}

// ListEntries returns entries matching the filter, newest first.
func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	entries, err := s.Entries.ListEntries(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartTime.After(entries[j].StartTime)
	})
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}

// =============================================================================
// LINKED EVENT MAINTENANCE
// =============================================================================

func (s *Service) earnsCredit(e Entry) bool {
	return e.Billable && e.Worker == s.CreditWorker && e.Duration > 0
}

func (s *Service) creditAmount(minutes int) decimal.Decimal {
	hours := decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(minutesPerHour))
	return hours.Mul(s.HourlyRate)
}

// syncLinkedEvent reconciles the linked rent event after an entry edit.
func (s *Service) syncLinkedEvent(ctx context.Context, old, updated Entry, actor string) error {
	linked, err := s.linkedEvent(ctx, old.ID)
	if err != nil {
		return err
	}

	earns := s.earnsCredit(updated)
	switch {
	case linked == nil && earns:
		// Entry became creditable (billability flipped on, or worker
		// changed to the credit worker).
		_, err := s.Rent.CreateEvent(ctx, rent.EventInput{
			Type:        rent.EventWorkValue,
			Date:        updated.StartTime,
			Amount:      s.creditAmount(updated.Duration),
			Description: updated.Description,
			WorkLogID:   updated.ID,
			Actor:       actor,
		})
		return err

	case linked != nil && !earns:
		if linked.Deleted {
			return nil
		}
		return s.Rent.DeleteEvent(ctx, linked.ID, actor)

	case linked != nil && earns:
		if linked.Deleted {
			if err := s.Rent.UndeleteEvent(ctx, linked.ID, actor); err != nil {
				return err
			}
		}
		_, err := s.Rent.UpdateEvent(ctx, linked.ID, rent.EventInput{
			Type:        rent.EventWorkValue,
			Date:        updated.StartTime,
			Amount:      s.creditAmount(updated.Duration),
			Description: updated.Description,
			WorkLogID:   updated.ID,
			Actor:       actor,
		})
		return err
	}
	return nil
}

// linkedEvent finds the rent event produced by a work-log entry, deleted
// or not. Nil when the entry never earned credit.
func (s *Service) linkedEvent(ctx context.Context, entryID string) (*rent.Event, error) {
	events, err := s.Rent.ListEvents(ctx, rent.EventFilter{
		Type:           rent.EventWorkValue,
		IncludeDeleted: true,
	})
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].WorkLogID == entryID {
			return &events[i], nil
		}
	}
	return nil, nil
}

// EntryCredit reports the dollar credit an entry earns (zero for
// non-creditable entries). Display helper for the work page's totals.
func (s *Service) EntryCredit(e Entry) decimal.Decimal {
	if !s.earnsCredit(e) {
		return decimal.Zero
	}
	return s.creditAmount(e.Duration)
}
