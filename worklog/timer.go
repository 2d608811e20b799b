/*
timer.go - Timer state machine

PURPOSE:
  Drives the per-worker session state machine. Transitions persist the
  session before returning, so a browser refresh (or server restart) picks
  the timer back up where it was.

TRANSITIONS:
  Start:  no non-terminal session -> active
  Pause:  active -> paused (banks the live minutes)
  Resume: paused -> active
  Stop:   active|paused -> completed (emits an Entry via the Service)
  Cancel: active|paused -> cancelled (no Entry)

SEE ALSO:
  - service.go: CompleteSession turns the stop into an Entry + rent event
*/
package worklog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hearth/rent-engine/rent"
)

// Timer drives session transitions for workers.
type Timer struct {
	Sessions SessionStore
	Service  *Service
	Clock    rent.Clock
	Log      *logrus.Logger
}

func NewTimer(sessions SessionStore, service *Service, clock rent.Clock, log *logrus.Logger) *Timer {
	if clock == nil {
		clock = rent.SystemClock()
	}
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Timer{Sessions: sessions, Service: service, Clock: clock, Log: log}
}

// Start begins a session. Fails with ErrSessionActive if the worker
// already has a running or paused one.
func (t *Timer) Start(ctx context.Context, worker string) (Session, error) {
	worker = strings.TrimSpace(worker)
	if worker == "" {
		return Session{}, &rent.ValidationError{Field: "worker", Reason: "required"}
	}

	if _, ok, err := t.Sessions.ActiveSession(ctx, worker); err != nil {
		return Session{}, err
	} else if ok {
		return Session{}, ErrSessionActive
	}

	now := t.Clock.Now()
	s := Session{
		ID:            uuid.NewString(),
		Worker:        worker,
		Status:        SessionActive,
		StartedAt:     now,
		LastResumedAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := t.Sessions.PutSession(ctx, s); err != nil {
		return Session{}, err
	}

	t.Log.WithFields(logrus.Fields{"worker": worker, "session": s.ID}).Info("timer started")
	return s, nil
}

// Pause banks the live minutes and suspends the session.
func (t *Timer) Pause(ctx context.Context, worker string) (Session, error) {
	s, err := t.activeSession(ctx, worker)
	if err != nil {
		return Session{}, err
	}
	if s.Status != SessionActive {
		return Session{}, ErrNoActiveSession
	}

	now := t.Clock.Now()
	s.AccumulatedMin = s.ElapsedMinutes(now)
	s.Status = SessionPaused
	s.UpdatedAt = now
	if err := t.Sessions.PutSession(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Resume restarts a paused session.
func (t *Timer) Resume(ctx context.Context, worker string) (Session, error) {
	s, err := t.activeSession(ctx, worker)
	if err != nil {
		return Session{}, err
	}
	if s.Status != SessionPaused {
		return Session{}, ErrNotPaused
	}

	now := t.Clock.Now()
	s.Status = SessionActive
	s.LastResumedAt = now
	s.UpdatedAt = now
	if err := t.Sessions.PutSession(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Stop completes the session and records the work as an Entry. The entry
// is billable; for the credit worker that emits a rent event.
func (t *Timer) Stop(ctx context.Context, worker, description string) (Entry, error) {
	if strings.TrimSpace(description) == "" {
		return Entry{}, &rent.ValidationError{Field: "description", Reason: "required"}
	}

	s, err := t.activeSession(ctx, worker)
	if err != nil {
		return Entry{}, err
	}

	now := t.Clock.Now()
	minutes := s.ElapsedMinutes(now)

	entry, err := t.Service.CreateEntry(ctx, EntryInput{
		Worker:      worker,
		StartTime:   s.StartedAt,
		EndTime:     now,
		Duration:    minutes,
		Description: description,
		Billable:    true,
	})
	if err != nil {
		return Entry{}, err
	}

	// The entry is the durable record of the work. The session goes
	// terminal only once it exists; a failed entry leaves the timer
	// running so the minutes are not lost.
	s.AccumulatedMin = minutes
	s.Status = SessionCompleted
	s.UpdatedAt = now
	if err := t.Sessions.PutSession(ctx, s); err != nil {
		return Entry{}, err
	}

	t.Log.WithFields(logrus.Fields{
		"worker":  worker,
		"session": s.ID,
		"minutes": minutes,
	}).Info("timer stopped")
	return entry, nil
}

// Cancel abandons the session without recording work.
func (t *Timer) Cancel(ctx context.Context, worker string) error {
	s, err := t.activeSession(ctx, worker)
	if err != nil {
		return err
	}
	s.Status = SessionCancelled
	s.UpdatedAt = t.Clock.Now()
	return t.Sessions.PutSession(ctx, s)
}

// Status returns the worker's current session, ok=false when idle.
func (t *Timer) Status(ctx context.Context, worker string) (Session, bool, error) {
	return t.Sessions.ActiveSession(ctx, worker)
}

func (t *Timer) activeSession(ctx context.Context, worker string) (Session, error) {
	s, ok, err := t.Sessions.ActiveSession(ctx, worker)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, ErrNoActiveSession
	}
	return s, nil
}
