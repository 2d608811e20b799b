/*
Package worklog tracks work sessions and feeds earned credit into the rent
engine.

PURPOSE:
  Two related pieces:
  - Entry: a completed chunk of work (start, end, duration, description)
  - Session: the live timer state machine producing entries

  Completing a billable entry for the credit worker emits a
  work_value_change event into the rent ledger (hours x hourly rate), which
  triggers recalculation of the affected period.

STATE MACHINE (Session):
  not started -> active -> paused <-> active -> completed | cancelled

  INVARIANT: at most one non-terminal session per worker. You cannot start
  a second timer while one is running or paused.

SEE ALSO:
  - timer.go: The state machine transitions
  - service.go: Entry CRUD and the rent-event linkage
*/
package worklog

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// ENTRY - A completed chunk of work
// =============================================================================

type Entry struct {
	ID          string
	Worker      string
	StartTime   time.Time
	EndTime     time.Time
	Duration    int // minutes
	Description string
	Billable    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// SESSION - Live timer state
// =============================================================================

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the session can no longer change.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// Session is one run of the timer for one worker. AccumulatedMin holds the
// minutes banked across pauses; the live stretch since LastResumedAt is
// added on pause or stop.
type Session struct {
	ID             string
	Worker         string
	Status         SessionStatus
	StartedAt      time.Time
	LastResumedAt  time.Time
	AccumulatedMin int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ElapsedMinutes returns total work time as of now, banked plus live.
func (s Session) ElapsedMinutes(now time.Time) int {
	total := s.AccumulatedMin
	if s.Status == SessionActive {
		total += int(now.Sub(s.LastResumedAt).Round(time.Minute) / time.Minute)
	}
	return total
}

// =============================================================================
// STORES
// =============================================================================

// EntryFilter narrows an entry listing. Zero fields match everything.
type EntryFilter struct {
	Worker string
	Limit  int
}

type EntryStore interface {
	PutEntry(ctx context.Context, e Entry) error
	GetEntry(ctx context.Context, id string) (Entry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
	DeleteEntry(ctx context.Context, id string) error
}

type SessionStore interface {
	PutSession(ctx context.Context, s Session) error

	// ActiveSession returns the worker's non-terminal session, or
	// ok=false when the worker has no timer running or paused.
	ActiveSession(ctx context.Context, worker string) (Session, bool, error)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrSessionActive is returned when starting a timer for a worker who
	// already has one running or paused.
	ErrSessionActive = errors.New("worker already has an active session")

	// ErrNoActiveSession is returned when pausing/stopping a timer for a
	// worker with no running session.
	ErrNoActiveSession = errors.New("no active session for worker")

	// ErrNotPaused is returned when resuming a session that is not paused.
	ErrNotPaused = errors.New("session is not paused")

	// ErrEntryNotFound is returned when operating on a missing entry id.
	ErrEntryNotFound = errors.New("work log entry not found")
)
