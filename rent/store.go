/*
store.go - Persistence interfaces for events and derived periods

PURPOSE:
  Defines the interface between the engine and the database. The engine
  treats storage as a persistent map with range-scan by period; different
  implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  EventStore:  Event records, addressable by id and scannable by period
  PeriodStore: Derived period records, overwritten wholesale on recalc
  AuditLog:    Append-only record of who changed what and when

SOFT-DELETE CONTRACT:
  EventStore has no hard delete. Delete(id) flags the record; scans take an
  includeDeleted switch so the audit views can still see flagged rows.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - rent/store:   in-memory for tests

SEE ALSO:
  - recalc.go: Reads events per period, writes periods in order
  - service.go: Validated mutations on top of these interfaces
*/
package rent

import (
	"context"
	"time"
)

// =============================================================================
// EVENT STORE
// =============================================================================

// EventFilter narrows an event scan. Nil/zero fields match everything.
type EventFilter struct {
	Year           int
	Month          time.Month
	Type           EventType
	IncludeDeleted bool
}

// EventStore persists events. Mutations go through Put; deletion is the
// soft flag only, so one bad record can be inspected later rather than
// silently vanishing.
type EventStore interface {
	// PutEvent inserts or overwrites the record for the event's id.
	PutEvent(ctx context.Context, e Event) error

	// GetEvent returns the event or ErrNotFound. Deleted events are
	// returned (callers check the flag).
	GetEvent(ctx context.Context, id string) (Event, error)

	// EventsForPeriod returns non-deleted events whose (year, month)
	// equals the key, ordered by date then creation time.
	EventsForPeriod(ctx context.Context, key PeriodKey) ([]Event, error)

	// ListEvents returns events matching the filter, ordered by date.
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)

	// EarliestPeriod returns the smallest (year, month) across all
	// non-deleted events, or ok=false when the store is empty.
	EarliestPeriod(ctx context.Context) (PeriodKey, bool, error)

	// LatestPeriod returns the largest (year, month) across all
	// non-deleted events, or ok=false when the store is empty.
	LatestPeriod(ctx context.Context) (PeriodKey, bool, error)
}

// =============================================================================
// PERIOD STORE
// =============================================================================

// PeriodStore persists derived period records.
type PeriodStore interface {
	// PutPeriod fully overwrites the record for the period's key.
	PutPeriod(ctx context.Context, p Period) error

	// GetPeriod returns the derived record or ErrNotFound.
	GetPeriod(ctx context.Context, key PeriodKey) (Period, error)

	// ListPeriods returns all derived records in chronological order.
	ListPeriods(ctx context.Context) ([]Period, error)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

type AuditAction string

const (
	AuditEventCreated    AuditAction = "event_created"
	AuditEventUpdated    AuditAction = "event_updated"
	AuditEventDeleted    AuditAction = "event_deleted"
	AuditEventUndeleted  AuditAction = "event_undeleted"
	AuditPaymentRecorded AuditAction = "payment_recorded"
	AuditRecalculation   AuditAction = "recalculation"
)

// AuditEntry records who changed what and when. Before/After hold the
// entity state around the change; consumed for display only.
type AuditEntry struct {
	ID         string
	Action     AuditAction
	EntityType string
	EntityID   string
	Actor      string
	Timestamp  time.Time
	Before     map[string]any
	After      map[string]any
}

// AuditLog is an append-only sink. Failures to audit are logged, never
// fatal to the mutation that produced them.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, entityID string, limit int) ([]AuditEntry, error)
}
