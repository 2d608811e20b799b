// Package store provides in-memory implementations of the rent storage
// interfaces, for tests and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/hearth/rent-engine/rent"
)

// =============================================================================
// MEMORY STORE - EventStore + PeriodStore + AuditLog in one
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	events  map[string]rent.Event
	periods map[rent.PeriodKey]rent.Period
	audit   []rent.AuditEntry

	// FailPuts forces PutPeriod to fail, for partial-progress tests.
	FailPuts bool
}

func NewMemory() *Memory {
	return &Memory{
		events:  make(map[string]rent.Event),
		periods: make(map[rent.PeriodKey]rent.Period),
	}
}

// =============================================================================
// EVENT STORE
// =============================================================================

func (m *Memory) PutEvent(_ context.Context, e rent.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
	return nil
}

func (m *Memory) GetEvent(_ context.Context, id string) (rent.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return rent.Event{}, rent.ErrNotFound
	}
	return e, nil
}

func (m *Memory) EventsForPeriod(_ context.Context, key rent.PeriodKey) ([]rent.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []rent.Event
	for _, e := range m.events {
		if e.Deleted || e.Year != key.Year || e.Month != key.Month {
			continue
		}
		result = append(result, e)
	}
	sortEvents(result)
	return result, nil
}

func (m *Memory) ListEvents(_ context.Context, filter rent.EventFilter) ([]rent.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []rent.Event
	for _, e := range m.events {
		if e.Deleted && !filter.IncludeDeleted {
			continue
		}
		if filter.Year != 0 && e.Year != filter.Year {
			continue
		}
		if filter.Month != 0 && e.Month != filter.Month {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		result = append(result, e)
	}
	sortEvents(result)
	return result, nil
}

func (m *Memory) EarliestPeriod(_ context.Context) (rent.PeriodKey, bool, error) {
	return m.boundaryPeriod(true)
}

func (m *Memory) LatestPeriod(_ context.Context) (rent.PeriodKey, bool, error) {
	return m.boundaryPeriod(false)
}

func (m *Memory) boundaryPeriod(earliest bool) (rent.PeriodKey, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best rent.PeriodKey
	found := false
	for _, e := range m.events {
		if e.Deleted {
			continue
		}
		key := rent.PeriodKey{Year: e.Year, Month: e.Month}
		if !found {
			best, found = key, true
			continue
		}
		if (earliest && key.Before(best)) || (!earliest && key.After(best)) {
			best = key
		}
	}
	return best, found, nil
}

// =============================================================================
// PERIOD STORE
// =============================================================================

func (m *Memory) PutPeriod(_ context.Context, p rent.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPuts {
		return errForcedFailure
	}
	m.periods[p.Key] = p
	return nil
}

func (m *Memory) GetPeriod(_ context.Context, key rent.PeriodKey) (rent.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.periods[key]
	if !ok {
		return rent.Period{}, rent.ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPeriods(_ context.Context) ([]rent.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]rent.Period, 0, len(m.periods))
	for _, p := range m.periods {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key.Before(result[j].Key)
	})
	return result, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, entry rent.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) QueryAudit(_ context.Context, entityID string, limit int) ([]rent.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []rent.AuditEntry
	// Newest first.
	for i := len(m.audit) - 1; i >= 0; i-- {
		if entityID != "" && m.audit[i].EntityID != entityID {
			continue
		}
		result = append(result, m.audit[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func sortEvents(events []rent.Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})
}

type forcedFailure struct{}

func (forcedFailure) Error() string { return "forced put failure" }

var errForcedFailure = forcedFailure{}
