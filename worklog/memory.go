package worklog

import (
	"context"
	"sync"
)

// =============================================================================
// MEMORY STORE - In-memory EntryStore + SessionStore (tests/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	sessions map[string]Session // by session id
}

func NewMemory() *Memory {
	return &Memory{
		entries:  make(map[string]Entry),
		sessions: make(map[string]Session),
	}
}

func (m *Memory) PutEntry(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

func (m *Memory) ListEntries(_ context.Context, filter EntryFilter) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Entry
	for _, e := range m.entries {
		if filter.Worker != "" && e.Worker != filter.Worker {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (m *Memory) DeleteEntry(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *Memory) PutSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) ActiveSession(_ context.Context, worker string) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.Worker == worker && !s.Status.Terminal() {
			return s, true, nil
		}
	}
	return Session{}, false, nil
}
