/*
worklog.go - SQLite persistence for work-log entries and timer sessions

PURPOSE:
  Implements worklog.EntryStore and worklog.SessionStore on the same
  Store (and same database file) as the rent tables, so a single open
  handle backs the whole application.

SEE ALSO:
  - worklog/types.go: Interface definitions
  - sqlite.go: Store type, migration, helpers
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hearth/rent-engine/worklog"
)

// =============================================================================
// ENTRY STORE (worklog.EntryStore interface)
// =============================================================================

// PutEntry inserts or overwrites the record for the entry's id.
func (s *Store) PutEntry(ctx context.Context, e worklog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO work_logs
		(id, worker, start_time, end_time, duration, description, billable, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			worker = excluded.worker,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			duration = excluded.duration,
			description = excluded.description,
			billable = excluded.billable,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Worker,
		e.StartTime.UTC().Format(time.RFC3339),
		e.EndTime.UTC().Format(time.RFC3339),
		e.Duration,
		e.Description,
		boolToInt(e.Billable),
		e.CreatedAt.UTC().Format(time.RFC3339),
		e.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to put work log: %w", err)
	}
	return nil
}

// GetEntry returns the entry or worklog.ErrEntryNotFound.
func (s *Store) GetEntry(ctx context.Context, id string) (worklog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, entrySelect+" WHERE id = ?", id)
	e, err := scanEntryRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return worklog.Entry{}, worklog.ErrEntryNotFound
	}
	return e, err
}

// ListEntries returns entries newest-first, optionally filtered by worker.
func (s *Store) ListEntries(ctx context.Context, filter worklog.EntryFilter) ([]worklog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := entrySelect
	var args []any
	if filter.Worker != "" {
		query += " WHERE worker = ?"
		args = append(args, filter.Worker)
	}
	query += " ORDER BY start_time DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work logs: %w", err)
	}
	defer rows.Close()

	var entries []worklog.Entry
	for rows.Next() {
		e, err := scanEntryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteEntry removes the entry. Work logs are hard-deleted; the linked
// rent event, if any, is soft-deleted by the service layer.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM work_logs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete work log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return worklog.ErrEntryNotFound
	}
	return nil
}

const entrySelect = `
	SELECT id, worker, start_time, end_time, duration, description, billable, created_at, updated_at
	FROM work_logs`

func scanEntryRow(row rowScanner) (worklog.Entry, error) {
	var (
		e         worklog.Entry
		startTime string
		endTime   string
		billable  int
		createdAt string
		updatedAt string
	)

	err := row.Scan(&e.ID, &e.Worker, &startTime, &endTime, &e.Duration,
		&e.Description, &billable, &createdAt, &updatedAt)
	if err != nil {
		return e, err
	}

	e.StartTime, _ = time.Parse(time.RFC3339, startTime)
	e.EndTime, _ = time.Parse(time.RFC3339, endTime)
	e.Billable = billable != 0
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return e, nil
}

// =============================================================================
// SESSION STORE (worklog.SessionStore interface)
// =============================================================================

// PutSession inserts or overwrites the record for the session's id.
func (s *Store) PutSession(ctx context.Context, sess worklog.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO timer_sessions
		(id, worker, status, started_at, last_resumed_at, accumulated_min, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			worker = excluded.worker,
			status = excluded.status,
			started_at = excluded.started_at,
			last_resumed_at = excluded.last_resumed_at,
			accumulated_min = excluded.accumulated_min,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		sess.ID,
		sess.Worker,
		string(sess.Status),
		sess.StartedAt.UTC().Format(time.RFC3339),
		sess.LastResumedAt.UTC().Format(time.RFC3339),
		sess.AccumulatedMin,
		sess.CreatedAt.UTC().Format(time.RFC3339),
		sess.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to put timer session: %w", err)
	}
	return nil
}

// ActiveSession returns the worker's non-terminal session, if one exists.
// At most one exists at a time; the timer enforces that invariant.
func (s *Store) ActiveSession(ctx context.Context, worker string) (worklog.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, worker, status, started_at, last_resumed_at, accumulated_min, created_at, updated_at
		FROM timer_sessions
		WHERE worker = ? AND status IN (?, ?)
		ORDER BY created_at DESC
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, worker,
		string(worklog.SessionActive), string(worklog.SessionPaused))

	var (
		sess          worklog.Session
		status        string
		startedAt     string
		lastResumedAt string
		createdAt     string
		updatedAt     string
	)
	err := row.Scan(&sess.ID, &sess.Worker, &status, &startedAt, &lastResumedAt,
		&sess.AccumulatedMin, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return worklog.Session{}, false, nil
	}
	if err != nil {
		return worklog.Session{}, false, err
	}

	sess.Status = worklog.SessionStatus(status)
	sess.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	sess.LastResumedAt, _ = time.Parse(time.RFC3339, lastResumedAt)
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return sess, true, nil
}
