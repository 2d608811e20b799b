/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements rent.EventStore, rent.PeriodStore, rent.AuditLog plus the
  worklog stores (worklog.EntryStore, worklog.SessionStore) using one
  SQLite database.

KEY TABLES:
  rent_events:    Event records (soft-deleted, never dropped)
  rent_periods:   Derived monthly balances, overwritten on recalculation
  audit_log:      Append-only record of mutations
  work_logs:      Completed work entries
  timer_sessions: Live and historical timer sessions

DEFENSIVE READS:
  An event row that fails to scan, or whose amount does not parse, is
  logged and excluded rather than surfaced as an error. One corrupt
  record must not take down recalculation or listing of everything else.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/rent.db", logger)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - rent/store.go: Interface definitions
  - rent/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/hearth/rent-engine/rent"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	log *logrus.Logger
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string, log *logrus.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}

	store := &Store{db: db, log: log}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Rent events (soft-deleted, never dropped)
	CREATE TABLE IF NOT EXISTS rent_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		date TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		amount TEXT,
		description TEXT NOT NULL,
		notes TEXT,
		payment_date TEXT,
		payment_method TEXT,
		work_log_id TEXT,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Period scans are the hot path of recalculation
	CREATE INDEX IF NOT EXISTS idx_rent_events_period
		ON rent_events(year, month, deleted);
	CREATE INDEX IF NOT EXISTS idx_rent_events_work_log
		ON rent_events(work_log_id) WHERE work_log_id IS NOT NULL;

	-- Derived periods, overwritten wholesale on recalculation
	CREATE TABLE IF NOT EXISTS rent_periods (
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		hours_worked TEXT NOT NULL,
		hours_from_previous TEXT NOT NULL,
		hours_applied TEXT NOT NULL,
		hours_carried_over TEXT NOT NULL,
		discount_applied TEXT NOT NULL,
		amount_due TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		calculated_at TEXT NOT NULL,
		PRIMARY KEY (year, month)
	);

	-- Append-only audit trail
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		before_json TEXT,
		after_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_entity
		ON audit_log(entity_id, timestamp DESC);

	-- Work-log entries
	CREATE TABLE IF NOT EXISTS work_logs (
		id TEXT PRIMARY KEY,
		worker TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		duration INTEGER NOT NULL,
		description TEXT NOT NULL,
		billable INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_logs_worker
		ON work_logs(worker, start_time DESC);

	-- Timer sessions
	CREATE TABLE IF NOT EXISTS timer_sessions (
		id TEXT PRIMARY KEY,
		worker TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		last_resumed_at TEXT NOT NULL,
		accumulated_min INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_timer_sessions_worker
		ON timer_sessions(worker, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EVENT STORE (rent.EventStore interface)
// =============================================================================

// PutEvent inserts or overwrites the record for the event's id.
func (s *Store) PutEvent(ctx context.Context, e rent.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO rent_events
		(id, event_type, date, year, month, amount, description, notes,
		 payment_date, payment_method, work_log_id, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			event_type = excluded.event_type,
			date = excluded.date,
			year = excluded.year,
			month = excluded.month,
			amount = excluded.amount,
			description = excluded.description,
			notes = excluded.notes,
			payment_date = excluded.payment_date,
			payment_method = excluded.payment_method,
			work_log_id = excluded.work_log_id,
			deleted = excluded.deleted,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		string(e.Type),
		e.Date.Format(time.RFC3339),
		e.Year,
		int(e.Month),
		e.Amount.String(),
		e.Description,
		nullString(e.Notes),
		nullTime(e.PaymentDate),
		nullString(e.PaymentMethod),
		nullString(e.WorkLogID),
		boolToInt(e.Deleted),
		e.CreatedAt.UTC().Format(time.RFC3339),
		e.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to put event: %w", err)
	}
	return nil
}

// GetEvent returns the event or rent.ErrNotFound. Deleted events are
// returned; callers check the flag.
func (s *Store) GetEvent(ctx context.Context, id string) (rent.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, eventSelect+" WHERE id = ?", id)
	e, err := s.scanEventRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rent.Event{}, rent.ErrNotFound
	}
	return e, err
}

// EventsForPeriod returns non-deleted events for one (year, month).
func (s *Store) EventsForPeriod(ctx context.Context, key rent.PeriodKey) ([]rent.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := eventSelect + `
		WHERE year = ? AND month = ? AND deleted = 0
		ORDER BY date ASC, created_at ASC`
	return s.queryEvents(ctx, query, key.Year, int(key.Month))
}

// ListEvents returns events matching the filter, ordered by date.
func (s *Store) ListEvents(ctx context.Context, filter rent.EventFilter) ([]rent.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := eventSelect + " WHERE 1=1"
	var args []any
	if !filter.IncludeDeleted {
		query += " AND deleted = 0"
	}
	if filter.Year != 0 {
		query += " AND year = ?"
		args = append(args, filter.Year)
	}
	if filter.Month != 0 {
		query += " AND month = ?"
		args = append(args, int(filter.Month))
	}
	if filter.Type != "" {
		query += " AND event_type = ?"
		args = append(args, string(filter.Type))
	}
	query += " ORDER BY date ASC, created_at ASC"

	return s.queryEvents(ctx, query, args...)
}

// EarliestPeriod returns the smallest (year, month) across non-deleted events.
func (s *Store) EarliestPeriod(ctx context.Context) (rent.PeriodKey, bool, error) {
	return s.boundaryPeriod(ctx, "MIN")
}

// LatestPeriod returns the largest (year, month) across non-deleted events.
func (s *Store) LatestPeriod(ctx context.Context) (rent.PeriodKey, bool, error) {
	return s.boundaryPeriod(ctx, "MAX")
}

func (s *Store) boundaryPeriod(ctx context.Context, fn string) (rent.PeriodKey, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// year*100+month orders period keys correctly as a single integer.
	var packed sql.NullInt64
	query := fmt.Sprintf("SELECT %s(year * 100 + month) FROM rent_events WHERE deleted = 0", fn)
	if err := s.db.QueryRowContext(ctx, query).Scan(&packed); err != nil {
		return rent.PeriodKey{}, false, err
	}
	if !packed.Valid {
		return rent.PeriodKey{}, false, nil
	}
	return rent.PeriodKey{
		Year:  int(packed.Int64 / 100),
		Month: time.Month(packed.Int64 % 100),
	}, true, nil
}

const eventSelect = `
	SELECT id, event_type, date, year, month, amount, description, notes,
	       payment_date, payment_method, work_log_id, deleted, created_at, updated_at
	FROM rent_events`

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]rent.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []rent.Event
	for rows.Next() {
		e, err := s.scanEventRow(rows)
		if err != nil {
			// One bad row never aborts the scan of the rest.
			s.log.WithError(err).Warn("skipping unreadable rent event row")
			continue
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanEventRow(row rowScanner) (rent.Event, error) {
	var (
		e             rent.Event
		eventType     string
		date          string
		month         int
		amount        sql.NullString
		notes         sql.NullString
		paymentDate   sql.NullString
		paymentMethod sql.NullString
		workLogID     sql.NullString
		deleted       int
		createdAt     string
		updatedAt     string
	)

	err := row.Scan(
		&e.ID, &eventType, &date, &e.Year, &month, &amount, &e.Description,
		&notes, &paymentDate, &paymentMethod, &workLogID, &deleted,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return e, err
	}

	e.Type = rent.EventType(eventType)
	e.Month = time.Month(month)
	e.Date, _ = time.Parse(time.RFC3339, date)
	e.Notes = notes.String
	e.PaymentMethod = paymentMethod.String
	e.WorkLogID = workLogID.String
	e.Deleted = deleted != 0
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if paymentDate.Valid {
		e.PaymentDate, _ = time.Parse(time.RFC3339, paymentDate.String)
	}

	if amount.Valid {
		d, perr := decimal.NewFromString(amount.String)
		if perr != nil {
			// Unparseable amount: blank the type so Valid() rejects the
			// event and the calculator excludes it.
			s.log.WithFields(logrus.Fields{"event_id": e.ID, "amount": amount.String}).
				Warn("rent event has unparseable amount; excluding from calculation")
			e.Type = ""
		} else {
			e.Amount = d
		}
	} else {
		// Missing amount entirely: same treatment.
		e.Type = ""
	}

	return e, nil
}

// =============================================================================
// PERIOD STORE (rent.PeriodStore interface)
// =============================================================================

// PutPeriod fully overwrites the derived record for the period's key.
func (s *Store) PutPeriod(ctx context.Context, p rent.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO rent_periods
		(year, month, hours_worked, hours_from_previous, hours_applied,
		 hours_carried_over, discount_applied, amount_due, amount_paid, calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(year, month) DO UPDATE SET
			hours_worked = excluded.hours_worked,
			hours_from_previous = excluded.hours_from_previous,
			hours_applied = excluded.hours_applied,
			hours_carried_over = excluded.hours_carried_over,
			discount_applied = excluded.discount_applied,
			amount_due = excluded.amount_due,
			amount_paid = excluded.amount_paid,
			calculated_at = excluded.calculated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		p.Key.Year,
		int(p.Key.Month),
		p.HoursWorked.String(),
		p.HoursFromPrevious.String(),
		p.HoursApplied.String(),
		p.HoursCarriedOver.String(),
		p.DiscountApplied.String(),
		p.AmountDue.String(),
		p.AmountPaid.String(),
		p.CalculatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to put period: %w", err)
	}
	return nil
}

// GetPeriod returns the derived record or rent.ErrNotFound.
func (s *Store) GetPeriod(ctx context.Context, key rent.PeriodKey) (rent.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, periodSelect+" WHERE year = ? AND month = ?",
		key.Year, int(key.Month))
	p, err := scanPeriodRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rent.Period{}, rent.ErrNotFound
	}
	return p, err
}

// ListPeriods returns all derived records in chronological order.
func (s *Store) ListPeriods(ctx context.Context) ([]rent.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, periodSelect+" ORDER BY year ASC, month ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var periods []rent.Period
	for rows.Next() {
		p, err := scanPeriodRow(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

const periodSelect = `
	SELECT year, month, hours_worked, hours_from_previous, hours_applied,
	       hours_carried_over, discount_applied, amount_due, amount_paid, calculated_at
	FROM rent_periods`

func scanPeriodRow(row rowScanner) (rent.Period, error) {
	var (
		p            rent.Period
		month        int
		hoursWorked  string
		hoursFrom    string
		hoursApplied string
		hoursCarried string
		discount     string
		amountDue    string
		amountPaid   string
		calculatedAt string
	)

	err := row.Scan(
		&p.Key.Year, &month,
		&hoursWorked, &hoursFrom, &hoursApplied, &hoursCarried,
		&discount, &amountDue, &amountPaid,
		&calculatedAt,
	)
	if err != nil {
		return p, err
	}

	p.Key.Month = time.Month(month)
	p.HoursWorked = parseDecimal(hoursWorked)
	p.HoursFromPrevious = parseDecimal(hoursFrom)
	p.HoursApplied = parseDecimal(hoursApplied)
	p.HoursCarriedOver = parseDecimal(hoursCarried)
	p.DiscountApplied = parseDecimal(discount)
	p.AmountDue = parseDecimal(amountDue)
	p.AmountPaid = parseDecimal(amountPaid)
	p.CalculatedAt, _ = time.Parse(time.RFC3339, calculatedAt)
	return p, nil
}

// =============================================================================
// AUDIT LOG (rent.AuditLog interface)
// =============================================================================

// AppendAudit adds an audit entry. Append-only; there is no update path.
func (s *Store) AppendAudit(ctx context.Context, entry rent.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	beforeJSON, _ := json.Marshal(entry.Before)
	afterJSON, _ := json.Marshal(entry.After)

	query := `
		INSERT INTO audit_log
		(id, action, entity_type, entity_id, actor, timestamp, before_json, after_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		string(entry.Action),
		entry.EntityType,
		entry.EntityID,
		entry.Actor,
		entry.Timestamp.UTC().Format(time.RFC3339),
		string(beforeJSON),
		string(afterJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// QueryAudit returns entries newest-first, optionally filtered by entity.
func (s *Store) QueryAudit(ctx context.Context, entityID string, limit int) ([]rent.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, action, entity_type, entity_id, actor, timestamp, before_json, after_json
		FROM audit_log`
	var args []any
	if entityID != "" {
		query += " WHERE entity_id = ?"
		args = append(args, entityID)
	}
	query += " ORDER BY timestamp DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []rent.AuditEntry
	for rows.Next() {
		var (
			entry      rent.AuditEntry
			action     string
			timestamp  string
			beforeJSON sql.NullString
			afterJSON  sql.NullString
		)
		if err := rows.Scan(&entry.ID, &action, &entry.EntityType, &entry.EntityID,
			&entry.Actor, &timestamp, &beforeJSON, &afterJSON); err != nil {
			return nil, err
		}
		entry.Action = rent.AuditAction(action)
		entry.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
		if beforeJSON.Valid && beforeJSON.String != "null" {
			json.Unmarshal([]byte(beforeJSON.String), &entry.Before)
		}
		if afterJSON.Valid && afterJSON.String != "null" {
			json.Unmarshal([]byte(afterJSON.String), &entry.After)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
