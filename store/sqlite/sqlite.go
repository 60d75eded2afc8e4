/*
Package sqlite provides a SQLite-backed implementation of the timesheet storage interfaces.

PURPOSE:
  Implements timesheet.TxStore (entries, users, status master data) plus
  the reference master data used for existence checks. The engine never
  sees SQL; every method maps one contract call to one or two statements.

NO DELETES:
  There is no DELETE statement on time_entries. Entries are created and
  updated only.

KEY TABLES:
  time_entries:    One row per (user_id, work_date)
  users:           Employee profiles, cached expected daily hours
  entry_statuses:  Status master data (action flags, transition target)
  reference_codes: Projects, activities, work locations, travel types

INDEXES:
  - idx_time_entries_user_day: UNIQUE (user_id, work_date). This is the
    guard that makes the losing insert of two concurrent generation runs
    fail; the engine's own pre-check is only a snapshot.
  - idx_time_entries_status: Status filtering

DECIMALS:
  Hour values are stored as TEXT and parsed with shopspring/decimal, so
  no value passes through float64.

CONCURRENCY:
  A single connection is used (SQLite allows one writer; ":memory:"
  databases are per connection). WithTx holds the store mutex for the
  whole transaction.

USAGE:
  store, err := sqlite.New("./data/timesheet.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  err = store.WithTx(ctx, func(s timesheet.Store) error {
      _, err := timesheet.NewEngine(s, deps).Entries.Create(ctx, input)
      return err
  })

SEE ALSO:
  - timesheet/store.go: Interface definitions
  - timesheet/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/timesheet-engine/timesheet"
)

// Store implements timesheet.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{db: db}, db: db}
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

// migrate creates the schema and seeds the canonical status catalog.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entry_statuses (
		code TEXT PRIMARY KEY,
		allow_done_action BOOLEAN NOT NULL DEFAULT FALSE,
		allow_release_action BOOLEAN NOT NULL DEFAULT FALSE,
		transition_target TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		weekly_hours TEXT NOT NULL DEFAULT '0',
		working_days_per_week INTEGER NOT NULL DEFAULT 5,
		expected_daily_hours TEXT NOT NULL DEFAULT '0',
		state_code TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		start_time TEXT NOT NULL DEFAULT '',
		end_time TEXT NOT NULL DEFAULT '',
		break_minutes INTEGER NOT NULL DEFAULT 0,
		duration_hours_gross TEXT NOT NULL DEFAULT '0',
		duration_hours_net TEXT NOT NULL DEFAULT '0',
		overtime_hours TEXT NOT NULL DEFAULT '0',
		undertime_hours TEXT NOT NULL DEFAULT '0',
		expected_daily_hours TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL REFERENCES entry_statuses(code),
		source TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		project_id TEXT NOT NULL DEFAULT '',
		activity_code TEXT NOT NULL DEFAULT '',
		work_location_code TEXT NOT NULL DEFAULT '',
		travel_type_code TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one entry per user and day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_time_entries_user_day
		ON time_entries(user_id, work_date);

	CREATE INDEX IF NOT EXISTS idx_time_entries_status
		ON time_entries(status);

	CREATE TABLE IF NOT EXISTS reference_codes (
		kind TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (kind, code)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	for _, meta := range timesheet.DefaultStatusCatalog() {
		_, err := s.db.Exec(`
			INSERT OR IGNORE INTO entry_statuses (code, allow_done_action, allow_release_action, transition_target)
			VALUES (?, ?, ?, ?)`,
			meta.Code, meta.AllowDoneAction, meta.AllowReleaseAction, meta.TransitionTarget)
		if err != nil {
			return fmt.Errorf("seed status %s: %w", meta.Code, err)
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (timesheet.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store timesheet.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// SaveStatuses replaces the status master data. The catalog must pass
// timesheet.ValidateStatusCatalog.
func (s *Store) SaveStatuses(ctx context.Context, catalog map[timesheet.Status]timesheet.StatusMeta) error {
	if err := timesheet.ValidateStatusCatalog(catalog); err != nil {
		return err
	}
	return s.WithTx(ctx, func(st timesheet.Store) error {
		q := st.(*queries)
		for code, meta := range catalog {
			_, err := q.db.ExecContext(ctx, `
				INSERT INTO entry_statuses (code, allow_done_action, allow_release_action, transition_target)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(code) DO UPDATE SET
					allow_done_action = excluded.allow_done_action,
					allow_release_action = excluded.allow_release_action,
					transition_target = excluded.transition_target`,
				code, meta.AllowDoneAction, meta.AllowReleaseAction, meta.TransitionTarget)
			if err != nil {
				return fmt.Errorf("save status %s: %w", code, err)
			}
		}
		return nil
	})
}

// AddReference registers a reference code; re-adding renames it.
func (s *Store) AddReference(ctx context.Context, kind timesheet.ReferenceKind, code, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reference_codes (kind, code, name) VALUES (?, ?, ?)
		ON CONFLICT(kind, code) DO UPDATE SET name = excluded.name`,
		kind, code, name)
	if err != nil {
		return fmt.Errorf("failed to add reference: %w", err)
	}
	return nil
}

// =============================================================================
// QUERIES - Shared by the store and its transactions
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

// atomically runs fn in a transaction unless q already is one.
func (q *queries) atomically(ctx context.Context, fn func(q *queries) error) error {
	db, ok := q.db.(*sql.DB)
	if !ok {
		return fn(q)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

const entryColumns = `id, user_id, work_date, entry_type, start_time, end_time, break_minutes,
	duration_hours_gross, duration_hours_net, overtime_hours, undertime_hours, expected_daily_hours,
	status, source, note, project_id, activity_code, work_location_code, travel_type_code,
	created_at, updated_at`

// --- entries ---

func (q *queries) GetByID(ctx context.Context, id timesheet.EntryID) (*timesheet.TimeEntry, error) {
	entries, err := q.queryEntries(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func (q *queries) GetByIDs(ctx context.Context, ids []timesheet.EntryID) ([]timesheet.TimeEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return q.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE id IN (`+placeholders(len(ids))+`) ORDER BY work_date`,
		args...)
}

func (q *queries) EntryByUserAndDate(ctx context.Context, userID timesheet.UserID, date timesheet.Date, excludeID timesheet.EntryID) (*timesheet.TimeEntry, error) {
	entries, err := q.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE user_id = ? AND work_date = ? AND id <> ?`,
		userID, date.String(), excludeID)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func (q *queries) EntriesInRange(ctx context.Context, userID timesheet.UserID, from, to timesheet.Date) ([]timesheet.TimeEntry, error) {
	return q.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM time_entries
		 WHERE user_id = ? AND work_date >= ? AND work_date <= ?
		 ORDER BY work_date`,
		userID, from.String(), to.String())
}

func (q *queries) EntriesForUser(ctx context.Context, userID timesheet.UserID) ([]timesheet.TimeEntry, error) {
	return q.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE user_id = ? ORDER BY work_date`,
		userID)
}

func (q *queries) ExistingDatesInRange(ctx context.Context, userID timesheet.UserID, from, to timesheet.Date) (timesheet.DateSet, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT work_date FROM time_entries WHERE user_id = ? AND work_date >= ? AND work_date <= ?`,
		userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query dates: %w", err)
	}
	defer rows.Close()

	set := timesheet.DateSet{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		d, err := timesheet.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		set.Add(d)
	}
	return set, rows.Err()
}

func (q *queries) Insert(ctx context.Context, e timesheet.TimeEntry) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO time_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entryArgs(e)...)
	if err != nil {
		if isDayUniquenessError(err) {
			return timesheet.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// InsertBatch writes all entries in one transaction.
func (q *queries) InsertBatch(ctx context.Context, entries []timesheet.TimeEntry) error {
	return q.atomically(ctx, func(q *queries) error {
		for _, e := range entries {
			if err := q.Insert(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (q *queries) Update(ctx context.Context, e timesheet.TimeEntry) error {
	args := entryArgs(e)
	// id moves from the first to the last placeholder
	args = append(args[1:], args[0])
	res, err := q.db.ExecContext(ctx, `
		UPDATE time_entries SET
			user_id = ?, work_date = ?, entry_type = ?, start_time = ?, end_time = ?, break_minutes = ?,
			duration_hours_gross = ?, duration_hours_net = ?, overtime_hours = ?, undertime_hours = ?,
			expected_daily_hours = ?, status = ?, source = ?, note = ?, project_id = ?, activity_code = ?,
			work_location_code = ?, travel_type_code = ?, created_at = ?, updated_at = ?
		WHERE id = ?`,
		args...)
	if err != nil {
		if isDayUniquenessError(err) {
			return timesheet.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &timesheet.NotFoundError{Kind: "time entry", IDs: []string{string(e.ID)}}
	}
	return nil
}

func (q *queries) UpdateStatusBatch(ctx context.Context, ids []timesheet.EntryID, status timesheet.Status) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+2)
	args = append(args, status, time.Now().UTC().Format(time.RFC3339))
	for _, id := range ids {
		args = append(args, id)
	}
	return q.atomically(ctx, func(q *queries) error {
		res, err := q.db.ExecContext(ctx,
			`UPDATE time_entries SET status = ?, updated_at = ? WHERE id IN (`+placeholders(len(ids))+`)`,
			args...)
		if err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		if n, _ := res.RowsAffected(); int(n) != len(ids) {
			return fmt.Errorf("status update touched %d of %d entries", n, len(ids))
		}
		return nil
	})
}

func (q *queries) queryEntries(ctx context.Context, query string, args ...any) ([]timesheet.TimeEntry, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []timesheet.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func entryArgs(e timesheet.TimeEntry) []any {
	return []any{
		e.ID, e.UserID, e.WorkDate.String(), e.EntryType, e.StartTime, e.EndTime, e.BreakMinutes,
		e.DurationHoursGross.String(), e.DurationHoursNet.String(), e.OvertimeHours.String(),
		e.UndertimeHours.String(), e.ExpectedDailyHours.String(),
		e.Status, e.Source, e.Note, e.ProjectID, e.ActivityCode, e.WorkLocationCode, e.TravelTypeCode,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	}
}

func scanEntry(rows *sql.Rows) (timesheet.TimeEntry, error) {
	var e timesheet.TimeEntry
	var workDate, createdAt, updatedAt string
	var gross, net, overtime, undertime, expct string
	err := rows.Scan(
		&e.ID, &e.UserID, &workDate, &e.EntryType, &e.StartTime, &e.EndTime, &e.BreakMinutes,
		&gross, &net, &overtime, &undertime, &expct,
		&e.Status, &e.Source, &e.Note, &e.ProjectID, &e.ActivityCode, &e.WorkLocationCode, &e.TravelTypeCode,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}

	if e.WorkDate, err = timesheet.ParseDate(workDate); err != nil {
		return e, err
	}
	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{gross, &e.DurationHoursGross},
		{net, &e.DurationHoursNet},
		{overtime, &e.OvertimeHours},
		{undertime, &e.UndertimeHours},
		{expct, &e.ExpectedDailyHours},
	} {
		if *f.dst, err = parseDecimal(f.raw); err != nil {
			return e, err
		}
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

// --- statuses ---

func (q *queries) StatusMapByCodes(ctx context.Context, codes []timesheet.Status) (map[timesheet.Status]timesheet.StatusMeta, error) {
	out := make(map[timesheet.Status]timesheet.StatusMeta, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	args := make([]any, len(codes))
	for i, c := range codes {
		args[i] = c
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT code, allow_done_action, allow_release_action, transition_target
		FROM entry_statuses WHERE code IN (`+placeholders(len(codes))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var meta timesheet.StatusMeta
		if err := rows.Scan(&meta.Code, &meta.AllowDoneAction, &meta.AllowReleaseAction, &meta.TransitionTarget); err != nil {
			return nil, err
		}
		out[meta.Code] = meta
	}
	return out, rows.Err()
}

// --- users ---

func (q *queries) GetUser(ctx context.Context, id timesheet.UserID) (*timesheet.User, error) {
	var u timesheet.User
	var weekly, expected string
	err := q.db.QueryRowContext(ctx, `
		SELECT id, name, weekly_hours, working_days_per_week, expected_daily_hours, state_code
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &weekly, &u.WorkingDaysPerWeek, &expected, &u.StateCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u.WeeklyHours, err = parseDecimal(weekly); err != nil {
		return nil, err
	}
	if u.ExpectedDailyHours, err = parseDecimal(expected); err != nil {
		return nil, err
	}
	return &u, nil
}

func (q *queries) SaveUser(ctx context.Context, u timesheet.User) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (id, name, weekly_hours, working_days_per_week, expected_daily_hours, state_code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			weekly_hours = excluded.weekly_hours,
			working_days_per_week = excluded.working_days_per_week,
			expected_daily_hours = excluded.expected_daily_hours,
			state_code = excluded.state_code,
			updated_at = excluded.updated_at`,
		u.ID, u.Name, u.WeeklyHours.String(), u.WorkingDaysPerWeek, u.ExpectedDailyHours.String(), u.StateCode, now, now)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (q *queries) ListUsers(ctx context.Context) ([]timesheet.User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	var ids []timesheet.UserID
	for rows.Next() {
		var id timesheet.UserID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// one connection: the id cursor is closed before loading profiles
	users := make([]timesheet.User, 0, len(ids))
	for _, id := range ids {
		u, err := q.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		if u != nil {
			users = append(users, *u)
		}
	}
	return users, nil
}

func (q *queries) UpdateExpectedDailyHours(ctx context.Context, id timesheet.UserID, hours decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET expected_daily_hours = ?, updated_at = ? WHERE id = ?`,
		hours.String(), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update expected hours: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &timesheet.NotFoundError{Kind: "user", IDs: []string{string(id)}}
	}
	return nil
}

// --- references ---

// ReferenceExists reports whether a reference code is registered.
func (q *queries) ReferenceExists(ctx context.Context, kind timesheet.ReferenceKind, code string) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reference_codes WHERE kind = ? AND code = ?`, kind, code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check reference: %w", err)
	}
	return n > 0, nil
}

// ReferenceCheckers binds the reference lookups to this connection or transaction.
func (q *queries) ReferenceCheckers() timesheet.ReferenceCheckers {
	return timesheet.CheckersFrom(q.ReferenceExists)
}

// Helper functions

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isDayUniquenessError(err error) bool {
	return isUniqueConstraintError(err) && strings.Contains(err.Error(), "time_entries.user_id")
}

var (
	_ timesheet.TxStore           = (*Store)(nil)
	_ timesheet.ReferenceProvider = (*queries)(nil)
)
