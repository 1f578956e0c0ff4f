/*
Package sqlite provides a SQLite-backed implementation of attendance.TxStore.

PURPOSE:
  Persists the directory, calendar, shift catalog, assignment history,
  attendance records, incidents and the audit log. The same SQL runs on
  PostgreSQL with minor dialect changes (upsert syntax, partial indexes).

KEY TABLES:
  attendance_records:   one row per worker-day, derived fields stored
  schedule_assignments: worker-to-shift history, at most one open row
  incidents:            leave requests and their decision
  non_working_days:     calendar keyed by date
  audit_log:            append-only who/what/when

INVARIANTS ENFORCED IN STORAGE:
  - idx_unique_worker_day:   one attendance record per (worker, date)
  - idx_one_open_assignment: one assignment with valid_until NULL per worker
  - shift_id REFERENCES shifts ON DELETE RESTRICT: assigned shifts stay

  Constraint violations come back as generic.ConflictError so the loser of
  a race on the same worker-day gets a conflict, never a silent overwrite.

CONCURRENCY:
  The pool is capped at one connection and transactions begin IMMEDIATE
  (_txlock=immediate), so write transactions are serialized by SQLite
  itself. The transaction view runs every statement on its *sql.Tx and
  never touches the pool, which would otherwise wait on the connection the
  transaction already holds.

ENCODING:
  dates       TEXT  YYYY-MM-DD (sorts chronologically)
  clock times INTEGER seconds since midnight, NULL when absent
  hours       TEXT  decimal string, two places
  timestamps  TEXT  fixed-width UTC, sortable

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := attendance.NewService(store, logger)
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements attendance.Store on top of a queryer.
type queries struct {
	q queryer
}

// Store implements attendance.TxStore using SQLite.
type Store struct {
	*queries
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: &queries{q: db}, db: db}
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

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		parent_id TEXT REFERENCES units(id)
	);

	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		employee_number TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		unit_id TEXT NOT NULL REFERENCES units(id),
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_workers_unit_name
		ON workers(unit_id, last_name, first_name);

	CREATE TABLE IF NOT EXISTS incident_types (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS non_working_days (
		date TEXT PRIMARY KEY,
		is_non_working INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		expected_start INTEGER NOT NULL,
		expected_end INTEGER NOT NULL,
		active_weekdays TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS schedule_assignments (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL REFERENCES workers(id),
		shift_id TEXT NOT NULL REFERENCES shifts(id) ON DELETE RESTRICT,
		valid_from TEXT NOT NULL,
		valid_until TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_worker_from
		ON schedule_assignments(worker_id, valid_from);

	-- At most one open assignment per worker
	CREATE UNIQUE INDEX IF NOT EXISTS idx_one_open_assignment
		ON schedule_assignments(worker_id) WHERE valid_until IS NULL;

	CREATE TABLE IF NOT EXISTS attendance_records (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL REFERENCES workers(id),
		date TEXT NOT NULL,
		check_in INTEGER,
		check_out INTEGER,
		incident_type_id TEXT REFERENCES incident_types(id),
		status TEXT NOT NULL,
		late_minutes INTEGER NOT NULL DEFAULT 0,
		worked_hours TEXT NOT NULL DEFAULT '0',
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: exactly one record per worker-day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_worker_day
		ON attendance_records(worker_id, date);

	CREATE INDEX IF NOT EXISTS idx_records_date
		ON attendance_records(date);

	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL REFERENCES workers(id),
		incident_type_id TEXT NOT NULL REFERENCES incident_types(id),
		date_start TEXT NOT NULL,
		date_end TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'PENDING',
		requested_by TEXT NOT NULL,
		approved_by TEXT,
		rejection_reason TEXT,
		decided_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_worker_range
		ON incidents(worker_id, date_start, date_end);
	CREATE INDEX IF NOT EXISTS idx_incidents_status
		ON incidents(status);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		subject TEXT NOT NULL,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_log(subject, at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(attendance.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (s *queries) SaveUnit(ctx context.Context, u attendance.Unit) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO units (id, name, parent_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, parent_id = excluded.parent_id
	`, u.ID, u.Name, nullStringPtr(u.ParentID))
	if err != nil {
		return fmt.Errorf("failed to save unit: %w", err)
	}
	return nil
}

func (s *queries) GetUnit(ctx context.Context, id string) (*attendance.Unit, error) {
	row := s.q.QueryRowContext(ctx, `SELECT id, name, parent_id FROM units WHERE id = ?`, id)
	u, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *queries) ListUnits(ctx context.Context) ([]attendance.Unit, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name, parent_id FROM units ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []attendance.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func scanUnit(row scanner) (attendance.Unit, error) {
	var u attendance.Unit
	var parent sql.NullString
	if err := row.Scan(&u.ID, &u.Name, &parent); err != nil {
		return u, err
	}
	u.ParentID = stringPtr(parent)
	return u, nil
}

const workerColumns = `id, employee_number, first_name, last_name, email, unit_id, active, created_at`

func (s *queries) SaveWorker(ctx context.Context, w attendance.Worker) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO workers (`+workerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_number = excluded.employee_number,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			unit_id = excluded.unit_id,
			active = excluded.active
	`, w.ID, w.EmployeeNumber, w.FirstName, w.LastName, w.Email, w.UnitID, w.Active, formatTimestamp(w.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save worker: %w", err)
	}
	return nil
}

func (s *queries) GetWorker(ctx context.Context, id string) (*attendance.Worker, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+workerColumns+` FROM workers WHERE id = ?`, id)
	w, err := scanWorker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *queries) ListWorkers(ctx context.Context, unitID string) ([]attendance.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers`
	var args []any
	if unitID != "" {
		query += ` WHERE unit_id = ?`
		args = append(args, unitID)
	}
	query += ` ORDER BY last_name, first_name, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []attendance.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

func scanWorker(row scanner) (attendance.Worker, error) {
	var w attendance.Worker
	var createdAt string
	if err := row.Scan(&w.ID, &w.EmployeeNumber, &w.FirstName, &w.LastName, &w.Email, &w.UnitID, &w.Active, &createdAt); err != nil {
		return w, err
	}
	w.CreatedAt = parseTimestamp(createdAt)
	return w, nil
}

func (s *queries) SaveIncidentType(ctx context.Context, t attendance.IncidentType) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO incident_types (id, description) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET description = excluded.description
	`, t.ID, t.Description)
	if err != nil {
		return fmt.Errorf("failed to save incident type: %w", err)
	}
	return nil
}

func (s *queries) GetIncidentType(ctx context.Context, id string) (*attendance.IncidentType, error) {
	var t attendance.IncidentType
	err := s.q.QueryRowContext(ctx, `SELECT id, description FROM incident_types WHERE id = ?`, id).
		Scan(&t.ID, &t.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *queries) ListIncidentTypes(ctx context.Context) ([]attendance.IncidentType, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, description FROM incident_types ORDER BY description, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []attendance.IncidentType
	for rows.Next() {
		var t attendance.IncidentType
		if err := rows.Scan(&t.ID, &t.Description); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// =============================================================================
// CALENDAR
// =============================================================================

func (s *queries) SaveNonWorkingDay(ctx context.Context, d attendance.NonWorkingDay) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO non_working_days (date, is_non_working, reason) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET is_non_working = excluded.is_non_working, reason = excluded.reason
	`, d.Date.String(), d.IsNonWorking, d.Reason)
	if err != nil {
		return fmt.Errorf("failed to save non-working day: %w", err)
	}
	return nil
}

func (s *queries) GetNonWorkingDay(ctx context.Context, date generic.TimePoint) (*attendance.NonWorkingDay, error) {
	row := s.q.QueryRowContext(ctx, `SELECT date, is_non_working, reason FROM non_working_days WHERE date = ?`, date.String())
	d, err := scanNonWorkingDay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *queries) ListNonWorkingDays(ctx context.Context, period generic.Period) ([]attendance.NonWorkingDay, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT date, is_non_working, reason FROM non_working_days
		WHERE date >= ? AND date <= ?
		ORDER BY date
	`, period.Start.String(), period.End.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []attendance.NonWorkingDay
	for rows.Next() {
		d, err := scanNonWorkingDay(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *queries) DeleteNonWorkingDay(ctx context.Context, date generic.TimePoint) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM non_working_days WHERE date = ?`, date.String())
	return err
}

func scanNonWorkingDay(row scanner) (attendance.NonWorkingDay, error) {
	var d attendance.NonWorkingDay
	var date string
	if err := row.Scan(&date, &d.IsNonWorking, &d.Reason); err != nil {
		return d, err
	}
	tp, err := generic.ParseDate(date)
	if err != nil {
		return d, err
	}
	d.Date = tp
	return d, nil
}

// =============================================================================
// SHIFTS
// =============================================================================

const shiftColumns = `id, label, expected_start, expected_end, active_weekdays`

func (s *queries) SaveShift(ctx context.Context, sh attendance.WorkShift) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO shifts (`+shiftColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			expected_start = excluded.expected_start,
			expected_end = excluded.expected_end,
			active_weekdays = excluded.active_weekdays
	`, sh.ID, sh.Label, int(sh.ExpectedStart), int(sh.ExpectedEnd), sh.ActiveWeekdays)
	if err != nil {
		return fmt.Errorf("failed to save shift: %w", err)
	}
	return nil
}

func (s *queries) GetShift(ctx context.Context, id string) (*attendance.WorkShift, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, id)
	sh, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *queries) ListShifts(ctx context.Context) ([]attendance.WorkShift, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+shiftColumns+` FROM shifts ORDER BY label, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []attendance.WorkShift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sh)
	}
	return result, rows.Err()
}

func (s *queries) DeleteShift(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM shifts WHERE id = ?`, id)
	if err != nil {
		if isConstraintError(err, sqlite3.ErrConstraintForeignKey) {
			return &generic.ConflictError{Subject: "shift", Message: fmt.Sprintf("shift %s is referenced by assignments", id)}
		}
		return fmt.Errorf("failed to delete shift: %w", err)
	}
	return nil
}

func scanShift(row scanner) (attendance.WorkShift, error) {
	var sh attendance.WorkShift
	var start, end int
	if err := row.Scan(&sh.ID, &sh.Label, &start, &end, &sh.ActiveWeekdays); err != nil {
		return sh, err
	}
	sh.ExpectedStart = generic.ClockTime(start)
	sh.ExpectedEnd = generic.ClockTime(end)
	return sh, nil
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

const assignmentColumns = `id, worker_id, shift_id, valid_from, valid_until, created_at`

func (s *queries) InsertAssignment(ctx context.Context, a attendance.ScheduleAssignment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO schedule_assignments (`+assignmentColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.WorkerID, a.ShiftID, a.ValidFrom.String(), nullDate(a.ValidUntil), formatTimestamp(a.CreatedAt))
	if err != nil {
		if isConstraintError(err, sqlite3.ErrConstraintUnique) {
			return &generic.ConflictError{
				Subject: "schedule_assignment",
				Message: fmt.Sprintf("worker %s already has an open assignment", a.WorkerID),
			}
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

func (s *queries) CloseAssignment(ctx context.Context, id string, until generic.TimePoint) error {
	res, err := s.q.ExecContext(ctx, `UPDATE schedule_assignments SET valid_until = ? WHERE id = ?`, until.String(), id)
	if err != nil {
		return fmt.Errorf("failed to close assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.NewNotFound("schedule_assignment", id)
	}
	return nil
}

func (s *queries) ListAssignments(ctx context.Context, workerID string) ([]attendance.ScheduleAssignment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+assignmentColumns+` FROM schedule_assignments
		WHERE worker_id = ?
		ORDER BY valid_from, id
	`, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []attendance.ScheduleAssignment
	for rows.Next() {
		var a attendance.ScheduleAssignment
		var from, createdAt string
		var until sql.NullString
		if err := rows.Scan(&a.ID, &a.WorkerID, &a.ShiftID, &from, &until, &createdAt); err != nil {
			return nil, err
		}
		if a.ValidFrom, err = generic.ParseDate(from); err != nil {
			return nil, err
		}
		if a.ValidUntil, err = parseNullDate(until); err != nil {
			return nil, err
		}
		a.CreatedAt = parseTimestamp(createdAt)
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *queries) CountAssignmentsForShift(ctx context.Context, shiftID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedule_assignments WHERE shift_id = ?`, shiftID).Scan(&n)
	return n, err
}

// =============================================================================
// ATTENDANCE RECORDS
// =============================================================================

const recordColumns = `id, worker_id, date, check_in, check_out, incident_type_id, status, late_minutes, worked_hours, updated_at`

func (s *queries) InsertRecord(ctx context.Context, r attendance.Record) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO attendance_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.WorkerID, r.Date.String(),
		nullClock(r.CheckIn), nullClock(r.CheckOut), nullStringPtr(r.IncidentTypeID),
		string(r.Status), r.LateMinutes, r.WorkedHours.StringFixed(2), formatTimestamp(r.UpdatedAt))
	if err != nil {
		if isConstraintError(err, sqlite3.ErrConstraintUnique) {
			return generic.ErrDuplicateRecord
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (s *queries) UpdateRecord(ctx context.Context, r attendance.Record) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE attendance_records SET
			check_in = ?, check_out = ?, incident_type_id = ?,
			status = ?, late_minutes = ?, worked_hours = ?, updated_at = ?
		WHERE id = ?
	`, nullClock(r.CheckIn), nullClock(r.CheckOut), nullStringPtr(r.IncidentTypeID),
		string(r.Status), r.LateMinutes, r.WorkedHours.StringFixed(2), formatTimestamp(r.UpdatedAt), r.ID)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.NewNotFound("attendance_record", r.ID)
	}
	return nil
}

func (s *queries) GetRecord(ctx context.Context, workerID string, date generic.TimePoint) (*attendance.Record, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records WHERE worker_id = ? AND date = ?
	`, workerID, date.String())
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *queries) ListRecords(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.WorkerIDs) > 0 {
		where = append(where, `worker_id IN (`+placeholders(len(filter.WorkerIDs))+`)`)
		for _, id := range filter.WorkerIDs {
			args = append(args, id)
		}
	}
	if filter.Period != nil {
		where = append(where, `date >= ? AND date <= ?`)
		args = append(args, filter.Period.Start.String(), filter.Period.End.String())
	}

	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY date, worker_id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []attendance.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *queries) CountRecordsOn(ctx context.Context, date generic.TimePoint) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_records WHERE date = ?`, date.String()).Scan(&n)
	return n, err
}

func scanRecord(row scanner) (attendance.Record, error) {
	var (
		r                 attendance.Record
		date, hours, upd  string
		checkIn, checkOut sql.NullInt64
		incidentType      sql.NullString
		status            string
	)
	if err := row.Scan(&r.ID, &r.WorkerID, &date, &checkIn, &checkOut, &incidentType, &status, &r.LateMinutes, &hours, &upd); err != nil {
		return r, err
	}
	tp, err := generic.ParseDate(date)
	if err != nil {
		return r, err
	}
	r.Date = tp
	r.CheckIn = clockPtr(checkIn)
	r.CheckOut = clockPtr(checkOut)
	r.IncidentTypeID = stringPtr(incidentType)
	r.Status = attendance.Status(status)
	if r.WorkedHours, err = decimal.NewFromString(hours); err != nil {
		return r, fmt.Errorf("record %s: worked_hours %q: %w", r.ID, hours, err)
	}
	r.UpdatedAt = parseTimestamp(upd)
	return r, nil
}

// =============================================================================
// INCIDENTS
// =============================================================================

const incidentColumns = `id, worker_id, incident_type_id, date_start, date_end, reason, status,
	requested_by, approved_by, rejection_reason, decided_at, created_at, updated_at`

func (s *queries) InsertIncident(ctx context.Context, i attendance.Incident) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO incidents (`+incidentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, i.ID, i.WorkerID, i.IncidentTypeID, i.DateStart.String(), i.DateEnd.String(), i.Reason, string(i.Status),
		i.RequestedBy, nullStringPtr(i.ApprovedBy), nullStringPtr(i.RejectionReason), nullTimestamp(i.DecidedAt),
		formatTimestamp(i.CreatedAt), formatTimestamp(i.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	return nil
}

func (s *queries) UpdateIncident(ctx context.Context, i attendance.Incident) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE incidents SET
			status = ?, approved_by = ?, rejection_reason = ?, decided_at = ?, updated_at = ?
		WHERE id = ?
	`, string(i.Status), nullStringPtr(i.ApprovedBy), nullStringPtr(i.RejectionReason),
		nullTimestamp(i.DecidedAt), formatTimestamp(i.UpdatedAt), i.ID)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.NewNotFound("incident", i.ID)
	}
	return nil
}

func (s *queries) GetIncident(ctx context.Context, id string) (*attendance.Incident, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = ?`, id)
	i, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (s *queries) ListIncidents(ctx context.Context, filter attendance.IncidentFilter) ([]attendance.Incident, error) {
	var (
		where []string
		args  []any
	)
	if filter.WorkerID != "" {
		where = append(where, `worker_id = ?`)
		args = append(args, filter.WorkerID)
	}
	if filter.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, string(filter.Status))
	}
	if filter.Overlapping != nil {
		where = append(where, `date_start <= ? AND date_end >= ?`)
		args = append(args, filter.Overlapping.End.String(), filter.Overlapping.Start.String())
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY date_start DESC, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []attendance.Incident
	for rows.Next() {
		i, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, i)
	}
	return result, rows.Err()
}

func scanIncident(row scanner) (attendance.Incident, error) {
	var (
		i                              attendance.Incident
		start, end, status             string
		approvedBy, rejection, decided sql.NullString
		createdAt, updatedAt           string
	)
	err := row.Scan(&i.ID, &i.WorkerID, &i.IncidentTypeID, &start, &end, &i.Reason, &status,
		&i.RequestedBy, &approvedBy, &rejection, &decided, &createdAt, &updatedAt)
	if err != nil {
		return i, err
	}
	if i.DateStart, err = generic.ParseDate(start); err != nil {
		return i, err
	}
	if i.DateEnd, err = generic.ParseDate(end); err != nil {
		return i, err
	}
	i.Status = attendance.IncidentStatus(status)
	i.ApprovedBy = stringPtr(approvedBy)
	i.RejectionReason = stringPtr(rejection)
	if decided.Valid {
		t := parseTimestamp(decided.String)
		i.DecidedAt = &t
	}
	i.CreatedAt = parseTimestamp(createdAt)
	i.UpdatedAt = parseTimestamp(updatedAt)
	return i, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *queries) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO audit_log (id, at, actor_id, action, subject, payload_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, formatTimestamp(e.At), e.ActorID, string(e.Action), e.Subject, string(payload))
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *queries) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.Subject != nil {
		where = append(where, `subject = ?`)
		args = append(args, *filter.Subject)
	}
	if filter.ActorID != nil {
		where = append(where, `actor_id = ?`)
		args = append(args, *filter.ActorID)
	}
	if len(filter.Actions) > 0 {
		where = append(where, `action IN (`+placeholders(len(filter.Actions))+`)`)
		for _, a := range filter.Actions {
			args = append(args, string(a))
		}
	}
	if filter.From != nil {
		where = append(where, `at >= ?`)
		args = append(args, formatTimestamp(*filter.From))
	}
	if filter.To != nil {
		where = append(where, `at <= ?`)
		args = append(args, formatTimestamp(*filter.To))
	}

	query := `SELECT id, at, actor_id, action, subject, payload_json FROM audit_log`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY at, rowid`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []generic.AuditEntry
	for rows.Next() {
		var e generic.AuditEntry
		var at, action string
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &at, &e.ActorID, &action, &e.Subject, &payload); err != nil {
			return nil, err
		}
		e.At = parseTimestamp(at)
		e.Action = generic.AuditAction(action)
		if payload.Valid && payload.String != "" && payload.String != "null" {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("audit entry %s: %w", e.ID, err)
			}
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullClock(c *generic.ClockTime) sql.NullInt64 {
	if c == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*c), Valid: true}
}

func clockPtr(n sql.NullInt64) *generic.ClockTime {
	if !n.Valid {
		return nil
	}
	c := generic.ClockTime(n.Int64)
	return &c
}

func nullDate(tp *generic.TimePoint) sql.NullString {
	if tp == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseNullDate(ns sql.NullString) (*generic.TimePoint, error) {
	if !ns.Valid {
		return nil, nil
	}
	tp, err := generic.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func nullTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(*t), Valid: true}
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func isConstraintError(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == code
	}
	return false
}

var _ attendance.TxStore = (*Store)(nil)
