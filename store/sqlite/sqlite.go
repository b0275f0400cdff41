/*
Package sqlite provides a SQLite-backed implementation of the shift store.

PURPOSE:
  Implements shift.TxStore (shift masters, allocations, roster, holidays)
  using SQLite. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  shift.ShiftStore:      versioned shift masters
  shift.AllocationRows:  shift allocations
  shift.Roster:          projects, employees, memberships
  shift.HolidayCalendar: project holidays
  shift.TxStore:         WithTx for atomic multi-row writes

KEY TABLES:
  supervisors:        project leads (approvers)
  projects:           project -> lead ownership
  employees:          employee display data
  project_employees:  membership
  shift_masters:      SCD-2 shift versions
  shift_allocations:  employee/shift/date assignments + approval
  holidays:           per-project holidays

UNIQUENESS (reported as shift.ErrConflict):
  - shift_masters(project_id, shift_code, effective_from)
  - shift_allocations(project_id, emp_id, shift_date)

CONNECTIONS:
  The pool is capped at one connection. ":memory:" databases are per
  connection, and a single connection also serialises writers the way
  SQLite would anyway. Code running inside WithTx must only use the Store
  handed to its callback.

USAGE:
  store, err := sqlite.New("./data/shifts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  registry := shift.NewRegistry(store, logger)

SEE ALSO:
  - shift/store.go: Interface definitions
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/shift"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements shift.Store against either the pool or a transaction.
type queries struct {
	db dbtx
}

// Store implements shift.TxStore using SQLite.
type Store struct {
	*queries
	db *sql.DB
}

var _ shift.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{queries: &queries{db: db}, db: db}
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

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS supervisors (
		lead_id TEXT PRIMARY KEY,
		lead_name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		project_id INTEGER PRIMARY KEY,
		project_name TEXT NOT NULL,
		lead_id TEXT NOT NULL REFERENCES supervisors(lead_id)
	);

	CREATE TABLE IF NOT EXISTS employees (
		emp_id TEXT PRIMARY KEY,
		emp_name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS project_employees (
		project_id INTEGER NOT NULL REFERENCES projects(project_id),
		emp_id TEXT NOT NULL REFERENCES employees(emp_id),
		PRIMARY KEY (project_id, emp_id)
	);

	-- Shift masters (SCD-2: rows are closed, never deleted)
	CREATE TABLE IF NOT EXISTS shift_masters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(project_id),
		shift_code TEXT NOT NULL,
		shift_name TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		weekday_allowance TEXT NOT NULL,
		weekend_allowance TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE(project_id, shift_code, effective_from)
	);

	CREATE INDEX IF NOT EXISTS idx_shift_masters_lookup
		ON shift_masters(project_id, shift_code, effective_from, effective_to);

	-- Allocations: one shift per employee per date per project
	CREATE TABLE IF NOT EXISTS shift_allocations (
		allocation_id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(project_id),
		emp_id TEXT NOT NULL REFERENCES employees(emp_id),
		shift_code TEXT NOT NULL,
		shift_date TEXT NOT NULL,
		is_approved BOOLEAN NOT NULL DEFAULT FALSE,
		approved_by TEXT,
		last_updated TEXT NOT NULL,
		UNIQUE(project_id, emp_id, shift_date)
	);

	CREATE INDEX IF NOT EXISTS idx_shift_allocations_project_date
		ON shift_allocations(project_id, shift_date);

	CREATE TABLE IF NOT EXISTS holidays (
		project_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (project_id, date)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (shift.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store shift.Store) error) error {
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

// =============================================================================
// SHIFT MASTERS (shift.ShiftStore interface)
// =============================================================================

const shiftColumns = `id, project_id, shift_code, shift_name, start_time, end_time,
	weekday_allowance, weekend_allowance, effective_from, effective_to, is_active`

// InsertShift stores a new shift version.
func (q *queries) InsertShift(ctx context.Context, def *shift.Definition) error {
	query := `
		INSERT INTO shift_masters
		(project_id, shift_code, shift_name, start_time, end_time,
		 weekday_allowance, weekend_allowance, effective_from, effective_to, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := q.db.ExecContext(ctx, query,
		def.ProjectID,
		def.Code,
		def.Name,
		def.StartTime,
		def.EndTime,
		def.WeekdayAllowance.String(),
		def.WeekendAllowance.String(),
		def.EffectiveFrom.String(),
		nullDate(def.EffectiveTo),
		def.IsActive,
	)
	if err != nil {
		return translate("store.insert_shift", err,
			fmt.Sprintf("shift %s already exists for effective date %s", def.Code, def.EffectiveFrom),
			fmt.Sprintf("unknown project %d", def.ProjectID))
	}

	def.ID, err = res.LastInsertId()
	return err
}

// CloseShift sets effective_to on a version.
func (q *queries) CloseShift(ctx context.Context, id int64, effectiveTo shift.Date) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE shift_masters SET effective_to = ? WHERE id = ?",
		effectiveTo.String(), id)
	return err
}

// SetShiftActive toggles is_active on a version.
func (q *queries) SetShiftActive(ctx context.Context, id int64, active bool) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE shift_masters SET is_active = ? WHERE id = ?",
		active, id)
	return err
}

// GetShift returns the exact (project, code, effective_from) version.
func (q *queries) GetShift(ctx context.Context, project shift.ProjectID, code string, effectiveFrom shift.Date) (*shift.Definition, error) {
	query := `SELECT ` + shiftColumns + `
		FROM shift_masters
		WHERE project_id = ? AND shift_code = ? AND effective_from = ?`

	defs, err := q.queryShifts(ctx, query, project, code, effectiveFrom.String())
	if err != nil || len(defs) == 0 {
		return nil, err
	}
	return &defs[0], nil
}

// ListShifts returns versions matching the filter.
func (q *queries) ListShifts(ctx context.Context, f shift.ShiftFilter, order shift.ShiftOrder) ([]shift.Definition, error) {
	where := []string{"project_id = ?"}
	args := []any{f.ProjectID}

	if f.Code != "" {
		where = append(where, "shift_code = ?")
		args = append(args, f.Code)
	}
	if f.To != nil {
		where = append(where, "effective_from <= ?")
		args = append(args, f.To.String())
	}
	if f.From != nil {
		where = append(where, "(effective_to IS NULL OR effective_to >= ?)")
		args = append(args, f.From.String())
	}
	if f.ActiveOnly {
		where = append(where, "is_active = TRUE")
	}
	if f.OpenOnly {
		where = append(where, "effective_to IS NULL")
	}

	orderBy := "shift_code ASC, effective_from ASC"
	if order == shift.OrderHistory {
		orderBy = "shift_code ASC, effective_from DESC"
	}

	query := `SELECT ` + shiftColumns + `
		FROM shift_masters
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + orderBy

	return q.queryShifts(ctx, query, args...)
}

func (q *queries) queryShifts(ctx context.Context, query string, args ...any) ([]shift.Definition, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []shift.Definition
	for rows.Next() {
		def, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func scanShift(rows *sql.Rows) (shift.Definition, error) {
	var (
		def                    shift.Definition
		weekday, weekend, from string
		to                     sql.NullString
	)
	if err := rows.Scan(&def.ID, &def.ProjectID, &def.Code, &def.Name, &def.StartTime, &def.EndTime,
		&weekday, &weekend, &from, &to, &def.IsActive); err != nil {
		return def, err
	}

	var err error
	if def.WeekdayAllowance, err = decimal.NewFromString(weekday); err != nil {
		return def, fmt.Errorf("shift %d weekday_allowance: %w", def.ID, err)
	}
	if def.WeekendAllowance, err = decimal.NewFromString(weekend); err != nil {
		return def, fmt.Errorf("shift %d weekend_allowance: %w", def.ID, err)
	}
	if def.EffectiveFrom, err = shift.ParseDate(from); err != nil {
		return def, err
	}
	if to.Valid {
		end, err := shift.ParseDate(to.String)
		if err != nil {
			return def, err
		}
		def.EffectiveTo = &end
	}
	return def, nil
}

// =============================================================================
// ALLOCATIONS (shift.AllocationRows interface)
// =============================================================================

// InsertAllocation stores a new allocation.
func (q *queries) InsertAllocation(ctx context.Context, a *shift.Allocation) error {
	query := `
		INSERT INTO shift_allocations
		(project_id, emp_id, shift_code, shift_date, is_approved, approved_by, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := q.db.ExecContext(ctx, query,
		a.ProjectID,
		a.EmployeeID,
		a.ShiftCode,
		a.ShiftDate.String(),
		a.IsApproved,
		nullSupervisor(a.ApprovedBy),
		formatTime(a.LastUpdated),
	)
	if err != nil {
		return translate("store.insert_allocation", err,
			fmt.Sprintf("employee %s already assigned on %s", a.EmployeeID, a.ShiftDate),
			fmt.Sprintf("unknown employee %s or project %d", a.EmployeeID, a.ProjectID))
	}

	id, err := res.LastInsertId()
	a.ID = shift.AllocationID(id)
	return err
}

// AllocationExists reports whether emp has any allocation on day.
func (q *queries) AllocationExists(ctx context.Context, project shift.ProjectID, emp shift.EmployeeID, day shift.Date) (bool, error) {
	var count int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM shift_allocations
		WHERE project_id = ? AND emp_id = ? AND shift_date = ?`,
		project, emp, day.String()).Scan(&count)
	return count > 0, err
}

// DeleteAllocations hard-deletes allocations by ID within a project.
func (q *queries) DeleteAllocations(ctx context.Context, project shift.ProjectID, ids []shift.AllocationID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, project)
	for _, id := range ids {
		args = append(args, id)
	}

	query := `DELETE FROM shift_allocations
		WHERE project_id = ? AND allocation_id IN (` + placeholders(len(ids)) + `)`

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetDayApproval updates every allocation of the project on day.
func (q *queries) SetDayApproval(ctx context.Context, project shift.ProjectID, day shift.Date, approved bool, by *shift.SupervisorID, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE shift_allocations
		SET is_approved = ?, approved_by = ?, last_updated = ?
		WHERE project_id = ? AND shift_date = ?`,
		approved, nullSupervisor(by), formatTime(at), project, day.String())
	if err != nil {
		return 0, translate("store.set_day_approval", err,
			fmt.Sprintf("approval for %s", day),
			fmt.Sprintf("unknown approver for %s", day))
	}
	return res.RowsAffected()
}

// ListAllocations returns allocations joined with employee and approver names.
func (q *queries) ListAllocations(ctx context.Context, f shift.AllocationFilter) ([]shift.AllocationView, error) {
	where := []string{"a.project_id = ?", "a.shift_date BETWEEN ? AND ?"}
	args := []any{f.ProjectID, f.From.String(), f.To.String()}

	if f.ApprovedOnly {
		where = append(where, "a.is_approved = TRUE")
	}
	if f.EmployeeID != "" {
		where = append(where, "a.emp_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.ShiftCode != "" {
		where = append(where, "a.shift_code = ?")
		args = append(args, f.ShiftCode)
	}

	query := `
		SELECT a.allocation_id, a.project_id, a.emp_id, a.shift_code, a.shift_date,
		       a.is_approved, a.approved_by, a.last_updated,
		       e.emp_name, COALESCE(s.lead_name, '')
		FROM shift_allocations a
		JOIN employees e ON e.emp_id = a.emp_id
		LEFT JOIN supervisors s ON s.lead_id = a.approved_by
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY a.shift_date ASC, a.shift_code ASC, a.allocation_id ASC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []shift.AllocationView
	for rows.Next() {
		var (
			v            shift.AllocationView
			day, updated string
			approvedBy   sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.ProjectID, &v.EmployeeID, &v.ShiftCode, &day,
			&v.IsApproved, &approvedBy, &updated, &v.EmployeeName, &v.ApproverName); err != nil {
			return nil, err
		}
		if v.ShiftDate, err = shift.ParseDate(day); err != nil {
			return nil, err
		}
		if v.LastUpdated, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return nil, fmt.Errorf("allocation %d last_updated: %w", v.ID, err)
		}
		if approvedBy.Valid {
			by := shift.SupervisorID(approvedBy.String)
			v.ApprovedBy = &by
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// =============================================================================
// ROSTER (shift.Roster interface + seed writes)
// =============================================================================

// GetProject returns a project, or nil if it does not exist.
func (q *queries) GetProject(ctx context.Context, id shift.ProjectID) (*shift.Project, error) {
	var p shift.Project
	err := q.db.QueryRowContext(ctx,
		"SELECT project_id, project_name, lead_id FROM projects WHERE project_id = ?", id).
		Scan(&p.ID, &p.Name, &p.LeadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// IsMember reports whether emp belongs to project.
func (q *queries) IsMember(ctx context.Context, project shift.ProjectID, emp shift.EmployeeID) (bool, error) {
	var count int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM project_employees WHERE project_id = ? AND emp_id = ?",
		project, emp).Scan(&count)
	return count > 0, err
}

// ListMembers returns project members ordered by employee ID.
func (q *queries) ListMembers(ctx context.Context, project shift.ProjectID) ([]shift.Employee, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT e.emp_id, e.emp_name
		FROM employees e
		JOIN project_employees pe ON pe.emp_id = e.emp_id
		WHERE pe.project_id = ?
		ORDER BY e.emp_id ASC`, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []shift.Employee
	for rows.Next() {
		var e shift.Employee
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// SaveSupervisor creates or renames a supervisor.
func (q *queries) SaveSupervisor(ctx context.Context, sup shift.Supervisor) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO supervisors (lead_id, lead_name) VALUES (?, ?)
		ON CONFLICT(lead_id) DO UPDATE SET lead_name = excluded.lead_name`,
		sup.ID, sup.Name)
	return err
}

// SaveProject creates or updates a project.
func (q *queries) SaveProject(ctx context.Context, p shift.Project) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO projects (project_id, project_name, lead_id) VALUES (?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			project_name = excluded.project_name,
			lead_id = excluded.lead_id`,
		p.ID, p.Name, p.LeadID)
	return translate("store.save_project", err,
		fmt.Sprintf("project %d", p.ID),
		fmt.Sprintf("unknown lead %s for project %d", p.LeadID, p.ID))
}

// SaveEmployee creates or renames an employee.
func (q *queries) SaveEmployee(ctx context.Context, e shift.Employee) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO employees (emp_id, emp_name) VALUES (?, ?)
		ON CONFLICT(emp_id) DO UPDATE SET emp_name = excluded.emp_name`,
		e.ID, e.Name)
	return err
}

// AddMember adds emp to project. Existing memberships are kept.
func (q *queries) AddMember(ctx context.Context, project shift.ProjectID, emp shift.EmployeeID) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO project_employees (project_id, emp_id) VALUES (?, ?)",
		project, emp)
	return translate("store.add_member", err,
		fmt.Sprintf("member %s of project %d", emp, project),
		fmt.Sprintf("unknown employee %s or project %d", emp, project))
}

// =============================================================================
// HOLIDAYS (shift.HolidayCalendar interface)
// =============================================================================

// SaveHoliday creates or renames a project holiday.
func (q *queries) SaveHoliday(ctx context.Context, h shift.Holiday) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO holidays (project_id, date, name) VALUES (?, ?, ?)
		ON CONFLICT(project_id, date) DO UPDATE SET name = excluded.name`,
		h.ProjectID, h.Date.String(), h.Name)
	return err
}

// HolidaysBetween returns holidays in [from, to] keyed by ISO date.
func (q *queries) HolidaysBetween(ctx context.Context, project shift.ProjectID, from, to shift.Date) (shift.HolidayMap, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT project_id, date, name
		FROM holidays
		WHERE project_id = ? AND date BETWEEN ? AND ?
		ORDER BY date ASC`,
		project, from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	holidays := make(shift.HolidayMap)
	for rows.Next() {
		var (
			h   shift.Holiday
			day string
		)
		if err := rows.Scan(&h.ProjectID, &day, &h.Name); err != nil {
			return nil, err
		}
		if h.Date, err = shift.ParseDate(day); err != nil {
			return nil, err
		}
		holidays[h.Date.String()] = h
	}
	return holidays, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset deletes all data. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"shift_allocations",
		"shift_masters",
		"holidays",
		"project_employees",
		"projects",
		"employees",
		"supervisors",
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, t := range tables {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

// Helper functions

func nullDate(d *shift.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullSupervisor(id *shift.SupervisorID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// translate maps SQLite constraint failures onto engine error kinds:
// duplicates become Conflict with the duplicate message, dangling foreign
// keys become Validation with the missing message. Other errors pass
// through unchanged.
func translate(op string, err error, duplicate, missing string) error {
	if err == nil {
		return nil
	}
	var sqlErr sqlite3.Error
	if !errors.As(err, &sqlErr) || sqlErr.Code != sqlite3.ErrConstraint {
		return err
	}
	switch sqlErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return shift.Conflict(op, err, "%s", duplicate)
	case sqlite3.ErrConstraintForeignKey:
		return &shift.Error{Kind: shift.KindValidation, Op: op, Msg: missing, Err: err}
	}
	return err
}
