/*
store.go - Persistence contracts for the shift engine

PURPOSE:
  Defines the interface between the domain logic and the database. The store
  is deliberately dumb: it filters, inserts and updates rows. Every business
  rule (version ordering, batch phases, membership checks) lives in the
  registry and allocation services so it can be tested against any store.

KEY INTERFACES:
  ShiftStore:      shift master rows (insert, close, deactivate, filter)
  AllocationRows:  shift allocation rows (insert, delete, bulk approve, filter)
  Roster:          projects, employees, memberships (read-only)
  HolidayCalendar: date -> holiday lookup for a range (read-only)
  Store:           all of the above
  TxStore:         Store plus WithTx for atomic multi-row writes

UNIQUENESS:
  The store MUST enforce, and report as ErrConflict:
  - (project_id, shift_code, effective_from) on shift masters
  - (project_id, emp_id, shift_date) on allocations

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go
*/
package shift

import (
	"context"
	"time"
)

// ShiftFilter selects shift master rows.
type ShiftFilter struct {
	ProjectID ProjectID
	Code      string // empty = all codes
	// From/To keep versions whose interval overlaps [From, To].
	// A single date lookup sets both to the same day.
	From, To   *Date
	ActiveOnly bool
	OpenOnly   bool // effective_to IS NULL
}

// ShiftOrder picks the row order of ListShifts.
type ShiftOrder int

const (
	// OrderByCode sorts by code, then effective_from ascending.
	OrderByCode ShiftOrder = iota
	// OrderHistory sorts by code, then effective_from descending.
	OrderHistory
)

// ShiftStore persists shift master versions.
type ShiftStore interface {
	// InsertShift stores def and sets def.ID. Duplicate identity -> ErrConflict.
	InsertShift(ctx context.Context, def *Definition) error

	// CloseShift sets effective_to on the version with the given ID.
	CloseShift(ctx context.Context, id int64, effectiveTo Date) error

	// SetShiftActive toggles is_active on the version with the given ID.
	SetShiftActive(ctx context.Context, id int64, active bool) error

	// GetShift returns the exact version, or nil if none exists.
	GetShift(ctx context.Context, project ProjectID, code string, effectiveFrom Date) (*Definition, error)

	// ListShifts returns versions matching f.
	ListShifts(ctx context.Context, f ShiftFilter, order ShiftOrder) ([]Definition, error)
}

// AllocationFilter selects allocation rows.
type AllocationFilter struct {
	ProjectID    ProjectID
	From, To     Date
	ApprovedOnly bool
	EmployeeID   EmployeeID // empty = all
	ShiftCode    string     // empty = all
}

// AllocationRows persists shift allocations.
type AllocationRows interface {
	// InsertAllocation stores a and sets a.ID. Duplicate employee/date -> ErrConflict.
	InsertAllocation(ctx context.Context, a *Allocation) error

	// AllocationExists reports whether the employee already has a shift on day.
	AllocationExists(ctx context.Context, project ProjectID, emp EmployeeID, day Date) (bool, error)

	// DeleteAllocations hard-deletes the given IDs within project.
	DeleteAllocations(ctx context.Context, project ProjectID, ids []AllocationID) (int64, error)

	// SetDayApproval updates every allocation of project on day.
	SetDayApproval(ctx context.Context, project ProjectID, day Date, approved bool, by *SupervisorID, at time.Time) (int64, error)

	// ListAllocations returns rows joined with employee and approver names,
	// ordered by shift_date, shift_code, allocation id.
	ListAllocations(ctx context.Context, f AllocationFilter) ([]AllocationView, error)
}

// Roster exposes project membership data.
type Roster interface {
	// GetProject returns the project, or nil if none exists.
	GetProject(ctx context.Context, id ProjectID) (*Project, error)
	IsMember(ctx context.Context, project ProjectID, emp EmployeeID) (bool, error)
	ListMembers(ctx context.Context, project ProjectID) ([]Employee, error)
}

// HolidayCalendar looks up holidays for a project.
type HolidayCalendar interface {
	// HolidaysBetween returns holidays in [from, to] keyed by ISO date.
	HolidaysBetween(ctx context.Context, project ProjectID, from, to Date) (HolidayMap, error)
}

// Store is the full persistence surface.
type Store interface {
	ShiftStore
	AllocationRows
	Roster
	HolidayCalendar
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
