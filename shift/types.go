/*
Package shift is the core of the shift allocation engine.

PURPOSE:
  Employees are assigned to shifts on a project, supervisors approve those
  assignments, and allowances are paid from approved attendance. This package
  owns the two mutable record sets and the rules around them:

  - Definition: a versioned shift (times + pay rates) for a project
  - Allocation: one employee on one shift on one date, with approval state

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: ProjectID, EmployeeID, SupervisorID, AllocationID
  - Definition: slowly-changing shift master row
  - Allocation / AllocationView: assignment rows, raw and joined
  - Holiday / HolidayMap: read-only holiday overlay for a date range
  - Project / Employee / Supervisor: roster data owned elsewhere

VERSIONING (SCD type 2):
  For a (project, code) pair the versions tile time without gaps:

    v1 [2025-01-01 .. 2025-03-31]
    v2 [2025-04-01 .. open      ]

  Only the registry creates or closes versions. Rows are never deleted;
  IsActive=false hides a version from every date lookup.

SEE ALSO:
  - registry.go: ShiftMasterRegistry
  - allocation.go: AllocationStore operations
  - store.go: persistence contracts
*/
package shift

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProjectID int64
type EmployeeID string
type SupervisorID string
type AllocationID int64

// =============================================================================
// SHIFT DEFINITION - One version of a project's shift
// =============================================================================

// Definition is a time-bounded version of a shift's schedule and rates.
// Identity is (ProjectID, Code, EffectiveFrom); ID is a storage surrogate.
type Definition struct {
	ID        int64
	ProjectID ProjectID
	Code      string
	Name      string
	StartTime string // HH:MM or HH:MM:SS
	EndTime   string

	WeekdayAllowance decimal.Decimal
	WeekendAllowance decimal.Decimal

	EffectiveFrom Date
	EffectiveTo   *Date // nil = open-ended
	IsActive      bool
}

// IsOpen reports whether this is the current open-ended version.
func (d Definition) IsOpen() bool { return d.EffectiveTo == nil }

// Covers reports whether the version's interval contains day.
// IsActive is not considered.
func (d Definition) Covers(day Date) bool {
	if day.Before(d.EffectiveFrom) {
		return false
	}
	return d.EffectiveTo == nil || day.BeforeOrEqual(*d.EffectiveTo)
}

// =============================================================================
// ALLOCATION - Employee assigned to a shift on a date
// =============================================================================

// Allocation is unique per (ProjectID, EmployeeID, ShiftDate).
type Allocation struct {
	ID          AllocationID
	ProjectID   ProjectID
	EmployeeID  EmployeeID
	ShiftCode   string
	ShiftDate   Date
	IsApproved  bool
	ApprovedBy  *SupervisorID
	LastUpdated time.Time
}

// AllocationView is an allocation joined with display data.
type AllocationView struct {
	Allocation
	EmployeeName string
	ApproverName string // empty when not approved or approver unknown
}

// =============================================================================
// HOLIDAYS - External, read-only overlay
// =============================================================================

// Holiday is a project holiday.
type Holiday struct {
	ProjectID ProjectID
	Date      Date
	Name      string
}

// HolidayMap maps ISO dates to holidays.
type HolidayMap map[string]Holiday

// Lookup returns the holiday on day, if any.
func (m HolidayMap) Lookup(day Date) (Holiday, bool) {
	h, ok := m[day.String()]
	return h, ok
}

// =============================================================================
// ROSTER - Owned by external collaborators
// =============================================================================

type Project struct {
	ID     ProjectID
	Name   string
	LeadID SupervisorID
}

type Employee struct {
	ID   EmployeeID
	Name string
}

type Supervisor struct {
	ID   SupervisorID
	Name string
}
