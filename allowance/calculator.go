/*
Package allowance computes per-employee shift allowances for a date range.

PURPOSE:
  Answers "how much allowance has each employee earned between two dates?"
  from approved shift allocations, the shift versions in force on each
  worked date, and the project's holiday calendar.

RATE PRIORITY (evaluated per allocation, first match wins):
  1. Saturday/Sunday   -> WeekendShiftCount++, weekend rate
                          (even when the date is also a holiday)
  2. Weekday holiday   -> HolidayShiftCount++, weekend rate
  3. Ordinary weekday  -> ShiftCounts[code]++, weekday rate

VERSIONED RATES:
  Each allocation is priced with the version of its shift that covers the
  allocation's own date, so a mid-range rate change splits the range
  correctly. An allocation whose code has no active version on its date is
  EXCLUDED: it adds nothing to any count or total and its ID is reported in
  Report.Excluded.

EXAMPLE:
  MORN weekday=100 weekend=150, employee works Sat, a Tuesday holiday and a
  plain Wednesday:

    WeekendShiftCount=1  HolidayShiftCount=1  ShiftCounts={MORN:1}
    TotalAllowance = 150 + 150 + 100 = 400

SEE ALSO:
  - shift/registry.go: ListOverlapping
  - shift/allocation.go: ListForRange
*/
package allowance

import (
	"context"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/shift"
)

// =============================================================================
// INPUTS
// =============================================================================

// ShiftCatalog lists shift versions intersecting a range.
type ShiftCatalog interface {
	ListOverlapping(ctx context.Context, project shift.ProjectID, from, to shift.Date) ([]shift.Definition, error)
}

// AllocationLister lists allocations in a range.
type AllocationLister interface {
	ListForRange(ctx context.Context, project shift.ProjectID, from, to shift.Date, approvedOnly bool) ([]shift.AllocationView, error)
}

// =============================================================================
// DAY CLASSIFICATION
// =============================================================================

// DayKind is the pay class of a worked date.
type DayKind int

const (
	Weekday DayKind = iota
	Weekend
	Holiday
)

func (k DayKind) String() string {
	switch k {
	case Weekend:
		return "weekend"
	case Holiday:
		return "holiday"
	default:
		return "weekday"
	}
}

// Classify applies the rate priority: weekend beats holiday beats weekday.
func Classify(day shift.Date, holidays shift.HolidayMap) DayKind {
	if day.IsWeekend() {
		return Weekend
	}
	if _, ok := holidays.Lookup(day); ok {
		return Holiday
	}
	return Weekday
}

// Rate returns the allowance def pays for a day of the given kind.
// Holidays are paid at the weekend rate.
func Rate(def shift.Definition, kind DayKind) decimal.Decimal {
	if kind == Weekday {
		return def.WeekdayAllowance
	}
	return def.WeekendAllowance
}

// =============================================================================
// REPORT
// =============================================================================

// Row is one employee's accumulated allowance.
type Row struct {
	EmployeeID        shift.EmployeeID
	EmployeeName      string
	ShiftCounts       map[string]int // weekday shifts only
	HolidayShiftCount int
	WeekendShiftCount int
	TotalAllowance    decimal.Decimal
}

// Report is the allowance report for a project and range.
type Report struct {
	ProjectID shift.ProjectID
	From, To  shift.Date
	Shifts    []shift.Definition // versions in force during the range
	Rows      []Row              // first-seen employee order
	Excluded  []shift.AllocationID
}

// Calculator is the AllowanceCalculator.
type Calculator struct {
	shifts      ShiftCatalog
	allocations AllocationLister
	holidays    shift.HolidayCalendar
	log         *slog.Logger
}

// NewCalculator wires a calculator. A nil logger discards output.
func NewCalculator(shifts ShiftCatalog, allocations AllocationLister, holidays shift.HolidayCalendar, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Calculator{shifts: shifts, allocations: allocations, holidays: holidays, log: logger}
}

// Report computes allowances for approved allocations in [from, to].
func (c *Calculator) Report(ctx context.Context, project shift.ProjectID, from, to shift.Date) (*Report, error) {
	if to.Before(from) {
		return nil, shift.Invalid("allowance.report", "to_date %s is before from_date %s", to, from)
	}

	defs, err := c.shifts.ListOverlapping(ctx, project, from, to)
	if err != nil {
		return nil, err
	}
	allocs, err := c.allocations.ListForRange(ctx, project, from, to, true)
	if err != nil {
		return nil, err
	}
	holidays, err := c.holidays.HolidaysBetween(ctx, project, from, to)
	if err != nil {
		return nil, err
	}

	report := Compute(defs, allocs, holidays)
	report.ProjectID = project
	report.From, report.To = from, to

	if len(report.Excluded) > 0 {
		c.log.WarnContext(ctx, "allocations without shift version excluded from allowance",
			slog.Int64("project_id", int64(project)),
			slog.Int("excluded", len(report.Excluded)))
	}
	return report, nil
}

// Compute is the pure calculation behind Report. Allocations are expected
// to be approved already.
func Compute(defs []shift.Definition, allocs []shift.AllocationView, holidays shift.HolidayMap) *Report {
	versions := make(map[string][]shift.Definition)
	for _, d := range defs {
		versions[d.Code] = append(versions[d.Code], d)
	}

	report := &Report{Shifts: defs}
	index := make(map[shift.EmployeeID]int)

	for _, a := range allocs {
		i, ok := index[a.EmployeeID]
		if !ok {
			i = len(report.Rows)
			index[a.EmployeeID] = i
			report.Rows = append(report.Rows, Row{
				EmployeeID:     a.EmployeeID,
				EmployeeName:   a.EmployeeName,
				ShiftCounts:    map[string]int{},
				TotalAllowance: decimal.Zero,
			})
		}
		row := &report.Rows[i]

		def, ok := versionOn(versions[a.ShiftCode], a.ShiftDate)
		if !ok {
			report.Excluded = append(report.Excluded, a.ID)
			continue
		}

		kind := Classify(a.ShiftDate, holidays)
		switch kind {
		case Weekend:
			row.WeekendShiftCount++
		case Holiday:
			row.HolidayShiftCount++
		default:
			row.ShiftCounts[a.ShiftCode]++
		}
		row.TotalAllowance = row.TotalAllowance.Add(Rate(def, kind))
	}

	return report
}

func versionOn(defs []shift.Definition, day shift.Date) (shift.Definition, bool) {
	for _, d := range defs {
		if d.IsActive && d.Covers(day) {
			return d, true
		}
	}
	return shift.Definition{}, false
}
