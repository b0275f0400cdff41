/*
Package calendar builds the per-date shift calendar used for approvals.

PURPOSE:
  Supervisors approve a week at a time. This package merges allocation
  rows, their approval state and the holiday overlay into one structure
  keyed by ISO date.

PER DATE:
  Shifts       code -> allocations on that code, in store order
  IsApproved   true only if every allocation on the date is approved
  ApprovedBy   approver of the approved allocation with the latest
               last_updated (nil when nothing on the date is approved)
  LastUpdated  max last_updated over the date's allocations
  Holiday      holiday entry, if any

DATE SET:
  A date is present if and only if it has at least one allocation or a
  holiday in range. Holiday-only dates have no shifts and IsApproved=false.

SEE ALSO:
  - shift/allocation.go: ListForRange
  - api/handlers.go: GET /shifts/weekly
*/
package calendar

import (
	"context"
	"sort"
	"time"

	"github.com/warp/shift-engine/shift"
)

// AllocationLister lists allocations in a range.
type AllocationLister interface {
	ListForRange(ctx context.Context, project shift.ProjectID, from, to shift.Date, approvedOnly bool) ([]shift.AllocationView, error)
}

// Slot is one employee on one shift.
type Slot struct {
	AllocationID shift.AllocationID
	EmployeeID   shift.EmployeeID
	EmployeeName string
	IsApproved   bool
}

// Day is the calendar entry for one date.
type Day struct {
	Date        shift.Date
	Shifts      map[string][]Slot
	IsApproved  bool
	ApprovedBy  *string
	LastUpdated *time.Time
	Holiday     *shift.Holiday

	approvedAt time.Time
}

// Week maps ISO dates to calendar days.
type Week map[string]*Day

// Dates returns the keys of w in ascending order.
func (w Week) Dates() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Aggregator is the WeeklyAggregator.
type Aggregator struct {
	allocations AllocationLister
	holidays    shift.HolidayCalendar
}

// NewAggregator wires an aggregator.
func NewAggregator(allocations AllocationLister, holidays shift.HolidayCalendar) *Aggregator {
	return &Aggregator{allocations: allocations, holidays: holidays}
}

// Week returns the calendar for [from, to].
func (a *Aggregator) Week(ctx context.Context, project shift.ProjectID, from, to shift.Date) (Week, error) {
	if to.Before(from) {
		return nil, shift.Invalid("calendar.week", "to_date %s is before from_date %s", to, from)
	}

	allocs, err := a.allocations.ListForRange(ctx, project, from, to, false)
	if err != nil {
		return nil, err
	}
	holidays, err := a.holidays.HolidaysBetween(ctx, project, from, to)
	if err != nil {
		return nil, err
	}
	return Build(allocs, holidays), nil
}

// Build merges allocations and holidays into a Week.
func Build(allocs []shift.AllocationView, holidays shift.HolidayMap) Week {
	week := make(Week)

	for _, alloc := range allocs {
		key := alloc.ShiftDate.String()
		day, ok := week[key]
		if !ok {
			day = &Day{
				Date:       alloc.ShiftDate,
				Shifts:     map[string][]Slot{},
				IsApproved: true,
			}
			if h, ok := holidays[key]; ok {
				day.Holiday = &h
			}
			week[key] = day
		}

		if !alloc.IsApproved {
			day.IsApproved = false
		}

		if day.LastUpdated == nil || alloc.LastUpdated.After(*day.LastUpdated) {
			updated := alloc.LastUpdated
			day.LastUpdated = &updated
		}

		if alloc.IsApproved && alloc.ApproverName != "" &&
			(day.ApprovedBy == nil || alloc.LastUpdated.After(day.approvedAt)) {
			name := alloc.ApproverName
			day.ApprovedBy = &name
			day.approvedAt = alloc.LastUpdated
		}

		day.Shifts[alloc.ShiftCode] = append(day.Shifts[alloc.ShiftCode], Slot{
			AllocationID: alloc.ID,
			EmployeeID:   alloc.EmployeeID,
			EmployeeName: alloc.EmployeeName,
			IsApproved:   alloc.IsApproved,
		})
	}

	for key, h := range holidays {
		if _, ok := week[key]; ok {
			continue
		}
		holiday := h
		week[key] = &Day{
			Date:       h.Date,
			Shifts:     map[string][]Slot{},
			IsApproved: false,
			Holiday:    &holiday,
		}
	}

	return week
}
