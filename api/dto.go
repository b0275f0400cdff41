/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Shifts:      ShiftDTO, ShiftRequest
  Allocations: AssignRequest, BatchRequest, BatchResponseDTO
  Calendar:    DayDTO, SlotDTO
  Allowances:  AllowanceReportDTO, AllowanceShiftDTO, AllowanceRowDTO
  Roster:      EmployeeDTO
  Scenarios:   ScenarioDTO, LoadScenarioRequest

MONEY:
  Requests accept allowances as JSON numbers or strings (decimal.Decimal).
  Responses render them as numbers.

VALIDATION:
  Validation is done in handlers and domain services, not in DTOs.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/allowance"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/shift"
)

// =============================================================================
// SHIFT MASTERS
// =============================================================================

// ShiftDTO represents one shift version.
type ShiftDTO struct {
	ShiftCode        string  `json:"shift_code"`
	ShiftName        string  `json:"shift_name"`
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
	WeekdayAllowance float64 `json:"weekday_allowance"`
	WeekendAllowance float64 `json:"weekend_allowance"`
	EffectiveFrom    string  `json:"effective_from"`
	EffectiveTo      *string `json:"effective_to"`
	IsActive         bool    `json:"is_active"`
}

// ShiftRequest creates a shift or a new version of one.
// ShiftCode is taken from the URL when versioning.
type ShiftRequest struct {
	ShiftCode        string          `json:"shift_code"`
	ShiftName        string          `json:"shift_name"`
	StartTime        string          `json:"start_time"`
	EndTime          string          `json:"end_time"`
	WeekdayAllowance decimal.Decimal `json:"weekday_allowance"`
	WeekendAllowance decimal.Decimal `json:"weekend_allowance"`
	EffectiveFrom    string          `json:"effective_from"`
}

func (r ShiftRequest) attrs() shift.Attrs {
	return shift.Attrs{
		Name:             r.ShiftName,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		WeekdayAllowance: r.WeekdayAllowance,
		WeekendAllowance: r.WeekendAllowance,
	}
}

func toShiftDTO(d shift.Definition) ShiftDTO {
	dto := ShiftDTO{
		ShiftCode:        d.Code,
		ShiftName:        d.Name,
		StartTime:        d.StartTime,
		EndTime:          d.EndTime,
		WeekdayAllowance: d.WeekdayAllowance.InexactFloat64(),
		WeekendAllowance: d.WeekendAllowance.InexactFloat64(),
		EffectiveFrom:    d.EffectiveFrom.String(),
		IsActive:         d.IsActive,
	}
	if d.EffectiveTo != nil {
		dto.EffectiveTo = strPtr(d.EffectiveTo.String())
	}
	return dto
}

func toShiftDTOs(defs []shift.Definition) []ShiftDTO {
	dtos := make([]ShiftDTO, len(defs))
	for i, d := range defs {
		dtos[i] = toShiftDTO(d)
	}
	return dtos
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

// AssignRequest assigns employees to a shift on a date.
type AssignRequest struct {
	ProjectID int64    `json:"project_id"`
	ShiftCode string   `json:"shift_code"`
	ShiftDate string   `json:"shift_date"`
	EmpIDs    []string `json:"emp_ids"`
}

// BatchAddItem is one addition in a batch.
type BatchAddItem struct {
	EmpID     string `json:"emp_id"`
	ShiftCode string `json:"shift_code"`
	ShiftDate string `json:"shift_date"`
}

// BatchApprovalItem approves or un-approves a whole date.
type BatchApprovalItem struct {
	Date       string `json:"date"`
	IsApproved bool   `json:"is_approved"`
}

// BatchRequest is the body of POST /shifts/apply-batch.
type BatchRequest struct {
	ProjectID int64               `json:"project_id"`
	Add       []BatchAddItem      `json:"add"`
	Remove    []int64             `json:"remove"`
	Approvals []BatchApprovalItem `json:"approvals"`
}

// BatchResponseDTO summarises an applied batch.
type BatchResponseDTO struct {
	Status       string  `json:"status"`
	Removed      int64   `json:"removed"`
	Added        []int64 `json:"added"`
	Skipped      int     `json:"skipped"`
	ApprovalRows int64   `json:"approval_rows"`
}

// AllocationDTO is a created allocation.
type AllocationDTO struct {
	AllocationID int64  `json:"allocation_id"`
	EmpID        string `json:"emp_id"`
	ShiftCode    string `json:"shift_code"`
	ShiftDate    string `json:"shift_date"`
	IsApproved   bool   `json:"is_approved"`
}

func toAllocationDTOs(allocs []shift.Allocation) []AllocationDTO {
	dtos := make([]AllocationDTO, len(allocs))
	for i, a := range allocs {
		dtos[i] = AllocationDTO{
			AllocationID: int64(a.ID),
			EmpID:        string(a.EmployeeID),
			ShiftCode:    a.ShiftCode,
			ShiftDate:    a.ShiftDate.String(),
			IsApproved:   a.IsApproved,
		}
	}
	return dtos
}

// EmployeeDTO represents an employee.
type EmployeeDTO struct {
	EmpID   string `json:"emp_id"`
	EmpName string `json:"emp_name"`
}

// =============================================================================
// WEEKLY CALENDAR
// =============================================================================

// SlotDTO is one employee on one shift.
type SlotDTO struct {
	AllocationID int64  `json:"allocation_id"`
	EmpID        string `json:"emp_id"`
	EmpName      string `json:"emp_name"`
	ProjectID    int64  `json:"project_id"`
	IsApproved   bool   `json:"is_approved"`
}

// DayDTO is one date of the weekly calendar.
type DayDTO struct {
	Shifts      map[string][]SlotDTO `json:"shifts"`
	IsApproved  bool                 `json:"is_approved"`
	ApprovedBy  *string              `json:"approved_by"`
	LastUpdated *string              `json:"last_updated"`
	IsHoliday   bool                 `json:"is_holiday"`
	HolidayName *string              `json:"holiday_name,omitempty"`
}

func toWeekDTO(project shift.ProjectID, week calendar.Week) map[string]DayDTO {
	out := make(map[string]DayDTO, len(week))
	for key, day := range week {
		dto := DayDTO{
			Shifts:     make(map[string][]SlotDTO, len(day.Shifts)),
			IsApproved: day.IsApproved,
			ApprovedBy: day.ApprovedBy,
		}
		for code, slots := range day.Shifts {
			list := make([]SlotDTO, len(slots))
			for i, s := range slots {
				list[i] = SlotDTO{
					AllocationID: int64(s.AllocationID),
					EmpID:        string(s.EmployeeID),
					EmpName:      s.EmployeeName,
					ProjectID:    int64(project),
					IsApproved:   s.IsApproved,
				}
			}
			dto.Shifts[code] = list
		}
		if day.LastUpdated != nil {
			dto.LastUpdated = strPtr(day.LastUpdated.Format(time.RFC3339))
		}
		if day.Holiday != nil {
			dto.IsHoliday = true
			dto.HolidayName = strPtr(day.Holiday.Name)
		}
		out[key] = dto
	}
	return out
}

// =============================================================================
// ALLOWANCE REPORT
// =============================================================================

// AllowanceShiftDTO is a shift version used by the report.
type AllowanceShiftDTO struct {
	ShiftCode        string  `json:"shift_code"`
	ShiftName        string  `json:"shift_name"`
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
	WeekdayAllowance float64 `json:"weekday_allowance"`
	WeekendAllowance float64 `json:"weekend_allowance"`
	EffectiveFrom    string  `json:"effective_from"`
	EffectiveTo      *string `json:"effective_to"`
}

// AllowanceRowDTO is one employee's totals.
type AllowanceRowDTO struct {
	EmpID             string         `json:"emp_id"`
	EmpName           string         `json:"emp_name"`
	ShiftCounts       map[string]int `json:"shift_counts"`
	HolidayShiftCount int            `json:"holiday_shift_count"`
	WeekendShiftCount int            `json:"weekend_shift_count"`
	TotalAllowance    float64        `json:"total_allowance"`
}

// AllowanceReportDTO is the response of the employee allowance report.
type AllowanceReportDTO struct {
	ProjectID           int64               `json:"project_id"`
	FromDate            string              `json:"from_date"`
	ToDate              string              `json:"to_date"`
	Shifts              []AllowanceShiftDTO `json:"shifts"`
	Rows                []AllowanceRowDTO   `json:"rows"`
	ExcludedAllocations []int64             `json:"excluded_allocations"`
}

func toAllowanceReportDTO(r *allowance.Report) AllowanceReportDTO {
	dto := AllowanceReportDTO{
		ProjectID:           int64(r.ProjectID),
		FromDate:            r.From.String(),
		ToDate:              r.To.String(),
		Shifts:              make([]AllowanceShiftDTO, len(r.Shifts)),
		Rows:                make([]AllowanceRowDTO, len(r.Rows)),
		ExcludedAllocations: make([]int64, len(r.Excluded)),
	}
	for i, s := range r.Shifts {
		base := toShiftDTO(s)
		dto.Shifts[i] = AllowanceShiftDTO{
			ShiftCode:        base.ShiftCode,
			ShiftName:        base.ShiftName,
			StartTime:        base.StartTime,
			EndTime:          base.EndTime,
			WeekdayAllowance: base.WeekdayAllowance,
			WeekendAllowance: base.WeekendAllowance,
			EffectiveFrom:    base.EffectiveFrom,
			EffectiveTo:      base.EffectiveTo,
		}
	}
	for i, row := range r.Rows {
		dto.Rows[i] = AllowanceRowDTO{
			EmpID:             string(row.EmployeeID),
			EmpName:           row.EmployeeName,
			ShiftCounts:       row.ShiftCounts,
			HolidayShiftCount: row.HolidayShiftCount,
			WeekendShiftCount: row.WeekendShiftCount,
			TotalAllowance:    row.TotalAllowance.InexactFloat64(),
		}
	}
	for i, id := range r.Excluded {
		dto.ExcludedAllocations[i] = int64(id)
	}
	return dto
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
