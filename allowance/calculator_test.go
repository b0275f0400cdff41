package allowance_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/allowance"
	"github.com/warp/shift-engine/shift"
	"github.com/warp/shift-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func version(code, from, to string, weekday, weekend int64) shift.Definition {
	d := shift.Definition{
		ProjectID:        1,
		Code:             code,
		Name:             code,
		StartTime:        "06:00",
		EndTime:          "14:00",
		WeekdayAllowance: decimal.NewFromInt(weekday),
		WeekendAllowance: decimal.NewFromInt(weekend),
		EffectiveFrom:    shift.MustParseDate(from),
		IsActive:         true,
	}
	if to != "" {
		end := shift.MustParseDate(to)
		d.EffectiveTo = &end
	}
	return d
}

func approved(id int64, emp, code, day string) shift.AllocationView {
	lead := shift.SupervisorID("lead-1")
	return shift.AllocationView{
		Allocation: shift.Allocation{
			ID:         shift.AllocationID(id),
			ProjectID:  1,
			EmployeeID: shift.EmployeeID(emp),
			ShiftCode:  code,
			ShiftDate:  shift.MustParseDate(day),
			IsApproved: true,
			ApprovedBy: &lead,
		},
		EmployeeName: "Name " + emp,
	}
}

func holidays(entries ...string) shift.HolidayMap {
	m := shift.HolidayMap{}
	for _, day := range entries {
		d := shift.MustParseDate(day)
		m[d.String()] = shift.Holiday{ProjectID: 1, Date: d, Name: "Holiday"}
	}
	return m
}

func money(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// =============================================================================
// CLASSIFICATION
// =============================================================================

func TestClassify_WeekendBeatsHoliday(t *testing.T) {
	h := holidays("2025-01-04", "2025-01-07") // Saturday, Tuesday

	assert.Equal(t, allowance.Weekend, allowance.Classify(shift.MustParseDate("2025-01-04"), h))
	assert.Equal(t, allowance.Weekend, allowance.Classify(shift.MustParseDate("2025-01-05"), h))
	assert.Equal(t, allowance.Holiday, allowance.Classify(shift.MustParseDate("2025-01-07"), h))
	assert.Equal(t, allowance.Weekday, allowance.Classify(shift.MustParseDate("2025-01-08"), h))
}

func TestRate_HolidayPaysWeekendRate(t *testing.T) {
	def := version("MORN", "2025-01-01", "", 100, 150)

	assert.True(t, allowance.Rate(def, allowance.Weekday).Equal(money(100)))
	assert.True(t, allowance.Rate(def, allowance.Weekend).Equal(money(150)))
	assert.True(t, allowance.Rate(def, allowance.Holiday).Equal(money(150)))
}

// =============================================================================
// COMPUTE
// =============================================================================

func TestCompute_SaturdayHolidayWeekday(t *testing.T) {
	// GIVEN: MORN 100/150; E001 works Sat Jan 4, holiday Tue Jan 7, Wed Jan 8
	// WHEN: Computing the report
	// THEN: one of each bucket, total 400

	defs := []shift.Definition{version("MORN", "2025-01-01", "", 100, 150)}
	allocs := []shift.AllocationView{
		approved(1, "E001", "MORN", "2025-01-04"),
		approved(2, "E001", "MORN", "2025-01-07"),
		approved(3, "E001", "MORN", "2025-01-08"),
	}

	report := allowance.Compute(defs, allocs, holidays("2025-01-07"))

	require.Len(t, report.Rows, 1)
	row := report.Rows[0]
	assert.Equal(t, 1, row.WeekendShiftCount)
	assert.Equal(t, 1, row.HolidayShiftCount)
	assert.Equal(t, map[string]int{"MORN": 1}, row.ShiftCounts)
	assert.True(t, row.TotalAllowance.Equal(money(400)), "got %s", row.TotalAllowance)
	assert.Empty(t, report.Excluded)
}

func TestCompute_WeekendHolidayCountsAsWeekend(t *testing.T) {
	defs := []shift.Definition{version("MORN", "2025-01-01", "", 100, 150)}
	allocs := []shift.AllocationView{approved(1, "E001", "MORN", "2025-01-04")}

	report := allowance.Compute(defs, allocs, holidays("2025-01-04"))

	row := report.Rows[0]
	assert.Equal(t, 1, row.WeekendShiftCount)
	assert.Zero(t, row.HolidayShiftCount)
	assert.True(t, row.TotalAllowance.Equal(money(150)))
}

func TestCompute_UsesVersionInForceOnEachDate(t *testing.T) {
	// GIVEN: MORN 100 until Jan 14, 110 from Jan 15
	// WHEN: E001 works Mon Jan 13 and Thu Jan 16
	// THEN: 100 + 110

	defs := []shift.Definition{
		version("MORN", "2025-01-01", "2025-01-14", 100, 150),
		version("MORN", "2025-01-15", "", 110, 160),
	}
	allocs := []shift.AllocationView{
		approved(1, "E001", "MORN", "2025-01-13"),
		approved(2, "E001", "MORN", "2025-01-16"),
	}

	report := allowance.Compute(defs, allocs, nil)

	row := report.Rows[0]
	assert.Equal(t, 2, row.ShiftCounts["MORN"])
	assert.True(t, row.TotalAllowance.Equal(money(210)), "got %s", row.TotalAllowance)
}

func TestCompute_UnresolvedAllocationExcluded(t *testing.T) {
	// GIVEN: E002's only allocation is on a code with no version
	// THEN: it is listed in Excluded and adds nothing

	defs := []shift.Definition{version("MORN", "2025-01-01", "", 100, 150)}
	allocs := []shift.AllocationView{
		approved(1, "E001", "MORN", "2025-01-08"),
		approved(2, "E002", "GONE", "2025-01-08"),
	}

	report := allowance.Compute(defs, allocs, nil)

	assert.Equal(t, []shift.AllocationID{2}, report.Excluded)
	require.Len(t, report.Rows, 2)
	assert.Equal(t, shift.EmployeeID("E002"), report.Rows[1].EmployeeID)
	assert.True(t, report.Rows[1].TotalAllowance.IsZero())
	assert.Empty(t, report.Rows[1].ShiftCounts)
}

func TestCompute_InactiveVersionExcluded(t *testing.T) {
	def := version("MORN", "2025-01-01", "", 100, 150)
	def.IsActive = false

	report := allowance.Compute([]shift.Definition{def}, []shift.AllocationView{approved(1, "E001", "MORN", "2025-01-08")}, nil)

	assert.Equal(t, []shift.AllocationID{1}, report.Excluded)
}

func TestCompute_RowsInFirstSeenOrder(t *testing.T) {
	defs := []shift.Definition{version("MORN", "2025-01-01", "", 100, 150)}
	allocs := []shift.AllocationView{
		approved(1, "E003", "MORN", "2025-01-06"),
		approved(2, "E001", "MORN", "2025-01-06"),
		approved(3, "E003", "MORN", "2025-01-07"),
	}

	report := allowance.Compute(defs, allocs, nil)

	require.Len(t, report.Rows, 2)
	assert.Equal(t, shift.EmployeeID("E003"), report.Rows[0].EmployeeID)
	assert.Equal(t, shift.EmployeeID("E001"), report.Rows[1].EmployeeID)
	assert.True(t, report.Rows[0].TotalAllowance.Equal(money(200)))
}

// =============================================================================
// REPORT (SQLite-backed)
// =============================================================================

func TestCalculator_Report_OnlyApprovedAllocations(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.SaveSupervisor(ctx, shift.Supervisor{ID: "lead-1", Name: "Priya"}))
	require.NoError(t, store.SaveProject(ctx, shift.Project{ID: 1, Name: "Apollo", LeadID: "lead-1"}))
	require.NoError(t, store.SaveEmployee(ctx, shift.Employee{ID: "E001", Name: "Asha"}))
	require.NoError(t, store.AddMember(ctx, 1, "E001"))
	require.NoError(t, store.SaveHoliday(ctx, shift.Holiday{ProjectID: 1, Date: shift.MustParseDate("2025-01-07"), Name: "Founders Day"}))

	reg := shift.NewRegistry(store, nil)
	allocs := shift.NewAllocations(store, nil).WithClock(func() time.Time { return time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC) })
	_, err = reg.Define(ctx, shift.DefineRequest{
		ProjectID: 1, Code: "MORN", EffectiveFrom: shift.MustParseDate("2025-01-01"),
		Attrs: shift.Attrs{Name: "Morning", StartTime: "06:00", EndTime: "14:00", WeekdayAllowance: money(100), WeekendAllowance: money(150)},
	})
	require.NoError(t, err)

	for _, day := range []string{"2025-01-04", "2025-01-07", "2025-01-08", "2025-01-09"} {
		_, err := allocs.Assign(ctx, shift.AssignRequest{ProjectID: 1, ShiftCode: "MORN", ShiftDate: shift.MustParseDate(day), EmployeeIDs: []shift.EmployeeID{"E001"}})
		require.NoError(t, err)
	}
	// Jan 9 stays unapproved
	var approvals []shift.BatchApproval
	for _, day := range []string{"2025-01-04", "2025-01-07", "2025-01-08"} {
		approvals = append(approvals, shift.BatchApproval{Date: shift.MustParseDate(day), IsApproved: true})
	}
	_, err = allocs.ApplyBatch(ctx, shift.BatchRequest{ProjectID: 1, Actor: "lead-1", Approvals: approvals})
	require.NoError(t, err)

	calc := allowance.NewCalculator(reg, allocs, store, nil)
	report, err := calc.Report(ctx, 1, shift.MustParseDate("2025-01-01"), shift.MustParseDate("2025-01-31"))
	require.NoError(t, err)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, "Asha", report.Rows[0].EmployeeName)
	assert.True(t, report.Rows[0].TotalAllowance.Equal(money(400)), "got %s", report.Rows[0].TotalAllowance)
	require.Len(t, report.Shifts, 1)

	_, err = calc.Report(ctx, 1, shift.MustParseDate("2025-01-31"), shift.MustParseDate("2025-01-01"))
	assert.Equal(t, shift.KindValidation, shift.KindOf(err))
}
