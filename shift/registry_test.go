package shift_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/shift"
	"github.com/warp/shift-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const project shift.ProjectID = 1

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveSupervisor(ctx, shift.Supervisor{ID: "lead-1", Name: "Priya Nair"}))
	require.NoError(t, store.SaveProject(ctx, shift.Project{ID: project, Name: "Apollo", LeadID: "lead-1"}))
	for _, e := range []shift.Employee{{ID: "E001", Name: "Asha"}, {ID: "E002", Name: "Ben"}, {ID: "E003", Name: "Chitra"}} {
		require.NoError(t, store.SaveEmployee(ctx, e))
		require.NoError(t, store.AddMember(ctx, project, e.ID))
	}
	return store
}

func morning(weekday, weekend int64) shift.Attrs {
	return shift.Attrs{
		Name:             "Morning",
		StartTime:        "06:00",
		EndTime:          "14:00",
		WeekdayAllowance: decimal.NewFromInt(weekday),
		WeekendAllowance: decimal.NewFromInt(weekend),
	}
}

func define(t *testing.T, reg *shift.Registry, code string, from string, attrs shift.Attrs) *shift.Definition {
	def, err := reg.Define(context.Background(), shift.DefineRequest{
		ProjectID:     project,
		Code:          code,
		Attrs:         attrs,
		EffectiveFrom: shift.MustParseDate(from),
	})
	require.NoError(t, err)
	return def
}

func version(reg *shift.Registry, code, from string, attrs shift.Attrs) (*shift.Definition, error) {
	return reg.Version(context.Background(), shift.VersionRequest{
		ProjectID:     project,
		Code:          code,
		Attrs:         attrs,
		EffectiveFrom: shift.MustParseDate(from),
	})
}

// =============================================================================
// DEFINE
// =============================================================================

func TestRegistry_Define_OpenEnded(t *testing.T) {
	reg := shift.NewRegistry(newTestStore(t), nil)

	def := define(t, reg, "MORN", "2025-01-01", morning(100, 150))

	assert.NotZero(t, def.ID)
	assert.True(t, def.IsOpen())
	assert.True(t, def.IsActive)
}

func TestRegistry_Define_DuplicateIsConflict(t *testing.T) {
	// GIVEN: MORN defined from Jan 1
	// WHEN: Defining MORN again, same date or later
	// THEN: Conflict both times, history unchanged

	ctx := context.Background()
	reg := shift.NewRegistry(newTestStore(t), nil)
	define(t, reg, "MORN", "2025-01-01", morning(100, 150))

	_, err := reg.Define(ctx, shift.DefineRequest{ProjectID: project, Code: "MORN", Attrs: morning(1, 1), EffectiveFrom: shift.MustParseDate("2025-01-01")})
	assert.ErrorIs(t, err, shift.ErrConflict)

	_, err = reg.Define(ctx, shift.DefineRequest{ProjectID: project, Code: "MORN", Attrs: morning(1, 1), EffectiveFrom: shift.MustParseDate("2025-03-01")})
	assert.ErrorIs(t, err, shift.ErrConflict)

	history, err := reg.ListHistory(ctx, project)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRegistry_Define_Validation(t *testing.T) {
	ctx := context.Background()
	reg := shift.NewRegistry(newTestStore(t), nil)

	bad := morning(100, 150)
	bad.WeekdayAllowance = decimal.NewFromInt(-1)
	_, err := reg.Define(ctx, shift.DefineRequest{ProjectID: project, Code: "MORN", Attrs: bad, EffectiveFrom: shift.MustParseDate("2025-01-01")})
	assert.Equal(t, shift.KindValidation, shift.KindOf(err))

	bad = morning(100, 150)
	bad.StartTime = "6am"
	_, err = reg.Define(ctx, shift.DefineRequest{ProjectID: project, Code: "MORN", Attrs: bad, EffectiveFrom: shift.MustParseDate("2025-01-01")})
	assert.Equal(t, shift.KindValidation, shift.KindOf(err))

	_, err = reg.Define(ctx, shift.DefineRequest{ProjectID: project, Code: "", Attrs: morning(1, 1), EffectiveFrom: shift.MustParseDate("2025-01-01")})
	assert.Equal(t, shift.KindValidation, shift.KindOf(err))
}

// =============================================================================
// VERSION
// =============================================================================

func TestRegistry_Version_ClosesPreviousAtDayBefore(t *testing.T) {
	// GIVEN: MORN open from Jan 1
	// WHEN: A new version from Apr 1
	// THEN: Old version ends Mar 31, new one is open-ended

	ctx := context.Background()
	reg := shift.NewRegistry(newTestStore(t), nil)
	define(t, reg, "MORN", "2025-01-01", morning(100, 150))

	def, err := version(reg, "MORN", "2025-04-01", morning(120, 180))
	require.NoError(t, err)
	assert.True(t, def.IsOpen())

	history, err := reg.ListHistory(ctx, project)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Newest first
	assert.Equal(t, "2025-04-01", history[0].EffectiveFrom.String())
	assert.Nil(t, history[0].EffectiveTo)
	assert.Equal(t, "2025-01-01", history[1].EffectiveFrom.String())
	require.NotNil(t, history[1].EffectiveTo)
	assert.Equal(t, "2025-03-31", history[1].EffectiveTo.String())
}

func TestRegistry_Version_IntervalsStayContiguous(t *testing.T) {
	ctx := context.Background()
	reg := shift.NewRegistry(newTestStore(t), nil)
	define(t, reg, "MORN", "2025-01-01", morning(100, 150))

	for _, from := range []string{"2025-02-01", "2025-02-15", "2025-06-30"} {
		_, err := version(reg, "MORN", from, morning(110, 160))
		require.NoError(t, err)
	}

	history, err := reg.ListHistory(ctx, project)
	require.NoError(t, err)
	require.Len(t, history, 4)

	open := 0
	for i, def := range history {
		if def.IsOpen() {
			open++
			continue
		}
		// history is newest first: the next newer version starts the day after
		newer := history[i-1]
		assert.Equal(t, newer.EffectiveFrom.AddDays(-1).String(), def.EffectiveTo.String())
	}
	assert.Equal(t, 1, open)

	// Every day maps to exactly one version
	for _, day := range shift.DaysIn(shift.MustParseDate("2025-01-01"), shift.MustParseDate("2025-12-31")) {
		defs, err := reg.ListActive(ctx, project, day)
		require.NoError(t, err)
		assert.Len(t, defs, 1, "day %s", day)
	}
}

func TestRegistry_Version_SameOrEarlierDateRejected(t *testing.T) {
	// GIVEN: MORN open from Apr 1
	// WHEN: Versioning from Apr 1 or Mar 1
	// THEN: InvalidOrder validation error, nothing changed

	ctx := context.Background()
	reg := shift.NewRegistry(newTestStore(t), nil)
	define(t, reg, "MORN", "2025-04-01", morning(100, 150))

	for _, from := range []string{"2025-04-01", "2025-03-01"} {
		_, err := version(reg, "MORN", from, morning(120, 180))
		require.Error(t, err)
		assert.ErrorIs(t, err, shift.ErrInvalidOrder)
		assert.ErrorIs(t, err, shift.ErrValidation)
		assert.Equal(t, shift.KindValidation, shift.KindOf(err))
	}

	history, err := reg.ListHistory(ctx, project)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].IsOpen())
	assert.True(t, history[0].WeekdayAllowance.Equal(decimal.NewFromInt(100)))
}

func TestRegistry_Version_UnknownShiftNotFound(t *testing.T) {
	reg := shift.NewRegistry(newTestStore(t), nil)

	_, err := version(reg, "NIGHT", "2025-04-01", morning(120, 180))
	assert.ErrorIs(t, err, shift.ErrNotFound)
}

func TestRegistry_Version_DeactivatedOpenVersionNotFound(t *testing.T) {
	ctx := context.Background()
	reg := shift.NewRegistry(newTestStore(t), nil)
	define(t, reg, "MORN", "2025-01-01", morning(100, 150))
	require.NoError(t, reg.Deactivate(ctx, project, "MORN", shift.MustParseDate("2025-01-01")))

	_, err := version(reg, "MORN", "2025-04-01", morning(120, 180))
	assert.ErrorIs(t, err, shift.ErrNotFound)
}

// =============================================================================
// LOOKUPS
// =============================================================================

func TestRegistry_Resolve_PicksVersionForDate(t *testing.T) {
	ctx := context.Background()
	reg := shift.NewRegistry(newTestStore(t), nil)
	define(t, reg, "MORN", "2025-01-01", morning(100, 150))
	_, err := version(reg, "MORN", "2025-04-01", morning(120, 180))
	require.NoError(t, err)

	def, err := reg.Resolve(ctx, project, "MORN", shift.MustParseDate("2025-03-31"))
	require.NoError(t, err)
	assert.True(t, def.WeekdayAllowance.Equal(decimal.NewFromInt(100)))

	def, err = reg.Resolve(ctx, project, "MORN", shift.MustParseDate("2025-04-01"))
	require.NoError(t, err)
	assert.True(t, def.WeekdayAllowance.Equal(decimal.NewFromInt(120)))

	_, err = reg.Resolve(ctx, project, "MORN", shift.MustParseDate("2024-12-31"))
	assert.ErrorIs(t, err, shift.ErrNotFound)
}

func TestRegistry_ListActive_OrderedByCode(t *testing.T) {
	ctx := context.Background()
	reg := shift.NewRegistry(newTestStore(t), nil)
	define(t, reg, "NIGHT", "2025-01-01", morning(200, 300))
	define(t, reg, "EVE", "2025-01-01", morning(120, 180))
	define(t, reg, "MORN", "2025-02-01", morning(100, 150))

	defs, err := reg.ListActive(ctx, project, shift.MustParseDate("2025-01-15"))
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "EVE", defs[0].Code)
	assert.Equal(t, "NIGHT", defs[1].Code)
}

func TestRegistry_ListOverlapping_SpansVersions(t *testing.T) {
	ctx := context.Background()
	reg := shift.NewRegistry(newTestStore(t), nil)
	define(t, reg, "MORN", "2025-01-01", morning(100, 150))
	_, err := version(reg, "MORN", "2025-01-15", morning(110, 160))
	require.NoError(t, err)

	defs, err := reg.ListOverlapping(ctx, project, shift.MustParseDate("2025-01-13"), shift.MustParseDate("2025-01-19"))
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "2025-01-01", defs[0].EffectiveFrom.String())
	assert.Equal(t, "2025-01-15", defs[1].EffectiveFrom.String())

	_, err = reg.ListOverlapping(ctx, project, shift.MustParseDate("2025-01-19"), shift.MustParseDate("2025-01-13"))
	assert.Equal(t, shift.KindValidation, shift.KindOf(err))
}

func TestRegistry_Deactivate_HidesVersion(t *testing.T) {
	ctx := context.Background()
	reg := shift.NewRegistry(newTestStore(t), nil)
	define(t, reg, "MORN", "2025-01-01", morning(100, 150))

	require.NoError(t, reg.Deactivate(ctx, project, "MORN", shift.MustParseDate("2025-01-01")))

	defs, err := reg.ListActive(ctx, project, shift.MustParseDate("2025-01-15"))
	require.NoError(t, err)
	assert.Empty(t, defs)

	// Row is kept for history
	history, err := reg.ListHistory(ctx, project)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].IsActive)

	err = reg.Deactivate(ctx, project, "MORN", shift.MustParseDate("2025-05-01"))
	assert.True(t, errors.Is(err, shift.ErrNotFound))
}

func TestRegistry_Define_RestartsDeactivatedCode(t *testing.T) {
	// GIVEN: MORN open from Jan 1, then deactivated
	// WHEN: Defining MORN again from Jun 1
	// THEN: The old version is closed May 31, the new one is open and
	//       resolvable, and Version works again

	ctx := context.Background()
	reg := shift.NewRegistry(newTestStore(t), nil)
	define(t, reg, "MORN", "2025-01-01", morning(100, 150))
	require.NoError(t, reg.Deactivate(ctx, project, "MORN", shift.MustParseDate("2025-01-01")))

	def := define(t, reg, "MORN", "2025-06-01", morning(130, 190))
	assert.True(t, def.IsOpen())

	history, err := reg.ListHistory(ctx, project)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].IsOpen())
	assert.True(t, history[0].IsActive)
	require.NotNil(t, history[1].EffectiveTo)
	assert.Equal(t, "2025-05-31", history[1].EffectiveTo.String())
	assert.False(t, history[1].IsActive)

	resolved, err := reg.Resolve(ctx, project, "MORN", shift.MustParseDate("2025-06-02"))
	require.NoError(t, err)
	assert.True(t, resolved.WeekdayAllowance.Equal(decimal.NewFromInt(130)))

	_, err = reg.Resolve(ctx, project, "MORN", shift.MustParseDate("2025-03-01"))
	assert.ErrorIs(t, err, shift.ErrNotFound)

	_, err = version(reg, "MORN", "2025-09-01", morning(140, 200))
	require.NoError(t, err)
}

func TestRegistry_Define_RestartMustStartAfterExistingVersions(t *testing.T) {
	ctx := context.Background()
	reg := shift.NewRegistry(newTestStore(t), nil)
	define(t, reg, "MORN", "2025-01-01", morning(100, 150))
	_, err := version(reg, "MORN", "2025-04-01", morning(120, 180))
	require.NoError(t, err)
	require.NoError(t, reg.Deactivate(ctx, project, "MORN", shift.MustParseDate("2025-04-01")))

	// Overlaps the closed Jan-Mar version
	_, err = reg.Define(ctx, shift.DefineRequest{ProjectID: project, Code: "MORN", Attrs: morning(1, 1), EffectiveFrom: shift.MustParseDate("2025-03-15")})
	assert.ErrorIs(t, err, shift.ErrConflict)

	// Starts before the deactivated open version
	_, err = reg.Define(ctx, shift.DefineRequest{ProjectID: project, Code: "MORN", Attrs: morning(1, 1), EffectiveFrom: shift.MustParseDate("2025-03-31")})
	assert.ErrorIs(t, err, shift.ErrConflict)

	history, err := reg.ListHistory(ctx, project)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].IsOpen())
}
