package factory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/shift"
	"github.com/warp/shift-engine/store/sqlite"
)

const seedYAML = `
supervisors:
  - {id: lead-1, name: Priya Nair}
employees:
  - {id: E001, name: Asha Rao}
  - {id: E002, name: Ben Mathew}
projects:
  - id: 1
    name: Apollo
    lead: lead-1
    members: [E001, E002]
shifts:
  - project: 1
    code: MORN
    versions:
      # listed out of order on purpose
      - name: Morning
        start: "06:00"
        end: "14:00"
        weekday_allowance: "110"
        weekend_allowance: "160"
        effective_from: "2025-01-15"
      - name: Morning
        start: "06:00"
        end: "14:00"
        weekday_allowance: "100"
        weekend_allowance: "150"
        effective_from: "2025-01-01"
holidays:
  - {project: 1, date: "2025-01-08", name: Founders Day}
allocations:
  - {project: 1, shift: MORN, date: "2025-01-06", employees: [E001, E002], approved_by: lead-1}
  - {project: 1, shift: MORN, date: "2025-01-16", employees: [E001]}
`

func TestParseSeed_RejectsUnknownFields(t *testing.T) {
	_, err := factory.ParseSeed([]byte("supervisors: []\nprojectz: []\n"))
	assert.Error(t, err)
}

func TestApply_LoadsThroughDomainServices(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	seed, err := factory.ParseSeed([]byte(seedYAML))
	require.NoError(t, err)

	reg := shift.NewRegistry(store, nil)
	allocs := shift.NewAllocations(store, nil)
	require.NoError(t, factory.Apply(ctx, seed, store, reg, allocs))

	// Versions are chained in date order
	history, err := reg.ListHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[1].EffectiveTo)
	assert.Equal(t, "2025-01-14", history[1].EffectiveTo.String())

	// approved_by approves the whole date
	jan6 := shift.MustParseDate("2025-01-06")
	views, err := allocs.ListForRange(ctx, 1, jan6, jan6, true)
	require.NoError(t, err)
	assert.Len(t, views, 2)

	jan16 := shift.MustParseDate("2025-01-16")
	views, err = allocs.ListForRange(ctx, 1, jan16, jan16, false)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].IsApproved)

	holidays, err := store.HolidaysBetween(ctx, 1, jan6, jan16)
	require.NoError(t, err)
	assert.Len(t, holidays, 1)
}

func TestApply_StopsOnDomainError(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	seed, err := factory.ParseSeed([]byte(`
supervisors: [{id: lead-1, name: Priya}]
employees: [{id: E001, name: Asha}]
projects: [{id: 1, name: Apollo, lead: lead-1, members: [E001]}]
allocations:
  - {project: 1, shift: NIGHT, date: "2025-01-06", employees: [E001]}
`))
	require.NoError(t, err)

	err = factory.Apply(ctx, seed, store, shift.NewRegistry(store, nil), shift.NewAllocations(store, nil))
	assert.ErrorIs(t, err, shift.ErrNotFound)
}
