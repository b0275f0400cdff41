/*
Package factory provides YAML to Go seed conversion.

PURPOSE:
  Converts a YAML seed document into roster rows, shift versions, holidays
  and allocations, and loads them through the same domain operations the
  API uses. Shift versions therefore obey the registry's ordering rules and
  allocations obey the uniqueness rules.

YAML SCHEMA:
  supervisors:
    - {id: lead-1, name: Priya Nair}
  employees:
    - {id: E001, name: Asha Rao}
  projects:
    - id: 1
      name: Apollo
      lead: lead-1
      members: [E001]
  shifts:
    - project: 1
      code: MORN
      versions:                       # oldest first
        - name: Morning
          start: "06:00"
          end: "14:00"
          weekday_allowance: "100"
          weekend_allowance: "150"
          effective_from: "2025-01-01"
  holidays:
    - {project: 1, date: "2025-01-26", name: Republic Day}
  allocations:
    - project: 1
      shift: MORN
      date: "2025-01-06"
      employees: [E001]
      approved_by: lead-1             # optional: approves the whole date

USAGE:
  seed, err := factory.ParseSeed(data)
  err = factory.Apply(ctx, seed, store, registry, allocations)

SEE ALSO:
  - api/scenarios.go: demo scenarios built from embedded seeds
  - cmd/server/main.go: --seed flag
*/
package factory

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/shift"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

// Seed is the root of a seed document.
type Seed struct {
	Supervisors []PersonYAML     `yaml:"supervisors"`
	Employees   []PersonYAML     `yaml:"employees"`
	Projects    []ProjectYAML    `yaml:"projects"`
	Shifts      []ShiftYAML      `yaml:"shifts"`
	Holidays    []HolidayYAML    `yaml:"holidays"`
	Allocations []AllocationYAML `yaml:"allocations"`
}

// PersonYAML is a supervisor or employee.
type PersonYAML struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ProjectYAML is a project with its lead and members.
type ProjectYAML struct {
	ID      int64    `yaml:"id"`
	Name    string   `yaml:"name"`
	Lead    string   `yaml:"lead"`
	Members []string `yaml:"members"`
}

// ShiftYAML is the version history of one shift code.
type ShiftYAML struct {
	Project  int64         `yaml:"project"`
	Code     string        `yaml:"code"`
	Versions []VersionYAML `yaml:"versions"`
}

// VersionYAML is one shift version.
type VersionYAML struct {
	Name             string `yaml:"name"`
	Start            string `yaml:"start"`
	End              string `yaml:"end"`
	WeekdayAllowance string `yaml:"weekday_allowance"`
	WeekendAllowance string `yaml:"weekend_allowance"`
	EffectiveFrom    string `yaml:"effective_from"`
}

// HolidayYAML is one project holiday.
type HolidayYAML struct {
	Project int64  `yaml:"project"`
	Date    string `yaml:"date"`
	Name    string `yaml:"name"`
}

// AllocationYAML assigns employees to a shift on a date.
type AllocationYAML struct {
	Project    int64    `yaml:"project"`
	Shift      string   `yaml:"shift"`
	Date       string   `yaml:"date"`
	Employees  []string `yaml:"employees"`
	ApprovedBy string   `yaml:"approved_by,omitempty"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseSeed decodes a YAML seed document. Unknown fields are rejected.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	return &seed, nil
}

// LoadSeedFile reads and parses a seed file.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return ParseSeed(data)
}

// =============================================================================
// LOADING
// =============================================================================

// RosterWriter receives roster and holiday rows.
type RosterWriter interface {
	SaveSupervisor(ctx context.Context, sup shift.Supervisor) error
	SaveEmployee(ctx context.Context, e shift.Employee) error
	SaveProject(ctx context.Context, p shift.Project) error
	AddMember(ctx context.Context, project shift.ProjectID, emp shift.EmployeeID) error
	SaveHoliday(ctx context.Context, h shift.Holiday) error
}

// Registry creates shift versions.
type Registry interface {
	Define(ctx context.Context, req shift.DefineRequest) (*shift.Definition, error)
	Version(ctx context.Context, req shift.VersionRequest) (*shift.Definition, error)
}

// Assigner creates and approves allocations.
type Assigner interface {
	Assign(ctx context.Context, req shift.AssignRequest) ([]shift.Allocation, error)
	ApplyBatch(ctx context.Context, req shift.BatchRequest) (*shift.BatchResult, error)
}

// Apply loads seed in dependency order: people, projects, holidays, shifts,
// allocations.
func Apply(ctx context.Context, seed *Seed, roster RosterWriter, reg Registry, assigner Assigner) error {
	for _, s := range seed.Supervisors {
		if err := roster.SaveSupervisor(ctx, shift.Supervisor{ID: shift.SupervisorID(s.ID), Name: s.Name}); err != nil {
			return fmt.Errorf("supervisor %s: %w", s.ID, err)
		}
	}
	for _, e := range seed.Employees {
		if err := roster.SaveEmployee(ctx, shift.Employee{ID: shift.EmployeeID(e.ID), Name: e.Name}); err != nil {
			return fmt.Errorf("employee %s: %w", e.ID, err)
		}
	}
	for _, p := range seed.Projects {
		project := shift.Project{ID: shift.ProjectID(p.ID), Name: p.Name, LeadID: shift.SupervisorID(p.Lead)}
		if err := roster.SaveProject(ctx, project); err != nil {
			return fmt.Errorf("project %d: %w", p.ID, err)
		}
		for _, m := range p.Members {
			if err := roster.AddMember(ctx, project.ID, shift.EmployeeID(m)); err != nil {
				return fmt.Errorf("project %d member %s: %w", p.ID, m, err)
			}
		}
	}
	for _, h := range seed.Holidays {
		day, err := shift.ParseDate(h.Date)
		if err != nil {
			return fmt.Errorf("holiday %q: %w", h.Name, err)
		}
		if err := roster.SaveHoliday(ctx, shift.Holiday{ProjectID: shift.ProjectID(h.Project), Date: day, Name: h.Name}); err != nil {
			return fmt.Errorf("holiday %s: %w", h.Date, err)
		}
	}
	for _, s := range seed.Shifts {
		if err := applyShift(ctx, reg, s); err != nil {
			return err
		}
	}
	for _, a := range seed.Allocations {
		if err := applyAllocation(ctx, assigner, a); err != nil {
			return err
		}
	}
	return nil
}

func applyShift(ctx context.Context, reg Registry, s ShiftYAML) error {
	type parsed struct {
		attrs shift.Attrs
		from  shift.Date
	}

	versions := make([]parsed, 0, len(s.Versions))
	for _, v := range s.Versions {
		attrs, from, err := v.toDomain()
		if err != nil {
			return fmt.Errorf("shift %s: %w", s.Code, err)
		}
		versions = append(versions, parsed{attrs: attrs, from: from})
	}
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].from.Before(versions[j].from)
	})

	project := shift.ProjectID(s.Project)
	for i, v := range versions {
		var err error
		if i == 0 {
			_, err = reg.Define(ctx, shift.DefineRequest{ProjectID: project, Code: s.Code, Attrs: v.attrs, EffectiveFrom: v.from})
		} else {
			_, err = reg.Version(ctx, shift.VersionRequest{ProjectID: project, Code: s.Code, Attrs: v.attrs, EffectiveFrom: v.from})
		}
		if err != nil {
			return fmt.Errorf("shift %s from %s: %w", s.Code, v.from, err)
		}
	}
	return nil
}

func applyAllocation(ctx context.Context, assigner Assigner, a AllocationYAML) error {
	day, err := shift.ParseDate(a.Date)
	if err != nil {
		return fmt.Errorf("allocation %s: %w", a.Shift, err)
	}

	emps := make([]shift.EmployeeID, len(a.Employees))
	for i, e := range a.Employees {
		emps[i] = shift.EmployeeID(e)
	}

	project := shift.ProjectID(a.Project)
	if _, err := assigner.Assign(ctx, shift.AssignRequest{
		ProjectID:   project,
		ShiftCode:   a.Shift,
		ShiftDate:   day,
		EmployeeIDs: emps,
	}); err != nil {
		return fmt.Errorf("allocation %s on %s: %w", a.Shift, a.Date, err)
	}

	if a.ApprovedBy == "" {
		return nil
	}
	_, err = assigner.ApplyBatch(ctx, shift.BatchRequest{
		ProjectID: project,
		Actor:     shift.SupervisorID(a.ApprovedBy),
		Approvals: []shift.BatchApproval{{Date: day, IsApproved: true}},
	})
	if err != nil {
		return fmt.Errorf("approve %s: %w", a.Date, err)
	}
	return nil
}

func (v VersionYAML) toDomain() (shift.Attrs, shift.Date, error) {
	weekday, err := decimal.NewFromString(v.WeekdayAllowance)
	if err != nil {
		return shift.Attrs{}, shift.Date{}, fmt.Errorf("weekday_allowance %q: %w", v.WeekdayAllowance, err)
	}
	weekend, err := decimal.NewFromString(v.WeekendAllowance)
	if err != nil {
		return shift.Attrs{}, shift.Date{}, fmt.Errorf("weekend_allowance %q: %w", v.WeekendAllowance, err)
	}
	from, err := shift.ParseDate(v.EffectiveFrom)
	if err != nil {
		return shift.Attrs{}, shift.Date{}, err
	}
	return shift.Attrs{
		Name:             v.Name,
		StartTime:        v.Start,
		EndTime:          v.End,
		WeekdayAllowance: weekday,
		WeekendAllowance: weekend,
	}, from, nil
}
