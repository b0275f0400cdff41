/*
registry.go - ShiftMasterRegistry: versioned shift definitions

PURPOSE:
  Owns every Definition row. Shift rates and times change over time, and
  allowances for past dates must keep using the rates that applied then, so
  a change never edits a row: it closes the open version and opens a new one.

OPERATIONS:
  Define:          first version of a shift code (open-ended), or a
                   restart after the open version was deactivated
  Version:         close the open version at new_from-1, open a new one
  Resolve:         the active version covering a date
  ListActive:      active versions covering a date, by code
  ListOverlapping: active versions intersecting a date range
  ListHistory:     all versions, by code then newest first
  Deactivate:      hide one version from date lookups

INVARIANTS (per project + code):
  - at most one version has EffectiveTo == nil
  - intervals are pairwise disjoint and contiguous
  - Version always sets the previous EffectiveTo to exactly new_from - 1 day

EXAMPLE:
  reg := shift.NewRegistry(store, logger)
  def, err := reg.Version(ctx, shift.VersionRequest{
      ProjectID: 7, Code: "MORN",
      Attrs: shift.Attrs{Name: "Morning", StartTime: "06:00", EndTime: "14:00",
          WeekdayAllowance: decimal.NewFromInt(120), WeekendAllowance: decimal.NewFromInt(180)},
      EffectiveFrom: shift.NewDate(2025, time.April, 1),
  })
*/
package shift

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Attrs are the mutable attributes of a shift version.
type Attrs struct {
	Name             string
	StartTime        string
	EndTime          string
	WeekdayAllowance decimal.Decimal
	WeekendAllowance decimal.Decimal
}

// DefineRequest creates the first version of a shift code.
type DefineRequest struct {
	ProjectID     ProjectID
	Code          string
	Attrs         Attrs
	EffectiveFrom Date
}

// VersionRequest supersedes the open version of a shift code.
type VersionRequest struct {
	ProjectID     ProjectID
	Code          string
	Attrs         Attrs
	EffectiveFrom Date
}

// Registry is the ShiftMasterRegistry.
type Registry struct {
	store TxStore
	log   *slog.Logger
}

// NewRegistry creates a registry over store. A nil logger discards output.
func NewRegistry(store TxStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{store: store, log: logger}
}

// Define creates a new open-ended version.
//
// A code with an active open version must be changed through Version.
// Otherwise the new version must start after every existing interval; a
// deactivated open version is closed the day before. Both cases, and an
// exact (project, code, effective_from) duplicate, are Conflict.
func (r *Registry) Define(ctx context.Context, req DefineRequest) (*Definition, error) {
	const op = "registry.define"

	if err := validateAttrs(op, req.Code, req.Attrs, req.EffectiveFrom); err != nil {
		return nil, err
	}

	var def *Definition
	err := r.store.WithTx(ctx, func(s Store) error {
		existing, err := s.GetShift(ctx, req.ProjectID, req.Code, req.EffectiveFrom)
		if err != nil {
			return err
		}
		if existing != nil {
			return Conflict(op, nil, "shift %s already exists for effective date %s", req.Code, req.EffectiveFrom)
		}

		versions, err := s.ListShifts(ctx, ShiftFilter{ProjectID: req.ProjectID, Code: req.Code}, OrderByCode)
		if err != nil {
			return err
		}

		// A deactivated open version is closed off at new_from-1 so the
		// code can be restarted; anything reaching new_from blocks it.
		var retired *Definition
		for i := range versions {
			v := versions[i]
			switch {
			case v.IsOpen() && v.IsActive:
				return Conflict(op, nil, "shift %s is already defined; create a new version instead", req.Code)
			case v.EffectiveFrom.AfterOrEqual(req.EffectiveFrom):
				return Conflict(op, nil, "shift %s has a version from %s on or after %s", req.Code, v.EffectiveFrom, req.EffectiveFrom)
			case v.IsOpen():
				retired = &versions[i]
			case v.EffectiveTo.AfterOrEqual(req.EffectiveFrom):
				return Conflict(op, nil, "shift %s is covered until %s", req.Code, v.EffectiveTo)
			}
		}
		if retired != nil {
			if err := s.CloseShift(ctx, retired.ID, req.EffectiveFrom.AddDays(-1)); err != nil {
				return err
			}
		}

		def = newDefinition(req.ProjectID, req.Code, req.Attrs, req.EffectiveFrom)
		return s.InsertShift(ctx, def)
	})
	if err != nil {
		return nil, err
	}

	r.log.InfoContext(ctx, "shift defined",
		slog.Int64("project_id", int64(def.ProjectID)),
		slog.String("shift_code", def.Code),
		slog.String("effective_from", def.EffectiveFrom.String()))
	return def, nil
}

// Version closes the current open version and opens a new one from
// req.EffectiveFrom. Both writes commit together.
func (r *Registry) Version(ctx context.Context, req VersionRequest) (*Definition, error) {
	const op = "registry.version"

	if err := validateAttrs(op, req.Code, req.Attrs, req.EffectiveFrom); err != nil {
		return nil, err
	}

	var (
		def    *Definition
		closed Date
	)
	err := r.store.WithTx(ctx, func(s Store) error {
		open, err := s.ListShifts(ctx, ShiftFilter{
			ProjectID:  req.ProjectID,
			Code:       req.Code,
			ActiveOnly: true,
			OpenOnly:   true,
		}, OrderByCode)
		if err != nil {
			return err
		}
		if len(open) == 0 {
			return NotFound(op, "active shift %s not found", req.Code)
		}
		current := open[len(open)-1]

		if !req.EffectiveFrom.After(current.EffectiveFrom) {
			return &Error{
				Kind: KindValidation,
				Op:   op,
				Msg:  "new effective_from " + req.EffectiveFrom.String() + " is not after " + current.EffectiveFrom.String(),
				Err:  ErrInvalidOrder,
			}
		}

		closed = req.EffectiveFrom.AddDays(-1)
		if err := s.CloseShift(ctx, current.ID, closed); err != nil {
			return err
		}

		def = newDefinition(req.ProjectID, req.Code, req.Attrs, req.EffectiveFrom)
		return s.InsertShift(ctx, def)
	})
	if err != nil {
		return nil, err
	}

	r.log.InfoContext(ctx, "shift versioned",
		slog.Int64("project_id", int64(def.ProjectID)),
		slog.String("shift_code", def.Code),
		slog.String("previous_effective_to", closed.String()),
		slog.String("effective_from", def.EffectiveFrom.String()))
	return def, nil
}

// Resolve returns the active version of code covering day.
func (r *Registry) Resolve(ctx context.Context, project ProjectID, code string, day Date) (*Definition, error) {
	return resolve(ctx, r.store, project, code, day)
}

func resolve(ctx context.Context, s ShiftStore, project ProjectID, code string, day Date) (*Definition, error) {
	defs, err := s.ListShifts(ctx, ShiftFilter{
		ProjectID:  project,
		Code:       code,
		From:       &day,
		To:         &day,
		ActiveOnly: true,
	}, OrderByCode)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, NotFound("registry.resolve", "no active shift %s on %s", code, day)
	}
	return &defs[0], nil
}

// ListActive returns all active versions covering day, ordered by code.
func (r *Registry) ListActive(ctx context.Context, project ProjectID, day Date) ([]Definition, error) {
	return r.ListOverlapping(ctx, project, day, day)
}

// ListOverlapping returns active versions whose interval intersects
// [from, to], ordered by code then effective_from.
func (r *Registry) ListOverlapping(ctx context.Context, project ProjectID, from, to Date) ([]Definition, error) {
	if to.Before(from) {
		return nil, Invalid("registry.list", "to_date %s is before from_date %s", to, from)
	}
	return r.store.ListShifts(ctx, ShiftFilter{
		ProjectID:  project,
		From:       &from,
		To:         &to,
		ActiveOnly: true,
	}, OrderByCode)
}

// ListHistory returns every version of the project, newest first per code.
func (r *Registry) ListHistory(ctx context.Context, project ProjectID) ([]Definition, error) {
	return r.store.ListShifts(ctx, ShiftFilter{ProjectID: project}, OrderHistory)
}

// Deactivate sets is_active=false on one version. The row is kept.
func (r *Registry) Deactivate(ctx context.Context, project ProjectID, code string, effectiveFrom Date) error {
	const op = "registry.deactivate"

	def, err := r.store.GetShift(ctx, project, code, effectiveFrom)
	if err != nil {
		return err
	}
	if def == nil {
		return NotFound(op, "shift %s effective %s not found", code, effectiveFrom)
	}
	if err := r.store.SetShiftActive(ctx, def.ID, false); err != nil {
		return err
	}

	r.log.InfoContext(ctx, "shift deactivated",
		slog.Int64("project_id", int64(project)),
		slog.String("shift_code", code),
		slog.String("effective_from", effectiveFrom.String()))
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func newDefinition(project ProjectID, code string, a Attrs, from Date) *Definition {
	return &Definition{
		ProjectID:        project,
		Code:             code,
		Name:             a.Name,
		StartTime:        a.StartTime,
		EndTime:          a.EndTime,
		WeekdayAllowance: a.WeekdayAllowance,
		WeekendAllowance: a.WeekendAllowance,
		EffectiveFrom:    from,
		IsActive:         true,
	}
}

func validateAttrs(op, code string, a Attrs, from Date) error {
	switch {
	case strings.TrimSpace(code) == "":
		return Invalid(op, "shift_code is required")
	case strings.TrimSpace(a.Name) == "":
		return Invalid(op, "shift_name is required")
	case from.IsZero():
		return Invalid(op, "effective_from is required")
	case a.WeekdayAllowance.IsNegative():
		return Invalid(op, "weekday_allowance must be >= 0")
	case a.WeekendAllowance.IsNegative():
		return Invalid(op, "weekend_allowance must be >= 0")
	}
	if !validClock(a.StartTime) {
		return Invalid(op, "invalid start_time %q (use HH:MM)", a.StartTime)
	}
	if !validClock(a.EndTime) {
		return Invalid(op, "invalid end_time %q (use HH:MM)", a.EndTime)
	}
	return nil
}

func validClock(s string) bool {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
