/*
allocation.go - AllocationStore: assigning employees and batch reconciliation

PURPOSE:
  Owns every Allocation row. Supervisors assign employees to a shift on a
  date, then reconcile a week at a time with a single batch that removes,
  adds and approves.

OPERATIONS:
  Assign:             all-or-nothing insert for a list of employees
  ApplyBatch:         remove -> add (idempotent) -> approve, one transaction
  ListForRange:       joined rows for a date range
  AvailableEmployees: members not yet on a shift/date

ASSIGN IS ATOMIC:
  Every employee is validated (membership, no existing allocation on the
  date) before the first insert, and all inserts share one transaction. A
  failed Assign leaves no rows behind.

APPROVAL IS DATE-SCOPED:
  An approval item {date, approved} updates EVERY allocation of the project
  on that date, including rows not mentioned anywhere else in the batch.
*/
package shift

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// AssignRequest assigns employees to one shift on one date.
type AssignRequest struct {
	ProjectID   ProjectID
	ShiftCode   string
	ShiftDate   Date
	EmployeeIDs []EmployeeID
}

// BatchAdd is one addition in a batch.
type BatchAdd struct {
	EmployeeID EmployeeID
	ShiftCode  string
	ShiftDate  Date
}

// BatchApproval sets the approval state of every allocation on Date.
type BatchApproval struct {
	Date       Date
	IsApproved bool
}

// BatchRequest is a reconciliation batch applied by Actor.
type BatchRequest struct {
	ProjectID ProjectID
	Actor     SupervisorID
	Add       []BatchAdd
	Remove    []AllocationID
	Approvals []BatchApproval
}

// BatchResult summarises what a batch changed.
type BatchResult struct {
	Removed  int64
	Added    []Allocation
	Skipped  int
	Approved int64 // rows touched by the approval phase
}

// Allocations is the AllocationStore.
type Allocations struct {
	store TxStore
	log   *slog.Logger
	now   func() time.Time
}

// NewAllocations creates the allocation service. A nil logger discards output.
func NewAllocations(store TxStore, logger *slog.Logger) *Allocations {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Allocations{store: store, log: logger, now: time.Now}
}

// WithClock replaces the clock used for last_updated.
func (a *Allocations) WithClock(now func() time.Time) *Allocations {
	a.now = now
	return a
}

// Assign inserts one unapproved allocation per employee. The first failure
// is returned and nothing is written.
func (a *Allocations) Assign(ctx context.Context, req AssignRequest) ([]Allocation, error) {
	const op = "allocations.assign"

	if len(req.EmployeeIDs) == 0 {
		return nil, Invalid(op, "at least one employee is required")
	}

	var created []Allocation
	err := a.store.WithTx(ctx, func(s Store) error {
		if _, err := resolve(ctx, s, req.ProjectID, req.ShiftCode, req.ShiftDate); err != nil {
			return err
		}

		seen := make(map[EmployeeID]bool, len(req.EmployeeIDs))
		for _, emp := range req.EmployeeIDs {
			member, err := s.IsMember(ctx, req.ProjectID, emp)
			if err != nil {
				return err
			}
			if !member {
				return Invalid(op, "employee %s is not a member of project %d", emp, req.ProjectID)
			}

			exists, err := s.AllocationExists(ctx, req.ProjectID, emp, req.ShiftDate)
			if err != nil {
				return err
			}
			if exists || seen[emp] {
				return Conflict(op, nil, "employee %s already assigned on %s", emp, req.ShiftDate)
			}
			seen[emp] = true
		}

		now := a.now()
		for _, emp := range req.EmployeeIDs {
			alloc := Allocation{
				ProjectID:   req.ProjectID,
				EmployeeID:  emp,
				ShiftCode:   req.ShiftCode,
				ShiftDate:   req.ShiftDate,
				LastUpdated: now,
			}
			if err := s.InsertAllocation(ctx, &alloc); err != nil {
				return err
			}
			created = append(created, alloc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.log.InfoContext(ctx, "shift assigned",
		slog.Int64("project_id", int64(req.ProjectID)),
		slog.String("shift_code", req.ShiftCode),
		slog.String("shift_date", req.ShiftDate.String()),
		slog.Int("employees", len(created)))
	return created, nil
}

// ApplyBatch runs the remove, add and approve phases in that order inside
// one transaction.
func (a *Allocations) ApplyBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	const op = "allocations.apply_batch"

	for _, ap := range req.Approvals {
		if ap.Date.IsZero() {
			return nil, Invalid(op, "approval date is required")
		}
	}
	for _, add := range req.Add {
		if add.EmployeeID == "" || add.ShiftCode == "" || add.ShiftDate.IsZero() {
			return nil, Invalid(op, "additions need emp_id, shift_code and shift_date")
		}
	}

	result := &BatchResult{}
	err := a.store.WithTx(ctx, func(s Store) error {
		// Remove
		if len(req.Remove) > 0 {
			n, err := s.DeleteAllocations(ctx, req.ProjectID, req.Remove)
			if err != nil {
				return err
			}
			result.Removed = n
		}

		now := a.now()

		// Add
		for _, add := range req.Add {
			exists, err := s.AllocationExists(ctx, req.ProjectID, add.EmployeeID, add.ShiftDate)
			if err != nil {
				return err
			}
			if exists {
				result.Skipped++
				continue
			}
			alloc := Allocation{
				ProjectID:   req.ProjectID,
				EmployeeID:  add.EmployeeID,
				ShiftCode:   add.ShiftCode,
				ShiftDate:   add.ShiftDate,
				LastUpdated: now,
			}
			if err := s.InsertAllocation(ctx, &alloc); err != nil {
				return err
			}
			result.Added = append(result.Added, alloc)
		}

		// Approve
		for _, ap := range req.Approvals {
			var by *SupervisorID
			if ap.IsApproved {
				actor := req.Actor
				by = &actor
			}
			n, err := s.SetDayApproval(ctx, req.ProjectID, ap.Date, ap.IsApproved, by, now)
			if err != nil {
				return err
			}
			result.Approved += n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.log.InfoContext(ctx, "batch applied",
		slog.Int64("project_id", int64(req.ProjectID)),
		slog.String("actor", string(req.Actor)),
		slog.Int64("removed", result.Removed),
		slog.Int("added", len(result.Added)),
		slog.Int("skipped", result.Skipped),
		slog.Int64("approval_rows", result.Approved))
	return result, nil
}

// ListForRange returns allocations in [from, to] with display data.
func (a *Allocations) ListForRange(ctx context.Context, project ProjectID, from, to Date, approvedOnly bool) ([]AllocationView, error) {
	if to.Before(from) {
		return nil, Invalid("allocations.list", "to_date %s is before from_date %s", to, from)
	}
	return a.store.ListAllocations(ctx, AllocationFilter{
		ProjectID:    project,
		From:         from,
		To:           to,
		ApprovedOnly: approvedOnly,
	})
}

// AvailableEmployees returns project members not assigned to code on day.
func (a *Allocations) AvailableEmployees(ctx context.Context, project ProjectID, code string, day Date) ([]Employee, error) {
	members, err := a.store.ListMembers(ctx, project)
	if err != nil {
		return nil, err
	}
	assigned, err := a.store.ListAllocations(ctx, AllocationFilter{
		ProjectID: project,
		From:      day,
		To:        day,
		ShiftCode: code,
	})
	if err != nil {
		return nil, err
	}

	taken := make(map[EmployeeID]bool, len(assigned))
	for _, v := range assigned {
		taken[v.EmployeeID] = true
	}

	available := make([]Employee, 0, len(members))
	for _, m := range members {
		if !taken[m.ID] {
			available = append(available, m)
		}
	}
	return available, nil
}
