/*
handlers.go - HTTP API handlers for the shift allocation engine

PURPOSE:
  Exposes shift masters, allocations, the weekly calendar and the allowance
  report via REST. Handles HTTP request/response, JSON serialization, and
  delegates to the domain services.

ENDPOINTS:
  Shift masters:
    GET    /shifts/masters?project_id&on_date            Active versions on a date
    GET    /shifts/projects/{project}/shifts?on_date     Same, project in path
    GET    /shifts/projects/{project}/shifts/history     Full version history
    POST   /shifts/projects/{project}/shifts             Define a shift
    PUT    /shifts/projects/{project}/shifts/{code}      New version
    DELETE /shifts/projects/{project}/shifts/{code}?effective_from  Deactivate

  Allocations:
    POST   /shifts/assign                                Assign employees
    POST   /shifts/apply-batch                           Remove/add/approve
    GET    /shifts/employees/available                   Unassigned members
    GET    /shifts/weekly?project_id&from_date&to_date   Weekly calendar

  Allowances:
    GET    /allowances/reports/employee-allowance?project_id&from_date&to_date

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: SQLite store (roster lookups for authorization)
  - Registry, Allocations: mutating domain services
  - Allowances, Calendar: read-side calculators

DATES:
  on_date defaults to today HERE, at the boundary. Domain services always
  receive an explicit date.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing supervisor identity
  - 403: Supervisor does not lead the project
  - 404: Project / shift version not found
  - 409: Conflict (duplicate allocation)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Supervisor identity and project ownership
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/shift-engine/allowance"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/shift"
	"github.com/warp/shift-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Registry    *shift.Registry
	Allocations *shift.Allocations
	Allowances  *allowance.Calculator
	Calendar    *calendar.Aggregator
	Log         *slog.Logger

	// today supplies the default for on_date.
	today func() shift.Date

	// scenarioMu serializes scenario loads and resets and guards
	// currentScenario.
	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	registry := shift.NewRegistry(store, logger)
	allocations := shift.NewAllocations(store, logger)
	return &Handler{
		Store:       store,
		Registry:    registry,
		Allocations: allocations,
		Allowances:  allowance.NewCalculator(registry, allocations, store, logger),
		Calendar:    calendar.NewAggregator(allocations, store),
		Log:         logger,
		today:       shift.Today,
	}
}

// =============================================================================
// SHIFT MASTER HANDLERS
// =============================================================================

// ListMasters returns shifts active on on_date (default today).
// GET /shifts/masters?project_id=1&on_date=2025-01-01
func (h *Handler) ListMasters(w http.ResponseWriter, r *http.Request) {
	project, ok := projectQuery(w, r)
	if !ok {
		return
	}
	h.listActive(w, r, project)
}

// ListProjectShifts is ListMasters with the project in the path.
// GET /shifts/projects/{project}/shifts?on_date=2025-01-01
func (h *Handler) ListProjectShifts(w http.ResponseWriter, r *http.Request) {
	project, ok := projectParam(w, r)
	if !ok {
		return
	}
	h.listActive(w, r, project)
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request, project shift.ProjectID) {
	ctx := r.Context()
	if _, err := h.authorize(ctx, project); err != nil {
		h.writeDomainError(w, r, "Not allowed", err)
		return
	}

	onDate := h.today()
	if raw := r.URL.Query().Get("on_date"); raw != "" {
		d, err := shift.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid on_date", err)
			return
		}
		onDate = d
	}

	defs, err := h.Registry.ListActive(ctx, project, onDate)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list shifts", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTOs(defs))
}

// GetShiftHistory returns every version of every shift of a project.
// GET /shifts/projects/{project}/shifts/history
func (h *Handler) GetShiftHistory(w http.ResponseWriter, r *http.Request) {
	project, ok := projectParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if _, err := h.authorize(ctx, project); err != nil {
		h.writeDomainError(w, r, "Not allowed", err)
		return
	}

	defs, err := h.Registry.ListHistory(ctx, project)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get shift history", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTOs(defs))
}

// CreateShift defines a new shift.
// POST /shifts/projects/{project}/shifts
func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	project, ok := projectParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if _, err := h.authorize(ctx, project); err != nil {
		h.writeDomainError(w, r, "Not allowed", err)
		return
	}

	var req ShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, err := shift.ParseDate(req.EffectiveFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_from", err)
		return
	}

	def, err := h.Registry.Define(ctx, shift.DefineRequest{
		ProjectID:     project,
		Code:          req.ShiftCode,
		Attrs:         req.attrs(),
		EffectiveFrom: from,
	})
	if err != nil {
		// Duplicate versions are a client input error on this endpoint.
		if shift.KindOf(err) == shift.KindConflict {
			writeError(w, http.StatusBadRequest, "Shift already exists for this effective date", err)
			return
		}
		h.writeDomainError(w, r, "Failed to create shift", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "created",
		"shift":  toShiftDTO(*def),
	})
}

// VersionShift supersedes the open version of a shift.
// PUT /shifts/projects/{project}/shifts/{shift_code}
func (h *Handler) VersionShift(w http.ResponseWriter, r *http.Request) {
	project, ok := projectParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if _, err := h.authorize(ctx, project); err != nil {
		h.writeDomainError(w, r, "Not allowed", err)
		return
	}

	var req ShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, err := shift.ParseDate(req.EffectiveFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_from", err)
		return
	}

	def, err := h.Registry.Version(ctx, shift.VersionRequest{
		ProjectID:     project,
		Code:          chi.URLParam(r, "shift_code"),
		Attrs:         req.attrs(),
		EffectiveFrom: from,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to version shift", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "versioned",
		"shift":  toShiftDTO(*def),
	})
}

// DeactivateShift hides one version from date lookups.
// DELETE /shifts/projects/{project}/shifts/{shift_code}?effective_from=2025-01-01
func (h *Handler) DeactivateShift(w http.ResponseWriter, r *http.Request) {
	project, ok := projectParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if _, err := h.authorize(ctx, project); err != nil {
		h.writeDomainError(w, r, "Not allowed", err)
		return
	}

	from, ok := dateQuery(w, r, "effective_from")
	if !ok {
		return
	}
	code := chi.URLParam(r, "shift_code")
	if err := h.Registry.Deactivate(ctx, project, code, from); err != nil {
		h.writeDomainError(w, r, "Failed to deactivate shift", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// =============================================================================
// ALLOCATION HANDLERS
// =============================================================================

// AssignShift assigns employees to a shift on a date.
// POST /shifts/assign
func (h *Handler) AssignShift(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	project := shift.ProjectID(req.ProjectID)
	if _, err := h.authorize(ctx, project); err != nil {
		h.writeDomainError(w, r, "Not allowed", err)
		return
	}

	day, err := shift.ParseDate(req.ShiftDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shift_date", err)
		return
	}
	emps := make([]shift.EmployeeID, len(req.EmpIDs))
	for i, e := range req.EmpIDs {
		emps[i] = shift.EmployeeID(e)
	}

	created, err := h.Allocations.Assign(ctx, shift.AssignRequest{
		ProjectID:   project,
		ShiftCode:   req.ShiftCode,
		ShiftDate:   day,
		EmployeeIDs: emps,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to assign shift", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"allocations": toAllocationDTOs(created),
	})
}

// ApplyBatch removes, adds and approves allocations atomically.
// POST /shifts/apply-batch
func (h *Handler) ApplyBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	project := shift.ProjectID(req.ProjectID)
	lead, err := h.authorize(ctx, project)
	if err != nil {
		h.writeDomainError(w, r, "Not allowed", err)
		return
	}

	batch := shift.BatchRequest{ProjectID: project, Actor: lead}
	for _, id := range req.Remove {
		batch.Remove = append(batch.Remove, shift.AllocationID(id))
	}
	for _, a := range req.Add {
		day, err := shift.ParseDate(a.ShiftDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid shift_date in add", err)
			return
		}
		batch.Add = append(batch.Add, shift.BatchAdd{
			EmployeeID: shift.EmployeeID(a.EmpID),
			ShiftCode:  a.ShiftCode,
			ShiftDate:  day,
		})
	}
	for _, a := range req.Approvals {
		day, err := shift.ParseDate(a.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date in approvals", err)
			return
		}
		batch.Approvals = append(batch.Approvals, shift.BatchApproval{Date: day, IsApproved: a.IsApproved})
	}

	result, err := h.Allocations.ApplyBatch(ctx, batch)
	if err != nil {
		h.writeDomainError(w, r, "Failed to apply batch", err)
		return
	}

	added := make([]int64, len(result.Added))
	for i, a := range result.Added {
		added[i] = int64(a.ID)
	}
	writeJSON(w, http.StatusOK, BatchResponseDTO{
		Status:       "ok",
		Removed:      result.Removed,
		Added:        added,
		Skipped:      result.Skipped,
		ApprovalRows: result.Approved,
	})
}

// GetAvailableEmployees lists members not yet on a shift/date.
// GET /shifts/employees/available?project_id=1&shift_code=MORN&shift_date=2025-01-06
func (h *Handler) GetAvailableEmployees(w http.ResponseWriter, r *http.Request) {
	project, ok := projectQuery(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if _, err := h.authorize(ctx, project); err != nil {
		h.writeDomainError(w, r, "Not allowed", err)
		return
	}

	code := r.URL.Query().Get("shift_code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "shift_code is required", nil)
		return
	}
	day, ok := dateQuery(w, r, "shift_date")
	if !ok {
		return
	}

	employees, err := h.Allocations.AvailableEmployees(ctx, project, code, day)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = EmployeeDTO{EmpID: string(e.ID), EmpName: e.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetWeekly returns the per-date calendar keyed by ISO date.
// GET /shifts/weekly?project_id=1&from_date=2025-01-06&to_date=2025-01-12
func (h *Handler) GetWeekly(w http.ResponseWriter, r *http.Request) {
	project, from, to, ok := h.rangeQuery(w, r)
	if !ok {
		return
	}

	week, err := h.Calendar.Week(r.Context(), project, from, to)
	if err != nil {
		h.writeDomainError(w, r, "Failed to build weekly calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekDTO(project, week))
}

// =============================================================================
// ALLOWANCE HANDLERS
// =============================================================================

// GetAllowanceReport returns per-employee allowances for a range.
// GET /allowances/reports/employee-allowance?project_id=1&from_date=...&to_date=...
func (h *Handler) GetAllowanceReport(w http.ResponseWriter, r *http.Request) {
	project, from, to, ok := h.rangeQuery(w, r)
	if !ok {
		return
	}

	report, err := h.Allowances.Report(r.Context(), project, from, to)
	if err != nil {
		h.writeDomainError(w, r, "Failed to compute allowances", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllowanceReportDTO(report))
}

// Health reports whether the database is reachable.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) rangeQuery(w http.ResponseWriter, r *http.Request) (shift.ProjectID, shift.Date, shift.Date, bool) {
	project, ok := projectQuery(w, r)
	if !ok {
		return 0, shift.Date{}, shift.Date{}, false
	}
	if _, err := h.authorize(r.Context(), project); err != nil {
		h.writeDomainError(w, r, "Not allowed", err)
		return 0, shift.Date{}, shift.Date{}, false
	}
	from, ok := dateQuery(w, r, "from_date")
	if !ok {
		return 0, shift.Date{}, shift.Date{}, false
	}
	to, ok := dateQuery(w, r, "to_date")
	if !ok {
		return 0, shift.Date{}, shift.Date{}, false
	}
	return project, from, to, true
}

func projectQuery(w http.ResponseWriter, r *http.Request) (shift.ProjectID, bool) {
	return parseProject(w, r.URL.Query().Get("project_id"))
}

func projectParam(w http.ResponseWriter, r *http.Request) (shift.ProjectID, bool) {
	return parseProject(w, chi.URLParam(r, "project"))
}

func parseProject(w http.ResponseWriter, raw string) (shift.ProjectID, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid project_id", err)
		return 0, false
	}
	return shift.ProjectID(id), true
}

func dateQuery(w http.ResponseWriter, r *http.Request, name string) (shift.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		writeError(w, http.StatusBadRequest, name+" is required", nil)
		return shift.Date{}, false
	}
	d, err := shift.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name, err)
		return shift.Date{}, false
	}
	return d, true
}

// writeDomainError maps engine error kinds onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, fallback string, err error) {
	status := http.StatusInternalServerError
	switch shift.KindOf(err) {
	case shift.KindNotFound:
		status = http.StatusNotFound
	case shift.KindValidation:
		status = http.StatusBadRequest
	case shift.KindConflict:
		status = http.StatusConflict
	case shift.KindAuthorization:
		status = http.StatusForbidden
	}

	message := fallback
	var se *shift.Error
	if errors.As(err, &se) {
		message = se.Msg
	}
	if status == http.StatusInternalServerError {
		h.Log.ErrorContext(r.Context(), fallback,
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func strPtr(s string) *string {
	return &s
}
