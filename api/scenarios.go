/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario is a YAML seed embedded in the
	binary and loaded through factory.Apply, so shift versions and
	allocations go through the same rules as API calls.

AVAILABLE SCENARIOS:

	basic-week:       Two shifts, one week, a holiday and a weekend shift
	allowance-change: Morning allowance raised mid-range
	pending-approval: Two projects, one with an unapproved week

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Parse the embedded seed
 3. Apply it via factory.Apply

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "basic-week"}

ADDING NEW SCENARIOS:
 1. Drop a <id>.yaml file into api/scenarios/
 2. Add an entry to the 'scenarios' slice

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - factory/seed.go: YAML seed schema
  - handlers.go: shared response helpers
*/
package api

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/shift-engine/factory"
)

//go:embed scenarios/*.yaml
var scenarioFiles embed.FS

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "basic-week",
		Name:        "Basic Week",
		Description: "Morning and evening shifts across one week with a holiday",
	},
	{
		ID:          "allowance-change",
		Name:        "Allowance Change",
		Description: "Morning allowance versioned mid-month",
	},
	{
		ID:          "pending-approval",
		Name:        "Pending Approval",
		Description: "Two projects, one awaiting supervisor approval",
	},
}

// LoadScenarioSeed returns the parsed seed of a built-in scenario.
func LoadScenarioSeed(id string) (*factory.Seed, error) {
	data, err := scenarioFiles.ReadFile("scenarios/" + id + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown scenario %q", id)
	}
	return factory.ParseSeed(data)
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns all available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	seed, err := LoadScenarioSeed(req.ScenarioID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown scenario", err)
		return
	}

	ctx := r.Context()
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := factory.Apply(ctx, seed, h.Store, h.Registry, h.Allocations); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.Log.InfoContext(ctx, "scenario loaded", "scenario", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
