/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /healthz              Liveness (public)
  /api/scenarios/*      Demo scenarios (public, dev only)
  /shifts/*             Shift masters and allocations (supervisor)
  /allowances/*         Allowance reports (supervisor)

AUTH:
  Supervisor routes require the X-Supervisor-ID header (RequireSupervisor);
  handlers then check that the supervisor leads the requested project.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Supervisor identity
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SupervisorHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// Scenario routes
	r.Route("/api/scenarios", func(r chi.Router) {
		r.Get("/", h.ListScenarios)
		r.Get("/current", h.GetCurrentScenario)
		r.Post("/load", h.LoadScenario)
		r.Post("/reset", h.ResetDatabase)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireSupervisor)

		r.Route("/shifts", func(r chi.Router) {
			r.Get("/masters", h.ListMasters)

			r.Route("/projects/{project}/shifts", func(r chi.Router) {
				r.Get("/", h.ListProjectShifts)
				r.Post("/", h.CreateShift)
				r.Get("/history", h.GetShiftHistory)
				r.Put("/{shift_code}", h.VersionShift)
				r.Delete("/{shift_code}", h.DeactivateShift)
			})

			r.Post("/assign", h.AssignShift)
			r.Post("/apply-batch", h.ApplyBatch)
			r.Get("/weekly", h.GetWeekly)
			r.Get("/employees/available", h.GetAvailableEmployees)
		})

		r.Get("/allowances/reports/employee-allowance", h.GetAllowanceReport)
	})

	return r
}
