package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/warp/shift-engine/shift"
)

// SupervisorHeader carries the authenticated supervisor ID. Authentication
// itself happens upstream (gateway or session layer); this service only
// checks project ownership.
const SupervisorHeader = "X-Supervisor-ID"

type supervisorKey struct{}

// RequireSupervisor rejects requests without a supervisor identity.
func RequireSupervisor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(SupervisorHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "Supervisor identity required", nil)
			return
		}
		ctx := context.WithValue(r.Context(), supervisorKey{}, shift.SupervisorID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SupervisorFrom returns the supervisor set by RequireSupervisor.
func SupervisorFrom(ctx context.Context) (shift.SupervisorID, bool) {
	id, ok := ctx.Value(supervisorKey{}).(shift.SupervisorID)
	return id, ok
}

// authorize checks that the acting supervisor leads project.
func (h *Handler) authorize(ctx context.Context, project shift.ProjectID) (shift.SupervisorID, error) {
	const op = "auth.project"

	lead, ok := SupervisorFrom(ctx)
	if !ok {
		return "", shift.Unauthorized(op, "no supervisor in request")
	}

	p, err := h.Store.GetProject(ctx, project)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", shift.NotFound(op, "project %d not found", project)
	}
	if p.LeadID != lead {
		return "", shift.Unauthorized(op, "supervisor %s does not lead project %d", lead, project)
	}
	return lead, nil
}
