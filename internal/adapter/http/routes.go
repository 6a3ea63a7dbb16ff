package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Authorization
		r.Post("/agent/request", h.RequestAction)
		r.Post("/agent/kill", h.KillAgent)
		r.Get("/agent/system-kill-switch", h.GetKillSwitch)
		r.Post("/agent/system-kill-switch", h.SetKillSwitch)

		// Human-in-the-loop escalation
		r.Get("/agent/pending-approvals", h.ListPendingApprovals)
		r.Post("/agent/approve", h.ApproveRequest)
		r.Post("/agent/deny", h.DenyRequest)

		// Audit and inspection
		r.Get("/logs", h.QueryLogs)
		r.Get("/permissions", h.ListPermissions)

		// Admin registry
		r.Route("/admin", func(r chi.Router) {
			r.Post("/agents", h.CreateAgent)
			r.Get("/agents", h.ListAgents)
			r.Get("/agents/{id}", h.GetAgent)
			r.Delete("/agents/{id}", h.DeleteAgent)
			r.Post("/permissions", h.CreatePermission)
			r.Delete("/permissions/{id}", h.DeletePermission)
		})
	})
}
