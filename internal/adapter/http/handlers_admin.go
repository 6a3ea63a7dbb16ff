package http

import (
	"net/http"

	"github.com/wardenhq/warden/internal/domain/agent"
	"github.com/wardenhq/warden/internal/domain/permission"
)

// ---------------------------------------------------------------------------
// Agent registry
// ---------------------------------------------------------------------------

// CreateAgent registers a new agent.
// POST /api/v1/admin/agents
func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.CreateRequest](w, r)
	if !ok {
		return
	}

	a, err := h.Admin.CreateAgent(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// ListAgents returns all registered agents.
// GET /api/v1/admin/agents
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Admin.ListAgents(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if agents == nil {
		agents = []agent.Agent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": agents,
		"count":  len(agents),
	})
}

// GetAgent returns a single agent.
// GET /api/v1/admin/agents/{id}
func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := h.Admin.GetAgent(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAgent removes an agent and its permissions.
// DELETE /api/v1/admin/agents/{id}
func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.DeleteAgent(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Permission grants
// ---------------------------------------------------------------------------

// CreatePermission grants an agent an action on a resource.
// POST /api/v1/admin/permissions
func (h *Handlers) CreatePermission(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[permission.CreateRequest](w, r)
	if !ok {
		return
	}

	p, err := h.Admin.CreatePermission(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// DeletePermission revokes a permission grant.
// DELETE /api/v1/admin/permissions/{id}
func (h *Handlers) DeletePermission(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.DeletePermission(r.Context(), urlParam(r, "id"), r.URL.Query().Get("agent_id")); err != nil {
		writeDomainError(w, err, "permission not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
