package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/wardenhq/warden/internal/domain/audit"
	"github.com/wardenhq/warden/internal/domain/decision"
	"github.com/wardenhq/warden/internal/domain/escalation"
	"github.com/wardenhq/warden/internal/domain/permission"
	"github.com/wardenhq/warden/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Authorize   *service.AuthorizeService
	Escalations *service.EscalationService
	Admin       *service.AdminService
	Audit       *service.AuditService
}

// ---------------------------------------------------------------------------
// Authorization
// ---------------------------------------------------------------------------

// RequestAction evaluates an agent's action request.
// POST /api/v1/agent/request
func (h *Handlers) RequestAction(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[decision.Request](w, r)
	if !ok {
		return
	}

	out, err := h.Authorize.Authorize(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// KillAgent enables or disables an agent on behalf of its owner.
// POST /api/v1/agent/kill
func (h *Handlers) KillAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		AgentID string `json:"agent_id"`
		OwnerID string `json:"owner_id"`
		Enabled bool   `json:"enabled"`
	}](w, r)
	if !ok {
		return
	}

	a, err := h.Admin.SetAgentEnabled(r.Context(), req.AgentID, req.OwnerID, req.Enabled)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	verb := "disabled"
	if req.Enabled {
		verb = "enabled"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id": a.ID,
		"status":   a.Status,
		"message":  fmt.Sprintf("agent %s has been %s by owner %s", a.ID, verb, req.OwnerID),
	})
}

// GetKillSwitch reports the global kill switch state.
// GET /api/v1/agent/system-kill-switch
func (h *Handlers) GetKillSwitch(w http.ResponseWriter, r *http.Request) {
	state, err := h.Admin.GetKillSwitch(r.Context())
	if err != nil {
		writeDomainError(w, err, "kill switch state not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":    state.Enabled,
		"updated_at": state.UpdatedAt,
		"message":    killSwitchMessage(state.Enabled),
	})
}

// SetKillSwitch toggles the global kill switch.
// POST /api/v1/agent/system-kill-switch
func (h *Handlers) SetKillSwitch(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Enabled bool `json:"enabled"`
	}](w, r)
	if !ok {
		return
	}

	state, err := h.Admin.SetKillSwitch(r.Context(), req.Enabled)
	if err != nil {
		writeDomainError(w, err, "kill switch state not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":    state.Enabled,
		"updated_at": state.UpdatedAt,
		"message":    killSwitchMessage(state.Enabled),
	})
}

// killSwitchMessage is the human-readable state line for the kill switch
// endpoints.
func killSwitchMessage(enabled bool) string {
	if enabled {
		return "system kill switch is enabled, all agent requests are denied"
	}
	return "system kill switch is disabled, agent requests are processed normally"
}

// ---------------------------------------------------------------------------
// Escalations
// ---------------------------------------------------------------------------

// ListPendingApprovals returns requests awaiting a human decision.
// GET /api/v1/agent/pending-approvals
func (h *Handlers) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Escalations.ListPending(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if pending == nil {
		pending = []escalation.PendingRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pending_requests": pending,
		"count":            len(pending),
	})
}

// resolutionRequest is the body for approve and deny endpoints.
type resolutionRequest struct {
	RequestID  string `json:"request_id"`
	ReviewerID string `json:"reviewer_id"`
	Notes      string `json:"notes"`
}

// ApproveRequest applies a reviewer's approval to a pending request.
// POST /api/v1/agent/approve
func (h *Handlers) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, true)
}

// DenyRequest applies a reviewer's denial to a pending request.
// POST /api/v1/agent/deny
func (h *Handlers) DenyRequest(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, false)
}

func (h *Handlers) resolve(w http.ResponseWriter, r *http.Request, approve bool) {
	req, ok := readJSON[resolutionRequest](w, r)
	if !ok {
		return
	}

	out, err := h.Escalations.Resolve(r.Context(), escalation.Resolution{
		RequestID:  req.RequestID,
		ReviewerID: req.ReviewerID,
		Approve:    approve,
		Notes:      req.Notes,
	})
	if err != nil {
		writeDomainError(w, err, "pending request not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

// QueryLogs returns audit log entries, oldest first.
// GET /api/v1/logs?agent_id=&start_time=&end_time=
func (h *Handlers) QueryLogs(w http.ResponseWriter, r *http.Request) {
	f := audit.QueryFilter{AgentID: r.URL.Query().Get("agent_id")}

	var ok bool
	if f.Start, ok = parseTimeParam(w, r, "start_time"); !ok {
		return
	}
	if f.End, ok = parseTimeParam(w, r, "end_time"); !ok {
		return
	}

	logs, err := h.Audit.Query(r.Context(), f)
	if err != nil {
		writeDomainError(w, err, "logs not found")
		return
	}
	if logs == nil {
		logs = []audit.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"count": len(logs),
	})
}

// parseTimeParam reads an optional RFC 3339 query parameter. A malformed
// value writes a 400 and returns ok=false.
func parseTimeParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be RFC 3339")
		return time.Time{}, false
	}
	return t, true
}

// ListPermissions returns an agent's permission grants.
// GET /api/v1/permissions?agent_id=
func (h *Handlers) ListPermissions(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if !requireField(w, agentID, "agent_id") {
		return
	}

	perms, err := h.Admin.ListPermissionsFor(r.Context(), agentID)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	if perms == nil {
		perms = []permission.Permission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id":    agentID,
		"permissions": perms,
		"count":       len(perms),
	})
}
