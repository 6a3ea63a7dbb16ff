// Package escalation defines the human-in-the-loop pending request entity.
package escalation

import (
	"time"

	"github.com/wardenhq/warden/internal/domain/decision"
)

// Status is the review state of a pending request.
type Status string

// Statuses. A pending request transitions to approved or denied exactly once.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

// Terminal reports whether s is a resolved state.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDenied
}

// PendingRequest is an escalated agent action awaiting a human decision.
type PendingRequest struct {
	RequestID       string                 `json:"request_id"`
	AgentID         string                 `json:"agent_id"`
	Action          string                 `json:"action"`
	Resource        string                 `json:"resource"`
	Reason          decision.Reason        `json:"reason"`
	DecisionTrace   []decision.TraceEntry  `json:"decision_trace"`
	ActionRequired  string                 `json:"action_required"`
	Status          Status                 `json:"status"`
	CreatedAt       time.Time              `json:"created_at"`
	ResolvedBy      string                 `json:"resolved_by,omitempty"`
	ResolutionNotes string                 `json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time             `json:"resolved_at,omitempty"`
}

// Resolution carries a human reviewer's decision on a pending request.
type Resolution struct {
	RequestID  string `json:"request_id"`
	ReviewerID string `json:"reviewer_id"`
	Approve    bool
	Notes      string `json:"notes"`
}
