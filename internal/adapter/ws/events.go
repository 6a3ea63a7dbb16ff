package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventEscalationCreated  = "escalation.created"
	EventEscalationResolved = "escalation.resolved"
	EventKillSwitchChanged  = "system.killswitch"
)

// EscalationCreatedEvent is broadcast when an action is escalated for review.
type EscalationCreatedEvent struct {
	RequestID string `json:"request_id"`
	AgentID   string `json:"agent_id"`
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	Reason    string `json:"reason"`
}

// EscalationResolvedEvent is broadcast when a reviewer approves or denies
// a pending request.
type EscalationResolvedEvent struct {
	RequestID  string `json:"request_id"`
	AgentID    string `json:"agent_id"`
	ReviewerID string `json:"reviewer_id"`
	Decision   string `json:"decision"`
}

// KillSwitchChangedEvent is broadcast when the global kill switch is toggled.
type KillSwitchChangedEvent struct {
	Enabled bool `json:"enabled"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
