package messagequeue

// DecisionCompletedPayload is the schema for decisions.completed messages.
type DecisionCompletedPayload struct {
	AgentID  string `json:"agent_id"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Result   string `json:"result"`
	Reason   string `json:"reason"`
}

// EscalationCreatedPayload is the schema for escalations.created messages.
type EscalationCreatedPayload struct {
	RequestID string `json:"request_id"`
	AgentID   string `json:"agent_id"`
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	Reason    string `json:"reason"`
}

// EscalationResolvedPayload is the schema for escalations.resolved messages.
type EscalationResolvedPayload struct {
	RequestID  string `json:"request_id"`
	AgentID    string `json:"agent_id"`
	ReviewerID string `json:"reviewer_id"`
	Decision   string `json:"decision"`
}

// KillSwitchChangedPayload is the schema for system.killswitch messages.
type KillSwitchChangedPayload struct {
	Enabled   bool   `json:"enabled"`
	ChangedBy string `json:"changed_by"`
}
