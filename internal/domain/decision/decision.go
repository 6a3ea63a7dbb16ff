// Package decision defines the authorization verdict model: results,
// reasons, and the rule-by-rule trace that accompanies every outcome.
package decision

// Result is the terminal state of an authorization request.
type Result string

// Results. An escalated request reports "pending" until a human resolves it.
const (
	ResultApproved Result = "approved"
	ResultDenied   Result = "denied"
	ResultPending  Result = "pending"
)

// Reason identifies which rule produced the outcome.
type Reason string

// Reasons.
const (
	ReasonAllChecksPassed   Reason = "all_checks_passed"
	ReasonPermissionFailed  Reason = "permission_rule_failed"
	ReasonAgentDisabled     Reason = "agent_disabled"
	ReasonAgentNotFound     Reason = "agent_not_found"
	ReasonKillSwitchEnabled Reason = "system_kill_switch_enabled"
	ReasonHumanOverride     Reason = "human_override"
)

// RuleResult records whether a single rule passed or failed.
type RuleResult string

// Rule results.
const (
	RulePassed RuleResult = "passed"
	RuleFailed RuleResult = "failed"
)

// ActionRequiredHuman marks an escalated outcome as waiting for a reviewer.
const ActionRequiredHuman = "human_intervention"

// Request is an agent's ask to perform an action on a resource.
type Request struct {
	AgentID  string `json:"agent_id"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
}

// TraceEntry records one evaluated rule.
type TraceEntry struct {
	RuleChecked string     `json:"rule_checked"`
	RuleResult  RuleResult `json:"rule_result"`
	Notes       string     `json:"notes"`
}

// Rule names used in trace entries.
const (
	RuleKillSwitch    = "kill_switch"
	RuleAgentStatus   = "agent_status"
	RulePermission    = "permission_rule"
	RuleHumanDecision = "human_decision"
)

// Outcome is the full answer to an authorization request.
type Outcome struct {
	Result         Result       `json:"result"`
	Message        string       `json:"message"`
	Reason         Reason       `json:"reason"`
	Trace          []TraceEntry `json:"decision_trace"`
	ActionRequired string       `json:"action_required,omitempty"`
	RequestID      string       `json:"request_id,omitempty"`
}
