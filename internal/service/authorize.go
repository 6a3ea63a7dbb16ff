// Package service contains application services.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/adapter/otel"
	"github.com/wardenhq/warden/internal/adapter/ws"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/domain/audit"
	"github.com/wardenhq/warden/internal/domain/decision"
	"github.com/wardenhq/warden/internal/domain/escalation"
	"github.com/wardenhq/warden/internal/domain/permission"
	"github.com/wardenhq/warden/internal/port/database"
	"github.com/wardenhq/warden/internal/port/messagequeue"
)

// AuthorizeService decides whether an agent may perform an action.
// Every request walks the same rule pipeline: system kill switch,
// agent status, permission match. The first failing rule stops the
// pipeline, and every rule checked leaves a trace entry.
type AuthorizeService struct {
	store   database.Store
	queue   messagequeue.Queue
	hub     *ws.Hub
	metrics *otel.Metrics

	// now is swappable so tests can pin time-window conditions.
	now func() time.Time
}

// NewAuthorizeService creates an AuthorizeService.
func NewAuthorizeService(store database.Store, queue messagequeue.Queue, hub *ws.Hub, metrics *otel.Metrics) *AuthorizeService {
	return &AuthorizeService{
		store:   store,
		queue:   queue,
		hub:     hub,
		metrics: metrics,
		now:     time.Now,
	}
}

// Authorize evaluates a single action request and returns the outcome.
// Allowed and denied outcomes append one audit log entry each; an
// escalated outcome creates a pending request instead and is logged
// only once a human resolves it.
func (s *AuthorizeService) Authorize(ctx context.Context, req decision.Request) (*decision.Outcome, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	ctx, span := otel.StartDecisionSpan(ctx, req.AgentID, req.Action, req.Resource)
	defer span.End()
	start := s.now()

	trace := make([]decision.TraceEntry, 0, 3)

	// Rule 1: system kill switch.
	state, err := s.store.GetKillSwitch(ctx)
	if err != nil {
		return nil, err
	}
	if state.Enabled {
		trace = append(trace, decision.TraceEntry{
			RuleChecked: decision.RuleKillSwitch,
			RuleResult:  decision.RuleFailed,
			Notes:       "system kill switch enabled",
		})
		return s.escalate(ctx, req, trace, start)
	}
	trace = append(trace, decision.TraceEntry{
		RuleChecked: decision.RuleKillSwitch,
		RuleResult:  decision.RulePassed,
		Notes:       "kill switch off",
	})

	// Rule 2: agent status.
	a, err := s.store.GetAgent(ctx, req.AgentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			trace = append(trace, decision.TraceEntry{
				RuleChecked: decision.RuleAgentStatus,
				RuleResult:  decision.RuleFailed,
				Notes:       fmt.Sprintf("agent %s not found", req.AgentID),
			})
			return s.deny(ctx, req, decision.ReasonAgentNotFound, trace, start)
		}
		return nil, err
	}
	if !a.Active() {
		trace = append(trace, decision.TraceEntry{
			RuleChecked: decision.RuleAgentStatus,
			RuleResult:  decision.RuleFailed,
			Notes:       fmt.Sprintf("agent %s is disabled", a.ID),
		})
		return s.deny(ctx, req, decision.ReasonAgentDisabled, trace, start)
	}
	trace = append(trace, decision.TraceEntry{
		RuleChecked: decision.RuleAgentStatus,
		RuleResult:  decision.RulePassed,
		Notes:       "agent active",
	})

	// Rule 3: permission match.
	granted, entry, err := s.matchPermission(ctx, req)
	if err != nil {
		return nil, err
	}
	trace = append(trace, entry)
	if !granted {
		return s.deny(ctx, req, decision.ReasonPermissionFailed, trace, start)
	}
	return s.allow(ctx, req, trace, start)
}

// matchPermission checks the agent's permission rules for the requested
// action and resource. A rule grants the action when its condition holds
// at evaluation time; an unparseable condition never grants (fails closed)
// and is named in the trace notes.
func (s *AuthorizeService) matchPermission(ctx context.Context, req decision.Request) (bool, decision.TraceEntry, error) {
	perms, err := s.store.MatchPermissions(ctx, req.AgentID, req.Action, req.Resource)
	if err != nil {
		return false, decision.TraceEntry{}, err
	}

	var badCondition string
	for _, p := range perms {
		ok, evalErr := permission.EvalCondition(p.Condition, s.now())
		if evalErr != nil {
			badCondition = p.Condition
			slog.Warn("unparseable permission condition",
				"permission_id", p.ID,
				"agent_id", p.AgentID,
				"condition", p.Condition,
			)
			continue
		}
		if ok {
			return true, decision.TraceEntry{
				RuleChecked: decision.RulePermission,
				RuleResult:  decision.RulePassed,
				Notes:       fmt.Sprintf("permission granted for %s on %s", req.Action, req.Resource),
			}, nil
		}
	}

	notes := fmt.Sprintf("no permission for %s on %s", req.Action, req.Resource)
	if badCondition != "" {
		notes += fmt.Sprintf("; unparseable condition %q", badCondition)
	}
	return false, decision.TraceEntry{
		RuleChecked: decision.RulePermission,
		RuleResult:  decision.RuleFailed,
		Notes:       notes,
	}, nil
}

func (s *AuthorizeService) allow(ctx context.Context, req decision.Request, trace []decision.TraceEntry, start time.Time) (*decision.Outcome, error) {
	if err := s.logDecision(ctx, req, decision.ResultApproved); err != nil {
		return nil, err
	}
	s.publishDecision(ctx, req, decision.ResultApproved, decision.ReasonAllChecksPassed)
	s.metrics.DecisionsAllowed.Add(ctx, 1)
	s.metrics.DecisionDuration.Record(ctx, s.now().Sub(start).Seconds())

	return &decision.Outcome{
		Result:  decision.ResultApproved,
		Message: fmt.Sprintf("agent %s may %s on %s", req.AgentID, req.Action, req.Resource),
		Reason:  decision.ReasonAllChecksPassed,
		Trace:   trace,
	}, nil
}

func (s *AuthorizeService) deny(ctx context.Context, req decision.Request, reason decision.Reason, trace []decision.TraceEntry, start time.Time) (*decision.Outcome, error) {
	if err := s.logDecision(ctx, req, decision.ResultDenied); err != nil {
		return nil, err
	}
	s.publishDecision(ctx, req, decision.ResultDenied, reason)
	s.metrics.DecisionsDenied.Add(ctx, 1)
	s.metrics.DecisionDuration.Record(ctx, s.now().Sub(start).Seconds())

	return &decision.Outcome{
		Result:  decision.ResultDenied,
		Message: fmt.Sprintf("agent %s may not %s on %s", req.AgentID, req.Action, req.Resource),
		Reason:  reason,
		Trace:   trace,
	}, nil
}

// escalate parks the request for human review. No audit log entry is
// written here; the request is logged exactly once when resolved.
func (s *AuthorizeService) escalate(ctx context.Context, req decision.Request, trace []decision.TraceEntry, start time.Time) (*decision.Outcome, error) {
	pending := &escalation.PendingRequest{
		RequestID:      uuid.NewString(),
		AgentID:        req.AgentID,
		Action:         req.Action,
		Resource:       req.Resource,
		Reason:         decision.ReasonKillSwitchEnabled,
		DecisionTrace:  trace,
		ActionRequired: decision.ActionRequiredHuman,
		Status:         escalation.StatusPending,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreatePendingRequest(ctx, pending); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.queue, messagequeue.SubjectEscalationCreated, messagequeue.EscalationCreatedPayload{
		RequestID: pending.RequestID,
		AgentID:   pending.AgentID,
		Action:    pending.Action,
		Resource:  pending.Resource,
		Reason:    string(pending.Reason),
	})
	s.hub.BroadcastEvent(ctx, ws.EventEscalationCreated, ws.EscalationCreatedEvent{
		RequestID: pending.RequestID,
		AgentID:   pending.AgentID,
		Action:    pending.Action,
		Resource:  pending.Resource,
		Reason:    string(pending.Reason),
	})
	s.metrics.DecisionsEscalated.Add(ctx, 1)
	s.metrics.DecisionDuration.Record(ctx, s.now().Sub(start).Seconds())

	return &decision.Outcome{
		Result:         decision.ResultPending,
		Message:        fmt.Sprintf("request %s requires human approval", pending.RequestID),
		Reason:         decision.ReasonKillSwitchEnabled,
		Trace:          trace,
		ActionRequired: decision.ActionRequiredHuman,
		RequestID:      pending.RequestID,
	}, nil
}

// logDecision appends the audit log entry for a terminal decision.
// A failed append fails the whole request; a decision that cannot be
// audited must not be handed to the agent.
func (s *AuthorizeService) logDecision(ctx context.Context, req decision.Request, result decision.Result) error {
	return s.store.AppendLog(ctx, &audit.LogEntry{
		AgentID:   req.AgentID,
		Action:    req.Action,
		Resource:  req.Resource,
		Result:    string(result),
		Timestamp: s.now().UTC(),
	})
}

func (s *AuthorizeService) publishDecision(ctx context.Context, req decision.Request, result decision.Result, reason decision.Reason) {
	publishEvent(ctx, s.queue, messagequeue.SubjectDecisionCompleted, messagequeue.DecisionCompletedPayload{
		AgentID:  req.AgentID,
		Action:   req.Action,
		Resource: req.Resource,
		Result:   string(result),
		Reason:   string(reason),
	})
}

func validateRequest(req decision.Request) error {
	switch {
	case req.AgentID == "":
		return fmt.Errorf("agent_id is required: %w", domain.ErrValidation)
	case req.Action == "":
		return fmt.Errorf("action is required: %w", domain.ErrValidation)
	case req.Resource == "":
		return fmt.Errorf("resource is required: %w", domain.ErrValidation)
	}
	return nil
}
