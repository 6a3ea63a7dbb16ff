package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wardenhq/warden/internal/adapter/otel"
	"github.com/wardenhq/warden/internal/adapter/ws"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/domain/decision"
	"github.com/wardenhq/warden/internal/domain/escalation"
	"github.com/wardenhq/warden/internal/port/database"
	"github.com/wardenhq/warden/internal/port/messagequeue"
)

// EscalationService lists and resolves pending requests. Resolution is
// first-writer-wins: the store flips the status with a compare-and-set,
// so concurrent reviewers cannot both win.
type EscalationService struct {
	store   database.Store
	queue   messagequeue.Queue
	hub     *ws.Hub
	metrics *otel.Metrics
	now     func() time.Time
}

// NewEscalationService creates an EscalationService.
func NewEscalationService(store database.Store, queue messagequeue.Queue, hub *ws.Hub, metrics *otel.Metrics) *EscalationService {
	return &EscalationService{
		store:   store,
		queue:   queue,
		hub:     hub,
		metrics: metrics,
		now:     time.Now,
	}
}

// ListPending returns all requests still awaiting a reviewer, oldest first.
func (s *EscalationService) ListPending(ctx context.Context) ([]escalation.PendingRequest, error) {
	return s.store.ListPendingRequests(ctx)
}

// Get returns a single pending request by its request ID.
func (s *EscalationService) Get(ctx context.Context, requestID string) (*escalation.PendingRequest, error) {
	if requestID == "" {
		return nil, fmt.Errorf("request_id is required: %w", domain.ErrValidation)
	}
	return s.store.GetPendingRequest(ctx, requestID)
}

// Resolve applies a reviewer's decision to a pending request and returns
// the final outcome. The resolved request appends exactly one audit log
// entry, with the human decision added to the stored trace.
func (s *EscalationService) Resolve(ctx context.Context, res escalation.Resolution) (*decision.Outcome, error) {
	if err := validateResolution(res); err != nil {
		return nil, err
	}

	ctx, span := otel.StartResolutionSpan(ctx, res.RequestID, res.ReviewerID)
	defer span.End()

	status := escalation.StatusDenied
	result := decision.ResultDenied
	if res.Approve {
		status = escalation.StatusApproved
		result = decision.ResultApproved
	}

	// The store flips the status and writes the audit log entry in one
	// transaction, so a resolved request is always audited.
	resolved, err := s.store.ResolvePendingRequest(ctx, res.RequestID, status, res.ReviewerID, res.Notes, s.now().UTC())
	if err != nil {
		return nil, err
	}

	trace := append(resolved.DecisionTrace, humanTraceEntry(res))

	publishEvent(ctx, s.queue, messagequeue.SubjectEscalationResolved, messagequeue.EscalationResolvedPayload{
		RequestID:  resolved.RequestID,
		AgentID:    resolved.AgentID,
		ReviewerID: res.ReviewerID,
		Decision:   string(status),
	})
	s.hub.BroadcastEvent(ctx, ws.EventEscalationResolved, ws.EscalationResolvedEvent{
		RequestID:  resolved.RequestID,
		AgentID:    resolved.AgentID,
		ReviewerID: res.ReviewerID,
		Decision:   string(status),
	})
	s.metrics.EscalationsResolved.Add(ctx, 1)

	message := fmt.Sprintf("request %s denied by %s", resolved.RequestID, res.ReviewerID)
	if res.Approve {
		message = fmt.Sprintf("request %s approved by %s", resolved.RequestID, res.ReviewerID)
	}

	return &decision.Outcome{
		Result:  result,
		Message: message,
		Reason:  decision.ReasonHumanOverride,
		Trace:   trace,
	}, nil
}

// humanTraceEntry records the reviewer's decision as the final trace rule.
func humanTraceEntry(res escalation.Resolution) decision.TraceEntry {
	if res.Approve {
		return decision.TraceEntry{
			RuleChecked: decision.RuleHumanDecision,
			RuleResult:  decision.RulePassed,
			Notes:       fmt.Sprintf("approved by human %s", res.ReviewerID),
		}
	}
	notes := fmt.Sprintf("denied by human %s", res.ReviewerID)
	if res.Notes != "" {
		notes = fmt.Sprintf("denied by human %s (%s)", res.ReviewerID, res.Notes)
	}
	return decision.TraceEntry{
		RuleChecked: decision.RuleHumanDecision,
		RuleResult:  decision.RuleFailed,
		Notes:       notes,
	}
}

func validateResolution(res escalation.Resolution) error {
	switch {
	case res.RequestID == "":
		return fmt.Errorf("request_id is required: %w", domain.ErrValidation)
	case res.ReviewerID == "":
		return fmt.Errorf("reviewer_id is required: %w", domain.ErrValidation)
	}
	return nil
}
