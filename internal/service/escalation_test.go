package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/adapter/otel"
	"github.com/wardenhq/warden/internal/adapter/ws"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/domain/audit"
	"github.com/wardenhq/warden/internal/domain/decision"
	"github.com/wardenhq/warden/internal/domain/escalation"
	"github.com/wardenhq/warden/internal/port/messagequeue"
)

func newTestEscalation(t *testing.T, store *memStore, queue *memQueue) *EscalationService {
	t.Helper()
	metrics, err := otel.NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return NewEscalationService(store, queue, ws.NewHub(), metrics)
}

func addPendingRequest(t *testing.T, store *memStore, agentID string) string {
	t.Helper()
	id := uuid.NewString()
	err := store.CreatePendingRequest(context.Background(), &escalation.PendingRequest{
		RequestID: id,
		AgentID:   agentID,
		Action:    "deploy",
		Resource:  "staging",
		Reason:    decision.ReasonKillSwitchEnabled,
		DecisionTrace: []decision.TraceEntry{{
			RuleChecked: decision.RuleKillSwitch,
			RuleResult:  decision.RuleFailed,
			Notes:       "system kill switch enabled",
		}},
		ActionRequired: decision.ActionRequiredHuman,
		Status:         escalation.StatusPending,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreatePendingRequest: %v", err)
	}
	return id
}

func TestResolveApprove(t *testing.T) {
	store := newMemStore()
	queue := newMemQueue()
	svc := newTestEscalation(t, store, queue)

	id := addPendingRequest(t, store, "deploy-bot")

	out, err := svc.Resolve(context.Background(), escalation.Resolution{
		RequestID: id, ReviewerID: "alice", Approve: true,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Result != decision.ResultApproved {
		t.Fatalf("result = %q, want approved", out.Result)
	}
	if out.Reason != decision.ReasonHumanOverride {
		t.Errorf("reason = %q, want human_override", out.Reason)
	}
	last := out.Trace[len(out.Trace)-1]
	if last.RuleChecked != decision.RuleHumanDecision || last.Notes != "approved by human alice" {
		t.Errorf("final trace entry = %+v", last)
	}

	pr, err := store.GetPendingRequest(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPendingRequest: %v", err)
	}
	if pr.Status != escalation.StatusApproved || pr.ResolvedBy != "alice" {
		t.Errorf("resolved request = %+v", pr)
	}
	if pr.ResolvedAt == nil {
		t.Error("resolved_at is nil")
	}

	// Resolution writes the single audit log entry for the request.
	logs, err := store.QueryLogs(context.Background(), audit.QueryFilter{})
	if err != nil {
		t.Fatalf("QueryLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("audit log entries = %d, want 1", len(logs))
	}
	if logs[0].Result != string(decision.ResultApproved) {
		t.Errorf("log result = %q, want approved", logs[0].Result)
	}

	subjects := queue.subjects()
	if len(subjects) != 1 || subjects[0] != messagequeue.SubjectEscalationResolved {
		t.Errorf("published subjects = %v", subjects)
	}
}

func TestResolveDenyWithNotes(t *testing.T) {
	store := newMemStore()
	svc := newTestEscalation(t, store, newMemQueue())

	id := addPendingRequest(t, store, "deploy-bot")

	out, err := svc.Resolve(context.Background(), escalation.Resolution{
		RequestID: id, ReviewerID: "carol", Approve: false, Notes: "not during the incident",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Result != decision.ResultDenied {
		t.Fatalf("result = %q, want denied", out.Result)
	}
	last := out.Trace[len(out.Trace)-1]
	if last.Notes != "denied by human carol (not during the incident)" {
		t.Errorf("trace notes = %q", last.Notes)
	}

	logs, err := store.QueryLogs(context.Background(), audit.QueryFilter{})
	if err != nil {
		t.Fatalf("QueryLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].Result != string(decision.ResultDenied) {
		t.Errorf("audit log = %+v", logs)
	}
}

func TestResolveTwiceConflicts(t *testing.T) {
	store := newMemStore()
	svc := newTestEscalation(t, store, newMemQueue())

	id := addPendingRequest(t, store, "deploy-bot")

	if _, err := svc.Resolve(context.Background(), escalation.Resolution{
		RequestID: id, ReviewerID: "alice", Approve: true,
	}); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	_, err := svc.Resolve(context.Background(), escalation.Resolution{
		RequestID: id, ReviewerID: "bob", Approve: false,
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second Resolve error = %v, want ErrConflict", err)
	}

	// The losing resolution must not add a second audit log entry.
	logs, err := store.QueryLogs(context.Background(), audit.QueryFilter{})
	if err != nil {
		t.Fatalf("QueryLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Errorf("audit log entries = %d, want 1", len(logs))
	}
}

func TestResolveAuditFailureLeavesRequestPending(t *testing.T) {
	store := newMemStore()
	svc := newTestEscalation(t, store, newMemQueue())

	id := addPendingRequest(t, store, "deploy-bot")
	store.failAppendLog = true

	_, err := svc.Resolve(context.Background(), escalation.Resolution{
		RequestID: id, ReviewerID: "alice", Approve: true,
	})
	if err == nil {
		t.Fatal("Resolve should fail when the audit log cannot be written")
	}

	// Status flip and audit log commit together: a failed log write
	// must leave the request unresolved and unaudited.
	pr, err := store.GetPendingRequest(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPendingRequest: %v", err)
	}
	if pr.Status != escalation.StatusPending {
		t.Errorf("status = %q, want pending", pr.Status)
	}

	logs, err := store.QueryLogs(context.Background(), audit.QueryFilter{})
	if err != nil {
		t.Fatalf("QueryLogs: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("audit log entries = %d, want 0", len(logs))
	}
}

func TestResolveUnknownRequest(t *testing.T) {
	svc := newTestEscalation(t, newMemStore(), newMemQueue())

	_, err := svc.Resolve(context.Background(), escalation.Resolution{
		RequestID: uuid.NewString(), ReviewerID: "alice", Approve: true,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Resolve error = %v, want ErrNotFound", err)
	}
}

func TestResolveValidation(t *testing.T) {
	svc := newTestEscalation(t, newMemStore(), newMemQueue())

	cases := []escalation.Resolution{
		{ReviewerID: "alice"},
		{RequestID: uuid.NewString()},
	}
	for _, res := range cases {
		if _, err := svc.Resolve(context.Background(), res); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Resolve(%+v) error = %v, want ErrValidation", res, err)
		}
	}
}

func TestListPendingExcludesResolved(t *testing.T) {
	store := newMemStore()
	svc := newTestEscalation(t, store, newMemQueue())

	first := addPendingRequest(t, store, "deploy-bot")
	second := addPendingRequest(t, store, "report-bot")

	if _, err := svc.Resolve(context.Background(), escalation.Resolution{
		RequestID: first, ReviewerID: "alice", Approve: true,
	}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	pending, err := svc.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].RequestID != second {
		t.Errorf("pending = %+v, want only %s", pending, second)
	}
}
