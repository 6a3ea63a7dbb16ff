package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardenhq/warden/internal/adapter/postgres"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/domain/agent"
	"github.com/wardenhq/warden/internal/domain/audit"
	"github.com/wardenhq/warden/internal/domain/decision"
	"github.com/wardenhq/warden/internal/domain/escalation"
	"github.com/wardenhq/warden/internal/domain/permission"
)

// setupStore creates a pgxpool connection, runs all migrations, and returns a
// ready-to-use Store. The pool is closed via t.Cleanup.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()

	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewStore(pool)
}

// createTestAgent registers an agent with a random ID and removes it on cleanup.
func createTestAgent(t *testing.T, store *postgres.Store) *agent.Agent {
	t.Helper()
	id := "test-" + uuid.New().String()[:8]
	a, err := store.CreateAgent(context.Background(), agent.CreateRequest{
		ID:    id,
		Name:  "Test Agent " + id,
		Owner: "test-owner",
	})
	if err != nil {
		t.Fatalf("create test agent: %v", err)
	}
	t.Cleanup(func() { _ = store.DeleteAgent(context.Background(), id) })
	return a
}

func TestAgentLifecycle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	a := createTestAgent(t, store)
	if a.Status != agent.StatusActive {
		t.Fatalf("new agent should be active, got %q", a.Status)
	}

	got, err := store.GetAgent(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Owner != "test-owner" {
		t.Errorf("owner = %q", got.Owner)
	}

	if err := store.UpdateAgentStatus(ctx, a.ID, agent.StatusDisabled); err != nil {
		t.Fatal(err)
	}
	got, err = store.GetAgent(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != agent.StatusDisabled {
		t.Errorf("status = %q, want disabled", got.Status)
	}
}

func TestGetAgentNotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.GetAgent(context.Background(), "no-such-agent")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMatchPermissionsExact(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	a := createTestAgent(t, store)

	for _, req := range []permission.CreateRequest{
		{AgentID: a.ID, Action: "deploy", Resource: "staging"},
		{AgentID: a.ID, Action: "deploy", Resource: "production", Condition: "time < 17:00"},
		{AgentID: a.ID, Action: "read", Resource: "staging"},
	} {
		if _, err := store.CreatePermission(ctx, req); err != nil {
			t.Fatal(err)
		}
	}

	matched, err := store.MatchPermissions(ctx, a.ID, "deploy", "staging")
	if err != nil {
		t.Fatal(err)
	}
	if len(matched) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matched))
	}

	matched, err = store.MatchPermissions(ctx, a.ID, "deploy", "nowhere")
	if err != nil {
		t.Fatal(err)
	}
	if len(matched) != 0 {
		t.Fatalf("expected no matches, got %d", len(matched))
	}
}

func TestKillSwitchRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	st, err := store.GetKillSwitch(ctx)
	if err != nil {
		t.Fatalf("kill switch row should be seeded by migration: %v", err)
	}

	prev := st.Enabled
	t.Cleanup(func() { _, _ = store.SetKillSwitch(ctx, prev) })

	st, err = store.SetKillSwitch(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Enabled {
		t.Fatal("expected enabled after set")
	}

	st, err = store.GetKillSwitch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Enabled {
		t.Fatal("expected enabled on read back")
	}
}

func newPendingRequest(agentID string) *escalation.PendingRequest {
	return &escalation.PendingRequest{
		RequestID:      uuid.New().String(),
		AgentID:        agentID,
		Action:         "deploy",
		Resource:       "production",
		Reason:         decision.ReasonKillSwitchEnabled,
		ActionRequired: decision.ActionRequiredHuman,
		Status:         escalation.StatusPending,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
		DecisionTrace: []decision.TraceEntry{
			{RuleChecked: decision.RuleKillSwitch, RuleResult: decision.RuleFailed, Notes: "system kill switch enabled"},
		},
	}
}

func TestPendingRequestResolveOnce(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	a := createTestAgent(t, store)

	pr := newPendingRequest(a.ID)
	if err := store.CreatePendingRequest(ctx, pr); err != nil {
		t.Fatal(err)
	}

	resolved, err := store.ResolvePendingRequest(ctx, pr.RequestID,
		escalation.StatusApproved, "human-1", "looks fine", time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Status != escalation.StatusApproved {
		t.Errorf("status = %q", resolved.Status)
	}
	if resolved.ResolvedBy != "human-1" {
		t.Errorf("resolved_by = %q", resolved.ResolvedBy)
	}
	if resolved.ResolvedAt == nil {
		t.Error("resolved_at not set")
	}

	// Resolution commits its audit log entry in the same transaction.
	logs, err := store.QueryLogs(ctx, audit.QueryFilter{AgentID: pr.AgentID})
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Result != "approved" {
		t.Errorf("audit logs after resolve = %+v, want one approved entry", logs)
	}

	// Second resolution must conflict and name the first resolver.
	_, err = store.ResolvePendingRequest(ctx, pr.RequestID,
		escalation.StatusDenied, "human-2", "", time.Now().UTC())
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestResolvePendingRequestNotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.ResolvePendingRequest(context.Background(), uuid.New().String(),
		escalation.StatusApproved, "human-1", "", time.Now().UTC())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPendingRequestsExcludesResolved(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	a := createTestAgent(t, store)

	keep := newPendingRequest(a.ID)
	done := newPendingRequest(a.ID)
	for _, pr := range []*escalation.PendingRequest{keep, done} {
		if err := store.CreatePendingRequest(ctx, pr); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.ResolvePendingRequest(ctx, done.RequestID,
		escalation.StatusDenied, "human-1", "no", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	list, err := store.ListPendingRequests(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, pr := range list {
		if pr.RequestID == done.RequestID {
			t.Error("resolved request returned in pending list")
		}
		if pr.Status != escalation.StatusPending {
			t.Errorf("non-pending status %q in pending list", pr.Status)
		}
	}
}

func TestQueryLogsFilterAndOrder(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	a := createTestAgent(t, store)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, result := range []string{"approved", "denied", "approved"} {
		entry := &audit.LogEntry{
			AgentID:   a.ID,
			Action:    "deploy",
			Resource:  "staging",
			Result:    result,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.AppendLog(ctx, entry); err != nil {
			t.Fatal(err)
		}
		if entry.ID == "" {
			t.Fatal("AppendLog did not populate ID")
		}
	}

	// Inclusive bounds: the window covers the first two entries exactly.
	entries, err := store.QueryLogs(ctx, audit.QueryFilter{
		AgentID: a.ID,
		Start:   base,
		End:     base.Add(time.Second),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Timestamp.Before(entries[1].Timestamp) {
		t.Error("entries not in ascending timestamp order")
	}
	if entries[0].Result != "approved" || entries[1].Result != "denied" {
		t.Errorf("unexpected results %q, %q", entries[0].Result, entries[1].Result)
	}
}

func TestSeedDevIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.SeedDev(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.SeedDev(ctx); err != nil {
		t.Fatalf("second seed run: %v", err)
	}

	perms, err := store.ListPermissions(ctx, "agent-001")
	if err != nil {
		t.Fatal(err)
	}
	if len(perms) != 2 {
		t.Fatalf("agent-001 should have exactly 2 seeded permissions, got %d", len(perms))
	}
}
