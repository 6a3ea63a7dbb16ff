package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/domain/agent"
	"github.com/wardenhq/warden/internal/domain/audit"
	"github.com/wardenhq/warden/internal/domain/escalation"
	"github.com/wardenhq/warden/internal/domain/permission"
	"github.com/wardenhq/warden/internal/domain/system"
	"github.com/wardenhq/warden/internal/port/messagequeue"
)

// memStore is an in-memory database.Store for service tests. It mirrors
// the persistence semantics the services rely on: not-found and conflict
// sentinels, compare-and-set resolution, and ascending log order.
type memStore struct {
	mu          sync.Mutex
	agents      map[string]agent.Agent
	permissions map[string]permission.Permission
	pending     map[string]escalation.PendingRequest
	logs        []audit.LogEntry
	killSwitch  bool

	failAppendLog bool
}

func newMemStore() *memStore {
	return &memStore{
		agents:      make(map[string]agent.Agent),
		permissions: make(map[string]permission.Permission),
		pending:     make(map[string]escalation.PendingRequest),
	}
}

func (m *memStore) CreateAgent(_ context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[req.ID]; ok {
		return nil, fmt.Errorf("agent %s exists: %w", req.ID, domain.ErrConflict)
	}
	a := agent.Agent{ID: req.ID, Name: req.Name, Owner: req.Owner, Status: agent.StatusActive, CreatedAt: time.Now()}
	m.agents[a.ID] = a
	return &a, nil
}

func (m *memStore) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}

func (m *memStore) ListAgents(context.Context) ([]agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]agent.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateAgentStatus(_ context.Context, id string, status agent.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	a.Status = status
	m.agents[id] = a
	return nil
}

func (m *memStore) DeleteAgent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[id]; !ok {
		return fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	delete(m.agents, id)
	for pid, p := range m.permissions {
		if p.AgentID == id {
			delete(m.permissions, pid)
		}
	}
	return nil
}

func (m *memStore) CreatePermission(_ context.Context, req permission.CreateRequest) (*permission.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := permission.Permission{
		ID:        uuid.NewString(),
		AgentID:   req.AgentID,
		Action:    req.Action,
		Resource:  req.Resource,
		Condition: req.Condition,
		CreatedAt: time.Now(),
	}
	m.permissions[p.ID] = p
	return &p, nil
}

func (m *memStore) ListPermissions(_ context.Context, agentID string) ([]permission.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []permission.Permission
	for _, p := range m.permissions {
		if p.AgentID == agentID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) MatchPermissions(_ context.Context, agentID, action, resource string) ([]permission.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []permission.Permission
	for _, p := range m.permissions {
		if p.AgentID == agentID && p.Action == action && p.Resource == resource {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) DeletePermission(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.permissions[id]; !ok {
		return fmt.Errorf("permission %s: %w", id, domain.ErrNotFound)
	}
	delete(m.permissions, id)
	return nil
}

func (m *memStore) GetKillSwitch(context.Context) (*system.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &system.State{Key: system.KillSwitchKey, Enabled: m.killSwitch, UpdatedAt: time.Now()}, nil
}

func (m *memStore) SetKillSwitch(_ context.Context, enabled bool) (*system.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killSwitch = enabled
	return &system.State{Key: system.KillSwitchKey, Enabled: enabled, UpdatedAt: time.Now()}, nil
}

func (m *memStore) CreatePendingRequest(_ context.Context, pr *escalation.PendingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[pr.RequestID] = *pr
	return nil
}

func (m *memStore) GetPendingRequest(_ context.Context, requestID string) (*escalation.PendingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pr, ok := m.pending[requestID]
	if !ok {
		return nil, fmt.Errorf("pending request %s: %w", requestID, domain.ErrNotFound)
	}
	return &pr, nil
}

func (m *memStore) ListPendingRequests(context.Context) ([]escalation.PendingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []escalation.PendingRequest
	for _, pr := range m.pending {
		if pr.Status == escalation.StatusPending {
			out = append(out, pr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ResolvePendingRequest(_ context.Context, requestID string, status escalation.Status, reviewerID, notes string, resolvedAt time.Time) (*escalation.PendingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pr, ok := m.pending[requestID]
	if !ok {
		return nil, fmt.Errorf("pending request %s: %w", requestID, domain.ErrNotFound)
	}
	if pr.Status != escalation.StatusPending {
		return nil, fmt.Errorf("pending request %s already %s by %s: %w",
			requestID, pr.Status, pr.ResolvedBy, domain.ErrConflict)
	}
	// The log write and the status flip commit together, as in the
	// transactional store. A failed log leaves the request pending.
	if m.failAppendLog {
		return nil, fmt.Errorf("append resolution log for %s: %w", requestID, domain.ErrSystem)
	}
	pr.Status = status
	pr.ResolvedBy = reviewerID
	pr.ResolutionNotes = notes
	pr.ResolvedAt = &resolvedAt
	m.pending[requestID] = pr
	m.logs = append(m.logs, audit.LogEntry{
		ID:        uuid.NewString(),
		AgentID:   pr.AgentID,
		Action:    pr.Action,
		Resource:  pr.Resource,
		Result:    string(status),
		Timestamp: resolvedAt,
	})
	return &pr, nil
}

func (m *memStore) AppendLog(_ context.Context, entry *audit.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppendLog {
		return fmt.Errorf("append log: %w", domain.ErrSystem)
	}
	entry.ID = uuid.NewString()
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *memStore) QueryLogs(_ context.Context, f audit.QueryFilter) ([]audit.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.LogEntry
	for _, e := range m.logs {
		if f.AgentID != "" && e.AgentID != f.AgentID {
			continue
		}
		if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && e.Timestamp.After(f.End) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// memQueue records published events for assertions.
type memQueue struct {
	mu        sync.Mutex
	published []publishedMsg
	connected bool
}

type publishedMsg struct {
	subject string
	data    []byte
}

func newMemQueue() *memQueue {
	return &memQueue{connected: true}
}

func (q *memQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, publishedMsg{subject: subject, data: data})
	return nil
}

func (q *memQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *memQueue) Close() error      { return nil }
func (q *memQueue) IsConnected() bool { return q.connected }

func (q *memQueue) subjects() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.published))
	for _, m := range q.published {
		out = append(out, m.subject)
	}
	return out
}
