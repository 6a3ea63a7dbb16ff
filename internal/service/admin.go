package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardenhq/warden/internal/adapter/ws"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/domain/agent"
	"github.com/wardenhq/warden/internal/domain/audit"
	"github.com/wardenhq/warden/internal/domain/permission"
	"github.com/wardenhq/warden/internal/domain/system"
	"github.com/wardenhq/warden/internal/port/cache"
	"github.com/wardenhq/warden/internal/port/database"
	"github.com/wardenhq/warden/internal/port/messagequeue"
)

// Cache keys for admin read paths. Mutations invalidate the affected keys.
const (
	cacheKeyAgents      = "agents:all"
	cacheKeyAgentPrefix = "agent:"
	cacheKeyPermsPrefix = "perms:"
)

// AdminService manages the agent registry, permission grants, and the
// system kill switch. Read paths go through a short-TTL cache; the
// authorization pipeline never does.
type AdminService struct {
	store    database.Store
	cache    cache.Cache
	queue    messagequeue.Queue
	hub      *ws.Hub
	cacheTTL time.Duration
	now      func() time.Time
}

// NewAdminService creates an AdminService. The cache may be nil, in
// which case reads always hit the store.
func NewAdminService(store database.Store, c cache.Cache, queue messagequeue.Queue, hub *ws.Hub, cacheTTL time.Duration) *AdminService {
	return &AdminService{
		store:    store,
		cache:    c,
		queue:    queue,
		hub:      hub,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// CreateAgent registers a new agent. New agents start active.
func (s *AdminService) CreateAgent(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	switch {
	case req.ID == "":
		return nil, fmt.Errorf("id is required: %w", domain.ErrValidation)
	case req.Name == "":
		return nil, fmt.Errorf("name is required: %w", domain.ErrValidation)
	case req.Owner == "":
		return nil, fmt.Errorf("owner is required: %w", domain.ErrValidation)
	}

	a, err := s.store.CreateAgent(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cacheKeyAgents, cacheKeyAgentPrefix+a.ID)
	return a, nil
}

// GetAgent returns a single agent by ID.
func (s *AdminService) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	if id == "" {
		return nil, fmt.Errorf("id is required: %w", domain.ErrValidation)
	}
	var a agent.Agent
	if s.cached(ctx, cacheKeyAgentPrefix+id, &a) {
		return &a, nil
	}
	got, err := s.store.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cachePut(ctx, cacheKeyAgentPrefix+id, got)
	return got, nil
}

// ListAgents returns all registered agents.
func (s *AdminService) ListAgents(ctx context.Context) ([]agent.Agent, error) {
	var agents []agent.Agent
	if s.cached(ctx, cacheKeyAgents, &agents) {
		return agents, nil
	}
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	s.cachePut(ctx, cacheKeyAgents, agents)
	return agents, nil
}

// DeleteAgent removes an agent and, via the schema, its permissions.
func (s *AdminService) DeleteAgent(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("id is required: %w", domain.ErrValidation)
	}
	if err := s.store.DeleteAgent(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cacheKeyAgents, cacheKeyAgentPrefix+id, cacheKeyPermsPrefix+id)
	return nil
}

// SetAgentEnabled flips an agent between active and disabled on behalf
// of its owner. Only the owner may do this; the flip is audited as a
// kill action with the resulting state.
func (s *AdminService) SetAgentEnabled(ctx context.Context, agentID, ownerID string, enabled bool) (*agent.Agent, error) {
	switch {
	case agentID == "":
		return nil, fmt.Errorf("agent_id is required: %w", domain.ErrValidation)
	case ownerID == "":
		return nil, fmt.Errorf("owner_id is required: %w", domain.ErrValidation)
	}

	a, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if a.Owner != ownerID {
		return nil, fmt.Errorf("agent %s is owned by %s, not %s: %w", a.ID, a.Owner, ownerID, domain.ErrUnauthorized)
	}

	status := agent.StatusDisabled
	result := "disabled"
	if enabled {
		status = agent.StatusActive
		result = "enabled"
	}

	if err := s.store.UpdateAgentStatus(ctx, agentID, status); err != nil {
		return nil, err
	}
	a.Status = status

	if err := s.store.AppendLog(ctx, &audit.LogEntry{
		AgentID:   a.ID,
		Action:    "kill",
		Resource:  "agent",
		Result:    result,
		Timestamp: s.now().UTC(),
	}); err != nil {
		return nil, err
	}

	s.invalidate(ctx, cacheKeyAgents, cacheKeyAgentPrefix+agentID)
	return a, nil
}

// GetKillSwitch returns the current global kill switch state.
func (s *AdminService) GetKillSwitch(ctx context.Context) (*system.State, error) {
	return s.store.GetKillSwitch(ctx)
}

// SetKillSwitch toggles the global kill switch. Every toggle is audited
// under the reserved agent ID "system" and announced to subscribers.
func (s *AdminService) SetKillSwitch(ctx context.Context, enabled bool) (*system.State, error) {
	state, err := s.store.SetKillSwitch(ctx, enabled)
	if err != nil {
		return nil, err
	}

	result := "disabled"
	if enabled {
		result = "enabled"
	}
	if err := s.store.AppendLog(ctx, &audit.LogEntry{
		AgentID:   "system",
		Action:    "system_kill_switch",
		Resource:  "system",
		Result:    result,
		Timestamp: s.now().UTC(),
	}); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.queue, messagequeue.SubjectKillSwitchChanged, messagequeue.KillSwitchChangedPayload{
		Enabled:   enabled,
		ChangedBy: "system",
	})
	s.hub.BroadcastEvent(ctx, ws.EventKillSwitchChanged, ws.KillSwitchChangedEvent{Enabled: enabled})

	slog.Info("kill switch toggled", "enabled", enabled)
	return state, nil
}

// CreatePermission grants an agent an action on a resource. The agent
// must exist, and a non-empty condition must parse.
func (s *AdminService) CreatePermission(ctx context.Context, req permission.CreateRequest) (*permission.Permission, error) {
	switch {
	case req.AgentID == "":
		return nil, fmt.Errorf("agent_id is required: %w", domain.ErrValidation)
	case req.Action == "":
		return nil, fmt.Errorf("action is required: %w", domain.ErrValidation)
	case req.Resource == "":
		return nil, fmt.Errorf("resource is required: %w", domain.ErrValidation)
	}
	if req.Condition != "" {
		if _, err := permission.EvalCondition(req.Condition, s.now()); err != nil {
			return nil, fmt.Errorf("condition %q: %v: %w", req.Condition, err, domain.ErrValidation)
		}
	}

	if _, err := s.store.GetAgent(ctx, req.AgentID); err != nil {
		return nil, err
	}

	p, err := s.store.CreatePermission(ctx, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, cacheKeyPermsPrefix+req.AgentID)
	return p, nil
}

// ListPermissionsFor returns an agent's permissions. A missing agent is
// not-found rather than an empty list.
func (s *AdminService) ListPermissionsFor(ctx context.Context, agentID string) ([]permission.Permission, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent_id is required: %w", domain.ErrValidation)
	}

	var perms []permission.Permission
	if s.cached(ctx, cacheKeyPermsPrefix+agentID, &perms) {
		return perms, nil
	}

	if _, err := s.store.GetAgent(ctx, agentID); err != nil {
		return nil, err
	}
	perms, err := s.store.ListPermissions(ctx, agentID)
	if err != nil {
		return nil, err
	}
	s.cachePut(ctx, cacheKeyPermsPrefix+agentID, perms)
	return perms, nil
}

// DeletePermission revokes a single permission by ID.
func (s *AdminService) DeletePermission(ctx context.Context, id, agentID string) error {
	if id == "" {
		return fmt.Errorf("id is required: %w", domain.ErrValidation)
	}
	if err := s.store.DeletePermission(ctx, id); err != nil {
		return err
	}
	if agentID != "" {
		s.invalidate(ctx, cacheKeyPermsPrefix+agentID)
	}
	return nil
}

// cached loads a cache entry into dst, reporting whether it was present.
func (s *AdminService) cached(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		slog.Warn("corrupt cache entry dropped", "key", key, "error", err)
		_ = s.cache.Delete(ctx, key)
		return false
	}
	return true
}

func (s *AdminService) cachePut(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		slog.Warn("cache set failed", "key", key, "error", err)
	}
}

func (s *AdminService) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			slog.Warn("cache invalidation failed", "key", key, "error", err)
		}
	}
}

