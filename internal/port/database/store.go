// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/wardenhq/warden/internal/domain/agent"
	"github.com/wardenhq/warden/internal/domain/audit"
	"github.com/wardenhq/warden/internal/domain/escalation"
	"github.com/wardenhq/warden/internal/domain/permission"
	"github.com/wardenhq/warden/internal/domain/system"
)

// Store is the port interface for persistence.
type Store interface {
	// Agents
	CreateAgent(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error)
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	ListAgents(ctx context.Context) ([]agent.Agent, error)
	UpdateAgentStatus(ctx context.Context, id string, status agent.Status) error
	DeleteAgent(ctx context.Context, id string) error

	// Permissions
	CreatePermission(ctx context.Context, req permission.CreateRequest) (*permission.Permission, error)
	ListPermissions(ctx context.Context, agentID string) ([]permission.Permission, error)
	// MatchPermissions returns the agent's permissions whose action and
	// resource both equal the given values, oldest grant first.
	MatchPermissions(ctx context.Context, agentID, action, resource string) ([]permission.Permission, error)
	DeletePermission(ctx context.Context, id string) error

	// System state
	GetKillSwitch(ctx context.Context) (*system.State, error)
	SetKillSwitch(ctx context.Context, enabled bool) (*system.State, error)

	// Escalations
	CreatePendingRequest(ctx context.Context, pr *escalation.PendingRequest) error
	GetPendingRequest(ctx context.Context, requestID string) (*escalation.PendingRequest, error)
	// ListPendingRequests returns unresolved requests only, oldest first.
	ListPendingRequests(ctx context.Context) ([]escalation.PendingRequest, error)
	// ResolvePendingRequest moves a pending request to a terminal status
	// and atomically appends the audit log entry for the resolution
	// (result = the terminal status, timestamp = resolvedAt). The update
	// only applies while the row is still pending; a request already
	// resolved yields a conflict error naming the resolver and the
	// decision taken.
	ResolvePendingRequest(ctx context.Context, requestID string, status escalation.Status, reviewerID, notes string, resolvedAt time.Time) (*escalation.PendingRequest, error)

	// Audit
	AppendLog(ctx context.Context, entry *audit.LogEntry) error
	QueryLogs(ctx context.Context, f audit.QueryFilter) ([]audit.LogEntry, error)
}
