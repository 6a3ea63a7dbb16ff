package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardenhq/warden/internal/domain/agent"
	"github.com/wardenhq/warden/internal/domain/permission"
	"github.com/wardenhq/warden/internal/domain/system"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Agents ---

func scanAgent(row scannable) (agent.Agent, error) {
	var a agent.Agent
	err := row.Scan(&a.ID, &a.Name, &a.Owner, &a.Status, &a.CreatedAt)
	return a, err
}

func (s *Store) CreateAgent(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO agents (id, name, owner)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, owner, status, created_at`,
		req.ID, req.Name, req.Owner)

	a, err := scanAgent(row)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return &a, nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, owner, status, created_at FROM agents WHERE id = $1`, id)

	a, err := scanAgent(row)
	if err != nil {
		return nil, notFoundWrap(err, "get agent %s", id)
	}
	return &a, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]agent.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, owner, status, created_at FROM agents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []agent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *Store) UpdateAgentStatus(ctx context.Context, id string, status agent.Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agents SET status = $2 WHERE id = $1`, id, string(status))
	return execExpectOne(tag, err, "update agent status %s", id)
}

func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete agent %s", id)
}

// --- Permissions ---

func scanPermission(row scannable) (permission.Permission, error) {
	var p permission.Permission
	err := row.Scan(&p.ID, &p.AgentID, &p.Action, &p.Resource, &p.Condition, &p.CreatedAt)
	return p, err
}

func (s *Store) CreatePermission(ctx context.Context, req permission.CreateRequest) (*permission.Permission, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO permissions (agent_id, action, resource, condition)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, agent_id, action, resource, condition, created_at`,
		req.AgentID, req.Action, req.Resource, req.Condition)

	p, err := scanPermission(row)
	if err != nil {
		return nil, fmt.Errorf("create permission: %w", err)
	}
	return &p, nil
}

func (s *Store) ListPermissions(ctx context.Context, agentID string) ([]permission.Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, agent_id, action, resource, condition, created_at
		 FROM permissions WHERE agent_id = $1 ORDER BY created_at`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	return collectPermissions(rows)
}

func (s *Store) MatchPermissions(ctx context.Context, agentID, action, resource string) ([]permission.Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, agent_id, action, resource, condition, created_at
		 FROM permissions
		 WHERE agent_id = $1 AND action = $2 AND resource = $3
		 ORDER BY created_at`, agentID, action, resource)
	if err != nil {
		return nil, fmt.Errorf("match permissions: %w", err)
	}
	defer rows.Close()

	return collectPermissions(rows)
}

func collectPermissions(rows pgx.Rows) ([]permission.Permission, error) {
	var perms []permission.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *Store) DeletePermission(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete permission %s", id)
}

// --- System state ---

func (s *Store) GetKillSwitch(ctx context.Context) (*system.State, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT key, enabled, updated_at FROM system_state WHERE key = $1`,
		system.KillSwitchKey)

	var st system.State
	if err := row.Scan(&st.Key, &st.Enabled, &st.UpdatedAt); err != nil {
		return nil, killSwitchMissing(err)
	}
	return &st, nil
}

func (s *Store) SetKillSwitch(ctx context.Context, enabled bool) (*system.State, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO system_state (key, enabled, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET enabled = $2, updated_at = now()
		 RETURNING key, enabled, updated_at`,
		system.KillSwitchKey, enabled)

	var st system.State
	if err := row.Scan(&st.Key, &st.Enabled, &st.UpdatedAt); err != nil {
		return nil, fmt.Errorf("set kill switch: %w", err)
	}
	return &st, nil
}
