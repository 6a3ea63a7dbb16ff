package postgres

import (
	"context"
	"fmt"
)

// seedAgents are the reference agents inserted for local development.
var seedAgents = []struct {
	id, name, owner, status string
}{
	{"agent-001", "deploy-bot", "alice", "active"},
	{"agent-002", "report-bot", "bob", "active"},
	{"agent-003", "cleanup-bot", "alice", "disabled"},
	{"agent-004", "backup-bot", "carol", "active"},
}

var seedPermissions = []struct {
	agentID, action, resource, condition string
}{
	{"agent-001", "deploy", "staging", ""},
	{"agent-001", "deploy", "production", "time < 17:00"},
	{"agent-002", "read", "reports", ""},
	{"agent-002", "write", "reports", "time >= 09:00"},
	{"agent-004", "backup", "database", ""},
}

// SeedDev inserts the reference fixture set. Inserts are idempotent so the
// seed can run on every boot of a development instance.
func (s *Store) SeedDev(ctx context.Context) error {
	for _, a := range seedAgents {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO agents (id, name, owner, status) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO NOTHING`,
			a.id, a.name, a.owner, a.status)
		if err != nil {
			return fmt.Errorf("seed agent %s: %w", a.id, err)
		}
	}

	for _, p := range seedPermissions {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO permissions (agent_id, action, resource, condition)
			 SELECT $1, $2, $3, $4
			 WHERE NOT EXISTS (
			     SELECT 1 FROM permissions
			     WHERE agent_id = $1 AND action = $2 AND resource = $3 AND condition = $4
			 )`,
			p.agentID, p.action, p.resource, p.condition)
		if err != nil {
			return fmt.Errorf("seed permission %s/%s/%s: %w", p.agentID, p.action, p.resource, err)
		}
	}

	return nil
}
