package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/wardenhq/warden/internal/domain/audit"
)

func (s *Store) AppendLog(ctx context.Context, entry *audit.LogEntry) error {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO audit_log (agent_id, action, resource, result, timestamp)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		entry.AgentID, entry.Action, entry.Resource, entry.Result, entry.Timestamp)

	if err := row.Scan(&entry.ID); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// QueryLogs returns entries matching the filter, oldest first. Time bounds
// are inclusive.
func (s *Store) QueryLogs(ctx context.Context, f audit.QueryFilter) ([]audit.LogEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.AgentID != "" {
		args = append(args, f.AgentID)
		where = append(where, fmt.Sprintf("agent_id = $%d", len(args)))
	}
	if !f.Start.IsZero() {
		args = append(args, f.Start)
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if !f.End.IsZero() {
		args = append(args, f.End)
		where = append(where, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	query := `SELECT id, agent_id, action, resource, result, timestamp FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var entries []audit.LogEntry
	for rows.Next() {
		var e audit.LogEntry
		if err := rows.Scan(&e.ID, &e.AgentID, &e.Action, &e.Resource, &e.Result, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
