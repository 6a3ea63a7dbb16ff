package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/domain/escalation"
)

func scanPendingRequest(row scannable) (escalation.PendingRequest, error) {
	var (
		pr         escalation.PendingRequest
		traceJSON  []byte
		resolvedAt *time.Time
	)
	err := row.Scan(&pr.RequestID, &pr.AgentID, &pr.Action, &pr.Resource, &pr.Reason,
		&traceJSON, &pr.ActionRequired, &pr.Status, &pr.CreatedAt,
		&pr.ResolvedBy, &pr.ResolutionNotes, &resolvedAt)
	if err != nil {
		return pr, err
	}
	if err := json.Unmarshal(traceJSON, &pr.DecisionTrace); err != nil {
		return pr, fmt.Errorf("unmarshal decision trace: %w", err)
	}
	pr.ResolvedAt = resolvedAt
	return pr, nil
}

const pendingRequestColumns = `request_id, agent_id, action, resource, reason,
	decision_trace, action_required, status, created_at,
	resolved_by, resolution_notes, resolved_at`

func (s *Store) CreatePendingRequest(ctx context.Context, pr *escalation.PendingRequest) error {
	traceJSON, err := json.Marshal(pr.DecisionTrace)
	if err != nil {
		return fmt.Errorf("marshal decision trace: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO pending_requests
		 (request_id, agent_id, action, resource, reason, decision_trace, action_required, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		pr.RequestID, pr.AgentID, pr.Action, pr.Resource, string(pr.Reason),
		traceJSON, pr.ActionRequired, string(pr.Status), pr.CreatedAt)
	if err != nil {
		return fmt.Errorf("create pending request %s: %w", pr.RequestID, err)
	}
	return nil
}

func (s *Store) GetPendingRequest(ctx context.Context, requestID string) (*escalation.PendingRequest, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pendingRequestColumns+` FROM pending_requests WHERE request_id = $1`,
		requestID)

	pr, err := scanPendingRequest(row)
	if err != nil {
		return nil, notFoundWrap(err, "get pending request %s", requestID)
	}
	return &pr, nil
}

func (s *Store) ListPendingRequests(ctx context.Context) ([]escalation.PendingRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pendingRequestColumns+`
		 FROM pending_requests WHERE status = $1 ORDER BY created_at`,
		string(escalation.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	var out []escalation.PendingRequest
	for rows.Next() {
		pr, err := scanPendingRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

// ResolvePendingRequest is a compare-and-set on status = 'pending' so each
// request resolves exactly once, regardless of concurrent reviewers. The
// status flip and its audit log entry commit in one transaction; a request
// can never end up resolved but unaudited.
func (s *Store) ResolvePendingRequest(ctx context.Context, requestID string, status escalation.Status, reviewerID, notes string, resolvedAt time.Time) (*escalation.PendingRequest, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`UPDATE pending_requests
		 SET status = $2, resolved_by = $3, resolution_notes = $4, resolved_at = $5
		 WHERE request_id = $1 AND status = 'pending'
		 RETURNING `+pendingRequestColumns,
		requestID, string(status), reviewerID, notes, nullTime(resolvedAt))

	pr, err := scanPendingRequest(row)
	if err == nil {
		_, err = tx.Exec(ctx,
			`INSERT INTO audit_log (agent_id, action, resource, result, timestamp)
			 VALUES ($1, $2, $3, $4, $5)`,
			pr.AgentID, pr.Action, pr.Resource, string(status), resolvedAt)
		if err != nil {
			return nil, fmt.Errorf("append resolution log for %s: %w", requestID, err)
		}
		if err = tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit tx: %w", err)
		}
		return &pr, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("resolve pending request %s: %w", requestID, err)
	}

	// The CAS matched no row: either the request does not exist or it was
	// already resolved. Fetch it to tell callers which, and by whom.
	existing, getErr := s.GetPendingRequest(ctx, requestID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("pending request %s already %s by %s: %w",
		requestID, existing.Status, existing.ResolvedBy, domain.ErrConflict)
}
