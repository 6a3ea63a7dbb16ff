package service

import (
	"context"
	"fmt"

	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/domain/audit"
	"github.com/wardenhq/warden/internal/port/database"
)

// AuditService exposes read access to the append-only decision log.
type AuditService struct {
	store database.Store
}

// NewAuditService creates an AuditService.
func NewAuditService(store database.Store) *AuditService {
	return &AuditService{store: store}
}

// Query returns log entries matching the filter, oldest first. Zero-value
// filter fields are unbounded; time bounds are inclusive.
func (s *AuditService) Query(ctx context.Context, f audit.QueryFilter) ([]audit.LogEntry, error) {
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return nil, fmt.Errorf("end_time precedes start_time: %w", domain.ErrValidation)
	}
	return s.store.QueryLogs(ctx, f)
}
