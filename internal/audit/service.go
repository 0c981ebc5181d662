package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lattice-saas/lattice/internal/shared"
)

// Service serves the audit timeline and enforces retention.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs an audit service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Timeline returns one page of the decision trail, newest first.
func (s *Service) Timeline(ctx context.Context, filter Filter, page, perPage int) ([]Entry, shared.Pagination, error) {
	paging := shared.NewPagination(page, perPage, 0)
	entries, err := s.repo.List(ctx, filter, paging.PerPage, paging.Offset())
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list audit entries: %w", err)
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("count audit entries: %w", err)
	}
	return entries, shared.NewPagination(page, perPage, total), nil
}

// Purge deletes entries older than the retention window.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	removed, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	s.logger.Info("audit retention applied",
		slog.Time("cutoff", cutoff),
		slog.Int64("removed", removed))
	return removed, nil
}
