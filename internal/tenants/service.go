package tenants

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/lattice-saas/lattice/internal/shared"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

// CacheInvalidator drops cached permission decisions for a tenant.
type CacheInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error
}

// Service handles tenant business logic.
type Service struct {
	repo   RepositoryPort
	cache  CacheInvalidator
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, cache CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// List returns one page of tenants plus pagination metadata.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Tenant, shared.Pagination, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	paging := shared.NewPagination(page, perPage, total)
	rows, err := s.repo.List(ctx, paging.PerPage, paging.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, paging, nil
}

// Get fetches a tenant by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a new tenant.
func (s *Service) Create(ctx context.Context, slug, name string, planID *uuid.UUID) (Tenant, error) {
	slug = strings.TrimSpace(strings.ToLower(slug))
	if !slugPattern.MatchString(slug) {
		return Tenant{}, errors.New("tenants: slug must be lowercase alphanumeric with dashes")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Tenant{}, errors.New("tenants: name required")
	}
	return s.repo.Create(ctx, Tenant{
		ID:     uuid.New(),
		Slug:   slug,
		Name:   name,
		PlanID: planID,
		Status: StatusActive,
	})
}

// Update changes a tenant's name or plan.
func (s *Service) Update(ctx context.Context, id uuid.UUID, name string, planID *uuid.UUID) (Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tenant{}, errors.New("tenants: name required")
	}
	return s.repo.Update(ctx, Tenant{ID: id, Name: name, PlanID: planID})
}

// Suspend blocks a tenant and drops its cached permission decisions so
// in-flight sessions lose access within the cache TTL rather than after it.
func (s *Service) Suspend(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetStatus(ctx, id, StatusSuspended); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// Resume reactivates a suspended tenant.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetStatus(ctx, id, StatusActive); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTenant(ctx, id); err != nil {
		s.logger.Warn("tenants: invalidate cache", slog.Any("error", err))
	}
}
