package plans

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Service handles plan business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns all plans.
func (s *Service) List(ctx context.Context) ([]Plan, error) {
	return s.repo.List(ctx)
}

// Get fetches a plan by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Plan, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a new plan.
func (s *Service) Create(ctx context.Context, plan Plan) (Plan, error) {
	plan.Code = strings.TrimSpace(strings.ToLower(plan.Code))
	if plan.Code == "" {
		return Plan{}, errors.New("plans: code required")
	}
	if plan.MaxUsers < 0 || plan.MaxAccounts < 0 {
		return Plan{}, errors.New("plans: limits must be non-negative")
	}
	plan.ID = uuid.New()
	if plan.Features == nil {
		plan.Features = map[string]bool{}
	}
	return s.repo.Create(ctx, plan)
}

// Update changes a plan's name, limits and features.
func (s *Service) Update(ctx context.Context, plan Plan) (Plan, error) {
	if plan.MaxUsers < 0 || plan.MaxAccounts < 0 {
		return Plan{}, errors.New("plans: limits must be non-negative")
	}
	if plan.Features == nil {
		plan.Features = map[string]bool{}
	}
	return s.repo.Update(ctx, plan)
}

// Delete removes a plan.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
