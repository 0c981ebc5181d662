package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lattice-saas/lattice/internal/shared"
)

// CacheInvalidator drops cached permission decisions for a user.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

// Notifier queues transactional mail. A nil Notifier disables notifications.
type Notifier interface {
	EnqueueWelcomeEmail(ctx context.Context, email, name string) error
}

// Service implements user management use cases.
type Service struct {
	repo     RepositoryPort
	cache    CacheInvalidator
	notifier Notifier
	logger   *slog.Logger
}

// NewService constructs a user service.
func NewService(repo RepositoryPort, cache CacheInvalidator, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, notifier: notifier, logger: logger}
}

// CreateInput captures fields for a new user.
type CreateInput struct {
	Email     string
	Name      string
	Password  string
	TenantID  *uuid.UUID
	AccountID *uuid.UUID
}

// List returns one page of users with pagination metadata.
func (s *Service) List(ctx context.Context, tenantID *uuid.UUID, page, perPage int) ([]User, shared.Pagination, error) {
	paging := shared.NewPagination(page, perPage, 0)
	items, err := s.repo.List(ctx, tenantID, paging.PerPage, paging.Offset())
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list users: %w", err)
	}
	total, err := s.repo.Count(ctx, tenantID)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("count users: %w", err)
	}
	return items, shared.NewPagination(page, perPage, total), nil
}

// Get fetches a single user.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a new user with a hashed password.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user := User{
		ID:        uuid.New(),
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Name:      strings.TrimSpace(input.Name),
		TenantID:  input.TenantID,
		AccountID: input.AccountID,
		IsActive:  true,
	}
	created, err := s.repo.Create(ctx, user, string(hash))
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user created", slog.String("user_id", created.ID.String()), slog.String("email", created.Email))
	if s.notifier != nil {
		if err := s.notifier.EnqueueWelcomeEmail(ctx, created.Email, created.Name); err != nil {
			s.logger.Warn("users: enqueue welcome email", slog.Any("error", err))
		}
	}
	return created, nil
}

// Activate re-enables a user account.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, true)
}

// Deactivate disables a user account and drops their cached decisions
// so the change takes effect immediately.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateUser(ctx, id); err != nil {
			s.logger.Warn("users: invalidate cache", slog.Any("error", err))
		}
	}
	s.logger.Info("user deactivated", slog.String("user_id", id.String()))
	return nil
}
