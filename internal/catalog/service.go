package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/lattice-saas/lattice/internal/authz"
)

// Invalidator drops cached decisions after catalog mutations.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
	InvalidateAll(ctx context.Context) error
}

// Broadcaster notifies other processes that the catalog changed so they can
// reload their own snapshots. A nil Broadcaster limits reloads to this
// process.
type Broadcaster interface {
	BroadcastCatalogRefresh(ctx context.Context, reason string) error
}

// Service orchestrates catalog administration. Every mutation reloads the
// engine snapshot and invalidates affected cached decisions, so no stale
// decision survives a role or permission change.
type Service struct {
	repo      RepositoryPort
	loader    *Loader
	cache     Invalidator
	broadcast Broadcaster
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, loader *Loader, cache Invalidator, broadcast Broadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, loader: loader, cache: cache, broadcast: broadcast, logger: logger}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role with its permission codes.
func (s *Service) GetRole(ctx context.Context, code string) (Role, []string, error) {
	role, err := s.repo.GetRole(ctx, code)
	if err != nil {
		return Role{}, nil, err
	}
	perms, err := s.repo.RolePermissions(ctx, code)
	if err != nil {
		return Role{}, nil, err
	}
	return role, perms, nil
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, code, name, description string) (Role, error) {
	code = strings.TrimSpace(strings.ToLower(code))
	if code == "" {
		return Role{}, errors.New("catalog: role code required")
	}
	role, err := s.repo.CreateRole(ctx, Role{Code: code, Name: strings.TrimSpace(name), Description: strings.TrimSpace(description)})
	if err != nil {
		return Role{}, err
	}
	s.refresh(ctx, false)
	return role, nil
}

// UpdateRole updates an existing role.
func (s *Service) UpdateRole(ctx context.Context, code, name, description string) (Role, error) {
	role, err := s.repo.UpdateRole(ctx, Role{Code: code, Name: strings.TrimSpace(name), Description: strings.TrimSpace(description)})
	if err != nil {
		return Role{}, err
	}
	s.refresh(ctx, false)
	return role, nil
}

// DeleteRole removes a role. Cached decisions for every holder become
// invalid, so the whole cache is dropped.
func (s *Service) DeleteRole(ctx context.Context, code string) error {
	if err := s.repo.DeleteRole(ctx, code); err != nil {
		return err
	}
	s.refresh(ctx, true)
	return nil
}

// ListPermissions returns all permission definitions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// CreatePermission registers a new permission definition.
func (s *Service) CreatePermission(ctx context.Context, perm Permission) (Permission, error) {
	perm.Code = strings.TrimSpace(strings.ToLower(perm.Code))
	if perm.Code == "" {
		return Permission{}, errors.New("catalog: permission code required")
	}
	if _, err := authz.ParseScope(perm.Scope); err != nil {
		return Permission{}, err
	}
	created, err := s.repo.CreatePermission(ctx, perm)
	if err != nil {
		return Permission{}, err
	}
	s.refresh(ctx, false)
	return created, nil
}

// SetRolePermissions replaces the permission set of a role.
func (s *Service) SetRolePermissions(ctx context.Context, roleCode string, permissionCodes []string) error {
	if _, err := s.repo.GetRole(ctx, roleCode); err != nil {
		return err
	}
	current, err := s.repo.RolePermissions(ctx, roleCode)
	if err != nil {
		return err
	}
	existing := make(map[string]struct{}, len(current))
	for _, code := range current {
		existing[code] = struct{}{}
	}
	keep := make(map[string]struct{}, len(permissionCodes))
	for _, code := range permissionCodes {
		keep[code] = struct{}{}
		if _, ok := existing[code]; !ok {
			if err := s.repo.AttachPermission(ctx, roleCode, code); err != nil {
				return err
			}
		}
	}
	for code := range existing {
		if _, ok := keep[code]; !ok {
			if err := s.repo.DetachPermission(ctx, roleCode, code); err != nil {
				return err
			}
		}
	}
	s.refresh(ctx, true)
	return nil
}

// AssignRole assigns a role to the given user and drops the user's cached
// decisions.
func (s *Service) AssignRole(ctx context.Context, userID uuid.UUID, roleCode string) error {
	if _, err := s.repo.GetRole(ctx, roleCode); err != nil {
		return err
	}
	if err := s.repo.AssignRole(ctx, userID, roleCode); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateUser(ctx, userID); err != nil {
			s.logger.Warn("catalog: invalidate user cache", slog.Any("error", err))
		}
	}
	return nil
}

// RemoveRole removes a role from a user and drops the user's cached
// decisions.
func (s *Service) RemoveRole(ctx context.Context, userID uuid.UUID, roleCode string) error {
	if err := s.repo.RemoveRole(ctx, userID, roleCode); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateUser(ctx, userID); err != nil {
			s.logger.Warn("catalog: invalidate user cache", slog.Any("error", err))
		}
	}
	return nil
}

// UserRoles lists the role codes assigned to a user.
func (s *Service) UserRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.repo.UserRoles(ctx, userID)
}

// refresh reloads the snapshot and, when a mutation may affect users across
// tenants (role deleted, permission set changed), drops the whole decision
// cache.
func (s *Service) refresh(ctx context.Context, invalidateAll bool) {
	if s.loader != nil {
		if err := s.loader.Reload(ctx); err != nil {
			s.logger.Error("catalog: reload snapshot", slog.Any("error", err))
		}
	}
	if invalidateAll && s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.logger.Warn("catalog: invalidate cache", slog.Any("error", err))
		}
	}
	if s.broadcast != nil {
		if err := s.broadcast.BroadcastCatalogRefresh(ctx, "catalog mutation"); err != nil {
			s.logger.Warn("catalog: broadcast refresh", slog.Any("error", err))
		}
	}
}
