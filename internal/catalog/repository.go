package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lattice-saas/lattice/internal/authz"
	"github.com/lattice-saas/lattice/internal/shared"
)

// RepositoryPort defines persistence operations for the catalog.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, code string) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, code string) error

	ListPermissions(ctx context.Context) ([]Permission, error)
	CreatePermission(ctx context.Context, perm Permission) (Permission, error)

	RolePermissions(ctx context.Context, roleCode string) ([]string, error)
	AttachPermission(ctx context.Context, roleCode, permissionCode string) error
	DetachPermission(ctx context.Context, roleCode, permissionCode string) error

	AssignRole(ctx context.Context, userID uuid.UUID, roleCode string) error
	RemoveRole(ctx context.Context, userID uuid.UUID, roleCode string) error
	UserRoles(ctx context.Context, userID uuid.UUID) ([]string, error)

	LoadCatalog(ctx context.Context) ([]authz.Role, []authz.Permission, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles ordered by code.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, name, description, created_at, updated_at FROM roles ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.Code, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by code.
func (r *Repository) GetRole(ctx context.Context, code string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT code, name, description, created_at, updated_at FROM roles WHERE code = $1`, code).
		Scan(&role.Code, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (code, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 RETURNING code, name, description, created_at, updated_at`,
		role.Code, role.Name, role.Description).
		Scan(&role.Code, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return Role{}, mapPGError(err)
	}
	return role, nil
}

// UpdateRole updates name and description of an existing role.
func (r *Repository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	err := r.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = NOW()
		 WHERE code = $1
		 RETURNING code, name, description, created_at, updated_at`,
		role.Code, role.Name, role.Description).
		Scan(&role.Code, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role and its assignments.
func (r *Repository) DeleteRole(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE code = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListPermissions returns all permissions ordered by code.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, resource_type, action, scope, description FROM permissions ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.Code, &perm.ResourceType, &perm.Action, &perm.Scope, &perm.Description); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// CreatePermission inserts a new permission definition.
func (r *Repository) CreatePermission(ctx context.Context, perm Permission) (Permission, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO permissions (code, resource_type, action, scope, description)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING code, resource_type, action, scope, description`,
		perm.Code, perm.ResourceType, perm.Action, perm.Scope, perm.Description).
		Scan(&perm.Code, &perm.ResourceType, &perm.Action, &perm.Scope, &perm.Description)
	if err != nil {
		return Permission{}, mapPGError(err)
	}
	return perm, nil
}

// RolePermissions lists the permission codes attached to a role.
func (r *Repository) RolePermissions(ctx context.Context, roleCode string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission_code FROM role_permissions WHERE role_code = $1 ORDER BY permission_code`, roleCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// AttachPermission links a permission to a role.
func (r *Repository) AttachPermission(ctx context.Context, roleCode, permissionCode string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_code, permission_code) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roleCode, permissionCode)
	return err
}

// DetachPermission unlinks a permission from a role.
func (r *Repository) DetachPermission(ctx context.Context, roleCode, permissionCode string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_code = $1 AND permission_code = $2`,
		roleCode, permissionCode)
	return err
}

// AssignRole attaches a role to a user.
func (r *Repository) AssignRole(ctx context.Context, userID uuid.UUID, roleCode string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_code, created_at) VALUES ($1, $2, NOW()) ON CONFLICT DO NOTHING`,
		userID, roleCode)
	return err
}

// RemoveRole detaches a role from a user.
func (r *Repository) RemoveRole(ctx context.Context, userID uuid.UUID, roleCode string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_code = $2`, userID, roleCode)
	return err
}

// UserRoles lists the role codes assigned to a user.
func (r *Repository) UserRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_code FROM user_roles WHERE user_id = $1 ORDER BY role_code`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// LoadCatalog materializes all roles, their permission sets and every
// permission definition for the engine snapshot.
func (r *Repository) LoadCatalog(ctx context.Context) ([]authz.Role, []authz.Permission, error) {
	perms, err := r.ListPermissions(ctx)
	if err != nil {
		return nil, nil, err
	}
	enginePerms := make([]authz.Permission, 0, len(perms))
	for _, perm := range perms {
		scope, err := authz.ParseScope(perm.Scope)
		if err != nil {
			return nil, nil, err
		}
		enginePerms = append(enginePerms, authz.Permission{
			Code:         perm.Code,
			ResourceType: perm.ResourceType,
			Action:       perm.Action,
			Scope:        scope,
		})
	}

	roleRows, err := r.ListRoles(ctx)
	if err != nil {
		return nil, nil, err
	}
	byCode := make(map[string]*authz.Role, len(roleRows))
	engineRoles := make([]authz.Role, 0, len(roleRows))
	for _, role := range roleRows {
		byCode[role.Code] = &authz.Role{
			Code:        role.Code,
			Name:        role.Name,
			Permissions: make(map[string]struct{}),
		}
	}

	rows, err := r.pool.Query(ctx, `SELECT role_code, permission_code FROM role_permissions`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var roleCode, permCode string
		if err := rows.Scan(&roleCode, &permCode); err != nil {
			return nil, nil, err
		}
		if role, ok := byCode[roleCode]; ok {
			role.Permissions[permCode] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	for _, role := range byCode {
		engineRoles = append(engineRoles, *role)
	}
	return engineRoles, enginePerms, nil
}

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
