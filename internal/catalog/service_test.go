package catalog

import (
	"context"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-saas/lattice/internal/authz"
	"github.com/lattice-saas/lattice/internal/shared"
	_ "github.com/lattice-saas/lattice/testing"
)

type mockRepository struct {
	roles     map[string]Role
	perms     map[string]Permission
	rolePerms map[string][]string
	userRoles map[uuid.UUID][]string
	loads     int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		roles:     make(map[string]Role),
		perms:     make(map[string]Permission),
		rolePerms: make(map[string][]string),
		userRoles: make(map[uuid.UUID][]string),
	}
}

func (m *mockRepository) ListRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	for _, role := range m.roles {
		out = append(out, role)
	}
	return out, nil
}

func (m *mockRepository) GetRole(ctx context.Context, code string) (Role, error) {
	role, ok := m.roles[code]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (m *mockRepository) CreateRole(ctx context.Context, role Role) (Role, error) {
	if _, exists := m.roles[role.Code]; exists {
		return Role{}, shared.ErrDuplicate
	}
	m.roles[role.Code] = role
	return role, nil
}

func (m *mockRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	if _, exists := m.roles[role.Code]; !exists {
		return Role{}, shared.ErrNotFound
	}
	m.roles[role.Code] = role
	return role, nil
}

func (m *mockRepository) DeleteRole(ctx context.Context, code string) error {
	if _, exists := m.roles[code]; !exists {
		return shared.ErrNotFound
	}
	delete(m.roles, code)
	delete(m.rolePerms, code)
	return nil
}

func (m *mockRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	var out []Permission
	for _, perm := range m.perms {
		out = append(out, perm)
	}
	return out, nil
}

func (m *mockRepository) CreatePermission(ctx context.Context, perm Permission) (Permission, error) {
	if _, exists := m.perms[perm.Code]; exists {
		return Permission{}, shared.ErrDuplicate
	}
	m.perms[perm.Code] = perm
	return perm, nil
}

func (m *mockRepository) RolePermissions(ctx context.Context, roleCode string) ([]string, error) {
	return append([]string(nil), m.rolePerms[roleCode]...), nil
}

func (m *mockRepository) AttachPermission(ctx context.Context, roleCode, permissionCode string) error {
	m.rolePerms[roleCode] = append(m.rolePerms[roleCode], permissionCode)
	return nil
}

func (m *mockRepository) DetachPermission(ctx context.Context, roleCode, permissionCode string) error {
	kept := m.rolePerms[roleCode][:0]
	for _, code := range m.rolePerms[roleCode] {
		if code != permissionCode {
			kept = append(kept, code)
		}
	}
	m.rolePerms[roleCode] = kept
	return nil
}

func (m *mockRepository) AssignRole(ctx context.Context, userID uuid.UUID, roleCode string) error {
	m.userRoles[userID] = append(m.userRoles[userID], roleCode)
	return nil
}

func (m *mockRepository) RemoveRole(ctx context.Context, userID uuid.UUID, roleCode string) error {
	kept := m.userRoles[userID][:0]
	for _, code := range m.userRoles[userID] {
		if code != roleCode {
			kept = append(kept, code)
		}
	}
	m.userRoles[userID] = kept
	return nil
}

func (m *mockRepository) UserRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return append([]string(nil), m.userRoles[userID]...), nil
}

func (m *mockRepository) LoadCatalog(ctx context.Context) ([]authz.Role, []authz.Permission, error) {
	m.loads++
	var roles []authz.Role
	for code := range m.roles {
		grants := make(map[string]struct{})
		for _, permCode := range m.rolePerms[code] {
			grants[permCode] = struct{}{}
		}
		roles = append(roles, authz.Role{Code: code, Name: m.roles[code].Name, Permissions: grants})
	}
	var perms []authz.Permission
	for _, perm := range m.perms {
		scope, err := authz.ParseScope(perm.Scope)
		if err != nil {
			return nil, nil, err
		}
		perms = append(perms, authz.Permission{
			Code:         perm.Code,
			ResourceType: perm.ResourceType,
			Action:       perm.Action,
			Scope:        scope,
		})
	}
	return roles, perms, nil
}

var _ RepositoryPort = (*mockRepository)(nil)

type mockInvalidator struct {
	users []uuid.UUID
	all   int
}

func (m *mockInvalidator) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	m.users = append(m.users, userID)
	return nil
}

func (m *mockInvalidator) InvalidateAll(ctx context.Context) error {
	m.all++
	return nil
}

func newTestService(t *testing.T) (*Service, *mockRepository, *mockInvalidator, *Loader) {
	t.Helper()
	repo := newMockRepository()
	loader := NewLoader(repo)
	invalidator := &mockInvalidator{}
	service := NewService(repo, loader, invalidator, nil, nil)
	return service, repo, invalidator, loader
}

func TestCreateRoleReloadsSnapshot(t *testing.T) {
	service, repo, _, loader := newTestService(t)
	ctx := context.Background()

	role, err := service.CreateRole(ctx, " Tenant_Admin ", "Tenant Admin", "")
	require.NoError(t, err)
	assert.Equal(t, "tenant_admin", role.Code)
	assert.Equal(t, 1, repo.loads)

	catalog, err := loader.Catalog(ctx)
	require.NoError(t, err)
	_, ok := catalog.Role("tenant_admin")
	assert.True(t, ok, "reloaded snapshot should expose the new role")
}

func TestCreateRoleRejectsEmptyCode(t *testing.T) {
	service, _, _, _ := newTestService(t)
	_, err := service.CreateRole(context.Background(), "  ", "Name", "")
	require.Error(t, err)
}

func TestCreatePermissionValidatesScope(t *testing.T) {
	service, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.CreatePermission(ctx, Permission{Code: "user.view.galaxy", ResourceType: "user", Action: "view", Scope: "galaxy"})
	require.Error(t, err)

	created, err := service.CreatePermission(ctx, Permission{Code: "User.View.Tenant", ResourceType: "user", Action: "view", Scope: "tenant"})
	require.NoError(t, err)
	assert.Equal(t, "user.view.tenant", created.Code)
}

func TestSetRolePermissionsDiffsAttachDetach(t *testing.T) {
	service, repo, invalidator, _ := newTestService(t)
	ctx := context.Background()

	repo.roles["admin"] = Role{Code: "admin"}
	repo.rolePerms["admin"] = []string{"a", "b"}

	require.NoError(t, service.SetRolePermissions(ctx, "admin", []string{"b", "c"}))

	got := append([]string(nil), repo.rolePerms["admin"]...)
	sort.Strings(got)
	assert.Equal(t, []string{"b", "c"}, got)
	assert.Equal(t, 1, invalidator.all, "changing a role's grants must drop the whole cache")
}

func TestSetRolePermissionsUnknownRole(t *testing.T) {
	service, _, _, _ := newTestService(t)
	err := service.SetRolePermissions(context.Background(), "ghost", []string{"a"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignRoleInvalidatesUser(t *testing.T) {
	service, repo, invalidator, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	repo.roles["member"] = Role{Code: "member"}

	require.NoError(t, service.AssignRole(ctx, userID, "member"))
	require.Len(t, invalidator.users, 1)
	assert.Equal(t, userID, invalidator.users[0])

	roles, err := service.UserRoles(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"member"}, roles)
}

func TestAssignRoleUnknownRole(t *testing.T) {
	service, _, invalidator, _ := newTestService(t)
	err := service.AssignRole(context.Background(), uuid.New(), "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, invalidator.users)
}

func TestRemoveRoleInvalidatesUser(t *testing.T) {
	service, repo, invalidator, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	repo.userRoles[userID] = []string{"member"}

	require.NoError(t, service.RemoveRole(ctx, userID, "member"))
	assert.Len(t, invalidator.users, 1)
	assert.Empty(t, repo.userRoles[userID])
}

func TestDeleteRoleInvalidatesAll(t *testing.T) {
	service, repo, invalidator, _ := newTestService(t)
	ctx := context.Background()
	repo.roles["admin"] = Role{Code: "admin"}

	require.NoError(t, service.DeleteRole(ctx, "admin"))
	assert.Equal(t, 1, invalidator.all)
	assert.Equal(t, 1, repo.loads)
}
