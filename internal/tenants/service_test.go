package tenants

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-saas/lattice/internal/shared"
	_ "github.com/lattice-saas/lattice/testing"
)

type mockRepository struct {
	tenants map[uuid.UUID]Tenant
	slugs   map[string]struct{}
}

func newMockRepository() *mockRepository {
	return &mockRepository{tenants: make(map[uuid.UUID]Tenant), slugs: make(map[string]struct{})}
}

func (m *mockRepository) List(ctx context.Context, limit, offset int) ([]Tenant, error) {
	var out []Tenant
	for _, tenant := range m.tenants {
		out = append(out, tenant)
	}
	return out, nil
}

func (m *mockRepository) Count(ctx context.Context) (int, error) {
	return len(m.tenants), nil
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	tenant, ok := m.tenants[id]
	if !ok {
		return Tenant{}, shared.ErrNotFound
	}
	return tenant, nil
}

func (m *mockRepository) Create(ctx context.Context, tenant Tenant) (Tenant, error) {
	if _, exists := m.slugs[tenant.Slug]; exists {
		return Tenant{}, shared.ErrDuplicate
	}
	m.tenants[tenant.ID] = tenant
	m.slugs[tenant.Slug] = struct{}{}
	return tenant, nil
}

func (m *mockRepository) Update(ctx context.Context, tenant Tenant) (Tenant, error) {
	stored, ok := m.tenants[tenant.ID]
	if !ok {
		return Tenant{}, shared.ErrNotFound
	}
	stored.Name = tenant.Name
	stored.PlanID = tenant.PlanID
	m.tenants[tenant.ID] = stored
	return stored, nil
}

func (m *mockRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	stored, ok := m.tenants[id]
	if !ok {
		return shared.ErrNotFound
	}
	stored.Status = status
	m.tenants[id] = stored
	return nil
}

var _ RepositoryPort = (*mockRepository)(nil)

type mockInvalidator struct {
	tenants []uuid.UUID
}

func (m *mockInvalidator) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	m.tenants = append(m.tenants, tenantID)
	return nil
}

func TestCreateValidatesSlug(t *testing.T) {
	service := NewService(newMockRepository(), nil, nil)
	ctx := context.Background()

	_, err := service.Create(ctx, "Bad Slug!", "Acme", nil)
	require.Error(t, err)

	tenant, err := service.Create(ctx, " ACME-corp ", "Acme Corp", nil)
	require.NoError(t, err)
	assert.Equal(t, "acme-corp", tenant.Slug)
	assert.Equal(t, StatusActive, tenant.Status)
}

func TestCreateRejectsEmptyName(t *testing.T) {
	service := NewService(newMockRepository(), nil, nil)
	_, err := service.Create(context.Background(), "acme", "   ", nil)
	require.Error(t, err)
}

func TestCreateDuplicateSlug(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := service.Create(ctx, "acme", "Acme", nil)
	require.NoError(t, err)
	_, err = service.Create(ctx, "acme", "Acme Again", nil)
	assert.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestSuspendInvalidatesTenantDecisions(t *testing.T) {
	repo := newMockRepository()
	invalidator := &mockInvalidator{}
	service := NewService(repo, invalidator, nil)
	ctx := context.Background()

	tenant, err := service.Create(ctx, "acme", "Acme", nil)
	require.NoError(t, err)

	require.NoError(t, service.Suspend(ctx, tenant.ID))
	stored, err := service.Get(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, stored.Status)
	require.Len(t, invalidator.tenants, 1)
	assert.Equal(t, tenant.ID, invalidator.tenants[0])

	require.NoError(t, service.Resume(ctx, tenant.ID))
	stored, err = service.Get(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, stored.Status)
	assert.Len(t, invalidator.tenants, 2)
}

func TestSuspendUnknownTenant(t *testing.T) {
	invalidator := &mockInvalidator{}
	service := NewService(newMockRepository(), invalidator, nil)

	err := service.Suspend(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, invalidator.tenants, "failed suspension must not invalidate")
}
