package plans

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
	plans map[uuid.UUID]Plan
}

func newMockRepository() *mockRepository {
	return &mockRepository{plans: make(map[uuid.UUID]Plan)}
}

func (m *mockRepository) List(ctx context.Context) ([]Plan, error) {
	var out []Plan
	for _, plan := range m.plans {
		out = append(out, plan)
	}
	return out, nil
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (Plan, error) {
	plan, ok := m.plans[id]
	if !ok {
		return Plan{}, shared.ErrNotFound
	}
	return plan, nil
}

func (m *mockRepository) Create(ctx context.Context, plan Plan) (Plan, error) {
	for _, existing := range m.plans {
		if existing.Code == plan.Code {
			return Plan{}, shared.ErrDuplicate
		}
	}
	m.plans[plan.ID] = plan
	return plan, nil
}

func (m *mockRepository) Update(ctx context.Context, plan Plan) (Plan, error) {
	if _, ok := m.plans[plan.ID]; !ok {
		return Plan{}, shared.ErrNotFound
	}
	m.plans[plan.ID] = plan
	return plan, nil
}

func (m *mockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.plans[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.plans, id)
	return nil
}

var _ RepositoryPort = (*mockRepository)(nil)

func TestCreateNormalizesCode(t *testing.T) {
	service := NewService(newMockRepository())

	plan, err := service.Create(context.Background(), Plan{Code: "  Team ", Name: "Team", MaxUsers: 25})
	require.NoError(t, err)
	assert.Equal(t, "team", plan.Code)
	assert.NotEqual(t, uuid.Nil, plan.ID)
	assert.NotNil(t, plan.Features)
}

func TestCreateRejectsInvalidPlans(t *testing.T) {
	service := NewService(newMockRepository())
	ctx := context.Background()

	_, err := service.Create(ctx, Plan{Code: "  ", Name: "No code"})
	assert.Error(t, err)

	_, err = service.Create(ctx, Plan{Code: "starter", Name: "Starter", MaxUsers: -1})
	assert.Error(t, err)
}

func TestCreateDuplicateCode(t *testing.T) {
	service := NewService(newMockRepository())
	ctx := context.Background()

	_, err := service.Create(ctx, Plan{Code: "starter", Name: "Starter"})
	require.NoError(t, err)
	_, err = service.Create(ctx, Plan{Code: "STARTER", Name: "Starter again"})
	assert.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestUpdatePreservesFeatures(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	plan, err := service.Create(ctx, Plan{Code: "team", Name: "Team", Features: map[string]bool{"sso": true}})
	require.NoError(t, err)

	plan.Name = "Team v2"
	plan.Features = nil
	updated, err := service.Update(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, "Team v2", updated.Name)
	assert.NotNil(t, updated.Features)
}

func TestDeleteUnknownPlan(t *testing.T) {
	service := NewService(newMockRepository())
	err := service.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
