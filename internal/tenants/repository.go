package tenants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lattice-saas/lattice/internal/shared"
)

// RepositoryPort defines data access methods for tenants.
type RepositoryPort interface {
	List(ctx context.Context, limit, offset int) ([]Tenant, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, id uuid.UUID) (Tenant, error)
	Create(ctx context.Context, tenant Tenant) (Tenant, error)
	Update(ctx context.Context, tenant Tenant) (Tenant, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const tenantColumns = `id, slug, name, plan_id, status, created_at, updated_at`

// List returns tenants ordered by slug.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY slug LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tenants []Tenant
	for rows.Next() {
		var tenant Tenant
		if err := rows.Scan(&tenant.ID, &tenant.Slug, &tenant.Name, &tenant.PlanID, &tenant.Status, &tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

// Count returns the total number of tenants.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&total)
	return total, err
}

// Get fetches a tenant by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	var tenant Tenant
	err := r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id).
		Scan(&tenant.ID, &tenant.Slug, &tenant.Name, &tenant.PlanID, &tenant.Status, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, shared.ErrNotFound
		}
		return Tenant{}, err
	}
	return tenant, nil
}

// Create inserts a new tenant.
func (r *Repository) Create(ctx context.Context, tenant Tenant) (Tenant, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tenants (id, slug, name, plan_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		 RETURNING `+tenantColumns,
		tenant.ID, tenant.Slug, tenant.Name, tenant.PlanID, tenant.Status).
		Scan(&tenant.ID, &tenant.Slug, &tenant.Name, &tenant.PlanID, &tenant.Status, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Tenant{}, shared.ErrDuplicate
		}
		return Tenant{}, err
	}
	return tenant, nil
}

// Update updates name and plan of a tenant.
func (r *Repository) Update(ctx context.Context, tenant Tenant) (Tenant, error) {
	err := r.pool.QueryRow(ctx,
		`UPDATE tenants SET name = $2, plan_id = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+tenantColumns,
		tenant.ID, tenant.Name, tenant.PlanID).
		Scan(&tenant.ID, &tenant.Slug, &tenant.Name, &tenant.PlanID, &tenant.Status, &tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, shared.ErrNotFound
		}
		return Tenant{}, err
	}
	return tenant, nil
}

// SetStatus flips the tenant lifecycle status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tenants SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
