package plans

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lattice-saas/lattice/internal/shared"
)

// RepositoryPort defines data access methods for plans.
type RepositoryPort interface {
	List(ctx context.Context) ([]Plan, error)
	Get(ctx context.Context, id uuid.UUID) (Plan, error)
	Create(ctx context.Context, plan Plan) (Plan, error)
	Update(ctx context.Context, plan Plan) (Plan, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository provides PostgreSQL backed persistence. Features are stored
// as a JSONB column.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanPlan(row pgx.Row) (Plan, error) {
	var plan Plan
	var features []byte
	if err := row.Scan(&plan.ID, &plan.Code, &plan.Name, &plan.MaxUsers, &plan.MaxAccounts, &features, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
		return Plan{}, err
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &plan.Features); err != nil {
			return Plan{}, err
		}
	}
	return plan, nil
}

// List returns all plans ordered by code.
func (r *Repository) List(ctx context.Context) ([]Plan, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, name, max_users, max_accounts, features, created_at, updated_at FROM plans ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var plans []Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// Get fetches a plan by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Plan, error) {
	plan, err := scanPlan(r.pool.QueryRow(ctx,
		`SELECT id, code, name, max_users, max_accounts, features, created_at, updated_at FROM plans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Plan{}, shared.ErrNotFound
		}
		return Plan{}, err
	}
	return plan, nil
}

// Create inserts a new plan.
func (r *Repository) Create(ctx context.Context, plan Plan) (Plan, error) {
	features, err := json.Marshal(plan.Features)
	if err != nil {
		return Plan{}, err
	}
	created, err := scanPlan(r.pool.QueryRow(ctx,
		`INSERT INTO plans (id, code, name, max_users, max_accounts, features, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 RETURNING id, code, name, max_users, max_accounts, features, created_at, updated_at`,
		plan.ID, plan.Code, plan.Name, plan.MaxUsers, plan.MaxAccounts, features))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Plan{}, shared.ErrDuplicate
		}
		return Plan{}, err
	}
	return created, nil
}

// Update updates a plan's name and limits.
func (r *Repository) Update(ctx context.Context, plan Plan) (Plan, error) {
	features, err := json.Marshal(plan.Features)
	if err != nil {
		return Plan{}, err
	}
	updated, err := scanPlan(r.pool.QueryRow(ctx,
		`UPDATE plans SET name = $2, max_users = $3, max_accounts = $4, features = $5, updated_at = NOW()
		 WHERE id = $1
		 RETURNING id, code, name, max_users, max_accounts, features, created_at, updated_at`,
		plan.ID, plan.Name, plan.MaxUsers, plan.MaxAccounts, features))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Plan{}, shared.ErrNotFound
		}
		return Plan{}, err
	}
	return updated, nil
}

// Delete removes a plan.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
