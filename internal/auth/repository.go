package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lattice-saas/lattice/internal/authz"
	"github.com/lattice-saas/lattice/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	Identity(ctx context.Context, userID uuid.UUID) (authz.Identity, error)
	CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, tenant_id, account_id, is_active, created_at, updated_at
		 FROM users WHERE email = $1`, email).
		Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.TenantID, &user.AccountID,
			&user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Identity resolves the stored identity for the engine's context extractor.
func (r *PGRepository) Identity(ctx context.Context, userID uuid.UUID) (authz.Identity, error) {
	identity := authz.Identity{UserID: userID}
	err := r.pool.QueryRow(ctx,
		`SELECT tenant_id, account_id, is_active FROM users WHERE id = $1`, userID).
		Scan(&identity.TenantID, &identity.AccountID, &identity.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Identity{}, shared.ErrNotFound
		}
		return authz.Identity{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT role_code FROM user_roles WHERE user_id = $1 ORDER BY role_code`, userID)
	if err != nil {
		return authz.Identity{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return authz.Identity{}, err
		}
		identity.RoleCodes = append(identity.RoleCodes, code)
	}
	if err := rows.Err(); err != nil {
		return authz.Identity{}, err
	}
	return identity, nil
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at, ip, ua)
		 VALUES ($1, $2, NOW(), $3, NULLIF($4, ''), NULLIF($5, ''))`,
		id, userID, expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
var _ authz.IdentityStore = (*PGRepository)(nil)
