package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines persistence for audit entries.
type RepositoryPort interface {
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter, limit, offset int) ([]Entry, error)
	Count(ctx context.Context, filter Filter) (int, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repository stores audit entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes one entry.
func (r *Repository) Insert(ctx context.Context, entry Entry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO permission_audit
		   (id, occurred_at, user_id, tenant_id, action, resource_type, resource_id, allowed, scope_used, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.OccurredAt, entry.UserID, entry.TenantID,
		entry.Action, entry.ResourceType, entry.ResourceID,
		entry.Allowed, entry.ScopeUsed, entry.Reason)
	return err
}

// List returns the newest entries matching the filter.
func (r *Repository) List(ctx context.Context, filter Filter, limit, offset int) ([]Entry, error) {
	where, args := buildFilter(filter)
	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT id, occurred_at, user_id, tenant_id, action, resource_type, resource_id, allowed, scope_used, reason
		 FROM permission_audit %s
		 ORDER BY occurred_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.OccurredAt, &entry.UserID, &entry.TenantID,
			&entry.Action, &entry.ResourceType, &entry.ResourceID,
			&entry.Allowed, &entry.ScopeUsed, &entry.Reason); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// Count returns the number of entries matching the filter.
func (r *Repository) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := buildFilter(filter)
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM permission_audit `+where, args...).Scan(&total)
	return total, err
}

// DeleteBefore removes entries older than the cutoff and reports how many.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permission_audit WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func buildFilter(filter Filter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.TenantID != nil {
		add("tenant_id = $%d", *filter.TenantID)
	}
	if filter.ResourceType != "" {
		add("resource_type = $%d", filter.ResourceType)
	}
	if filter.Allowed != nil {
		add("allowed = $%d", *filter.Allowed)
	}
	if !filter.Since.IsZero() {
		add("occurred_at >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("occurred_at < $%d", filter.Until)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

var _ RepositoryPort = (*Repository)(nil)
