package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"cantera-billing/internal/domain"
	"cantera-billing/internal/domain/model"
	"cantera-billing/internal/domain/ports/repository"
)

var _ repository.TenantRepository = (*tenantRepo)(nil)

// tenantRepo reads organization rows owned by the main application. The
// owner email join goes through profiles since the buyer email on webhook
// events is the account email, not an organization attribute.
type tenantRepo struct {
	pool *pgxpool.Pool
}

func NewTenantRepo(pool *pgxpool.Pool) *tenantRepo {
	return &tenantRepo{pool: pool}
}

func (r *tenantRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tenant, error) {
	const q = `
SELECT o.id, o.name, coalesce(p.email, ''), o.created_at
  FROM organizations o
  LEFT JOIN profiles p ON p.id = o.owner_id
 WHERE o.id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *tenantRepo) FindByOwnerEmail(ctx context.Context, tx repository.Tx, email string) (*model.Tenant, error) {
	const q = `
SELECT o.id, o.name, p.email, o.created_at
  FROM organizations o
  JOIN profiles p ON p.id = o.owner_id
 WHERE lower(p.email)=$1
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, strings.ToLower(email))
}

func (r *tenantRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Tenant, error) {
	row, err := queryRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	var t model.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.OwnerEmail, &t.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query tenant: %w", err)
	}
	return &t, nil
}
