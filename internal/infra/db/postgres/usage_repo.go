package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"cantera-billing/internal/domain/ports/repository"
)

var _ repository.UsageRepository = (*usageRepo)(nil)

// usageRepo counts rows in the main application's tables. Counters are
// derived per check; nothing here is cached or persisted.
type usageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) *usageRepo {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) CountQuarries(ctx context.Context, tx repository.Tx, tenantID string) (int, error) {
	const q = `SELECT count(*) FROM quarries WHERE organization_id=$1;`
	return r.count(ctx, tx, q, tenantID)
}

func (r *usageRepo) CountUsers(ctx context.Context, tx repository.Tx, tenantID string) (int, error) {
	const q = `SELECT count(*) FROM profiles WHERE organization_id=$1;`
	return r.count(ctx, tx, q, tenantID)
}

func (r *usageRepo) CountCustomers(ctx context.Context, tx repository.Tx, tenantID string) (int, error) {
	const q = `SELECT count(*) FROM customers WHERE organization_id=$1;`
	return r.count(ctx, tx, q, tenantID)
}

func (r *usageRepo) CountProductions(ctx context.Context, tx repository.Tx, tenantID string, from, to time.Time) (int, error) {
	const q = `
SELECT count(*)
  FROM productions pr
  JOIN quarries q ON q.id = pr.quarry_id
 WHERE q.organization_id=$1 AND pr.date >= $2 AND pr.date < $3;`
	return r.count(ctx, tx, q, tenantID, from, to)
}

func (r *usageRepo) CountSales(ctx context.Context, tx repository.Tx, tenantID string, from, to time.Time) (int, error) {
	const q = `
SELECT count(*)
  FROM sales s
  JOIN quarries q ON q.id = s.quarry_id
 WHERE q.organization_id=$1 AND s.date >= $2 AND s.date < $3;`
	return r.count(ctx, tx, q, tenantID, from, to)
}

func (r *usageRepo) count(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (int, error) {
	row, err := queryRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	return n, nil
}
