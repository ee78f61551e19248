package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"cantera-billing/internal/domain"
	"cantera-billing/internal/domain/model"
	"cantera-billing/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `
id, tenant_id, plan_code, status, billing_period, transaction_id,
provider_subscription_id, provider_product_id, starts_at, expires_at,
cancelled_at, next_billing_at, metadata, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, tenant_id, plan_code, status, billing_period, transaction_id,
  provider_subscription_id, provider_product_id, starts_at, expires_at,
  cancelled_at, next_billing_at, metadata, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
  plan_code=$3, status=$4, billing_period=$5,
  provider_subscription_id=$7, provider_product_id=$8, starts_at=$9,
  expires_at=$10, cancelled_at=$11, next_billing_at=$12, metadata=$13,
  updated_at=$15;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.TenantID, s.PlanCode, s.Status, s.BillingPeriod, s.TransactionID,
		s.ProviderSubscriptionID, s.ProviderProductID, s.StartsAt, s.ExpiresAt,
		s.CancelledAt, s.NextBillingAt, s.Metadata, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			// The unique index on transaction_id is the final arbiter for
			// concurrent first deliveries of the same transaction.
			if isUniqueViolation(err) {
				return domain.ErrAlreadyExists
			}
			return fmt.Errorf("save subscription: %w", err)
		}
	}
	return nil
}

func (r *subscriptionRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE transaction_id=$1
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, transactionID)
}

func (r *subscriptionRepo) FindByProviderSubscriptionID(ctx context.Context, tx repository.Tx, providerSubID string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE provider_subscription_id=$1
 ORDER BY created_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, providerSubID)
}

func (r *subscriptionRepo) FindActiveByTenant(ctx context.Context, tx repository.Tx, tenantID string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE tenant_id=$1 AND status='active'
 ORDER BY created_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, tenantID)
}

func (r *subscriptionRepo) FindExpired(ctx context.Context, tx repository.Tx, limit int) ([]*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE status='active' AND expires_at IS NOT NULL AND expires_at < now()
 ORDER BY expires_at ASC
 LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("find expired: %w", err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *subscriptionRepo) CancelActiveByTenant(ctx context.Context, tx repository.Tx, tenantID, exceptID string) (int, error) {
	const q = `
UPDATE subscriptions
   SET status='cancelled', cancelled_at=now(), updated_at=now()
 WHERE tenant_id=$1 AND status='active' AND id <> $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, tenantID, exceptID)
	if err != nil {
		return 0, fmt.Errorf("cancel active by tenant: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status, count(*) FROM subscriptions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status model.SubscriptionStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Subscription, error) {
	row, err := queryRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscription(row)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query subscription: %w", err)
	}
	return s, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(
		&s.ID, &s.TenantID, &s.PlanCode, &s.Status, &s.BillingPeriod, &s.TransactionID,
		&s.ProviderSubscriptionID, &s.ProviderProductID, &s.StartsAt, &s.ExpiresAt,
		&s.CancelledAt, &s.NextBillingAt, &s.Metadata, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
