package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"cantera-billing/internal/domain/model"
	"cantera-billing/internal/domain/ports/repository"
)

var _ repository.SubscriptionHistoryRepository = (*historyRepo)(nil)

type historyRepo struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) *historyRepo {
	return &historyRepo{pool: pool}
}

func (r *historyRepo) Append(ctx context.Context, tx repository.Tx, e *model.SubscriptionHistoryEntry) error {
	const q = `
INSERT INTO subscription_history (
  id, tenant_id, subscription_id, old_plan, new_plan, old_status, new_status,
  reason, event_id, event_type, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`
	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.TenantID, e.SubscriptionID, e.OldPlan, e.NewPlan, e.OldStatus,
		e.NewStatus, e.Reason, e.EventID, e.EventType, e.Metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (r *historyRepo) ListByTenant(ctx context.Context, tx repository.Tx, tenantID string, limit int) ([]*model.SubscriptionHistoryEntry, error) {
	const q = `
SELECT id, tenant_id, subscription_id, old_plan, new_plan, old_status, new_status,
       reason, event_id, event_type, metadata, created_at
  FROM subscription_history
 WHERE tenant_id=$1
 ORDER BY id DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []*model.SubscriptionHistoryEntry
	for rows.Next() {
		var e model.SubscriptionHistoryEntry
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.SubscriptionID, &e.OldPlan, &e.NewPlan,
			&e.OldStatus, &e.NewStatus, &e.Reason, &e.EventID, &e.EventType,
			&e.Metadata, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
