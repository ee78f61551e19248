package repository

import (
	"context"

	"cantera-billing/internal/domain/model"
)

// SubscriptionHistoryRepository is append-only; there is no update or delete.
type SubscriptionHistoryRepository interface {
	Append(ctx context.Context, tx Tx, e *model.SubscriptionHistoryEntry) error
	ListByTenant(ctx context.Context, tx Tx, tenantID string, limit int) ([]*model.SubscriptionHistoryEntry, error)
}
