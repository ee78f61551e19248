package repository

import (
	"context"

	"cantera-billing/internal/domain/model"
)

// SubscriptionRepository is the port for tenant subscriptions.
type SubscriptionRepository interface {
	// Save inserts or updates by row id.
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByTransactionID(ctx context.Context, tx Tx, transactionID string) (*model.Subscription, error)
	FindByProviderSubscriptionID(ctx context.Context, tx Tx, providerSubID string) (*model.Subscription, error)
	FindActiveByTenant(ctx context.Context, tx Tx, tenantID string) (*model.Subscription, error)
	// FindExpired returns active rows whose expiry has passed.
	FindExpired(ctx context.Context, tx Tx, limit int) ([]*model.Subscription, error)
	// CancelActiveByTenant retires any other active rows for the tenant,
	// keeping at most one active subscription per tenant.
	CancelActiveByTenant(ctx context.Context, tx Tx, tenantID, exceptID string) (int, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
