package repository

import (
	"context"
	"time"

	"cantera-billing/internal/domain/model"
)

// UsageRepository derives usage counters on demand from the shared store.
// Counters are never persisted; the entitlement engine re-derives them for
// every check instead of trusting caller-supplied counts.
type UsageRepository interface {
	CountQuarries(ctx context.Context, tx Tx, tenantID string) (int, error)
	CountUsers(ctx context.Context, tx Tx, tenantID string) (int, error)
	CountCustomers(ctx context.Context, tx Tx, tenantID string) (int, error)
	// CountProductions and CountSales are scoped to the tenant's quarries and
	// the [from, to) window.
	CountProductions(ctx context.Context, tx Tx, tenantID string, from, to time.Time) (int, error)
	CountSales(ctx context.Context, tx Tx, tenantID string, from, to time.Time) (int, error)
}

// UsageCache is an optional short-TTL cache in front of UsageRepository.
// Misses and errors fall through to the store.
type UsageCache interface {
	Get(ctx context.Context, tenantID string, action model.ActionKind) (int, bool)
	Set(ctx context.Context, tenantID string, action model.ActionKind, count int)
}
