package repository

import (
	"context"

	"cantera-billing/internal/domain/model"
)

// TenantRepository reads tenant rows from the shared store. This service
// never writes them.
type TenantRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Tenant, error)
	FindByOwnerEmail(ctx context.Context, tx Tx, email string) (*model.Tenant, error)
}
