// File: internal/usecase/entitlement_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cantera-billing/internal/domain"
	"cantera-billing/internal/domain/model"
	"cantera-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

type EntitlementUseCase interface {
	// Check decides whether the tenant's plan permits one more instance of
	// the action. It never returns an error: every failure collapses into a
	// deny with a reason the UI can render.
	Check(ctx context.Context, tenantID string, action model.ActionKind) model.EntitlementResult
	// Summary reports used/limit per action for the tenant's current plan.
	Summary(ctx context.Context, tenantID string) ([]model.ActionUsage, error)
	// CurrentPlan resolves the tenant's plan, defaulting to free.
	CurrentPlan(ctx context.Context, tenantID string) (model.Plan, error)
}

type entitlementUC struct {
	tenants repository.TenantRepository
	subs    repository.SubscriptionRepository
	usage   repository.UsageRepository
	cache   repository.UsageCache // optional
	log     *zerolog.Logger
}

func NewEntitlementUseCase(
	tenants repository.TenantRepository,
	subs repository.SubscriptionRepository,
	usage repository.UsageRepository,
	cache repository.UsageCache,
	logger *zerolog.Logger,
) *entitlementUC {
	return &entitlementUC{tenants: tenants, subs: subs, usage: usage, cache: cache, log: logger}
}

func deny(reason string) model.EntitlementResult {
	return model.EntitlementResult{Allowed: false, Reason: reason}
}

func allow() model.EntitlementResult {
	return model.EntitlementResult{Allowed: true}
}

func (u *entitlementUC) Check(ctx context.Context, tenantID string, action model.ActionKind) model.EntitlementResult {
	if tenantID == "" {
		return deny("No se encontró una organización para el usuario")
	}
	tenant, err := u.tenants.FindByID(ctx, repository.NoTX, tenantID)
	if err != nil || tenant.IsZero() {
		return deny("No se encontró una organización para el usuario")
	}

	plan, err := u.CurrentPlan(ctx, tenantID)
	if err != nil {
		u.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("plan lookup failed, denying")
		return deny("No se pudo verificar tu plan, intenta de nuevo")
	}

	// Export actions are plain capabilities.
	switch action {
	case model.ActionExportPDF:
		if plan.Limits.ExportPDF {
			return allow()
		}
		return deny(fmt.Sprintf("La exportación a PDF no está incluida en el plan %s", plan.Name))
	case model.ActionExportExcel:
		if plan.Limits.ExportExcel {
			return allow()
		}
		return deny(fmt.Sprintf("La exportación a Excel no está incluida en el plan %s", plan.Name))
	}

	limit := limitFor(plan, action)
	if limit == model.Unlimited {
		return allow()
	}

	used, err := u.countUsage(ctx, tenantID, action)
	if err != nil {
		u.log.Warn().Err(err).Str("tenant_id", tenantID).Str("action", string(action)).Msg("usage count failed, denying")
		return deny("No se pudo verificar el uso actual, intenta de nuevo")
	}
	if used < limit {
		return allow()
	}
	return deny(fmt.Sprintf("Límite de %d alcanzado para el plan %s", limit, plan.Name))
}

func (u *entitlementUC) CurrentPlan(ctx context.Context, tenantID string) (model.Plan, error) {
	sub, err := u.subs.FindActiveByTenant(ctx, repository.NoTX, tenantID)
	switch {
	case err == domain.ErrNotFound:
		return model.DefaultPlan(), nil
	case err != nil:
		return model.Plan{}, err
	}
	if plan, ok := model.PlanByCode(sub.PlanCode); ok {
		return plan, nil
	}
	// Unknown code on an old row; treat as free rather than failing the check.
	return model.DefaultPlan(), nil
}

func (u *entitlementUC) Summary(ctx context.Context, tenantID string) ([]model.ActionUsage, error) {
	plan, err := u.CurrentPlan(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	actions := []model.ActionKind{
		model.ActionCreateQuarry,
		model.ActionAddUser,
		model.ActionRegisterProduction,
		model.ActionRegisterSale,
		model.ActionAddCustomer,
	}
	out := make([]model.ActionUsage, 0, len(actions))
	for _, a := range actions {
		limit := limitFor(plan, a)
		used, err := u.countUsage(ctx, tenantID, a)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ActionUsage{
			Action:    a,
			Used:      used,
			Limit:     limit,
			Unlimited: limit == model.Unlimited,
		})
	}
	return out, nil
}

func limitFor(plan model.Plan, action model.ActionKind) int {
	switch action {
	case model.ActionCreateQuarry:
		return plan.Limits.Quarries
	case model.ActionAddUser:
		return plan.Limits.Users
	case model.ActionRegisterProduction:
		return plan.Limits.ProductionsPerMonth
	case model.ActionRegisterSale:
		return plan.Limits.SalesPerMonth
	case model.ActionAddCustomer:
		return plan.Limits.Customers
	}
	return model.Unlimited
}

func (u *entitlementUC) countUsage(ctx context.Context, tenantID string, action model.ActionKind) (int, error) {
	if u.cache != nil {
		if n, ok := u.cache.Get(ctx, tenantID, action); ok {
			return n, nil
		}
	}
	var (
		n   int
		err error
	)
	switch action {
	case model.ActionCreateQuarry:
		n, err = u.usage.CountQuarries(ctx, repository.NoTX, tenantID)
	case model.ActionAddUser:
		n, err = u.usage.CountUsers(ctx, repository.NoTX, tenantID)
	case model.ActionAddCustomer:
		n, err = u.usage.CountCustomers(ctx, repository.NoTX, tenantID)
	case model.ActionRegisterProduction:
		from, to := monthWindow(time.Now())
		n, err = u.usage.CountProductions(ctx, repository.NoTX, tenantID, from, to)
	case model.ActionRegisterSale:
		from, to := monthWindow(time.Now())
		n, err = u.usage.CountSales(ctx, repository.NoTX, tenantID, from, to)
	default:
		return 0, domain.ErrInvalidArgument
	}
	if err != nil {
		return 0, err
	}
	if u.cache != nil {
		u.cache.Set(ctx, tenantID, action, n)
	}
	return n, nil
}

// monthWindow returns [first day of now's month, first day of next month)
// in the server's local calendar. Tenant business timezones are not
// corrected for.
func monthWindow(now time.Time) (time.Time, time.Time) {
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return from, from.AddDate(0, 1, 0)
}
