// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"cantera-billing/internal/domain"
	"cantera-billing/internal/domain/model"
	"cantera-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// PurchaseEvent carries the normalized fields of a purchase-completion
// webhook into the lifecycle manager. Price stays a pointer: absence is a
// meaningful signal for plan resolution.
type PurchaseEvent struct {
	EventID        string
	EventType      string
	TransactionID  string
	ProductID      string
	BuyerEmail     string
	SubscriptionID string
	Price          *float64
	Recurrence     string
	Metadata       string
	Raw            map[string]interface{}
}

type SubscriptionUseCase interface {
	// ApplyPurchase upserts the subscription keyed by transaction id and
	// appends a history entry. Replays of the same transaction update the
	// existing row.
	ApplyPurchase(ctx context.Context, ev PurchaseEvent) (*model.Subscription, error)
	// CancelByProviderRef locates by provider subscription id, falling back
	// to transaction id. domain.ErrNotFound when neither matches.
	CancelByProviderRef(ctx context.Context, providerSubID, transactionID, eventID, eventType string) (*model.Subscription, error)
	// Reactivate locates by provider subscription id only.
	Reactivate(ctx context.Context, providerSubID, eventID, eventType string) (*model.Subscription, error)
	// RevokePurchase cancels by transaction id; a missing row is not an
	// error since refunds can arrive for purchases that never resolved.
	RevokePurchase(ctx context.Context, transactionID, eventID, eventType string) (*model.Subscription, error)
	// FinishExpired flips active rows past their expiry to expired.
	FinishExpired(ctx context.Context) (int, error)
	// TenantView returns the tenant's current subscription (nil when none)
	// and its audit trail, newest first.
	TenantView(ctx context.Context, tenantID string) (*model.Subscription, []*model.SubscriptionHistoryEntry, error)
}

type subscriptionUC struct {
	tenants repository.TenantRepository
	subs    repository.SubscriptionRepository
	history repository.SubscriptionHistoryRepository
	txm     repository.TransactionManager
	log     *zerolog.Logger
	entropy *ulid.MonotonicEntropy
}

func NewSubscriptionUseCase(
	tenants repository.TenantRepository,
	subs repository.SubscriptionRepository,
	history repository.SubscriptionHistoryRepository,
	txm repository.TransactionManager,
	logger *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{
		tenants: tenants,
		subs:    subs,
		history: history,
		txm:     txm,
		log:     logger,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (u *subscriptionUC) newHistoryID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), u.entropy).String()
}

func (u *subscriptionUC) ApplyPurchase(ctx context.Context, ev PurchaseEvent) (*model.Subscription, error) {
	if ev.TransactionID == "" || ev.BuyerEmail == "" {
		return nil, domain.ErrInvalidArgument
	}

	tenant, err := u.tenants.FindByOwnerEmail(ctx, repository.NoTX, ev.BuyerEmail)
	if err == domain.ErrNotFound {
		return nil, domain.ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}

	match, ok := model.ResolvePlan(ev.ProductID, ev.Price, ev.Metadata)
	if !ok {
		return nil, domain.ErrPlanUnresolved
	}
	period := match.Period
	if period == model.BillingPeriodUnset {
		period = declaredPeriod(ev.Recurrence)
	}

	var result *model.Subscription
	err = u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindByTransactionID(ctx, tx, ev.TransactionID)
		switch err {
		case nil:
			return u.renewExisting(ctx, tx, sub, ev, match.Code, period, &result)
		case domain.ErrNotFound:
			return u.createNew(ctx, tx, tenant, ev, match.Code, period, &result)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (u *subscriptionUC) renewExisting(ctx context.Context, tx repository.Tx, sub *model.Subscription, ev PurchaseEvent, plan model.PlanCode, period model.BillingPeriod, out **model.Subscription) error {
	oldPlan, oldStatus := sub.PlanCode, sub.Status
	sub.Renew(plan, period)
	if ev.SubscriptionID != "" {
		sub.ProviderSubscriptionID = ev.SubscriptionID
	}
	if ev.ProductID != "" {
		sub.ProviderProductID = ev.ProductID
	}
	if ev.Raw != nil {
		sub.Metadata = ev.Raw
	}
	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return err
	}
	*out = sub
	return u.appendHistory(ctx, tx, sub, &oldPlan, &oldStatus, "webhook", ev.EventID, ev.EventType, ev.Raw)
}

func (u *subscriptionUC) createNew(ctx context.Context, tx repository.Tx, tenant *model.Tenant, ev PurchaseEvent, plan model.PlanCode, period model.BillingPeriod, out **model.Subscription) error {
	sub, err := model.NewSubscription(uuid.NewString(), tenant.ID, plan, period, ev.TransactionID)
	if err != nil {
		return err
	}
	sub.ProviderSubscriptionID = ev.SubscriptionID
	sub.ProviderProductID = ev.ProductID
	sub.Metadata = ev.Raw

	// Keep at most one active row per tenant before inserting the new one.
	if n, err := u.subs.CancelActiveByTenant(ctx, tx, tenant.ID, sub.ID); err != nil {
		return err
	} else if n > 0 {
		u.log.Info().Str("tenant_id", tenant.ID).Int("count", n).Msg("retired prior active subscriptions")
	}

	if err := u.subs.Save(ctx, tx, sub); err == domain.ErrAlreadyExists {
		// A concurrent delivery for the same transaction won the insert;
		// the unique constraint on transaction_id is the arbiter. Retry as
		// an update.
		existing, ferr := u.subs.FindByTransactionID(ctx, tx, ev.TransactionID)
		if ferr != nil {
			return ferr
		}
		return u.renewExisting(ctx, tx, existing, ev, plan, period, out)
	} else if err != nil {
		return err
	}
	*out = sub
	return u.appendHistory(ctx, tx, sub, nil, nil, "webhook", ev.EventID, ev.EventType, ev.Raw)
}

func (u *subscriptionUC) CancelByProviderRef(ctx context.Context, providerSubID, transactionID, eventID, eventType string) (*model.Subscription, error) {
	var result *model.Subscription
	err := u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.findByProviderRef(ctx, tx, providerSubID, transactionID)
		if err != nil {
			return err
		}
		oldPlan, oldStatus := sub.PlanCode, sub.Status
		sub.Cancel()
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		result = sub
		return u.appendHistory(ctx, tx, sub, &oldPlan, &oldStatus, "webhook", eventID, eventType, nil)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (u *subscriptionUC) Reactivate(ctx context.Context, providerSubID, eventID, eventType string) (*model.Subscription, error) {
	if providerSubID == "" {
		return nil, domain.ErrInvalidArgument
	}
	var result *model.Subscription
	err := u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindByProviderSubscriptionID(ctx, tx, providerSubID)
		if err != nil {
			return err
		}
		oldPlan, oldStatus := sub.PlanCode, sub.Status
		sub.Reactivate()
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		result = sub
		return u.appendHistory(ctx, tx, sub, &oldPlan, &oldStatus, "webhook", eventID, eventType, nil)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (u *subscriptionUC) RevokePurchase(ctx context.Context, transactionID, eventID, eventType string) (*model.Subscription, error) {
	if transactionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	var result *model.Subscription
	err := u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.FindByTransactionID(ctx, tx, transactionID)
		if err == domain.ErrNotFound {
			// Refund/chargeback for a purchase that never became a
			// subscription; nothing to do.
			return nil
		}
		if err != nil {
			return err
		}
		oldPlan, oldStatus := sub.PlanCode, sub.Status
		sub.Cancel()
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		result = sub
		return u.appendHistory(ctx, tx, sub, &oldPlan, &oldStatus, "webhook", eventID, eventType, nil)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (u *subscriptionUC) FinishExpired(ctx context.Context) (int, error) {
	finished := 0
	err := u.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		expired, err := u.subs.FindExpired(ctx, tx, 100)
		if err != nil {
			return err
		}
		for _, sub := range expired {
			oldPlan, oldStatus := sub.PlanCode, sub.Status
			sub.Expire()
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			if err := u.appendHistory(ctx, tx, sub, &oldPlan, &oldStatus, "expired", "", "", nil); err != nil {
				return err
			}
			finished++
		}
		return nil
	})
	return finished, err
}

func (u *subscriptionUC) TenantView(ctx context.Context, tenantID string) (*model.Subscription, []*model.SubscriptionHistoryEntry, error) {
	if tenantID == "" {
		return nil, nil, domain.ErrInvalidArgument
	}
	sub, err := u.subs.FindActiveByTenant(ctx, repository.NoTX, tenantID)
	if err != nil && err != domain.ErrNotFound {
		return nil, nil, err
	}
	entries, err := u.history.ListByTenant(ctx, repository.NoTX, tenantID, 50)
	if err != nil {
		return nil, nil, err
	}
	return sub, entries, nil
}

func (u *subscriptionUC) findByProviderRef(ctx context.Context, tx repository.Tx, providerSubID, transactionID string) (*model.Subscription, error) {
	if providerSubID != "" {
		sub, err := u.subs.FindByProviderSubscriptionID(ctx, tx, providerSubID)
		if err == nil {
			return sub, nil
		}
		if err != domain.ErrNotFound {
			return nil, err
		}
	}
	if transactionID != "" {
		return u.subs.FindByTransactionID(ctx, tx, transactionID)
	}
	return nil, domain.ErrNotFound
}

func (u *subscriptionUC) appendHistory(ctx context.Context, tx repository.Tx, sub *model.Subscription, oldPlan *model.PlanCode, oldStatus *model.SubscriptionStatus, reason, eventID, eventType string, meta map[string]interface{}) error {
	newPlan, newStatus := sub.PlanCode, sub.Status
	return u.history.Append(ctx, tx, &model.SubscriptionHistoryEntry{
		ID:             u.newHistoryID(),
		TenantID:       sub.TenantID,
		SubscriptionID: sub.ID,
		OldPlan:        oldPlan,
		NewPlan:        &newPlan,
		OldStatus:      oldStatus,
		NewStatus:      &newStatus,
		Reason:         reason,
		EventID:        eventID,
		EventType:      eventType,
		Metadata:       meta,
		CreatedAt:      time.Now(),
	})
}

func declaredPeriod(recurrence string) model.BillingPeriod {
	switch recurrence {
	case "yearly", "anual", "YEARLY":
		return model.BillingPeriodYearly
	default:
		return model.BillingPeriodMonthly
	}
}
