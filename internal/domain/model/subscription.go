package model

import (
	"time"

	"cantera-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive         SubscriptionStatus = "active"
	SubscriptionStatusCancelled      SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired        SubscriptionStatus = "expired"
	SubscriptionStatusTrial          SubscriptionStatus = "trial"
	SubscriptionStatusPendingPayment SubscriptionStatus = "pending_payment"
)

// Subscription is a tenant's billing relationship with the platform.
// TransactionID is the provider's natural key: replayed webhook deliveries
// for the same transaction update the existing row instead of duplicating it.
type Subscription struct {
	ID                     string // UUID
	TenantID               string
	PlanCode               PlanCode
	Status                 SubscriptionStatus
	BillingPeriod          BillingPeriod
	TransactionID          string
	ProviderSubscriptionID string
	ProviderProductID      string
	StartsAt               time.Time
	ExpiresAt              *time.Time
	CancelledAt            *time.Time
	NextBillingAt          *time.Time
	Metadata               map[string]interface{}
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// NewSubscription builds an active subscription starting now. Expiry is one
// calendar month or year out depending on the billing period; the next
// billing date coincides with expiry.
func NewSubscription(id, tenantID string, plan PlanCode, period BillingPeriod, transactionID string) (*Subscription, error) {
	if id == "" || tenantID == "" || transactionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if _, ok := PlanByCode(plan); !ok {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	expires := periodEnd(now, period)
	return &Subscription{
		ID:            id,
		TenantID:      tenantID,
		PlanCode:      plan,
		Status:        SubscriptionStatusActive,
		BillingPeriod: period,
		TransactionID: transactionID,
		StartsAt:      now,
		ExpiresAt:     &expires,
		NextBillingAt: &expires,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func periodEnd(from time.Time, period BillingPeriod) time.Time {
	if period == BillingPeriodYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// Renew re-activates the subscription in place for a fresh billing window,
// keeping the row keyed by its original transaction id.
func (s *Subscription) Renew(plan PlanCode, period BillingPeriod) {
	now := time.Now()
	expires := periodEnd(now, period)
	s.PlanCode = plan
	s.BillingPeriod = period
	s.Status = SubscriptionStatusActive
	s.StartsAt = now
	s.ExpiresAt = &expires
	s.NextBillingAt = &expires
	s.CancelledAt = nil
	s.UpdatedAt = now
}

// Cancel retires the subscription without deleting it; history rows keep
// pointing at it.
func (s *Subscription) Cancel() {
	now := time.Now()
	s.Status = SubscriptionStatusCancelled
	s.CancelledAt = &now
	s.UpdatedAt = now
}

// Reactivate undoes a cancellation.
func (s *Subscription) Reactivate() {
	s.Status = SubscriptionStatusActive
	s.CancelledAt = nil
	s.UpdatedAt = time.Now()
}

// Expire marks a subscription whose paid window has lapsed.
func (s *Subscription) Expire() {
	s.Status = SubscriptionStatusExpired
	s.UpdatedAt = time.Now()
}

func (s *Subscription) IsZero() bool { return s == nil || s.ID == "" }
