package web

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cantera-billing/internal/domain"
	"cantera-billing/internal/domain/model"
	"cantera-billing/internal/usecase"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// stubSubscriptionUC records the last call and plays back canned results.
type stubSubscriptionUC struct {
	lastPurchase *usecase.PurchaseEvent
	lastCancel   [2]string // providerSubID, transactionID

	sub     *model.Subscription
	entries []*model.SubscriptionHistoryEntry
	err     error
}

var _ usecase.SubscriptionUseCase = (*stubSubscriptionUC)(nil)

func (s *stubSubscriptionUC) ApplyPurchase(ctx context.Context, ev usecase.PurchaseEvent) (*model.Subscription, error) {
	s.lastPurchase = &ev
	return s.sub, s.err
}

func (s *stubSubscriptionUC) CancelByProviderRef(ctx context.Context, providerSubID, transactionID, eventID, eventType string) (*model.Subscription, error) {
	s.lastCancel = [2]string{providerSubID, transactionID}
	return s.sub, s.err
}

func (s *stubSubscriptionUC) Reactivate(ctx context.Context, providerSubID, eventID, eventType string) (*model.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubscriptionUC) RevokePurchase(ctx context.Context, transactionID, eventID, eventType string) (*model.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubscriptionUC) FinishExpired(ctx context.Context) (int, error) { return 0, s.err }

func (s *stubSubscriptionUC) TenantView(ctx context.Context, tenantID string) (*model.Subscription, []*model.SubscriptionHistoryEntry, error) {
	if tenantID == "" {
		return nil, nil, domain.ErrInvalidArgument
	}
	return s.sub, s.entries, s.err
}

// stubEntitlementUC returns a fixed verdict.
type stubEntitlementUC struct {
	result     model.EntitlementResult
	lastTenant string
	lastAction model.ActionKind
}

var _ usecase.EntitlementUseCase = (*stubEntitlementUC)(nil)

func (s *stubEntitlementUC) Check(ctx context.Context, tenantID string, action model.ActionKind) model.EntitlementResult {
	s.lastTenant = tenantID
	s.lastAction = action
	return s.result
}

func (s *stubEntitlementUC) Summary(ctx context.Context, tenantID string) ([]model.ActionUsage, error) {
	return []model.ActionUsage{{Action: model.ActionCreateQuarry, Used: 1, Limit: 3}}, nil
}

func (s *stubEntitlementUC) CurrentPlan(ctx context.Context, tenantID string) (model.Plan, error) {
	p, _ := model.PlanByCode(model.PlanProfesional)
	return p, nil
}

func activeTestSub() *model.Subscription {
	sub, err := model.NewSubscription("sub-1", "t1", model.PlanProfesional, model.BillingPeriodMonthly, "TX-1")
	if err != nil {
		panic(err)
	}
	return sub
}

func newTestServer(subUC usecase.SubscriptionUseCase, entUC usecase.EntitlementUseCase, secret string, dev bool) *Server {
	auth := NewAuthManager("session-secret", 30*time.Minute)
	return NewServer(entUC, subUC, auth, "/api/v1/webhooks/payment", secret, dev, testLogger())
}
