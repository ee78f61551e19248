// File: internal/usecase/subscription_uc_test.go
package usecase

import (
	"context"
	"testing"
	"time"

	"cantera-billing/internal/domain"
	"cantera-billing/internal/domain/model"
)

func newSubscriptionFixture(t *testing.T) (*subscriptionUC, *memTenantRepo, *memSubscriptionRepo, *memHistoryRepo) {
	t.Helper()
	tenants := newMemTenantRepo()
	subs := newMemSubscriptionRepo()
	history := newMemHistoryRepo()
	uc := NewSubscriptionUseCase(tenants, subs, history, memTxManager{}, testLogger())
	return uc, tenants, subs, history
}

func approvedEvent(txID string) PurchaseEvent {
	price := 79.00
	return PurchaseEvent{
		EventID:       "evt-" + txID,
		EventType:     "PURCHASE_APPROVED",
		TransactionID: txID,
		ProductID:     "X103920698X",
		BuyerEmail:    "owner@norte.com",
		Price:         &price,
		Raw:           map[string]interface{}{"event": "PURCHASE_APPROVED"},
	}
}

func TestApplyPurchase_CreatesSubscription(t *testing.T) {
	uc, tenants, subs, history := newSubscriptionFixture(t)
	tenants.add(&model.Tenant{ID: "t1", Name: "Cantera Norte", OwnerEmail: "Owner@Norte.com"})

	sub, err := uc.ApplyPurchase(context.Background(), approvedEvent("TX-1"))
	if err != nil {
		t.Fatalf("ApplyPurchase: %v", err)
	}
	if sub.TenantID != "t1" {
		t.Fatalf("tenant = %s, want t1", sub.TenantID)
	}
	if sub.PlanCode != model.PlanProfesional {
		t.Fatalf("plan = %s, want profesional (price 79)", sub.PlanCode)
	}
	if sub.BillingPeriod != model.BillingPeriodMonthly {
		t.Fatalf("period = %s, want monthly", sub.BillingPeriod)
	}
	if sub.Status != model.SubscriptionStatusActive {
		t.Fatalf("status = %s, want active", sub.Status)
	}
	if sub.ExpiresAt == nil {
		t.Fatal("active subscription must carry expiry")
	}

	stored, err := subs.FindByTransactionID(context.Background(), nil, "TX-1")
	if err != nil {
		t.Fatalf("stored row missing: %v", err)
	}
	if stored.ID != sub.ID {
		t.Fatalf("stored id %s != returned %s", stored.ID, sub.ID)
	}

	entries, _ := history.ListByTenant(context.Background(), nil, "t1", 10)
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.OldPlan != nil || e.OldStatus != nil {
		t.Fatal("first entry must have nil old plan/status")
	}
	if e.NewPlan == nil || *e.NewPlan != model.PlanProfesional {
		t.Fatalf("new plan entry = %v", e.NewPlan)
	}
	if e.EventType != "PURCHASE_APPROVED" || e.Reason != "webhook" {
		t.Fatalf("entry metadata = %+v", e)
	}
}

func TestApplyPurchase_ReplayUpdatesSameRow(t *testing.T) {
	uc, tenants, subs, history := newSubscriptionFixture(t)
	tenants.add(&model.Tenant{ID: "t1", OwnerEmail: "owner@norte.com"})

	first, err := uc.ApplyPurchase(context.Background(), approvedEvent("TX-1"))
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second, err := uc.ApplyPurchase(context.Background(), approvedEvent("TX-1"))
	if err != nil {
		t.Fatalf("replayed delivery: %v", err)
	}

	if subs.len() != 1 {
		t.Fatalf("subscription rows = %d, want 1 after replay", subs.len())
	}
	if second.ID != first.ID {
		t.Fatalf("replay created new row %s, want %s", second.ID, first.ID)
	}
	if second.Status != model.SubscriptionStatusActive {
		t.Fatalf("status after replay = %s", second.Status)
	}

	entries, _ := history.ListByTenant(context.Background(), nil, "t1", 10)
	if len(entries) != 2 {
		t.Fatalf("history entries = %d, want 2 (one per delivery)", len(entries))
	}
}

func TestApplyPurchase_RetiresPriorActive(t *testing.T) {
	uc, tenants, subs, _ := newSubscriptionFixture(t)
	tenants.add(&model.Tenant{ID: "t1", OwnerEmail: "owner@norte.com"})

	if _, err := uc.ApplyPurchase(context.Background(), approvedEvent("TX-1")); err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	// Upgrade arrives under a fresh transaction.
	ev := approvedEvent("TX-2")
	yearly := 1990.00
	ev.Price = &yearly
	upgraded, err := uc.ApplyPurchase(context.Background(), ev)
	if err != nil {
		t.Fatalf("second purchase: %v", err)
	}
	if upgraded.PlanCode != model.PlanBusiness || upgraded.BillingPeriod != model.BillingPeriodYearly {
		t.Fatalf("upgrade = %s/%s, want business/yearly", upgraded.PlanCode, upgraded.BillingPeriod)
	}

	active, err := subs.FindActiveByTenant(context.Background(), nil, "t1")
	if err != nil {
		t.Fatalf("active lookup: %v", err)
	}
	if active.TransactionID != "TX-2" {
		t.Fatalf("active row is %s, want TX-2", active.TransactionID)
	}
	old, _ := subs.FindByTransactionID(context.Background(), nil, "TX-1")
	if old.Status != model.SubscriptionStatusCancelled {
		t.Fatalf("prior subscription status = %s, want cancelled", old.Status)
	}
}

func TestApplyPurchase_Validation(t *testing.T) {
	uc, tenants, _, _ := newSubscriptionFixture(t)
	tenants.add(&model.Tenant{ID: "t1", OwnerEmail: "owner@norte.com"})

	ev := approvedEvent("TX-1")
	ev.TransactionID = ""
	if _, err := uc.ApplyPurchase(context.Background(), ev); err != domain.ErrInvalidArgument {
		t.Fatalf("missing transaction id: err = %v, want ErrInvalidArgument", err)
	}

	ev = approvedEvent("TX-1")
	ev.BuyerEmail = "stranger@nowhere.com"
	if _, err := uc.ApplyPurchase(context.Background(), ev); err != domain.ErrTenantNotFound {
		t.Fatalf("unknown buyer: err = %v, want ErrTenantNotFound", err)
	}

	ev = approvedEvent("TX-1")
	ev.ProductID = "UNKNOWN"
	ev.Price = nil
	if _, err := uc.ApplyPurchase(context.Background(), ev); err != domain.ErrPlanUnresolved {
		t.Fatalf("unresolvable plan: err = %v, want ErrPlanUnresolved", err)
	}
}

func TestCancelByProviderRef(t *testing.T) {
	uc, tenants, _, history := newSubscriptionFixture(t)
	tenants.add(&model.Tenant{ID: "t1", OwnerEmail: "owner@norte.com"})

	ev := approvedEvent("TX-1")
	ev.SubscriptionID = "hm-sub-9"
	if _, err := uc.ApplyPurchase(context.Background(), ev); err != nil {
		t.Fatalf("seed purchase: %v", err)
	}

	sub, err := uc.CancelByProviderRef(context.Background(), "hm-sub-9", "", "evt-c", "SUBSCRIPTION_CANCELLATION")
	if err != nil {
		t.Fatalf("CancelByProviderRef: %v", err)
	}
	if sub.Status != model.SubscriptionStatusCancelled {
		t.Fatalf("status = %s, want cancelled", sub.Status)
	}
	if sub.CancelledAt == nil {
		t.Fatal("cancelled_at must be set")
	}

	entries, _ := history.ListByTenant(context.Background(), nil, "t1", 10)
	if len(entries) != 2 {
		t.Fatalf("history entries = %d, want 2", len(entries))
	}
	// Newest first.
	if e := entries[0]; e.NewStatus == nil || *e.NewStatus != model.SubscriptionStatusCancelled {
		t.Fatalf("latest entry = %+v", e)
	}
}

func TestCancelByProviderRef_FallsBackToTransaction(t *testing.T) {
	uc, tenants, _, _ := newSubscriptionFixture(t)
	tenants.add(&model.Tenant{ID: "t1", OwnerEmail: "owner@norte.com"})
	if _, err := uc.ApplyPurchase(context.Background(), approvedEvent("TX-1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sub, err := uc.CancelByProviderRef(context.Background(), "no-such-ref", "TX-1", "evt", "SUBSCRIPTION_CANCELLATION")
	if err != nil {
		t.Fatalf("fallback cancel: %v", err)
	}
	if sub.Status != model.SubscriptionStatusCancelled {
		t.Fatalf("status = %s", sub.Status)
	}
}

func TestCancelByProviderRef_Unknown(t *testing.T) {
	uc, _, _, history := newSubscriptionFixture(t)
	if _, err := uc.CancelByProviderRef(context.Background(), "ghost", "ghost-tx", "evt", "SUBSCRIPTION_CANCELLATION"); err != domain.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(history.entries) != 0 {
		t.Fatal("failed cancel must not write history")
	}
}

func TestReactivate(t *testing.T) {
	uc, tenants, _, _ := newSubscriptionFixture(t)
	tenants.add(&model.Tenant{ID: "t1", OwnerEmail: "owner@norte.com"})
	ev := approvedEvent("TX-1")
	ev.SubscriptionID = "hm-sub-9"
	if _, err := uc.ApplyPurchase(context.Background(), ev); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := uc.CancelByProviderRef(context.Background(), "hm-sub-9", "", "evt", "SUBSCRIPTION_CANCELLATION"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	sub, err := uc.Reactivate(context.Background(), "hm-sub-9", "evt-r", "SUBSCRIPTION_REACTIVATION")
	if err != nil {
		t.Fatalf("Reactivate: %v", err)
	}
	if sub.Status != model.SubscriptionStatusActive {
		t.Fatalf("status = %s, want active", sub.Status)
	}
	if sub.CancelledAt != nil {
		t.Fatal("reactivation must clear cancelled_at")
	}

	if _, err := uc.Reactivate(context.Background(), "", "evt", "x"); err != domain.ErrInvalidArgument {
		t.Fatalf("empty ref: err = %v, want ErrInvalidArgument", err)
	}
}

func TestRevokePurchase(t *testing.T) {
	uc, tenants, _, history := newSubscriptionFixture(t)
	tenants.add(&model.Tenant{ID: "t1", OwnerEmail: "owner@norte.com"})
	if _, err := uc.ApplyPurchase(context.Background(), approvedEvent("TX-1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sub, err := uc.RevokePurchase(context.Background(), "TX-1", "evt-r", "PURCHASE_REFUNDED")
	if err != nil {
		t.Fatalf("RevokePurchase: %v", err)
	}
	if sub.Status != model.SubscriptionStatusCancelled {
		t.Fatalf("status = %s, want cancelled", sub.Status)
	}

	// Refund for a transaction that never produced a subscription is a no-op.
	before := len(history.entries)
	sub, err = uc.RevokePurchase(context.Background(), "TX-NEVER-SEEN", "evt", "PURCHASE_REFUNDED")
	if err != nil {
		t.Fatalf("revoke of unknown transaction: %v", err)
	}
	if sub != nil {
		t.Fatalf("unknown transaction should return nil subscription, got %+v", sub)
	}
	if len(history.entries) != before {
		t.Fatal("no-op revoke must not write history")
	}
}

func TestFinishExpired(t *testing.T) {
	uc, tenants, subs, history := newSubscriptionFixture(t)
	tenants.add(&model.Tenant{ID: "t1", OwnerEmail: "owner@norte.com"})

	past := time.Now().Add(-48 * time.Hour)
	lapsed := activeSub("t1", model.PlanStarter)
	lapsed.ExpiresAt = &past
	if err := subs.Save(context.Background(), nil, lapsed); err != nil {
		t.Fatalf("seed lapsed: %v", err)
	}
	current, _ := model.NewSubscription("sub-live", "t2", model.PlanStarter, model.BillingPeriodYearly, "tx-live")
	if err := subs.Save(context.Background(), nil, current); err != nil {
		t.Fatalf("seed current: %v", err)
	}

	n, err := uc.FinishExpired(context.Background())
	if err != nil {
		t.Fatalf("FinishExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("finished = %d, want 1", n)
	}
	got, _ := subs.FindByTransactionID(context.Background(), nil, lapsed.TransactionID)
	if got.Status != model.SubscriptionStatusExpired {
		t.Fatalf("status = %s, want expired", got.Status)
	}
	still, _ := subs.FindByTransactionID(context.Background(), nil, "tx-live")
	if still.Status != model.SubscriptionStatusActive {
		t.Fatalf("unexpired subscription flipped to %s", still.Status)
	}

	entries, _ := history.ListByTenant(context.Background(), nil, "t1", 10)
	if len(entries) != 1 || entries[0].Reason != "expired" {
		t.Fatalf("expiry history = %+v", entries)
	}
}

func TestTenantView(t *testing.T) {
	uc, tenants, _, _ := newSubscriptionFixture(t)
	tenants.add(&model.Tenant{ID: "t1", OwnerEmail: "owner@norte.com"})

	// No subscription yet: nil sub, empty history, no error.
	sub, entries, err := uc.TenantView(context.Background(), "t1")
	if err != nil {
		t.Fatalf("TenantView: %v", err)
	}
	if sub != nil || len(entries) != 0 {
		t.Fatalf("empty view = %+v / %d entries", sub, len(entries))
	}

	if _, err := uc.ApplyPurchase(context.Background(), approvedEvent("TX-1")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	sub, entries, err = uc.TenantView(context.Background(), "t1")
	if err != nil {
		t.Fatalf("TenantView: %v", err)
	}
	if sub == nil || sub.TransactionID != "TX-1" {
		t.Fatalf("view subscription = %+v", sub)
	}
	if len(entries) != 1 {
		t.Fatalf("view history = %d entries, want 1", len(entries))
	}

	if _, _, err := uc.TenantView(context.Background(), ""); err != domain.ErrInvalidArgument {
		t.Fatalf("empty tenant: err = %v, want ErrInvalidArgument", err)
	}
}

func TestApplyPurchase_LostInsertRaceRetriesAsUpdate(t *testing.T) {
	uc, tenants, subs, history := newSubscriptionFixture(t)
	tenants.add(&model.Tenant{ID: "t1", OwnerEmail: "owner@norte.com"})

	// Simulate the concurrent delivery that wins the insert between our
	// FindByTransactionID miss and Save: pre-seed a row with the same
	// transaction id but a different row id.
	raceWinner, _ := model.NewSubscription("sub-winner", "t1", model.PlanStarter, model.BillingPeriodMonthly, "TX-1")
	if err := subs.Save(context.Background(), nil, raceWinner); err != nil {
		t.Fatalf("seed winner: %v", err)
	}
	// The in-memory repo enforces the transaction-id uniqueness, so driving
	// createNew directly exercises the ErrAlreadyExists recovery.
	ev := approvedEvent("TX-1")
	var result *model.Subscription
	err := uc.createNew(context.Background(), nil, &model.Tenant{ID: "t1"}, ev, model.PlanProfesional, model.BillingPeriodMonthly, &result)
	if err != nil {
		t.Fatalf("createNew under race: %v", err)
	}
	if result.ID != "sub-winner" {
		t.Fatalf("race recovery updated %s, want the winner row sub-winner", result.ID)
	}
	if result.PlanCode != model.PlanProfesional {
		t.Fatalf("race recovery plan = %s, want profesional", result.PlanCode)
	}
	if subs.len() != 1 {
		t.Fatalf("rows = %d, want 1", subs.len())
	}
	if len(history.entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history.entries))
	}
}
