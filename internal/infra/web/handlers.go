package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cantera-billing/internal/domain"
	"cantera-billing/internal/domain/model"
	"cantera-billing/internal/infra/metrics"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type entitlementCheckRequest struct {
	Action string `json:"action"`
}

// handleEntitlementCheck answers the UI's pre-action question. The response
// is always a verdict the UI can render; store failures surface as a deny
// with a generic reason, not as a 500.
func (s *Server) handleEntitlementCheck(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req entitlementCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	action, err := model.ParseActionKind(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	result := s.entUC.Check(r.Context(), claims.TenantID, action)
	metrics.IncEntitlementCheck(string(action), result.Allowed)
	writeJSON(w, http.StatusOK, result)
}

type planResponse struct {
	Code         model.PlanCode   `json:"code"`
	Name         string           `json:"name"`
	PriceMonthly float64          `json:"price_monthly"`
	PriceYearly  float64          `json:"price_yearly"`
	Limits       model.PlanLimits `json:"limits"`
	Features     []string         `json:"features"`
}

func (s *Server) handleListPlans(w http.ResponseWriter, _ *http.Request) {
	plans := model.Plans()
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse{
			Code:         p.Code,
			Name:         p.Name,
			PriceMonthly: p.PriceMonthly,
			PriceYearly:  p.PriceYearly,
			Limits:       p.Limits,
			Features:     p.Features,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": out})
}

type subscriptionResponse struct {
	ID            string                   `json:"id"`
	PlanCode      model.PlanCode           `json:"plan_code"`
	Status        model.SubscriptionStatus `json:"status"`
	BillingPeriod model.BillingPeriod      `json:"billing_period"`
	StartsAt      time.Time                `json:"starts_at"`
	ExpiresAt     *time.Time               `json:"expires_at,omitempty"`
	CancelledAt   *time.Time               `json:"cancelled_at,omitempty"`
	NextBillingAt *time.Time               `json:"next_billing_at,omitempty"`
}

type historyResponse struct {
	ID        string                    `json:"id"`
	OldPlan   *model.PlanCode           `json:"old_plan,omitempty"`
	NewPlan   *model.PlanCode           `json:"new_plan,omitempty"`
	OldStatus *model.SubscriptionStatus `json:"old_status,omitempty"`
	NewStatus *model.SubscriptionStatus `json:"new_status,omitempty"`
	Reason    string                    `json:"reason"`
	EventType string                    `json:"event_type,omitempty"`
	CreatedAt time.Time                 `json:"created_at"`
}

func (s *Server) handleTenantSubscription(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")
	sub, entries, err := s.subUC.TenantView(r.Context(), tenantID)
	if err == domain.ErrInvalidArgument {
		writeError(w, http.StatusBadRequest, "missing tenant id")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	resp := struct {
		Subscription *subscriptionResponse `json:"subscription"`
		History      []historyResponse     `json:"history"`
	}{History: make([]historyResponse, 0, len(entries))}

	if sub != nil {
		resp.Subscription = &subscriptionResponse{
			ID:            sub.ID,
			PlanCode:      sub.PlanCode,
			Status:        sub.Status,
			BillingPeriod: sub.BillingPeriod,
			StartsAt:      sub.StartsAt,
			ExpiresAt:     sub.ExpiresAt,
			CancelledAt:   sub.CancelledAt,
			NextBillingAt: sub.NextBillingAt,
		}
	}
	for _, e := range entries {
		resp.History = append(resp.History, historyResponse{
			ID:        e.ID,
			OldPlan:   e.OldPlan,
			NewPlan:   e.NewPlan,
			OldStatus: e.OldStatus,
			NewStatus: e.NewStatus,
			Reason:    e.Reason,
			EventType: e.EventType,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTenantUsage(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")
	plan, err := s.entUC.CurrentPlan(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve plan")
		return
	}
	usage, err := s.entUC.Summary(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load usage")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plan":  plan.Code,
		"usage": usage,
	})
}
