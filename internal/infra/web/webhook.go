package web

import (
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"cantera-billing/internal/domain"
	"cantera-billing/internal/infra/adapters/payment"
	"cantera-billing/internal/infra/logging"
	"cantera-billing/internal/infra/metrics"
	"cantera-billing/internal/usecase"
)

const maxWebhookBody = 1 << 20

// handleWebhookLiveness answers the provider's endpoint-verification probe.
func (s *Server) handleWebhookLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "status": "ready"})
}

// handleWebhook is the provider-facing entry point. Status codes are part of
// the contract with the provider's retry machinery: 200 stops redelivery,
// 4xx marks the event permanently unprocessable, 5xx triggers a retry.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	sig := payment.SignatureFromRequest(r)
	if s.webhookSecret == "" {
		if !s.dev {
			s.log.Error().Msg("webhook secret not configured")
			writeError(w, http.StatusUnauthorized, "webhook authentication not configured")
			return
		}
		// Dev mode tolerates unauthenticated deliveries for local testing.
	} else if !payment.VerifySignature(s.webhookSecret, body, sig) {
		metrics.IncWebhookEvent("unknown", "rejected")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ev, err := payment.ParseEvent(body)
	if err != nil {
		metrics.IncWebhookEvent("unknown", "rejected")
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	ctx := logging.WithEventID(r.Context(), ev.ID)
	log := logging.With(ctx, s.log)
	log.Info().Str("event_type", ev.Type).Str("transaction", ev.TransactionID).Msg("webhook received")

	switch ev.Kind {
	case payment.EventPurchaseApproved:
		if ev.TransactionID == "" || ev.BuyerEmail == "" {
			metrics.IncWebhookEvent(ev.Type, "rejected")
			writeError(w, http.StatusBadRequest, "missing transaction or buyer email")
			return
		}
		sub, err := s.subUC.ApplyPurchase(ctx, usecase.PurchaseEvent{
			EventID:        ev.ID,
			EventType:      ev.Type,
			TransactionID:  ev.TransactionID,
			ProductID:      ev.ProductID,
			BuyerEmail:     ev.BuyerEmail,
			SubscriptionID: ev.SubscriptionID,
			Price:          ev.Price,
			Recurrence:     ev.Recurrence,
			Metadata:       ev.Metadata,
			Raw:            ev.Raw,
		})
		if err != nil {
			s.webhookError(w, log, ev.Type, err)
			return
		}
		metrics.IncWebhookEvent(ev.Type, "processed")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":         true,
			"subscription_id": sub.ID,
			"plan":            sub.PlanCode,
			"status":          sub.Status,
		})

	case payment.EventSubscriptionCancelled:
		sub, err := s.subUC.CancelByProviderRef(ctx, ev.SubscriptionID, ev.TransactionID, ev.ID, ev.Type)
		if err != nil {
			s.webhookError(w, log, ev.Type, err)
			return
		}
		metrics.IncWebhookEvent(ev.Type, "processed")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":         true,
			"subscription_id": sub.ID,
			"status":          sub.Status,
		})

	case payment.EventSubscriptionReactivated:
		sub, err := s.subUC.Reactivate(ctx, ev.SubscriptionID, ev.ID, ev.Type)
		if err != nil {
			s.webhookError(w, log, ev.Type, err)
			return
		}
		metrics.IncWebhookEvent(ev.Type, "processed")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":         true,
			"subscription_id": sub.ID,
			"status":          sub.Status,
		})

	case payment.EventPurchaseRevoked:
		sub, err := s.subUC.RevokePurchase(ctx, ev.TransactionID, ev.ID, ev.Type)
		if err != nil {
			s.webhookError(w, log, ev.Type, err)
			return
		}
		resp := map[string]interface{}{"success": true}
		if sub != nil {
			resp["subscription_id"] = sub.ID
			resp["status"] = sub.Status
		}
		metrics.IncWebhookEvent(ev.Type, "processed")
		writeJSON(w, http.StatusOK, resp)

	default:
		// Acknowledge events this system does not model so the provider
		// stops retrying them.
		metrics.IncWebhookEvent(ev.Type, "ignored")
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "ignored": true})
	}
}

func (s *Server) webhookError(w http.ResponseWriter, log *zerolog.Logger, eventType string, err error) {
	switch err {
	case domain.ErrTenantNotFound:
		metrics.IncWebhookEvent(eventType, "rejected")
		writeError(w, http.StatusNotFound, "no tenant matches the buyer email")
	case domain.ErrNotFound:
		metrics.IncWebhookEvent(eventType, "rejected")
		writeError(w, http.StatusNotFound, "referenced subscription not found")
	case domain.ErrPlanUnresolved:
		metrics.IncWebhookEvent(eventType, "rejected")
		writeError(w, http.StatusBadRequest, "plan could not be resolved from the event")
	case domain.ErrInvalidArgument:
		metrics.IncWebhookEvent(eventType, "rejected")
		writeError(w, http.StatusBadRequest, "missing required fields")
	default:
		log.Error().Err(err).Str("event_type", eventType).Msg("webhook processing failed")
		metrics.IncWebhookEvent(eventType, "error")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
