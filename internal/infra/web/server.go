package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"cantera-billing/internal/usecase"
)

// Server wires the webhook endpoint, the entitlement check endpoint and the
// support API onto one router.
type Server struct {
	entUC         usecase.EntitlementUseCase
	subUC         usecase.SubscriptionUseCase
	auth          *AuthManager
	webhookPath   string
	webhookSecret string
	dev           bool
	log           *zerolog.Logger
}

func NewServer(
	entUC usecase.EntitlementUseCase,
	subUC usecase.SubscriptionUseCase,
	auth *AuthManager,
	webhookPath, webhookSecret string,
	dev bool,
	logger *zerolog.Logger,
) *Server {
	if webhookPath == "" {
		webhookPath = "/api/v1/webhooks/payment"
	}
	return &Server{
		entUC:         entUC,
		subUC:         subUC,
		auth:          auth,
		webhookPath:   webhookPath,
		webhookSecret: webhookSecret,
		dev:           dev,
		log:           logger,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(TraceID())
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The provider probes the endpoint with a GET before enabling delivery.
	r.Get(s.webhookPath, s.handleWebhookLiveness)
	r.Post(s.webhookPath, s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.RequireSession)
		r.Post("/api/v1/entitlements/check", s.handleEntitlementCheck)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth.RequireAdmin)
		r.Get("/api/v1/plans", s.handleListPlans)
		r.Get("/api/v1/tenants/{id}/subscription", s.handleTenantSubscription)
		r.Get("/api/v1/tenants/{id}/usage", s.handleTenantUsage)
	})

	return r
}
