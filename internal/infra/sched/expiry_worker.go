package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cantera-billing/internal/domain/ports/repository"
	"cantera-billing/internal/infra/metrics"
	"cantera-billing/internal/usecase"
)

// ExpiryWorker periodically retires active subscriptions whose paid window
// has lapsed, and refreshes the by-status gauge.
type ExpiryWorker struct {
	interval time.Duration
	subUC    usecase.SubscriptionUseCase
	subs     repository.SubscriptionRepository
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subUC usecase.SubscriptionUseCase, subs repository.SubscriptionRepository, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		subUC:    subUC,
		subs:     subs,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.subUC.FinishExpired(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry worker error")
			}
			if n > 0 {
				metrics.IncSubscriptionsExpired(n)
				w.log.Info().Int("count", n).Msg("expired subscriptions retired")
			}
			if counts, err := w.subs.CountByStatus(ctx, repository.NoTX); err == nil {
				metrics.SetSubscriptionsTotal(counts)
			}
		}
	}
}
