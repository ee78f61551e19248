// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cantera-billing/internal/config"
	"cantera-billing/internal/domain/ports/repository"
	pg "cantera-billing/internal/infra/db/postgres"
	"cantera-billing/internal/infra/logging"
	"cantera-billing/internal/infra/metrics"
	red "cantera-billing/internal/infra/redis"
	"cantera-billing/internal/infra/sched"
	"cantera-billing/internal/infra/web"
	"cantera-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (relaxed webhook auth)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled; unauthenticated webhooks tolerated")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (optional usage cache) ----
	var usageCache repository.UsageCache
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		usageCache = red.NewUsageCache(redisClient, cfg.Redis.UsageTTL.Std())
	}

	// ---- Repositories ----
	tenantRepo := pg.NewTenantRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	historyRepo := pg.NewHistoryRepo(pool)
	usageRepo := pg.NewUsageRepo(pool)
	txm := pg.NewTxManager(pool)

	// ---- Use cases ----
	entUC := usecase.NewEntitlementUseCase(tenantRepo, subRepo, usageRepo, usageCache, logger)
	subUC := usecase.NewSubscriptionUseCase(tenantRepo, subRepo, historyRepo, txm, logger)

	// ---- Metrics ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL.Std())
	srv := web.NewServer(entUC, subUC, auth, cfg.Webhook.Path, cfg.Webhook.Secret, cfg.Runtime.Dev, logger)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Expiry worker ----
	worker := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval.Std(), subUC, subRepo, logger)
	go func() {
		if err := worker.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("expiry worker stopped")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)
