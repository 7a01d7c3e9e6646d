// Package main runs the Canny Carrot admin console API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/config"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/logging"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/metrics"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/middleware"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore/backend"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/services/console"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/writeverify"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = console.DefaultVersion

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.New(console.ServiceID, cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Console exited with error")
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	store, err := backend.Open(cfg.Store, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close store")
		}
	}()
	if store.Name == config.BackendMemory {
		logger.Warn("Using in-memory store; data is lost on exit")
	}

	svc, err := console.New(console.Config{
		Store:      store.Store,
		Logger:     logger,
		Metrics:    m,
		Version:    version,
		Backend:    store.Name,
		StoreStats: store.Stats,
		Policy: writeverify.Policy{
			Attempts:  cfg.Verify.Attempts,
			BaseDelay: cfg.Verify.BaseDelay,
		},
		AuditSchedule: cfg.Audit.Schedule,
	})
	if err != nil {
		return err
	}

	handler := buildHandler(ctx, cfg, logger, m, svc)

	if err := svc.Start(ctx); err != nil {
		return err
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := store.Store.Ping(pingCtx); err != nil {
		logger.WithError(err).Warn("Store not reachable at startup; /health will report unhealthy")
	}
	pingCancel()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.ListenAddr).WithField("backend", store.Name).Info("Console listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	case err, ok := <-errCh:
		if ok {
			_ = svc.Stop()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Shutdown error")
	}
	if err := svc.Stop(); err != nil {
		logger.WithError(err).Warn("Service stop error")
	}

	logger.Info("Console stopped")
	return nil
}

// buildHandler wraps the service router in the middleware chain. From the
// outside in: tracing, CORS, auth, rate limiting, metrics.
func buildHandler(ctx context.Context, cfg *config.Config, logger *logging.Logger, m *metrics.Metrics, svc *console.Service) http.Handler {
	router := svc.Router()
	router.Use(middleware.MetricsMiddleware(console.ServiceID, m))

	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst, logger)
	limiter.StartCleanup(ctx, time.Minute)

	var h http.Handler = limiter.Handler(router)

	if cfg.AuthEnabled() {
		auth := middleware.NewAuthMiddleware([]byte(cfg.Auth.JWTSecret), logger, []string{"/health", "/info", "/metrics"})
		h = auth.Handler(h)
	} else {
		logger.Warn("ADMIN_JWT_SECRET not set; staff authentication disabled")
	}

	if origins := cfg.HTTP.AllowedOrigins(); len(origins) > 0 {
		h = middleware.NewCORSMiddleware(origins).Handler(h)
	}

	return middleware.NewTracingMiddleware(logger).Handler(h)
}
