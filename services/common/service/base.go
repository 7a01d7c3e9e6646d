// Package service provides common service infrastructure: a router with the
// standard /health and /info endpoints, dependency health checks and
// background workers tied to the service lifecycle.
package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/logging"
)

const healthCheckTimeout = 5 * time.Second

// Health states.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthCheck probes one dependency; a nil error means healthy.
type HealthCheck func(context.Context) error

// BaseConfig contains shared configuration for services.
type BaseConfig struct {
	ID      string
	Name    string
	Version string
	Logger  *logging.Logger
}

type namedCheck struct {
	name  string
	check HealthCheck
}

// BaseService provides the shared lifecycle for console services:
// - standard routes on a gorilla/mux router
// - named dependency health checks
// - background workers stopped together with the service
type BaseService struct {
	id      string
	name    string
	version string
	router  *mux.Router
	logger  *logging.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	statsFn func() map[string]any
	checks  []namedCheck
	workers []func(context.Context)

	healthMu        sync.RWMutex
	healthResults   map[string]string
	lastHealthCheck time.Time
	startTime       time.Time
}

// NewBase constructs a BaseService from shared config.
func NewBase(cfg BaseConfig) *BaseService {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &BaseService{
		id:            cfg.ID,
		name:          cfg.Name,
		version:       cfg.Version,
		router:        mux.NewRouter(),
		logger:        logger,
		stopCh:        make(chan struct{}),
		healthResults: make(map[string]string),
	}
}

func (b *BaseService) ID() string { return b.id }
func (b *BaseService) Name() string { return b.name }
func (b *BaseService) Version() string { return b.version }
func (b *BaseService) Router() *mux.Router { return b.router }
func (b *BaseService) Logger() *logging.Logger { return b.logger }

// WithStats sets a statistics provider for the /info endpoint.
func (b *BaseService) WithStats(fn func() map[string]any) *BaseService {
	b.statsFn = fn
	return b
}

// AddHealthCheck registers a dependency probe reported by /health.
func (b *BaseService) AddHealthCheck(name string, check HealthCheck) *BaseService {
	b.checks = append(b.checks, namedCheck{name: name, check: check})
	return b
}

// AddWorker registers a background worker launched by Start. The context
// passed to the worker is cancelled by Stop.
func (b *BaseService) AddWorker(fn func(context.Context)) *BaseService {
	b.workers = append(b.workers, fn)
	return b
}

// AddTickerWorker registers a worker calling fn every interval until Stop.
// Errors are logged and the loop continues.
func (b *BaseService) AddTickerWorker(name string, interval time.Duration, fn func(context.Context) error) *BaseService {
	return b.AddWorker(func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					b.logger.WithContext(ctx).WithError(err).WithField("worker", name).Warn("worker run failed")
				}
			}
		}
	})
}

// StopChan is closed when the service stops.
func (b *BaseService) StopChan() <-chan struct{} {
	return b.stopCh
}

// Start launches the registered workers.
func (b *BaseService) Start(ctx context.Context) error {
	b.healthMu.Lock()
	if b.startTime.IsZero() {
		b.startTime = time.Now()
	}
	b.healthMu.Unlock()

	workerCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	for _, w := range b.workers {
		worker := w
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			worker(workerCtx)
		}()
	}

	b.logger.WithFields(map[string]interface{}{
		"service": b.name,
		"version": b.version,
		"workers": len(b.workers),
	}).Info("service started")
	return nil
}

// Stop cancels workers and waits for them to return. It is idempotent.
func (b *BaseService) Stop() error {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		if b.cancel != nil {
			b.cancel()
		}
		b.wg.Wait()
		b.logger.WithField("service", b.name).Info("service stopped")
	})
	return nil
}

// WorkerCount returns the number of registered workers.
func (b *BaseService) WorkerCount() int {
	return len(b.workers)
}

// CheckHealth runs every health check and caches the results.
func (b *BaseService) CheckHealth(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	results := make(map[string]string, len(b.checks))
	for _, c := range b.checks {
		if err := c.check(ctx); err != nil {
			results[c.name] = err.Error()
			continue
		}
		results[c.name] = "ok"
	}

	b.healthMu.Lock()
	b.healthResults = results
	b.lastHealthCheck = time.Now()
	b.healthMu.Unlock()
}

// HealthStatus probes dependencies and returns the aggregated status.
func (b *BaseService) HealthStatus(ctx context.Context) string {
	b.CheckHealth(ctx)
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	for _, result := range b.healthResults {
		if result != "ok" {
			return StatusUnhealthy
		}
	}
	return StatusHealthy
}

// HealthDetails returns the most recent health check results.
func (b *BaseService) HealthDetails() map[string]any {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()

	names := make([]string, 0, len(b.healthResults))
	for name := range b.healthResults {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		checks[name] = b.healthResults[name]
	}

	details := map[string]any{
		"checks": checks,
		"uptime": b.uptimeLocked().String(),
	}
	if !b.lastHealthCheck.IsZero() {
		details["last_check"] = b.lastHealthCheck.Format(time.RFC3339)
	}
	return details
}

func (b *BaseService) uptimeLocked() time.Duration {
	if b.startTime.IsZero() {
		return 0
	}
	return time.Since(b.startTime).Round(time.Second)
}
