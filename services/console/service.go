// Package console implements the admin REST API for business and customer
// records: listing through the index sets, detail reads, verified full-record
// updates, fire-and-forget deletes and the index drift audit.
package console

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/logging"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/metrics"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/records"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/services/common/service"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/writeverify"
)

const (
	ServiceID      = "console"
	ServiceName    = "Canny Carrot Admin Console"
	DefaultVersion = "dev"

	auditTimeout = 2 * time.Minute
)

// Config wires the console service.
type Config struct {
	Store   kvstore.Store
	Logger  *logging.Logger
	Metrics *metrics.Metrics
	Version string

	// Backend names the store backend in /info.
	Backend string
	// StoreStats optionally contributes backend statistics to /info.
	StoreStats func() map[string]any

	Policy writeverify.Policy
	// Sleep overrides the verification wait; nil uses real timers.
	Sleep writeverify.SleepFunc

	// AuditSchedule is a cron spec for the index drift audit. Empty disables it.
	AuditSchedule string
}

// Service is the admin console API.
type Service struct {
	*service.BaseService

	store   kvstore.Store
	logger  *logging.Logger
	metrics *metrics.Metrics
	backend string

	businesses *resource[records.Business]
	customers  *resource[records.Customer]
	auditor    *DriftAuditor
	scheduler  *cron.Cron

	writesVerified atomic.Int64
	writesFailed   atomic.Int64
	deletes        atomic.Int64
	deleteFailures atomic.Int64
}

// New creates the console service and registers its routes.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("console: store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}

	s := &Service{
		BaseService: service.NewBase(service.BaseConfig{
			ID:      ServiceID,
			Name:    ServiceName,
			Version: cfg.Version,
			Logger:  cfg.Logger,
		}),
		store:   cfg.Store,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		backend: cfg.Backend,
	}

	opts := writeverify.Options{
		Policy:   cfg.Policy,
		Sleep:    cfg.Sleep,
		Observer: s.observeVerification,
		Logger:   cfg.Logger,
	}
	s.businesses = newResource(cfg.Store, writeverify.NewBusiness(cfg.Store, opts), cfg.Logger, &s.deletes, &s.deleteFailures)
	s.customers = newResource(cfg.Store, writeverify.NewCustomer(cfg.Store, opts), cfg.Logger, &s.deletes, &s.deleteFailures)
	s.auditor = NewDriftAuditor(cfg.Store, cfg.Logger, cfg.Metrics)

	if cfg.AuditSchedule != "" {
		if err := s.scheduleAudit(cfg.AuditSchedule); err != nil {
			return nil, err
		}
	}

	s.AddHealthCheck("store", cfg.Store.Ping)
	s.WithStats(func() map[string]any { return s.statistics(cfg.StoreStats) })
	s.registerRoutes()

	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.Router()
}

// Auditor exposes the drift auditor.
func (s *Service) Auditor() *DriftAuditor {
	return s.auditor
}

func (s *Service) scheduleAudit(spec string) error {
	s.scheduler = cron.New()
	if _, err := s.scheduler.AddFunc(spec, s.runScheduledAudit); err != nil {
		return fmt.Errorf("console: invalid audit schedule %q: %w", spec, err)
	}

	s.AddWorker(func(ctx context.Context) {
		s.scheduler.Start()
		<-ctx.Done()
		<-s.scheduler.Stop().Done()
	})
	return nil
}

func (s *Service) runScheduledAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	ctx = logging.WithTraceID(ctx, logging.NewTraceID())

	if _, err := s.auditor.AuditAll(ctx); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("scheduled index drift audit failed")
	}
}

func (s *Service) observeVerification(o writeverify.Outcome) {
	if o.Err == nil {
		s.writesVerified.Add(1)
	} else {
		s.writesFailed.Add(1)
	}
	if s.metrics != nil {
		s.metrics.RecordVerification(o.Kind, o.Result(), o.Attempts)
	}
}

func (s *Service) statistics(storeStats func() map[string]any) map[string]any {
	policy := s.businesses.verifier.Policy()
	stats := map[string]any{
		"store_backend":   s.backend,
		"writes_verified": s.writesVerified.Load(),
		"writes_failed":   s.writesFailed.Load(),
		"deletes":         s.deletes.Load(),
		"delete_failures": s.deleteFailures.Load(),
		"verify_policy": map[string]any{
			"attempts":      policy.Attempts,
			"base_delay_ms": policy.BaseDelay.Milliseconds(),
			"budget_ms":     policy.Budget().Milliseconds(),
		},
	}
	if reports, at := s.auditor.Last(); !at.IsZero() {
		stats["last_drift_audit"] = map[string]any{
			"at":      at.UTC().Format(time.RFC3339),
			"in_sync": allInSync(reports),
		}
	}
	if storeStats != nil {
		stats["store"] = storeStats()
	}
	return stats
}
