// Package backend opens the kvstore.Store selected by configuration.
package backend

import (
	"fmt"
	"time"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/config"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/metrics"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore/memory"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore/proxy"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore/redis"
)

// Backend is an opened store plus its bookkeeping hooks.
type Backend struct {
	Name  string
	Store kvstore.Store
	// Stats reports backend counters; nil when the backend has none.
	Stats func() map[string]any

	close func() error
}

// Close releases backend resources.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open creates the configured backend. When m is non-nil every store call is
// recorded in the store metrics.
func Open(cfg config.StoreConfig, m *metrics.Metrics) (*Backend, error) {
	b := &Backend{Name: cfg.Backend}

	switch cfg.Backend {
	case config.BackendProxy:
		client, err := proxy.New(proxy.Config{
			URL:     cfg.ProxyURL,
			APIKey:  cfg.ProxyAPIKey,
			Timeout: cfg.ProxyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open proxy backend: %w", err)
		}
		b.Store = client
		b.Stats = client.Stats

	case config.BackendRedis:
		store, err := redis.New(redis.Config{
			URL:          cfg.RedisURL,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  cfg.ProxyTimeout,
			WriteTimeout: cfg.ProxyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis backend: %w", err)
		}
		b.Store = store
		b.close = store.Close

	case config.BackendMemory:
		b.Store = memory.New()

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	if m != nil {
		b.Store = kvstore.Instrument(b.Store, func(op string, d time.Duration, err error) {
			m.ObserveStoreCall(b.Name, op, d, err)
		})
	}
	return b, nil
}
