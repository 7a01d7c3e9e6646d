// Package kvstore defines the key-value store surface the console depends on.
// Backends live in subpackages: proxy (HTTP proxy API), redis (direct
// connection) and memory (in-process).
package kvstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable marks transport-level failures: the store could not be
// reached or refused the request. Callers test for it with errors.Is.
var ErrUnavailable = errors.New("kvstore: store unavailable")

// Store is a string key-value store with set membership.
type Store interface {
	// Get returns the value at key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores value at key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Del removes keys. Missing keys are ignored.
	Del(ctx context.Context, keys ...string) error
	// MGet returns one entry per key, nil where the key is absent.
	MGet(ctx context.Context, keys ...string) ([]*string, error)
	// SMembers returns the members of set.
	SMembers(ctx context.Context, set string) ([]string, error)
	// SAdd adds members to set.
	SAdd(ctx context.Context, set string, members ...string) error
	// SRem removes members from set.
	SRem(ctx context.Context, set string, members ...string) error
	// Keys returns keys matching a glob pattern such as "business:*".
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// Unavailable wraps cause so that it matches ErrUnavailable.
func Unavailable(op string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, op)
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, cause)
}
