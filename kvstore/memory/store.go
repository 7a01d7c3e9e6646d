// Package memory provides an in-process kvstore.Store.
//
// It can simulate an eventually consistent backend: with a read lag of n,
// the first n reads of a key after each write still observe the previous
// value.
package memory

import (
	"context"
	"path"
	"sort"
	"sync"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore"
)

type entry struct {
	value     string
	prev      *string
	lagRemain int
}

// Store is an in-memory kvstore.Store. The zero value is not usable; call New.
type Store struct {
	mu      sync.Mutex
	data    map[string]*entry
	sets    map[string]map[string]struct{}
	readLag int
	down    bool

	getCalls int
	setCalls int
}

// Option configures a Store.
type Option func(*Store)

// WithReadLag makes the first n reads after each write return the previous
// value (or "not found" for a new key).
func WithReadLag(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.readLag = n
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]*entry),
		sets: make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ kvstore.Store = (*Store)(nil)

// SetDown toggles a simulated outage; every call fails with
// kvstore.ErrUnavailable while down.
func (s *Store) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// Stats returns the number of Get and Set calls served.
func (s *Store) Stats() (gets, sets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls, s.setCalls
}

func (s *Store) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.down {
		return kvstore.Unavailable(op, nil)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "get"); err != nil {
		return "", false, err
	}
	s.getCalls++
	return s.readLocked(key)
}

func (s *Store) readLocked(key string) (string, bool, error) {
	e, ok := s.data[key]
	if !ok {
		return "", false, nil
	}
	if e.lagRemain > 0 {
		e.lagRemain--
		if e.prev == nil {
			return "", false, nil
		}
		return *e.prev, true, nil
	}
	return e.value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "set"); err != nil {
		return err
	}
	s.setCalls++

	var prev *string
	if old, ok := s.data[key]; ok {
		v := old.value
		prev = &v
	}
	s.data[key] = &entry{value: value, prev: prev, lagRemain: s.readLag}
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "del"); err != nil {
		return err
	}
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *Store) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "mget"); err != nil {
		return nil, err
	}
	out := make([]*string, len(keys))
	for i, k := range keys {
		v, ok, _ := s.readLocked(k)
		if ok {
			out[i] = &v
		}
	}
	return out, nil
}

func (s *Store) SMembers(ctx context.Context, set string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "smembers"); err != nil {
		return nil, err
	}
	members := make([]string, 0, len(s.sets[set]))
	for m := range s.sets[set] {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (s *Store) SAdd(ctx context.Context, set string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "sadd"); err != nil {
		return err
	}
	m, ok := s.sets[set]
	if !ok {
		m = make(map[string]struct{})
		s.sets[set] = m
	}
	for _, member := range members {
		m[member] = struct{}{}
	}
	return nil
}

func (s *Store) SRem(ctx context.Context, set string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "srem"); err != nil {
		return err
	}
	for _, member := range members {
		delete(s.sets[set], member)
	}
	if len(s.sets[set]) == 0 {
		delete(s.sets, set)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "keys"); err != nil {
		return nil, err
	}
	var keys []string
	for k := range s.data {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	for k := range s.sets {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check(ctx, "ping")
}
