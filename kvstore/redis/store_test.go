package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := New(Config{URL: "redis://" + mr.Addr(), DialTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestNew_RequiresValidURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	_, err = New(Config{URL: "http://not-redis"})
	assert.Error(t, err)
}

func TestStore_GetSetDel(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	_, found, err := s.Get(ctx, "business:b1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "business:b1", `{"profile":{"id":"b1"}}`))
	got, err := mr.Get("business:b1")
	require.NoError(t, err)
	assert.Equal(t, `{"profile":{"id":"b1"}}`, got)

	v, found, err := s.Get(ctx, "business:b1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"profile":{"id":"b1"}}`, v)

	require.NoError(t, s.Del(ctx, "business:b1"))
	assert.False(t, mr.Exists("business:b1"))
	require.NoError(t, s.Del(ctx))
}

func TestStore_MGet(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	require.NoError(t, mr.Set("customer:c1", "one"))

	vals, err := s.MGet(ctx, "customer:c1", "customer:c2")
	require.NoError(t, err)
	require.Len(t, vals, 2)
	require.NotNil(t, vals[0])
	assert.Equal(t, "one", *vals[0])
	assert.Nil(t, vals[1])
}

func TestStore_SetsAndKeys(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	require.NoError(t, s.SAdd(ctx, "customers:all", "c2", "c1"))
	members, err := s.SMembers(ctx, "customers:all")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, members)

	require.NoError(t, s.SRem(ctx, "customers:all", "c2"))
	ok, err := mr.SIsMember("customers:all", "c2")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, k := range []string{"customer:c1", "customer:c3", "business:b1"} {
		require.NoError(t, mr.Set(k, "{}"))
	}
	keys, err := s.Keys(ctx, "customer:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"customer:c1", "customer:c3"}, keys)
}

func TestStore_UnavailableWhenServerDown(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	require.NoError(t, s.Ping(ctx))

	mr.Close()
	err := s.Set(ctx, "business:b1", "{}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, kvstore.ErrUnavailable))
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "a", "b", "b"}))
	assert.Equal(t, []string{"a"}, dedupe([]string{"a"}))
}
