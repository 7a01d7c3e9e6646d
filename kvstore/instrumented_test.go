package kvstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore/memory"
)

func TestInstrument_ReportsEachCall(t *testing.T) {
	type call struct {
		op  string
		err bool
	}
	var calls []call
	mem := memory.New()
	s := kvstore.Instrument(mem, func(op string, d time.Duration, err error) {
		assert.GreaterOrEqual(t, d, time.Duration(0))
		calls = append(calls, call{op, err != nil})
	})
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "business:b1", "{}"))
	_, _, err := s.Get(ctx, "business:b1")
	require.NoError(t, err)
	mem.SetDown(true)
	_, err = s.Keys(ctx, "business:*")
	require.Error(t, err)

	assert.Equal(t, []call{{"set", false}, {"get", false}, {"keys", true}}, calls)
}

func TestInstrument_NilObserverReturnsStore(t *testing.T) {
	mem := memory.New()
	assert.Same(t, kvstore.Store(mem), kvstore.Instrument(mem, nil))
}
