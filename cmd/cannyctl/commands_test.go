package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/config"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore/backend"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/records"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/writeverify"
)

func memorySession(t *testing.T) (*session, opener) {
	t.Helper()
	b, err := backend.Open(config.StoreConfig{Backend: config.BackendMemory}, nil)
	require.NoError(t, err)
	s := &session{
		cfg: &config.Config{
			Log:    config.LogConfig{Level: "panic", Format: "json"},
			Verify: config.VerifyConfig{Attempts: 5, BaseDelay: time.Millisecond},
		},
		backend: b,
	}
	return s, func() (*session, error) { return s, nil }
}

func execute(t *testing.T, open opener, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGet(t *testing.T) {
	s, open := memorySession(t)
	require.NoError(t, s.backend.Store.Set(context.Background(), "business:business_1", `{"profile":{"id":"business_1","name":"Bean There"}}`))

	out, err := execute(t, open, "", "get", "business", "business_1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"profile":{"id":"business_1","name":"Bean There"}}`, out)

	_, err = execute(t, open, "", "get", "customer", "customer_404")
	assert.ErrorContains(t, err, "not found")

	_, err = execute(t, open, "", "get", "merchant", "x")
	assert.ErrorContains(t, err, "unknown record kind")
}

func TestUpdateFromFile(t *testing.T) {
	s, open := memorySession(t)
	path := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"profile":{"id":"business_1700000000000","name":"Clare's Cakes"},"status":"active"}`), 0o600))

	out, err := execute(t, open, "", "update", "business", "business_1700000000000", "-f", path)
	require.NoError(t, err)

	var saved records.Business
	require.NoError(t, json.Unmarshal([]byte(out), &saved))
	assert.Equal(t, "Clare's Cakes", saved.Profile.Name)

	_, found, err := s.backend.Store.Get(context.Background(), "business:business_1700000000000")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestUpdateFromStdinIDMismatch(t *testing.T) {
	_, open := memorySession(t)

	_, err := execute(t, open, `{"profile":{"id":"customer_2","email":"a@b.test"}}`, "update", "customer", "customer_1", "-f", "-")
	require.Error(t, err)
	assert.ErrorIs(t, err, writeverify.ErrIDMismatch)
	assert.Contains(t, err.Error(), "id_mismatch")
}

func TestUpdateRequiresFile(t *testing.T) {
	_, open := memorySession(t)
	_, err := execute(t, open, "", "update", "customer", "customer_1")
	assert.Error(t, err)
}

func TestDrift(t *testing.T) {
	s, open := memorySession(t)
	ctx := context.Background()
	require.NoError(t, s.backend.Store.Set(ctx, "customer:customer_1", `{}`))
	require.NoError(t, s.backend.Store.SAdd(ctx, "businesses:all", "business_9"))

	out, err := execute(t, open, "", "drift")
	require.NoError(t, err)
	assert.Contains(t, out, "indexed-missing business_9")
	assert.Contains(t, out, "unindexed       customer_1")

	_, err = execute(t, open, "", "drift", "--fail-on-drift")
	assert.ErrorIs(t, err, errDrift)
}
