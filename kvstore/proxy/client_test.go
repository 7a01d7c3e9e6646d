package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore"
)

// fakeProxy emulates the proxy API on top of maps.
type fakeProxy struct {
	mu      sync.Mutex
	values  map[string]string
	sets    map[string]map[string]bool
	apiKey  string
	calls   map[string]int
	failFor map[string]int // command -> remaining 503 responses
}

func newFakeProxy() *fakeProxy {
	return &fakeProxy{
		values:  map[string]string{},
		sets:    map[string]map[string]bool{},
		calls:   map[string]int{},
		failFor: map[string]int{},
	}
}

func (f *fakeProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.apiKey != "" && r.Header.Get("X-API-Key") != f.apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error":"bad key"}`))
		return
	}
	if r.URL.Path == "/health" {
		w.WriteHeader(http.StatusOK)
		return
	}

	command := strings.TrimPrefix(r.URL.Path, "/api/v1/redis/")
	f.calls[command]++
	if f.failFor[command] > 0 {
		f.failFor[command]--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Args []string `json:"args"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var data interface{}
	switch command {
	case "get":
		if v, ok := f.values[req.Args[0]]; ok {
			data = v
		}
	case "set":
		f.values[req.Args[0]] = req.Args[1]
		data = "OK"
	case "del":
		for _, k := range req.Args {
			delete(f.values, k)
		}
		data = len(req.Args)
	case "mget":
		out := make([]interface{}, len(req.Args))
		for i, k := range req.Args {
			if v, ok := f.values[k]; ok {
				out[i] = v
			}
		}
		data = out
	case "smembers":
		members := []string{}
		for m := range f.sets[req.Args[0]] {
			members = append(members, m)
		}
		sort.Strings(members)
		data = members
	case "sadd":
		if f.sets[req.Args[0]] == nil {
			f.sets[req.Args[0]] = map[string]bool{}
		}
		for _, m := range req.Args[1:] {
			f.sets[req.Args[0]][m] = true
		}
		data = len(req.Args) - 1
	case "srem":
		for _, m := range req.Args[1:] {
			delete(f.sets[req.Args[0]], m)
		}
		data = len(req.Args) - 1
	case "keys":
		keys := []string{}
		for k := range f.values {
			if ok, _ := path.Match(req.Args[0], k); ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		data = keys
	default:
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "unknown command"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": data})
}

func newTestClient(t *testing.T, fp *fakeProxy, mutate func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(fp)
	t.Cleanup(srv.Close)

	cfg := Config{
		URL:     srv.URL,
		APIKey:  fp.apiKey,
		Timeout: 2 * time.Second,
		Retry: RetryConfig{
			MaxRetries:           2,
			InitialBackoff:       time.Millisecond,
			MaxBackoff:           5 * time.Millisecond,
			BackoffMultiplier:    2,
			RetryableStatusCodes: []int{http.StatusServiceUnavailable},
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	_, err = New(Config{URL: "ftp://proxy"})
	assert.Error(t, err)
	c, err := New(Config{URL: "https://proxy.cannycarrot.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://proxy.cannycarrot.com", c.http.BaseURL())
}

func TestClient_GetSetRoundTrip(t *testing.T) {
	fp := newFakeProxy()
	fp.apiKey = "k1"
	c := newTestClient(t, fp, nil)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "business:b1")
	require.NoError(t, err)
	assert.False(t, found)

	record := `{"profile":{"id":"b1","name":"Clare's Cakes"}}`
	require.NoError(t, c.Set(ctx, "business:b1", record))

	v, found, err := c.Get(ctx, "business:b1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, record, v)

	require.NoError(t, c.Del(ctx, "business:b1"))
	_, found, err = c.Get(ctx, "business:b1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_MGetSetsKeys(t *testing.T) {
	fp := newFakeProxy()
	fp.values["customer:c1"] = "one"
	fp.values["customer:c2"] = "two"
	c := newTestClient(t, fp, nil)
	ctx := context.Background()

	vals, err := c.MGet(ctx, "customer:c1", "customer:missing", "customer:c2")
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.Equal(t, "one", *vals[0])
	assert.Nil(t, vals[1])
	assert.Equal(t, "two", *vals[2])

	require.NoError(t, c.SAdd(ctx, "customers:all", "c1", "c2", "c9"))
	require.NoError(t, c.SRem(ctx, "customers:all", "c9"))
	members, err := c.SMembers(ctx, "customers:all")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, members)

	keys, err := c.Keys(ctx, "customer:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"customer:c1", "customer:c2"}, keys)

	require.NoError(t, c.Ping(ctx))
}

func TestClient_ReadsRetryWritesDoNot(t *testing.T) {
	fp := newFakeProxy()
	fp.values["business:b1"] = "v"
	fp.failFor["get"] = 2
	fp.failFor["set"] = 1
	c := newTestClient(t, fp, nil)
	ctx := context.Background()

	v, found, err := c.Get(ctx, "business:b1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
	assert.Equal(t, 3, fp.calls["get"])

	err = c.Set(ctx, "business:b1", "w")
	require.Error(t, err)
	assert.True(t, errors.Is(err, kvstore.ErrUnavailable))
	assert.Equal(t, 1, fp.calls["set"], "writes are single attempt")
	assert.Equal(t, "v", fp.values["business:b1"])
}

func TestClient_RejectedCommandIsUnavailable(t *testing.T) {
	fp := newFakeProxy()
	fp.apiKey = "right"
	c := newTestClient(t, fp, func(cfg *Config) { cfg.APIKey = "wrong" })

	err := c.Set(context.Background(), "business:b1", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, kvstore.ErrUnavailable))
	assert.Equal(t, CircuitClosed, c.CircuitState(), "4xx does not trip the breaker")
}

func TestClient_CircuitOpensAfterFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(Config{
		URL:            srv.URL,
		Retry:          RetryConfig{MaxRetries: 0, BackoffMultiplier: 1},
		CircuitBreaker: CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Minute},
	})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, _, err := c.Get(ctx, "k")
		require.Error(t, err)
	}
	assert.Equal(t, CircuitOpen, c.CircuitState())

	_, _, err = c.Get(ctx, "k")
	assert.True(t, errors.Is(err, kvstore.ErrUnavailable))
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "open circuit short-circuits")

	stats := c.Stats()
	assert.Equal(t, int64(3), stats["total_requests"])
	assert.Equal(t, "open", stats["circuit_state"])
}

func TestClient_ContextCancelledDuringBackoff(t *testing.T) {
	fp := newFakeProxy()
	fp.failFor["get"] = 10
	c := newTestClient(t, fp, func(cfg *Config) {
		cfg.Retry.InitialBackoff = time.Second
		cfg.Retry.MaxBackoff = time.Second
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestDecodeValue(t *testing.T) {
	v, ok, err := decodeValue(json.RawMessage(`"plain"`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "plain", v)

	_, ok, err = decodeValue(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err = decodeValue(json.RawMessage(` {"profile":{"id":"b1"}} `))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"profile":{"id":"b1"}}`, v)
}
