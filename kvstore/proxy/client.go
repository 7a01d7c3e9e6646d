// Package proxy is a kvstore.Store backed by the Canny Carrot proxy API.
//
// Every command is a POST to {base}/api/v1/redis/{command} with a JSON body
// {"args":[...]}; the proxy answers {"success":bool,"data":...,"error":"..."}.
// Read commands are retried on transient failures; write commands are sent
// exactly once. A circuit breaker guards all calls.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/httputil"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore"
)

const (
	commandPath = "/api/v1/redis/"
	healthPath  = "/health"
)

// Config holds client configuration.
type Config struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client

	Retry          RetryConfig
	CircuitBreaker CircuitBreakerConfig
}

// Client talks to the proxy API.
type Client struct {
	http    *httputil.ServiceClient
	retry   RetryConfig
	breaker *CircuitBreaker

	totalRequests   int64
	failedRequests  int64
	retriedRequests int64
}

var _ kvstore.Store = (*Client)(nil)

// New creates a proxy client. The base URL is fixed for the client's lifetime.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("proxy URL is required")
	}
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return nil, fmt.Errorf("proxy URL must be http(s): %q", cfg.URL)
	}

	retry := cfg.Retry
	if retry.BackoffMultiplier == 0 {
		retry = DefaultRetryConfig()
	}
	breakerCfg := cfg.CircuitBreaker
	if breakerCfg.Timeout == 0 {
		breakerCfg = DefaultCircuitBreakerConfig()
	}

	return &Client{
		http: httputil.NewServiceClient(httputil.ServiceClientConfig{
			BaseURL:    cfg.URL,
			APIKey:     cfg.APIKey,
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
		}),
		retry:   retry,
		breaker: NewCircuitBreaker(breakerCfg),
	}, nil
}

type commandRequest struct {
	Args []interface{} `json:"args"`
}

type commandResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
}

// call sends one command. Reads pass idempotent=true to enable retries.
func (c *Client) call(ctx context.Context, command string, idempotent bool, args ...interface{}) (json.RawMessage, error) {
	atomic.AddInt64(&c.totalRequests, 1)

	if err := c.breaker.Allow(); err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		return nil, kvstore.Unavailable(command, err)
	}

	if args == nil {
		args = []interface{}{}
	}
	body := commandRequest{Args: args}

	maxRetries := 0
	if idempotent {
		maxRetries = c.retry.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			atomic.AddInt64(&c.retriedRequests, 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retry.backoff(attempt)):
			}
		}

		data, retry, err := c.send(ctx, command, body)
		if err == nil {
			c.breaker.RecordSuccess()
			return data, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
		if !retry {
			break
		}
	}

	atomic.AddInt64(&c.failedRequests, 1)
	var rejected *rejectedError
	if !errors.As(lastErr, &rejected) {
		c.breaker.RecordFailure(lastErr)
	}
	return nil, kvstore.Unavailable(command, lastErr)
}

// send performs a single HTTP exchange and reports whether a failure is
// worth retrying.
func (c *Client) send(ctx context.Context, command string, body commandRequest) (json.RawMessage, bool, error) {
	resp, err := c.http.Post(ctx, commandPath+command, body)
	if err != nil {
		return nil, retryableError(err), err
	}

	var out commandResponse
	err = httputil.DecodeResponse(resp, &out)
	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests {
			return nil, false, &rejectedError{status: statusErr.StatusCode, message: statusErr.Body}
		}
		return nil, c.retry.retryableStatus(statusErr.StatusCode), err
	}
	if err != nil {
		return nil, false, err
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "proxy reported failure"
		}
		return nil, false, &rejectedError{status: resp.StatusCode, message: msg}
	}
	return out.Data, false, nil
}

// rejectedError is a well-formed refusal from the proxy (4xx or
// success=false). It does not count against the circuit breaker.
type rejectedError struct {
	status  int
	message string
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("proxy rejected command (status %d): %s", e.status, e.message)
}

// =============================================================================
// kvstore.Store
// =============================================================================

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	data, err := c.call(ctx, "get", true, key)
	if err != nil {
		return "", false, err
	}
	v, ok, err := decodeValue(data)
	if err != nil {
		return "", false, kvstore.Unavailable("get", err)
	}
	return v, ok, nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	_, err := c.call(ctx, "set", false, key, value)
	return err
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.call(ctx, "del", false, toArgs(keys)...)
	return err
}

func (c *Client) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	data, err := c.call(ctx, "mget", true, toArgs(keys)...)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, kvstore.Unavailable("mget", fmt.Errorf("decode data: %w", err))
	}
	if len(raw) != len(keys) {
		return nil, kvstore.Unavailable("mget", fmt.Errorf("got %d values for %d keys", len(raw), len(keys)))
	}
	out := make([]*string, len(raw))
	for i, item := range raw {
		v, ok, err := decodeValue(item)
		if err != nil {
			return nil, kvstore.Unavailable("mget", err)
		}
		if ok {
			out[i] = &v
		}
	}
	return out, nil
}

func (c *Client) SMembers(ctx context.Context, set string) ([]string, error) {
	data, err := c.call(ctx, "smembers", true, set)
	if err != nil {
		return nil, err
	}
	return decodeStrings("smembers", data)
}

func (c *Client) SAdd(ctx context.Context, set string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	_, err := c.call(ctx, "sadd", false, append([]interface{}{set}, toArgs(members)...)...)
	return err
}

func (c *Client) SRem(ctx context.Context, set string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	_, err := c.call(ctx, "srem", false, append([]interface{}{set}, toArgs(members)...)...)
	return err
}

func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	data, err := c.call(ctx, "keys", true, pattern)
	if err != nil {
		return nil, err
	}
	return decodeStrings("keys", data)
}

// Ping checks the proxy health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.Get(ctx, healthPath)
	if err != nil {
		return kvstore.Unavailable("ping", err)
	}
	if err := httputil.DecodeResponse(resp, nil); err != nil {
		return kvstore.Unavailable("ping", err)
	}
	return nil
}

// Stats returns request counters and the breaker state for /info.
func (c *Client) Stats() map[string]any {
	return map[string]any{
		"total_requests":   atomic.LoadInt64(&c.totalRequests),
		"failed_requests":  atomic.LoadInt64(&c.failedRequests),
		"retried_requests": atomic.LoadInt64(&c.retriedRequests),
		"circuit_state":    c.breaker.State().String(),
	}
}

// CircuitState returns the current breaker state.
func (c *Client) CircuitState() CircuitState {
	return c.breaker.State()
}

// decodeValue turns a command result into a string value. JSON null means
// absent; a JSON string is unquoted; any other JSON value is returned as its
// raw text, since some proxy deployments hand back parsed objects.
func decodeValue(data json.RawMessage) (string, bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false, fmt.Errorf("decode value: %w", err)
		}
		return s, true, nil
	}
	return string(trimmed), true, nil
}

func decodeStrings(command string, data json.RawMessage) ([]string, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, kvstore.Unavailable(command, fmt.Errorf("decode data: %w", err))
	}
	return out, nil
}

func toArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
