package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/config"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/logging"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/metrics"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/middleware"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore/memory"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/services/console"
)

func testHandler(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logger := logging.NewDiscard("console")
	m := metrics.New()
	svc, err := console.New(console.Config{Store: memory.New(), Logger: logger, Metrics: m})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return buildHandler(ctx, cfg, logger, m, svc)
}

func bearer(t *testing.T, secret, role string) string {
	t.Helper()
	claims := &middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestBuildHandler_AuthChain(t *testing.T) {
	cfg := &config.Config{
		Auth: config.AuthConfig{JWTSecret: "secret"},
		HTTP: config.HTTPConfig{RateLimitRPS: 100, RateLimitBurst: 100, CORSAllowedOrigins: "https://admin.test"},
	}
	h := testHandler(t, cfg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/businesses", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/businesses", nil)
	req.Header.Set("Authorization", bearer(t, "secret", middleware.RoleViewer))
	req.Header.Set("Origin", "https://admin.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://admin.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodDelete, "/api/businesses/business_1", nil)
	req.Header.Set("Authorization", bearer(t, "secret", middleware.RoleViewer))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBuildHandler_NoAuth(t *testing.T) {
	h := testHandler(t, &config.Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/customers/customer_1", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
