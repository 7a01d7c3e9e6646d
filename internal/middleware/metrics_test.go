package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/logging"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/metrics"
)

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	m := metrics.New()
	router := mux.NewRouter()
	router.Use(MetricsMiddleware("console", m))
	router.HandleFunc("/api/businesses/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	for _, id := range []string{"b1", "b2", "b3"} {
		serve(router, httptest.NewRequest(http.MethodGet, "/api/businesses/"+id, nil))
	}

	n, err := testutil.GatherAndCount(m.Registry(), "canny_console_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "one series per route template")
}

func TestTracingMiddleware(t *testing.T) {
	tm := NewTracingMiddleware(logging.NewDiscard("test"))

	var seen string
	h := tm.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.GetTraceID(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	rec := serve(h, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "trace-123", seen)
	assert.Equal(t, "trace-123", rec.Header().Get("X-Trace-ID"))

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "trace-123", seen)
	assert.Equal(t, seen, rec.Header().Get("X-Trace-ID"))
}
