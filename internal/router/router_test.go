package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shaibs3/pagecache/internal/telemetry"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(router *mux.Router, logger *zap.Logger) {
	router.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet)
}

func newTestRouter(t *testing.T, burst int) *Router {
	t.Helper()
	tel, err := telemetry.NewTelemetry(zap.NewNop())
	require.NoError(t, err)
	limiter := rate.NewLimiter(rate.Limit(0.0001), burst)
	return NewRouter(limiter, tel, zap.NewNop(), []Handler{pingHandler{}})
}

func TestRouter_RateLimit(t *testing.T) {
	r := newTestRouter(t, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRouter_MetricsAreNotThrottled(t *testing.T) {
	r := newTestRouter(t, 1)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	for i := 0; i < 3; i++ {
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRouter_UnknownRoute(t *testing.T) {
	r := newTestRouter(t, 5)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_CreateServer(t *testing.T) {
	srv := newTestRouter(t, 1).CreateServer(":0")
	assert.Equal(t, ":0", srv.Addr)
	assert.NotNil(t, srv.Handler)
}
