package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTelemetry_ExposesRecordedMetrics(t *testing.T) {
	tel, err := NewTelemetry(zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	tel.Metrics.Render(ctx, 12*time.Millisecond, nil)
	tel.Metrics.Render(ctx, 3*time.Millisecond, errors.New("boom"))
	tel.Metrics.StoreQuery(ctx, "select", nil)
	tel.Metrics.Expired(ctx, 3)

	w := httptest.NewRecorder()
	tel.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "pagecache_render_total")
	require.Contains(t, body, "pagecache_store_queries_total")
	require.Contains(t, body, "pagecache_expired_pages_total")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.Render(ctx, time.Second, nil)
	m.StoreQuery(ctx, "count", nil)
	m.HTTPRequest(ctx, "/x", 200, time.Second)
	m.Enumerated(ctx, "full", 10)
	m.Expired(ctx, 1)
}
