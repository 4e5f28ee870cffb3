package app

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shaibs3/pagecache/internal/config"
)

func testConfig(rendererURL string) *config.Config {
	return &config.Config{
		Port:              "0",
		Environment:       "test",
		LogLevel:          "info",
		RPSLimit:          100,
		RPSBurst:          100,
		AdminPassword:     "pw",
		RendererURL:       rendererURL,
		RenderLocale:      "en",
		RenderTimeout:     5 * time.Second,
		RenderConcurrency: 5,
		CacheTTL:          24 * time.Hour,
		DefaultBatchSize:  50,
		Sitemap:           config.DefaultSitemap(),
	}
}

func TestNewApp_ServesTriggerEndpoint(t *testing.T) {
	renderSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, "<title>%s</title>", r.URL.Query().Get("path"))
	}))
	defer renderSrv.Close()

	app, err := NewApp(testConfig(renderSrv.URL), zap.NewNop())
	require.NoError(t, err)
	defer app.components.Close()

	for _, tc := range []struct {
		target string
		status int
	}{
		{"/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/v1/cache?action=stats", http.StatusUnauthorized},
		{"/v1/cache?action=refresh-all&password=pw&info=true", http.StatusOK},
		{"/v1/cache?action=refresh-all&password=pw", http.StatusOK},
		{"/v1/cache?action=stats&password=pw", http.StatusOK},
	} {
		w := httptest.NewRecorder()
		app.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.target, nil))
		assert.Equal(t, tc.status, w.Code, tc.target)
	}

	// the six default static routes were rendered into the memory store
	w := httptest.NewRecorder()
	app.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/cache?action=stats&password=pw", nil))
	assert.Contains(t, w.Body.String(), `"totalPages":6`)
}

func TestNewApp_InvalidStoreConfig(t *testing.T) {
	cfg := testConfig("http://localhost:3000")
	cfg.DBConfig = `{"db_type":"cassandra"}`
	_, err := NewApp(cfg, zap.NewNop())
	require.Error(t, err)
}

func TestNewApp_InvalidRendererURL(t *testing.T) {
	_, err := NewApp(testConfig("gopher://renderer"), zap.NewNop())
	require.Error(t, err)
}
