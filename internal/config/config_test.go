package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("RENDER_CONCURRENCY", "")
	t.Setenv("CACHE_TTL", "")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 5, cfg.RenderConcurrency)
	require.Equal(t, 24*time.Hour, cfg.CacheTTL)
	require.Equal(t, 50, cfg.DefaultBatchSize)
	require.Equal(t, "en", cfg.RenderLocale)
	require.Equal(t, DefaultSitemap().StaticRoutes, cfg.Sitemap.StaticRoutes)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("RENDER_CONCURRENCY", "many")
	t.Setenv("CACHE_TTL", "-5m")
	t.Setenv("RPS_LIMIT", "abc")

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 5, cfg.RenderConcurrency)
	require.Equal(t, 24*time.Hour, cfg.CacheTTL)
	require.Equal(t, float64(10), cfg.RPSLimit)
}

func TestLoad_SitemapFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitemap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("staticRoutes: [\"/\", \"/faq\"]\nentityLimit: 25\n"), 0o644))
	t.Setenv("SITEMAP_CONFIG", path)

	cfg, err := Load(zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, []string{"/", "/faq"}, cfg.Sitemap.StaticRoutes)
	require.Equal(t, 25, cfg.Sitemap.EntityLimit)
	require.Equal(t, 24*time.Hour, cfg.Sitemap.RecentDuration())
}

func TestParseSitemap(t *testing.T) {
	sm, err := ParseSitemap([]byte("recentWindow: 12h\nnewsWindow: 72h\n"))
	require.NoError(t, err)
	require.Equal(t, 12*time.Hour, sm.RecentDuration())
	require.Equal(t, 72*time.Hour, sm.NewsDuration())
	require.Equal(t, 500, sm.EntityLimit)

	_, err = ParseSitemap([]byte("staticRoutes: [\"about\"]\n"))
	require.Error(t, err)

	_, err = ParseSitemap([]byte("newsWindow: soon\n"))
	require.Error(t, err)

	_, err = ParseSitemap([]byte("recentWindow: -1h\n"))
	require.Error(t, err)
}

func TestLoad_InvalidSitemapFails(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"route.yaml":    "staticRoutes: [\"about\"]\n",
		"duration.yaml": "recentWindow: soon\n",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		t.Setenv("SITEMAP_CONFIG", path)

		_, err := Load(zap.NewNop())
		require.Error(t, err, name)
	}

	t.Setenv("SITEMAP_CONFIG", filepath.Join(dir, "missing.yaml"))
	_, err := Load(zap.NewNop())
	require.Error(t, err)
}

func TestSitemap_ZeroValueDurationsFallBack(t *testing.T) {
	sm := Sitemap{StaticRoutes: []string{"/"}}
	require.Equal(t, 24*time.Hour, sm.RecentDuration())
	require.Equal(t, 7*24*time.Hour, sm.NewsDuration())
}
