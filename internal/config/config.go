package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the service configuration resolved from the environment
type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// DBConfig is the JSON provider config handed to the store factory
	DBConfig string

	RPSLimit float64
	RPSBurst int

	AdminPassword string

	RendererURL       string
	RenderLocale      string
	RenderTimeout     time.Duration
	RenderConcurrency int

	CacheTTL         time.Duration
	DefaultBatchSize int

	SitemapPath string
	Sitemap     Sitemap
}

// Load reads .env (if present) and the process environment. A sitemap file that
// cannot be read or parsed is an error.
func Load(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", zap.Error(err))
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DBConfig:          getEnv("DB_CONFIG", ""),
		RPSLimit:          getFloat(logger, "RPS_LIMIT", 10),
		RPSBurst:          getInt(logger, "RPS_BURST", 20),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		RendererURL:       getEnv("RENDERER_URL", "http://localhost:3000/api/render"),
		RenderLocale:      getEnv("RENDER_LOCALE", "en"),
		RenderTimeout:     getDuration(logger, "RENDER_TIMEOUT", 30*time.Second),
		RenderConcurrency: getInt(logger, "RENDER_CONCURRENCY", 5),
		CacheTTL:          getDuration(logger, "CACHE_TTL", 24*time.Hour),
		DefaultBatchSize:  getInt(logger, "DEFAULT_BATCH_SIZE", 50),
		SitemapPath:       getEnv("SITEMAP_CONFIG", ""),
	}

	cfg.Sitemap = DefaultSitemap()
	if cfg.SitemapPath != "" {
		sm, err := LoadSitemap(cfg.SitemapPath)
		if err != nil {
			return nil, fmt.Errorf("load sitemap %s: %w", cfg.SitemapPath, err)
		}
		cfg.Sitemap = sm
	}

	if cfg.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD is empty, trigger endpoint will reject every request")
	}

	logger.Info("configuration loaded",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("renderer_url", cfg.RendererURL),
		zap.Int("render_concurrency", cfg.RenderConcurrency),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(logger *zap.Logger, key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logger.Warn("invalid integer in environment, using default",
			zap.String("key", key), zap.String("value", v), zap.Int("default", fallback))
		return fallback
	}
	return n
}

func getFloat(logger *zap.Logger, key string, fallback float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		logger.Warn("invalid number in environment, using default",
			zap.String("key", key), zap.String("value", v), zap.Float64("default", fallback))
		return fallback
	}
	return f
}

func getDuration(logger *zap.Logger, key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logger.Warn("invalid duration in environment, using default",
			zap.String("key", key), zap.String("value", v), zap.Duration("default", fallback))
		return fallback
	}
	return d
}
