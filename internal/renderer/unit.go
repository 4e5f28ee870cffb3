package renderer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shaibs3/pagecache/internal/db_model"
	"github.com/shaibs3/pagecache/internal/telemetry"
)

// Renderer turns a site path into an HTML document
type Renderer interface {
	Render(ctx context.Context, path string) (string, error)
}

// PageWriter persists cache pages
type PageWriter interface {
	UpsertCachePage(ctx context.Context, page db_model.CachePage) error
}

// Outcome is the per-path result of one render-and-persist call
type Outcome struct {
	Path    string `json:"path"`
	Success bool   `json:"success"`
	TimeMs  int64  `json:"timeMs"`
	Error   string `json:"error,omitempty"`
}

// Unit renders one path and upserts its cache page. It is the only writer of cache pages.
type Unit struct {
	renderer Renderer
	writer   PageWriter
	ttl      time.Duration
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

func NewUnit(r Renderer, w PageWriter, ttl time.Duration, logger *zap.Logger, metrics *telemetry.Metrics) *Unit {
	return &Unit{
		renderer: r,
		writer:   w,
		ttl:      ttl,
		logger:   logger.Named("render_unit"),
		metrics:  metrics,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for updatedAt and expiresAt
func (u *Unit) WithClock(now func() time.Time) *Unit {
	u.now = now
	return u
}

// RenderAndStore renders path and overwrites its cache page. A failed render writes nothing.
func (u *Unit) RenderAndStore(ctx context.Context, path string) Outcome {
	start := time.Now()
	doc, err := u.renderer.Render(ctx, path)
	elapsed := time.Since(start)
	out := Outcome{Path: path, TimeMs: elapsed.Milliseconds()}
	if err != nil {
		u.metrics.Render(ctx, elapsed, err)
		u.logger.Warn("render failed", zap.String("path", path), zap.Error(err))
		out.Error = err.Error()
		return out
	}

	md := ExtractMetadata(doc)
	now := u.now().UTC()
	page := db_model.CachePage{
		Path:             path,
		HTML:             doc,
		Title:            md.Title,
		Description:      md.Description,
		CanonicalURL:     md.CanonicalURL,
		GenerationTimeMs: out.TimeMs,
		HTMLSizeBytes:    int64(len(doc)),
		ExpiresAt:        now.Add(u.ttl),
		UpdatedAt:        now,
	}
	if err := u.writer.UpsertCachePage(ctx, page); err != nil {
		u.metrics.Render(ctx, elapsed, err)
		u.logger.Error("persist failed after render", zap.String("path", path), zap.Error(err))
		out.Error = err.Error()
		return out
	}

	u.metrics.Render(ctx, elapsed, nil)
	u.logger.Debug("page cached",
		zap.String("path", path),
		zap.Int64("time_ms", out.TimeMs),
		zap.Int64("size_bytes", page.HTMLSizeBytes))
	out.Success = true
	return out
}
