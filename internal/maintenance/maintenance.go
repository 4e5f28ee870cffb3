package maintenance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shaibs3/pagecache/internal/db_model"
	"github.com/shaibs3/pagecache/internal/telemetry"
)

// DefaultSampleSize caps the page listing returned with stats
const DefaultSampleSize = 1000

// ExpiringStore deletes stale cache pages
type ExpiringStore interface {
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}

// RowReader is the paginated read path used for aggregation
type RowReader interface {
	FetchAll(ctx context.Context, q db_model.Query) ([]db_model.Row, error)
	Count(ctx context.Context, q db_model.Query) (int64, error)
}

// ExpireResult lists the pages removed by one sweep
type ExpireResult struct {
	Deleted int      `json:"deleted"`
	Paths   []string `json:"paths"`
}

// PageSummary is the lightweight projection of a cache page
type PageSummary struct {
	Path             string    `json:"path"`
	Title            *string   `json:"title"`
	HTMLSizeBytes    int64     `json:"htmlSizeBytes"`
	GenerationTimeMs int64     `json:"generationTimeMs"`
	UpdatedAt        time.Time `json:"updatedAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// Stats holds totals over the whole cache plus a capped sample of the most recently updated pages
type Stats struct {
	TotalPages              int           `json:"totalPages"`
	TotalSizeBytes          int64         `json:"totalSizeBytes"`
	AverageSizeBytes        float64       `json:"averageSizeBytes"`
	AverageGenerationTimeMs float64       `json:"averageGenerationTimeMs"`
	ExpiredPages            int64         `json:"expiredPages"`
	SampleSize              int           `json:"sampleSize"`
	Pages                   []PageSummary `json:"pages"`
}

var summaryColumns = []string{"path", "title", "html_size_bytes", "generation_time_ms", "updated_at", "expires_at"}

type Maintainer struct {
	store      ExpiringStore
	reader     RowReader
	sampleSize int
	logger     *zap.Logger
	metrics    *telemetry.Metrics
	now        func() time.Time
}

func NewMaintainer(store ExpiringStore, reader RowReader, sampleSize int, logger *zap.Logger, metrics *telemetry.Metrics) *Maintainer {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Maintainer{
		store:      store,
		reader:     reader,
		sampleSize: sampleSize,
		logger:     logger.Named("maintenance"),
		metrics:    metrics,
		now:        time.Now,
	}
}

// WithClock replaces the time source that decides expiry
func (m *Maintainer) WithClock(now func() time.Time) *Maintainer {
	m.now = now
	return m
}

// ExpireStale removes every page whose expiry is in the past in one delete
func (m *Maintainer) ExpireStale(ctx context.Context) (ExpireResult, error) {
	paths, err := m.store.DeleteExpired(ctx, m.now().UTC())
	if err != nil {
		return ExpireResult{}, fmt.Errorf("expire stale pages: %w", err)
	}
	if paths == nil {
		paths = []string{}
	}
	m.metrics.Expired(ctx, len(paths))
	m.logger.Info("expired stale pages", zap.Int("deleted", len(paths)))
	return ExpireResult{Deleted: len(paths), Paths: paths}, nil
}

// Stats aggregates over every cache page, reading past the store's page cap
func (m *Maintainer) Stats(ctx context.Context) (Stats, error) {
	rows, err := m.reader.FetchAll(ctx, db_model.Query{
		Table:   db_model.CachePagesTable,
		Columns: summaryColumns,
		Order:   []db_model.OrderBy{{Column: "updated_at", Desc: true}, {Column: "path"}},
	})
	if err != nil {
		// partial rows would under-report the totals
		return Stats{}, fmt.Errorf("collect cache stats: %w", err)
	}

	expired, err := m.reader.Count(ctx, db_model.Query{Table: db_model.CachePagesTable}.
		Where("expires_at", db_model.OpLt, m.now().UTC()))
	if err != nil {
		return Stats{}, fmt.Errorf("count expired pages: %w", err)
	}

	st := Stats{TotalPages: len(rows), ExpiredPages: expired, Pages: []PageSummary{}}
	var totalGen int64
	for i, r := range rows {
		st.TotalSizeBytes += r.Int("html_size_bytes")
		totalGen += r.Int("generation_time_ms")
		if i < m.sampleSize {
			st.Pages = append(st.Pages, PageSummary{
				Path:             r.String("path"),
				Title:            r.NullString("title"),
				HTMLSizeBytes:    r.Int("html_size_bytes"),
				GenerationTimeMs: r.Int("generation_time_ms"),
				UpdatedAt:        r.Time("updated_at"),
				ExpiresAt:        r.Time("expires_at"),
			})
		}
	}
	if st.TotalPages > 0 {
		st.AverageSizeBytes = float64(st.TotalSizeBytes) / float64(st.TotalPages)
		st.AverageGenerationTimeMs = float64(totalGen) / float64(st.TotalPages)
	}
	st.SampleSize = len(st.Pages)
	return st, nil
}
