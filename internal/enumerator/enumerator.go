package enumerator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/shaibs3/pagecache/internal/config"
	"github.com/shaibs3/pagecache/internal/db_model"
	"github.com/shaibs3/pagecache/internal/telemetry"
)

// RowReader is the paginated read path the enumerator depends on
type RowReader interface {
	FetchAll(ctx context.Context, q db_model.Query) ([]db_model.Row, error)
	FetchUpTo(ctx context.Context, q db_model.Query, limit int) ([]db_model.Row, error)
}

// Result is the outcome of one enumeration
type Result struct {
	Mode  Mode
	Paths []string

	// Queried is the number of store-backed categories attempted
	Queried int

	// Failed names the categories whose query failed and were left out
	Failed []string

	// Err aggregates the per-category errors
	Err error
}

// TotalFailure reports whether every store-backed category failed
func (r Result) TotalFailure() bool {
	return r.Queried > 0 && len(r.Failed) == r.Queried
}

// Enumerator lists the site paths a refresh mode must cache
type Enumerator struct {
	reader  RowReader
	sitemap config.Sitemap
	logger  *zap.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

func NewEnumerator(reader RowReader, sitemap config.Sitemap, logger *zap.Logger, metrics *telemetry.Metrics) *Enumerator {
	return &Enumerator{
		reader:  reader,
		sitemap: sitemap,
		logger:  logger.Named("enumerator"),
		metrics: metrics,
		now:     time.Now,
	}
}

// WithClock replaces the time source used for the recent and news windows
func (e *Enumerator) WithClock(now func() time.Time) *Enumerator {
	e.now = now
	return e
}

func (e *Enumerator) plan(mode Mode) (static bool, cats []category) {
	now := e.now().UTC()
	switch mode {
	case ModeFull:
		return true, []category{
			navigationCategory(),
			newsHistoryCategory(),
			newsWindowCategory(now.Add(-e.sitemap.NewsDuration())),
			storiesCategory(nil),
			datesCategory(),
			chaptersCategory(),
			volumesCategory(),
			entitiesCategory(e.sitemap.EntityLimit),
		}
	case ModeRecent:
		since := now.Add(-e.sitemap.RecentDuration())
		return true, []category{
			navigationCategory(),
			newsWindowCategory(since),
			storiesCategory(&since),
		}
	case ModeNewsWindow:
		return false, []category{
			newsWindowCategory(now.Add(-e.sitemap.NewsDuration())),
		}
	}
	return false, nil
}

// Enumerate returns the sorted, de-duplicated paths for mode. A category whose
// query fails is left out and recorded in the result; the returned error is
// reserved for an unknown mode.
func (e *Enumerator) Enumerate(ctx context.Context, mode Mode) (Result, error) {
	if !mode.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	static, cats := e.plan(mode)

	set := make(map[string]struct{})
	if static {
		for _, p := range e.sitemap.StaticRoutes {
			set[p] = struct{}{}
		}
	}

	res := Result{Mode: mode, Queried: len(cats)}
	for _, c := range cats {
		rows, err := e.fetch(ctx, c)
		if err != nil {
			// partial rows are dropped along with the category
			e.logger.Warn("category skipped",
				zap.String("mode", mode.String()),
				zap.String("category", c.name),
				zap.Error(err))
			res.Failed = append(res.Failed, c.name)
			res.Err = multierr.Append(res.Err, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		for _, r := range rows {
			for _, p := range c.paths(r) {
				set[p] = struct{}{}
			}
		}
	}

	res.Paths = make([]string, 0, len(set))
	for p := range set {
		res.Paths = append(res.Paths, p)
	}
	sort.Strings(res.Paths)

	e.metrics.Enumerated(ctx, mode.String(), len(res.Paths))
	e.logger.Info("enumeration finished",
		zap.String("mode", mode.String()),
		zap.Int("paths", len(res.Paths)),
		zap.Strings("failed_categories", res.Failed))
	return res, nil
}

func (e *Enumerator) fetch(ctx context.Context, c category) ([]db_model.Row, error) {
	if c.limit > 0 {
		return e.reader.FetchUpTo(ctx, c.query, c.limit)
	}
	return e.reader.FetchAll(ctx, c.query)
}
