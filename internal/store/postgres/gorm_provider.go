package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shaibs3/pagecache/internal/db_model"
	"github.com/shaibs3/pagecache/internal/store/shared"
	"github.com/shaibs3/pagecache/internal/telemetry"
)

var gormOps = map[db_model.Op]string{
	db_model.OpEq:  "=",
	db_model.OpNeq: "<>",
	db_model.OpGt:  ">",
	db_model.OpGte: ">=",
	db_model.OpLt:  "<",
	db_model.OpLte: "<=",
}

type PostgresProvider struct {
	gormDB  *gorm.DB
	logger  *zap.Logger
	cb      shared.Breakers
	pageCap int
	metrics *telemetry.Metrics
}

func NewPostgresProvider(config shared.DbProviderConfig, logger *zap.Logger, metrics *telemetry.Metrics) (*PostgresProvider, error) {
	pgLogger := logger.Named("gorm")

	connStr, err := config.ConnStr()
	if err != nil {
		return nil, err
	}
	pageCap, err := config.PageCap()
	if err != nil {
		return nil, err
	}
	pgLogger.Info("initializing GORM provider", zap.Int("page_cap", pageCap))

	gormDB, err := gorm.Open(postgres.Open(connStr), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}
	if err := gormDB.AutoMigrate(&GormCachePage{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}

	pgLogger.Info("GORM provider initialized successfully")
	return &PostgresProvider{
		gormDB:  gormDB,
		logger:  pgLogger,
		cb:      shared.NewBreakers("GormDB"),
		pageCap: pageCap,
		metrics: metrics,
	}, nil
}

func (p *PostgresProvider) PageCap() int {
	return p.pageCap
}

func applyFilters(tx *gorm.DB, filters []db_model.Filter) *gorm.DB {
	for _, f := range filters {
		switch f.Op {
		case db_model.OpIsNull:
			tx = tx.Where(f.Column + " IS NULL")
		case db_model.OpNotNull:
			tx = tx.Where(f.Column + " IS NOT NULL")
		default:
			tx = tx.Where(fmt.Sprintf("%s %s ?", f.Column, gormOps[f.Op]), f.Value)
		}
	}
	return tx
}

// selectQuery chains one ranged read of q onto tx
func selectQuery(tx *gorm.DB, q db_model.Query, offset, limit int) *gorm.DB {
	tx = tx.Table(q.Table)
	if len(q.Columns) > 0 {
		tx = tx.Select(q.Columns)
	}
	tx = applyFilters(tx, q.Filters)
	for _, o := range q.Order {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	return tx.Offset(offset).Limit(limit)
}

func (p *PostgresProvider) Select(ctx context.Context, q db_model.Query, from, to int) ([]db_model.Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	offset, limit := shared.ClampRange(from, to, p.pageCap)
	if limit == 0 {
		return []db_model.Row{}, nil
	}

	res, err := shared.Read(ctx, p.logger, p.cb.Read, "select", func() (interface{}, error) {
		var rows []map[string]interface{}
		if err := selectQuery(p.gormDB.WithContext(ctx), q, offset, limit).Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]db_model.Row, len(rows))
		for i, r := range rows {
			out[i] = db_model.Row(r)
		}
		return out, nil
	})
	p.metrics.StoreQuery(ctx, "select", err)
	if err != nil {
		return nil, fmt.Errorf("select from %s [%d,%d]: %w", q.Table, from, to, err)
	}
	return res.([]db_model.Row), nil
}

func (p *PostgresProvider) Count(ctx context.Context, q db_model.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	res, err := shared.Read(ctx, p.logger, p.cb.Read, "count", func() (interface{}, error) {
		var n int64
		err := applyFilters(p.gormDB.WithContext(ctx).Table(q.Table), q.Filters).Count(&n).Error
		return n, err
	})
	p.metrics.StoreQuery(ctx, "count", err)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Table, err)
	}
	return res.(int64), nil
}

func toGorm(page db_model.CachePage) GormCachePage {
	return GormCachePage{
		Path:             page.Path,
		HTML:             page.HTML,
		Title:            page.Title,
		Description:      page.Description,
		CanonicalURL:     page.CanonicalURL,
		GenerationTimeMs: page.GenerationTimeMs,
		HTMLSizeBytes:    page.HTMLSizeBytes,
		ExpiresAt:        page.ExpiresAt,
		UpdatedAt:        page.UpdatedAt,
	}
}

func fromGorm(g GormCachePage) db_model.CachePage {
	return db_model.CachePage{
		Path:             g.Path,
		HTML:             g.HTML,
		Title:            g.Title,
		Description:      g.Description,
		CanonicalURL:     g.CanonicalURL,
		GenerationTimeMs: g.GenerationTimeMs,
		HTMLSizeBytes:    g.HTMLSizeBytes,
		ExpiresAt:        g.ExpiresAt,
		UpdatedAt:        g.UpdatedAt,
	}
}

// upsertQuery overwrites every column of an existing page with the same path
func upsertQuery(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		UpdateAll: true,
	})
}

func (p *PostgresProvider) UpsertCachePage(ctx context.Context, page db_model.CachePage) error {
	row := toGorm(page)
	_, err := shared.Write(p.cb.Write, func() (interface{}, error) {
		return nil, upsertQuery(p.gormDB.WithContext(ctx)).Create(&row).Error
	})
	p.metrics.StoreQuery(ctx, "upsert", err)
	if err != nil {
		return fmt.Errorf("upsert cache page %s: %w", page.Path, err)
	}
	return nil
}

func (p *PostgresProvider) GetCachePage(ctx context.Context, path string) (*db_model.CachePage, error) {
	res, err := shared.Read(ctx, p.logger, p.cb.Read, "get", func() (interface{}, error) {
		var row GormCachePage
		err := p.gormDB.WithContext(ctx).Where("path = ?", path).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return (*db_model.CachePage)(nil), nil // Not found is not an error
		}
		if err != nil {
			return nil, err
		}
		page := fromGorm(row)
		return &page, nil
	})
	p.metrics.StoreQuery(ctx, "get", err)
	if err != nil {
		return nil, fmt.Errorf("get cache page %s: %w", path, err)
	}
	return res.(*db_model.CachePage), nil
}

func deleteExpiredQuery(tx *gorm.DB, now time.Time) *gorm.DB {
	return tx.Clauses(clause.Returning{Columns: []clause.Column{{Name: "path"}}}).
		Where("expires_at < ?", now)
}

func (p *PostgresProvider) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	res, err := shared.Write(p.cb.Write, func() (interface{}, error) {
		var removed []GormCachePage
		err := deleteExpiredQuery(p.gormDB.WithContext(ctx), now).Delete(&removed).Error
		return removed, err
	})
	p.metrics.StoreQuery(ctx, "delete_expired", err)
	if err != nil {
		return nil, fmt.Errorf("delete expired cache pages: %w", err)
	}
	removed := res.([]GormCachePage)
	paths := make([]string, 0, len(removed))
	for _, r := range removed {
		paths = append(paths, r.Path)
	}
	return paths, nil
}

func (p *PostgresProvider) Ping(ctx context.Context) error {
	sqlDB, err := p.gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (p *PostgresProvider) Close() error {
	sqlDB, err := p.gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
