package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/shaibs3/pagecache/internal/db_model"
	"github.com/shaibs3/pagecache/internal/store/shared"
	"github.com/shaibs3/pagecache/internal/telemetry"
)

// dialect captures the per-driver differences of the SQL provider
type dialect struct {
	driver string

	// arg adapts a bound value before it reaches the driver
	arg func(interface{}) interface{}
}

var (
	postgresDialect = dialect{driver: "postgres", arg: func(v interface{}) interface{} { return v }}
	// sqlite compares timestamps as text, so every bound time is pinned to UTC
	sqliteDialect = dialect{driver: "sqlite", arg: func(v interface{}) interface{} {
		if t, ok := v.(time.Time); ok {
			return t.UTC()
		}
		return v
	}}
)

var sqlOps = map[db_model.Op]string{
	db_model.OpEq:      "=",
	db_model.OpNeq:     "<>",
	db_model.OpGt:      ">",
	db_model.OpGte:     ">=",
	db_model.OpLt:      "<",
	db_model.OpLte:     "<=",
	db_model.OpIsNull:  "IS NULL",
	db_model.OpNotNull: "IS NOT NULL",
}

const cachePageColumns = "path, html, title, description, canonical_url, generation_time_ms, html_size_bytes, expires_at, updated_at"

// SQLProvider serves the store contract over database/sql, for Postgres (lib/pq) or SQLite (modernc)
type SQLProvider struct {
	db      *sqlx.DB
	dialect dialect
	logger  *zap.Logger
	cb      shared.Breakers
	pageCap int
	metrics *telemetry.Metrics
}

func NewSQLProvider(config DbProviderConfig, logger *zap.Logger, metrics *telemetry.Metrics) (*SQLProvider, error) {
	var d dialect
	switch config.DbType {
	case DbTypePostgres:
		d = postgresDialect
	case DbTypeSQLite:
		d = sqliteDialect
	default:
		return nil, fmt.Errorf("sql provider does not support %s", config.DbType)
	}
	sqlLogger := logger.Named(d.driver)

	connStr, err := config.ConnStr()
	if err != nil {
		return nil, err
	}
	pageCap, err := config.PageCap()
	if err != nil {
		return nil, err
	}
	sqlLogger.Info("initializing SQL provider", zap.String("driver", d.driver), zap.Int("page_cap", pageCap))

	dbConn, err := sqlx.Open(d.driver, connStr)
	if err != nil {
		sqlLogger.Error("failed to open connection", zap.Error(err))
		return nil, fmt.Errorf("failed to open %s connection: %w", d.driver, err)
	}
	if d.driver == "sqlite" {
		// a single connection keeps :memory: databases shared across calls
		dbConn.SetMaxOpenConns(1)
	}

	if err := dbConn.Ping(); err != nil {
		sqlLogger.Error("failed to ping database", zap.Error(err))
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", d.driver, err)
	}

	// Automatically create the cache table if it does not exist
	if _, err := dbConn.Exec(db_model.Schema); err != nil {
		sqlLogger.Error("failed to create cache table", zap.Error(err))
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}

	sqlLogger.Info("SQL provider initialized successfully")
	return &SQLProvider{
		db:      dbConn,
		dialect: d,
		logger:  sqlLogger,
		cb:      shared.NewBreakers(strings.ToUpper(d.driver[:1]) + d.driver[1:] + "DB"),
		pageCap: pageCap,
		metrics: metrics,
	}, nil
}

// DB exposes the underlying handle, used to seed content tables
func (p *SQLProvider) DB() *sqlx.DB {
	return p.db
}

func (p *SQLProvider) PageCap() int {
	return p.pageCap
}

// whereClause renders filters with ? placeholders
func (p *SQLProvider) whereClause(filters []db_model.Filter) (string, []interface{}) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]interface{}, 0, len(filters))
	for _, f := range filters {
		if f.Op.Unary() {
			parts = append(parts, fmt.Sprintf("%s %s", f.Column, sqlOps[f.Op]))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s ?", f.Column, sqlOps[f.Op]))
		args = append(args, p.dialect.arg(f.Value))
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func orderClause(order []db_model.OrderBy) string {
	if len(order) == 0 {
		return ""
	}
	parts := make([]string, 0, len(order))
	for _, o := range order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, o.Column+" "+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

// buildSelect renders one ranged read
func (p *SQLProvider) buildSelect(q db_model.Query, offset, limit int) (string, []interface{}) {
	cols := "*"
	if len(q.Columns) > 0 {
		cols = strings.Join(q.Columns, ", ")
	}
	where, args := p.whereClause(q.Filters)
	query := fmt.Sprintf("SELECT %s FROM %s%s%s LIMIT ? OFFSET ?", cols, q.Table, where, orderClause(q.Order))
	args = append(args, limit, offset)
	return p.db.Rebind(query), args
}

func (p *SQLProvider) Select(ctx context.Context, q db_model.Query, from, to int) ([]db_model.Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	offset, limit := shared.ClampRange(from, to, p.pageCap)
	if limit == 0 {
		return []db_model.Row{}, nil
	}
	query, args := p.buildSelect(q, offset, limit)

	res, err := shared.Read(ctx, p.logger, p.cb.Read, "select", func() (interface{}, error) {
		rows, err := p.db.QueryxContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		out := []db_model.Row{}
		for rows.Next() {
			m := map[string]interface{}{}
			if err := rows.MapScan(m); err != nil {
				return nil, err
			}
			for k, v := range m {
				if b, ok := v.([]byte); ok {
					m[k] = string(b)
				}
			}
			out = append(out, db_model.Row(m))
		}
		return out, rows.Err()
	})
	p.metrics.StoreQuery(ctx, "select", err)
	if err != nil {
		return nil, fmt.Errorf("select from %s [%d,%d]: %w", q.Table, from, to, err)
	}
	return res.([]db_model.Row), nil
}

func (p *SQLProvider) Count(ctx context.Context, q db_model.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	where, args := p.whereClause(q.Filters)
	query := p.db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s%s", q.Table, where))

	res, err := shared.Read(ctx, p.logger, p.cb.Read, "count", func() (interface{}, error) {
		var n int64
		err := p.db.GetContext(ctx, &n, query, args...)
		return n, err
	})
	p.metrics.StoreQuery(ctx, "count", err)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Table, err)
	}
	return res.(int64), nil
}

func (p *SQLProvider) UpsertCachePage(ctx context.Context, page db_model.CachePage) error {
	query := p.db.Rebind(`
		INSERT INTO cache_pages (` + cachePageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET
			html = EXCLUDED.html,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			canonical_url = EXCLUDED.canonical_url,
			generation_time_ms = EXCLUDED.generation_time_ms,
			html_size_bytes = EXCLUDED.html_size_bytes,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`)
	_, err := shared.Write(p.cb.Write, func() (interface{}, error) {
		return p.db.ExecContext(ctx, query,
			page.Path,
			page.HTML,
			page.Title,
			page.Description,
			page.CanonicalURL,
			page.GenerationTimeMs,
			page.HTMLSizeBytes,
			p.dialect.arg(page.ExpiresAt),
			p.dialect.arg(page.UpdatedAt),
		)
	})
	p.metrics.StoreQuery(ctx, "upsert", err)
	if err != nil {
		return fmt.Errorf("upsert cache page %s: %w", page.Path, err)
	}
	return nil
}

func (p *SQLProvider) GetCachePage(ctx context.Context, path string) (*db_model.CachePage, error) {
	query := p.db.Rebind(`SELECT ` + cachePageColumns + ` FROM cache_pages WHERE path = ?`)
	res, err := shared.Read(ctx, p.logger, p.cb.Read, "get", func() (interface{}, error) {
		var page db_model.CachePage
		err := p.db.GetContext(ctx, &page, query, path)
		if errors.Is(err, sql.ErrNoRows) {
			return (*db_model.CachePage)(nil), nil
		}
		if err != nil {
			return nil, err
		}
		return &page, nil
	})
	p.metrics.StoreQuery(ctx, "get", err)
	if err != nil {
		return nil, fmt.Errorf("get cache page %s: %w", path, err)
	}
	return res.(*db_model.CachePage), nil
}

func (p *SQLProvider) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	query := p.db.Rebind(`DELETE FROM cache_pages WHERE expires_at < ? RETURNING path`)
	res, err := shared.Write(p.cb.Write, func() (interface{}, error) {
		var paths []string
		if err := p.db.SelectContext(ctx, &paths, query, p.dialect.arg(now)); err != nil {
			return nil, err
		}
		return paths, nil
	})
	p.metrics.StoreQuery(ctx, "delete_expired", err)
	if err != nil {
		return nil, fmt.Errorf("delete expired cache pages: %w", err)
	}
	paths := res.([]string)
	if paths == nil {
		paths = []string{}
	}
	return paths, nil
}

func (p *SQLProvider) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *SQLProvider) Close() error {
	return p.db.Close()
}
