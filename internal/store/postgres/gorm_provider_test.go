package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shaibs3/pagecache/internal/db_model"
)

// newDryRunDB renders statements without a server
func newDryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=pagecache dbname=pagecache sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Discard,
	})
	require.NoError(t, err)
	return db
}

func TestSelectQuery(t *testing.T) {
	db := newDryRunDB(t)

	tests := []struct {
		name   string
		query  db_model.Query
		offset int
		limit  int
		want   []string
	}{
		{
			name: "filters and order",
			query: db_model.Query{
				Table:   "stories",
				Columns: []string{"slug"},
				Order:   []db_model.OrderBy{{Column: "published_at", Desc: true}, {Column: "slug"}},
			}.Where("status", db_model.OpEq, "published").Where("slug", db_model.OpNotNull, nil),
			offset: 20,
			limit:  10,
			want: []string{
				`SELECT slug FROM "stories"`,
				`status = 'published'`,
				`slug IS NOT NULL`,
				`ORDER BY "published_at" DESC,"slug"`,
				`LIMIT 10 OFFSET 20`,
			},
		},
		{
			name: "comparison operators",
			query: db_model.Query{Table: "news_items"}.
				Where("archived", db_model.OpNeq, true).
				Where("id", db_model.OpGte, 3).
				Where("country", db_model.OpIsNull, nil),
			limit: 5,
			want: []string{
				`SELECT * FROM "news_items"`,
				`archived <> true`,
				`id >= 3`,
				`country IS NULL`,
				`LIMIT 5`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
				var rows []map[string]interface{}
				return selectQuery(tx, tt.query, tt.offset, tt.limit).Find(&rows)
			})
			for _, fragment := range tt.want {
				assert.Contains(t, sql, fragment)
			}
		})
	}
}

func TestDeleteExpiredQuery(t *testing.T) {
	db := newDryRunDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var removed []GormCachePage
		return deleteExpiredQuery(tx, now).Delete(&removed)
	})
	assert.Contains(t, sql, `DELETE FROM "cache_pages"`)
	assert.Contains(t, sql, `expires_at <`)
	assert.Contains(t, sql, `RETURNING "path"`)
}

func TestUpsertStatement(t *testing.T) {
	db := newDryRunDB(t)
	title := "Home"
	row := toGorm(db_model.CachePage{Path: "/", HTML: "<html></html>", Title: &title})

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return upsertQuery(tx).Create(&row)
	})
	assert.Contains(t, sql, `INSERT INTO "cache_pages"`)
	assert.Contains(t, sql, `ON CONFLICT ("path") DO UPDATE SET`)
	assert.Contains(t, sql, `"html"="excluded"."html"`)
}

func TestGormRoundTrip(t *testing.T) {
	desc := "d"
	page := db_model.CachePage{
		Path:             "/volumes/v1",
		HTML:             "<html></html>",
		Description:      &desc,
		GenerationTimeMs: 120,
		HTMLSizeBytes:    13,
		ExpiresAt:        time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		UpdatedAt:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, page, fromGorm(toGorm(page)))
}
