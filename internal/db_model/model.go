package db_model

import "time"

// CachePagesTable is the table holding pre-rendered pages
const CachePagesTable = "cache_pages"

// CachePage represents one pre-rendered page keyed by its site path
type CachePage struct {
	Path             string    `db:"path" json:"path"`
	HTML             string    `db:"html" json:"html,omitempty"`
	Title            *string   `db:"title" json:"title"`
	Description      *string   `db:"description" json:"description"`
	CanonicalURL     *string   `db:"canonical_url" json:"canonical_url"`
	GenerationTimeMs int64     `db:"generation_time_ms" json:"generation_time_ms"`
	HTMLSizeBytes    int64     `db:"html_size_bytes" json:"html_size_bytes"`
	ExpiresAt        time.Time `db:"expires_at" json:"expires_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Expired reports whether the page is past its expiry at now
func (p CachePage) Expired(now time.Time) bool {
	return p.ExpiresAt.Before(now)
}

// Row returns the page as a generic row, the shape Select hands back
func (p CachePage) Row() Row {
	return Row{
		"path":               p.Path,
		"html":               p.HTML,
		"title":              derefOrNil(p.Title),
		"description":        derefOrNil(p.Description),
		"canonical_url":      derefOrNil(p.CanonicalURL),
		"generation_time_ms": p.GenerationTimeMs,
		"html_size_bytes":    p.HTMLSizeBytes,
		"expires_at":         p.ExpiresAt,
		"updated_at":         p.UpdatedAt,
	}
}

func derefOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// Schema is the SQL schema for the cache_pages table
const Schema = `
CREATE TABLE IF NOT EXISTS cache_pages (
    path TEXT PRIMARY KEY,
    html TEXT NOT NULL,
    title TEXT,
    description TEXT,
    canonical_url TEXT,
    generation_time_ms BIGINT NOT NULL DEFAULT 0,
    html_size_bytes BIGINT NOT NULL DEFAULT 0,
    expires_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_pages_expires_at ON cache_pages (expires_at);
CREATE INDEX IF NOT EXISTS idx_cache_pages_updated_at ON cache_pages (updated_at);
`
