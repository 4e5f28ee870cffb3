package store

import (
	"context"
	"time"

	"github.com/shaibs3/pagecache/internal/db_model"
)

// DbProvider is the relational store behind the orchestrator.
// Select never returns more than PageCap rows per call.
type DbProvider interface {
	PageCap() int
	// Select returns rows in the inclusive range [from, to], clamped to PageCap
	Select(ctx context.Context, q db_model.Query, from, to int) ([]db_model.Row, error)
	Count(ctx context.Context, q db_model.Query) (int64, error)

	UpsertCachePage(ctx context.Context, page db_model.CachePage) error
	GetCachePage(ctx context.Context, path string) (*db_model.CachePage, error)
	// DeleteExpired removes pages whose expires_at is before now in a single statement
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}
