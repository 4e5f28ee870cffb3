package pager

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shaibs3/pagecache/internal/db_model"
)

// Source is the slice of the store the reader needs
type Source interface {
	PageCap() int
	Select(ctx context.Context, q db_model.Query, from, to int) ([]db_model.Row, error)
	Count(ctx context.Context, q db_model.Query) (int64, error)
}

// Reader reads result sets larger than the store's per-call cap
type Reader struct {
	src    Source
	logger *zap.Logger
}

func NewReader(src Source, logger *zap.Logger) *Reader {
	return &Reader{src: src, logger: logger.Named("pager")}
}

// FetchAll issues ranged reads of PageCap rows until a short page comes back.
// On error it returns the rows gathered so far together with the error; the
// result must then be treated as incomplete.
func (r *Reader) FetchAll(ctx context.Context, q db_model.Query) ([]db_model.Row, error) {
	return r.FetchUpTo(ctx, q, 0)
}

// FetchUpTo behaves like FetchAll but stops once limit rows are gathered.
// A limit of zero or less means no limit.
func (r *Reader) FetchUpTo(ctx context.Context, q db_model.Query, limit int) ([]db_model.Row, error) {
	pageCap := r.src.PageCap()
	if pageCap <= 0 {
		return nil, fmt.Errorf("invalid page cap %d", pageCap)
	}

	rows := []db_model.Row{}
	for offset := 0; ; offset += pageCap {
		size := pageCap
		if limit > 0 && limit-len(rows) < size {
			size = limit - len(rows)
		}
		if size <= 0 {
			return rows, nil
		}

		page, err := r.src.Select(ctx, q, offset, offset+size-1)
		if err != nil {
			r.logger.Warn("pagination aborted",
				zap.String("table", q.Table),
				zap.Int("offset", offset),
				zap.Int("gathered", len(rows)),
				zap.Error(err))
			return rows, fmt.Errorf("fetch %s at offset %d: %w", q.Table, offset, err)
		}
		rows = append(rows, page...)
		if len(page) < size {
			return rows, nil
		}
	}
}

// Count returns the number of matching rows without materializing them
func (r *Reader) Count(ctx context.Context, q db_model.Query) (int64, error) {
	n, err := r.src.Count(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Table, err)
	}
	return n, nil
}
