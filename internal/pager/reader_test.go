package pager

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shaibs3/pagecache/internal/db_model"
	"github.com/shaibs3/pagecache/internal/store"
)

// countingSource wraps a provider, counting calls and optionally failing one of them
type countingSource struct {
	*store.InMemoryProvider
	selects  int
	counts   int
	failAt   int
	failWith error
}

func (c *countingSource) Select(ctx context.Context, q db_model.Query, from, to int) ([]db_model.Row, error) {
	c.selects++
	if c.failWith != nil && c.selects == c.failAt {
		return nil, c.failWith
	}
	return c.InMemoryProvider.Select(ctx, q, from, to)
}

func (c *countingSource) Count(ctx context.Context, q db_model.Query) (int64, error) {
	c.counts++
	return c.InMemoryProvider.Count(ctx, q)
}

func newSource(rows, pageCap int) *countingSource {
	mem := store.NewInMemoryProviderWithCap(pageCap)
	for i := 0; i < rows; i++ {
		mem.InsertRows("chapters", db_model.Row{"id": int64(i)})
	}
	return &countingSource{InMemoryProvider: mem}
}

func TestReader_FetchAllReturnsEveryRow(t *testing.T) {
	const n = 10
	tests := []struct {
		name      string
		rows      int
		wantCalls int
	}{
		{"empty table", 0, 1},
		{"fewer than cap", n - 3, 1},
		{"exactly cap", n, 2},
		{"one over cap", n + 1, 2},
		{"many pages", 10*n + 3, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newSource(tt.rows, n)
			r := NewReader(src, zap.NewNop())

			rows, err := r.FetchAll(context.Background(), db_model.Query{
				Table: "chapters",
				Order: []db_model.OrderBy{{Column: "id"}},
			})
			require.NoError(t, err)
			require.Len(t, rows, tt.rows)
			assert.Equal(t, tt.wantCalls, src.selects)
			for i, row := range rows {
				assert.Equal(t, int64(i), row.Int("id"))
			}
		})
	}
}

func TestReader_FetchAllSurfacesPartialRows(t *testing.T) {
	src := newSource(35, 10)
	src.failAt = 3
	src.failWith = errors.New("connection reset")
	r := NewReader(src, zap.NewNop())

	rows, err := r.FetchAll(context.Background(), db_model.Query{Table: "chapters"})
	require.Error(t, err)
	assert.ErrorIs(t, err, src.failWith)
	assert.Len(t, rows, 20, "rows read before the failure are returned")
	assert.Equal(t, 3, src.selects, "pagination stops at the failing page")
}

func TestReader_FetchUpToStopsAtLimit(t *testing.T) {
	src := newSource(50, 10)
	r := NewReader(src, zap.NewNop())

	rows, err := r.FetchUpTo(context.Background(), db_model.Query{Table: "chapters"}, 25)
	require.NoError(t, err)
	assert.Len(t, rows, 25)
	assert.Equal(t, 3, src.selects)

	src = newSource(4, 10)
	rows, err = NewReader(src, zap.NewNop()).FetchUpTo(context.Background(), db_model.Query{Table: "chapters"}, 25)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestReader_CountDoesNotSelect(t *testing.T) {
	src := newSource(1500, 1000)
	r := NewReader(src, zap.NewNop())

	n, err := r.Count(context.Background(), db_model.Query{Table: "chapters"})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), n)
	assert.Equal(t, 1, src.counts)
	assert.Zero(t, src.selects)
}
