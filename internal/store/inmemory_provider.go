package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shaibs3/pagecache/internal/db_model"
	"github.com/shaibs3/pagecache/internal/store/shared"
)

// InMemoryProvider keeps content rows and cache pages in process memory.
// It enforces the same page cap as the relational providers.
type InMemoryProvider struct {
	mu      sync.RWMutex
	tables  map[string][]db_model.Row
	pages   map[string]db_model.CachePage
	pageCap int
}

func NewInMemoryProvider() *InMemoryProvider {
	return NewInMemoryProviderWithCap(DefaultPageCap)
}

func NewInMemoryProviderWithCap(pageCap int) *InMemoryProvider {
	if pageCap <= 0 {
		pageCap = DefaultPageCap
	}
	return &InMemoryProvider{
		tables:  make(map[string][]db_model.Row),
		pages:   make(map[string]db_model.CachePage),
		pageCap: pageCap,
	}
}

// InsertRows appends content rows to a table
func (m *InMemoryProvider) InsertRows(table string, rows ...db_model.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], project(r, nil))
	}
}

func (m *InMemoryProvider) PageCap() int {
	return m.pageCap
}

func (m *InMemoryProvider) Select(ctx context.Context, q db_model.Query, from, to int) ([]db_model.Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	offset, limit := shared.ClampRange(from, to, m.pageCap)

	m.mu.RLock()
	source := m.snapshotLocked(q.Table)
	m.mu.RUnlock()

	filtered := make([]db_model.Row, 0, len(source))
	for _, r := range source {
		if matches(r, q.Filters) {
			filtered = append(filtered, r)
		}
	}
	sortRows(filtered, q.Order)

	if offset >= len(filtered) || limit == 0 {
		return []db_model.Row{}, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	out := make([]db_model.Row, 0, end-offset)
	for _, r := range filtered[offset:end] {
		out = append(out, project(r, q.Columns))
	}
	return out, nil
}

func (m *InMemoryProvider) Count(ctx context.Context, q db_model.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	source := m.snapshotLocked(q.Table)
	m.mu.RUnlock()

	var n int64
	for _, r := range source {
		if matches(r, q.Filters) {
			n++
		}
	}
	return n, nil
}

// snapshotLocked returns the rows of a table; cache pages are materialized from their map
func (m *InMemoryProvider) snapshotLocked(table string) []db_model.Row {
	if table != db_model.CachePagesTable {
		return append([]db_model.Row(nil), m.tables[table]...)
	}
	rows := make([]db_model.Row, 0, len(m.pages))
	for _, p := range m.pages {
		rows = append(rows, p.Row())
	}
	// deterministic base order before any ORDER BY
	sort.Slice(rows, func(i, j int) bool { return rows[i].String("path") < rows[j].String("path") })
	return rows
}

func (m *InMemoryProvider) UpsertCachePage(ctx context.Context, page db_model.CachePage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page.Path] = page // overwrite for idempotency
	return nil
}

func (m *InMemoryProvider) GetCachePage(ctx context.Context, path string) (*db_model.CachePage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[path]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *InMemoryProvider) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := []string{}
	for path, p := range m.pages {
		if p.Expired(now) {
			removed = append(removed, path)
			delete(m.pages, path)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

func (m *InMemoryProvider) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *InMemoryProvider) Close() error {
	return nil
}
