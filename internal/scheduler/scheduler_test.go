package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shaibs3/pagecache/internal/db_model"
	"github.com/shaibs3/pagecache/internal/enumerator"
	"github.com/shaibs3/pagecache/internal/renderer"
	"github.com/shaibs3/pagecache/internal/store"
)

type fixedEnumerator struct {
	res   enumerator.Result
	err   error
	calls int
}

func (f *fixedEnumerator) Enumerate(_ context.Context, mode enumerator.Mode) (enumerator.Result, error) {
	f.calls++
	res := f.res
	res.Mode = mode
	return res, f.err
}

func paths(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("/p/%03d", i)
	}
	return out
}

// recordingUnit succeeds for every path, tracking concurrency and window boundaries
type recordingUnit struct {
	mu        sync.Mutex
	index     map[string]int
	inFlight  int32
	maxFlight int32
	completed int32
	violation error
}

func newRecordingUnit(ps []string) *recordingUnit {
	idx := make(map[string]int, len(ps))
	for i, p := range ps {
		idx[p] = i
	}
	return &recordingUnit{index: idx}
}

func (u *recordingUnit) RenderAndStore(_ context.Context, path string) renderer.Outcome {
	n := atomic.AddInt32(&u.inFlight, 1)
	for {
		m := atomic.LoadInt32(&u.maxFlight)
		if n <= m || atomic.CompareAndSwapInt32(&u.maxFlight, m, n) {
			break
		}
	}
	u.mu.Lock()
	// a path of window w may only start once every earlier window has finished
	if i, ok := u.index[path]; ok && int(atomic.LoadInt32(&u.completed)) < (i/DefaultConcurrency)*DefaultConcurrency {
		u.violation = fmt.Errorf("%s started before its window opened", path)
	}
	u.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&u.inFlight, -1)
	atomic.AddInt32(&u.completed, 1)
	return renderer.Outcome{Path: path, Success: true, TimeMs: 5}
}

func TestRunBatch_Resumability(t *testing.T) {
	ps := paths(125)
	enum := &fixedEnumerator{res: enumerator.Result{Paths: ps, Queried: 1}}
	s := NewScheduler(enum, newRecordingUnit(ps), DefaultConcurrency, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		offset     int
		processed  int
		hasMore    bool
		nextOffset *int
		first      string
	}{
		{0, 50, true, intPtr(50), "/p/000"},
		{50, 50, true, intPtr(100), "/p/050"},
		{100, 25, false, nil, "/p/100"},
		{150, 0, false, nil, ""},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("offset %d", tt.offset), func(t *testing.T) {
			r, err := s.RunBatch(ctx, enumerator.ModeFull, 50, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, 125, r.Total)
			assert.Equal(t, tt.offset, r.BatchStart)
			assert.Equal(t, 50, r.BatchSize)
			assert.Equal(t, tt.processed, r.Processed)
			assert.Equal(t, tt.processed, r.Successful)
			assert.Zero(t, r.Failed)
			assert.Equal(t, tt.hasMore, r.HasMore)
			assert.Equal(t, tt.nextOffset, r.NextOffset)
			assert.Equal(t, "full", r.Filter)
			assert.NotEmpty(t, r.RunID)
			require.Len(t, r.Results, tt.processed)
			if tt.processed > 0 {
				assert.Equal(t, tt.first, r.Results[0].Path)
			}
		})
	}
}

func TestRunBatch_WindowedConcurrency(t *testing.T) {
	ps := paths(23)
	unit := newRecordingUnit(ps)
	s := NewScheduler(&fixedEnumerator{res: enumerator.Result{Paths: ps, Queried: 1}}, unit, DefaultConcurrency, zap.NewNop())

	r, err := s.RunBatch(context.Background(), enumerator.ModeRecent, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 23, r.Successful)
	assert.LessOrEqual(t, atomic.LoadInt32(&unit.maxFlight), int32(DefaultConcurrency))
	assert.NoError(t, unit.violation)
	for i, out := range r.Results {
		assert.Equal(t, ps[i], out.Path, "results keep path order")
	}
}

type flakyRenderer struct {
	fail map[string]bool
}

func (f flakyRenderer) Render(_ context.Context, path string) (string, error) {
	if f.fail[path] {
		return "", &renderer.StatusError{Path: path, StatusCode: http.StatusBadGateway}
	}
	return "<title>" + path + "</title>", nil
}

func TestRunBatch_PartialFailureIsolation(t *testing.T) {
	ps := paths(10)
	mem := store.NewInMemoryProvider()
	ctx := context.Background()

	// a valid entry from an earlier run of a path that now fails
	prior := db_model.CachePage{Path: ps[4], HTML: "prior", ExpiresAt: time.Now().Add(time.Hour), UpdatedAt: time.Now()}
	require.NoError(t, mem.UpsertCachePage(ctx, prior))

	fail := map[string]bool{ps[1]: true, ps[4]: true, ps[8]: true}
	unit := renderer.NewUnit(flakyRenderer{fail: fail}, mem, 24*time.Hour, zap.NewNop(), nil)
	s := NewScheduler(&fixedEnumerator{res: enumerator.Result{Paths: ps, Queried: 1}}, unit, DefaultConcurrency, zap.NewNop())

	r, err := s.RunBatch(ctx, enumerator.ModeFull, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, r.Successful)
	assert.Equal(t, 3, r.Failed)
	assert.Equal(t, 10, r.Processed)

	for _, out := range r.Results {
		page, err := mem.GetCachePage(ctx, out.Path)
		require.NoError(t, err)
		if fail[out.Path] {
			assert.False(t, out.Success)
			assert.Contains(t, out.Error, "502")
			continue
		}
		assert.True(t, out.Success)
		require.NotNil(t, page)
		assert.Equal(t, "<title>"+out.Path+"</title>", page.HTML)
	}

	kept, err := mem.GetCachePage(ctx, ps[4])
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, "prior", kept.HTML, "failed render leaves the earlier entry untouched")
	missing, err := mem.GetCachePage(ctx, ps[1])
	require.NoError(t, err)
	assert.Nil(t, missing)

	n, err := mem.Count(ctx, db_model.Query{Table: db_model.CachePagesTable})
	require.NoError(t, err)
	assert.Equal(t, int64(8), n, "7 new rows plus the untouched prior entry")
}

func TestInfo(t *testing.T) {
	enum := &fixedEnumerator{res: enumerator.Result{Paths: paths(125), Queried: 1}}
	unit := newRecordingUnit(nil)
	s := NewScheduler(enum, unit, DefaultConcurrency, zap.NewNop())

	plan, err := s.Info(context.Background(), enumerator.ModeNewsWindow, 50)
	require.NoError(t, err)
	assert.Equal(t, 125, plan.TotalPaths)
	assert.Equal(t, 3, plan.RecommendedBatchCount)
	assert.Equal(t, "newsWindow", plan.Filter)
	assert.Zero(t, atomic.LoadInt32(&unit.completed), "info renders nothing")

	enum.res.Paths = nil
	plan, err = s.Info(context.Background(), enumerator.ModeNewsWindow, 50)
	require.NoError(t, err)
	assert.Zero(t, plan.RecommendedBatchCount)
}

func TestRunBatch_EnumerationFailure(t *testing.T) {
	cause := errors.New("connection refused")
	enum := &fixedEnumerator{res: enumerator.Result{
		Paths:   []string{"/"},
		Queried: 2,
		Failed:  []string{"navigation", "news"},
		Err:     cause,
	}}
	s := NewScheduler(enum, newRecordingUnit(nil), DefaultConcurrency, zap.NewNop())

	_, err := s.RunBatch(context.Background(), enumerator.ModeRecent, 50, 0)
	require.ErrorIs(t, err, ErrEnumeration)
	require.ErrorIs(t, err, cause)

	_, err = s.Info(context.Background(), enumerator.ModeRecent, 50)
	require.ErrorIs(t, err, ErrEnumeration)
}

func TestRunBatch_PartialEnumerationStillRuns(t *testing.T) {
	enum := &fixedEnumerator{res: enumerator.Result{
		Paths:   paths(3),
		Queried: 2,
		Failed:  []string{"chapters"},
		Err:     errors.New("timeout"),
	}}
	s := NewScheduler(enum, newRecordingUnit(paths(3)), DefaultConcurrency, zap.NewNop())

	r, err := s.RunBatch(context.Background(), enumerator.ModeFull, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Successful)
	assert.Equal(t, []string{"chapters"}, r.SkippedCategories)
}

func TestRunBatch_InvalidParams(t *testing.T) {
	s := NewScheduler(&fixedEnumerator{}, newRecordingUnit(nil), 0, zap.NewNop())
	_, err := s.RunBatch(context.Background(), enumerator.ModeFull, 0, 0)
	require.ErrorIs(t, err, ErrInvalidBatch)
	_, err = s.RunBatch(context.Background(), enumerator.ModeFull, 10, -1)
	require.ErrorIs(t, err, ErrInvalidBatch)
	_, err = s.Info(context.Background(), enumerator.ModeFull, 0)
	require.ErrorIs(t, err, ErrInvalidBatch)
}

func TestRunAll(t *testing.T) {
	ps := paths(12)
	enum := &fixedEnumerator{res: enumerator.Result{Paths: ps, Queried: 1}}
	s := NewScheduler(enum, newRecordingUnit(ps), DefaultConcurrency, zap.NewNop())

	var reports []Report
	err := s.RunAll(context.Background(), enumerator.ModeFull, 5, 0, func(r Report) {
		reports = append(reports, r)
	})
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, 1, enum.calls, "paths are enumerated once per run")
	assert.Equal(t, []int{5, 5, 2}, []int{reports[0].Processed, reports[1].Processed, reports[2].Processed})
	assert.Equal(t, reports[0].RunID, reports[2].RunID)
	assert.False(t, reports[2].HasMore)
}

func TestRunPaths_CancelledContextRecordsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewScheduler(&fixedEnumerator{}, newRecordingUnit(nil), DefaultConcurrency, zap.NewNop())

	out := s.RunPaths(ctx, paths(7))
	require.Len(t, out, 7)
	for _, o := range out {
		assert.False(t, o.Success)
		assert.Equal(t, context.Canceled.Error(), o.Error)
	}
}

func intPtr(n int) *int { return &n }
