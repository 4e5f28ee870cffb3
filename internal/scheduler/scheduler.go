package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shaibs3/pagecache/internal/enumerator"
	"github.com/shaibs3/pagecache/internal/renderer"
)

// DefaultConcurrency is the number of render calls issued together in one window
const DefaultConcurrency = 5

var (
	ErrEnumeration  = errors.New("failed to enumerate paths")
	ErrInvalidBatch = errors.New("invalid batch parameters")
)

// PathEnumerator lists the paths of a refresh mode
type PathEnumerator interface {
	Enumerate(ctx context.Context, mode enumerator.Mode) (enumerator.Result, error)
}

// PathRenderer renders and persists one path
type PathRenderer interface {
	RenderAndStore(ctx context.Context, path string) renderer.Outcome
}

// Report describes one processed batch
type Report struct {
	RunID      string `json:"runId"`
	Action     string `json:"action,omitempty"`
	Filter     string `json:"filter"`
	Total      int    `json:"total"`
	Processed  int    `json:"processed"`
	BatchStart int    `json:"batchStart"`
	BatchSize  int    `json:"batchSize"`
	HasMore    bool   `json:"hasMore"`

	// NextOffset is null once the last batch has been handed out
	NextOffset *int               `json:"nextOffset"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
	Results    []renderer.Outcome `json:"results"`

	// SkippedCategories lists enumeration categories left out after a query error
	SkippedCategories []string `json:"skippedCategories,omitempty"`
}

// Plan is the sizing answer for a refresh that renders nothing
type Plan struct {
	Action                string `json:"action,omitempty"`
	Filter                string `json:"filter"`
	TotalPaths            int    `json:"totalPaths"`
	BatchSize             int    `json:"batchSize"`
	RecommendedBatchCount int    `json:"recommendedBatchCount"`
}

// Scheduler slices enumerated paths into batches and renders them in fixed windows
type Scheduler struct {
	enum        PathEnumerator
	unit        PathRenderer
	concurrency int
	logger      *zap.Logger
}

func NewScheduler(enum PathEnumerator, unit PathRenderer, concurrency int, logger *zap.Logger) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Scheduler{
		enum:        enum,
		unit:        unit,
		concurrency: concurrency,
		logger:      logger.Named("scheduler"),
	}
}

func (s *Scheduler) enumerate(ctx context.Context, mode enumerator.Mode) (enumerator.Result, error) {
	res, err := s.enum.Enumerate(ctx, mode)
	if err != nil {
		return res, err
	}
	if res.TotalFailure() {
		return res, fmt.Errorf("%w: %w", ErrEnumeration, res.Err)
	}
	return res, nil
}

// Info enumerates mode and returns batch sizing without rendering anything
func (s *Scheduler) Info(ctx context.Context, mode enumerator.Mode, batchSize int) (Plan, error) {
	if batchSize <= 0 {
		return Plan{}, fmt.Errorf("%w: batch size must be positive", ErrInvalidBatch)
	}
	res, err := s.enumerate(ctx, mode)
	if err != nil {
		return Plan{}, err
	}
	total := len(res.Paths)
	return Plan{
		Filter:                mode.String(),
		TotalPaths:            total,
		BatchSize:             batchSize,
		RecommendedBatchCount: (total + batchSize - 1) / batchSize,
	}, nil
}

// RunBatch renders paths[offset : offset+batchSize] of mode's enumeration.
// An offset past the end yields an empty report with HasMore false.
func (s *Scheduler) RunBatch(ctx context.Context, mode enumerator.Mode, batchSize, offset int) (Report, error) {
	if batchSize <= 0 || offset < 0 {
		return Report{}, fmt.Errorf("%w: batchSize=%d offset=%d", ErrInvalidBatch, batchSize, offset)
	}
	res, err := s.enumerate(ctx, mode)
	if err != nil {
		return Report{}, err
	}
	report := s.runSlice(ctx, uuid.NewString(), res, batchSize, offset)
	return report, nil
}

// RunAll enumerates once and processes every batch from offset in-process,
// calling onBatch after each one. It stops early when ctx is done.
func (s *Scheduler) RunAll(ctx context.Context, mode enumerator.Mode, batchSize, offset int, onBatch func(Report)) error {
	if batchSize <= 0 || offset < 0 {
		return fmt.Errorf("%w: batchSize=%d offset=%d", ErrInvalidBatch, batchSize, offset)
	}
	res, err := s.enumerate(ctx, mode)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	for {
		report := s.runSlice(ctx, runID, res, batchSize, offset)
		if onBatch != nil {
			onBatch(report)
		}
		if !report.HasMore {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		offset = *report.NextOffset
	}
}

func (s *Scheduler) runSlice(ctx context.Context, runID string, res enumerator.Result, batchSize, offset int) Report {
	total := len(res.Paths)
	report := Report{
		RunID:             runID,
		Filter:            res.Mode.String(),
		Total:             total,
		BatchStart:        offset,
		BatchSize:         batchSize,
		Results:           []renderer.Outcome{},
		SkippedCategories: res.Failed,
	}
	if offset+batchSize < total {
		next := offset + batchSize
		report.HasMore = true
		report.NextOffset = &next
	}
	if offset >= total {
		s.logger.Info("nothing left to process",
			zap.String("run_id", runID), zap.String("mode", report.Filter), zap.Int("offset", offset), zap.Int("total", total))
		return report
	}

	end := offset + batchSize
	if end > total {
		end = total
	}
	report.Results = s.RunPaths(ctx, res.Paths[offset:end])
	report.Processed = len(report.Results)
	for _, r := range report.Results {
		if r.Success {
			report.Successful++
		} else {
			report.Failed++
		}
	}

	s.logger.Info("batch finished",
		zap.String("run_id", runID),
		zap.String("mode", report.Filter),
		zap.Int("offset", offset),
		zap.Int("processed", report.Processed),
		zap.Int("successful", report.Successful),
		zap.Int("failed", report.Failed),
		zap.Bool("has_more", report.HasMore))
	return report
}

// RunPaths renders paths in consecutive windows of the configured concurrency:
// every call of a window is issued together and the next window starts only
// after all of them return. Results keep the order of paths.
func (s *Scheduler) RunPaths(ctx context.Context, paths []string) []renderer.Outcome {
	results := make([]renderer.Outcome, len(paths))
	for start := 0; start < len(paths); start += s.concurrency {
		end := start + s.concurrency
		if end > len(paths) {
			end = len(paths)
		}
		if err := ctx.Err(); err != nil {
			for i := start; i < len(paths); i++ {
				results[i] = renderer.Outcome{Path: paths[i], Error: err.Error()}
			}
			return results
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(index int) {
				defer wg.Done()
				results[index] = s.unit.RenderAndStore(ctx, paths[index])
			}(i)
		}
		wg.Wait()
	}
	return results
}
