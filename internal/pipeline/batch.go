package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/tineye/internal/model"
)

// DefaultConcurrency is the number of searches run at once unless configured.
const DefaultConcurrency = 4

// Target is one image to search for.
type Target struct {
	Value string
	Kind  model.QueryKind

	// Profile names the configuration profile the search runs under.
	Profile string
}

// BatchProcessor runs the search pipeline for many images concurrently.
// It uses errgroup to bound the number of requests in flight.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each search.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent searches.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent searches.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
// pipelineFactory is called once per target so no state leaks between searches.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch searches for all targets and returns one job per target, in
// input order. A failed search does not stop the others; its error is kept
// in the job. The returned error is non-nil only when ctx was cancelled, in
// which case targets that never started carry the cancellation error.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []Target) ([]*Job, error) {
	bp.logger.Debug("starting batch",
		"total", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	// Each goroutine writes only its own index.
	jobs := make([]*Job, len(targets))
	for i, target := range targets {
		jobs[i] = NewJob(target.Value, target.Kind)
		jobs[i].Report.Profile = target.Profile
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i := range targets {
		job := jobs[i]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				job.fail(gctx.Err())
				return gctx.Err()
			default:
			}

			bp.logger.Debug("searching",
				"target", job.Target,
				"index", i+1,
				"total", len(targets),
			)

			if err := bp.pipelineFactory().Execute(gctx, job); err != nil {
				// Recorded in the job; the other searches go on.
				bp.logger.Debug("search failed", "target", job.Target, "error", err)
			}
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Debug("batch complete",
		"total", len(targets),
		"elapsed", time.Since(startTime),
	)

	return jobs, err
}

// Reports returns the reports of jobs, in order.
func Reports(jobs []*Job) []*model.SearchReport {
	reports := make([]*model.SearchReport, len(jobs))
	for i, j := range jobs {
		reports[i] = j.Report
	}
	return reports
}

// FailedCount returns the number of jobs with an error.
func FailedCount(jobs []*Job) int {
	n := 0
	for _, j := range jobs {
		if j.Err != nil {
			n++
		}
	}
	return n
}
