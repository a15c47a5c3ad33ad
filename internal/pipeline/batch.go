package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/spider/internal/model"
)

// DefaultBatchConcurrency is the number of seeds processed at once.
const DefaultBatchConcurrency = 1

// BatchProcessor runs one pipeline per seed with bounded concurrency.
//
// Design decision: batching stays outside Pipeline so a Pipeline only
// ever deals with one report.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline per report, so site
	// specific settings such as cookies never leak between seeds.
	pipelineFactory func(report *model.CrawlReport) *Pipeline
	concurrency     int
	logger          *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithBatchConcurrency sets how many seeds run at once.
func WithBatchConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(pipelineFactory func(report *model.CrawlReport) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch runs the pipeline for every report and fills them in place.
//
// A failing seed never stops the others; its error is stored in its
// report. When ctx ends, seeds that have not started are marked with
// ctx's error and skipped. The returned error is ctx.Err() in that case.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, reports []*model.CrawlReport) error {
	bp.logger.Info("starting batch processing",
		"total_seeds", len(reports),
		"concurrency", bp.concurrency,
	)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)
	for i, report := range reports {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				setError(report, err)
				report.FinishedAt = time.Now()
				return nil
			}

			bp.logger.Info("crawling seed", "seed", report.Seed(), "index", i+1, "total", len(reports))
			if err := bp.pipelineFactory(report).Execute(ctx, report); err != nil {
				bp.logger.Warn("crawl failed", "seed", report.Seed(), "error", err)
				return nil
			}
			bp.logger.Info("crawl completed", "seed", report.Seed())
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // errors are stored in the reports

	bp.logger.Info("batch processing complete",
		"total_seeds", len(reports),
		"elapsed", time.Since(start),
	)
	return ctx.Err()
}
