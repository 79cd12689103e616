package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// URLAnalyzer analyzes a single URL. *Analyzer implements it.
type URLAnalyzer interface {
	AnalyzeURL(ctx context.Context, raw string) (*Outcome, error)
}

// BatchResult is the outcome for one target of a batch.
type BatchResult struct {
	Target  string
	Outcome *Outcome
	Err     error
}

// BatchProcessor analyzes many URLs concurrently.
type BatchProcessor struct {
	analyzer    URLAnalyzer
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent analyses.
// Default is 10.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(analyzer URLAnalyzer, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		analyzer:    analyzer,
		concurrency: 10,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch analyzes targets and returns one result per target in input
// order. A failed target does not stop the batch; only the end of ctx does.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]BatchResult, error) {
	results := make([]BatchResult, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(r BatchResult, i int) {
		results[i] = r
	})
	return results, err
}

// ProcessBatchWithCallback analyzes targets and calls callback as each one
// completes. callback runs on worker goroutines and must be safe for
// concurrent use; each index is reported at most once.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(result BatchResult, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			out, err := bp.analyzer.AnalyzeURL(ctx, target)
			if err != nil {
				bp.logger.Warn("analysis failed",
					"url", target,
					"error", err,
				)
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
			}
			callback(BatchResult{Target: target, Outcome: out, Err: err}, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch processing complete",
		"total", len(targets),
		"elapsed", time.Since(startTime),
	)
	return err
}
