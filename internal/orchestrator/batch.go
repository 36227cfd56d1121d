package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/xssautomation/xssbot/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency is the default number of requests a
// BatchProcessor submits at once. The Orchestrator's own pipeline limit
// still applies.
const DefaultBatchConcurrency = 4

// BatchProcessor scans several inputs for one identity concurrently.
type BatchProcessor struct {
	orchestrator *Orchestrator
	identity     model.Identity
	concurrency  int
	logger       *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets the logger for batch-level events.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of requests in flight.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor submitting requests as identity.
func NewBatchProcessor(o *Orchestrator, identity model.Identity, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		orchestrator: o,
		identity:     identity,
		concurrency:  DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch scans every input and returns the results in input order.
// A failed scan does not stop the others; its Result carries the failure.
// Inputs not started because ctx was done get no Result (nil entry) and
// the context error is returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, inputs []string, sinkFor func(index int) model.ProgressSink) ([]*Result, error) {
	results := make([]*Result, len(inputs))
	err := bp.ProcessBatchWithCallback(ctx, inputs, sinkFor, func(result *Result, index int) {
		results[index] = result
	})
	return results, err
}

// ProcessBatchWithCallback scans every input and calls callback with each
// result as it completes. callback runs on the scanning goroutine and must
// be safe for concurrent use. sinkFor may be nil.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	inputs []string,
	sinkFor func(index int) model.ProgressSink,
	callback func(result *Result, index int),
) error {
	bp.logger.Info("starting batch scan",
		"total", len(inputs),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, input := range inputs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			var sink model.ProgressSink
			if sinkFor != nil {
				sink = sinkFor(i)
			}
			result := bp.orchestrator.Submit(gctx, bp.identity, input, sink)
			callback(result, i)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	bp.logger.Info("batch scan complete",
		"total", len(inputs),
		"elapsed", time.Since(startTime),
	)
	return err
}
