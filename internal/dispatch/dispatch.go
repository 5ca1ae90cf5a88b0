// Package dispatch splits an ordered list of items into fixed-size batches
// and hands each batch to a delivery function, isolating failures per batch
// and per item.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/utafrali/catalog-sync/internal/domain"
)

// DefaultBatchSize is used when Options.BatchSize is not positive.
const DefaultBatchSize = 100

// Batch is a contiguous slice of the input. Index is zero-based and Offset
// is the position of the first item in the full input.
type Batch[T any] struct {
	Index  int
	Offset int
	Items  []T
}

// Outcome is what a delivery reports for one batch. Failed maps item ids to
// the reason they were rejected; every other item of the batch succeeded.
// TaskUID is set by backends that acknowledge with a task id.
type Outcome struct {
	Failed  map[string]string
	TaskUID *int64
}

// DeliverFunc delivers one batch. A non-nil error fails every item in the
// batch.
type DeliverFunc[T any] func(ctx context.Context, batch Batch[T]) (Outcome, error)

// Options configure a dispatch.
type Options struct {
	BatchSize int
	// Concurrency bounds how many batches are in flight. Values below 2 run
	// batches one after the other.
	Concurrency int
	// Limiter, when set, paces batch starts.
	Limiter *rate.Limiter
	// Mode labels metrics and logs.
	Mode   domain.Mode
	Logger *slog.Logger
}

// Result is the aggregate of a dispatch. Succeeded keeps input order and
// Failed is ordered by batch then by position within the batch.
type Result struct {
	Succeeded []string
	Failed    []domain.DeliveryFailure
	TaskUIDs  []int64
	Batches   int
	Attempted int
	Skipped   int
	Canceled  bool
}

type batchResult struct {
	started   bool
	succeeded []string
	failed    []domain.DeliveryFailure
	taskUID   *int64
}

// Split cuts items into consecutive batches of at most size items.
func Split[T any](items []T, size int) []Batch[T] {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([]Batch[T], 0, (len(items)+size-1)/size)
	for off := 0; off < len(items); off += size {
		end := min(off+size, len(items))
		batches = append(batches, Batch[T]{
			Index:  len(batches),
			Offset: off,
			Items:  items[off:end],
		})
	}
	return batches
}

// Dispatch delivers items in batches and aggregates the outcomes. Delivery
// errors never stop the run. The context is checked before each batch
// starts; batches that never start are counted in Skipped and the result is
// marked Canceled.
func Dispatch[T any](ctx context.Context, items []T, id func(T) string, opts Options, deliver DeliverFunc[T]) Result {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	batches := Split(items, opts.BatchSize)
	results := make([]batchResult, len(batches))

	var g errgroup.Group
	if opts.Concurrency > 1 {
		g.SetLimit(opts.Concurrency)
	} else {
		g.SetLimit(1)
	}

	for i := range batches {
		if ctx.Err() != nil {
			break
		}
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				break
			}
		}
		b := batches[i]
		g.Go(func() error {
			// Go may have blocked on the limit, so check again.
			if ctx.Err() != nil {
				return nil
			}
			results[b.Index] = runBatch(ctx, b, id, opts.Mode, logger, deliver)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Batches: len(batches)}
	for i, br := range results {
		if !br.started {
			res.Skipped += len(batches[i].Items)
			res.Canceled = true
			continue
		}
		res.Attempted += len(batches[i].Items)
		res.Succeeded = append(res.Succeeded, br.succeeded...)
		res.Failed = append(res.Failed, br.failed...)
		if br.taskUID != nil {
			res.TaskUIDs = append(res.TaskUIDs, *br.taskUID)
		}
	}
	if res.Succeeded == nil {
		res.Succeeded = []string{}
	}
	if res.Failed == nil {
		res.Failed = []domain.DeliveryFailure{}
	}
	return res
}

func runBatch[T any](ctx context.Context, b Batch[T], id func(T) string, mode domain.Mode, logger *slog.Logger, deliver DeliverFunc[T]) batchResult {
	start := time.Now()
	out, err := deliver(ctx, b)
	elapsed := time.Since(start)

	br := batchResult{started: true, taskUID: out.TaskUID}
	if err != nil {
		br.taskUID = nil
		for _, item := range b.Items {
			br.failed = append(br.failed, domain.DeliveryFailure{ID: id(item), Batch: b.Index, Reason: err.Error()})
		}
		logger.WarnContext(ctx, "batch delivery failed",
			slog.Int("batch", b.Index),
			slog.Int("size", len(b.Items)),
			slog.String("error", err.Error()),
		)
		observeBatch(mode, "failed", elapsed)
		return br
	}

	for _, item := range b.Items {
		itemID := id(item)
		if reason, failed := out.Failed[itemID]; failed {
			br.failed = append(br.failed, domain.DeliveryFailure{ID: itemID, Batch: b.Index, Reason: reason})
			logger.WarnContext(ctx, "item delivery failed",
				slog.Int("batch", b.Index),
				slog.String("product_id", itemID),
				slog.String("error", reason),
			)
			continue
		}
		br.succeeded = append(br.succeeded, itemID)
	}

	outcome := "succeeded"
	if len(br.failed) > 0 {
		outcome = "partial"
	}
	observeBatch(mode, outcome, elapsed)
	logger.DebugContext(ctx, "batch delivered",
		slog.Int("batch", b.Index),
		slog.Int("size", len(b.Items)),
		slog.Int("failed", len(br.failed)),
		slog.Duration("duration", elapsed),
	)
	return br
}
