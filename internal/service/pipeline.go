// Package service runs catalog-to-index synchronization.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/utafrali/catalog-sync/internal/catalog"
	"github.com/utafrali/catalog-sync/internal/delivery"
	"github.com/utafrali/catalog-sync/internal/dispatch"
	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/projector"
	"github.com/utafrali/catalog-sync/internal/report"
	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
	"github.com/utafrali/catalog-sync/pkg/logger"
	"github.com/utafrali/catalog-sync/pkg/tracing"
)

const tracerName = "github.com/utafrali/catalog-sync/internal/service"

// Options tune a pipeline. Zero values pick defaults.
type Options struct {
	BatchSize   int
	Concurrency int
	Limit       int
	// Limiter paces batch starts when set.
	Limiter *rate.Limiter
	// Timeout bounds a whole run, catalog read included.
	Timeout time.Duration
}

// Request selects which products a run covers.
type Request struct {
	Filter domain.Filter
	// Limit overrides Options.Limit when positive.
	Limit int
}

// Pipeline reads a snapshot, projects it and delivers it in batches with
// one strategy. It holds no state between runs.
type Pipeline struct {
	reader   catalog.Reader
	strategy delivery.Strategy
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(reader catalog.Reader, strategy delivery.Strategy, opts Options, logger *slog.Logger) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = dispatch.DefaultBatchSize
	}
	if opts.Limit <= 0 {
		opts.Limit = catalog.DefaultLimit
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{reader: reader, strategy: strategy, opts: opts, logger: logger, now: time.Now}
}

// Run executes one sync. The only error is a catalog read failure wrapped
// as SourceUnavailable; delivery failures are part of the report.
func (p *Pipeline) Run(ctx context.Context, req Request) (domain.SyncReport, error) {
	mode := p.strategy.Mode()
	runID := uuid.NewString()
	started := p.now()

	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	ctx = logger.WithRunID(ctx, runID)
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "sync.run", trace.WithAttributes(
		attribute.String("sync.run_id", runID),
		attribute.String("sync.mode", string(mode)),
		attribute.String("sync.target", p.strategy.Target()),
		attribute.String("catalog.source", p.reader.Name()),
	))
	defer span.End()

	log := logger.WithContext(ctx, p.logger).With(slog.String("mode", string(mode)))

	limit := p.opts.Limit
	if req.Limit > 0 {
		limit = req.Limit
	}

	log.InfoContext(ctx, "sync run started",
		slog.String("target", p.strategy.Target()),
		slog.Int("limit", limit),
		slog.Int("batch_size", p.opts.BatchSize),
		slog.Any("statuses", req.Filter.Statuses),
	)

	snap, err := p.fetch(ctx, req.Filter, limit)
	if err != nil {
		runsTotal.WithLabelValues(string(mode), string(domain.RunFailed)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog unavailable")
		log.ErrorContext(ctx, "sync run aborted: catalog unavailable", slog.String("error", err.Error()))
		return domain.SyncReport{}, apperrors.SourceUnavailable(err)
	}

	items, rejected := project(snap.Products)
	if len(rejected) > 0 {
		log.WarnContext(ctx, "products without an id were not delivered", slog.Int("count", len(rejected)))
	}

	res := dispatch.Dispatch(ctx, items, delivery.ItemID, dispatch.Options{
		BatchSize:   p.opts.BatchSize,
		Concurrency: p.opts.Concurrency,
		Limiter:     p.opts.Limiter,
		Mode:        mode,
		Logger:      log,
	}, p.traced(p.strategy.Deliver))
	res.Failed = append(res.Failed, rejected...)

	rep := report.Build(report.Input{
		RunID:        runID,
		Mode:         mode,
		Index:        p.strategy.Target(),
		Total:        len(snap.Products),
		CatalogTotal: snap.Total,
		Result:       res,
		StartedAt:    started,
		FinishedAt:   p.now(),
	})

	p.record(rep, res)
	span.SetAttributes(
		attribute.Int("sync.total", rep.Total),
		attribute.Int("sync.succeeded", len(rep.Succeeded)),
		attribute.Int("sync.failed", len(rep.Failed)),
		attribute.String("sync.status", string(rep.Status)),
	)
	if rep.Status == domain.RunFailed {
		span.SetStatus(codes.Error, rep.Message)
	}

	log.InfoContext(ctx, "sync run finished",
		slog.String("status", string(rep.Status)),
		slog.Int("total", rep.Total),
		slog.Int("catalog_total", rep.CatalogTotal),
		slog.Int("succeeded", len(rep.Succeeded)),
		slog.Int("failed", len(rep.Failed)),
		slog.Int("skipped", res.Skipped),
		slog.Int("batches", rep.Batches),
		slog.Duration("duration", rep.Duration),
	)
	return rep, nil
}

// project pairs each product with its document. A document without an id
// has no upsert key, so its product is reported as failed instead.
func project(products []domain.Product) ([]delivery.Item, []domain.DeliveryFailure) {
	items := make([]delivery.Item, 0, len(products))
	var rejected []domain.DeliveryFailure
	for i, d := range projector.ProjectAll(products) {
		if d.ID == "" {
			rejected = append(rejected, domain.DeliveryFailure{
				Batch:  -1,
				Reason: fmt.Sprintf("product at position %d has no id", i),
			})
			continue
		}
		items = append(items, delivery.Item{Product: products[i], Document: d})
	}
	return items, rejected
}

func (p *Pipeline) fetch(ctx context.Context, filter domain.Filter, limit int) (domain.Snapshot, error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "catalog.fetch", trace.WithAttributes(
		attribute.Int("catalog.limit", limit),
	))
	defer span.End()

	snap, err := p.reader.Fetch(ctx, filter, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return snap, err
	}
	span.SetAttributes(
		attribute.Int("catalog.products", len(snap.Products)),
		attribute.Int("catalog.total", snap.Total),
	)
	return snap, nil
}

// traced wraps deliver in a span per batch.
func (p *Pipeline) traced(deliver dispatch.DeliverFunc[delivery.Item]) dispatch.DeliverFunc[delivery.Item] {
	return func(ctx context.Context, b dispatch.Batch[delivery.Item]) (dispatch.Outcome, error) {
		ctx, span := tracing.Tracer(tracerName).Start(ctx, "sync.batch", trace.WithAttributes(
			attribute.Int("sync.batch.index", b.Index),
			attribute.Int("sync.batch.size", len(b.Items)),
		))
		defer span.End()

		out, err := deliver(ctx, b)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if len(out.Failed) > 0 {
			span.SetAttributes(attribute.Int("sync.batch.failed", len(out.Failed)))
		}
		return out, err
	}
}

func (p *Pipeline) record(rep domain.SyncReport, res dispatch.Result) {
	mode := string(rep.Mode)
	runsTotal.WithLabelValues(mode, string(rep.Status)).Inc()
	itemsTotal.WithLabelValues(mode, "succeeded").Add(float64(len(rep.Succeeded)))
	itemsTotal.WithLabelValues(mode, "failed").Add(float64(len(rep.Failed)))
	itemsTotal.WithLabelValues(mode, "skipped").Add(float64(res.Skipped))
	runDuration.WithLabelValues(mode).Observe(rep.Duration.Seconds())
}
