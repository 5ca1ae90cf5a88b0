package database

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/catalog-sync/pkg/database"

// QueryTracer wraps queries in client spans. With a Logger and a positive
// SlowThreshold, queries at or above the threshold are also logged at warn.
// The zero value only traces.
type QueryTracer struct {
	SlowThreshold time.Duration
	Logger        *slog.Logger
}

// Start opens a span for operation. Call the returned function once the rows
// have been consumed:
//
//	ctx, end := tracer.Start(ctx, "FetchCatalogSnapshot", query)
//	defer func() { end(len(products), err) }()
func (t QueryTracer) Start(ctx context.Context, operation, statement string) (context.Context, func(rows int, err error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(rows int, err error) {
		span.SetAttributes(attribute.Int("db.rows_returned", rows))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if t.SlowThreshold <= 0 || t.Logger == nil {
			return
		}
		elapsed := time.Since(start)
		if elapsed < t.SlowThreshold {
			return
		}
		attrs := []any{
			slog.String("operation", operation),
			slog.Int("rows", rows),
			slog.Duration("duration", elapsed),
			slog.Duration("threshold", t.SlowThreshold),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		t.Logger.WarnContext(ctx, "slow query detected", attrs...)
	}
}
