package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func spanAttrs(s tracetest.SpanStub) map[string]string {
	attrs := make(map[string]string, len(s.Attributes))
	for _, a := range s.Attributes {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	return attrs
}

func TestQueryTracer_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := QueryTracer{}.Start(context.Background(), "FetchCatalogSnapshot", "SELECT p.id FROM product p")
	end(42, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "db.FetchCatalogSnapshot", span.Name)
	assert.Equal(t, trace.SpanKindClient, span.SpanKind)
	attrs := spanAttrs(span)
	assert.Equal(t, "postgresql", attrs["db.system"])
	assert.Equal(t, "FetchCatalogSnapshot", attrs["db.operation"])
	assert.Equal(t, "SELECT p.id FROM product p", attrs["db.statement"])
	assert.Equal(t, "42", attrs["db.rows_returned"])
	assert.Equal(t, codes.Unset, span.Status.Code)
}

func TestQueryTracer_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)

	_, end := QueryTracer{}.Start(context.Background(), "FetchCatalogSnapshot", "SELECT 1")
	end(0, errors.New("connection reset"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "connection reset", spans[0].Status.Description)
	require.NotEmpty(t, spans[0].Events)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
}

func TestQueryTracer_ChildOfCaller(t *testing.T) {
	exporter := setupTestTracer(t)

	ctx, parent := otel.Tracer("test").Start(context.Background(), "sync.run")
	ctx, end := QueryTracer{}.Start(ctx, "FetchCatalogSnapshot", "SELECT 1")
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	end(1, nil)
	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

func TestQueryTracer_SlowQueryLogging(t *testing.T) {
	tests := []struct {
		name      string
		threshold time.Duration
		sleep     time.Duration
		err       error
		wantLog   bool
	}{
		{"slow query", time.Millisecond, 5 * time.Millisecond, nil, true},
		{"slow query with error", time.Millisecond, 5 * time.Millisecond, errors.New("timeout"), true},
		{"fast query", time.Hour, 0, nil, false},
		{"disabled", 0, 5 * time.Millisecond, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tracer := QueryTracer{
				SlowThreshold: tt.threshold,
				Logger:        slog.New(slog.NewJSONHandler(&buf, nil)),
			}

			_, end := tracer.Start(context.Background(), "FetchCatalogSnapshot", "SELECT 1")
			time.Sleep(tt.sleep)
			end(7, tt.err)

			if !tt.wantLog {
				assert.Empty(t, buf.String())
				return
			}
			out := buf.String()
			assert.Contains(t, out, "slow query detected")
			assert.Contains(t, out, `"operation":"FetchCatalogSnapshot"`)
			assert.Contains(t, out, `"rows":7`)
			if tt.err != nil {
				assert.Contains(t, out, tt.err.Error())
			}
		})
	}
}

func TestQueryTracer_NilLoggerDoesNotPanic(t *testing.T) {
	_, end := QueryTracer{SlowThreshold: time.Nanosecond}.Start(context.Background(), "op", "SELECT 1")
	assert.NotPanics(t, func() { end(0, nil) })
}
