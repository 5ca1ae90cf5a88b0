package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	busmemory "github.com/utafrali/catalog-sync/internal/bus/memory"
	"github.com/utafrali/catalog-sync/internal/config"
	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/event"
	handler "github.com/utafrali/catalog-sync/internal/handler/http"
	"github.com/utafrali/catalog-sync/internal/service"
	"github.com/utafrali/catalog-sync/pkg/health"
	pkgkafka "github.com/utafrali/catalog-sync/pkg/kafka"
	"github.com/utafrali/catalog-sync/pkg/tracing"
)

// App wires together all dependencies and runs the catalog sync service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumer       *pkgkafka.Consumer
	memBus         *busmemory.Bus
	indexer        *event.Consumer
	service        *service.ReindexService
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// A failure part way through releases what was already opened.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	// Initialize OpenTelemetry tracing.
	a.tracerShutdown, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampling,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reader, err := a.newReader(ctx)
	if err != nil {
		return nil, err
	}

	index, err := a.newIndex()
	if err != nil {
		return nil, err
	}

	emitter := a.newEmitter()

	guard, err := a.newGuard(ctx)
	if err != nil {
		return nil, err
	}

	direct, eventPush := strategies(cfg, index, emitter)

	opts := service.Options{
		BatchSize:   cfg.SyncBatchSize,
		Concurrency: cfg.SyncConcurrency,
		Limit:       cfg.SyncLimit,
		Timeout:     cfg.SyncRunTimeout,
	}
	if cfg.SyncBatchRate > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.SyncBatchRate), 1)
	}
	a.service = service.NewReindexService(reader, direct, eventPush, domain.Mode(cfg.SyncDeliveryMode), guard, opts, logger)
	logger.Info("reindex service initialized",
		slog.String("default_mode", cfg.SyncDeliveryMode),
		slog.Bool("direct_configured", direct != nil),
		slog.Bool("event_configured", eventPush != nil),
		slog.Int("batch_size", cfg.SyncBatchSize),
		slog.Int("concurrency", cfg.SyncConcurrency),
	)

	if cfg.SyncConsumerEnabled && index != nil {
		a.indexer = event.NewConsumer(reader, index, cfg.SearchIndex, cfg.SyncEventName, logger)
		a.newConsumer()
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("catalog", reader.Ping)
	if index != nil {
		healthHandler.RegisterNonCritical("search_engine", index.Ping)
	}
	if emitter != nil {
		healthHandler.RegisterNonCritical("event_bus", emitter.Ping)
	}
	if a.redis != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}

	// HTTP router.
	router := handler.NewRouter(a.service, healthHandler, handler.RouterConfig{
		ServiceName:       cfg.ServiceName,
		AdminRateLimit:    cfg.AdminRateLimit,
		AdminCORSOrigins:  cfg.AdminCORSOrigins,
		PprofEnabled:      cfg.PprofEnabled,
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
	}, logger)

	// Reindex responses are written when the run ends.
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout(cfg.SyncRunTimeout),
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// writeTimeout leaves room to encode the report after a bounded run. An
// unbounded run gets no write deadline either.
func writeTimeout(runTimeout time.Duration) time.Duration {
	if runTimeout <= 0 {
		return 0
	}
	return runTimeout + 30*time.Second
}

// Service returns the reindex service, for one-shot runs outside HTTP.
func (a *App) Service() *service.ReindexService { return a.service }

// Run starts the HTTP server and, when enabled, the notification consumer,
// blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("kafka consumer: %w", err)
			}
		}()
	}
	if a.memBus != nil && a.indexer != nil {
		go func() {
			_ = a.memBus.Run(ctx, a.indexer.HandleNotification)
		}()
		a.logger.Info("in-memory notification consumer started")
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight reindex runs)
// 2. everything else through close
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.close(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// Close releases connections without touching the HTTP server. One-shot
// commands call it instead of Shutdown.
func (a *App) Close() error { return a.close() }

func (a *App) close() error {
	var errs []error

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.consumer = nil
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.dlq = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return errors.Join(errs...)
}
