package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/catalog-sync/internal/bus"
	buskafka "github.com/utafrali/catalog-sync/internal/bus/kafka"
	busmemory "github.com/utafrali/catalog-sync/internal/bus/memory"
	"github.com/utafrali/catalog-sync/internal/catalog"
	catalogpg "github.com/utafrali/catalog-sync/internal/catalog/postgres"
	"github.com/utafrali/catalog-sync/internal/catalog/remote"
	"github.com/utafrali/catalog-sync/internal/config"
	"github.com/utafrali/catalog-sync/internal/delivery"
	"github.com/utafrali/catalog-sync/internal/engine"
	esengine "github.com/utafrali/catalog-sync/internal/engine/elasticsearch"
	"github.com/utafrali/catalog-sync/internal/engine/meilisearch"
	"github.com/utafrali/catalog-sync/internal/engine/memory"
	"github.com/utafrali/catalog-sync/internal/lock"
	"github.com/utafrali/catalog-sync/pkg/database"
	pkgkafka "github.com/utafrali/catalog-sync/pkg/kafka"
)

const (
	lockPrefix        = "catalog-sync:"
	idempotencyPrefix = "catalog-sync:events:"
	idempotencyTTL    = 24 * time.Hour
)

func (a *App) newReader(ctx context.Context) (catalog.Reader, error) {
	cfg := a.cfg

	if cfg.CatalogSource == config.SourceRemote {
		r, err := remote.NewReader(remote.Config{
			BaseURL:  cfg.ProductServiceURL,
			PageSize: cfg.RemotePageSize,
			Timeout:  cfg.RemoteTimeout,
			RetryMax: cfg.RemoteRetryMax,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init remote catalog: %w", err)
		}
		a.logger.Info("remote catalog reader initialized", slog.String("url", cfg.ProductServiceURL))
		return r, nil
	}

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, cfg.ServiceName); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}
	return catalogpg.NewReader(pool).WithQueryTracer(database.QueryTracer{
		SlowThreshold: cfg.PostgresSlowQuery,
		Logger:        a.logger,
	}), nil
}

// newIndex returns nil when no engine is configured.
func (a *App) newIndex() (engine.DocumentIndex, error) {
	cfg := a.cfg

	switch cfg.SearchEngine {
	case config.EngineMeilisearch:
		if cfg.MeilisearchHost == "" {
			a.logger.Warn("SEARCH_ENGINE=meilisearch without MEILISEARCH_HOST; direct push disabled")
			return nil, nil
		}
		eng, err := meilisearch.New(meilisearch.Config{
			Host:     cfg.MeilisearchHost,
			AdminKey: cfg.MeilisearchAdminKey,
			Timeout:  cfg.MeilisearchTimeout,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init meilisearch engine: %w", err)
		}
		a.logger.Info("meilisearch engine initialized",
			slog.String("host", cfg.MeilisearchHost),
			slog.String("index", cfg.SearchIndex),
		)
		return eng, nil
	case config.EngineElasticsearch:
		eng, err := esengine.New(esengine.Config{URL: cfg.ElasticsearchURL, Refresh: cfg.ElasticsearchRefresh}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch engine: %w", err)
		}
		a.logger.Info("elasticsearch engine initialized",
			slog.String("url", cfg.ElasticsearchURL),
			slog.String("index", cfg.SearchIndex),
		)
		return eng, nil
	case config.EngineMemory:
		a.logger.Info("in-memory search engine initialized")
		return memory.New(), nil
	default:
		return nil, nil
	}
}

// newEmitter returns nil when no bus is configured.
func (a *App) newEmitter() bus.Emitter {
	cfg := a.cfg

	switch cfg.EventBus {
	case config.BusKafka:
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), a.logger)
		a.logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		return buskafka.NewEmitter(a.producer)
	case config.BusMemory:
		a.memBus = busmemory.New(0)
		a.logger.Info("in-memory event bus initialized")
		return a.memBus
	default:
		return nil
	}
}

func (a *App) newGuard(ctx context.Context) (lock.Guard, error) {
	cfg := a.cfg
	if cfg.RedisAddr == "" {
		return lock.NewLocal(), nil
	}

	client, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))
	return lock.NewRedis(client, lockPrefix, cfg.RunLockTTL, a.logger), nil
}

// newConsumer builds the Kafka consumer for change notifications. The
// in-memory bus feeds a.indexer directly from Run.
func (a *App) newConsumer() {
	cfg := a.cfg
	if cfg.EventBus != config.BusKafka {
		return
	}

	var store pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
	if a.redis != nil {
		store = pkgkafka.NewRedisIdempotencyStore(a.redis, idempotencyPrefix, idempotencyTTL)
	}

	a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, a.logger)
	a.consumer = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaConsumerGroup,
		Topic:    cfg.SyncEventName,
		MinBytes: 1,
		MaxBytes: 10e6, // 10 MB
	}, pkgkafka.IdempotentHandler(store, a.indexer.Handle, a.logger), a.logger).WithDeadLetter(a.dlq)

	a.logger.Info("kafka notification consumer initialized",
		slog.String("topic", cfg.SyncEventName),
		slog.String("group", cfg.KafkaConsumerGroup),
	)
}

// strategies returns the configured strategies, nil for the ones whose
// backend is missing.
func strategies(cfg *config.Config, index engine.DocumentIndex, emitter bus.Emitter) (direct, event delivery.Strategy) {
	if index != nil {
		direct = delivery.NewDirectPush(index, cfg.SearchIndex)
	}
	if emitter != nil {
		event = delivery.NewEventPush(emitter, cfg.SyncEventName, cfg.SyncEventIncludePayload)
	}
	return direct, event
}
