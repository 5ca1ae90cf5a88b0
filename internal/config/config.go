package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/utafrali/catalog-sync/internal/domain"
	pkgconfig "github.com/utafrali/catalog-sync/pkg/config"
	"github.com/utafrali/catalog-sync/pkg/database"
)

// Catalog sources.
const (
	SourcePostgres = "postgres"
	SourceRemote   = "remote"
)

// Search engines. An empty engine leaves Direct Push unconfigured.
const (
	EngineMeilisearch   = "meilisearch"
	EngineElasticsearch = "elasticsearch"
	EngineMemory        = "memory"
)

// Event buses. An empty bus leaves Event-Driven Push unconfigured.
const (
	BusKafka  = "kafka"
	BusMemory = "memory"
)

// Config holds all configuration for the catalog sync service.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"catalog-sync"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort         int      `env:"HTTP_PORT" envDefault:"8090"`
	AdminRateLimit   int      `env:"ADMIN_RATE_LIMIT" envDefault:"10"`
	AdminCORSOrigins []string `env:"ADMIN_CORS_ORIGINS" envSeparator:","`

	// pprof
	PprofEnabled      bool     `env:"PPROF_ENABLED" envDefault:"false"`
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`

	// Catalog
	CatalogSource     string        `env:"CATALOG_SOURCE" envDefault:"postgres"`
	ProductServiceURL string        `env:"PRODUCT_SERVICE_URL" envDefault:"http://localhost:8001"`
	RemotePageSize    int           `env:"PRODUCT_SERVICE_PAGE_SIZE" envDefault:"100"`
	RemoteTimeout     time.Duration `env:"PRODUCT_SERVICE_TIMEOUT" envDefault:"10s"`
	RemoteRetryMax    int           `env:"PRODUCT_SERVICE_RETRY_MAX" envDefault:"3"`

	// PostgreSQL
	PostgresHost            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort            int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser            string        `env:"POSTGRES_USER" envDefault:"catalog"`
	PostgresPassword        string        `env:"POSTGRES_PASSWORD" envDefault:"catalog"`
	PostgresDB              string        `env:"POSTGRES_DB" envDefault:"catalog"`
	PostgresSSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMaxConns        int32         `env:"POSTGRES_MAX_CONNS" envDefault:"5"`
	PostgresMinConns        int32         `env:"POSTGRES_MIN_CONNS" envDefault:"1"`
	PostgresMaxConnLifetime time.Duration `env:"POSTGRES_MAX_CONN_LIFETIME" envDefault:"30m"`
	PostgresConnectAttempts uint          `env:"POSTGRES_CONNECT_ATTEMPTS" envDefault:"3"`
	PostgresSlowQuery       time.Duration `env:"POSTGRES_SLOW_QUERY_THRESHOLD" envDefault:"2s"`

	// Search engine
	SearchEngine         string        `env:"SEARCH_ENGINE"`
	SearchIndex          string        `env:"SEARCH_INDEX" envDefault:"products"`
	MeilisearchHost      string        `env:"MEILISEARCH_HOST"`
	MeilisearchAdminKey  string        `env:"MEILISEARCH_ADMIN_KEY"`
	MeilisearchTimeout   time.Duration `env:"MEILISEARCH_TIMEOUT" envDefault:"30s"`
	ElasticsearchURL     string        `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchRefresh bool          `env:"ELASTICSEARCH_REFRESH" envDefault:"false"`

	// Event bus
	EventBus                string   `env:"EVENT_BUS"`
	KafkaBrokers            []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup      string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"catalog-sync-indexer"`
	SyncEventName           string   `env:"SYNC_EVENT_NAME" envDefault:"ecommerce.product.updated"`
	SyncEventIncludePayload bool     `env:"SYNC_EVENT_INCLUDE_PAYLOAD" envDefault:"false"`
	SyncConsumerEnabled     bool     `env:"SYNC_CONSUMER_ENABLED" envDefault:"false"`

	// Sync pipeline
	SyncDeliveryMode string        `env:"SYNC_DELIVERY_MODE" envDefault:"direct"`
	SyncBatchSize    int           `env:"SYNC_BATCH_SIZE" envDefault:"100"`
	SyncLimit        int           `env:"SYNC_LIMIT" envDefault:"1000"`
	SyncConcurrency  int           `env:"SYNC_CONCURRENCY" envDefault:"1"`
	SyncBatchRate    float64       `env:"SYNC_BATCH_RATE" envDefault:"0"`
	SyncRunTimeout   time.Duration `env:"SYNC_RUN_TIMEOUT" envDefault:"10m"`

	// Redis (run lock, consumer dedupe). Empty means in-process only.
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RunLockTTL    time.Duration `env:"RUN_LOCK_TTL" envDefault:"15m"`

	// Tracing
	TracingEnabled bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TraceSampling  float64 `env:"TRACE_SAMPLING_RATE" envDefault:"1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load catalog-sync config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants. Missing engine or bus settings
// are not errors here; a run that needs them reports them instead.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{SourcePostgres, SourceRemote}, c.CatalogSource) {
		return fmt.Errorf("invalid CATALOG_SOURCE %q: want postgres or remote", c.CatalogSource)
	}
	if c.CatalogSource == SourceRemote {
		if _, err := url.ParseRequestURI(c.ProductServiceURL); err != nil {
			return fmt.Errorf("invalid PRODUCT_SERVICE_URL: %w", err)
		}
	}
	if !slices.Contains([]string{"", EngineMeilisearch, EngineElasticsearch, EngineMemory}, c.SearchEngine) {
		return fmt.Errorf("invalid SEARCH_ENGINE %q", c.SearchEngine)
	}
	if !slices.Contains([]string{"", BusKafka, BusMemory}, c.EventBus) {
		return fmt.Errorf("invalid EVENT_BUS %q", c.EventBus)
	}
	if !domain.Mode(c.SyncDeliveryMode).Valid() {
		return fmt.Errorf("invalid SYNC_DELIVERY_MODE %q: want direct or event", c.SyncDeliveryMode)
	}
	if c.SearchIndex == "" {
		return fmt.Errorf("SEARCH_INDEX must not be empty")
	}
	if c.SyncBatchSize < 1 {
		return fmt.Errorf("invalid SYNC_BATCH_SIZE: %d", c.SyncBatchSize)
	}
	if c.SyncLimit < 1 {
		return fmt.Errorf("invalid SYNC_LIMIT: %d", c.SyncLimit)
	}
	if c.SyncConcurrency < 1 {
		return fmt.Errorf("invalid SYNC_CONCURRENCY: %d", c.SyncConcurrency)
	}
	if c.SyncBatchRate < 0 {
		return fmt.Errorf("invalid SYNC_BATCH_RATE: %v", c.SyncBatchRate)
	}
	if c.AdminRateLimit < 1 {
		return fmt.Errorf("invalid ADMIN_RATE_LIMIT: %d", c.AdminRateLimit)
	}
	if c.EventBus == BusKafka && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when EVENT_BUS=kafka")
	}
	if c.SyncConsumerEnabled && c.SearchEngine == "" {
		return fmt.Errorf("SYNC_CONSUMER_ENABLED requires SEARCH_ENGINE")
	}
	return nil
}

// Postgres returns the pool configuration for the catalog database.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPassword
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSLMode
	pg.MaxConns = c.PostgresMaxConns
	pg.MinConns = c.PostgresMinConns
	pg.MaxConnLifetime = c.PostgresMaxConnLifetime
	pg.ConnectAttempts = c.PostgresConnectAttempts
	return pg
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}
