// Package meilisearch is a DocumentIndex backed by the Meilisearch
// documents API.
package meilisearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/engine"
	"github.com/utafrali/catalog-sync/pkg/httpclient"
)

const serviceName = "meilisearch"

// Config holds the Meilisearch connection settings.
type Config struct {
	Host     string
	AdminKey string
	Timeout  time.Duration
}

// Engine posts documents to /indexes/{index}/documents.
type Engine struct {
	host   string
	key    string
	client *httpclient.CircuitBreakerClient
	logger *slog.Logger
}

var _ engine.DocumentIndex = (*Engine)(nil)

// New creates a Meilisearch engine. Requests are never retried; a circuit
// breaker stops calls while the engine keeps failing.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	host := strings.TrimRight(cfg.Host, "/")
	if _, err := url.ParseRequestURI(host); err != nil || host == "" {
		return nil, fmt.Errorf("meilisearch: invalid host %q", cfg.Host)
	}

	hc := httpclient.DefaultConfig()
	hc.MaxRetries = 0
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}

	return &Engine{
		host:   host,
		key:    cfg.AdminKey,
		client: httpclient.NewCircuitBreakerClient(httpclient.New(hc), httpclient.DefaultCircuitBreakerConfig(serviceName), logger),
		logger: logger,
	}, nil
}

func (e *Engine) Name() string { return serviceName }

type taskResponse struct {
	TaskUID int64  `json:"taskUid"`
	Status  string `json:"status"`
}

// Upsert adds or replaces docs. Any non-2xx reply fails the whole call.
func (e *Engine) Upsert(ctx context.Context, index string, docs []domain.SearchDocument) (engine.Ack, error) {
	if docs == nil {
		docs = []domain.SearchDocument{}
	}
	body, err := json.Marshal(docs)
	if err != nil {
		return engine.Ack{}, fmt.Errorf("meilisearch upsert: encode documents: %w", err)
	}

	endpoint := fmt.Sprintf("%s/indexes/%s/documents?primaryKey=id", e.host, url.PathEscape(index))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return engine.Ack{}, fmt.Errorf("meilisearch upsert: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	e.authorize(req)

	resp, err := e.client.Do(ctx, req)
	if err != nil {
		return engine.Ack{}, fmt.Errorf("meilisearch upsert: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return engine.Ack{}, fmt.Errorf("meilisearch upsert: %w", httpclient.ParseResponseError(resp, serviceName))
	}

	var task taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return engine.Ack{}, fmt.Errorf("meilisearch upsert: decode task: %w", err)
	}

	e.logger.DebugContext(ctx, "meilisearch task enqueued",
		slog.String("index", index),
		slog.Int64("task_uid", task.TaskUID),
		slog.Int("documents", len(docs)),
	)
	return engine.Ack{TaskUID: &task.TaskUID}, nil
}

// Ping calls the unauthenticated /health endpoint.
func (e *Engine) Ping(ctx context.Context) error {
	resp, err := e.client.Get(ctx, e.host+"/health")
	if err != nil {
		return fmt.Errorf("meilisearch ping: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("meilisearch ping: %w", httpclient.ParseResponseError(resp, serviceName))
	}
	return nil
}

func (e *Engine) authorize(req *http.Request) {
	if e.key != "" {
		req.Header.Set("Authorization", "Bearer "+e.key)
	}
}
