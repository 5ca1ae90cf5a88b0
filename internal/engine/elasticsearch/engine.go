// Package elasticsearch is a DocumentIndex backed by the Elasticsearch bulk
// API.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/engine"
)

const serviceName = "elasticsearch"

// Config holds the Elasticsearch connection settings.
type Config struct {
	URL string
	// Refresh makes bulk writes visible to search before returning.
	Refresh bool
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Engine writes documents with the _bulk endpoint. Indices are created on
// first use with indexMapping.
type Engine struct {
	client  *elasticsearch.Client
	refresh bool
	logger  *slog.Logger

	mu      sync.Mutex
	ensured map[string]bool
}

var _ engine.DocumentIndex = (*Engine)(nil)

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// New creates an Elasticsearch engine. It does not contact the cluster.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{cfg.URL},
		Transport:    cfg.Transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}
	return &Engine{
		client:  client,
		refresh: cfg.Refresh,
		logger:  logger,
		ensured: make(map[string]bool),
	}, nil
}

func (e *Engine) Name() string { return serviceName }

// Upsert indexes docs with one bulk request. A transport or cluster error
// fails every document; per-item errors fail only those ids.
func (e *Engine) Upsert(ctx context.Context, index string, docs []domain.SearchDocument) (engine.Ack, error) {
	if len(docs) == 0 {
		return engine.Ack{}, nil
	}
	if err := e.ensureIndex(ctx, index); err != nil {
		return engine.Ack{}, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range docs {
		action := map[string]any{"index": map[string]any{"_index": index, "_id": docs[i].ID}}
		if err := enc.Encode(action); err != nil {
			return engine.Ack{}, fmt.Errorf("elasticsearch bulk: encode action: %w", err)
		}
		if err := enc.Encode(docs[i]); err != nil {
			return engine.Ack{}, fmt.Errorf("elasticsearch bulk: encode document: %w", err)
		}
	}

	opts := []func(*esapi.BulkRequest){
		e.client.Bulk.WithIndex(index),
		e.client.Bulk.WithContext(ctx),
	}
	if e.refresh {
		opts = append(opts, e.client.Bulk.WithRefresh("true"))
	}

	res, err := e.client.Bulk(bytes.NewReader(buf.Bytes()), opts...)
	if err != nil {
		return engine.Ack{}, fmt.Errorf("elasticsearch bulk: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return engine.Ack{}, fmt.Errorf("elasticsearch bulk: %w", decodeError(res).err(res))
	}

	var bulk bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return engine.Ack{}, fmt.Errorf("elasticsearch bulk: decode response: %w", err)
	}

	ack := engine.Ack{}
	if bulk.Errors {
		ack.Failed = make(map[string]string)
		for _, item := range bulk.Items {
			for _, result := range item {
				if result.Error.Type != "" {
					ack.Failed[result.ID] = fmt.Sprintf("%s: %s", result.Error.Type, result.Error.Reason)
				}
			}
		}
	}

	e.logger.DebugContext(ctx, "elasticsearch bulk complete",
		slog.String("index", index),
		slog.Int("documents", len(docs)),
		slog.Int("failed", len(ack.Failed)),
	)
	return ack, nil
}

// Ping checks whether the cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// ensureIndex creates index with the product mapping unless it exists.
func (e *Engine) ensureIndex(ctx context.Context, index string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ensured[index] {
		return nil
	}

	res, err := e.client.Indices.Exists([]string{index}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch: check index %s: %w", index, err)
	}
	_ = res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		res, err = e.client.Indices.Create(index,
			e.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
			e.client.Indices.Create.WithContext(ctx),
		)
		if err != nil {
			return fmt.Errorf("elasticsearch: create index %s: %w", index, err)
		}
		defer func() { _ = res.Body.Close() }()

		if res.IsError() {
			er := decodeError(res)
			// Another instance created it between the two calls.
			if er.Error.Type != "resource_already_exists_exception" {
				return fmt.Errorf("elasticsearch: create index %s: %w", index, er.err(res))
			}
		} else {
			e.logger.InfoContext(ctx, "elasticsearch index created", slog.String("index", index))
		}
	} else if res.IsError() {
		return fmt.Errorf("elasticsearch: check index %s: unexpected status %s", index, res.Status())
	}

	e.ensured[index] = true
	return nil
}

func decodeError(res *esapi.Response) errorResponse {
	var er errorResponse
	_ = json.NewDecoder(res.Body).Decode(&er)
	return er
}

func (er errorResponse) err(res *esapi.Response) error {
	if er.Error.Type != "" {
		return fmt.Errorf("status %d: %s: %s", res.StatusCode, er.Error.Type, er.Error.Reason)
	}
	return fmt.Errorf("unexpected status %s", res.Status())
}
