package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-sync/internal/config"
	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/service"
	apperrors "github.com/utafrali/catalog-sync/pkg/errors"
	"github.com/utafrali/catalog-sync/pkg/pagination"
)

func productService(t *testing.T, products []domain.Product) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health/live" {
			w.WriteHeader(http.StatusOK)
			return
		}
		res := pagination.Result[domain.Product]{Data: products, TotalCount: len(products), Page: 1, PerPage: 100, TotalPages: 1}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(url string) *config.Config {
	return &config.Config{
		ServiceName:         "catalog-sync-test",
		HTTPPort:            18090,
		AdminRateLimit:      10,
		CatalogSource:       config.SourceRemote,
		ProductServiceURL:   url,
		RemotePageSize:      100,
		RemoteTimeout:       time.Second,
		SearchEngine:        config.EngineMemory,
		SearchIndex:         "products",
		EventBus:            config.BusMemory,
		SyncEventName:       domain.DefaultChangeEvent,
		SyncConsumerEnabled: true,
		SyncDeliveryMode:    string(domain.ModeDirect),
		SyncBatchSize:       2,
		SyncLimit:           1000,
		SyncConcurrency:     1,
		SyncRunTimeout:      time.Minute,
	}
}

func TestNewApp_WiresBothStrategies(t *testing.T) {
	products := []domain.Product{
		{ID: "prod_1", Title: "A", Handle: "a", Status: domain.StatusPublished},
		{ID: "prod_2", Title: "B", Handle: "b", Status: domain.StatusPublished},
		{ID: "prod_3", Title: "C", Handle: "c", Status: domain.StatusDraft},
	}
	srv := productService(t, products)

	a, err := NewApp(testConfig(srv.URL), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NotNil(t, a.indexer)
	require.NotNil(t, a.memBus)

	rep, err := a.Service().Reindex(context.Background(), domain.ModeDirect, service.Request{})
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, rep.Status)
	assert.Len(t, rep.Succeeded, 3)
	assert.Equal(t, 2, rep.Batches)

	rep, err = a.Service().Reindex(context.Background(), domain.ModeEvent, service.Request{})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeEvent, rep.Mode)
	assert.NotEmpty(t, rep.Note)
	assert.Len(t, a.memBus.Accepted(), 3)
}

func TestNewApp_WriteTimeoutFollowsRunTimeout(t *testing.T) {
	srv := productService(t, nil)
	tests := []struct {
		name string
		run  time.Duration
		want time.Duration
	}{
		{"bounded run", time.Minute, 90 * time.Second},
		{"unbounded run", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(srv.URL)
			cfg.SyncRunTimeout = tt.run

			a, err := NewApp(cfg, slog.New(slog.DiscardHandler))
			require.NoError(t, err)
			t.Cleanup(func() { _ = a.Close() })

			assert.Equal(t, tt.want, a.httpServer.WriteTimeout)
		})
	}
}

func TestNewApp_UnconfiguredBackendsFailAtRunTime(t *testing.T) {
	srv := productService(t, nil)
	cfg := testConfig(srv.URL)
	cfg.SearchEngine = ""
	cfg.EventBus = ""
	cfg.SyncConsumerEnabled = false

	a, err := NewApp(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	for _, mode := range []domain.Mode{domain.ModeDirect, domain.ModeEvent} {
		_, err := a.Service().Reindex(context.Background(), mode, service.Request{})
		assert.ErrorIs(t, err, apperrors.ErrConfigurationMissing, string(mode))
	}
}

func TestNewApp_MeilisearchWithoutHostIsUnconfigured(t *testing.T) {
	srv := productService(t, nil)
	cfg := testConfig(srv.URL)
	cfg.SearchEngine = config.EngineMeilisearch
	cfg.SyncConsumerEnabled = false

	a, err := NewApp(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.Service().Reindex(context.Background(), domain.ModeDirect, service.Request{})
	assert.ErrorIs(t, err, apperrors.ErrConfigurationMissing)
}

func TestRun_StopsOnCancel(t *testing.T) {
	srv := productService(t, nil)
	cfg := testConfig(srv.URL)
	cfg.HTTPPort = 18091

	a, err := NewApp(cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:18091/health/live")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
