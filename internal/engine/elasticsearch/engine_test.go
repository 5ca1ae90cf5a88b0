package elasticsearch

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-sync/internal/domain"
)

// fakeCluster answers the handful of endpoints the engine calls.
type fakeCluster struct {
	mu       sync.Mutex
	indices  map[string]bool
	creates  int
	bulkBody string
	bulkResp string
	bulkCode int
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.Trim(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodHead && path == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		if f.indices[path] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodPut:
		f.creates++
		f.indices[path] = true
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	case strings.HasSuffix(path, "_bulk"):
		b, _ := io.ReadAll(r.Body)
		f.bulkBody = string(b)
		if f.bulkCode != 0 {
			w.WriteHeader(f.bulkCode)
		}
		_, _ = io.WriteString(w, f.bulkResp)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestEngine(t *testing.T, cluster *fakeCluster) *Engine {
	t.Helper()
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	e, err := New(Config{URL: srv.URL}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return e
}

func TestUpsert_CreatesIndexOnceAndSendsNDJSON(t *testing.T) {
	cluster := &fakeCluster{indices: map[string]bool{}, bulkResp: `{"errors":false,"items":[]}`}
	e := newTestEngine(t, cluster)

	docs := []domain.SearchDocument{{ID: "prod_1", Title: "Mug"}, {ID: "prod_2", Title: "Cup"}}
	for range 2 {
		ack, err := e.Upsert(context.Background(), "products", docs)
		require.NoError(t, err)
		assert.Empty(t, ack.Failed)
		assert.Nil(t, ack.TaskUID)
	}
	assert.Equal(t, 1, cluster.creates)

	sc := bufio.NewScanner(strings.NewReader(cluster.bulkBody))
	var lines []map[string]any
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 4)
	assert.Equal(t, "prod_1", lines[0]["index"].(map[string]any)["_id"])
	assert.Equal(t, "Mug", lines[1]["title"])
	assert.Equal(t, "prod_2", lines[2]["index"].(map[string]any)["_id"])
}

func TestUpsert_PerItemErrors(t *testing.T) {
	cluster := &fakeCluster{
		indices: map[string]bool{"products": true},
		bulkResp: `{"errors":true,"items":[
			{"index":{"_id":"prod_1","status":201}},
			{"index":{"_id":"prod_2","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse"}}}
		]}`,
	}
	e := newTestEngine(t, cluster)

	ack, err := e.Upsert(context.Background(), "products", []domain.SearchDocument{{ID: "prod_1"}, {ID: "prod_2"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"prod_2": "mapper_parsing_exception: failed to parse"}, ack.Failed)
}

func TestUpsert_ClusterErrorFailsBatch(t *testing.T) {
	cluster := &fakeCluster{
		indices:  map[string]bool{"products": true},
		bulkCode: http.StatusTooManyRequests,
		bulkResp: `{"error":{"type":"es_rejected_execution_exception","reason":"queue full"},"status":429}`,
	}
	e := newTestEngine(t, cluster)

	_, err := e.Upsert(context.Background(), "products", []domain.SearchDocument{{ID: "prod_1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "es_rejected_execution_exception")
}

func TestUpsert_EmptyIsNoop(t *testing.T) {
	cluster := &fakeCluster{indices: map[string]bool{}}
	e := newTestEngine(t, cluster)

	_, err := e.Upsert(context.Background(), "products", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cluster.creates)
}

func TestPing(t *testing.T) {
	e := newTestEngine(t, &fakeCluster{indices: map[string]bool{}})
	assert.NoError(t, e.Ping(context.Background()))
	assert.Equal(t, "elasticsearch", e.Name())
}
