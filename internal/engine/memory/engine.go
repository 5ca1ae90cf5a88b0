// Package memory is an in-process DocumentIndex for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/engine"
)

// Engine keeps documents per index in maps. Safe for concurrent use.
type Engine struct {
	mu      sync.RWMutex
	indices map[string]map[string]domain.SearchDocument
	task    int64
	calls   int

	// Reject, when set, is consulted for every document; a non-empty reason
	// rejects that document.
	Reject func(doc domain.SearchDocument) string
	// Fail, when set, fails whole calls with the returned error.
	Fail func(index string, docs []domain.SearchDocument) error
}

var _ engine.DocumentIndex = (*Engine)(nil)

// New creates an empty in-memory engine.
func New() *Engine {
	return &Engine{indices: make(map[string]map[string]domain.SearchDocument)}
}

func (e *Engine) Name() string { return "memory" }

// Upsert stores docs and acknowledges with an increasing task id.
func (e *Engine) Upsert(ctx context.Context, index string, docs []domain.SearchDocument) (engine.Ack, error) {
	if err := ctx.Err(); err != nil {
		return engine.Ack{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls++
	if e.Fail != nil {
		if err := e.Fail(index, docs); err != nil {
			return engine.Ack{}, err
		}
	}

	idx, ok := e.indices[index]
	if !ok {
		idx = make(map[string]domain.SearchDocument)
		e.indices[index] = idx
	}

	var ack engine.Ack
	for _, d := range docs {
		if e.Reject != nil {
			if reason := e.Reject(d); reason != "" {
				if ack.Failed == nil {
					ack.Failed = make(map[string]string)
				}
				ack.Failed[d.ID] = reason
				continue
			}
		}
		idx[d.ID] = d
	}
	e.task++
	uid := e.task
	ack.TaskUID = &uid
	return ack, nil
}

func (e *Engine) Ping(context.Context) error { return nil }

// Get returns a stored document.
func (e *Engine) Get(index, id string) (domain.SearchDocument, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.indices[index][id]
	return d, ok
}

// IDs returns the sorted ids stored in index.
func (e *Engine) IDs(index string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.indices[index]))
	for id := range e.indices[index] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Calls returns how many Upsert calls were made.
func (e *Engine) Calls() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.calls
}
