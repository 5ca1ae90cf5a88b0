// Package engine defines the search index backends that receive documents
// in Direct Push mode.
package engine

import (
	"context"

	"github.com/utafrali/catalog-sync/internal/domain"
)

// Ack is a backend's acceptance of one bulk upsert. TaskUID is set by
// engines that process writes asynchronously. Failed lists documents the
// engine rejected individually; the rest of the call succeeded.
type Ack struct {
	TaskUID *int64
	Failed  map[string]string
}

// DocumentIndex upserts documents keyed by id. Upserting an id that is
// already indexed replaces the document.
type DocumentIndex interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Upsert writes docs into index with a single bulk call. An error means
	// none of the documents can be assumed written.
	Upsert(ctx context.Context, index string, docs []domain.SearchDocument) (Ack, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
