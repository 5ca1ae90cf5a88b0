// Package catalog reads product snapshots from the source of truth.
package catalog

import (
	"context"

	"github.com/utafrali/catalog-sync/internal/domain"
)

// DefaultLimit bounds a snapshot when the caller passes no limit.
const DefaultLimit = 1000

// Reader produces a bounded snapshot of products with variants, images and
// categories already expanded. Snapshot.Total is the number of matching
// products in the catalog, ignoring limit.
type Reader interface {
	Name() string
	Fetch(ctx context.Context, filter domain.Filter, limit int) (domain.Snapshot, error)
	Ping(ctx context.Context) error
}
