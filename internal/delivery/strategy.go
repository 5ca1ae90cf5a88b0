// Package delivery holds the two ways a sync run hands batches to the
// search side: bulk upserts into an index, or change notifications on a
// bus.
package delivery

import (
	"context"

	"github.com/utafrali/catalog-sync/internal/dispatch"
	"github.com/utafrali/catalog-sync/internal/domain"
)

// Item is one product of a run together with its projected document.
type Item struct {
	Product  domain.Product
	Document domain.SearchDocument
}

// ItemID keys items in dispatch results.
func ItemID(it Item) string { return it.Document.ID }

// Strategy delivers one batch. Returning an error fails the whole batch;
// Outcome.Failed fails individual items.
type Strategy interface {
	Mode() domain.Mode
	// Target names where batches go: an index or a notification name.
	Target() string
	Deliver(ctx context.Context, batch dispatch.Batch[Item]) (dispatch.Outcome, error)
}
