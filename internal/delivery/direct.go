package delivery

import (
	"context"

	"github.com/utafrali/catalog-sync/internal/dispatch"
	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/engine"
)

// DirectPush upserts each batch into a search index with one bulk call.
type DirectPush struct {
	index engine.DocumentIndex
	name  string
}

// NewDirectPush delivers into the index called name.
func NewDirectPush(index engine.DocumentIndex, name string) *DirectPush {
	return &DirectPush{index: index, name: name}
}

func (d *DirectPush) Mode() domain.Mode { return domain.ModeDirect }

func (d *DirectPush) Target() string { return d.name }

func (d *DirectPush) Deliver(ctx context.Context, batch dispatch.Batch[Item]) (dispatch.Outcome, error) {
	docs := make([]domain.SearchDocument, len(batch.Items))
	for i, it := range batch.Items {
		docs[i] = it.Document
	}
	ack, err := d.index.Upsert(ctx, d.name, docs)
	if err != nil {
		return dispatch.Outcome{}, err
	}
	return dispatch.Outcome{Failed: ack.Failed, TaskUID: ack.TaskUID}, nil
}
