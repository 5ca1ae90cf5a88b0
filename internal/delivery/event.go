package delivery

import (
	"context"

	"github.com/utafrali/catalog-sync/internal/bus"
	"github.com/utafrali/catalog-sync/internal/dispatch"
	"github.com/utafrali/catalog-sync/internal/domain"
)

// EventPush emits one change notification per product. The batch succeeds
// once the bus accepts it; indexing happens later in a consumer.
type EventPush struct {
	emitter        bus.Emitter
	name           string
	includePayload bool
}

// NewEventPush emits notifications called name. With includePayload the
// full product travels with each notification.
func NewEventPush(emitter bus.Emitter, name string, includePayload bool) *EventPush {
	if name == "" {
		name = domain.DefaultChangeEvent
	}
	return &EventPush{emitter: emitter, name: name, includePayload: includePayload}
}

func (e *EventPush) Mode() domain.Mode { return domain.ModeEvent }

func (e *EventPush) Target() string { return e.name }

func (e *EventPush) Deliver(ctx context.Context, batch dispatch.Batch[Item]) (dispatch.Outcome, error) {
	notes := make([]domain.ChangeNotification, len(batch.Items))
	for i := range batch.Items {
		n := domain.ChangeNotification{
			Name: e.name,
			Data: domain.ChangeData{ID: batch.Items[i].Product.ID},
		}
		if e.includePayload {
			p := batch.Items[i].Product
			n.Data.Product = &p
		}
		notes[i] = n
	}
	if err := e.emitter.Emit(ctx, notes); err != nil {
		return dispatch.Outcome{}, err
	}
	return dispatch.Outcome{}, nil
}
