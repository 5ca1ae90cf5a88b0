// Package event applies product change notifications to the search index.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalog-sync/internal/catalog"
	"github.com/utafrali/catalog-sync/internal/domain"
	"github.com/utafrali/catalog-sync/internal/engine"
	"github.com/utafrali/catalog-sync/internal/projector"
	pkgkafka "github.com/utafrali/catalog-sync/pkg/kafka"
)

// Consumer turns change notifications into single-document upserts. A
// notification without a product payload is resolved through the catalog.
type Consumer struct {
	reader    catalog.Reader
	index     engine.DocumentIndex
	indexName string
	eventName string
	logger    *slog.Logger
}

// NewConsumer creates a consumer that upserts into indexName. Notifications
// named anything other than eventName are ignored.
func NewConsumer(reader catalog.Reader, index engine.DocumentIndex, indexName, eventName string, logger *slog.Logger) *Consumer {
	if eventName == "" {
		eventName = domain.DefaultChangeEvent
	}
	return &Consumer{
		reader:    reader,
		index:     index,
		indexName: indexName,
		eventName: eventName,
		logger:    logger,
	}
}

// Handle processes a Kafka envelope. It satisfies pkgkafka.Handler.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	if event.EventType != c.eventName {
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	var data domain.ChangeData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal %s data: %w", event.EventType, err)
	}
	if data.ID == "" {
		data.ID = event.AggregateID
	}
	return c.apply(ctx, data)
}

// HandleNotification processes a notification taken off the in-memory bus.
func (c *Consumer) HandleNotification(ctx context.Context, n domain.ChangeNotification) error {
	if n.Name != c.eventName {
		return nil
	}
	if err := c.apply(ctx, n.Data); err != nil {
		c.logger.ErrorContext(ctx, "failed to apply change notification",
			slog.String("product_id", n.Data.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

func (c *Consumer) apply(ctx context.Context, data domain.ChangeData) error {
	product := data.Product
	if product == nil {
		if data.ID == "" {
			c.logger.WarnContext(ctx, "change notification without product id")
			return nil
		}
		snap, err := c.reader.Fetch(ctx, domain.Filter{IDs: []string{data.ID}}, 1)
		if err != nil {
			return fmt.Errorf("fetch product %s: %w", data.ID, err)
		}
		if len(snap.Products) == 0 {
			c.logger.WarnContext(ctx, "product from notification not found in catalog",
				slog.String("product_id", data.ID),
			)
			return nil
		}
		product = &snap.Products[0]
	}

	doc := projector.Project(*product)
	ack, err := c.index.Upsert(ctx, c.indexName, []domain.SearchDocument{doc})
	if err != nil {
		return fmt.Errorf("index product %s: %w", doc.ID, err)
	}
	if reason, rejected := ack.Failed[doc.ID]; rejected {
		return fmt.Errorf("index product %s: rejected: %s", doc.ID, reason)
	}

	c.logger.InfoContext(ctx, "indexed product from change notification",
		slog.String("product_id", doc.ID),
		slog.Bool("from_payload", data.Product != nil),
	)
	return nil
}
