// Package kafka emits change notifications as Kafka events.
package kafka

import (
	"context"
	"fmt"

	"github.com/utafrali/catalog-sync/internal/bus"
	"github.com/utafrali/catalog-sync/internal/domain"
	pkgkafka "github.com/utafrali/catalog-sync/pkg/kafka"
	"github.com/utafrali/catalog-sync/pkg/logger"
)

const (
	aggregateType = "product"
	source        = "catalog-sync"
)

// Publisher is implemented by *pkgkafka.Producer.
type Publisher interface {
	PublishBatch(ctx context.Context, topic string, events []*pkgkafka.Event) error
	Ping(ctx context.Context) error
}

// Emitter writes each notification as an envelope keyed by product id on
// the topic named after the notification.
type Emitter struct {
	publisher Publisher
}

var _ bus.Emitter = (*Emitter)(nil)

// NewEmitter creates an emitter on top of publisher.
func NewEmitter(publisher Publisher) *Emitter {
	return &Emitter{publisher: publisher}
}

func (e *Emitter) Name() string { return "kafka" }

// Emit publishes notifications with one write per topic. Notifications of a
// sync run share a name, so a batch is a single write.
func (e *Emitter) Emit(ctx context.Context, notifications []domain.ChangeNotification) error {
	if len(notifications) == 0 {
		return nil
	}

	correlationID := logger.CorrelationIDFromContext(ctx)
	runID := logger.RunIDFromContext(ctx)

	var (
		topics []string
		byName = make(map[string][]*pkgkafka.Event)
	)
	for _, n := range notifications {
		ev, err := pkgkafka.NewEvent(n.Name, n.Data.ID, aggregateType, source, n.Data)
		if err != nil {
			return fmt.Errorf("encode notification %s: %w", n.Data.ID, err)
		}
		if correlationID != "" {
			ev.WithCorrelationID(correlationID)
		}
		if runID != "" {
			ev.WithMetadata("run_id", runID)
		}
		if _, seen := byName[n.Name]; !seen {
			topics = append(topics, n.Name)
		}
		byName[n.Name] = append(byName[n.Name], ev)
	}

	for _, topic := range topics {
		if err := e.publisher.PublishBatch(ctx, topic, byName[topic]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) Ping(ctx context.Context) error {
	return e.publisher.Ping(ctx)
}
