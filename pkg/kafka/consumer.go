package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// defaultHandlerRetries bounds handler attempts before a message is moved
// to the dead-letter topic (or dropped) and committed.
const defaultHandlerRetries = 3

// Handler processes one Kafka event.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	Topic      string
	MinBytes   int
	MaxBytes   int
	MaxRetries int
	RetryWait  time.Duration
}

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeadLetterPublisher receives messages whose handler kept failing.
type DeadLetterPublisher interface {
	Publish(ctx context.Context, msg kafka.Message, lastErr error, consumerGroup string) error
}

// Consumer reads events from one topic and hands them to a Handler. Messages
// are committed after handling, after being dead-lettered, or when they cannot
// be decoded.
type Consumer struct {
	reader    MessageReader
	cfg       ConsumerConfig
	logger    *slog.Logger
	handler   Handler
	dlq       DeadLetterPublisher
	closeOnce sync.Once
}

// NewConsumer creates a consumer for a topic and group.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return NewConsumerWithReader(r, cfg, handler, logger)
}

// NewConsumerWithReader creates a consumer around an existing reader.
func NewConsumerWithReader(r MessageReader, cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultHandlerRetries
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 100 * time.Millisecond
	}
	return &Consumer{reader: r, cfg: cfg, logger: logger, handler: handler}
}

// WithDeadLetter routes exhausted messages to dlq instead of dropping them.
func (c *Consumer) WithDeadLetter(dlq DeadLetterPublisher) *Consumer {
	c.dlq = dlq
	return c
}

// Start consumes messages until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	log := c.logger.With(slog.String("topic", c.cfg.Topic), slog.String("group", c.cfg.GroupID))
	log.Info("consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopping")
				return c.Close()
			}
			log.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}
		c.process(ctx, log, msg)
		if ctx.Err() != nil {
			log.Info("consumer stopping")
			return c.Close()
		}
	}
}

func (c *Consumer) process(ctx context.Context, log *slog.Logger, msg kafka.Message) {
	ctx = extractTraceContext(ctx, msg)

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		log.ErrorContext(ctx, "failed to unmarshal event",
			slog.String("error", err.Error()),
			slog.Int64("offset", msg.Offset),
		)
		c.commit(ctx, log, msg)
		return
	}

	start := time.Now()
	lastErr := c.handleWithRetry(ctx, log, msg, event)
	ConsumerProcessingDuration.WithLabelValues(msg.Topic, c.cfg.GroupID).Observe(time.Since(start).Seconds())
	if ctx.Err() != nil {
		// Leave the message uncommitted so it is redelivered.
		return
	}

	if lastErr != nil {
		ConsumerMessagesFailed.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()
		log.ErrorContext(ctx, "handler failed after all retries",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
		)
		if c.dlq != nil {
			if err := c.dlq.Publish(ctx, msg, lastErr, c.cfg.GroupID); err == nil {
				ConsumerDLQPublished.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()
			}
		}
	} else {
		ConsumerMessagesProcessed.WithLabelValues(msg.Topic, c.cfg.GroupID).Inc()
	}
	c.commit(ctx, log, msg)
}

func (c *Consumer) handleWithRetry(ctx context.Context, log *slog.Logger, msg kafka.Message, event *Event) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			return nil
		}
		log.WarnContext(ctx, "handler failed, will retry",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
		)
		if attempt == c.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.cfg.RetryWait):
		}
	}
	return lastErr
}

func (c *Consumer) commit(ctx context.Context, log *slog.Logger, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.ErrorContext(ctx, "failed to commit message",
			slog.String("error", err.Error()),
			slog.Int64("offset", msg.Offset),
		)
	}
}

// Close closes the consumer. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}

// TopicPrefix is the prefix shared by all catalog topics.
const TopicPrefix = "ecommerce"

// Topic builds a fully-qualified topic name such as ecommerce.product.updated.
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
