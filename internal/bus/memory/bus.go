// Package memory is an in-process event bus.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/utafrali/catalog-sync/internal/bus"
	"github.com/utafrali/catalog-sync/internal/domain"
)

// Handler processes one notification taken off the bus.
type Handler func(ctx context.Context, n domain.ChangeNotification) error

// Bus remembers the most recent accepted notifications, as many as its
// capacity, and, when a subscriber runs, hands them over through a buffered
// queue. Emit never waits for the
// subscriber; a full queue rejects the batch.
type Bus struct {
	mu        sync.Mutex
	accepted  []domain.ChangeNotification
	history   int
	emits     int
	queue     chan domain.ChangeNotification
	subscribe bool

	// Fail, when set, rejects whole Emit calls.
	Fail func(notifications []domain.ChangeNotification) error
}

var _ bus.Emitter = (*Bus)(nil)

// ErrQueueFull is returned when the subscriber has fallen behind.
var ErrQueueFull = errors.New("memory bus: queue full")

// New creates a bus whose queue holds up to capacity notifications.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1024
	}
	return &Bus{queue: make(chan domain.ChangeNotification, capacity), history: capacity}
}

func (b *Bus) Name() string { return "memory" }

func (b *Bus) Emit(ctx context.Context, notifications []domain.ChangeNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.emits++
	if b.Fail != nil {
		if err := b.Fail(notifications); err != nil {
			return err
		}
	}
	if b.subscribe && len(b.queue)+len(notifications) > cap(b.queue) {
		return ErrQueueFull
	}

	b.accepted = append(b.accepted, notifications...)
	if len(b.accepted) > 2*b.history {
		b.accepted = append([]domain.ChangeNotification(nil), b.accepted[len(b.accepted)-b.history:]...)
	}
	if b.subscribe {
		for _, n := range notifications {
			b.queue <- n
		}
	}
	return nil
}

func (b *Bus) Ping(context.Context) error { return nil }

// Run feeds queued notifications to h until ctx is done. Handler errors are
// returned to nobody; the handler is expected to log them.
func (b *Bus) Run(ctx context.Context, h Handler) error {
	b.mu.Lock()
	b.subscribe = true
	b.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-b.queue:
			_ = h(ctx, n)
		}
	}
}

// Accepted returns a copy of the most recent accepted notifications in emit
// order, at most the bus capacity.
func (b *Bus) Accepted() []domain.ChangeNotification {
	b.mu.Lock()
	defer b.mu.Unlock()
	recent := b.accepted
	if len(recent) > b.history {
		recent = recent[len(recent)-b.history:]
	}
	return append([]domain.ChangeNotification(nil), recent...)
}

// Emits returns how many Emit calls were made.
func (b *Bus) Emits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.emits
}
