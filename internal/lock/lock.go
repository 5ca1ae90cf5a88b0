// Package lock keeps two sync runs of the same pipeline from overlapping.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrHeld is returned by Acquire when another run holds the key.
var ErrHeld = errors.New("lock held")

// Guard grants exclusive runs per key. Release must be called once the
// run ends; it is safe to call more than once.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Local guards runs within one process.
type Local struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocal creates an in-process guard.
func NewLocal() *Local {
	return &Local{held: make(map[string]bool)}
}

func (l *Local) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, ErrHeld
	}
	l.held[key] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
