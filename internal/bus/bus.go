// Package bus defines where change notifications are emitted in
// Event-Driven Push mode.
package bus

import (
	"context"

	"github.com/utafrali/catalog-sync/internal/domain"
)

// Emitter hands notifications to an event bus. A nil error means the bus
// accepted every notification; nothing is known about downstream
// processing.
type Emitter interface {
	Name() string
	Emit(ctx context.Context, notifications []domain.ChangeNotification) error
	Ping(ctx context.Context) error
}
