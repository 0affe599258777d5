// Package broadcast defines the port for emitting stream events to observers.
package broadcast

import (
	"context"

	"github.com/Strob0t/Chorus/internal/domain/chat"
)

// Broadcaster fans out stream events to all current observers of the event's
// topic. Emit is fire-and-forget: it never blocks generation and never
// returns an error.
type Broadcaster interface {
	Emit(ctx context.Context, event chat.StreamEvent)
}
