package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Strob0t/Chorus/internal/domain/chat"
)

// subscriberBufferSize is the channel buffer for each observer. Slow
// observers drop events rather than stalling generation.
const subscriberBufferSize = 64

// StreamBroadcaster fans out stream events to all current observers of a
// topic. For a single message ID, events reach each observer in emission
// order; events for different messages or topics may interleave freely.
// It implements the broadcast port.
type StreamBroadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan chat.StreamEvent // topic ID -> sub ID -> ch
}

// NewStreamBroadcaster creates a StreamBroadcaster with no observers.
func NewStreamBroadcaster() *StreamBroadcaster {
	return &StreamBroadcaster{
		subs: make(map[string]map[string]chan chat.StreamEvent),
	}
}

// Subscribe registers an observer for a topic. The returned channel receives
// events until Unsubscribe is called or ctx is cancelled, whichever comes
// first; the subscription ID identifies this observer for Unsubscribe.
func (b *StreamBroadcaster) Subscribe(ctx context.Context, topicID string) (<-chan chat.StreamEvent, string) {
	subID := uuid.New().String()
	ch := make(chan chat.StreamEvent, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subs[topicID]; !ok {
		b.subs[topicID] = make(map[string]chan chat.StreamEvent)
	}
	b.subs[topicID][subID] = ch
	b.mu.Unlock()

	slog.Debug("stream observer added", "topic_id", topicID, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(topicID, subID)
	}()

	return ch, subID
}

// Unsubscribe removes an observer and closes its channel. Safe to call more
// than once.
func (b *StreamBroadcaster) Unsubscribe(topicID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[topicID]
	if !ok {
		return
	}
	ch, ok := subs[subID]
	if !ok {
		return
	}
	delete(subs, subID)
	if len(subs) == 0 {
		delete(b.subs, topicID)
	}
	close(ch)
	slog.Debug("stream observer removed", "topic_id", topicID, "sub_id", subID)
}

// Emit delivers an event to every observer of its topic. Fire-and-forget:
// observers whose buffers are full miss the event rather than blocking the
// generation that produced it.
func (b *StreamBroadcaster) Emit(_ context.Context, event chat.StreamEvent) {
	// Sends stay under the read lock so a concurrent Unsubscribe (which
	// closes channels under the write lock) can never race a send. The
	// sends are non-blocking, so the lock is held only briefly.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[event.TopicID] {
		select {
		case ch <- event:
		default:
			slog.Debug("stream observer lagging, event dropped",
				"topic_id", event.TopicID,
				"message_id", event.MessageID,
			)
		}
	}
}

// ObserverCount returns the number of current observers of a topic.
func (b *StreamBroadcaster) ObserverCount(topicID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topicID])
}
