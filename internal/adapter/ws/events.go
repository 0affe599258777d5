package ws

import (
	"encoding/json"

	"github.com/Strob0t/Chorus/internal/domain/chat"
)

// Event type constants for WebSocket messages.
const (
	EventStreamThinking = "stream.thinking"
	EventStreamChunk    = "stream.chunk"
	EventStreamFinal    = "stream.final"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Envelope wraps a stream event in the wire envelope, typed by the phase of
// the response it belongs to.
func Envelope(ev chat.StreamEvent) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{
		Type:    eventTypeFor(ev),
		Payload: payload,
	})
}

func eventTypeFor(ev chat.StreamEvent) string {
	switch {
	case ev.Final:
		return EventStreamFinal
	case ev.Thinking:
		return EventStreamThinking
	default:
		return EventStreamChunk
	}
}
