package ws

import (
	"encoding/json"
	"testing"

	"github.com/Strob0t/Chorus/internal/domain/chat"
)

func TestEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		event    chat.StreamEvent
		wantType string
	}{
		{
			name:     "thinking phase",
			event:    chat.StreamEvent{TopicID: "t1", MessageID: "m1", Thinking: true},
			wantType: EventStreamThinking,
		},
		{
			name:     "content chunk",
			event:    chat.StreamEvent{TopicID: "t1", MessageID: "m1", Chunk: "Hel", Accumulated: "Hel"},
			wantType: EventStreamChunk,
		},
		{
			name:     "final wins over thinking",
			event:    chat.StreamEvent{TopicID: "t1", MessageID: "m1", Thinking: true, Final: true},
			wantType: EventStreamFinal,
		},
		{
			name:     "final",
			event:    chat.StreamEvent{TopicID: "t1", MessageID: "m1", Accumulated: "Hello", Final: true},
			wantType: EventStreamFinal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Envelope(tt.event)
			if err != nil {
				t.Fatalf("Envelope: %v", err)
			}

			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("unmarshal envelope: %v", err)
			}
			if msg.Type != tt.wantType {
				t.Errorf("type = %q, want %q", msg.Type, tt.wantType)
			}

			var ev chat.StreamEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				t.Fatalf("unmarshal payload: %v", err)
			}
			if ev.TopicID != tt.event.TopicID || ev.Chunk != tt.event.Chunk || ev.Final != tt.event.Final {
				t.Errorf("payload round-trip = %+v, want %+v", ev, tt.event)
			}
		})
	}
}
