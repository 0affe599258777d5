// Package chat holds the canonical conversation entities shared by all
// Chorus components: topics, messages, stream events, restart points, and
// tool invocations.
package chat

import "time"

// Role identifies the author side of a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Topic is a conversation thread with exactly one assigned model at a time.
type Topic struct {
	ID           string    `json:"id"`
	ModelID      string    `json:"model_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Message is the canonical normalized message shape. Ingestion adapts the
// varying field names used by external transports into this struct before any
// other component sees the payload.
type Message struct {
	ID        string    `json:"id"`
	TopicID   string    `json:"topic_id"`
	SenderID  string    `json:"sender_id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// RestartPoint marks where conversation history was compressed into a
// continuity summary. A topic has at most one current restart point; writing
// a new one supersedes the previous.
type RestartPoint struct {
	TopicID      string    `json:"topic_id"`
	MessageIndex int       `json:"message_index"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
}

// StreamEvent is one incremental output event for observers of a topic.
// Events for a single MessageID are ordered; events across topics are not.
type StreamEvent struct {
	TopicID     string `json:"topic_id"`
	MessageID   string `json:"message_id"`
	Chunk       string `json:"chunk,omitempty"`
	Thinking    bool   `json:"thinking,omitempty"`
	Accumulated string `json:"accumulated,omitempty"`
	Final       bool   `json:"final,omitempty"`
}

// ToolInvocation is a structured tool request detected in model output.
// It is ephemeral and never persisted on its own.
type ToolInvocation struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Result     string         `json:"result,omitempty"`
}

// EstimateTokens returns a coarse token estimate for text using the chars/4
// heuristic. It is a tunable approximation, not a tokenizer.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
