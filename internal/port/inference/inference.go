// Package inference defines the model inference service port (interface).
package inference

import "context"

// ChatMessage is one prompt message in provider-neutral shape.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChunkFunc receives streaming output. chunk is the incremental delta,
// thinking marks reasoning output that precedes the answer, and accumulated
// is the full partial text so far. Invoked zero or more times before Chat
// returns, always from a single goroutine, in emission order.
type ChunkFunc func(chunk string, thinking bool, accumulated string)

// Request is a chat completion request.
type Request struct {
	Model    string
	Messages []ChatMessage

	// OnChunk, when non-nil, enables streaming.
	OnChunk ChunkFunc
}

// Result is the final outcome of a chat completion.
type Result struct {
	Text      string
	Analysis  string
	Model     string
	TokensIn  int
	TokensOut int
}

// ModelInfo describes a model known to the inference service.
type ModelInfo struct {
	Name          string
	ContextWindow int // declared token budget; 0 when the provider does not report one
}

// Service is the port interface to the external model inference service.
type Service interface {
	Chat(ctx context.Context, req Request) (*Result, error)
	ListModels(ctx context.Context) ([]ModelInfo, error)
}
