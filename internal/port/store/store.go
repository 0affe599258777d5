// Package store defines the conversation store port (interface).
package store

import (
	"context"

	"github.com/Strob0t/Chorus/internal/domain/chat"
)

// Conversations is the port interface to the external conversation store.
// No retry or compensation logic lives behind this interface; failures
// propagate to callers as errors.
type Conversations interface {
	// LoadHistory returns all messages of a topic in chronological order.
	LoadHistory(ctx context.Context, topicID string) ([]chat.Message, error)

	// AppendMessage persists a message and returns its assigned ID.
	AppendMessage(ctx context.Context, topicID, senderID string, role chat.Role, text string) (string, error)

	// SaveAssignment durably records which model answers in a topic.
	SaveAssignment(ctx context.Context, topicID, modelID string) error

	// Assignments returns all topic registrations, used to rehydrate the
	// in-memory registry at startup.
	Assignments(ctx context.Context) ([]chat.Topic, error)

	// SaveRestartPoint records the current restart point for a topic,
	// superseding any previous one.
	SaveRestartPoint(ctx context.Context, rp chat.RestartPoint) error

	// CurrentRestartPoint returns the current restart point for a topic,
	// or domain.ErrNotFound when none exists.
	CurrentRestartPoint(ctx context.Context, topicID string) (*chat.RestartPoint, error)
}
