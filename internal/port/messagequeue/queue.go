// Package messagequeue defines the message queue port (interface).
package messagequeue

import (
	"context"
	"errors"
)

// Handler processes a message received from the queue.
//
// A plain error is treated as transient and the message is redelivered.
// Errors wrapped with Permanent mark the message as unprocessable: the
// queue drops it instead of retrying.
type Handler func(ctx context.Context, subject string, data []byte) error

// PermanentError marks a handler failure that redelivery cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the queue drops the message instead of
// redelivering it. Returns nil when err is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is marked permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	// Pending messages are processed; no new messages are accepted.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject prefixes for NATS subjects used by Chorus.
const (
	// SubjectTopicMessages carries inbound conversation messages. The
	// topic ID rides in the final token: chat.topics.{topicID}.
	SubjectTopicMessages = "chat.topics"

	// SubjectTopicResponses carries model responses published after
	// persistence: chat.responses.{topicID}.
	SubjectTopicResponses = "chat.responses"
)

// TopicSubject returns the inbound subject for a topic.
func TopicSubject(topicID string) string {
	return SubjectTopicMessages + "." + topicID
}

// ResponseSubject returns the outbound subject for a topic.
func ResponseSubject(topicID string) string {
	return SubjectTopicResponses + "." + topicID
}
