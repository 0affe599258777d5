package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Strob0t/Chorus/internal/domain"
	"github.com/Strob0t/Chorus/internal/domain/chat"
	"github.com/Strob0t/Chorus/internal/port/messagequeue"
	"github.com/Strob0t/Chorus/internal/port/store"
	"github.com/Strob0t/Chorus/internal/service"
)

// Consumer subscribes to inbound topic messages, persists them, and feeds
// them to the response orchestrator. Generated responses are published on
// the matching response subject.
type Consumer struct {
	queue         messagequeue.Queue
	registry      *service.TopicRegistry
	conversations store.Conversations
	orch          *service.Orchestrator
	stop          func()
}

// NewConsumer creates a Consumer over the given queue.
func NewConsumer(queue messagequeue.Queue, registry *service.TopicRegistry, conversations store.Conversations, orch *service.Orchestrator) *Consumer {
	return &Consumer{
		queue:         queue,
		registry:      registry,
		conversations: conversations,
		orch:          orch,
	}
}

// Start subscribes to all inbound topic subjects.
func (c *Consumer) Start(ctx context.Context) error {
	stop, err := c.queue.Subscribe(ctx, messagequeue.SubjectTopicMessages+".>", c.handle)
	if err != nil {
		return fmt.Errorf("subscribe inbound: %w", err)
	}
	c.stop = stop
	slog.Info("inbound consumer started", "subject", messagequeue.SubjectTopicMessages+".>")
	return nil
}

// Stop cancels the subscription.
func (c *Consumer) Stop() {
	if c.stop != nil {
		c.stop()
	}
}

// handle processes one inbound message. The topic must already carry a model
// assignment; messages for unregistered topics are dropped without touching
// the store. The user message is persisted before the orchestrator runs so a
// later crash never loses the inbound side of the exchange; the orchestrator
// then appends only the response.
func (c *Consumer) handle(ctx context.Context, subject string, data []byte) error {
	topicID := strings.TrimPrefix(subject, messagequeue.SubjectTopicMessages+".")
	if topicID == "" || topicID == subject {
		return messagequeue.Permanent(fmt.Errorf("subject %s: no topic id", subject))
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return messagequeue.Permanent(fmt.Errorf("unmarshal inbound: %w", err))
	}

	msg, err := chat.NormalizeInbound(topicID, payload)
	if err != nil {
		return messagequeue.Permanent(fmt.Errorf("normalize inbound on %s: %w", subject, err))
	}

	if !c.registry.IsRegistered(msg.TopicID) {
		return messagequeue.Permanent(fmt.Errorf("topic %q: %w", msg.TopicID, domain.ErrNotRegistered))
	}

	if _, err := c.conversations.AppendMessage(ctx, msg.TopicID, msg.SenderID, msg.Role, msg.Text); err != nil {
		return fmt.Errorf("persist inbound: %w", err)
	}

	response, err := c.orch.ProcessMessage(ctx, msg.TopicID, msg.Text, msg.SenderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotRegistered) {
			return messagequeue.Permanent(err)
		}
		return err
	}
	if response == nil {
		return nil
	}

	out, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := c.queue.Publish(ctx, messagequeue.ResponseSubject(msg.TopicID), out); err != nil {
		// The response is already persisted and broadcast; publish failure
		// is not worth a redeliver of the inbound message.
		slog.Error("publish response failed", "topic_id", msg.TopicID, "error", err)
	}
	return nil
}
