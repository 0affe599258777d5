package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/Strob0t/Chorus/internal/domain"
	"github.com/Strob0t/Chorus/internal/domain/chat"
)

// TopicRegistry is the in-memory source of truth for which model answers in
// a topic. Registrations and lookups for different topics race on the same
// map, so all access is mutex-guarded.
type TopicRegistry struct {
	mu     sync.RWMutex
	topics map[string]chat.Topic
}

// NewTopicRegistry creates an empty TopicRegistry.
func NewTopicRegistry() *TopicRegistry {
	return &TopicRegistry{topics: make(map[string]chat.Topic)}
}

// Register assigns a model to a topic. Re-registering with a different model
// overwrites the previous assignment (used when a variant model is
// substituted for a topic).
func (r *TopicRegistry) Register(topicID, modelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.topics[topicID] = chat.Topic{
		ID:           topicID,
		ModelID:      modelID,
		RegisteredAt: time.Now().UTC(),
	}
}

// Hydrate loads persisted registrations into the registry, keeping any
// already registered in memory. Used once at startup.
func (r *TopicRegistry) Hydrate(topics []chat.Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range topics {
		if _, ok := r.topics[t.ID]; !ok {
			r.topics[t.ID] = t
		}
	}
}

// ModelFor returns the model assigned to a topic, or domain.ErrNotRegistered
// when none is. Callers must treat that as a configuration error, never as
// an invitation to guess a default.
func (r *TopicRegistry) ModelFor(topicID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.topics[topicID]
	if !ok {
		return "", fmt.Errorf("topic %q: %w", topicID, domain.ErrNotRegistered)
	}
	return t.ModelID, nil
}

// IsRegistered reports whether a topic has an assigned model.
func (r *TopicRegistry) IsRegistered(topicID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.topics[topicID]
	return ok
}

// Topics returns a snapshot of all registrations.
func (r *TopicRegistry) Topics() []chat.Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]chat.Topic, 0, len(r.topics))
	for _, t := range r.topics {
		out = append(out, t)
	}
	return out
}
