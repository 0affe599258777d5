// Package memstore provides an in-memory conversation store for tests and
// local development without PostgreSQL.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/Chorus/internal/domain"
	"github.com/Strob0t/Chorus/internal/domain/chat"
	"github.com/Strob0t/Chorus/internal/port/store"
)

// Store implements store.Conversations with in-process maps.
type Store struct {
	mu       sync.RWMutex
	topics   map[string]chat.Topic
	messages map[string][]chat.Message
	restarts map[string]chat.RestartPoint
}

var _ store.Conversations = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		topics:   make(map[string]chat.Topic),
		messages: make(map[string][]chat.Message),
		restarts: make(map[string]chat.RestartPoint),
	}
}

func (s *Store) LoadHistory(_ context.Context, topicID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.messages[topicID]
	out := make([]chat.Message, len(history))
	copy(out, history)
	return out, nil
}

func (s *Store) AppendMessage(_ context.Context, topicID, senderID string, role chat.Role, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := chat.Message{
		ID:        uuid.New().String(),
		TopicID:   topicID,
		SenderID:  senderID,
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	s.messages[topicID] = append(s.messages[topicID], m)
	return m.ID, nil
}

func (s *Store) SaveAssignment(_ context.Context, topicID, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[topicID]
	if !ok {
		t = chat.Topic{ID: topicID, RegisteredAt: time.Now().UTC()}
	}
	t.ModelID = modelID
	s.topics[topicID] = t
	return nil
}

func (s *Store) Assignments(_ context.Context) ([]chat.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Topic, 0, len(s.topics))
	for _, t := range s.topics {
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) SaveRestartPoint(_ context.Context, rp chat.RestartPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rp.CreatedAt.IsZero() {
		rp.CreatedAt = time.Now().UTC()
	}
	s.restarts[rp.TopicID] = rp
	return nil
}

func (s *Store) CurrentRestartPoint(_ context.Context, topicID string) (*chat.RestartPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.restarts[topicID]
	if !ok {
		return nil, fmt.Errorf("restart point %s: %w", topicID, domain.ErrNotFound)
	}
	return &rp, nil
}
