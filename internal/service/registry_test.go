package service

import (
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/Chorus/internal/domain"
	"github.com/Strob0t/Chorus/internal/domain/chat"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewTopicRegistry()

	if r.IsRegistered("general") {
		t.Fatal("empty registry should know no topics")
	}
	if _, err := r.ModelFor("general"); !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("ModelFor on unknown topic = %v, want ErrNotRegistered", err)
	}

	r.Register("general", "gpt-4o")
	model, err := r.ModelFor("general")
	if err != nil {
		t.Fatalf("ModelFor: %v", err)
	}
	if model != "gpt-4o" {
		t.Errorf("model = %q", model)
	}

	// Re-registration swaps the model in place.
	r.Register("general", "claude-sonnet")
	model, _ = r.ModelFor("general")
	if model != "claude-sonnet" {
		t.Errorf("after re-register model = %q", model)
	}
	if got := len(r.Topics()); got != 1 {
		t.Errorf("Topics() len = %d, want 1", got)
	}
}

func TestRegistryHydrate(t *testing.T) {
	r := NewTopicRegistry()
	r.Register("live", "gpt-4o")

	r.Hydrate([]chat.Topic{
		{ID: "live", ModelID: "stale-model", RegisteredAt: time.Now().Add(-time.Hour)},
		{ID: "archived", ModelID: "claude-sonnet"},
	})

	// In-memory registrations win over persisted ones.
	if model, _ := r.ModelFor("live"); model != "gpt-4o" {
		t.Errorf("hydrate overwrote live registration: %q", model)
	}
	if model, _ := r.ModelFor("archived"); model != "claude-sonnet" {
		t.Errorf("hydrated topic model = %q", model)
	}
}
