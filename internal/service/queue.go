package service

import (
	"log/slog"
	"sync"
	"time"
)

// PendingEntry is one message waiting for a topic's generation slot.
type PendingEntry struct {
	TopicID    string
	Text       string
	SenderID   string
	EnqueuedAt time.Time
}

// topicSlot tracks the per-topic generation state machine:
// Idle -> Generating -> Idle, with a FIFO side queue that is only
// populated while Generating.
type topicSlot struct {
	generating bool
	pending    []PendingEntry
}

// GenerationQueue is the per-topic single-flight coordinator. At most one
// generation runs per topic; messages arriving while a generation is in
// flight are queued and replayed strictly in FIFO order. Topics are fully
// independent of each other.
type GenerationQueue struct {
	mu        sync.Mutex
	slots     map[string]*topicSlot
	warnDepth int
}

// NewGenerationQueue creates a GenerationQueue. warnDepth sets the pending
// depth per topic at which a warning is logged; 0 disables the warning.
func NewGenerationQueue(warnDepth int) *GenerationQueue {
	return &GenerationQueue{
		slots:     make(map[string]*topicSlot),
		warnDepth: warnDepth,
	}
}

// Admit claims the generation slot for a topic. It returns true and
// transitions Idle -> Generating when the topic was idle; it returns false
// when a generation is already in flight, in which case the caller must
// Enqueue instead of proceeding.
func (q *GenerationQueue) Admit(topicID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	slot := q.slot(topicID)
	if slot.generating {
		return false
	}
	slot.generating = true
	return true
}

// Enqueue appends a message to the topic's FIFO. Only meaningful while the
// topic is Generating; an enqueue against an idle topic is a caller bug and
// is logged rather than silently accepted.
func (q *GenerationQueue) Enqueue(topicID, text, senderID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	slot := q.slot(topicID)
	if !slot.generating {
		slog.Warn("enqueue on idle topic", "topic_id", topicID)
	}
	slot.pending = append(slot.pending, PendingEntry{
		TopicID:    topicID,
		Text:       text,
		SenderID:   senderID,
		EnqueuedAt: time.Now(),
	})
	if q.warnDepth > 0 && len(slot.pending) >= q.warnDepth {
		slog.Warn("generation queue depth high",
			"topic_id", topicID,
			"pending", len(slot.pending),
		)
	}
}

// Complete releases the topic's generation slot. When the FIFO is non-empty
// the slot is handed directly to the head entry — the slot stays claimed and
// the entry is returned for immediate replay — so queued messages can never
// be overtaken by a message arriving between release and replay. The caller
// must process the returned entry and call Complete again when done.
// When the FIFO is empty the topic transitions back to Idle.
func (q *GenerationQueue) Complete(topicID string) (PendingEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	slot := q.slot(topicID)
	if !slot.generating {
		slog.Warn("complete on idle topic", "topic_id", topicID)
		return PendingEntry{}, false
	}

	if len(slot.pending) == 0 {
		slot.generating = false
		delete(q.slots, topicID)
		return PendingEntry{}, false
	}

	next := slot.pending[0]
	slot.pending = slot.pending[1:]
	return next, true
}

// PendingCount returns the number of queued messages for a topic.
func (q *GenerationQueue) PendingCount(topicID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if slot, ok := q.slots[topicID]; ok {
		return len(slot.pending)
	}
	return 0
}

// Generating reports whether a generation is currently in flight for a topic.
func (q *GenerationQueue) Generating(topicID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if slot, ok := q.slots[topicID]; ok {
		return slot.generating
	}
	return false
}

// slot returns the state for topicID, creating it if needed.
// Callers must hold q.mu.
func (q *GenerationQueue) slot(topicID string) *topicSlot {
	slot, ok := q.slots[topicID]
	if !ok {
		slot = &topicSlot{}
		q.slots[topicID] = slot
	}
	return slot
}
