package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Strob0t/Chorus/internal/config"
	"github.com/Strob0t/Chorus/internal/domain/chat"
	"github.com/Strob0t/Chorus/internal/port/cache"
	"github.com/Strob0t/Chorus/internal/port/enrichment"
	"github.com/Strob0t/Chorus/internal/port/inference"
	"github.com/Strob0t/Chorus/internal/port/store"
)

// digestTail is how many trailing messages feed the fallback digest.
const digestTail = 20

// Restart is the outcome of a context window check.
type Restart struct {
	Needed  bool
	Summary string
}

// ContextWindowService estimates the token usage of a conversation against
// the assigned model's declared context window and, when history has grown
// past the usable budget, produces a continuity summary so the conversation
// can restart from a compressed state instead of overflowing the window.
type ContextWindowService struct {
	conversations store.Conversations
	llm           inference.Service
	cache         cache.Cache       // optional
	hinter        enrichment.Hinter // optional
	cfg           *config.Orchestrator
	modelTTL      time.Duration
}

// NewContextWindowService creates a ContextWindowService. cache and hinter
// may be nil; without a hinter the local digest fallback is always used.
// modelTTL bounds how long catalog lookups are cached.
func NewContextWindowService(conversations store.Conversations, llm inference.Service, c cache.Cache, hinter enrichment.Hinter, cfg *config.Orchestrator, modelTTL time.Duration) *ContextWindowService {
	if modelTTL <= 0 {
		modelTTL = time.Hour
	}
	return &ContextWindowService{
		conversations: conversations,
		llm:           llm,
		cache:         c,
		hinter:        hinter,
		cfg:           cfg,
		modelTTL:      modelTTL,
	}
}

// CheckAndPrepareRestart decides whether history for a topic must be
// compressed before the next generation. When a restart is needed the
// returned summary is the leading context instruction and only the last few
// messages are sent verbatim; a RestartPoint is recorded in the store.
func (s *ContextWindowService) CheckAndPrepareRestart(ctx context.Context, topicID, modelID string, history []chat.Message) (Restart, error) {
	window := s.contextWindowFor(ctx, modelID)
	usable := int(s.cfg.RestartThreshold * float64(window))

	estimate := s.cfg.SystemPromptOverhead
	for i := range history {
		estimate += chat.EstimateTokens(history[i].Text)
	}

	if estimate < usable {
		return Restart{}, nil
	}

	summary := s.buildSummary(ctx, topicID, history)

	rp := chat.RestartPoint{
		TopicID:      topicID,
		MessageIndex: len(history),
		Summary:      summary,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.conversations.SaveRestartPoint(ctx, rp); err != nil {
		// A lost restart record costs a re-summarization later, not a wrong
		// answer now; keep generating.
		slog.Warn("save restart point failed", "topic_id", topicID, "error", err)
	}

	slog.Info("context restart triggered",
		"topic_id", topicID,
		"model_id", modelID,
		"estimated_tokens", estimate,
		"usable_budget", usable,
		"message_index", rp.MessageIndex,
	)
	return Restart{Needed: true, Summary: summary}, nil
}

// buildSummary prefers externally-maintained hints and falls back to the
// local digest when the hinter is absent, errors, or has nothing to say.
func (s *ContextWindowService) buildSummary(ctx context.Context, topicID string, history []chat.Message) string {
	if s.hinter != nil {
		hints, err := s.hinter.BuildContextHints(ctx, topicID, history)
		if err != nil {
			slog.Warn("context hints failed, using local digest", "topic_id", topicID, "error", err)
		} else if hints != "" {
			return hints
		}
	}
	return localDigest(history)
}

// contextWindowFor resolves a model's declared context window from the
// inference service's catalog, caching the answer. Unknown models get the
// conservative configured default.
func (s *ContextWindowService) contextWindowFor(ctx context.Context, modelID string) int {
	key := "ctxwindow:" + modelID

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			if n, err := strconv.Atoi(string(data)); err == nil && n > 0 {
				return n
			}
		}
	}

	window := s.cfg.DefaultContextWindow
	models, err := s.llm.ListModels(ctx)
	if err != nil {
		slog.Warn("model catalog unavailable, using default context window",
			"model_id", modelID, "default", window, "error", err)
		return window
	}
	for i := range models {
		if models[i].Name == modelID && models[i].ContextWindow > 0 {
			window = models[i].ContextWindow
			break
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, []byte(strconv.Itoa(window)), s.modelTTL); err != nil {
			slog.Debug("cache context window failed", "model_id", modelID, "error", err)
		}
	}
	return window
}

// localDigest compresses the tail of a conversation into a continuity
// instruction: the most frequent substantive tokens from the last messages
// plus a message count.
func localDigest(history []chat.Message) string {
	tail := history
	if len(tail) > digestTail {
		tail = tail[len(tail)-digestTail:]
	}

	freq := make(map[string]int)
	for i := range tail {
		for _, w := range strings.Fields(strings.ToLower(tail[i].Text)) {
			w = strings.Trim(w, ".,;:!?\"'()[]{}#/*-+=>< ")
			if len(w) < 5 || stopWords[w] {
				continue
			}
			freq[w]++
		}
	}

	themes := make([]string, 0, len(freq))
	for w, n := range freq {
		if n >= 2 {
			themes = append(themes, w)
		}
	}
	sort.Slice(themes, func(i, j int) bool {
		if freq[themes[i]] != freq[themes[j]] {
			return freq[themes[i]] > freq[themes[j]]
		}
		return themes[i] < themes[j]
	})
	if len(themes) > 8 {
		themes = themes[:8]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "This conversation has %d earlier messages that were compressed to fit the context window.", len(history))
	if len(themes) > 0 {
		fmt.Fprintf(&b, " Recurring topics: %s.", strings.Join(themes, ", "))
	}
	b.WriteString(" Continue the conversation naturally without repeating earlier answers.")
	return b.String()
}

// stopWords filters filler from the digest theme extraction.
var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "being": true, "could": true,
	"doing": true, "might": true, "other": true, "shall": true, "should": true,
	"their": true, "there": true, "these": true, "thing": true, "things": true,
	"think": true, "those": true, "where": true, "which": true, "while": true,
	"would": true, "really": true, "because": true, "something": true,
}
