package service

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"text/template"
	"time"

	"github.com/google/uuid"

	chorusotel "github.com/Strob0t/Chorus/internal/adapter/otel"
	"github.com/Strob0t/Chorus/internal/config"
	"github.com/Strob0t/Chorus/internal/domain"
	"github.com/Strob0t/Chorus/internal/domain/chat"
	"github.com/Strob0t/Chorus/internal/port/broadcast"
	"github.com/Strob0t/Chorus/internal/port/enrichment"
	"github.com/Strob0t/Chorus/internal/port/inference"
	"github.com/Strob0t/Chorus/internal/port/store"
	"github.com/Strob0t/Chorus/internal/port/toolexec"
)

//go:embed templates/topic_system.tmpl
var topicSystemTmpl string

var topicTmpl = template.Must(template.New("topic_system").Parse(topicSystemTmpl))

// topicPromptData carries per-response context into the system prompt template.
type topicPromptData struct {
	DisplayName    string
	RestartSummary string
	Hints          string
	Tools          []toolexec.Descriptor
}

// Orchestrator turns inbound topic messages into model responses: it claims
// the topic's generation slot, builds the prompt from history and context
// hints, streams model output to observers, post-processes tool calls, and
// persists the final response. Messages queued while a generation is in
// flight are replayed sequentially afterwards.
type Orchestrator struct {
	registry      *TopicRegistry
	identities    *IdentityService
	window        *ContextWindowService
	queue         *GenerationQueue
	tools         *ToolCallProcessor
	toolCatalog   toolexec.Executor // nil when no tool service is configured
	hub           broadcast.Broadcaster
	conversations store.Conversations
	llm           inference.Service
	hinter        enrichment.Hinter   // optional
	metrics       *chorusotel.Metrics // optional
	cfg           *config.Orchestrator

	// baseCtx scopes queue replays, which outlive the request that queued
	// them. wg tracks those replays so shutdown and tests can wait.
	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewOrchestrator wires an Orchestrator. toolCatalog, hinter and metrics may
// be nil.
func NewOrchestrator(
	baseCtx context.Context,
	registry *TopicRegistry,
	identities *IdentityService,
	window *ContextWindowService,
	queue *GenerationQueue,
	tools *ToolCallProcessor,
	toolCatalog toolexec.Executor,
	hub broadcast.Broadcaster,
	conversations store.Conversations,
	llm inference.Service,
	hinter enrichment.Hinter,
	metrics *chorusotel.Metrics,
	cfg *config.Orchestrator,
) *Orchestrator {
	return &Orchestrator{
		registry:      registry,
		identities:    identities,
		window:        window,
		queue:         queue,
		tools:         tools,
		toolCatalog:   toolCatalog,
		hub:           hub,
		conversations: conversations,
		llm:           llm,
		hinter:        hinter,
		metrics:       metrics,
		cfg:           cfg,
		baseCtx:       baseCtx,
	}
}

// ProcessMessage handles one inbound message for a topic. When the topic is
// idle the generation runs synchronously and the persisted response is
// returned. When a generation is already in flight the message is queued and
// (nil, nil) is returned; the eventual result reaches observers through the
// stream broadcaster. A nil message with nil error can also mean the model
// chose not to respond.
func (o *Orchestrator) ProcessMessage(ctx context.Context, topicID, text, senderID string) (*chat.Message, error) {
	if !o.queue.Admit(topicID) {
		o.queue.Enqueue(topicID, text, senderID)
		if o.metrics != nil {
			o.metrics.MessagesQueued.Add(ctx, 1)
		}
		slog.Debug("generation in flight, message queued",
			"topic_id", topicID,
			"sender_id", senderID,
			"pending", o.queue.PendingCount(topicID),
		)
		return nil, nil
	}
	return o.generate(ctx, topicID, text, senderID)
}

// Wait blocks until all queue replays spawned so far have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// generate runs one generation while holding the topic's slot. Every exit
// path goes through Complete; when the FIFO is non-empty the slot is handed
// straight to the next queued entry and replayed on a fresh goroutine, which
// keeps per-topic ordering without a scheduling gap another message could
// slip into.
func (o *Orchestrator) generate(ctx context.Context, topicID, text, senderID string) (msg *chat.Message, err error) {
	started := time.Now()

	defer func() {
		if o.metrics != nil {
			o.metrics.GenerationDuration.Record(ctx, time.Since(started).Seconds())
			if err != nil {
				o.metrics.GenerationsFailed.Add(ctx, 1)
			} else {
				o.metrics.GenerationsCompleted.Add(ctx, 1)
			}
		}
		if next, ok := o.queue.Complete(topicID); ok {
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				if _, replayErr := o.generate(o.baseCtx, next.TopicID, next.Text, next.SenderID); replayErr != nil {
					slog.Error("queued message replay failed",
						"topic_id", next.TopicID,
						"error", replayErr,
					)
				}
			}()
		}
	}()

	if o.metrics != nil {
		o.metrics.GenerationsStarted.Add(ctx, 1)
	}

	modelID, err := o.registry.ModelFor(topicID)
	if err != nil {
		slog.Error("no model registered for topic", "topic_id", topicID, "error", err)
		return nil, err
	}

	ctx, span := chorusotel.StartGenerationSpan(ctx, topicID, modelID)
	defer span.End()

	id, err := o.identities.EnsureIdentity(ctx, modelID)
	if err != nil {
		slog.Error("identity resolution failed", "topic_id", topicID, "model_id", modelID, "error", err)
		return nil, err
	}

	// Never respond to the model's own message.
	if senderID == id.PersonID {
		slog.Debug("skipping self-authored message", "topic_id", topicID, "sender_id", senderID)
		return nil, nil
	}

	history, err := o.conversations.LoadHistory(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", topicID, err)
	}

	restart, err := o.window.CheckAndPrepareRestart(ctx, topicID, modelID, history)
	if err != nil {
		// Estimation trouble is not worth dropping the message over.
		slog.Warn("context window check failed, using full tail", "topic_id", topicID, "error", err)
		restart = Restart{}
	}
	if restart.Needed && o.metrics != nil {
		o.metrics.Restarts.Add(ctx, 1)
	}

	prompt := o.buildPrompt(ctx, topicID, id.DisplayName, history, restart, text, senderID)

	streamID := uuid.New().String()
	o.hub.Emit(ctx, chat.StreamEvent{
		TopicID:   topicID,
		MessageID: streamID,
		Thinking:  true,
	})

	callCtx := ctx
	if o.cfg.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.InferenceTimeout)
		defer cancel()
	}

	result, err := o.llm.Chat(callCtx, inference.Request{
		Model:    modelID,
		Messages: prompt,
		OnChunk: func(chunk string, thinking bool, accumulated string) {
			o.hub.Emit(ctx, chat.StreamEvent{
				TopicID:     topicID,
				MessageID:   streamID,
				Chunk:       chunk,
				Thinking:    thinking,
				Accumulated: accumulated,
			})
		},
	})
	if err != nil {
		slog.Error("inference call failed", "topic_id", topicID, "model_id", modelID, "error", err)
		return nil, fmt.Errorf("chat for %s: %w: %w", topicID, domain.ErrConnectivity, err)
	}

	if result == nil || result.Text == "" {
		// The model declined to answer; nothing to persist or broadcast.
		slog.Debug("empty model response", "topic_id", topicID, "model_id", modelID)
		return nil, nil
	}

	finalText := o.tools.Process(ctx, result.Text)
	if finalText != result.Text && o.metrics != nil {
		o.metrics.ToolCalls.Add(ctx, 1)
	}

	messageID, err := o.conversations.AppendMessage(ctx, topicID, id.PersonID, chat.RoleAssistant, finalText)
	if err != nil {
		return nil, fmt.Errorf("persist response for %s: %w", topicID, err)
	}

	o.hub.Emit(ctx, chat.StreamEvent{
		TopicID:     topicID,
		MessageID:   streamID,
		Accumulated: finalText,
		Final:       true,
	})

	slog.Info("response generated",
		"topic_id", topicID,
		"model_id", modelID,
		"message_id", messageID,
		"duration_ms", time.Since(started).Milliseconds(),
		"restart", restart.Needed,
	)

	return &chat.Message{
		ID:        messageID,
		TopicID:   topicID,
		SenderID:  id.PersonID,
		Role:      chat.RoleAssistant,
		Text:      finalText,
		Timestamp: time.Now().UTC(),
	}, nil
}

// buildPrompt assembles the chat messages for the inference call: the
// templated system prompt (restart summary and hints included when present)
// followed by the bounded history tail and the new message.
func (o *Orchestrator) buildPrompt(ctx context.Context, topicID, displayName string, history []chat.Message, restart Restart, text, senderID string) []inference.ChatMessage {
	data := topicPromptData{DisplayName: displayName}

	if restart.Needed {
		data.RestartSummary = restart.Summary
	} else if o.hinter != nil {
		hints, err := o.hinter.BuildContextHints(ctx, topicID, history)
		if err != nil {
			slog.Debug("context hints unavailable", "topic_id", topicID, "error", err)
		} else {
			data.Hints = hints
		}
	}

	if o.toolCatalog != nil {
		tools, err := o.toolCatalog.ListTools(ctx)
		if err != nil {
			slog.Debug("tool listing failed", "topic_id", topicID, "error", err)
		} else {
			data.Tools = tools
		}
	}

	var buf bytes.Buffer
	if err := topicTmpl.Execute(&buf, data); err != nil {
		slog.Error("system prompt template failed", "topic_id", topicID, "error", err)
		buf.Reset()
		buf.WriteString("You are " + displayName + ", an AI participant in a multi-party conversation thread.")
	}

	// After a restart only the last few messages go out verbatim; the
	// summary covers the rest. Otherwise the configured tail.
	tail := o.cfg.HistoryTail
	if restart.Needed {
		tail = o.cfg.RestartTail
	}
	if tail > 0 && len(history) > tail {
		history = history[len(history)-tail:]
	}

	// The transport persists the inbound message before calling us, so the
	// tail usually already contains it; avoid sending it twice.
	if n := len(history); n > 0 && history[n-1].Text == text && history[n-1].SenderID == senderID {
		history = history[:n-1]
	}

	prompt := make([]inference.ChatMessage, 0, len(history)+2)
	prompt = append(prompt, inference.ChatMessage{Role: string(chat.RoleSystem), Content: buf.String()})
	for i := range history {
		role := string(history[i].Role)
		if role == "" {
			role = string(chat.RoleUser)
		}
		prompt = append(prompt, inference.ChatMessage{Role: role, Content: history[i].Text})
	}
	prompt = append(prompt, inference.ChatMessage{Role: string(chat.RoleUser), Content: text})
	return prompt
}
