package http

import (
	"errors"
	"net/http"

	"github.com/Strob0t/Chorus/internal/domain/chat"
	"github.com/Strob0t/Chorus/internal/port/inference"
	"github.com/Strob0t/Chorus/internal/port/store"
	"github.com/Strob0t/Chorus/internal/port/toolexec"
	"github.com/Strob0t/Chorus/internal/service"
)

// Handlers bundles all HTTP handler dependencies.
type Handlers struct {
	registry      *service.TopicRegistry
	queue         *service.GenerationQueue
	identities    *service.IdentityService
	orch          *service.Orchestrator
	streams       *service.StreamBroadcaster
	conversations store.Conversations
	llm           inference.Service
	tools         toolexec.Executor // nil when tool execution is disabled
}

// NewHandlers creates the handler set.
func NewHandlers(
	registry *service.TopicRegistry,
	queue *service.GenerationQueue,
	identities *service.IdentityService,
	orch *service.Orchestrator,
	streams *service.StreamBroadcaster,
	conversations store.Conversations,
	llm inference.Service,
	tools toolexec.Executor,
) *Handlers {
	return &Handlers{
		registry:      registry,
		queue:         queue,
		identities:    identities,
		orch:          orch,
		streams:       streams,
		conversations: conversations,
		llm:           llm,
		tools:         tools,
	}
}

type registerTopicRequest struct {
	TopicID string `json:"topic_id"`
	ModelID string `json:"model_id"`
}

// RegisterTopic assigns a model to a topic. Re-registering overwrites the
// previous assignment.
func (h *Handlers) RegisterTopic(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[registerTopicRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if !requireField(w, req.TopicID, "topic_id") || !requireField(w, req.ModelID, "model_id") {
		return
	}

	if err := h.conversations.SaveAssignment(r.Context(), req.TopicID, req.ModelID); err != nil {
		writeDomainError(w, err, "topic not found")
		return
	}
	h.registry.Register(req.TopicID, req.ModelID)

	// Warm the synthetic identity so the first message does not pay for
	// provisioning. Failures surface again, and harder, at generation time.
	if _, err := h.identities.EnsureIdentity(r.Context(), req.ModelID); err != nil {
		writeDomainError(w, err, "identity provisioning failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"topic_id": req.TopicID,
		"model_id": req.ModelID,
	})
}

// ListTopics returns all topic registrations.
func (h *Handlers) ListTopics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Topics())
}

// GetTopic returns one topic's assignment and generation state.
func (h *Handlers) GetTopic(w http.ResponseWriter, r *http.Request) {
	topicID := urlParam(r, "topicID")
	modelID, err := h.registry.ModelFor(topicID)
	if err != nil {
		writeError(w, http.StatusNotFound, "topic not registered")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"topic_id":   topicID,
		"model_id":   modelID,
		"generating": h.queue.Generating(topicID),
		"pending":    h.queue.PendingCount(topicID),
		"observers":  h.streams.ObserverCount(topicID),
	})
}

// PostMessage ingests one inbound message for a topic. The message is
// persisted before generation starts; the response body carries the model's
// reply when one was produced synchronously, or an accepted status when the
// message was queued or the model declined.
func (h *Handlers) PostMessage(w http.ResponseWriter, r *http.Request) {
	topicID := urlParam(r, "topicID")
	if !h.registry.IsRegistered(topicID) {
		writeError(w, http.StatusNotFound, "topic not registered")
		return
	}

	payload, ok := readJSON[map[string]any](w, r, maxRequestBodySize)
	if !ok {
		return
	}

	msg, err := chat.NormalizeInbound(topicID, payload)
	if err != nil {
		if errors.Is(err, chat.ErrMissingField) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeDomainError(w, err, "invalid message")
		return
	}

	if _, err := h.conversations.AppendMessage(r.Context(), msg.TopicID, msg.SenderID, msg.Role, msg.Text); err != nil {
		writeDomainError(w, err, "topic not found")
		return
	}

	response, err := h.orch.ProcessMessage(r.Context(), msg.TopicID, msg.Text, msg.SenderID)
	if err != nil {
		writeDomainError(w, err, "topic not found")
		return
	}
	if response == nil {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":  "accepted",
			"pending": h.queue.PendingCount(topicID),
		})
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// ListMessages returns a topic's full history in chronological order.
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	topicID := urlParam(r, "topicID")
	history, err := h.conversations.LoadHistory(r.Context(), topicID)
	if err != nil {
		writeDomainError(w, err, "topic not found")
		return
	}
	if history == nil {
		history = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, history)
}

// GetRestartPoint returns the topic's current restart point, if any.
func (h *Handlers) GetRestartPoint(w http.ResponseWriter, r *http.Request) {
	topicID := urlParam(r, "topicID")
	rp, err := h.conversations.CurrentRestartPoint(r.Context(), topicID)
	if err != nil {
		writeDomainError(w, err, "no restart point for topic")
		return
	}
	writeJSON(w, http.StatusOK, rp)
}

// ListIdentities returns all provisioned synthetic identities.
func (h *Handlers) ListIdentities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.identities.Identities())
}

// ListModels proxies the inference service's model catalog.
func (h *Handlers) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.llm.ListModels(r.Context())
	if err != nil {
		writeDomainError(w, err, "models unavailable")
		return
	}
	writeJSON(w, http.StatusOK, models)
}

// ListTools returns the tool catalog of the configured MCP server.
func (h *Handlers) ListTools(w http.ResponseWriter, r *http.Request) {
	if h.tools == nil {
		writeError(w, http.StatusServiceUnavailable, "tool execution is disabled")
		return
	}
	tools, err := h.tools.ListTools(r.Context())
	if err != nil {
		writeDomainError(w, err, "tools unavailable")
		return
	}
	writeJSON(w, http.StatusOK, tools)
}

// Health reports service liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
