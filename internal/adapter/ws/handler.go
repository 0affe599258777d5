// Package ws implements the WebSocket adapter for real-time stream
// observation. Each connection observes a single topic and receives that
// topic's stream events as they are emitted.
package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/Chorus/internal/service"
)

// Handler upgrades observer connections and forwards stream events.
type Handler struct {
	streams *service.StreamBroadcaster
}

// NewHandler creates a WebSocket handler over the given broadcaster.
func NewHandler(streams *service.StreamBroadcaster) *Handler {
	return &Handler{streams: streams}
}

// HandleTopic upgrades the connection and forwards the topic's stream events
// until the client disconnects. Route: GET /ws/topics/{topicID}.
func (h *Handler) HandleTopic(w http.ResponseWriter, r *http.Request) {
	topicID := chi.URLParam(r, "topicID")
	if topicID == "" {
		http.Error(w, "topic id required", http.StatusBadRequest)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, subID := h.streams.Subscribe(ctx, topicID)
	slog.Info("stream observer connected",
		"topic_id", topicID,
		"sub_id", subID,
		"remote", r.RemoteAddr,
	)
	defer func() {
		h.streams.Unsubscribe(topicID, subID)
		_ = ws.Close(websocket.StatusNormalClosure, "")
		slog.Info("stream observer disconnected", "topic_id", topicID, "sub_id", subID)
	}()

	// Read loop detects disconnects and consumes pings; observers never
	// send application data.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := Envelope(ev)
			if err != nil {
				slog.Error("marshal stream event", "error", err)
				continue
			}
			if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
				slog.Debug("websocket write failed", "topic_id", topicID, "error", err)
				return
			}
		}
	}
}
