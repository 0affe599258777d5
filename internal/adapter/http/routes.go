package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/Chorus/internal/adapter/ws"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, wsHandler *ws.Handler) {
	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Topics
		r.Post("/topics", h.RegisterTopic)
		r.Get("/topics", h.ListTopics)
		r.Get("/topics/{topicID}", h.GetTopic)

		// Messages
		r.Post("/topics/{topicID}/messages", h.PostMessage)
		r.Get("/topics/{topicID}/messages", h.ListMessages)
		r.Get("/topics/{topicID}/restart-point", h.GetRestartPoint)

		// Identities
		r.Get("/identities", h.ListIdentities)

		// Models (proxied to LiteLLM)
		r.Get("/llm/models", h.ListModels)

		// Tools (proxied to the MCP server)
		r.Get("/tools", h.ListTools)
	})

	// Stream observers
	r.Get("/ws/topics/{topicID}", wsHandler.HandleTopic)
}
