// Package enrichment defines the optional context enrichment port (interface).
package enrichment

import (
	"context"

	"github.com/Strob0t/Chorus/internal/domain/chat"
)

// Hinter produces an externally-maintained topic summary with top themes.
// Implementations may return an empty string when nothing useful exists;
// callers fall back to a locally generated digest.
type Hinter interface {
	BuildContextHints(ctx context.Context, topicID string, history []chat.Message) (string, error)
}
