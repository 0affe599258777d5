package litellm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Strob0t/Chorus/internal/port/keys"
)

var _ keys.Provisioner = (*Client)(nil)

// EnsureKeys provisions a virtual API key for a synthetic participant via
// the LiteLLM admin API, aliased by person ID. A key that already exists
// satisfies the call, so provisioning is idempotent.
func (c *Client) EnsureKeys(ctx context.Context, personID string) error {
	body, err := json.Marshal(map[string]any{"key_alias": personID})
	if err != nil {
		return fmt.Errorf("marshal key request: %w", err)
	}

	if _, err := c.doRequest(ctx, http.MethodPost, "/key/generate", body); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("generate key for %s: %w", personID, err)
	}
	return nil
}
