// Package identity derives stable synthetic participant identities for
// models, so their messages can be attributed like any other participant's.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ModelIdentity maps a model identifier to its synthetic participant.
type ModelIdentity struct {
	ModelID     string `json:"model_id"`
	PersonID    string `json:"person_id"`
	DisplayName string `json:"display_name"`
}

// NormalizeModelName lowercases a model identifier and collapses whitespace
// runs into single hyphens.
func NormalizeModelName(modelID string) string {
	return strings.Join(strings.Fields(strings.ToLower(modelID)), "-")
}

// SyntheticPersonID is a pure function of the model identifier: the hex
// SHA-256 of "ai-" + normalized name, truncated to 32 chars and prefixed so
// synthetic participants are recognizable in logs and stores.
func SyntheticPersonID(modelID string) string {
	sum := sha256.Sum256([]byte("ai-" + NormalizeModelName(modelID)))
	return "ai-" + hex.EncodeToString(sum[:])[:32]
}

// For builds the full identity for a model identifier.
func For(modelID string) ModelIdentity {
	return ModelIdentity{
		ModelID:     modelID,
		PersonID:    SyntheticPersonID(modelID),
		DisplayName: NormalizeModelName(modelID),
	}
}
