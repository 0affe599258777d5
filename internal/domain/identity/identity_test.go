package identity

import (
	"strings"
	"testing"
)

func TestNormalizeModelName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"GPT-4o", "gpt-4o"},
		{"Claude  Sonnet  4", "claude-sonnet-4"},
		{"  padded  ", "padded"},
		{"already-normal", "already-normal"},
	}
	for _, tt := range tests {
		if got := NormalizeModelName(tt.in); got != tt.want {
			t.Errorf("NormalizeModelName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSyntheticPersonID(t *testing.T) {
	id := SyntheticPersonID("gpt-4o")

	if !strings.HasPrefix(id, "ai-") {
		t.Errorf("person ID %q should carry the ai- prefix", id)
	}
	if len(id) != len("ai-")+32 {
		t.Errorf("person ID length = %d, want %d", len(id), len("ai-")+32)
	}

	// Deterministic and normalization-insensitive.
	if SyntheticPersonID("GPT-4o") != id {
		t.Error("case variants should map to the same person ID")
	}
	if SyntheticPersonID("gpt  4o") != SyntheticPersonID("gpt-4o") {
		t.Error("whitespace runs should collapse to hyphens before hashing")
	}
	if SyntheticPersonID("claude-sonnet") == id {
		t.Error("distinct models must get distinct person IDs")
	}
}

func TestFor(t *testing.T) {
	got := For("GPT-4o Mini")

	if got.ModelID != "GPT-4o Mini" {
		t.Errorf("ModelID = %q, should keep the original identifier", got.ModelID)
	}
	if got.DisplayName != "gpt-4o-mini" {
		t.Errorf("DisplayName = %q", got.DisplayName)
	}
	if got.PersonID != SyntheticPersonID("GPT-4o Mini") {
		t.Error("PersonID must match the pure derivation")
	}
}
