package messagequeue

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		data    string
		wantErr bool
	}{
		{"valid topic message", "chat.topics.general", `{"sender_id":"alice","text":"hi"}`, false},
		{"invalid JSON", "chat.topics.general", `{"sender_id":`, true},
		{"topic payload must be an object", "chat.topics.general", `"just a string"`, true},
		{"array on topic subject", "chat.topics.general", `[1,2,3]`, true},
		{"response subjects are not object-checked", "chat.responses.general", `"ok"`, false},
		{"unknown subject passes with valid JSON", "other.subject", `[1,2,3]`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.subject, []byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%s, %s) err = %v, wantErr %v", tt.subject, tt.data, err, tt.wantErr)
			}
		})
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}

	base := errors.New("bad payload")
	err := Permanent(base)
	if !IsPermanent(err) {
		t.Error("wrapped error should be permanent")
	}
	if !errors.Is(err, base) {
		t.Error("Permanent should preserve the error chain")
	}
	if !IsPermanent(fmt.Errorf("context: %w", err)) {
		t.Error("permanence should survive further wrapping")
	}
	if IsPermanent(base) {
		t.Error("plain error should not be permanent")
	}
}

func TestSubjectHelpers(t *testing.T) {
	if got := TopicSubject("general"); got != "chat.topics.general" {
		t.Errorf("TopicSubject = %q", got)
	}
	if got := ResponseSubject("general"); got != "chat.responses.general" {
		t.Errorf("ResponseSubject = %q", got)
	}
}
