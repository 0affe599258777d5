package messagequeue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validate checks whether data is structurally acceptable for the given
// subject. Inbound topic messages must be JSON objects; field-level
// normalization happens later, so field names are not checked here. Unknown
// subjects pass validation.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	if strings.HasPrefix(subject, SubjectTopicMessages+".") {
		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("subject %s: payload must be a JSON object: %w", subject, err)
		}
	}
	return nil
}
