package chat

import (
	"errors"
	"strings"
	"time"
)

// Inbound field aliases accepted from external transports. Different callers
// ship sender under "sender_id"/"sender"/"author"/"from" and the body under
// "text"/"content"/"body"/"message"; everything is folded into Message here
// so no other component has to care.
var (
	senderKeys = []string{"sender_id", "sender", "author", "from"}
	textKeys   = []string{"text", "content", "body", "message"}
	topicKeys  = []string{"topic_id", "topic", "thread_id", "thread"}
)

// ErrMissingField indicates an inbound payload without a usable sender or body.
var ErrMissingField = errors.New("inbound payload missing required field")

// NormalizeInbound converts a loosely-shaped inbound payload into the
// canonical Message. topicID may be empty when the payload carries its own
// topic field (e.g. HTTP bodies vs. NATS subjects).
func NormalizeInbound(topicID string, payload map[string]any) (Message, error) {
	msg := Message{
		TopicID:   topicID,
		Role:      RoleUser,
		Timestamp: time.Now().UTC(),
	}

	if msg.TopicID == "" {
		msg.TopicID = firstString(payload, topicKeys)
	}
	msg.SenderID = firstString(payload, senderKeys)
	msg.Text = firstString(payload, textKeys)

	if r := firstString(payload, []string{"role"}); r != "" {
		msg.Role = Role(r)
	}

	if msg.TopicID == "" {
		return Message{}, errors.Join(ErrMissingField, errors.New("topic id"))
	}
	if msg.SenderID == "" {
		return Message{}, errors.Join(ErrMissingField, errors.New("sender"))
	}
	if strings.TrimSpace(msg.Text) == "" {
		return Message{}, errors.Join(ErrMissingField, errors.New("text"))
	}
	return msg, nil
}

func firstString(payload map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
