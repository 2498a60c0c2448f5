package translator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/infinitepi-io/chatrix/internal/models"
)

// ErrInvalidRequest matches every client input error raised by this package.
var ErrInvalidRequest = errors.New("invalid request")

const missingParamsMessage = "Missing required parameters: model and messages"

// RequestError is a client input error with a message safe to return to
// the caller.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// Is reports whether target is ErrInvalidRequest.
func (e *RequestError) Is(target error) bool { return target == ErrInvalidRequest }

func invalidf(format string, args ...any) error {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}

// textContent accepts either a JSON string or an array of typed parts.
// Only parts with type "text" contribute; their text is joined with "\n".
// Null or absent content is empty.
type textContent string

func (c *textContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}

	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return invalidf("invalid message content: %v", err)
		}
		*c = textContent(text)
		return nil
	}

	if data[0] != '[' {
		return invalidf("message content must be a string or an array of content parts")
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return invalidf("invalid message content: %v", err)
	}

	texts := make([]string, 0, len(parts))
	for i, raw := range parts {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			return invalidf("content[%d] must be an object", i)
		}

		var part struct {
			Type string          `json:"type"`
			Text json.RawMessage `json:"text"`
		}
		if err := json.Unmarshal(raw, &part); err != nil {
			return invalidf("content[%d]: %v", i, err)
		}
		if part.Type != "text" {
			continue
		}

		var text string
		if err := json.Unmarshal(part.Text, &text); err != nil || text == "" {
			continue
		}
		texts = append(texts, text)
	}

	*c = textContent(strings.Join(texts, "\n"))
	return nil
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content textContent `json:"content"`
}

// validateMessages checks roles only. A message whose parts are all
// non-text reduces to an empty prompt and is still forwarded.
func validateMessages(messages []chatMessage, roles map[string]struct{}) error {
	for i, msg := range messages {
		if _, ok := roles[msg.Role]; !ok {
			return invalidf("messages[%d]: invalid role %q", i, msg.Role)
		}
	}
	return nil
}

func validateParams(p models.GenerationParams) error {
	if p.Temperature != nil && *p.Temperature < 0 {
		return invalidf("temperature must not be negative")
	}
	if p.TopP != nil && *p.TopP < 0 {
		return invalidf("top_p must not be negative")
	}
	return nil
}

func toUnifiedMessages(messages []chatMessage) []models.Message {
	out := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, models.Message{Role: m.Role, Content: string(m.Content)})
	}
	return out
}
