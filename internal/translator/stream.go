package translator

import (
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/infinitepi-io/chatrix/internal/models"
)

// StreamEncoder renders the JSON payload of each streaming frame for one
// public dialect.
type StreamEncoder interface {
	Delta(text string) ([]byte, error)
	Terminal(resp *models.UnifiedChatResponse) ([]byte, error)
}

const (
	claudeDeltaTemplate    = `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":""}}`
	claudeTerminalTemplate = `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{}}`
	chatChunkTemplate      = `{"id":"","object":"chat.completion.chunk","created":0,"model":"","choices":[{"index":0,"delta":{},"finish_reason":null}]}`
)

// ClaudeStream encodes Anthropic content_block_delta and message_delta frames.
type ClaudeStream struct{}

func (ClaudeStream) Delta(text string) ([]byte, error) {
	out, err := sjson.SetBytes([]byte(claudeDeltaTemplate), "delta.text", text)
	if err != nil {
		return nil, fmt.Errorf("encode claude delta: %w", err)
	}
	return out, nil
}

func (ClaudeStream) Terminal(resp *models.UnifiedChatResponse) ([]byte, error) {
	out := []byte(claudeTerminalTemplate)
	var err error
	if resp.FinishReason != "" {
		if out, err = sjson.SetBytes(out, "delta.stop_reason", resp.FinishReason); err != nil {
			return nil, fmt.Errorf("encode claude terminal: %w", err)
		}
	}
	if out, err = sjson.SetBytes(out, "usage", claudeUsage(resp)); err != nil {
		return nil, fmt.Errorf("encode claude terminal: %w", err)
	}
	return out, nil
}

// ChatStream encodes OpenAI chat.completion.chunk frames. Every chunk of
// one response carries the same id, creation time and model.
type ChatStream struct {
	ID      string
	Created int64
	Model   string
}

func (s ChatStream) chunk() ([]byte, error) {
	out, err := sjson.SetBytes([]byte(chatChunkTemplate), "id", s.ID)
	if err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "created", s.Created); err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "model", s.Model)
}

func (s ChatStream) Delta(text string) ([]byte, error) {
	out, err := s.chunk()
	if err == nil {
		out, err = sjson.SetBytes(out, "choices.0.delta.content", text)
	}
	if err != nil {
		return nil, fmt.Errorf("encode chat chunk: %w", err)
	}
	return out, nil
}

func (s ChatStream) Terminal(resp *models.UnifiedChatResponse) ([]byte, error) {
	out, err := s.chunk()
	if err == nil {
		out, err = sjson.SetBytes(out, "choices.0.finish_reason", openAIFinishReason(resp.FinishReason))
	}
	if err == nil {
		out, err = sjson.SetBytes(out, "usage", openAIUsage(resp))
	}
	if err != nil {
		return nil, fmt.Errorf("encode chat terminal chunk: %w", err)
	}
	return out, nil
}
