package translator

import (
	"strings"

	"github.com/infinitepi-io/chatrix/internal/models"
)

var claudeRoles = map[string]struct{}{
	"user":      {},
	"assistant": {},
}

// ClaudeMessageRequest models the Anthropic /v1/messages payload. Fields
// the gateway does not act on are accepted and dropped.
type ClaudeMessageRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens"`
	Temperature *float64      `json:"temperature"`
	TopP        *float64      `json:"top_p"`
	Stream      bool          `json:"stream"`
}

// Validate checks the request and returns a *RequestError on failure.
func (r *ClaudeMessageRequest) Validate() error {
	r.Model = strings.TrimSpace(r.Model)
	if r.Model == "" || len(r.Messages) == 0 {
		return invalidf(missingParamsMessage)
	}
	for i := range r.Messages {
		r.Messages[i].Role = strings.TrimSpace(r.Messages[i].Role)
	}
	if err := validateMessages(r.Messages, claudeRoles); err != nil {
		return err
	}
	return validateParams(r.params())
}

func (r ClaudeMessageRequest) params() models.GenerationParams {
	return models.GenerationParams{
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
		TopP:        r.TopP,
	}
}

// ToUnified converts the Claude request into the canonical format.
func (r ClaudeMessageRequest) ToUnified() models.UnifiedChatRequest {
	return models.UnifiedChatRequest{
		Model:    r.Model,
		Messages: toUnifiedMessages(r.Messages),
		Stream:   r.Stream,
		Params:   r.params(),
	}
}

// ClaudeMessageResponse models the Anthropic response payload.
type ClaudeMessageResponse struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	Role         string            `json:"role"`
	Content      []ClaudeTextBlock `json:"content"`
	Model        string            `json:"model"`
	StopReason   string            `json:"stop_reason"`
	StopSequence *string           `json:"stop_sequence"`
	Usage        ClaudeUsage       `json:"usage"`
}

// ClaudeTextBlock represents a text content block in the response.
type ClaudeTextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ClaudeUsage mirrors Anthropic usage format, extended with the cost
// estimate.
type ClaudeUsage struct {
	InputTokens  int                 `json:"input_tokens"`
	OutputTokens int                 `json:"output_tokens"`
	TotalTokens  int                 `json:"total_tokens"`
	Cost         models.CostEstimate `json:"cost"`
}

// ClaudeMessageID is the public id of a message for a request id.
func ClaudeMessageID(requestID string) string {
	return "msg_" + requestID
}

// FromUnifiedClaude converts the unified response to Anthropic format.
func FromUnifiedClaude(resp *models.UnifiedChatResponse) ClaudeMessageResponse {
	role := resp.Message.Role
	if role == "" {
		role = "assistant"
	}

	return ClaudeMessageResponse{
		ID:   ClaudeMessageID(resp.ID),
		Type: "message",
		Role: role,
		Content: []ClaudeTextBlock{
			{Type: "text", Text: resp.Message.Content},
		},
		Model:      resp.Model,
		StopReason: resp.FinishReason,
		Usage:      claudeUsage(resp),
	}
}

func claudeUsage(resp *models.UnifiedChatResponse) ClaudeUsage {
	return ClaudeUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
		Cost:         resp.Cost,
	}
}
