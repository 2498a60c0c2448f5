package translator

import (
	"strings"

	"github.com/infinitepi-io/chatrix/internal/models"
)

var chatRoles = map[string]struct{}{
	"system":    {},
	"user":      {},
	"assistant": {},
	"tool":      {},
}

// ChatCompletionRequest models the OpenAI chat/completions request payload.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens"`
	Temperature *float64      `json:"temperature"`
	TopP        *float64      `json:"top_p"`
	Stream      bool          `json:"stream"`
}

// Validate checks the request and returns a *RequestError on failure.
func (r *ChatCompletionRequest) Validate() error {
	r.Model = strings.TrimSpace(r.Model)
	if r.Model == "" || len(r.Messages) == 0 {
		return invalidf(missingParamsMessage)
	}
	for i := range r.Messages {
		r.Messages[i].Role = strings.TrimSpace(r.Messages[i].Role)
	}
	if err := validateMessages(r.Messages, chatRoles); err != nil {
		return err
	}
	return validateParams(r.params())
}

func (r ChatCompletionRequest) params() models.GenerationParams {
	return models.GenerationParams{
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
		TopP:        r.TopP,
	}
}

// ToUnified converts the OpenAI request into the canonical format.
func (r ChatCompletionRequest) ToUnified() models.UnifiedChatRequest {
	return models.UnifiedChatRequest{
		Model:    r.Model,
		Messages: toUnifiedMessages(r.Messages),
		Stream:   r.Stream,
		Params:   r.params(),
	}
}

// ChatCompletionResponse models the OpenAI-compatible chat response.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   OpenAIUsage  `json:"usage"`
}

// ChatChoice represents a single choice in the response payload.
type ChatChoice struct {
	Index        int             `json:"index"`
	Message      ChatMessageBody `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ChatMessageBody is an assistant message in a response.
type ChatMessageBody struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIUsage mirrors the token usage block in OpenAI responses, extended
// with the cost estimate.
type OpenAIUsage struct {
	PromptTokens     int                 `json:"prompt_tokens"`
	CompletionTokens int                 `json:"completion_tokens"`
	TotalTokens      int                 `json:"total_tokens"`
	Cost             models.CostEstimate `json:"cost"`
}

// ChatCompletionID is the public id of a completion for a request id.
func ChatCompletionID(requestID string) string {
	return "chatcmpl-" + requestID
}

// FromUnifiedChat constructs the OpenAI response shape from the unified data.
func FromUnifiedChat(createdUnix int64, resp *models.UnifiedChatResponse) ChatCompletionResponse {
	role := resp.Message.Role
	if role == "" {
		role = "assistant"
	}

	return ChatCompletionResponse{
		ID:      ChatCompletionID(resp.ID),
		Object:  "chat.completion",
		Created: createdUnix,
		Model:   resp.Model,
		Choices: []ChatChoice{
			{
				Index:        0,
				Message:      ChatMessageBody{Role: role, Content: resp.Message.Content},
				FinishReason: openAIFinishReason(resp.FinishReason),
			},
		},
		Usage: openAIUsage(resp),
	}
}

func openAIUsage(resp *models.UnifiedChatResponse) OpenAIUsage {
	return OpenAIUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		Cost:             resp.Cost,
	}
}

func openAIFinishReason(reason string) string {
	switch reason {
	case "", "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	default:
		return reason
	}
}
