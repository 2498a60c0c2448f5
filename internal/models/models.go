package models

// Message represents a single conversational message in the unified schema.
// Content is already reduced to plain text.
type Message struct {
	Role    string
	Content string
}

// GenerationParams carries sampling parameters as the client sent them.
// Nil fields fall back to the model family's defaults.
type GenerationParams struct {
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
}

// UnifiedChatRequest is the canonical representation of a chat request,
// independent of the public dialect it arrived in.
type UnifiedChatRequest struct {
	RequestID string
	Model     string
	Messages  []Message
	Stream    bool
	Params    GenerationParams
}

// Prompt returns the text of the last message. Earlier turns are not
// forwarded to the backend.
func (r UnifiedChatRequest) Prompt() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

// UnifiedChatResponse captures a completed backend exchange.
type UnifiedChatResponse struct {
	ID           string
	Model        string
	BackendID    string
	Message      Message
	Usage        Usage
	Cost         CostEstimate
	FinishReason string
}

// Usage records token accounting information.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	// Reported is true when the counts came from the backend rather than
	// the character-length estimate.
	Reported bool
}

// NewUsage builds a Usage with the total filled in.
func NewUsage(prompt, completion int, reported bool) Usage {
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		Reported:         reported,
	}
}

// Amount is a cost breakdown in a single currency.
type Amount struct {
	InputCost  float64 `json:"input_cost"`
	OutputCost float64 `json:"output_cost"`
	TotalCost  float64 `json:"total_cost"`
	Currency   string  `json:"currency"`
}

// CostEstimate is the monetary cost of one exchange. When a conversion rate
// was applied, Original holds the same costs in the price table's currency.
type CostEstimate struct {
	InputCost    float64  `json:"input_cost"`
	OutputCost   float64  `json:"output_cost"`
	TotalCost    float64  `json:"total_cost"`
	Currency     string   `json:"currency"`
	ExchangeRate *float64 `json:"exchange_rate,omitempty"`
	Original     *Amount  `json:"original,omitempty"`
}

// Model identifies a known model with backend metadata.
type Model struct {
	ID        string
	BackendID string
	Family    string
}

