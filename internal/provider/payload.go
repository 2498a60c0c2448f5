package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/infinitepi-io/chatrix/internal/models"
)

const anthropicBedrockVersion = "bedrock-2023-05-31"

// completionStops end generation at the close of the reasoning block or at
// the end-of-turn token.
var completionStops = []string{"</think>", "<|end_of_sentence|>"}

// PayloadInput is everything a family needs to build a backend request.
type PayloadInput struct {
	BackendID string
	Prompt    string
	System    string
	Params    models.GenerationParams
}

type conversationalPayload struct {
	AnthropicVersion string                  `json:"anthropic_version"`
	MaxTokens        int                     `json:"max_tokens"`
	Temperature      float64                 `json:"temperature"`
	TopP             float64                 `json:"top_p"`
	Messages         []conversationalMessage `json:"messages"`
}

type conversationalMessage struct {
	Role    string             `json:"role"`
	Content []typedTextContent `json:"content"`
}

type typedTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (f conversationalFamily) BuildPayload(in PayloadInput) ([]byte, error) {
	s := f.Limits().Clamp(in.Params)
	return marshalPayload(f, conversationalPayload{
		AnthropicVersion: anthropicBedrockVersion,
		MaxTokens:        s.MaxTokens,
		Temperature:      s.Temperature,
		TopP:             s.TopP,
		Messages: []conversationalMessage{{
			Role:    "user",
			Content: []typedTextContent{{Type: "text", Text: in.Prompt}},
		}},
	})
}

type completionPayload struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
}

func (f completionFamily) BuildPayload(in PayloadInput) ([]byte, error) {
	s := f.Limits().Clamp(in.Params)
	stops := make([]string, len(completionStops))
	copy(stops, completionStops)
	return marshalPayload(f, completionPayload{
		Prompt:      in.Prompt,
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
		TopP:        s.TopP,
		Stop:        stops,
	})
}

type conversePayload struct {
	SchemaVersion   string                `json:"schemaVersion"`
	System          []converseText        `json:"system,omitempty"`
	Messages        []converseMessage     `json:"messages"`
	InferenceConfig converseInferenceConf `json:"inferenceConfig"`
}

type converseMessage struct {
	Role    string         `json:"role"`
	Content []converseText `json:"content"`
}

type converseText struct {
	Text string `json:"text"`
}

type converseInferenceConf struct {
	MaxTokens   int      `json:"maxTokens"`
	Temperature float64  `json:"temperature"`
	TopP        *float64 `json:"topP,omitempty"`
}

func (f converseFamily) BuildPayload(in PayloadInput) ([]byte, error) {
	s := f.Limits().Clamp(in.Params)

	payload := conversePayload{
		SchemaVersion: "messages-v1",
		Messages: []converseMessage{{
			Role:    "user",
			Content: []converseText{{Text: in.Prompt}},
		}},
		InferenceConfig: converseInferenceConf{
			MaxTokens:   s.MaxTokens,
			Temperature: s.Temperature,
		},
	}
	if system := strings.TrimSpace(in.System); system != "" {
		payload.System = []converseText{{Text: system}}
	}
	if !RejectsCombinedSampling(in.BackendID) {
		topP := s.TopP
		payload.InferenceConfig.TopP = &topP
	}
	return marshalPayload(f, payload)
}

func marshalPayload(f Family, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", f.Name(), err)
	}
	return body, nil
}
