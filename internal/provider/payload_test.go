package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/infinitepi-io/chatrix/internal/models"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestClampCeilings(t *testing.T) {
	tests := []struct {
		name   string
		params models.GenerationParams
		want   Sampling
	}{
		{
			name:   "above every ceiling",
			params: models.GenerationParams{MaxTokens: intPtr(4096), Temperature: floatPtr(0.9), TopP: floatPtr(1)},
			want:   Sampling{MaxTokens: 1024, Temperature: 0.3, TopP: 0.3},
		},
		{
			name:   "at the ceiling",
			params: models.GenerationParams{MaxTokens: intPtr(1024), Temperature: floatPtr(0.3), TopP: floatPtr(0.3)},
			want:   Sampling{MaxTokens: 1024, Temperature: 0.3, TopP: 0.3},
		},
		{
			name:   "below the ceiling passes through",
			params: models.GenerationParams{MaxTokens: intPtr(200), Temperature: floatPtr(0.1), TopP: floatPtr(0)},
			want:   Sampling{MaxTokens: 200, Temperature: 0.1, TopP: 0},
		},
		{
			name:   "absent uses defaults",
			params: models.GenerationParams{},
			want:   Sampling{MaxTokens: 1024, Temperature: 0.3, TopP: 0.3},
		},
		{
			name:   "non-positive max tokens uses default",
			params: models.GenerationParams{MaxTokens: intPtr(0)},
			want:   Sampling{MaxTokens: 1024, Temperature: 0.3, TopP: 0.3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, conversationalLimits.Clamp(tt.params))
		})
	}
}

func TestCompletionDefaults(t *testing.T) {
	got := completionLimits.Clamp(models.GenerationParams{})
	assert.Equal(t, Sampling{MaxTokens: 512, Temperature: 0.3, TopP: 0.3}, got)
}

func TestConversationalPayload(t *testing.T) {
	body, err := ConversationalBlockDelta.BuildPayload(PayloadInput{
		BackendID: "us.anthropic.claude-sonnet-4-20250514-v1:0",
		Prompt:    "hello there",
		System:    "ignored",
		Params:    models.GenerationParams{MaxTokens: intPtr(5000), Temperature: floatPtr(0.7), TopP: floatPtr(0.2)},
	})
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(body))

	assert.Equal(t, "bedrock-2023-05-31", gjson.GetBytes(body, "anthropic_version").String())
	assert.Equal(t, int64(1024), gjson.GetBytes(body, "max_tokens").Int())
	assert.Equal(t, 0.3, gjson.GetBytes(body, "temperature").Float())
	assert.Equal(t, 0.2, gjson.GetBytes(body, "top_p").Float())
	assert.Equal(t, int64(1), gjson.GetBytes(body, "messages.#").Int())
	assert.Equal(t, "user", gjson.GetBytes(body, "messages.0.role").String())
	assert.Equal(t, "text", gjson.GetBytes(body, "messages.0.content.0.type").String())
	assert.Equal(t, "hello there", gjson.GetBytes(body, "messages.0.content.0.text").String())
	assert.False(t, gjson.GetBytes(body, "system").Exists())
}

func TestCompletionPayload(t *testing.T) {
	body, err := CompletionText.BuildPayload(PayloadInput{
		BackendID: "us.deepseek.r1-v1:0",
		Prompt:    "why is the sky blue?",
		Params:    models.GenerationParams{TopP: floatPtr(0.9)},
	})
	require.NoError(t, err)

	assert.Equal(t, "why is the sky blue?", gjson.GetBytes(body, "prompt").String())
	assert.Equal(t, int64(512), gjson.GetBytes(body, "max_tokens").Int())
	assert.Equal(t, 0.3, gjson.GetBytes(body, "temperature").Float())
	assert.Equal(t, 0.3, gjson.GetBytes(body, "top_p").Float())

	stops := gjson.GetBytes(body, "stop").Array()
	require.Len(t, stops, 2)
	assert.Equal(t, "</think>", stops[0].String())
	assert.Equal(t, "<|end_of_sentence|>", stops[1].String())
}

func TestConversePayloadIncludesTopPForOlderModels(t *testing.T) {
	body, err := ConverseUnified.BuildPayload(PayloadInput{
		BackendID: "us.amazon.nova-pro-v1:0",
		Prompt:    "summarise this",
		System:    "Be brief.",
		Params:    models.GenerationParams{MaxTokens: intPtr(300), Temperature: floatPtr(0.5), TopP: floatPtr(0.25)},
	})
	require.NoError(t, err)

	assert.Equal(t, "messages-v1", gjson.GetBytes(body, "schemaVersion").String())
	assert.Equal(t, "Be brief.", gjson.GetBytes(body, "system.0.text").String())
	assert.Equal(t, "user", gjson.GetBytes(body, "messages.0.role").String())
	assert.Equal(t, "summarise this", gjson.GetBytes(body, "messages.0.content.0.text").String())
	assert.Equal(t, int64(300), gjson.GetBytes(body, "inferenceConfig.maxTokens").Int())
	assert.Equal(t, 0.3, gjson.GetBytes(body, "inferenceConfig.temperature").Float())
	require.True(t, gjson.GetBytes(body, "inferenceConfig.topP").Exists())
	assert.Equal(t, 0.25, gjson.GetBytes(body, "inferenceConfig.topP").Float())
}

func TestConversePayloadOmitsTopPForNewerGeneration(t *testing.T) {
	for id := range newerGeneration {
		body, err := ConverseUnified.BuildPayload(PayloadInput{
			BackendID: id,
			Prompt:    "hi",
			Params:    models.GenerationParams{TopP: floatPtr(0.1)},
		})
		require.NoError(t, err)
		assert.False(t, gjson.GetBytes(body, "inferenceConfig.topP").Exists(), "backend %s", id)
		assert.True(t, gjson.GetBytes(body, "inferenceConfig.temperature").Exists(), "backend %s", id)
	}
}

func TestConversePayloadOmitsBlankSystem(t *testing.T) {
	body, err := ConverseUnified.BuildPayload(PayloadInput{BackendID: "us.amazon.nova-lite-v1:0", Prompt: "hi", System: "  "})
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(body, "system").Exists())
}

func TestRejectsCombinedSampling(t *testing.T) {
	assert.True(t, RejectsCombinedSampling("us.amazon.nova-premier-v1:0"))
	assert.False(t, RejectsCombinedSampling("us.amazon.nova-pro-v1:0"))
	assert.False(t, RejectsCombinedSampling(""))
}
