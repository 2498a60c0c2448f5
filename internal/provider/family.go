package provider

import (
	"github.com/infinitepi-io/chatrix/internal/models"
)

// Family identifies the request and response shape a backend model speaks.
// The set is closed: every family builds its own payload and decodes its own
// stream events, so a new family cannot exist without both.
type Family interface {
	Name() string
	Limits() Limits
	BuildPayload(in PayloadInput) ([]byte, error)
	Decode(raw []byte) Event
	family()
}

// Family names, as reported in logs and the model listing.
const (
	FamilyConversationalBlockDelta = "conversational-block-delta"
	FamilyCompletionText           = "completion-text"
	FamilyConverseUnified          = "converse-unified"
)

var (
	// ConversationalBlockDelta covers Anthropic models on the invoke API.
	ConversationalBlockDelta Family = conversationalFamily{}
	// CompletionText covers flat prompt/choices models such as DeepSeek R1.
	CompletionText Family = completionFamily{}
	// ConverseUnified covers models that take the messages-v1 schema.
	ConverseUnified Family = converseFamily{}
)

// Families returns every supported family.
func Families() []Family {
	return []Family{ConversationalBlockDelta, CompletionText, ConverseUnified}
}

// FamilyByName returns the family registered under name.
func FamilyByName(name string) (Family, bool) {
	for _, f := range Families() {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// Limits bounds the sampling parameters sent to a family's models.
// Ceilings are applied only from above.
type Limits struct {
	MaxTokens   int
	Temperature float64
	TopP        float64

	DefaultMaxTokens   int
	DefaultTemperature float64
	DefaultTopP        float64
}

// Sampling holds the parameters placed in a backend payload.
type Sampling struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Clamp resolves client parameters against l: absent values take the
// defaults and values above a ceiling are cut to it.
func (l Limits) Clamp(p models.GenerationParams) Sampling {
	s := Sampling{
		MaxTokens:   l.DefaultMaxTokens,
		Temperature: l.DefaultTemperature,
		TopP:        l.DefaultTopP,
	}
	if p.MaxTokens != nil && *p.MaxTokens > 0 {
		s.MaxTokens = *p.MaxTokens
	}
	if p.Temperature != nil {
		s.Temperature = *p.Temperature
	}
	if p.TopP != nil {
		s.TopP = *p.TopP
	}

	s.MaxTokens = min(s.MaxTokens, l.MaxTokens)
	s.Temperature = min(s.Temperature, l.Temperature)
	s.TopP = min(s.TopP, l.TopP)
	return s
}

const (
	maxTokensCeiling   = 1024
	temperatureCeiling = 0.3
	topPCeiling        = 0.3
)

var conversationalLimits = Limits{
	MaxTokens:          maxTokensCeiling,
	Temperature:        temperatureCeiling,
	TopP:               topPCeiling,
	DefaultMaxTokens:   1024,
	DefaultTemperature: 0.3,
	DefaultTopP:        0.3,
}

var completionLimits = Limits{
	MaxTokens:          maxTokensCeiling,
	Temperature:        temperatureCeiling,
	TopP:               topPCeiling,
	DefaultMaxTokens:   512,
	DefaultTemperature: 0.3,
	DefaultTopP:        0.3,
}

var converseLimits = Limits{
	MaxTokens:          maxTokensCeiling,
	Temperature:        temperatureCeiling,
	TopP:               topPCeiling,
	DefaultMaxTokens:   1024,
	DefaultTemperature: 0.3,
	DefaultTopP:        0.3,
}

// newerGeneration lists converse models that reject temperature and topP
// in the same request.
var newerGeneration = map[string]struct{}{
	"us.amazon.nova-premier-v1:0":    {},
	"global.amazon.nova-2-lite-v1:0": {},
}

// RejectsCombinedSampling reports whether backendID must not receive topP
// alongside temperature.
func RejectsCombinedSampling(backendID string) bool {
	_, ok := newerGeneration[backendID]
	return ok
}

type conversationalFamily struct{}

func (conversationalFamily) Name() string   { return FamilyConversationalBlockDelta }
func (conversationalFamily) Limits() Limits { return conversationalLimits }
func (conversationalFamily) family()        {}

type completionFamily struct{}

func (completionFamily) Name() string   { return FamilyCompletionText }
func (completionFamily) Limits() Limits { return completionLimits }
func (completionFamily) family()        {}

type converseFamily struct{}

func (converseFamily) Name() string   { return FamilyConverseUnified }
func (converseFamily) Limits() Limits { return converseLimits }
func (converseFamily) family()        {}
