package provider

import (
	"github.com/tidwall/gjson"
)

// EventKind classifies a decoded stream event.
type EventKind int

const (
	// EventEmpty is an event that carried nothing usable.
	EventEmpty EventKind = iota
	// EventText carries an incremental fragment of generated text.
	EventText
	// EventUsage carries final token counters reported by the backend.
	EventUsage
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventUsage:
		return "usage"
	default:
		return "empty"
	}
}

// Event is the canonical form of one backend stream event. A text event
// may also carry the final counters when the backend sends both in one
// chunk; HasUsage is set whenever the counters are meaningful.
type Event struct {
	Kind         EventKind
	Text         string
	InputTokens  int
	OutputTokens int
	HasUsage     bool
}

func textEvent(text string) Event {
	if text == "" {
		return Event{}
	}
	return Event{Kind: EventText, Text: text}
}

func usageEvent(in, out gjson.Result) Event {
	if !in.Exists() || !out.Exists() {
		return Event{}
	}
	return Event{
		Kind:         EventUsage,
		InputTokens:  max(0, int(in.Int())),
		OutputTokens: max(0, int(out.Int())),
		HasUsage:     true,
	}
}

// invocationMetrics reads the counters Bedrock attaches to the last chunk of
// an invoke stream.
func invocationMetrics(raw []byte) Event {
	metrics := gjson.GetBytes(raw, "amazon-bedrock-invocationMetrics")
	if !metrics.Exists() {
		return Event{}
	}
	return usageEvent(metrics.Get("inputTokenCount"), metrics.Get("outputTokenCount"))
}

func (conversationalFamily) Decode(raw []byte) Event {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return Event{}
	}

	switch gjson.GetBytes(raw, "type").String() {
	case "content_block_delta":
		return textEvent(gjson.GetBytes(raw, "delta.text").String())
	case "message_stop":
		return invocationMetrics(raw)
	default:
		return Event{}
	}
}

func (completionFamily) Decode(raw []byte) Event {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return Event{}
	}

	usage := invocationMetrics(raw)
	text := gjson.GetBytes(raw, "choices.0.text").String()
	if text == "" {
		return usage
	}
	ev := textEvent(text)
	if usage.HasUsage {
		ev.InputTokens, ev.OutputTokens, ev.HasUsage = usage.InputTokens, usage.OutputTokens, true
	}
	return ev
}

func (converseFamily) Decode(raw []byte) Event {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return Event{}
	}

	if delta := gjson.GetBytes(raw, "contentBlockDelta.delta.text"); delta.Exists() {
		return textEvent(delta.String())
	}
	if usage := gjson.GetBytes(raw, "metadata.usage"); usage.Exists() {
		return usageEvent(usage.Get("inputTokens"), usage.Get("outputTokens"))
	}
	return invocationMetrics(raw)
}
