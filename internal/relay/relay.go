// Package relay drives a backend event stream to completion, accumulating
// the answer and optionally forwarding each text delta to the client as it
// arrives.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/infinitepi-io/chatrix/internal/observability"
	"github.com/infinitepi-io/chatrix/internal/provider"
	"github.com/infinitepi-io/chatrix/internal/usage"
)

// ErrClientGone is returned when writing to the client fails. The request
// is over; it is not a retryable condition.
var ErrClientGone = errors.New("client connection closed")

// Sink receives text deltas in streaming mode.
type Sink interface {
	WriteDelta(text string) error
}

// Result is the aggregated outcome of a relayed stream.
type Result struct {
	Text          string
	InputTokens   int
	OutputTokens  int
	UsageReported bool
	// Events counts raw backend events consumed.
	Events int
	// Frames counts deltas written to the sink.
	Frames int
}

// Aggregator accumulates decoded events. Text is appended in arrival order
// and the first event carrying usage wins.
type Aggregator struct {
	text     strings.Builder
	usage    provider.Event
	reported bool
	events   int
	frames   int
}

// Observe folds one decoded event into the aggregate.
func (a *Aggregator) Observe(ev provider.Event) {
	a.events++
	if ev.Kind == provider.EventText {
		a.text.WriteString(ev.Text)
	}
	if ev.HasUsage && !a.reported {
		a.usage = ev
		a.reported = true
	}
}

// Text returns the text accumulated so far.
func (a *Aggregator) Text() string {
	return a.text.String()
}

// Result finalises token counts. Without a backend usage event, counts are
// estimated from prompt and completion length independently.
func (a *Aggregator) Result(prompt string) Result {
	text := a.text.String()
	res := Result{
		Text:   text,
		Events: a.events,
		Frames: a.frames,
	}
	if a.reported {
		res.InputTokens = a.usage.InputTokens
		res.OutputTokens = a.usage.OutputTokens
		res.UsageReported = true
		return res
	}
	res.InputTokens = usage.EstimateTokens(prompt)
	res.OutputTokens = usage.EstimateTokens(text)
	return res
}

// Run consumes stream until it ends, decoding each event with family. With
// a non-nil sink every text delta is written before the next event is
// read. The partial result is returned alongside any error.
func Run(ctx context.Context, stream provider.EventStream, family provider.Family, prompt string, sink Sink) (Result, error) {
	var agg Aggregator

	for {
		if err := ctx.Err(); err != nil {
			return agg.Result(prompt), fmt.Errorf("%w: %w", ErrClientGone, err)
		}

		raw, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return agg.Result(prompt), nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return agg.Result(prompt), fmt.Errorf("%w: %w", ErrClientGone, ctxErr)
			}
			return agg.Result(prompt), fmt.Errorf("%w: receive event: %w", provider.ErrBackend, err)
		}

		ev := family.Decode(raw)
		agg.Observe(ev)
		if ev.Kind == provider.EventEmpty {
			observability.DecodeEmptyEventsTotal.WithLabelValues(family.Name()).Inc()
			continue
		}

		if sink == nil || ev.Kind != provider.EventText {
			continue
		}
		if err := sink.WriteDelta(ev.Text); err != nil {
			return agg.Result(prompt), fmt.Errorf("%w: %w", ErrClientGone, err)
		}
		agg.frames++
	}
}
