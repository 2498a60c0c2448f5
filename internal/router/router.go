package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/infinitepi-io/chatrix/internal/exchange"
	"github.com/infinitepi-io/chatrix/internal/models"
	"github.com/infinitepi-io/chatrix/internal/observability"
	"github.com/infinitepi-io/chatrix/internal/provider"
	"github.com/infinitepi-io/chatrix/internal/relay"
	"github.com/infinitepi-io/chatrix/internal/sysprompt"
	"github.com/infinitepi-io/chatrix/internal/usage"
)

const finishReasonEndTurn = "end_turn"

// Config carries the router's optional collaborators. Zero values fall back
// to the built-in price table, the default system prompt and USD.
type Config struct {
	Calculator   *usage.Calculator
	SystemPrompt sysprompt.Source
	// Currency is the display currency; Rates supplies its USD rate.
	Currency string
	Rates    exchange.Source
}

// Router resolves a unified request to a backend model, invokes it and
// relays the result.
type Router struct {
	registry *provider.Registry
	backend  provider.Backend
	cfg      Config
}

// New constructs a router backed by the provided registry and backend.
func New(registry *provider.Registry, backend provider.Backend, cfg Config) (*Router, error) {
	if registry == nil {
		return nil, errors.New("registry must not be nil")
	}
	if backend == nil {
		return nil, errors.New("backend must not be nil")
	}
	if cfg.Calculator == nil {
		cfg.Calculator = usage.NewCalculator(usage.DefaultPriceTable())
	}
	if cfg.SystemPrompt == nil {
		cfg.SystemPrompt = sysprompt.Static(sysprompt.Default)
	}
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))

	return &Router{
		registry: registry,
		backend:  backend,
		cfg:      cfg,
	}, nil
}

// Chat runs one request to completion. With a non-nil sink each text delta
// is forwarded as it arrives; the returned response always carries the
// full text. On error, any deltas already written stay written.
func (r *Router) Chat(ctx context.Context, req models.UnifiedChatRequest, sink relay.Sink) (*models.UnifiedChatResponse, error) {
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	desc := r.registry.Resolve(req.Model)
	prompt := req.Prompt()
	logger := slog.With("request_id", req.RequestID, "model", req.Model, "backend_id", desc.BackendID)

	payload, err := desc.Family.BuildPayload(provider.PayloadInput{
		BackendID: desc.BackendID,
		Prompt:    prompt,
		System:    r.cfg.SystemPrompt.SystemPrompt(ctx),
		Params:    req.Params,
	})
	if err != nil {
		return nil, fmt.Errorf("build payload for %s: %w", desc.BackendID, err)
	}

	stream, err := r.backend.InvokeStream(ctx, desc.BackendID, payload)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	res, err := relay.Run(ctx, stream, desc.Family, prompt, sink)
	if err != nil {
		logger.Warn("relay ended early",
			"err", err,
			"frames_written", res.Frames,
			"events", res.Events,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	in, out := res.InputTokens, res.OutputTokens
	cost := r.cfg.Calculator.Cost(desc.BackendID, in, out, r.conversion(ctx))

	observability.BackendTokensTotal.WithLabelValues(desc.Name, "input").Add(float64(in))
	observability.BackendTokensTotal.WithLabelValues(desc.Name, "output").Add(float64(out))
	observability.CostTotal.WithLabelValues(desc.Name, cost.Currency).Add(cost.TotalCost)

	logger.Info("chat completed",
		"family", desc.Family.Name(),
		"response_chars", len(res.Text),
		"input_tokens", in,
		"output_tokens", out,
		"usage_reported", res.UsageReported,
		"cost", cost.TotalCost,
		"currency", cost.Currency,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &models.UnifiedChatResponse{
		ID:           req.RequestID,
		Model:        req.Model,
		BackendID:    desc.BackendID,
		Message:      models.Message{Role: "assistant", Content: res.Text},
		Usage:        models.NewUsage(in, out, res.UsageReported),
		Cost:         cost,
		FinishReason: finishReasonEndTurn,
	}, nil
}

func (r *Router) conversion(ctx context.Context) *usage.Conversion {
	if r.cfg.Currency == "" || r.cfg.Currency == usage.BaseCurrency || r.cfg.Rates == nil {
		return nil
	}
	rate, ok := r.cfg.Rates.Rate(ctx)
	if !ok {
		return nil
	}
	return &usage.Conversion{Currency: r.cfg.Currency, Rate: rate}
}

// Resolve returns the descriptor a model name routes to, without logging.
func (r *Router) Resolve(name string) provider.Descriptor {
	if d, ok := r.registry.Lookup(name); ok {
		return d
	}
	return r.registry.Fallback()
}

// Models lists the logical model names the router accepts.
func (r *Router) Models() []models.Model {
	descs := r.registry.List()
	out := make([]models.Model, 0, len(descs))
	for _, d := range descs {
		out = append(out, d.Model())
	}
	return out
}
