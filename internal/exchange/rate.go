// Package exchange converts USD cost estimates into a display currency.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/infinitepi-io/chatrix/internal/cache"
)

// ErrNoRate is returned when a rate cannot be obtained.
var ErrNoRate = errors.New("exchange rate unavailable")

// DefaultTTL bounds how long a fetched rate is reused.
const DefaultTTL = time.Hour

// maxBodyBytes caps the rate response.
const maxBodyBytes = 1 << 20

// Source yields the number of target-currency units per USD.
// ok is false when no usable rate is available.
type Source interface {
	Rate(ctx context.Context) (rate float64, ok bool)
}

// Static is a fixed rate. Zero or negative means no conversion.
type Static float64

func (s Static) Rate(context.Context) (float64, bool) {
	return float64(s), s > 0
}

// HTTPConfig describes an HTTP rate endpoint.
type HTTPConfig struct {
	URL string
	// Path is a gjson path to the rate in the response, e.g. "rates.INR".
	Path     string
	TTL      time.Duration
	Fallback float64
	Client   *http.Client
}

// HTTP fetches a rate from a JSON endpoint and caches it.
type HTTP struct {
	cfg   HTTPConfig
	value *cache.Value[float64]
}

// NewHTTP validates cfg and returns an HTTP source.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rate url must not be empty")
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("rate path must not be empty")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 5 * time.Second}
	}

	h := &HTTP{cfg: cfg}
	h.value = cache.New(h.fetch, cfg.TTL)
	return h, nil
}

// Rate returns the cached rate, refreshing it when stale. On fetch failure
// it returns the configured fallback, if any.
func (h *HTTP) Rate(ctx context.Context) (float64, bool) {
	rate, err := h.value.Get(ctx)
	if err == nil {
		return rate, true
	}

	if h.cfg.Fallback > 0 {
		slog.Warn("using fallback exchange rate", "err", err, "rate", h.cfg.Fallback)
		return h.cfg.Fallback, true
	}
	slog.Warn("exchange rate unavailable, reporting USD", "err", err)
	return 0, false
}

func (h *HTTP) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.cfg.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %w", ErrNoRate, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.cfg.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNoRate, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: unexpected status %d", ErrNoRate, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, fmt.Errorf("%w: read body: %w", ErrNoRate, err)
	}

	v := gjson.GetBytes(body, h.cfg.Path)
	if !v.Exists() || v.Type != gjson.Number || v.Float() <= 0 {
		return 0, fmt.Errorf("%w: no positive number at %q", ErrNoRate, h.cfg.Path)
	}

	slog.Debug("exchange rate refreshed", "rate", v.Float())
	return v.Float(), nil
}
