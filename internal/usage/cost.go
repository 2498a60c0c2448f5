package usage

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/infinitepi-io/chatrix/internal/models"
)

// BaseCurrency is the currency the price table is expressed in.
const BaseCurrency = "USD"

// DefaultPriceKey names the price entry used for unknown backend ids.
const DefaultPriceKey = "claude-3-5-haiku-20241022"

const costPrecision = 1e6

// Price is the cost of 1000 tokens in each direction.
type Price struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

var builtinPrices = map[string]Price{
	DefaultPriceKey:                                {InputPer1K: 0.0008, OutputPer1K: 0.004},
	"claude-3-7-sonnet":                            {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-sonnet-4":                              {InputPer1K: 0.003, OutputPer1K: 0.015},
	"us.anthropic.claude-3-5-haiku-20241022-v1:0":  {InputPer1K: 0.0008, OutputPer1K: 0.004},
	"us.anthropic.claude-3-7-sonnet-20250219-v1:0": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"us.anthropic.claude-sonnet-4-20250514-v1:0":   {InputPer1K: 0.003, OutputPer1K: 0.015},
	"us.deepseek.r1-v1:0":                          {InputPer1K: 0.00135, OutputPer1K: 0.0054},
	"us.amazon.nova-pro-v1:0":                      {InputPer1K: 0.0008, OutputPer1K: 0.0032},
	"us.amazon.nova-lite-v1:0":                     {InputPer1K: 0.00006, OutputPer1K: 0.00024},
	"us.amazon.nova-premier-v1:0":                  {InputPer1K: 0.0025, OutputPer1K: 0.0125},
	"global.amazon.nova-2-lite-v1:0":               {InputPer1K: 0.0003, OutputPer1K: 0.0025},
}

// PriceTable maps backend model ids to prices with one designated fallback.
type PriceTable struct {
	prices     map[string]Price
	defaultKey string
}

// DefaultPriceTable returns the built-in Bedrock on-demand prices.
func DefaultPriceTable() *PriceTable {
	t, err := NewPriceTable(nil, "")
	if err != nil {
		panic(err)
	}
	return t
}

// NewPriceTable layers overrides on top of the built-in prices. An empty
// defaultKey keeps DefaultPriceKey.
func NewPriceTable(overrides map[string]Price, defaultKey string) (*PriceTable, error) {
	prices := make(map[string]Price, len(builtinPrices)+len(overrides))
	for id, p := range builtinPrices {
		prices[id] = p
	}
	for id, p := range overrides {
		if strings.TrimSpace(id) == "" {
			return nil, errors.New("price entry id must not be empty")
		}
		if p.InputPer1K < 0 || p.OutputPer1K < 0 {
			return nil, fmt.Errorf("price entry %q must not be negative", id)
		}
		prices[id] = p
	}

	if defaultKey == "" {
		defaultKey = DefaultPriceKey
	}
	if _, ok := prices[defaultKey]; !ok {
		return nil, fmt.Errorf("default price entry %q is not in the price table", defaultKey)
	}

	return &PriceTable{prices: prices, defaultKey: defaultKey}, nil
}

// Lookup returns the price for backendID and whether it was found. When it
// was not the default entry is returned.
func (t *PriceTable) Lookup(backendID string) (Price, bool) {
	if p, ok := t.prices[backendID]; ok {
		return p, true
	}
	return t.prices[t.defaultKey], false
}

// Conversion converts base-currency costs into another currency.
type Conversion struct {
	Currency string
	Rate     float64
}

// Calculator derives cost estimates from token counts.
type Calculator struct {
	table *PriceTable
}

// NewCalculator constructs a calculator over table. A nil table uses the
// built-in prices.
func NewCalculator(table *PriceTable) *Calculator {
	if table == nil {
		table = DefaultPriceTable()
	}
	return &Calculator{table: table}
}

// Cost computes the cost of one exchange. It performs no I/O and never fails.
func (c *Calculator) Cost(backendID string, inputTokens, outputTokens int, conv *Conversion) models.CostEstimate {
	price, _ := c.table.Lookup(backendID)

	input := Round(float64(max(0, inputTokens)) / 1000 * price.InputPer1K)
	output := Round(float64(max(0, outputTokens)) / 1000 * price.OutputPer1K)
	total := Round(input + output)

	estimate := models.CostEstimate{
		InputCost:  input,
		OutputCost: output,
		TotalCost:  total,
		Currency:   BaseCurrency,
	}
	if conv == nil || conv.Rate <= 0 || conv.Currency == "" || strings.EqualFold(conv.Currency, BaseCurrency) {
		return estimate
	}

	rate := conv.Rate
	return models.CostEstimate{
		InputCost:    Round(input * rate),
		OutputCost:   Round(output * rate),
		TotalCost:    Round(total * rate),
		Currency:     strings.ToUpper(conv.Currency),
		ExchangeRate: &rate,
		Original: &models.Amount{
			InputCost:  input,
			OutputCost: output,
			TotalCost:  total,
			Currency:   BaseCurrency,
		},
	}
}

// Round rounds v to six fractional digits.
func Round(v float64) float64 {
	return math.Round(v*costPrecision) / costPrecision
}

// EstimateTokens approximates a token count as one token per four
// characters, rounded up.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
