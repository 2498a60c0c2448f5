package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/infinitepi-io/chatrix/internal/usage"
)

const (
	defaultPort       = 3000
	defaultRegion     = "us-west-2"
	defaultSecretName = "chatrix/api-key"
	defaultRateTTL    = time.Hour
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	AWS          AWSConfig          `yaml:"aws"`
	Auth         AuthConfig         `yaml:"auth"`
	Models       ModelsConfig       `yaml:"models"`
	Pricing      PricingConfig      `yaml:"pricing"`
	Currency     CurrencyConfig     `yaml:"currency"`
	SystemPrompt SystemPromptConfig `yaml:"system_prompt"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

// AWSConfig selects the region and, optionally, a Bedrock endpoint override.
type AWSConfig struct {
	Region   string `yaml:"region" validate:"required"`
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

// AuthConfig names the credential clients must present. A non-empty
// APIKey bypasses Secrets Manager.
type AuthConfig struct {
	SecretName string `yaml:"secret_name"`
	APIKey     string `yaml:"api_key"`
}

// ModelsConfig adds logical names on top of the built-in registry.
type ModelsConfig struct {
	Aliases map[string]string `yaml:"aliases"`
}

// PricingConfig overrides per-model prices, keyed by backend id or short key.
type PricingConfig struct {
	Default string                 `yaml:"default"`
	Models  map[string]usage.Price `yaml:"models"`
}

// CurrencyConfig controls conversion of USD estimates.
type CurrencyConfig struct {
	Code         string        `yaml:"code"`
	RateURL      string        `yaml:"rate_url" validate:"omitempty,url"`
	RatePath     string        `yaml:"rate_path"`
	FallbackRate float64       `yaml:"fallback_rate" validate:"gte=0"`
	CacheTTL     time.Duration `yaml:"cache_ttl" validate:"gte=0"`
}

// Converts reports whether estimates are reported in a non-USD currency.
func (c CurrencyConfig) Converts() bool {
	code := strings.TrimSpace(c.Code)
	return code != "" && !strings.EqualFold(code, usage.BaseCurrency)
}

// SystemPromptConfig points at a file holding the system instruction.
type SystemPromptConfig struct {
	File string `yaml:"file"`
}

// LoggingConfig selects level, format and an optional rotated log file.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns a configuration that is valid without a config file.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: defaultPort},
		AWS:    AWSConfig{Region: defaultRegion},
		Auth:   AuthConfig{SecretName: defaultSecretName},
		Pricing: PricingConfig{
			Default: usage.DefaultPriceKey,
		},
		Currency: CurrencyConfig{
			Code:     usage.BaseCurrency,
			CacheTTL: defaultRateTTL,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads YAML configuration from disk over the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return Config{}, fmt.Errorf("resolve config path: %w", err)
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT must be an integer, got %q", v)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("AWS_REGION"); ok && v != "" {
		c.AWS.Region = v
	}
	for _, key := range []string{"SecretName", "CHATRIX_SECRET_NAME"} {
		if v, ok := lookup(key); ok && v != "" {
			c.Auth.SecretName = v
		}
	}
	if v, ok := lookup("CHATRIX_API_KEY"); ok && v != "" {
		c.Auth.APIKey = v
	}
	if v, ok := lookup("CHATRIX_LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
	return nil
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate performs strict sanity checks on the configuration. Field-level
// rules live in the validate tags; the checks below span several fields.
func (c Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.AWS.Region) == "" {
		return fmt.Errorf("aws.region must be provided")
	}
	if strings.TrimSpace(c.Auth.APIKey) == "" && strings.TrimSpace(c.Auth.SecretName) == "" {
		return fmt.Errorf("auth: one of api_key or secret_name must be provided")
	}

	for alias, target := range c.Models.Aliases {
		if strings.TrimSpace(alias) == "" {
			return fmt.Errorf("models: alias name must not be empty")
		}
		if strings.TrimSpace(target) == "" {
			return fmt.Errorf("models: alias %q target must not be empty", alias)
		}
	}

	for key, price := range c.Pricing.Models {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("pricing: model key must not be empty")
		}
		if price.InputPer1K < 0 || price.OutputPer1K < 0 {
			return fmt.Errorf("pricing: model %q prices must not be negative", key)
		}
	}

	if err := c.Currency.validate(); err != nil {
		return err
	}
	return c.Logging.validate()
}

func (c CurrencyConfig) validate() error {
	code := strings.TrimSpace(c.Code)
	if code != "" && !isCurrencyCode(code) {
		return fmt.Errorf("currency.code %q must be a three-letter ISO 4217 code", c.Code)
	}
	if c.FallbackRate < 0 {
		return fmt.Errorf("currency.fallback_rate must not be negative")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("currency.cache_ttl must not be negative")
	}
	if strings.TrimSpace(c.RateURL) != "" && strings.TrimSpace(c.RatePath) == "" {
		return fmt.Errorf("currency.rate_path must be provided with rate_url")
	}
	if c.Converts() && strings.TrimSpace(c.RateURL) == "" && c.FallbackRate == 0 {
		return fmt.Errorf("currency %s requires rate_url or fallback_rate", code)
	}
	return nil
}

func (l LoggingConfig) validate() error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn or error", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format %q must be json or text", l.Format)
	}
	return nil
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return false
		}
	}
	return true
}
