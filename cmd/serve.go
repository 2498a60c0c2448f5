package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/infinitepi-io/chatrix/internal/config"
	"github.com/infinitepi-io/chatrix/internal/exchange"
	"github.com/infinitepi-io/chatrix/internal/logging"
	"github.com/infinitepi-io/chatrix/internal/provider"
	providerfactory "github.com/infinitepi-io/chatrix/internal/provider/factory"
	"github.com/infinitepi-io/chatrix/internal/router"
	"github.com/infinitepi-io/chatrix/internal/server"
	"github.com/infinitepi-io/chatrix/internal/sysprompt"
	"github.com/infinitepi-io/chatrix/internal/usage"
)

func newServeCommand() *cobra.Command {
	var port int

	c := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if port != 0 {
				if port < 0 || port > 65535 {
					return fmt.Errorf("port override %d must be a valid TCP port", port)
				}
				cfg.Server.Port = port
			}

			closer := logging.Setup(cfg.Logging)
			defer closer.Close()

			ctx := c.Context()
			clients, err := providerfactory.Build(ctx, cfg)
			if err != nil {
				return err
			}

			rt, err := buildRouter(cfg, clients.Backend)
			if err != nil {
				return err
			}

			srv, err := server.New(cfg, rt, clients.Credential)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	c.Flags().IntVar(&port, "port", 0, "override server port from configuration")
	return c
}

// loadConfig reads .env from the working directory when present, then the
// configuration named by --config.
func loadConfig(c *cobra.Command) (config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "err", err)
	}

	path, err := c.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}

func buildRegistry(cfg config.Config) (*provider.Registry, error) {
	registry := provider.DefaultRegistry()
	if err := registry.RegisterAliases(cfg.Models.Aliases); err != nil {
		return nil, fmt.Errorf("register model aliases: %w", err)
	}
	return registry, nil
}

// buildRouter wires everything the router needs except the backend itself.
func buildRouter(cfg config.Config, backend provider.Backend) (*router.Router, error) {
	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	prices, err := usage.NewPriceTable(cfg.Pricing.Models, cfg.Pricing.Default)
	if err != nil {
		return nil, fmt.Errorf("build price table: %w", err)
	}

	var prompt sysprompt.Source = sysprompt.Static(sysprompt.Default)
	if cfg.SystemPrompt.File != "" {
		prompt = sysprompt.NewFile(cfg.SystemPrompt.File)
	}

	rates, err := newRateSource(cfg.Currency)
	if err != nil {
		return nil, err
	}

	return router.New(registry, backend, router.Config{
		Calculator:   usage.NewCalculator(prices),
		SystemPrompt: prompt,
		Currency:     cfg.Currency.Code,
		Rates:        rates,
	})
}

func newRateSource(cfg config.CurrencyConfig) (exchange.Source, error) {
	if !cfg.Converts() {
		return nil, nil
	}
	if cfg.RateURL == "" {
		return exchange.Static(cfg.FallbackRate), nil
	}
	src, err := exchange.NewHTTP(exchange.HTTPConfig{
		URL:      cfg.RateURL,
		Path:     cfg.RatePath,
		TTL:      cfg.CacheTTL,
		Fallback: cfg.FallbackRate,
	})
	if err != nil {
		return nil, fmt.Errorf("configure exchange rate: %w", err)
	}
	return src, nil
}
