package factory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/infinitepi-io/chatrix/internal/config"
	"github.com/infinitepi-io/chatrix/internal/provider"
	"github.com/infinitepi-io/chatrix/internal/provider/bedrock"
	"github.com/infinitepi-io/chatrix/internal/secrets"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// Clients holds the AWS-backed collaborators built from configuration.
type Clients struct {
	Backend    provider.Backend
	Credential secrets.Source
}

// Build loads AWS configuration and constructs the Bedrock backend and the
// credential source. A static api key in config takes precedence over
// Secrets Manager.
func Build(ctx context.Context, cfg config.Config) (Clients, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return Clients{}, err
	}

	runtime := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	})
	backend, err := bedrock.New(runtime)
	if err != nil {
		return Clients{}, fmt.Errorf("initialise bedrock backend: %w", err)
	}

	credential, err := newCredentialSource(cfg.Auth, func() secrets.SecretValueAPI {
		return secretsmanager.NewFromConfig(awsCfg)
	})
	if err != nil {
		return Clients{}, err
	}

	return Clients{Backend: backend, Credential: credential}, nil
}

func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		return aws.Config{}, errors.New("aws region must not be empty")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(newHTTPClient()),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func newCredentialSource(cfg config.AuthConfig, secretsAPI func() secrets.SecretValueAPI) (secrets.Source, error) {
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		return secrets.Static(key), nil
	}

	source, err := secrets.NewSecretsManager(secretsAPI(), cfg.SecretName)
	if err != nil {
		return nil, fmt.Errorf("initialise credential source: %w", err)
	}
	return source, nil
}

// newHTTPClient has no overall timeout; streamed responses are bounded by
// the request context instead.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{Transport: transport}
}
