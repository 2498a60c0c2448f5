// Package secrets loads the gateway's API credential from AWS Secrets
// Manager and keeps it cached for the life of the process.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/tidwall/gjson"

	"github.com/infinitepi-io/chatrix/internal/cache"
)

// ErrUnavailable is returned when the credential cannot be loaded.
var ErrUnavailable = errors.New("authentication configuration error")

// apiKeyField is the JSON field of the secret that holds the key.
const apiKeyField = "api_key"

// SecretValueAPI is the subset of the Secrets Manager client used here.
type SecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Source yields the credential clients must present.
type Source interface {
	Credential(ctx context.Context) (string, error)
}

// SecretsManager reads a JSON secret of the form {"api_key": "..."}.
type SecretsManager struct {
	api   SecretValueAPI
	name  string
	value *cache.Value[string]
}

// NewSecretsManager returns a source that fetches secretName on first use.
func NewSecretsManager(api SecretValueAPI, secretName string) (*SecretsManager, error) {
	if api == nil {
		return nil, errors.New("secrets manager client must not be nil")
	}
	if strings.TrimSpace(secretName) == "" {
		return nil, errors.New("secret name must not be empty")
	}

	s := &SecretsManager{api: api, name: secretName}
	s.value = cache.New(s.fetch, 0)
	return s, nil
}

// Credential returns the cached key, loading it if needed.
func (s *SecretsManager) Credential(ctx context.Context) (string, error) {
	return s.value.Get(ctx)
}

func (s *SecretsManager) fetch(ctx context.Context) (string, error) {
	slog.Info("fetching api key from secrets manager", "secret_name", s.name)

	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.name),
	})
	if err != nil {
		slog.Error("failed to fetch api key from secrets manager", "secret_name", s.name, "err", err)
		return "", fmt.Errorf("%w: get secret %q: %w", ErrUnavailable, s.name, err)
	}

	raw := aws.ToString(out.SecretString)
	if !gjson.Valid(raw) {
		return "", fmt.Errorf("%w: secret %q is not valid JSON", ErrUnavailable, s.name)
	}
	key := strings.TrimSpace(gjson.Get(raw, apiKeyField).String())
	if key == "" {
		return "", fmt.Errorf("%w: secret %q has no %s field", ErrUnavailable, s.name, apiKeyField)
	}

	slog.Info("api key loaded successfully", "secret_name", s.name)
	return key, nil
}

// Static is a fixed credential, used for local development.
type Static string

func (s Static) Credential(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%w: no api key configured", ErrUnavailable)
	}
	return string(s), nil
}
