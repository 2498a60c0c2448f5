package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinitepi-io/chatrix/internal/config"
	"github.com/infinitepi-io/chatrix/internal/secrets"
)

func TestCredentialSourcePrefersStaticKey(t *testing.T) {
	called := false
	src, err := newCredentialSource(config.AuthConfig{APIKey: "local", SecretName: "ignored"}, func() secrets.SecretValueAPI {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)

	key, err := src.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local", key)
}

func TestCredentialSourceRequiresSecretName(t *testing.T) {
	_, err := newCredentialSource(config.AuthConfig{}, func() secrets.SecretValueAPI {
		return nil
	})
	assert.Error(t, err)
}

func TestLoadAWSConfigRequiresRegion(t *testing.T) {
	_, err := loadAWSConfig(context.Background(), config.AWSConfig{})
	assert.Error(t, err)
}

func TestNewHTTPClientHasNoOverallTimeout(t *testing.T) {
	client := newHTTPClient()
	assert.Zero(t, client.Timeout)
	assert.NotNil(t, client.Transport)
}
