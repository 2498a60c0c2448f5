package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	secret string
	err    error
	calls  int
	lastID string
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	f.lastID = aws.ToString(params.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.secret)}, nil
}

func TestSecretsManagerCachesKey(t *testing.T) {
	api := &fakeSecrets{secret: `{"api_key":"sk-test"}`}
	src, err := NewSecretsManager(api, "chatrix/api-key")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		key, err := src.Credential(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "sk-test", key)
	}
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, "chatrix/api-key", api.lastID)
}

func TestSecretsManagerErrors(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeSecrets
	}{
		{name: "fetch error", api: &fakeSecrets{err: errors.New("access denied")}},
		{name: "not json", api: &fakeSecrets{secret: "plain"}},
		{name: "missing field", api: &fakeSecrets{secret: `{"other":"x"}`}},
		{name: "blank key", api: &fakeSecrets{secret: `{"api_key":"  "}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewSecretsManager(tt.api, "s")
			require.NoError(t, err)

			_, err = src.Credential(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnavailable))
		})
	}
}

func TestSecretsManagerRetriesAfterFailure(t *testing.T) {
	api := &fakeSecrets{err: errors.New("timeout")}
	src, err := NewSecretsManager(api, "s")
	require.NoError(t, err)

	_, err = src.Credential(context.Background())
	require.Error(t, err)

	api.err = nil
	api.secret = `{"api_key":"later"}`
	key, err := src.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "later", key)
	assert.Equal(t, 2, api.calls)
}

func TestNewSecretsManagerValidates(t *testing.T) {
	_, err := NewSecretsManager(nil, "s")
	assert.Error(t, err)
	_, err = NewSecretsManager(&fakeSecrets{}, " ")
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	key, err := Static("abc").Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", key)

	_, err = Static("").Credential(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
}
