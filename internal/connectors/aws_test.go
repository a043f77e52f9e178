package connectors

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/keystone-dev/keystone/internal/config"
	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsManagerClient struct {
	secrets map[string]string
	err     error
}

func (f *fakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	value, ok := f.secrets[aws.ToString(params.SecretId)]
	if !ok {
		return nil, &types.ResourceNotFoundException{}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(value)}, nil
}

func (f *fakeSecretsManagerClient) UpdateSecret(ctx context.Context, params *secretsmanager.UpdateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.secrets[aws.ToString(params.SecretId)] = aws.ToString(params.SecretString)
	return &secretsmanager.UpdateSecretOutput{VersionId: aws.String("v2")}, nil
}

func newTestAWS(t *testing.T, fake *fakeSecretsManagerClient) *AWS {
	t.Helper()
	auth := config.ConnectorAuth{AWSRegion: "us-east-1"}
	connector, err := NewAWS(auth, testLogger(), WithSecretsManagerClient(fake))
	require.NoError(t, err)
	return connector
}

func TestAWSUpdateSecret(t *testing.T) {
	fake := &fakeSecretsManagerClient{secrets: map[string]string{"API_KEY": "old"}}
	connector := newTestAWS(t, fake)

	require.NoError(t, connector.UpdateSecret(context.Background(), "API_KEY", "new-value"))
	assert.Equal(t, "new-value", fake.secrets["API_KEY"])
}

func TestAWSGetSecret(t *testing.T) {
	fake := &fakeSecretsManagerClient{secrets: map[string]string{"API_KEY": "current"}}
	connector := newTestAWS(t, fake)

	value, err := connector.GetSecret(context.Background(), "API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "current", value)
}

func TestAWSGetSecretNotFound(t *testing.T) {
	fake := &fakeSecretsManagerClient{secrets: map[string]string{}}
	connector := newTestAWS(t, fake)

	_, err := connector.GetSecret(context.Background(), "MISSING")
	var provErr *kserrors.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "aws", provErr.Provider)
	assert.Contains(t, provErr.Body, "not found")
}

func TestAWSTriggerRefreshIsNoop(t *testing.T) {
	fake := &fakeSecretsManagerClient{secrets: map[string]string{}}
	connector := newTestAWS(t, fake)

	assert.NoError(t, connector.TriggerRefresh(context.Background()))
}
