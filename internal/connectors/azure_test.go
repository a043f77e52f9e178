package connectors

import (
	"context"
	"fmt"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/keystone-dev/keystone/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeyVaultClient struct {
	secrets map[string]string
}

func (f *fakeKeyVaultClient) SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error) {
	if parameters.Value == nil {
		return azsecrets.SetSecretResponse{}, fmt.Errorf("missing value")
	}
	f.secrets[name] = *parameters.Value
	id := azsecrets.ID(fmt.Sprintf("https://vault.vault.azure.net/secrets/%s/abc123", name))
	return azsecrets.SetSecretResponse{Secret: azsecrets.Secret{ID: &id}}, nil
}

func (f *fakeKeyVaultClient) GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	value, ok := f.secrets[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, fmt.Errorf("secret not found: %s", name)
	}
	return azsecrets.GetSecretResponse{Secret: azsecrets.Secret{Value: &value}}, nil
}

func newTestAzure(t *testing.T, fake *fakeKeyVaultClient) *Azure {
	t.Helper()
	auth := config.ConnectorAuth{AzureVaultName: "my-vault"}
	connector, err := NewAzure(auth, testLogger(), WithKeyVaultClient(fake))
	require.NoError(t, err)
	return connector
}

func TestAzureUpdateSecret(t *testing.T) {
	fake := &fakeKeyVaultClient{secrets: map[string]string{}}
	connector := newTestAzure(t, fake)

	require.NoError(t, connector.UpdateSecret(context.Background(), "API-KEY", "new-value"))
	assert.Equal(t, "new-value", fake.secrets["API-KEY"])
}

func TestAzureGetSecret(t *testing.T) {
	fake := &fakeKeyVaultClient{secrets: map[string]string{"API-KEY": "current"}}
	connector := newTestAzure(t, fake)

	value, err := connector.GetSecret(context.Background(), "API-KEY")
	require.NoError(t, err)
	assert.Equal(t, "current", value)
}

func TestAzureRequiresVaultName(t *testing.T) {
	_, err := NewAzure(config.ConnectorAuth{}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Azure Key Vault not configured")
}

func TestAzureTriggerRefreshIsNoop(t *testing.T) {
	fake := &fakeKeyVaultClient{secrets: map[string]string{}}
	connector := newTestAzure(t, fake)

	assert.NoError(t, connector.TriggerRefresh(context.Background()))
}
