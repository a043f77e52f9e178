package connectors

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/keystone-dev/keystone/internal/config"
	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/logging"
)

// KeyVaultClientAPI defines the interface for Azure Key Vault operations.
// This allows for mocking in tests.
type KeyVaultClientAPI interface {
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// Azure stores rotated values in Azure Key Vault.
type Azure struct {
	client    KeyVaultClientAPI
	vaultName string
	logger    *logging.Logger
}

// AzureOption is a functional option for configuring the Azure connector.
type AzureOption func(*Azure)

// WithKeyVaultClient sets a custom Key Vault client (for testing).
func WithKeyVaultClient(client KeyVaultClientAPI) AzureOption {
	return func(a *Azure) {
		a.client = client
	}
}

// NewAzure creates an Azure connector from the configured credentials.
func NewAzure(auth config.ConnectorAuth, logger *logging.Logger, opts ...AzureOption) (*Azure, error) {
	if auth.AzureVaultName == "" {
		return nil, kserrors.ConfigError{
			Message:    "Azure Key Vault not configured",
			Suggestion: "Set the AZURE_VAULT_NAME environment variable",
		}
	}

	a := &Azure{vaultName: auth.AzureVaultName, logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	if a.client == nil {
		cred, err := azureCredential(auth)
		if err != nil {
			return nil, err
		}
		vaultURL := fmt.Sprintf("https://%s.vault.azure.net/", auth.AzureVaultName)
		client, err := azsecrets.NewClient(vaultURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Key Vault client: %w", err)
		}
		a.client = client
	}

	return a, nil
}

func azureCredential(auth config.ConnectorAuth) (*azidentity.ClientSecretCredential, error) {
	if auth.AzureClientID == "" || auth.AzureClientSecret == "" || auth.AzureTenantID == "" {
		return nil, kserrors.ConfigError{
			Message:    "Azure credentials not configured",
			Suggestion: "Set the AZURE_CLIENT_ID, AZURE_CLIENT_SECRET and AZURE_TENANT_ID environment variables",
		}
	}
	cred, err := azidentity.NewClientSecretCredential(auth.AzureTenantID, auth.AzureClientID, auth.AzureClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return cred, nil
}

func (a *Azure) Name() string { return "azure" }

// UpdateSecret sets a new version of the secret in the vault.
func (a *Azure) UpdateSecret(ctx context.Context, name, value string) error {
	params := azsecrets.SetSecretParameters{Value: &value}
	resp, err := a.client.SetSecret(ctx, name, params, nil)
	if err != nil {
		return &kserrors.ProviderError{Provider: "azure", Operation: "update secret", Err: err}
	}
	if resp.ID != nil {
		a.logger.Debug("Azure Key Vault secret %s updated", resp.ID.Name())
	}
	return nil
}

// GetSecret returns the latest version of the secret.
func (a *Azure) GetSecret(ctx context.Context, name string) (string, error) {
	resp, err := a.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return "", &kserrors.ProviderError{Provider: "azure", Operation: "get secret", Err: err}
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret %s has no value", name)
	}
	return *resp.Value, nil
}

// TriggerRefresh is a no-op: consumers read Key Vault directly.
func (a *Azure) TriggerRefresh(ctx context.Context) error {
	a.logger.Info("Azure Key Vault consumers fetch new versions on read, no refresh needed")
	return nil
}
