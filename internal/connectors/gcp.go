package connectors

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/keystone-dev/keystone/internal/config"
	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/logging"
	"google.golang.org/api/option"
)

// SecretManagerClientAPI defines the interface for Google Secret Manager
// operations. This allows for mocking in tests.
type SecretManagerClientAPI interface {
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error)
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GCP stores rotated values in Google Secret Manager.
type GCP struct {
	client    SecretManagerClientAPI
	projectID string
	logger    *logging.Logger
}

// GCPOption is a functional option for configuring the GCP connector.
type GCPOption func(*GCP)

// WithSecretManagerClient sets a custom Secret Manager client (for testing).
func WithSecretManagerClient(client SecretManagerClientAPI) GCPOption {
	return func(g *GCP) {
		g.client = client
	}
}

// NewGCP creates a GCP connector from the configured credentials.
func NewGCP(auth config.ConnectorAuth, logger *logging.Logger, opts ...GCPOption) (*GCP, error) {
	if auth.GCPProjectID == "" {
		return nil, kserrors.ConfigError{
			Message:    "GCP project not configured",
			Suggestion: "Set the GCP_PROJECT_ID environment variable",
		}
	}

	g := &GCP{projectID: auth.GCPProjectID, logger: logger}
	for _, opt := range opts {
		opt(g)
	}

	if g.client == nil {
		var clientOpts []option.ClientOption
		if auth.GCPCredentialsPath != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(auth.GCPCredentialsPath))
		}
		client, err := secretmanager.NewClient(context.Background(), clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
		}
		g.client = client
	}

	return g, nil
}

func (g *GCP) Name() string { return "gcp" }

// UpdateSecret adds a new version of the secret.
func (g *GCP) UpdateSecret(ctx context.Context, name, value string) error {
	req := &secretmanagerpb.AddSecretVersionRequest{
		Parent: fmt.Sprintf("projects/%s/secrets/%s", g.projectID, name),
		Payload: &secretmanagerpb.SecretPayload{
			Data: []byte(value),
		},
	}

	version, err := g.client.AddSecretVersion(ctx, req)
	if err != nil {
		return &kserrors.ProviderError{Provider: "gcp", Operation: "update secret", Err: err}
	}
	g.logger.Debug("GCP secret version %s created", version.GetName())
	return nil
}

// GetSecret returns the latest version of the secret.
func (g *GCP) GetSecret(ctx context.Context, name string) (string, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", g.projectID, name),
	}

	resp, err := g.client.AccessSecretVersion(ctx, req)
	if err != nil {
		return "", &kserrors.ProviderError{Provider: "gcp", Operation: "get secret", Err: err}
	}
	return string(resp.GetPayload().GetData()), nil
}

// TriggerRefresh is a no-op: consumers read Secret Manager directly.
func (g *GCP) TriggerRefresh(ctx context.Context) error {
	g.logger.Info("GCP Secret Manager consumers fetch new versions on read, no refresh needed")
	return nil
}
