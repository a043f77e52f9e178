package connectors

import (
	"context"
	"fmt"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/keystone-dev/keystone/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretManagerClient struct {
	versions map[string][]byte
	lastAdd  *secretmanagerpb.AddSecretVersionRequest
}

func (f *fakeSecretManagerClient) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error) {
	f.lastAdd = req
	f.versions[req.Parent] = req.Payload.Data
	return &secretmanagerpb.SecretVersion{Name: req.Parent + "/versions/2"}, nil
}

func (f *fakeSecretManagerClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	for parent, data := range f.versions {
		if req.Name == parent+"/versions/latest" {
			return &secretmanagerpb.AccessSecretVersionResponse{
				Name:    req.Name,
				Payload: &secretmanagerpb.SecretPayload{Data: data},
			}, nil
		}
	}
	return nil, fmt.Errorf("secret version not found: %s", req.Name)
}

func newTestGCP(t *testing.T, fake *fakeSecretManagerClient) *GCP {
	t.Helper()
	auth := config.ConnectorAuth{GCPProjectID: "my-project"}
	connector, err := NewGCP(auth, testLogger(), WithSecretManagerClient(fake))
	require.NoError(t, err)
	return connector
}

func TestGCPUpdateSecret(t *testing.T) {
	fake := &fakeSecretManagerClient{versions: map[string][]byte{}}
	connector := newTestGCP(t, fake)

	require.NoError(t, connector.UpdateSecret(context.Background(), "API_KEY", "new-value"))
	require.NotNil(t, fake.lastAdd)
	assert.Equal(t, "projects/my-project/secrets/API_KEY", fake.lastAdd.Parent)
	assert.Equal(t, []byte("new-value"), fake.lastAdd.Payload.Data)
}

func TestGCPGetSecret(t *testing.T) {
	fake := &fakeSecretManagerClient{versions: map[string][]byte{
		"projects/my-project/secrets/API_KEY": []byte("current"),
	}}
	connector := newTestGCP(t, fake)

	value, err := connector.GetSecret(context.Background(), "API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "current", value)
}

func TestGCPRequiresProjectID(t *testing.T) {
	_, err := NewGCP(config.ConnectorAuth{}, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GCP project not configured")
}

func TestGCPTriggerRefreshIsNoop(t *testing.T) {
	fake := &fakeSecretManagerClient{versions: map[string][]byte{}}
	connector := newTestGCP(t, fake)

	assert.NoError(t, connector.TriggerRefresh(context.Background()))
}
