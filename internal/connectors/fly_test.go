package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFly(t *testing.T, handler http.Handler) *Fly {
	t.Helper()
	t.Setenv("FLY_APP_NAME", "my-app")
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	f := NewFly("test-token", testLogger())
	f.baseURL = server.URL
	return f
}

func TestFlyUpdateSecret(t *testing.T) {
	var captured struct {
		Query     string `json:"query"`
		Variables struct {
			AppID   string              `json:"appId"`
			Secrets []map[string]string `json:"secrets"`
		} `json:"variables"`
	}
	f := newTestFly(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"data":{"setSecrets":{"release":{"id":"rel_1"}}}}`))
	}))

	require.NoError(t, f.UpdateSecret(context.Background(), "API_KEY", "new-value"))
	assert.Contains(t, captured.Query, "setSecrets")
	assert.Equal(t, "my-app", captured.Variables.AppID)
	require.Len(t, captured.Variables.Secrets, 1)
	assert.Equal(t, "API_KEY", captured.Variables.Secrets[0]["key"])
	assert.Equal(t, "new-value", captured.Variables.Secrets[0]["value"])
}

func TestFlyUpdateSecretGraphQLError(t *testing.T) {
	f := newTestFly(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"Could not find App"}]}`))
	}))

	err := f.UpdateSecret(context.Background(), "API_KEY", "value")
	var provErr *kserrors.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Contains(t, provErr.Body, "Could not find App")
}

func TestFlyGetSecretIsNotReadable(t *testing.T) {
	t.Setenv("FLY_APP_NAME", "my-app")
	f := NewFly("test-token", testLogger())

	_, err := f.GetSecret(context.Background(), "API_KEY")
	assert.True(t, kserrors.IsNotReadable(err))
}

func TestFlyTriggerRefreshIsNoop(t *testing.T) {
	t.Setenv("FLY_APP_NAME", "my-app")
	f := NewFly("test-token", testLogger())

	assert.NoError(t, f.TriggerRefresh(context.Background()))
}
