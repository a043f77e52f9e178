package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/logging"
)

const defaultFlyBaseURL = "https://api.fly.io/graphql"

// Fly updates app secrets through the Fly.io GraphQL API. Setting a
// secret already restarts the app's machines, so TriggerRefresh is a
// no-op, and secret values are never readable back.
type Fly struct {
	token   string
	appName string
	baseURL string
	client  *http.Client
	logger  *logging.Logger
}

// NewFly creates a Fly connector. The target app comes from FLY_APP_NAME.
func NewFly(token string, logger *logging.Logger) *Fly {
	return &Fly{
		token:   token,
		appName: os.Getenv("FLY_APP_NAME"),
		baseURL: defaultFlyBaseURL,
		client:  newHTTPClient(),
		logger:  logger,
	}
}

func (f *Fly) Name() string { return "fly" }

// UpdateSecret runs the setSecrets mutation for the app.
func (f *Fly) UpdateSecret(ctx context.Context, name, value string) error {
	if err := f.checkConfig(); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{
		"query": `mutation($appId: ID!, $secrets: [SecretInput!]!) {
			setSecrets(input: {appId: $appId, secrets: $secrets}) {
				release { id }
			}
		}`,
		"variables": map[string]any{
			"appId": f.appName,
			"secrets": []map[string]string{
				{"key": name, "value": value},
			},
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return &kserrors.ProviderError{Provider: "fly", Operation: "update secret", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return providerHTTPError("fly", "update secret", resp)
	}

	var payload struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("failed to parse Fly response: %w", err)
	}
	if len(payload.Errors) > 0 {
		return &kserrors.ProviderError{
			Provider:  "fly",
			Operation: "update secret",
			Body:      payload.Errors[0].Message,
		}
	}
	f.logger.Debug("Fly secret %s updated", name)
	return nil
}

// GetSecret is unsupported: Fly secrets are write-only.
func (f *Fly) GetSecret(ctx context.Context, name string) (string, error) {
	return "", &kserrors.NotReadableError{
		Provider: "fly",
		Reason:   "Fly.io secrets are write-only",
	}
}

// TriggerRefresh is a no-op: setSecrets already triggers a release.
func (f *Fly) TriggerRefresh(ctx context.Context) error {
	f.logger.Info("Fly.io restarts machines when secrets change, no refresh needed")
	return nil
}

func (f *Fly) checkConfig() error {
	if f.token == "" {
		return kserrors.UserError{
			Message:    "Fly token not configured",
			Suggestion: "Set the FLY_API_TOKEN environment variable",
		}
	}
	if f.appName == "" {
		return kserrors.UserError{
			Message:    "Fly app not configured",
			Suggestion: "Set the FLY_APP_NAME environment variable",
		}
	}
	return nil
}
