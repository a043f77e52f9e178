package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/logging"
)

const defaultVercelBaseURL = "https://api.vercel.com"

// Vercel updates project environment variables through the Vercel API.
type Vercel struct {
	token     string
	projectID string
	baseURL   string
	client    *http.Client
	logger    *logging.Logger
}

// NewVercel creates a Vercel connector. The target project comes from
// VERCEL_PROJECT_ID.
func NewVercel(token string, logger *logging.Logger) *Vercel {
	return &Vercel{
		token:     token,
		projectID: os.Getenv("VERCEL_PROJECT_ID"),
		baseURL:   defaultVercelBaseURL,
		client:    newHTTPClient(),
		logger:    logger,
	}
}

func (v *Vercel) Name() string { return "vercel" }

// UpdateSecret creates an encrypted env var targeting production.
func (v *Vercel) UpdateSecret(ctx context.Context, name, value string) error {
	if err := v.checkConfig(); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{
		"key":    name,
		"value":  value,
		"type":   "encrypted",
		"target": []string{"production"},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v10/projects/%s/env", v.baseURL, v.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	v.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return &kserrors.ProviderError{Provider: "vercel", Operation: "update secret", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return providerHTTPError("vercel", "update secret", resp)
	}
	v.logger.Debug("Vercel env var %s updated", name)
	return nil
}

// GetSecret reads the current value from the project's env var list.
func (v *Vercel) GetSecret(ctx context.Context, name string) (string, error) {
	if err := v.checkConfig(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v9/projects/%s/env", v.baseURL, v.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	v.authorize(req)

	resp, err := v.client.Do(req)
	if err != nil {
		return "", &kserrors.ProviderError{Provider: "vercel", Operation: "get secret", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", providerHTTPError("vercel", "get secret", resp)
	}

	var payload struct {
		Envs []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"envs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to parse Vercel response: %w", err)
	}

	for _, env := range payload.Envs {
		if env.Key == name {
			return env.Value, nil
		}
	}
	return "", fmt.Errorf("env var %s not found in Vercel project", name)
}

// TriggerRefresh starts a new production deployment.
func (v *Vercel) TriggerRefresh(ctx context.Context) error {
	if err := v.checkConfig(); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{
		"name":   v.projectID,
		"target": "production",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/v13/deployments", bytes.NewReader(body))
	if err != nil {
		return err
	}
	v.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return &kserrors.ProviderError{Provider: "vercel", Operation: "trigger deployment", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return providerHTTPError("vercel", "trigger deployment", resp)
	}
	v.logger.Info("Vercel production deployment triggered")
	return nil
}

func (v *Vercel) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+v.token)
}

func (v *Vercel) checkConfig() error {
	if v.token == "" {
		return kserrors.UserError{
			Message:    "Vercel token not configured",
			Suggestion: "Set the VERCEL_TOKEN environment variable",
		}
	}
	if v.projectID == "" {
		return kserrors.UserError{
			Message:    "Vercel project not configured",
			Suggestion: "Set the VERCEL_PROJECT_ID environment variable",
		}
	}
	return nil
}

// providerHTTPError drains the response body into a ProviderError.
func providerHTTPError(provider, operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &kserrors.ProviderError{
		Provider:   provider,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}
