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

const defaultRenderBaseURL = "https://api.render.com/v1"

// Render updates service environment variables through the Render API.
type Render struct {
	apiKey    string
	serviceID string
	baseURL   string
	client    *http.Client
	logger    *logging.Logger
}

// NewRender creates a Render connector. The target service comes from
// RENDER_SERVICE_ID.
func NewRender(apiKey string, logger *logging.Logger) *Render {
	return &Render{
		apiKey:    apiKey,
		serviceID: os.Getenv("RENDER_SERVICE_ID"),
		baseURL:   defaultRenderBaseURL,
		client:    newHTTPClient(),
		logger:    logger,
	}
}

func (r *Render) Name() string { return "render" }

// UpdateSecret upserts the env var on the service.
func (r *Render) UpdateSecret(ctx context.Context, name, value string) error {
	if err := r.checkConfig(); err != nil {
		return err
	}

	body, err := json.Marshal([]map[string]string{
		{"key": name, "value": value},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/services/%s/env-vars", r.baseURL, r.serviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return &kserrors.ProviderError{Provider: "render", Operation: "update secret", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return providerHTTPError("render", "update secret", resp)
	}
	r.logger.Debug("Render env var %s updated", name)
	return nil
}

// GetSecret reads the current value from the service's env var list.
func (r *Render) GetSecret(ctx context.Context, name string) (string, error) {
	if err := r.checkConfig(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/services/%s/env-vars", r.baseURL, r.serviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &kserrors.ProviderError{Provider: "render", Operation: "get secret", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", providerHTTPError("render", "get secret", resp)
	}

	var payload []struct {
		EnvVar struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"envVar"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to parse Render response: %w", err)
	}

	for _, item := range payload {
		if item.EnvVar.Key == name {
			return item.EnvVar.Value, nil
		}
	}
	return "", fmt.Errorf("env var %s not found in Render service", name)
}

// TriggerRefresh starts a new deploy of the service.
func (r *Render) TriggerRefresh(ctx context.Context) error {
	if err := r.checkConfig(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/services/%s/deploys", r.baseURL, r.serviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return &kserrors.ProviderError{Provider: "render", Operation: "trigger deploy", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return providerHTTPError("render", "trigger deploy", resp)
	}
	r.logger.Info("Render deploy triggered")
	return nil
}

func (r *Render) checkConfig() error {
	if r.apiKey == "" {
		return kserrors.UserError{
			Message:    "Render API key not configured",
			Suggestion: "Set the RENDER_API_KEY environment variable",
		}
	}
	if r.serviceID == "" {
		return kserrors.UserError{
			Message:    "Render service not configured",
			Suggestion: "Set the RENDER_SERVICE_ID environment variable",
		}
	}
	return nil
}
