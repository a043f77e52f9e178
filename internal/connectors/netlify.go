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

const defaultNetlifyBaseURL = "https://api.netlify.com/api/v1"

// Netlify updates site environment variables through the Netlify API.
// Netlify never returns secret values, so GetSecret is unsupported.
type Netlify struct {
	token   string
	siteID  string
	baseURL string
	client  *http.Client
	logger  *logging.Logger
}

// NewNetlify creates a Netlify connector. The target site comes from
// NETLIFY_SITE_ID.
func NewNetlify(token string, logger *logging.Logger) *Netlify {
	return &Netlify{
		token:   token,
		siteID:  os.Getenv("NETLIFY_SITE_ID"),
		baseURL: defaultNetlifyBaseURL,
		client:  newHTTPClient(),
		logger:  logger,
	}
}

func (n *Netlify) Name() string { return "netlify" }

// UpdateSecret sets the env var for the production context.
func (n *Netlify) UpdateSecret(ctx context.Context, name, value string) error {
	if err := n.checkConfig(); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{
		"key": name,
		"values": []map[string]string{
			{"value": value, "context": "production"},
		},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/accounts/%s/env/%s", n.baseURL, n.siteID, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return &kserrors.ProviderError{Provider: "netlify", Operation: "update secret", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return providerHTTPError("netlify", "update secret", resp)
	}
	n.logger.Debug("Netlify env var %s updated", name)
	return nil
}

// GetSecret is unsupported: the Netlify API does not expose values.
func (n *Netlify) GetSecret(ctx context.Context, name string) (string, error) {
	return "", &kserrors.NotReadableError{
		Provider: "netlify",
		Reason:   "Netlify does not expose secret values via API",
	}
}

// TriggerRefresh starts a new site build.
func (n *Netlify) TriggerRefresh(ctx context.Context) error {
	if err := n.checkConfig(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/sites/%s/builds", n.baseURL, n.siteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return &kserrors.ProviderError{Provider: "netlify", Operation: "trigger build", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return providerHTTPError("netlify", "trigger build", resp)
	}
	n.logger.Info("Netlify build triggered")
	return nil
}

func (n *Netlify) checkConfig() error {
	if n.token == "" {
		return kserrors.UserError{
			Message:    "Netlify token not configured",
			Suggestion: "Set the NETLIFY_AUTH_TOKEN environment variable",
		}
	}
	if n.siteID == "" {
		return kserrors.UserError{
			Message:    "Netlify site not configured",
			Suggestion: "Set the NETLIFY_SITE_ID environment variable",
		}
	}
	return nil
}
