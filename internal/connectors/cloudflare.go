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

const defaultCloudflareBaseURL = "https://api.cloudflare.com/client/v4"

// Cloudflare updates Workers secrets through the Cloudflare API.
// Worker secrets are write-only, so GetSecret is unsupported, and new
// values take effect on the next invocation without a redeploy.
type Cloudflare struct {
	token      string
	accountID  string
	workerName string
	baseURL    string
	client     *http.Client
	logger     *logging.Logger
}

// NewCloudflare creates a Cloudflare connector. The target worker comes
// from CLOUDFLARE_ACCOUNT_ID and CLOUDFLARE_WORKER_NAME.
func NewCloudflare(token string, logger *logging.Logger) *Cloudflare {
	return &Cloudflare{
		token:      token,
		accountID:  os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		workerName: os.Getenv("CLOUDFLARE_WORKER_NAME"),
		baseURL:    defaultCloudflareBaseURL,
		client:     newHTTPClient(),
		logger:     logger,
	}
}

func (c *Cloudflare) Name() string { return "cloudflare" }

// UpdateSecret sets a secret_text binding on the worker script.
func (c *Cloudflare) UpdateSecret(ctx context.Context, name, value string) error {
	if err := c.checkConfig(); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]string{
		"name": name,
		"text": value,
		"type": "secret_text",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/accounts/%s/workers/scripts/%s/secrets", c.baseURL, c.accountID, c.workerName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &kserrors.ProviderError{Provider: "cloudflare", Operation: "update secret", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return providerHTTPError("cloudflare", "update secret", resp)
	}
	c.logger.Debug("Cloudflare worker secret %s updated", name)
	return nil
}

// GetSecret is unsupported: worker secrets are write-only.
func (c *Cloudflare) GetSecret(ctx context.Context, name string) (string, error) {
	return "", &kserrors.NotReadableError{
		Provider: "cloudflare",
		Reason:   "Cloudflare Worker secrets are write-only",
	}
}

// TriggerRefresh is a no-op: workers pick up new secrets on the next
// invocation.
func (c *Cloudflare) TriggerRefresh(ctx context.Context) error {
	c.logger.Info("Cloudflare Workers apply new secrets automatically, no refresh needed")
	return nil
}

func (c *Cloudflare) checkConfig() error {
	if c.token == "" {
		return kserrors.UserError{
			Message:    "Cloudflare token not configured",
			Suggestion: "Set the CLOUDFLARE_API_TOKEN environment variable",
		}
	}
	if c.accountID == "" || c.workerName == "" {
		return kserrors.UserError{
			Message:    "Cloudflare worker not configured",
			Suggestion: "Set the CLOUDFLARE_ACCOUNT_ID and CLOUDFLARE_WORKER_NAME environment variables",
		}
	}
	return nil
}
