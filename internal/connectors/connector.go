// Package connectors pushes rotated secret values to hosting providers.
// Each connector wraps one provider API behind a common contract so the
// rotation engine never needs provider-specific logic.
package connectors

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/keystone-dev/keystone/internal/config"
	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/logging"
)

// Connector is the contract every provider integration satisfies.
// GetSecret returns NotReadableError for providers whose secrets are
// write-only; TriggerRefresh may be an informational no-op where the
// provider picks up new values automatically.
type Connector interface {
	Name() string
	UpdateSecret(ctx context.Context, name, value string) error
	GetSecret(ctx context.Context, name string) (string, error)
	TriggerRefresh(ctx context.Context) error
}

// httpTimeout bounds every provider API call.
const httpTimeout = 30 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// ForService returns the connector for a service name. Matching is
// case-insensitive.
func ForService(service string, cfg *config.Config, logger *logging.Logger) (Connector, error) {
	switch strings.ToLower(service) {
	case "vercel":
		return NewVercel(cfg.ConnectorAuth.VercelToken, logger), nil
	case "netlify":
		return NewNetlify(cfg.ConnectorAuth.NetlifyAuthToken, logger), nil
	case "render":
		return NewRender(cfg.ConnectorAuth.RenderAPIKey, logger), nil
	case "cloudflare":
		return NewCloudflare(cfg.ConnectorAuth.CloudflareAPIToken, logger), nil
	case "fly":
		return NewFly(cfg.ConnectorAuth.FlyAPIToken, logger), nil
	case "aws":
		return NewAWS(cfg.ConnectorAuth, logger)
	case "gcp":
		return NewGCP(cfg.ConnectorAuth, logger)
	case "azure":
		return NewAzure(cfg.ConnectorAuth, logger)
	default:
		return nil, &kserrors.UnknownServiceError{Service: service}
	}
}

// KnownServices lists every service ForService accepts.
func KnownServices() []string {
	return []string{"vercel", "netlify", "render", "cloudflare", "fly", "aws", "gcp", "azure"}
}
