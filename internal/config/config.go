package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/logging"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration for the keystone CLI and daemon.
type Config struct {
	AuditLogPath          string              `yaml:"audit_log_path"`
	CooldownSeconds       int                 `yaml:"cooldown_seconds"`
	RollbackWindowSeconds int                 `yaml:"rollback_window_seconds"`
	DaemonBind            string              `yaml:"daemon_bind"`
	MaintenanceWindows    []MaintenanceWindow `yaml:"maintenance_windows,omitempty"`
	ConnectorAuth         ConnectorAuth       `yaml:"connector_auth,omitempty"`

	// Runtime state, not serialized.
	Logger         *logging.Logger `yaml:"-"`
	NonInteractive bool            `yaml:"-"`
	baseDir        string          `yaml:"-"`
}

// ConnectorAuth holds per-provider API credentials.
type ConnectorAuth struct {
	VercelToken        string `yaml:"vercel_token,omitempty"`
	NetlifyAuthToken   string `yaml:"netlify_auth_token,omitempty"`
	RenderAPIKey       string `yaml:"render_api_key,omitempty"`
	CloudflareAPIToken string `yaml:"cloudflare_api_token,omitempty"`
	FlyAPIToken        string `yaml:"fly_api_token,omitempty"`
	AWSAccessKeyID     string `yaml:"aws_access_key_id,omitempty"`
	AWSSecretAccessKey string `yaml:"aws_secret_access_key,omitempty"`
	AWSRegion          string `yaml:"aws_region,omitempty"`
	GCPCredentialsPath string `yaml:"gcp_credentials_path,omitempty"`
	GCPProjectID       string `yaml:"gcp_project_id,omitempty"`
	AzureClientID      string `yaml:"azure_client_id,omitempty"`
	AzureClientSecret  string `yaml:"azure_client_secret,omitempty"`
	AzureTenantID      string `yaml:"azure_tenant_id,omitempty"`
	AzureVaultName     string `yaml:"azure_vault_name,omitempty"`
}

// MaintenanceWindow describes a recurring window in which production
// rotations may run without extra confirmation. Hours are UTC.
type MaintenanceWindow struct {
	StartHour int      `yaml:"start_hour"`
	EndHour   int      `yaml:"end_hour"`
	Days      []string `yaml:"days"`
}

// Default returns a configuration with built-in defaults applied.
func Default() *Config {
	base := BaseDir()
	return &Config{
		AuditLogPath:          filepath.Join(base, "logs"),
		CooldownSeconds:       60,
		RollbackWindowSeconds: 3600,
		DaemonBind:            "127.0.0.1:9123",
		baseDir:               base,
	}
}

// BaseDir returns the keystone state directory. KEYSTONE_HOME overrides the
// default of ~/.keystone, which keeps tests and multi-profile setups apart.
func BaseDir() string {
	if dir := os.Getenv("KEYSTONE_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".keystone")
}

// Path returns the config file location inside the base directory.
func Path() string {
	return filepath.Join(BaseDir(), "config.yaml")
}

// Load reads the config file if present, falls back to defaults otherwise,
// and applies environment variable overrides in either case.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, kserrors.UserError{
				Message:    "Failed to read configuration file",
				Details:    err.Error(),
				Suggestion: "Check file permissions on " + Path(),
				Err:        err,
			}
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, kserrors.ConfigError{
				Message:    "invalid YAML syntax in configuration file",
				Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
			}
		}
	}

	cfg.baseDir = BaseDir()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to the config file, creating the base
// directory as needed.
func (c *Config) Save() error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// BaseDir returns the state directory this config was loaded against.
func (c *Config) BaseDir() string {
	if c.baseDir == "" {
		return BaseDir()
	}
	return c.baseDir
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KEYSTONE_AUDIT_LOG_PATH"); v != "" {
		c.AuditLogPath = v
	}
	if v := os.Getenv("KEYSTONE_COOLDOWN_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CooldownSeconds = n
		}
	}
	if v := os.Getenv("KEYSTONE_ROLLBACK_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RollbackWindowSeconds = n
		}
	}
	if v := os.Getenv("KEYSTONE_DAEMON_BIND"); v != "" {
		c.DaemonBind = v
	}

	auth := &c.ConnectorAuth
	overrides := []struct {
		env    string
		target *string
	}{
		{"VERCEL_TOKEN", &auth.VercelToken},
		{"NETLIFY_AUTH_TOKEN", &auth.NetlifyAuthToken},
		{"RENDER_API_KEY", &auth.RenderAPIKey},
		{"CLOUDFLARE_API_TOKEN", &auth.CloudflareAPIToken},
		{"FLY_API_TOKEN", &auth.FlyAPIToken},
		{"AWS_ACCESS_KEY_ID", &auth.AWSAccessKeyID},
		{"AWS_SECRET_ACCESS_KEY", &auth.AWSSecretAccessKey},
		{"AWS_REGION", &auth.AWSRegion},
		{"GOOGLE_APPLICATION_CREDENTIALS", &auth.GCPCredentialsPath},
		{"GCP_PROJECT_ID", &auth.GCPProjectID},
		{"AZURE_CLIENT_ID", &auth.AzureClientID},
		{"AZURE_CLIENT_SECRET", &auth.AzureClientSecret},
		{"AZURE_TENANT_ID", &auth.AzureTenantID},
		{"AZURE_VAULT_NAME", &auth.AzureVaultName},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}
