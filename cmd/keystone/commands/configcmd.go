package commands

import (
	"fmt"
	"os"

	"github.com/keystone-dev/keystone/internal/config"
	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewConfigCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize configuration",
	}

	cmd.AddCommand(
		newConfigShowCommand(cfg),
		newConfigInitCommand(cfg),
	)
	return cmd
}

func newConfigShowCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Tokens stay out of the output; only their presence is shown.
			shown := *cfg
			shown.ConnectorAuth = config.ConnectorAuth{}

			data, err := yaml.Marshal(&shown)
			if err != nil {
				return err
			}
			fmt.Printf("# %s\n%s", config.Path(), data)

			auth := cfg.ConnectorAuth
			for name, set := range map[string]bool{
				"vercel":     auth.VercelToken != "",
				"netlify":    auth.NetlifyAuthToken != "",
				"render":     auth.RenderAPIKey != "",
				"cloudflare": auth.CloudflareAPIToken != "",
				"fly":        auth.FlyAPIToken != "",
				"aws":        auth.AWSAccessKeyID != "",
				"gcp":        auth.GCPProjectID != "",
				"azure":      auth.AzureVaultName != "",
			} {
				status := "not configured"
				if set {
					status = "configured"
				}
				fmt.Printf("# connector %s: %s\n", name, status)
			}
			return nil
		},
	}
}

func newConfigInitCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path()
			if _, err := os.Stat(path); err == nil {
				return kserrors.UserError{
					Message:    "Configuration file already exists at " + path,
					Suggestion: "Edit it directly, or remove it first to start over",
				}
			}

			defaults := config.Default()
			if err := defaults.Save(); err != nil {
				return err
			}
			cfg.Logger.Info("Configuration written to %s", path)
			return nil
		},
	}
}
