package commands

import (
	"github.com/keystone-dev/keystone/internal/config"
	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/rotation"
	"github.com/spf13/cobra"
)

func NewRotateCommand(cfg *config.Config, dryRun *bool) *cobra.Command {
	var (
		envName    string
		service    string
		value      string
		envFile    string
		redeploy   bool
		fromSignal bool
	)

	cmd := &cobra.Command{
		Use:   "rotate SECRET",
		Short: "Rotate a secret to a new value",
		Long: `Rotate a secret to a new value and push it to its destination.

The new value comes from --value if given, otherwise from the secret's
key pool, otherwise a random value is generated. In the dev environment
the local .env file is updated; elsewhere the value is pushed to the
hosting provider named by --service.

Examples:
  # Rotate with a generated value in dev
  keystone rotate API_KEY --env dev

  # Rotate in production on Vercel and redeploy
  keystone rotate API_KEY --env production --service vercel --redeploy

  # Rotate to a specific value
  keystone rotate API_KEY --env production --service aws --value "$NEW_KEY"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return kserrors.UserError{
					Message:    "Secret name is required",
					Suggestion: "Pass the secret name, e.g. keystone rotate API_KEY --env production",
				}
			}

			engine, err := newEngine(cfg, *dryRun)
			if err != nil {
				return err
			}

			return engine.Rotate(cmd.Context(), rotation.RotateOptions{
				Secret:     args[0],
				Env:        envName,
				Service:    service,
				Value:      value,
				EnvFile:    envFile,
				Redeploy:   redeploy,
				FromSignal: fromSignal,
			})
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "Target environment (dev, staging, production)")
	cmd.Flags().StringVar(&service, "service", "", "Hosting provider for non-dev environments")
	cmd.Flags().StringVar(&value, "value", "", "Explicit new value instead of pool or generated")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Dotenv file to update in dev (default .env)")
	cmd.Flags().BoolVar(&redeploy, "redeploy", false, "Trigger a redeploy after updating")
	cmd.Flags().BoolVar(&fromSignal, "from-signal", false, "Skip confirmation prompts (signal-driven rotation)")

	return cmd
}
