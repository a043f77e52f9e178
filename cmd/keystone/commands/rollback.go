package commands

import (
	"github.com/keystone-dev/keystone/internal/config"
	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/rotation"
	"github.com/spf13/cobra"
)

func NewRollbackCommand(cfg *config.Config, dryRun *bool) *cobra.Command {
	var (
		envName  string
		service  string
		envFile  string
		redeploy bool
	)

	cmd := &cobra.Command{
		Use:   "rollback SECRET",
		Short: "Restore a secret to its previous value",
		Long: `Restore a secret to the value it held before the last rotation.

The previous value is recovered from the encrypted audit log, which
needs at least two successful rotations on record. Rolling back after
the rollback window has passed asks for confirmation first.

Examples:
  keystone rollback API_KEY --env production --service vercel
  keystone rollback API_KEY --env dev`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if envName == "" {
				return kserrors.UserError{
					Message:    "Environment name is required",
					Suggestion: "Use --env <environment-name> to specify an environment",
				}
			}

			engine, err := newEngine(cfg, *dryRun)
			if err != nil {
				return err
			}

			return engine.Rollback(cmd.Context(), rotation.RollbackOptions{
				Secret:   args[0],
				Env:      envName,
				Service:  service,
				EnvFile:  envFile,
				Redeploy: redeploy,
			})
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "Target environment (dev, staging, production)")
	cmd.Flags().StringVar(&service, "service", "", "Hosting provider for non-dev environments")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Dotenv file to update in dev (default .env)")
	cmd.Flags().BoolVar(&redeploy, "redeploy", false, "Trigger a redeploy after restoring")

	return cmd
}
