package main

import (
	"fmt"
	"os"

	"github.com/keystone-dev/keystone/cmd/keystone/commands"
	"github.com/keystone-dev/keystone/internal/config"
	"github.com/keystone-dev/keystone/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		noColor        bool
		debug          bool
		nonInteractive bool
		dryRun         bool
	)

	// Config placeholder filled in by PersistentPreRunE
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "keystone",
		Short: "Rotate and roll back secrets across hosting providers",
		Long: `keystone rotates API keys and other secrets across hosting providers,
keeps a signed audit trail, and can run as a daemon that accepts
rotation signals from your services.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			*cfg = *loaded
			cfg.Logger = logging.New(debug, noColor)
			cfg.NonInteractive = nonInteractive
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt, auto-approve confirmations")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Preview changes without applying them")

	rootCmd.AddCommand(
		commands.NewRotateCommand(cfg, &dryRun),
		commands.NewRollbackCommand(cfg, &dryRun),
		commands.NewPoolCommand(cfg),
		commands.NewAuditCommand(cfg),
		commands.NewDaemonCommand(cfg),
		commands.NewConfigCommand(cfg),
	)

	return rootCmd.Execute()
}
