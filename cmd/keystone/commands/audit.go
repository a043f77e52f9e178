package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/keystone-dev/keystone/internal/audit"
	"github.com/keystone-dev/keystone/internal/config"
	"github.com/keystone-dev/keystone/internal/keymat"
	"github.com/spf13/cobra"
)

func NewAuditCommand(cfg *config.Config) *cobra.Command {
	var (
		envName    string
		last       int
		jsonOutput bool
		verify     bool
	)

	cmd := &cobra.Command{
		Use:   "audit [SECRET]",
		Short: "Show the rotation audit trail",
		Long: `Show audit log entries, newest first. Entries can be filtered by
secret name and environment, and each entry's signature can be checked
against the local signing key.

Examples:
  keystone audit
  keystone audit API_KEY --env production --last 10
  keystone audit --verify`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			material, err := keymat.Load(cfg.BaseDir())
			if err != nil {
				return err
			}
			log := audit.New(cfg.AuditLogPath, material)

			query := audit.Query{Env: envName, Last: last}
			if len(args) > 0 {
				query.Secret = args[0]
			}

			entries, err := log.Read(query)
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(entries)
			}

			if len(entries) == 0 {
				fmt.Println("No audit entries found")
				return nil
			}

			for _, entry := range entries {
				service := "-"
				if entry.Service != nil {
					service = *entry.Service
				}
				status := "ok"
				if !entry.Success {
					status = "failed"
				}
				line := fmt.Sprintf("%s  %-8s %-6s %s/%s (%s) by %s %s",
					entry.Timestamp.Format("2006-01-02 15:04:05"),
					entry.Action, status, entry.Env, entry.SecretName,
					service, entry.Actor, entry.MaskedSecretPreview)

				if verify {
					if err := log.Verify(entry); err != nil {
						line += "  [SIGNATURE INVALID]"
					} else {
						line += "  [verified]"
					}
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "Filter by environment")
	cmd.Flags().IntVar(&last, "last", 20, "Show at most this many entries")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output entries as JSON")
	cmd.Flags().BoolVar(&verify, "verify", false, "Check each entry's signature")

	return cmd
}
