package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/keystone-dev/keystone/internal/config"
	kserrors "github.com/keystone-dev/keystone/internal/errors"
	"github.com/keystone-dev/keystone/internal/keymat"
	"github.com/keystone-dev/keystone/internal/keypool"
	"github.com/spf13/cobra"
)

func NewPoolCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Manage pre-provisioned key pools",
		Long: `Manage pools of pre-provisioned keys for secrets whose issuers
rate-limit key generation. Rotation consumes pool keys in order and
falls back to generated values when a pool runs dry.`,
	}

	cmd.AddCommand(
		newPoolInitCommand(cfg),
		newPoolAddCommand(cfg),
		newPoolListCommand(cfg),
		newPoolRemoveCommand(cfg),
		newPoolImportCommand(cfg),
		newPoolStatusCommand(cfg),
	)
	return cmd
}

func newPoolStore(cfg *config.Config) (*keypool.Store, error) {
	cipher, err := keymat.LoadCipher(cfg.BaseDir())
	if err != nil {
		return nil, err
	}
	return keypool.NewStore(filepath.Join(cfg.BaseDir(), "pools"), cipher), nil
}

// readKeysFile loads one key per line, skipping blanks and comments.
func readKeysFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keys file: %w", err)
	}

	var keys []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	return keys, nil
}

func newPoolInitCommand(cfg *config.Config) *cobra.Command {
	var (
		keysList string
		keysFile string
	)

	cmd := &cobra.Command{
		Use:   "init SECRET",
		Short: "Create a new key pool for a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := args[0]
			store, err := newPoolStore(cfg)
			if err != nil {
				return err
			}

			if store.Exists(secret) {
				return kserrors.UserError{
					Message:    fmt.Sprintf("Pool for %s already exists", secret),
					Suggestion: "Use 'keystone pool add' to add keys to it",
				}
			}

			var keys []string
			if keysList != "" {
				for _, k := range strings.Split(keysList, ",") {
					if k = strings.TrimSpace(k); k != "" {
						keys = append(keys, k)
					}
				}
			}
			if keysFile != "" {
				fromFile, err := readKeysFile(keysFile)
				if err != nil {
					return err
				}
				keys = append(keys, fromFile...)
			}

			pool := &keypool.Pool{SecretName: secret}
			for _, key := range keys {
				if err := store.AddKey(pool, key); err != nil {
					return err
				}
			}
			if err := store.Save(pool); err != nil {
				return err
			}

			cfg.Logger.Info("Pool for %s created with %d keys", secret, len(keys))
			return nil
		},
	}

	cmd.Flags().StringVar(&keysList, "keys", "", "Comma-separated list of key values")
	cmd.Flags().StringVar(&keysFile, "file", "", "File with one key per line")
	return cmd
}

func newPoolAddCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "add SECRET VALUE",
		Short: "Add a key to a pool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newPoolStore(cfg)
			if err != nil {
				return err
			}

			pool, err := store.Load(args[0])
			if err != nil {
				return err
			}
			if err := store.AddKey(pool, args[1]); err != nil {
				return err
			}
			if err := store.Save(pool); err != nil {
				return err
			}

			cfg.Logger.Info("Key added to pool for %s (%d keys total)", args[0], len(pool.Keys))
			return nil
		},
	}
}

func newPoolListCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list SECRET",
		Short: "List the keys in a pool, masked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newPoolStore(cfg)
			if err != nil {
				return err
			}

			pool, err := store.Load(args[0])
			if err != nil {
				return err
			}
			infos, err := store.ListKeys(pool)
			if err != nil {
				return err
			}

			if len(infos) == 0 {
				fmt.Println("Pool is empty")
				return nil
			}

			fmt.Printf("%-6s %-10s %-10s %-6s %s\n", "INDEX", "PREVIEW", "STATUS", "USES", "LAST USED")
			for _, info := range infos {
				lastUsed := "-"
				if info.LastUsed != nil {
					lastUsed = info.LastUsed.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%-6d %-10s %-10s %-6d %s\n",
					info.Index, info.Preview, info.Status, info.UsageCount, lastUsed)
			}
			return nil
		},
	}
}

func newPoolRemoveCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "remove SECRET INDEX",
		Short: "Remove a key from a pool by index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return kserrors.UserError{
					Message:    fmt.Sprintf("Invalid key index '%s'", args[1]),
					Suggestion: "Use 'keystone pool list' to see key indexes",
				}
			}

			store, err := newPoolStore(cfg)
			if err != nil {
				return err
			}
			pool, err := store.Load(args[0])
			if err != nil {
				return err
			}
			if err := store.RemoveKey(pool, index); err != nil {
				return err
			}
			if err := store.Save(pool); err != nil {
				return err
			}

			cfg.Logger.Info("Key %d removed from pool for %s", index, args[0])
			return nil
		},
	}
}

func newPoolImportCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import SECRET FILE",
		Short: "Import keys from a file into a pool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := readKeysFile(args[1])
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				return kserrors.UserError{
					Message:    "No keys found in file",
					Suggestion: "The file must have one key per line; blank lines and # comments are skipped",
				}
			}

			store, err := newPoolStore(cfg)
			if err != nil {
				return err
			}
			pool, err := store.Load(args[0])
			if err != nil {
				return err
			}
			for _, key := range keys {
				if err := store.AddKey(pool, key); err != nil {
					return err
				}
			}
			if err := store.Save(pool); err != nil {
				return err
			}

			cfg.Logger.Info("Imported %d keys into pool for %s", len(keys), args[0])
			return nil
		},
	}
}

func newPoolStatusCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status SECRET",
		Short: "Show pool health for a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newPoolStore(cfg)
			if err != nil {
				return err
			}
			pool, err := store.Load(args[0])
			if err != nil {
				return err
			}

			available, active, exhausted := pool.CountByStatus()
			fmt.Printf("Pool for %s:\n", args[0])
			fmt.Printf("  Available: %d\n", available)
			fmt.Printf("  Active:    %d\n", active)
			fmt.Printf("  Exhausted: %d\n", exhausted)
			if pool.LastRotation != nil {
				fmt.Printf("  Last rotation: %s\n", pool.LastRotation.Format("2006-01-02 15:04:05"))
			}

			if available <= 2 {
				cfg.Logger.Warn("Only %d keys available, provision more soon", available)
			}
			return nil
		},
	}
}
