package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/keystone-dev/keystone/internal/config"
	"github.com/keystone-dev/keystone/internal/daemon"
	"github.com/keystone-dev/keystone/internal/rotation"
	"github.com/spf13/cobra"
)

func NewDaemonCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the background rotation listener",
		Long: `Manage the keystone daemon, an HTTP listener that accepts rotation
signals from services (for example when they detect a leaked or
rate-limited key) and rotates the affected secret in the background.`,
	}

	cmd.AddCommand(
		newDaemonStartCommand(cfg),
		newDaemonStopCommand(cfg),
		newDaemonStatusCommand(cfg),
		newDaemonRunCommand(cfg),
	)
	return cmd
}

func newDaemonStartCommand(cfg *config.Config) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bind == "" {
				bind = cfg.DaemonBind
			}
			supervisor := daemon.NewSupervisor(cfg.BaseDir(), cfg.Logger)
			return supervisor.Start(bind)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Address to listen on (default from config)")
	return cmd
}

func newDaemonStopCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			supervisor := daemon.NewSupervisor(cfg.BaseDir(), cfg.Logger)
			return supervisor.Stop()
		},
	}
}

func newDaemonStatusCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			supervisor := daemon.NewSupervisor(cfg.BaseDir(), cfg.Logger)
			if pid, running := supervisor.Status(); running {
				fmt.Printf("Daemon running with PID %d\n", pid)
			} else {
				fmt.Println("Daemon is not running")
			}
			return nil
		},
	}
}

// newDaemonRunCommand is the hidden foreground process that 'daemon
// start' spawns.
func newDaemonRunCommand(cfg *config.Config) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:    "run",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bind != "" {
				cfg.DaemonBind = bind
			}

			engine, err := rotation.New(cfg, cfg.Logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := daemon.NewServer(cfg, cfg.Logger, engine)
			return server.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Address to listen on")
	return cmd
}
