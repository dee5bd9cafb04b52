package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pilehq/pilebox/internal/client"
	"github.com/pilehq/pilebox/internal/client/config"
	"github.com/pilehq/pilebox/internal/version"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	var addr string
	var authToken string

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start the Pilebox sync daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			showPileboxHeader()
			slog.Info("pilebox", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flag("http-addr").Changed {
				cfg.ControlAddr = addr
			}
			if cmd.Flag("http-token").Changed {
				cfg.ControlToken = authToken
			}

			daemon, err := client.NewDaemon(cfg)
			if err != nil {
				return err
			}

			defer slog.Info("Bye!")
			if err := daemon.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("daemon start", "error", err)
				return err
			}
			return nil
		},
	}

	daemonCmd.Flags().StringVarP(&addr, "http-addr", "a", config.DefaultControlAddr, "Address to bind the local control plane")
	daemonCmd.Flags().StringVarP(&authToken, "http-token", "t", "", "Access token for the local control plane")

	return daemonCmd
}
