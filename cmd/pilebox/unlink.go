package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pilehq/pilebox/internal/client/pilemgr"
)

func init() {
	rootCmd.AddCommand(newUnlinkCmd())
}

func newUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink [dir]",
		Short: "Detach a pile from its cloud collection",
		Long: "Clears the link state and stops syncing the directory. Local files, " +
			"conflicts and sync metadata are kept.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			mgr, err := pilemgr.New(cfg)
			if err != nil {
				return err
			}
			defer mgr.Stop()

			if _, err := mgr.Open(dir); err != nil {
				return err
			}
			if err := mgr.Unlink(dir); err != nil {
				return err
			}

			fmt.Printf("%s unlinked %s\n", green("OK"), cyan(dir))
			return nil
		},
	}
}
