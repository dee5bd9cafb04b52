package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pilehq/pilebox/internal/client/pilemgr"
)

func init() {
	rootCmd.AddCommand(newMigrateCmd())
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <collection-id> <dir>",
		Short: "Materialize a cloud collection into a fresh local pile",
		Long: "Downloads every post of the collection into the directory and links it " +
			"for ongoing sync. Relative directories are created under the data dir.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			remoteID := args[0]
			dest := args[1]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !filepath.IsAbs(dest) {
				dest = filepath.Join(cfg.DataDir, dest)
			}

			mgr, err := pilemgr.New(cfg)
			if err != nil {
				return err
			}
			defer mgr.Stop()

			result, err := mgr.Migrate(cmd.Context(), remoteID, dest)
			printSyncResult(result)
			if err != nil {
				return err
			}

			fmt.Printf("%s migrated collection %s to %s\n", green("OK"), remoteID, cyan(dest))
			return nil
		},
	}
}
