package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pilehq/pilebox/internal/client/pilemgr"
)

func init() {
	rootCmd.AddCommand(newLinkCmd())
}

func newLinkCmd() *cobra.Command {
	var remoteID string

	linkCmd := &cobra.Command{
		Use:   "link [dir]",
		Short: "Link a directory to a Pile cloud collection",
		Long: "Links the directory to a cloud collection and queues every local post " +
			"for upload. Without --remote a new collection is created.",
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

			collection, err := mgr.Link(cmd.Context(), dir, remoteID)
			if err != nil {
				return err
			}

			fmt.Printf("%s linked to collection %s (%s)\n", green("OK"), cyan(collection.Name), collection.ID)
			fmt.Println(gray("run 'pilebox sync' or start the daemon to exchange posts"))
			return nil
		},
	}

	linkCmd.Flags().StringVarP(&remoteID, "remote", "r", "", "Existing collection id to link against")

	return linkCmd
}
