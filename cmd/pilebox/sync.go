package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pilehq/pilebox/internal/client/pilemgr"
	"github.com/pilehq/pilebox/internal/sync"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	var mode string

	syncCmd := &cobra.Command{
		Use:   "sync [dir]",
		Short: "Run one sync pass for a pile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			syncMode := sync.SyncMode(mode)
			if !syncMode.Valid() {
				return fmt.Errorf("invalid sync mode %q", mode)
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

			engine, err := mgr.Open(dir)
			if err != nil {
				return err
			}

			result, err := engine.RunSync(cmd.Context(), syncMode)
			printSyncResult(result)
			return err
		},
	}

	syncCmd.Flags().StringVarP(&mode, "mode", "m", string(sync.SyncModeBoth), "Sync direction: pull, push or both")

	return syncCmd
}

func printSyncResult(result *sync.SyncResult) {
	if result == nil {
		return
	}

	if pull := result.Pull; pull != nil {
		fmt.Printf("pull: %s applied, %s deleted, %s conflicts, %s unchanged\n",
			humanize.Comma(int64(pull.Applied)),
			humanize.Comma(int64(pull.Deleted)),
			humanize.Comma(int64(pull.Conflicts)),
			humanize.Comma(int64(pull.Unchanged)))
		for _, docErr := range pull.Errors {
			fmt.Printf("  %s %s: %s\n", red("ERR"), docErr.DocumentID, docErr.Error)
		}
	}

	if push := result.Push; push != nil {
		fmt.Printf("push: %s pushed, %s deleted, %s unchanged, %s skipped\n",
			humanize.Comma(int64(push.Pushed)),
			humanize.Comma(int64(push.Deleted)),
			humanize.Comma(int64(push.Unchanged)),
			humanize.Comma(int64(push.Skipped)))
		for _, docErr := range push.Errors {
			fmt.Printf("  %s %s: %s\n", red("ERR"), docErr.DocumentID, docErr.Error)
		}
	}

	fmt.Printf("done in %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
}
