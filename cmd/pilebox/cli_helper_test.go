package main

import (
	"github.com/spf13/cobra"

	"github.com/pilehq/pilebox/internal/client/config"
)

// newTestRoot builds a detached root so tests do not mutate the global
// command tree.
func newTestRoot() *cobra.Command {
	root := &cobra.Command{Use: "pilebox"}
	root.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "Pilebox config file")
	return root
}
