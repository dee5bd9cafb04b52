package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	var watch bool
	var interval time.Duration
	var raw bool

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's view of every managed pile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			statusURL := fmt.Sprintf("http://%s/v1/status", cfg.ControlAddr)
			httpClient := &http.Client{Timeout: 5 * time.Second}

			fetch := func() error {
				req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, statusURL, nil)
				if err != nil {
					return err
				}
				if cfg.ControlToken != "" {
					req.Header.Set("Authorization", "Bearer "+cfg.ControlToken)
				}

				resp, err := httpClient.Do(req)
				if err != nil {
					return fmt.Errorf("daemon not reachable at %s: %w", statusURL, err)
				}
				defer resp.Body.Close()

				body, err := io.ReadAll(resp.Body)
				if err != nil {
					return err
				}
				if resp.StatusCode != http.StatusOK {
					return fmt.Errorf("daemon returned %s: %s", resp.Status, body)
				}

				if raw {
					fmt.Printf("%s\n", body)
					return nil
				}

				var v any
				if err := json.Unmarshal(body, &v); err != nil {
					fmt.Printf("%s\n", body)
					return nil
				}
				pretty, _ := json.MarshalIndent(v, "", "  ")
				fmt.Printf("%s\n", pretty)
				return nil
			}

			if !watch {
				return fetch()
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
					if err := fetch(); err != nil {
						fmt.Fprintf(os.Stderr, "%s ERROR %v\n", time.Now().UTC().Format(time.RFC3339), err)
					}
				}
			}
		},
	}

	statusCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling the daemon")
	statusCmd.Flags().DurationVarP(&interval, "interval", "i", 1*time.Second, "Poll interval with --watch")
	statusCmd.Flags().BoolVar(&raw, "raw", false, "Print raw json without pretty formatting")

	return statusCmd
}
