package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pilehq/pilebox/internal/client/config"
	"github.com/pilehq/pilebox/internal/utils"
	"github.com/pilehq/pilebox/internal/version"
)

var (
	home, _        = os.UserHomeDir()
	configFileName = "config"
)

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "pilebox",
	Short:   "Pilebox keeps local piles in sync with Pile cloud collections",
	Version: version.Detailed(),
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "Pilebox config file")
}

func main() {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setupLogging mirrors everything to the console and the log file. The
// desktop app tails the file to surface daemon state.
func setupLogging() {
	// TODO handle log rotation
	logFile := config.DefaultLogFilePath

	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	logInterceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// Do not include time as it is added by the log interceptor.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))
}

// loadConfig resolves the client config from the --config flag,
// PILEBOX_* environment variables and the config file, in that order of
// precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if flag := cmd.Flag("config"); flag != nil && flag.Changed {
		viper.SetConfigFile(flag.Value.String())
	} else if envPath := os.Getenv("PILEBOX_CONFIG_PATH"); envPath != "" {
		viper.SetConfigFile(envPath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".pilebox"))
		viper.AddConfigPath(filepath.Join(home, ".config/pilebox"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return nil, fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.SetEnvPrefix("PILEBOX")
	viper.AutomaticEnv()

	cfg := &config.Config{
		Path:         viper.ConfigFileUsed(),
		BaseURL:      viper.GetString("base_url"),
		AccessToken:  viper.GetString("access_token"),
		DataDir:      viper.GetString("data_dir"),
		ControlAddr:  viper.GetString("control_addr"),
		ControlToken: viper.GetString("control_token"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func showPileboxHeader() {
	color.New(color.FgHiCyan, color.Bold).
		Print(utils.PileboxArt + "\n")
}
