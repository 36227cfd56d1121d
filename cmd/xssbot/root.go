package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/xssautomation/xssbot/internal/config"
	xlog "github.com/xssautomation/xssbot/internal/log"
)

// NewRootCmd creates the root command for xssbot.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xssbot",
		Short: "XSS scan orchestration for Telegram and the command line",
		Long: `xssbot drives an external XSS automation pipeline (URL harvesting,
subdomain discovery, liveness probing and XSS testing) and reports what it
found.

Run "xssbot serve" to answer scan requests from Telegram, or
"xssbot scan" to scan domains from the command line.

Only scan sites you own or have explicit permission to test.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .xssbot.yaml in current directory or "+config.AppName+"/config.yaml in the XDG config directory)")
	cmd.PersistentFlags().String("log-format", config.DefaultLogFormat, "Log format: text or json")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, xlog.Redact(err.Error()))
		os.Exit(1)
	}
}

// loadConfig builds the configuration from the file, the environment and
// the global flags, in increasing order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("verbose") {
		if cfg.Verbose, err = cmd.Flags().GetBool("verbose"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("log-format") {
		if cfg.LogFormat, err = cmd.Flags().GetString("log-format"); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// setupLogger creates the secure logger for cfg and makes it the default.
// quiet is the level used without --verbose.
func setupLogger(cfg *config.Config, quiet slog.Level) *slog.Logger {
	logger := xlog.NewSecureLogger(os.Stderr, cfg.LogFormat, xlog.Level(cfg.Verbose, quiet))
	slog.SetDefault(logger)
	return logger
}
