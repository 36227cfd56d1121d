package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xssautomation/xssbot/internal/bot"
	"github.com/xssautomation/xssbot/internal/config"
	"github.com/xssautomation/xssbot/internal/invoker"
	"github.com/xssautomation/xssbot/internal/metrics"
	"github.com/xssautomation/xssbot/internal/orchestrator"
	"github.com/xssautomation/xssbot/internal/parser"
	"github.com/xssautomation/xssbot/internal/store"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot",
		Long: `Serve answers Telegram users: every domain they send is scanned with the
XSS automation pipeline, progress is shown in a status message, and the
results can be browsed with inline buttons or exported as a file.

The bot token is read from the configuration file or the BOT_TOKEN
environment variable. Serve refuses to start without a token or without
the pipeline script.

Examples:
  # Run with .xssbot.yaml from the current directory
  BOT_TOKEN=123456:ABC... xssbot serve

  # Expose Prometheus metrics and cache reports in sqlite
  xssbot serve --metrics-addr 127.0.0.1:9090 --store sqlite`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addPipelineFlags(cmd)
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g. 127.0.0.1:9090)")
	cmd.Flags().String("store", store.BackendMemory,
		"Report cache backend: memory or sqlite")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := serveConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg, slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// serveConfig loads the configuration and applies the serve flags.
func serveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := applyPipelineFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("metrics-addr") {
		if cfg.Metrics.Addr, err = cmd.Flags().GetString("metrics-addr"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("store") {
		if cfg.Store.Backend, err = cmd.Flags().GetString("store"); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// serve wires the engine to the Bot API and runs until ctx is done.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	inv, err := invoker.New(cfg.InvokerConfig(), invoker.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("invalid pipeline configuration: %w", err)
	}
	if err := inv.Check(); err != nil {
		return err
	}

	cache, err := store.New(cfg.Store.Backend)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Error("failed to close report store", "error", err)
		}
	}()

	recorder := metrics.NewRecorder()
	if cfg.Metrics.Addr != "" {
		srv, err := metrics.NewServer(cfg.Metrics.Addr, recorder, logger)
		if err != nil {
			return err
		}
		srv.Start()
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Error("failed to stop metrics server", "error", err)
			}
		}()
	}

	orch := orchestrator.New(inv, parser.New(parser.WithLogger(logger)), cache,
		orchestrator.WithLogger(logger),
		orchestrator.WithMaxConcurrent(cfg.MaxConcurrent),
		orchestrator.WithObserver(recorder),
	)

	api, err := bot.NewAPI(cfg.Bot.Token, cfg.Bot.Proxy, cfg.Bot.PollTimeout, cfg.Bot.Debug, logger)
	if err != nil {
		return err
	}
	logger.Info("connected to Telegram",
		"bot", api.Self.UserName,
		"pipeline", inv.ScriptPath(),
		"store", cfg.Store.Backend,
		"max_concurrent", cfg.MaxConcurrent,
	)

	b := bot.New(api, orch,
		bot.WithLogger(logger),
		bot.WithMetrics(recorder),
		bot.WithPollTimeout(cfg.Bot.PollTimeout),
		bot.WithRateLimit(cfg.Bot.ScanInterval, cfg.Bot.ScanBurst),
		bot.WithVersion(getVersion()),
	)
	return b.Run(ctx)
}
