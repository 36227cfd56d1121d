package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xssautomation/xssbot/internal/config"
	"github.com/xssautomation/xssbot/internal/invoker"
	"github.com/xssautomation/xssbot/internal/model"
	"github.com/xssautomation/xssbot/internal/orchestrator"
	"github.com/xssautomation/xssbot/internal/parser"
	"github.com/xssautomation/xssbot/internal/report"
	"github.com/xssautomation/xssbot/internal/store"
)

// scanOptions holds the report flags of the scan command.
type scanOptions struct {
	json     bool
	markdown bool
	output   string
	batch    int
}

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [domain...]",
		Short: "Scan domains for XSS vulnerabilities",
		Long: `Scan runs the XSS automation pipeline for each domain and prints a report.

Domains may be given with or without a scheme and path; "https://example.com/a"
scans example.com. Progress is written to stderr and the report to stdout.

Examples:
  # Scan a single domain
  xssbot scan example.com

  # Scan several domains, two at a time
  xssbot scan --batch 2 example.com example.org

  # Print the report as JSON
  xssbot scan --json example.com

  # Also write a Markdown report to a file
  xssbot scan --markdown -o reports/example.md example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	addPipelineFlags(cmd)

	cmd.Flags().IntP("batch", "b", 1,
		"Number of domains scanned at once")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Also write the report to this file (creates directories if needed)")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyPipelineFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	opts, err := buildScanOptions(cmd)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg, slog.LevelWarn)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, opts, args, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildScanOptions reads the report flags.
func buildScanOptions(cmd *cobra.Command) (scanOptions, error) {
	var opts scanOptions
	var err error

	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.output, err = cmd.Flags().GetString("output"); err != nil {
		return opts, err
	}
	if opts.batch, err = cmd.Flags().GetInt("batch"); err != nil {
		return opts, err
	}
	if opts.batch < 1 {
		return opts, errors.New("--batch must be at least 1")
	}
	return opts, nil
}

// runScan scans every domain and writes the reports to stdout, and to
// opts.output when set. Progress goes to stderr. It fails when any scan
// failed.
func runScan(ctx context.Context, cfg *config.Config, opts scanOptions, domains []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	if len(domains) == 0 {
		return errors.New("no domains provided (specify one or more domains as arguments)")
	}

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
	defer cache.Close()

	var file io.Writer
	if opts.output != "" {
		f, err := createReportFile(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		file = f
	}

	orch := orchestrator.New(inv, parser.New(parser.WithLogger(logger)), cache,
		orchestrator.WithLogger(logger),
		orchestrator.WithMaxConcurrent(cfg.MaxConcurrent),
	)
	bp := orchestrator.NewBatchProcessor(orch, model.CLIIdentity,
		orchestrator.WithConcurrency(opts.batch),
		orchestrator.WithBatchLogger(logger),
	)

	// Progress lines and reports of concurrent scans must not interleave.
	var mu sync.Mutex
	sinkFor := func(i int) model.ProgressSink {
		return model.ProgressFunc(func(status string) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(stderr, "[%s] %s\n", domains[i], status)
		})
	}

	startTime := time.Now()
	failed := 0
	err = bp.ProcessBatchWithCallback(ctx, domains, sinkFor, func(result *orchestrator.Result, index int) {
		mu.Lock()
		defer mu.Unlock()

		if result.Report == nil {
			failed++
			return
		}
		if _, err := reportWriter(opts, stdout, file, result.Delta).Write(result.Report); err != nil {
			logger.Error("failed to write report", "domain", result.Domain, "error", err)
			failed++
		}
	})

	fmt.Fprintf(stderr, "Scanned %d domain(s) in %s\n", len(domains), time.Since(startTime).Round(time.Millisecond))

	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scan(s) failed", failed, len(domains))
	}
	return nil
}

// reportWriter returns the writer for one result: the selected format on
// stdout, and the same format in file when file is not nil.
func reportWriter(opts scanOptions, stdout, file io.Writer, delta *model.Delta) report.Writer {
	formatFor := func(w io.Writer) report.Writer {
		switch {
		case opts.json:
			return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint()).WithDelta(delta)
		case opts.markdown:
			return report.NewMarkdownWriter(w).WithDelta(delta)
		default:
			return report.NewSimpleWriter(w)
		}
	}

	if file == nil {
		return formatFor(stdout)
	}
	return report.NewMultiWriter(formatFor(stdout), formatFor(file))
}

// createReportFile creates path and its parent directories. Reports list
// vulnerable URLs, so the file is only readable by the owner.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
