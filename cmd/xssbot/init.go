package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xssautomation/xssbot/internal/config"
)

//go:embed templates/xssbot.yaml
var configTemplate []byte

type initOptions struct {
	output string
	force  bool
}

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	opts := &initOptions{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new xssbot configuration file",
		Long: `Init writes a commented .xssbot.yaml configuration file in the current directory.

The generated file documents every option: the pipeline location and
timeouts, the Telegram bot token and proxy, per-user rate limits, the
report store and the metrics endpoint. It is created with mode 0600
because it holds the bot token.

Examples:
  xssbot init
  xssbot init -o ~/.config/xssbot/config.yaml
  xssbot init -f`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := writeConfigTemplate(opts.output, opts.force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), `Wrote %s

Set bot.token (or BOT_TOKEN) and pipeline.dir before running "xssbot serve".
`, opts.output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", config.DefaultConfigFile, "where to write the configuration")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "replace an existing file")
	return cmd
}

// writeConfigTemplate creates path with the embedded template. Without force
// an existing file is left untouched.
func writeConfigTemplate(path string, force bool) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(filepath.Clean(path), flags, 0600)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%s already exists (use -f to overwrite)", path)
	}
	if err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}
	if _, err := f.Write(configTemplate); err != nil {
		f.Close()
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return f.Close()
}
