package main

import (
	"github.com/spf13/cobra"

	"github.com/xssautomation/xssbot/internal/config"
	"github.com/xssautomation/xssbot/internal/invoker"
)

// addPipelineFlags registers the pipeline overrides shared by serve and scan.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("pipeline-dir", config.DefaultPipelineDir,
		"Directory where the XSS automation pipeline is installed")
	cmd.Flags().String("script", config.DefaultPipelineScript,
		"Pipeline entry point, relative to --pipeline-dir unless absolute")
	cmd.Flags().DurationP("timeout", "t", invoker.DefaultTimeout,
		"Limit for a whole pipeline run (0 disables it)")
	cmd.Flags().Bool("await-prompts", false,
		"Answer each pipeline prompt only after it appears in the output")
	cmd.Flags().Int("max-concurrent", config.DefaultMaxConcurrent,
		"Number of pipelines allowed to run at once")
}

// applyPipelineFlags copies the pipeline flags the user set onto cfg.
func applyPipelineFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("pipeline-dir") {
		if cfg.Pipeline.Dir, err = flags.GetString("pipeline-dir"); err != nil {
			return err
		}
	}
	if flags.Changed("script") {
		if cfg.Pipeline.Script, err = flags.GetString("script"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Pipeline.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("await-prompts") {
		if cfg.Pipeline.AwaitPrompts, err = flags.GetBool("await-prompts"); err != nil {
			return err
		}
	}
	if flags.Changed("max-concurrent") {
		if cfg.MaxConcurrent, err = flags.GetInt("max-concurrent"); err != nil {
			return err
		}
	}
	return nil
}
