package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name looked up in the
// current directory.
const DefaultConfigFile = ".xssbot.yaml"

// xdgConfigFile is the configuration file name inside XDGConfigDir.
const xdgConfigFile = "config.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Environment variables that override the configuration file.
const (
	EnvBotToken        = "BOT_TOKEN"
	EnvPipelineDir     = "XSSBOT_PIPELINE_DIR"
	EnvPipelineScript  = "XSSBOT_PIPELINE_SCRIPT"
	EnvPipelineTimeout = "XSSBOT_PIPELINE_TIMEOUT"
	EnvMaxConcurrent   = "XSSBOT_MAX_CONCURRENT"
	EnvProxy           = "XSSBOT_PROXY"
	EnvMetricsAddr     = "XSSBOT_METRICS_ADDR"
	EnvStore           = "XSSBOT_STORE"
)

// Load builds the configuration from defaults, the configuration file and
// the environment. configPath is the --config flag value; when it is set
// the file must exist.
func Load(configPath string) (*Config, error) {
	cfg := NewConfig()

	path := FindConfigFile(configPath)
	switch {
	case path != "":
		if err := LoadConfigFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg.ConfigFilePath = path
	case configPath != "":
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFile decodes the YAML file at path over cfg. Keys absent from
// the file keep their current values; unknown keys are an error.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigNotFound
		}
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .xssbot.yaml in the current directory
// 3. Look for config.yaml in XDGConfigDir
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), xdgConfigFile)
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}

// ApplyEnv overrides cfg with the environment variables lookup reports.
// Pass os.LookupEnv in production.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvBotToken, &cfg.Bot.Token},
		{EnvPipelineDir, &cfg.Pipeline.Dir},
		{EnvPipelineScript, &cfg.Pipeline.Script},
		{EnvProxy, &cfg.Bot.Proxy},
		{EnvMetricsAddr, &cfg.Metrics.Addr},
		{EnvStore, &cfg.Store.Backend},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok {
			*s.dst = v
		}
	}

	if v, ok := lookup(EnvPipelineTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPipelineTimeout, err)
		}
		cfg.Pipeline.Timeout = d
	}
	if v, ok := lookup(EnvMaxConcurrent); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvMaxConcurrent, err)
		}
		cfg.MaxConcurrent = n
	}
	return nil
}
