package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/xssautomation/xssbot/internal/invoker"
	"github.com/xssautomation/xssbot/internal/store"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "xssbot"

	// DefaultPipelineDir is where the XSS automation pipeline is installed.
	DefaultPipelineDir = "/home/ubuntu/XSS-Automation"

	// DefaultPipelineScript is the pipeline entry point inside the pipeline
	// directory.
	DefaultPipelineScript = "xss_automation.sh"

	// DefaultGoRoot and DefaultGoPath locate the Go toolchain and the Go
	// tools (subfinder, httpx, dalfox, ...) the pipeline calls.
	DefaultGoRoot = "/usr/local/go"
	DefaultGoPath = "/home/ubuntu/go"

	// DefaultMaxConcurrent is the number of pipelines allowed to run at once.
	// Each run spawns several network-heavy tools.
	DefaultMaxConcurrent = 2

	// DefaultPollTimeout is the Telegram long-poll timeout.
	DefaultPollTimeout = 60 * time.Second

	// DefaultScanInterval is how often a user regains one scan token.
	DefaultScanInterval = 5 * time.Minute

	// DefaultScanBurst is how many scans a user may start back to back.
	DefaultScanBurst = 3

	// DefaultLogFormat is the log output format.
	DefaultLogFormat = "text"

	// PlaceholderToken is the bot token value shipped in examples. It is
	// treated as no token.
	PlaceholderToken = "YOUR_BOT_TOKEN_HERE"
)

// Config holds all configuration options for xssbot.
// It is populated once at startup and passed down explicitly.
type Config struct {
	// Pipeline describes the external XSS pipeline.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Bot holds the Telegram settings. Only serve uses them.
	Bot BotConfig `yaml:"bot"`

	// Store selects the report cache backend.
	Store StoreConfig `yaml:"store"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// MaxConcurrent bounds how many pipelines run at the same time.
	MaxConcurrent int `yaml:"max_concurrent"`

	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`

	// ConfigFilePath is the file the configuration was loaded from, if any.
	ConfigFilePath string `yaml:"-"`
}

// PipelineConfig describes where the pipeline lives and how it is run.
type PipelineConfig struct {
	// Dir is the pipeline installation directory.
	Dir string `yaml:"dir"`

	// Script is the entry point, relative to Dir unless absolute.
	Script string `yaml:"script"`

	// Shell interprets Script.
	Shell string `yaml:"shell"`

	// ResultsDir is where the pipeline writes per-domain results.
	// Empty means Dir/results.
	ResultsDir string `yaml:"results_dir"`

	// PathAppend lists directories appended to the pipeline's PATH, e.g.
	// where the Go tools it calls are installed.
	PathAppend []string `yaml:"path_append"`

	// Env sets extra environment variables for the pipeline.
	Env map[string]string `yaml:"env"`

	// AwaitPrompts writes each answer only after its prompt appears in the
	// pipeline's output. By default every answer is written at start.
	AwaitPrompts bool `yaml:"await_prompts"`

	// Timeout bounds a whole run. Zero disables the deadline.
	Timeout time.Duration `yaml:"timeout"`

	// PromptTimeout bounds the wait for each prompt when AwaitPrompts is set.
	PromptTimeout time.Duration `yaml:"prompt_timeout"`
}

// BotConfig holds the Telegram bot settings.
type BotConfig struct {
	// Token is the Telegram bot API token.
	Token string `yaml:"token"`

	// Proxy is an optional socks5:// or http(s):// proxy for the Bot API.
	Proxy string `yaml:"proxy"`

	// PollTimeout is the long-poll timeout for getUpdates.
	PollTimeout time.Duration `yaml:"poll_timeout"`

	// ScanInterval and ScanBurst rate-limit scans per user. A zero interval
	// disables rate limiting.
	ScanInterval time.Duration `yaml:"scan_interval"`
	ScanBurst    int           `yaml:"scan_burst"`

	// Debug logs every Bot API request.
	Debug bool `yaml:"debug"`
}

// StoreConfig selects the report cache backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address, e.g. ":9090". Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Dir:           DefaultPipelineDir,
			Script:        DefaultPipelineScript,
			Shell:         invoker.DefaultShell,
			PathAppend:    []string{DefaultGoRoot + "/bin", DefaultGoPath + "/bin"},
			Env:           map[string]string{"GOPATH": DefaultGoPath},
			Timeout:       invoker.DefaultTimeout,
			PromptTimeout: invoker.DefaultPromptTimeout,
		},
		Bot: BotConfig{
			PollTimeout:  DefaultPollTimeout,
			ScanInterval: DefaultScanInterval,
			ScanBurst:    DefaultScanBurst,
		},
		Store: StoreConfig{
			Backend: store.BackendMemory,
		},
		MaxConcurrent: DefaultMaxConcurrent,
		LogFormat:     DefaultLogFormat,
	}
}

// XDGConfigDir returns the XDG config directory for xssbot.
// On Linux: ~/.config/xssbot
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the settings shared by every command.
// It returns the first problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Pipeline.Dir) == "" {
		return ErrNoPipelineDir
	}
	if strings.TrimSpace(c.Pipeline.Script) == "" {
		return ErrNoPipelineScript
	}
	if c.Pipeline.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.Pipeline.PromptTimeout < 0 {
		return ErrInvalidPromptTimeout
	}
	if c.MaxConcurrent <= 0 {
		return ErrInvalidMaxConcurrent
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}
	if _, err := store.ParseBackend(c.Store.Backend); err != nil {
		return err
	}
	return nil
}

// ValidateBot checks the settings serve needs on top of Validate.
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !HasToken(c.Bot.Token) {
		return ErrNoBotToken
	}
	if c.Bot.PollTimeout < 0 {
		return ErrInvalidPollTimeout
	}
	if c.Bot.ScanInterval < 0 || c.Bot.ScanBurst <= 0 {
		return ErrInvalidScanRate
	}
	if c.Bot.Proxy != "" {
		u, err := url.Parse(c.Bot.Proxy)
		if err != nil || u.Host == "" {
			return ErrInvalidProxy
		}
		switch u.Scheme {
		case "socks5", "socks5h", "http", "https":
		default:
			return ErrInvalidProxy
		}
	}
	return nil
}

// HasToken reports whether token is set to something other than the
// placeholder.
func HasToken(token string) bool {
	token = strings.TrimSpace(token)
	return token != "" && token != PlaceholderToken
}

// InvokerConfig returns the settings for invoker.New.
func (c *Config) InvokerConfig() invoker.Config {
	cfg := invoker.DefaultConfig(c.Pipeline.Dir)
	cfg.Script = c.Pipeline.Script
	if c.Pipeline.Shell != "" {
		cfg.Shell = c.Pipeline.Shell
	}
	cfg.ResultsDir = c.Pipeline.ResultsDir
	cfg.PathAppend = c.Pipeline.PathAppend
	cfg.Env = c.Pipeline.Env
	cfg.Timeout = c.Pipeline.Timeout
	cfg.PromptTimeout = c.Pipeline.PromptTimeout
	if c.Pipeline.AwaitPrompts {
		cfg.Protocol = invoker.InteractiveProtocol()
	}
	return cfg
}
