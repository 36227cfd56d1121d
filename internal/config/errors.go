package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate and Config.ValidateBot so
// callers can use errors.Is.
var (
	// ErrNoPipelineDir is returned when the pipeline directory is empty.
	ErrNoPipelineDir = errors.New("no pipeline directory: set pipeline.dir or XSSBOT_PIPELINE_DIR")

	// ErrNoPipelineScript is returned when the pipeline script name is empty.
	ErrNoPipelineScript = errors.New("no pipeline script: set pipeline.script or XSSBOT_PIPELINE_SCRIPT")

	// ErrInvalidTimeout is returned when the pipeline timeout is negative.
	// Zero disables the deadline.
	ErrInvalidTimeout = errors.New("invalid pipeline timeout: must be non-negative")

	// ErrInvalidPromptTimeout is returned when the prompt timeout is negative.
	ErrInvalidPromptTimeout = errors.New("invalid prompt timeout: must be non-negative")

	// ErrInvalidMaxConcurrent is returned when the pipeline concurrency is not
	// positive.
	ErrInvalidMaxConcurrent = errors.New("invalid max concurrent scans: must be positive")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrNoBotToken is returned when the bot token is empty or still the
	// placeholder value.
	ErrNoBotToken = errors.New("no bot token: set bot.token or BOT_TOKEN")

	// ErrInvalidPollTimeout is returned when the long-poll timeout is negative.
	ErrInvalidPollTimeout = errors.New("invalid poll timeout: must be non-negative")

	// ErrInvalidScanRate is returned when the per-user scan interval is
	// negative or the burst is not positive.
	ErrInvalidScanRate = errors.New("invalid scan rate: interval must be non-negative and burst positive")

	// ErrInvalidProxy is returned when the proxy is not a socks5 or http(s) URL.
	ErrInvalidProxy = errors.New("invalid proxy: must be a socks5://, http:// or https:// URL")
)
