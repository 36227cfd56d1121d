// Package config provides the configuration for xssbot: where the pipeline
// lives and how it is run, the Telegram bot settings, the report cache
// backend and the metrics endpoint.
//
// Values come from NewConfig defaults, then an optional YAML file, then
// environment variables. Command-line flags are applied last by the CLI.
package config
