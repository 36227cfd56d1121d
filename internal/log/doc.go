// Package log provides secure logging built on log/slog.
//
// SecureHandler wraps any slog.Handler and masks sensitive information
// before it is written:
//   - attributes whose keys name credentials (token, password, cookie, ...)
//   - values that look like secrets (JWTs, bearer tokens, private keys)
//   - Telegram bot tokens and proxy passwords embedded in messages, strings
//     and errors, which the Bot API client includes in its request URLs
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, log.FormatText, log.Level(verbose, slog.LevelInfo))
//	slog.SetDefault(logger)
//
//	logger.Warn("request failed", "error", err) // bot token in err is redacted
package log
