package model

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Reason classifies why a scan failed.
type Reason int

const (
	// ReasonInternal is an unexpected fault inside the engine itself.
	ReasonInternal Reason = iota

	// ReasonValidation means the raw input is not an acceptable domain.
	// The caller should ask the user for a different domain.
	ReasonValidation

	// ReasonPipelineNotFound means the configured pipeline script is absent.
	ReasonPipelineNotFound

	// ReasonPipelineError covers a non-zero exit, a spawn or pipe fault,
	// a prompt protocol deviation, a deadline and a cancellation.
	ReasonPipelineError

	// ReasonResultsMissing means the pipeline exited 0 but did not create the
	// domain's results directory.
	ReasonResultsMissing

	// ReasonParseError is a directory-level failure to read the results.
	ReasonParseError
)

// String returns the reason name used in logs and metrics labels.
func (r Reason) String() string {
	switch r {
	case ReasonValidation:
		return "validation"
	case ReasonPipelineNotFound:
		return "pipeline_not_found"
	case ReasonPipelineError:
		return "pipeline_error"
	case ReasonResultsMissing:
		return "results_missing"
	case ReasonParseError:
		return "parse_error"
	default:
		return "internal"
	}
}

// Sentinels matched by errors.Is against a *Failure of the same reason.
var (
	ErrValidation       = errors.New("invalid domain")
	ErrPipelineNotFound = errors.New("scan pipeline not found")
	ErrPipeline         = errors.New("scan pipeline failed")
	ErrResultsMissing   = errors.New("results directory missing")
	ErrParse            = errors.New("failed to parse results")
	ErrInternal         = errors.New("internal error")
)

// Causes attached to ReasonPipelineError failures.
var (
	// ErrNonZeroExit is the cause when the pipeline exits with a non-zero code.
	ErrNonZeroExit = errors.New("pipeline exited with non-zero status")

	// ErrSpawn is the cause when the pipeline could not be started or its
	// pipes failed.
	ErrSpawn = errors.New("failed to run pipeline")

	// ErrTimeout is the cause when the pipeline exceeded its deadline.
	ErrTimeout = errors.New("pipeline deadline exceeded")

	// ErrCanceled is the cause when the scan was canceled by the caller.
	ErrCanceled = errors.New("pipeline canceled")

	// ErrProtocolDeviation is the cause when the pipeline's interactive
	// prompts did not match the configured prompt protocol.
	ErrProtocolDeviation = errors.New("pipeline prompt protocol deviation")
)

// MaxDetailLength bounds Failure.Detail, in characters.
const MaxDetailLength = 200

// Failure is the terminal error of a failed scan.
//
// Every failure the engine produces is a *Failure, so callers can switch on
// Reason or use errors.Is with the reason sentinels (ErrValidation, ...) and
// the cause sentinels (ErrTimeout, ...).
type Failure struct {
	// Reason is the abstract failure category.
	Reason Reason

	// Cause is the underlying error, if any.
	Cause error

	// ExitCode is the pipeline's exit status. It is only meaningful when
	// Cause is ErrNonZeroExit.
	ExitCode int

	// Detail is a bounded, human-readable excerpt such as the start of the
	// pipeline's stderr.
	Detail string
}

// NewFailure creates a Failure with detail truncated to MaxDetailLength.
func NewFailure(reason Reason, detail string, cause error) *Failure {
	return &Failure{
		Reason: reason,
		Cause:  cause,
		Detail: Truncate(detail, MaxDetailLength),
	}
}

// Error implements error.
func (f *Failure) Error() string {
	msg := f.sentinel().Error()
	if f.Cause != nil {
		msg += ": " + f.Cause.Error()
	}
	if f.Cause != nil && errors.Is(f.Cause, ErrNonZeroExit) {
		msg += fmt.Sprintf(" (exit code %d)", f.ExitCode)
	}
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	return msg
}

// Unwrap returns the cause.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// Is matches the reason sentinel for f.Reason.
func (f *Failure) Is(target error) bool {
	return target == f.sentinel()
}

func (f *Failure) sentinel() error {
	switch f.Reason {
	case ReasonValidation:
		return ErrValidation
	case ReasonPipelineNotFound:
		return ErrPipelineNotFound
	case ReasonPipelineError:
		return ErrPipeline
	case ReasonResultsMissing:
		return ErrResultsMissing
	case ReasonParseError:
		return ErrParse
	default:
		return ErrInternal
	}
}

// UserMessage renders the failure as one line suitable for a chat reply.
// Raw causes are not included for internal failures.
func (f *Failure) UserMessage() string {
	switch f.Reason {
	case ReasonValidation:
		return "Invalid domain. Send a domain such as example.com or https://example.com"
	case ReasonPipelineNotFound:
		return "The scan pipeline is not installed on this server."
	case ReasonPipelineError:
		switch {
		case errors.Is(f.Cause, ErrTimeout):
			return "The scan took too long and was stopped."
		case errors.Is(f.Cause, ErrCanceled):
			return "The scan was canceled."
		case errors.Is(f.Cause, ErrNonZeroExit):
			return withDetail(fmt.Sprintf("The scan pipeline failed (exit code %d)", f.ExitCode), f.Detail)
		default:
			return withDetail("The scan pipeline could not be run", f.Detail)
		}
	case ReasonResultsMissing:
		return "The scan finished but produced no results directory."
	case ReasonParseError:
		return withDetail("The scan results could not be read", f.Detail)
	default:
		return "An internal error occurred. Please try again later."
	}
}

func withDetail(msg, detail string) string {
	if detail == "" {
		return msg + "."
	}
	return msg + ": " + detail
}

// AsFailure returns err as a *Failure. Errors that are not already a Failure
// are wrapped as ReasonInternal. A nil err yields nil.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return NewFailure(ReasonInternal, "", err)
}

// Truncate shortens s to at most n characters without splitting a multi-byte
// character, appending "..." when anything was cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}
