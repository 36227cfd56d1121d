package model

import (
	"time"

	"github.com/google/uuid"
)

// ScanRequest is one submitted scan. It is immutable after creation and is
// not persisted.
type ScanRequest struct {
	// ID correlates log lines and metrics for one request.
	ID string

	// Identity is the requester. Reports are cached per identity.
	Identity Identity

	// RawInput is the domain text exactly as submitted.
	RawInput string

	// SubmittedAt is when the request was created.
	SubmittedAt time.Time
}

// NewScanRequest creates a ScanRequest with a fresh ID.
func NewScanRequest(identity Identity, rawInput string) ScanRequest {
	return ScanRequest{
		ID:          uuid.New().String(),
		Identity:    identity,
		RawInput:    rawInput,
		SubmittedAt: time.Now(),
	}
}

// ScanState is the lifecycle state of a scan request.
type ScanState int

const (
	// StateReceived is the initial state.
	StateReceived ScanState = iota
	// StateValidating normalizes the raw input.
	StateValidating
	// StateInvoking runs the external pipeline.
	StateInvoking
	// StateParsing reads the pipeline's results directory.
	StateParsing
	// StateCompleted is terminal: a report was produced and cached.
	StateCompleted
	// StateFailed is terminal: a Failure was produced.
	StateFailed
)

// String returns the state name.
func (s ScanState) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateValidating:
		return "validating"
	case StateInvoking:
		return "invoking"
	case StateParsing:
		return "parsing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is Completed or Failed.
func (s ScanState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// PipelineOutcome is the result of a successful pipeline invocation.
type PipelineOutcome struct {
	// ExitCode is always 0 for an outcome; failures are *Failure values.
	ExitCode int

	// ResultsDir is where the pipeline wrote the domain's artifacts.
	ResultsDir string

	// Duration is the wall time of the child process.
	Duration time.Duration
}

// ProgressSink receives human-readable status updates for one scan.
// Calls for a single request are made sequentially and in lifecycle order.
type ProgressSink interface {
	Progress(status string)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(status string)

// Progress calls f(status).
func (f ProgressFunc) Progress(status string) {
	f(status)
}

// DiscardProgress is a ProgressSink that drops every update.
var DiscardProgress ProgressSink = ProgressFunc(func(string) {})
