package orchestrator

import (
	"context"

	"github.com/xssautomation/xssbot/internal/model"
)

// job is the mutable state of one request while its steps run.
type job struct {
	req     model.ScanRequest
	sink    model.ProgressSink
	state   model.ScanState
	domain  model.Domain
	outcome *model.PipelineOutcome
	report  *model.Report
	delta   *model.Delta
}

// step is one stage of a scan. Entering a step moves the job to State().
type step interface {
	// Name returns the step's name for logging.
	Name() string

	// State returns the lifecycle state the job is in while the step runs.
	State() model.ScanState

	// Do performs the step. Errors should be *model.Failure values; anything
	// else is reported as an internal failure.
	Do(ctx context.Context, j *job) error
}

// validateStep normalizes the raw input into a domain.
type validateStep struct{}

func (validateStep) Name() string           { return "validate" }
func (validateStep) State() model.ScanState { return model.StateValidating }

func (validateStep) Do(_ context.Context, j *job) error {
	domain, err := model.NormalizeDomain(j.req.RawInput)
	if err != nil {
		return err
	}
	j.domain = domain
	return nil
}

// invokeStep runs the external pipeline.
type invokeStep struct {
	invoker Invoker
}

func (invokeStep) Name() string           { return "invoke" }
func (invokeStep) State() model.ScanState { return model.StateInvoking }

func (s invokeStep) Do(ctx context.Context, j *job) error {
	outcome, err := s.invoker.Invoke(ctx, j.domain, j.sink)
	if err != nil {
		return err
	}
	j.outcome = outcome
	return nil
}

// parseStep reads the pipeline's results into a report.
type parseStep struct {
	parser Parser
}

func (parseStep) Name() string           { return "parse" }
func (parseStep) State() model.ScanState { return model.StateParsing }

func (s parseStep) Do(ctx context.Context, j *job) error {
	report, err := s.parser.Parse(ctx, j.outcome.ResultsDir, j.domain)
	if err != nil {
		return err
	}
	j.report = report
	return nil
}
