package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/xssautomation/xssbot/internal/model"
	"github.com/xssautomation/xssbot/internal/store"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrent is the default number of pipelines allowed to run at
// the same time.
const DefaultMaxConcurrent = 2

// Invoker runs the external pipeline for a domain.
// *invoker.Invoker satisfies this interface.
type Invoker interface {
	Invoke(ctx context.Context, domain model.Domain, sink model.ProgressSink) (*model.PipelineOutcome, error)
}

// Parser turns a results directory into a report.
// *parser.Parser satisfies this interface.
type Parser interface {
	Parse(ctx context.Context, resultsDir string, domain model.Domain) (*model.Report, error)
}

// Observer is notified when scans start and finish. Calls may come from
// several goroutines at once.
type Observer interface {
	ScanStarted()
	ScanFinished(result *Result)
}

type nopObserver struct{}

func (nopObserver) ScanStarted()         {}
func (nopObserver) ScanFinished(*Result) {}

// Result is the terminal outcome of one scan request.
type Result struct {
	// Request is the request that produced this result.
	Request model.ScanRequest

	// State is StateCompleted or StateFailed.
	State model.ScanState

	// Domain is the normalized domain. It is empty when validation failed.
	Domain model.Domain

	// Report is set on completion. The same report is in the store.
	Report *model.Report

	// Delta compares Report with the previous report cached for the same
	// identity and domain. It is nil for a first scan.
	Delta *model.Delta

	// Failure is set when State is StateFailed.
	Failure *model.Failure

	// Duration is the wall time spent in Scan, including time spent waiting
	// for the domain or a free pipeline slot.
	Duration time.Duration
}

// Err returns the failure as an error, or nil on completion.
func (r *Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Orchestrator runs scan requests against the pipeline and caches their
// reports. It is safe for concurrent use.
type Orchestrator struct {
	validate step
	steps    []step
	store    store.Store
	locks    *domainLocks
	slots    *semaphore.Weighted

	maxConcurrent int
	observer      Observer
	logger        *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMaxConcurrent bounds the number of pipelines running at once.
// Values below 1 are ignored.
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithObserver registers an observer for scan starts and results.
func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// New creates an Orchestrator. Completed reports are written to cache.
func New(invoker Invoker, parser Parser, cache store.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		validate:      validateStep{},
		steps:         []step{invokeStep{invoker: invoker}, parseStep{parser: parser}},
		store:         cache,
		locks:         newDomainLocks(),
		maxConcurrent: DefaultMaxConcurrent,
		observer:      nopObserver{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.slots = semaphore.NewWeighted(int64(o.maxConcurrent))
	return o
}

// Submit creates a request for identity and raw input and scans it.
func (o *Orchestrator) Submit(ctx context.Context, identity model.Identity, rawInput string, sink model.ProgressSink) *Result {
	return o.Scan(ctx, model.NewScanRequest(identity, rawInput), sink)
}

// Scan runs req to a terminal state. It never returns nil and never panics
// because of a step; failures are reported on the Result.
//
// sink is called once when the pipeline is about to start, once when
// parsing starts and once with the terminal status, plus whatever the
// invoker reports while the pipeline runs. A request that has to wait for
// the domain or a pipeline slot is told it is queued first. A request that
// fails validation only gets the terminal status.
func (o *Orchestrator) Scan(ctx context.Context, req model.ScanRequest, sink model.ProgressSink) *Result {
	if sink == nil {
		sink = model.DiscardProgress
	}
	start := time.Now()
	logger := o.logger.With("request_id", req.ID, "identity", req.Identity)
	j := &job{req: req, sink: sink, state: model.StateReceived}

	o.observer.ScanStarted()
	err := o.run(ctx, j, logger)

	result := &Result{
		Request:  req,
		Domain:   j.domain,
		Duration: time.Since(start),
	}
	if err != nil {
		result.State = model.StateFailed
		result.Failure = model.AsFailure(err)
		logger.Warn("scan failed",
			"domain", j.domain,
			"state", j.state,
			"reason", result.Failure.Reason,
			"error", result.Failure,
		)
		sink.Progress(failedNotice(j.domain, result.Failure))
	} else {
		result.State = model.StateCompleted
		result.Report = j.report
		result.Delta = j.delta
		logger.Info("scan completed",
			"domain", j.domain,
			"vulnerable", j.report.Vulnerable(),
			"duration", result.Duration,
		)
		sink.Progress(completedNotice(j.report))
	}

	o.observer.ScanFinished(result)
	return result
}

// run validates the input, then invokes, parses and caches while holding
// the domain's lock and a pipeline slot.
func (o *Orchestrator) run(ctx context.Context, j *job, logger *slog.Logger) error {
	if err := o.runStep(ctx, j, o.validate, logger); err != nil {
		return err
	}

	release, err := o.acquire(ctx, j, logger)
	if err != nil {
		return err
	}
	defer release()

	for _, s := range o.steps {
		if err := o.runStep(ctx, j, s, logger); err != nil {
			return err
		}
	}
	return o.cache(ctx, j, logger)
}

// runStep enters the step's state, notifies the sink for user-visible
// states and runs the step, converting a panic into an internal failure.
func (o *Orchestrator) runStep(ctx context.Context, j *job, s step, logger *slog.Logger) (err error) {
	if err := ctx.Err(); err != nil {
		logger.Warn("scan cancelled", "step", s.Name(), "reason", err)
		return stopped(err)
	}

	j.state = s.State()
	if msg := enterNotice(j); msg != "" {
		j.sink.Progress(msg)
	}

	logger.Debug("executing step", "step", s.Name(), "domain", j.domain)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("step panicked",
				"step", s.Name(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = model.NewFailure(model.ReasonInternal, fmt.Sprintf("%s step panicked: %v", s.Name(), r), nil)
		}
	}()

	if err := s.Do(ctx, j); err != nil {
		return err
	}
	logger.Debug("step completed", "step", s.Name(), "domain", j.domain)
	return nil
}

// acquire takes the domain's lock, then a pipeline slot. The sink is told
// when the request has to wait for either.
func (o *Orchestrator) acquire(ctx context.Context, j *job, logger *slog.Logger) (func(), error) {
	unlock, ok := o.locks.tryLock(j.domain)
	if !ok {
		logger.Info("waiting for another scan of the domain", "domain", j.domain)
		j.sink.Progress(fmt.Sprintf("Queued: another scan of %s is in progress. Yours starts when it finishes.", j.domain))
		var err error
		if unlock, err = o.locks.lock(ctx, j.domain); err != nil {
			logger.Warn("gave up waiting for domain", "domain", j.domain, "reason", err)
			return nil, stopped(err)
		}
	}
	if !o.slots.TryAcquire(1) {
		logger.Info("waiting for a free pipeline slot", "domain", j.domain, "max_concurrent", o.maxConcurrent)
		j.sink.Progress(fmt.Sprintf("Queued: %d of %d scans already running. Your scan of %s starts when one finishes.", o.maxConcurrent, o.maxConcurrent, j.domain))
		if err := o.slots.Acquire(ctx, 1); err != nil {
			unlock()
			return nil, stopped(err)
		}
	}
	return func() {
		o.slots.Release(1)
		unlock()
	}, nil
}

// cache stores the report, computing the delta against the previous one.
func (o *Orchestrator) cache(ctx context.Context, j *job, logger *slog.Logger) error {
	identity := j.req.Identity

	previous, ok, err := o.store.Get(ctx, identity, j.domain)
	switch {
	case err != nil:
		logger.Warn("failed to load previous report", "domain", j.domain, "error", err)
	case ok:
		j.delta = model.Diff(previous, j.report)
	}

	if err := o.store.Put(ctx, identity, j.domain, j.report); err != nil {
		return model.NewFailure(model.ReasonInternal, "failed to cache report for "+j.domain.String(), err)
	}
	return nil
}

// Summary returns the summary of the report cached for identity and domain.
func (o *Orchestrator) Summary(ctx context.Context, identity model.Identity, domain model.Domain) (model.Summary, bool, error) {
	report, ok, err := o.store.Get(ctx, identity, domain)
	if err != nil || !ok {
		return model.Summary{}, false, err
	}
	return report.Summary(), true, nil
}

// Report returns the full report cached for identity and domain.
func (o *Orchestrator) Report(ctx context.Context, identity model.Identity, domain model.Domain) (*model.Report, bool, error) {
	return o.store.Get(ctx, identity, domain)
}

// DrillDown returns the lines of one artifact kind from the report cached
// for identity and domain.
func (o *Orchestrator) DrillDown(ctx context.Context, identity model.Identity, domain model.Domain, kind model.ArtifactKind) ([]string, bool, error) {
	return o.store.DrillDown(ctx, identity, domain, kind)
}

// stopped converts a context error into a pipeline failure.
func stopped(err error) *model.Failure {
	cause := model.ErrCanceled
	if errors.Is(err, context.DeadlineExceeded) {
		cause = model.ErrTimeout
	}
	return model.NewFailure(model.ReasonPipelineError, "scan stopped: "+err.Error(), cause)
}

func enterNotice(j *job) string {
	switch j.state {
	case model.StateInvoking:
		return fmt.Sprintf("Starting XSS scan for %s. This may take several minutes.", j.domain)
	case model.StateParsing:
		return fmt.Sprintf("Pipeline finished for %s. Reading results...", j.domain)
	default:
		return ""
	}
}

func completedNotice(report *model.Report) string {
	if n := report.Counts[model.VulnerableURLs]; n > 0 {
		return fmt.Sprintf("Scan completed for %s: %d vulnerable URL(s) found.", report.Domain, n)
	}
	return fmt.Sprintf("Scan completed for %s: no XSS vulnerabilities found.", report.Domain)
}

func failedNotice(domain model.Domain, f *model.Failure) string {
	if domain == "" {
		return "Scan failed: " + f.UserMessage()
	}
	return fmt.Sprintf("Scan failed for %s: %s", domain, f.UserMessage())
}
