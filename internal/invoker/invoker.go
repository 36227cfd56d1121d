package invoker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/xssautomation/xssbot/internal/model"
	"golang.org/x/sync/errgroup"
)

// Default invocation settings.
const (
	// DefaultShell interprets the pipeline script.
	DefaultShell = "bash"

	// DefaultTimeout bounds a whole pipeline run. Full runs against large
	// sites take 5-15 minutes.
	DefaultTimeout = 45 * time.Minute

	// DefaultPromptTimeout bounds the wait for each expected prompt. The
	// script may install missing tools before it first prompts.
	DefaultPromptTimeout = 10 * time.Minute

	// DefaultWaitDelay is how long the child gets after SIGTERM before it is
	// killed and its pipes are closed.
	DefaultWaitDelay = 5 * time.Second

	// DefaultOutputLimit bounds each captured output buffer, in bytes.
	DefaultOutputLimit = 64 * 1024
)

// excerptTailLength is how much trailing output goes into diagnostics.
const excerptTailLength = 2 * model.MaxDetailLength

// Config describes how to run the pipeline.
type Config struct {
	// Shell is the interpreter used to run Script.
	Shell string

	// Dir is the pipeline's installation directory and the child's working
	// directory.
	Dir string

	// Script is the pipeline entry point. A relative path is resolved
	// against Dir.
	Script string

	// ResultsDir is where the pipeline creates one directory per domain.
	// Empty means Dir/results.
	ResultsDir string

	// PathAppend lists directories appended to the child's PATH.
	PathAppend []string

	// Env sets or overrides variables in the child's environment.
	Env map[string]string

	// Protocol is the ordered prompt sequence answered on stdin. The default
	// writes every answer up front.
	Protocol []PromptStep

	// Timeout bounds the whole run. Zero disables the deadline.
	Timeout time.Duration

	// PromptTimeout bounds the wait for each expected prompt. Zero waits
	// until the child exits or Timeout fires. Steps without Expect never
	// wait.
	PromptTimeout time.Duration

	// WaitDelay is the grace period between SIGTERM and SIGKILL.
	WaitDelay time.Duration

	// OutputLimit bounds each captured output buffer, in bytes.
	OutputLimit int
}

// DefaultConfig returns a Config for a pipeline installed in dir.
func DefaultConfig(dir string) Config {
	return Config{
		Shell:         DefaultShell,
		Dir:           dir,
		Script:        "xss_automation.sh",
		Protocol:      DefaultProtocol(),
		Timeout:       DefaultTimeout,
		PromptTimeout: DefaultPromptTimeout,
		WaitDelay:     DefaultWaitDelay,
		OutputLimit:   DefaultOutputLimit,
	}
}

// Invoker runs the pipeline. It holds no per-run state and is safe for
// concurrent use; serializing runs for the same domain is the caller's job.
type Invoker struct {
	cfg        Config
	scriptPath string
	resultsDir string
	protocol   []compiledStep
	logger     *slog.Logger
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(inv *Invoker) {
		inv.logger = logger
	}
}

// New validates cfg and creates an Invoker. It does not check that the
// script exists; see Check.
func New(cfg Config, opts ...Option) (*Invoker, error) {
	if cfg.Dir == "" {
		return nil, errors.New("pipeline directory is required")
	}
	if cfg.Script == "" {
		return nil, errors.New("pipeline script is required")
	}
	if cfg.Shell == "" {
		cfg.Shell = DefaultShell
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = DefaultWaitDelay
	}
	if cfg.OutputLimit <= 0 {
		cfg.OutputLimit = DefaultOutputLimit
	}
	if cfg.Timeout < 0 || cfg.PromptTimeout < 0 {
		return nil, errors.New("pipeline timeouts must not be negative")
	}

	protocol, err := compileProtocol(cfg.Protocol)
	if err != nil {
		return nil, err
	}

	scriptPath := cfg.Script
	if !filepath.IsAbs(scriptPath) {
		scriptPath = filepath.Join(cfg.Dir, scriptPath)
	}
	resultsDir := cfg.ResultsDir
	if resultsDir == "" {
		resultsDir = filepath.Join(cfg.Dir, "results")
	}

	inv := &Invoker{
		cfg:        cfg,
		scriptPath: scriptPath,
		resultsDir: resultsDir,
		protocol:   protocol,
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.logger == nil {
		inv.logger = slog.Default()
	}
	return inv, nil
}

// ScriptPath returns the resolved pipeline entry point.
func (inv *Invoker) ScriptPath() string {
	return inv.scriptPath
}

// ResultsDir returns the directory the pipeline writes domain's results to.
func (inv *Invoker) ResultsDir(domain model.Domain) string {
	return filepath.Join(inv.resultsDir, domain.String())
}

// Check verifies that the pipeline script exists and is a regular file.
// It returns a *model.Failure with model.ReasonPipelineNotFound otherwise.
func (inv *Invoker) Check() error {
	info, err := os.Stat(inv.scriptPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.NewFailure(model.ReasonPipelineNotFound, "no pipeline script at "+inv.scriptPath, err)
		}
		return model.NewFailure(model.ReasonPipelineNotFound, "cannot access pipeline script "+inv.scriptPath, err)
	}
	if info.IsDir() {
		return model.NewFailure(model.ReasonPipelineNotFound, inv.scriptPath+" is a directory", nil)
	}
	return nil
}

// Invoke runs the pipeline for domain and waits for it to finish.
//
// At least one status update is sent to sink once the child has started.
// On exit status 0 the returned outcome points at the domain's results
// directory. Every other result is a *model.Failure; nothing panics out of
// Invoke for a misbehaving child.
func (inv *Invoker) Invoke(ctx context.Context, domain model.Domain, sink model.ProgressSink) (*model.PipelineOutcome, error) {
	if sink == nil {
		sink = model.DiscardProgress
	}
	if err := inv.Check(); err != nil {
		return nil, err
	}

	deadlineCtx := ctx
	if inv.cfg.Timeout > 0 {
		var cancelDeadline context.CancelFunc
		deadlineCtx, cancelDeadline = context.WithTimeout(ctx, inv.cfg.Timeout)
		defer cancelDeadline()
	}
	runCtx, abort := context.WithCancel(deadlineCtx)
	defer abort()

	cmd := exec.CommandContext(runCtx, inv.cfg.Shell, inv.scriptPath) //nolint:gosec // operator-configured pipeline
	cmd.Dir = inv.cfg.Dir
	cmd.Env = inv.environment()
	cmd.WaitDelay = inv.cfg.WaitDelay
	prepareCommand(cmd)

	output := newTranscript(inv.cfg.OutputLimit)
	stderrHead := newHeadBuffer(inv.cfg.OutputLimit)
	stdoutTail := newTailBuffer(inv.cfg.OutputLimit)
	cmd.Stdout = io.MultiWriter(stdoutTail, output)
	cmd.Stderr = io.MultiWriter(stderrHead, output)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, model.NewFailure(model.ReasonPipelineError, "creating stdin pipe: "+err.Error(), model.ErrSpawn)
	}

	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		_ = stdin.Close() //nolint:errcheck // nothing was started
		inv.logger.Error("failed to start pipeline",
			"domain", domain,
			"script", inv.scriptPath,
			"error", err,
		)
		return nil, model.NewFailure(model.ReasonPipelineError, err.Error(), model.ErrSpawn)
	}

	pid := cmd.Process.Pid
	inv.logger.Info("pipeline started",
		"domain", domain,
		"pid", pid,
		"timeout", inv.cfg.Timeout,
	)
	sink.Progress(fmt.Sprintf("Pipeline running for %s (pid %d). This usually takes 5-15 minutes.", domain, pid))

	exited := make(chan struct{})
	neg := &negotiator{
		steps:         inv.protocol,
		promptTimeout: inv.cfg.PromptTimeout,
		output:        output,
		exited:        exited,
	}

	var waitErr error
	g := new(errgroup.Group)
	g.Go(func() error {
		waitErr = cmd.Wait()
		close(exited)
		return nil
	})
	g.Go(func() error {
		err := neg.run(runCtx, stdin, domain)
		if errors.Is(err, errPromptTimeout) {
			abort()
		}
		return err
	})
	negErr := g.Wait()
	elapsed := time.Since(startTime)

	if runCtx.Err() != nil {
		killGroup(cmd.Process)
	}

	failure := inv.classify(ctx, deadlineCtx, negErr, waitErr, stderrHead.String(), output.tail(excerptTailLength), stdoutTail.String())
	if failure != nil {
		inv.logger.Warn("pipeline failed",
			"domain", domain,
			"pid", pid,
			"elapsed", elapsed,
			"reason", failure.Reason,
			"error", failure,
		)
		return nil, failure
	}

	inv.logger.Info("pipeline finished",
		"domain", domain,
		"pid", pid,
		"elapsed", elapsed,
	)
	return &model.PipelineOutcome{
		ExitCode:   0,
		ResultsDir: inv.ResultsDir(domain),
		Duration:   elapsed,
	}, nil
}

// classify maps the end state of a run to a failure, or nil on success.
// Cancellation and deadline take precedence over everything the child did
// afterwards, since killing it makes its exit status meaningless.
func (inv *Invoker) classify(ctx, deadlineCtx context.Context, negErr, waitErr error, stderr, pendingTail, stdoutTail string) *model.Failure {
	if err := ctx.Err(); err != nil {
		cause := model.ErrCanceled
		if errors.Is(err, context.DeadlineExceeded) {
			cause = model.ErrTimeout
		}
		return model.NewFailure(model.ReasonPipelineError, "scan stopped: "+err.Error(), cause)
	}
	if errors.Is(deadlineCtx.Err(), context.DeadlineExceeded) {
		return model.NewFailure(model.ReasonPipelineError,
			fmt.Sprintf("no result after %s", inv.cfg.Timeout), model.ErrTimeout)
	}
	if errors.Is(negErr, errPromptTimeout) {
		return deviation(negErr, pendingTail)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(waitErr, &exitErr):
			detail := excerpt(stderr, stdoutTail)
			if detail == "" {
				detail = exitErr.String()
			}
			f := model.NewFailure(model.ReasonPipelineError, detail, model.ErrNonZeroExit)
			f.ExitCode = exitErr.ExitCode()
			return f
		case errors.Is(waitErr, exec.ErrWaitDelay):
			// Exit status 0, but a background tool kept the output pipes open.
			inv.logger.Warn("pipeline left output pipes open after exiting", "error", waitErr)
		default:
			return model.NewFailure(model.ReasonPipelineError, waitErr.Error(), model.ErrSpawn)
		}
	}

	switch {
	case errors.Is(negErr, errStdinClosed):
		// Answers the script never reads are dropped, as with a plain
		// stdin redirect.
		inv.logger.Debug("pipeline did not read every answer", "error", negErr)
	case negErr != nil:
		return deviation(negErr, pendingTail)
	}
	return nil
}

// deviation builds a protocol failure naming the missing prompt and what the
// child printed instead.
func deviation(negErr error, pendingTail string) *model.Failure {
	detail := negErr.Error()
	if tail := strings.TrimSpace(pendingTail); tail != "" {
		detail += "; last output: " + lastChars(tail, model.MaxDetailLength/2)
	}
	return model.NewFailure(model.ReasonPipelineError, detail, model.ErrProtocolDeviation)
}

// excerpt prefers the start of stderr and falls back to the end of stdout.
func excerpt(stderr, stdoutTail string) string {
	if s := strings.TrimSpace(stderr); s != "" {
		return s
	}
	return lastChars(strings.TrimSpace(stdoutTail), model.MaxDetailLength)
}

// lastChars returns the last n characters of s.
func lastChars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// environment returns the child's environment: the parent's variables with
// PATH extended and Env applied on top. The parent is not modified.
func (inv *Invoker) environment() []string {
	path := os.Getenv("PATH")
	if v, ok := inv.cfg.Env["PATH"]; ok {
		path = v
	}
	for _, dir := range inv.cfg.PathAppend {
		if dir == "" {
			continue
		}
		if path == "" {
			path = dir
		} else {
			path += string(os.PathListSeparator) + dir
		}
	}

	base := os.Environ()
	env := make([]string, 0, len(base)+len(inv.cfg.Env)+1)
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if key == "PATH" {
			continue
		}
		if _, overridden := inv.cfg.Env[key]; overridden {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, "PATH="+path)

	keys := make([]string, 0, len(inv.cfg.Env))
	for key := range inv.cfg.Env {
		if key != "PATH" {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	for _, key := range keys {
		env = append(env, key+"="+inv.cfg.Env[key])
	}
	return env
}
