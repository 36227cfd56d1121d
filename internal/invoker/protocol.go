package invoker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/xssautomation/xssbot/internal/model"
)

// DomainPlaceholder is replaced by the target domain in prompt responses.
const DomainPlaceholder = "{domain}"

// PromptStep is one exchange of the pipeline's interactive prompt sequence.
type PromptStep struct {
	// Name identifies the step in diagnostics, e.g. "domain".
	Name string

	// Expect is a regular expression the child's output must match before
	// Response is written. An empty Expect writes Response immediately.
	Expect string

	// Response is written to stdin followed by a newline. It may contain
	// DomainPlaceholder.
	Response string
}

// DefaultProtocol writes the answers to the pipeline's two prompts as soon
// as it starts: the target domain, then "n" to decline custom XSS payloads.
// It works whether or not the script prints its prompts, which bash's
// read -p does not do when stdin is a pipe.
func DefaultProtocol() []PromptStep {
	return []PromptStep{
		{Name: "domain", Response: DomainPlaceholder},
		{Name: "custom-payloads", Response: "n"},
	}
}

// InteractiveProtocol writes the same answers as DefaultProtocol, each one
// only after its prompt has appeared in the output. A missing prompt fails
// the run as a protocol deviation.
func InteractiveProtocol() []PromptStep {
	steps := DefaultProtocol()
	steps[0].Expect = `(?i)domain`
	steps[1].Expect = `(?i)(payload|\(y/n\)|\[y/n\])`
	return steps
}

// compiledStep is a PromptStep with its pattern compiled.
type compiledStep struct {
	name     string
	expect   *regexp.Regexp
	response string
}

// compileProtocol validates and compiles steps.
func compileProtocol(steps []PromptStep) ([]compiledStep, error) {
	compiled := make([]compiledStep, 0, len(steps))
	for i, step := range steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		if strings.ContainsAny(step.Response, "\r\n") {
			return nil, fmt.Errorf("prompt step %q: response must be a single line", name)
		}
		cs := compiledStep{name: name, response: step.Response}
		if step.Expect != "" {
			re, err := regexp.Compile(step.Expect)
			if err != nil {
				return nil, fmt.Errorf("prompt step %q: invalid expect pattern: %w", name, err)
			}
			cs.expect = re
		}
		compiled = append(compiled, cs)
	}
	return compiled, nil
}

// render returns the stdin line for domain.
func (s compiledStep) render(domain model.Domain) string {
	return strings.ReplaceAll(s.response, DomainPlaceholder, domain.String()) + "\n"
}

// Negotiation errors. errPromptTimeout means the child is still running and
// must be stopped; errChildExited leaves the verdict to the exit status.
// errStdinClosed means an unprompted answer could not be written because
// the child stopped reading; only its exit status counts then.
var (
	errPromptTimeout = errors.New("prompt not seen in time")
	errChildExited   = errors.New("pipeline exited before the prompt protocol completed")
	errStdinClosed   = errors.New("pipeline closed stdin before reading every answer")
)

// negotiator drives the prompt protocol against a running child.
type negotiator struct {
	steps         []compiledStep
	promptTimeout time.Duration
	output        *transcript
	exited        <-chan struct{}
}

// run writes each step's response to stdin once its prompt has been seen,
// then closes stdin.
func (n *negotiator) run(ctx context.Context, stdin io.WriteCloser, domain model.Domain) error {
	defer stdin.Close()

	for _, step := range n.steps {
		if step.expect != nil {
			if err := n.await(ctx, step); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(stdin, step.render(domain)); err != nil {
			if step.expect == nil {
				return fmt.Errorf("prompt %q: writing response: %w: %w", step.name, errStdinClosed, err)
			}
			return fmt.Errorf("prompt %q: writing response: %w: %w", step.name, errChildExited, err)
		}
	}
	return nil
}

// await blocks until step.expect matches new output, the child exits, the
// prompt timeout elapses or ctx is done.
func (n *negotiator) await(ctx context.Context, step compiledStep) error {
	var timeout <-chan time.Time
	if n.promptTimeout > 0 {
		timer := time.NewTimer(n.promptTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		changed := n.output.changed()
		if n.output.consume(step.expect) {
			return nil
		}

		select {
		case <-changed:
		case <-n.exited:
			// Output is complete once the child has been reaped.
			if n.output.consume(step.expect) {
				return nil
			}
			return fmt.Errorf("prompt %q (%s): %w", step.name, step.expect, errChildExited)
		case <-timeout:
			return fmt.Errorf("prompt %q (%s): %w (waited %s)", step.name, step.expect, errPromptTimeout, n.promptTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
