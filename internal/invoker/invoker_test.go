package invoker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xssautomation/xssbot/internal/model"
)

// promptingScript mimics the pipeline: it prints both prompts, records the
// answers and the environment, and creates the domain's results directory.
const promptingScript = `#!/bin/bash
echo "Enter the target domain:"
read domain
echo "Do you want to use custom XSS payloads? (y/n)"
read answer
mkdir -p "results/$domain"
echo "$domain $answer" > "results/$domain/answers.txt"
echo "$PATH" > "results/$domain/path.txt"
echo "${XSSBOT_TEST_VAR:-unset}" > "results/$domain/var.txt"
pwd > "results/$domain/pwd.txt"
`

// silentScript prompts with read -p, which prints nothing when stdin is
// not a terminal.
const silentScript = `#!/bin/bash
read -p "Enter the target domain: " domain
read -p "Custom payloads? (y/n) " answer
mkdir -p "results/$domain"
echo "$domain $answer" > "results/$domain/answers.txt"
`

type recordingSink struct {
	mu       sync.Mutex
	statuses []string
}

func (s *recordingSink) Progress(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.statuses)
}

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture writes script into a fresh pipeline directory and returns an
// Invoker for it with short timeouts.
func newFixture(t *testing.T, script string, mutate func(*Config)) (*Invoker, string) {
	t.Helper()
	requireBash(t)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "xss_automation.sh"), []byte(script), 0o600); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	cfg := DefaultConfig(dir)
	cfg.Timeout = 20 * time.Second
	cfg.PromptTimeout = 5 * time.Second
	cfg.WaitDelay = 500 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	inv, err := New(cfg, WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return inv, dir
}

func readResult(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // test fixture path
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return strings.TrimSpace(string(data))
}

func requireFailure(t *testing.T, err error, reason error, cause error) *model.Failure {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var f *model.Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected *model.Failure, got %T: %v", err, err)
	}
	if !errors.Is(err, reason) {
		t.Errorf("expected reason %v, got %v", reason, err)
	}
	if cause != nil && !errors.Is(err, cause) {
		t.Errorf("expected cause %v, got %v", cause, err)
	}
	return f
}

// TestInvokeAnswersPrompts tests the full prompt protocol against a script
// that prints its prompts.
func TestInvokeAnswersPrompts(t *testing.T) {
	t.Parallel()

	inv, dir := newFixture(t, promptingScript, func(cfg *Config) {
		cfg.PathAppend = []string{"/opt/xss-tools/bin"}
		cfg.Env = map[string]string{"XSSBOT_TEST_VAR": "set"}
	})
	sink := &recordingSink{}

	outcome, err := inv.Invoke(context.Background(), "example.com", sink)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	expectedDir := filepath.Join(dir, "results", "example.com")
	if outcome.ResultsDir != expectedDir {
		t.Errorf("ResultsDir = %q, expected %q", outcome.ResultsDir, expectedDir)
	}
	if outcome.ExitCode != 0 {
		t.Errorf("ExitCode = %d, expected 0", outcome.ExitCode)
	}
	if outcome.Duration <= 0 {
		t.Error("expected positive duration")
	}

	resultDir := filepath.Join("results", "example.com")
	if got := readResult(t, dir, filepath.Join(resultDir, "answers.txt")); got != "example.com n" {
		t.Errorf("answers = %q, expected %q", got, "example.com n")
	}
	if got := readResult(t, dir, filepath.Join(resultDir, "path.txt")); !strings.HasSuffix(got, ":/opt/xss-tools/bin") {
		t.Errorf("PATH = %q, expected appended tool directory", got)
	}
	if got := readResult(t, dir, filepath.Join(resultDir, "var.txt")); got != "set" {
		t.Errorf("XSSBOT_TEST_VAR = %q, expected %q", got, "set")
	}
	wantPwd, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	gotPwd, err := filepath.EvalSymlinks(readResult(t, dir, filepath.Join(resultDir, "pwd.txt")))
	if err != nil {
		t.Fatal(err)
	}
	if gotPwd != wantPwd {
		t.Errorf("working directory = %q, expected %q", gotPwd, wantPwd)
	}

	if len(sink.all()) == 0 {
		t.Error("expected at least one progress update")
	}
}

// TestInvokeSilentPrompts tests the default configuration against a script
// whose prompts never reach the output.
func TestInvokeSilentPrompts(t *testing.T) {
	t.Parallel()

	inv, dir := newFixture(t, silentScript, func(cfg *Config) {
		cfg.PromptTimeout = 2 * time.Second
	})

	if _, err := inv.Invoke(context.Background(), "test.com", nil); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got := readResult(t, dir, filepath.Join("results", "test.com", "answers.txt")); got != "test.com n" {
		t.Errorf("answers = %q, expected %q", got, "test.com n")
	}
}

// TestInvokeInteractiveProtocol tests waiting for each prompt before
// answering it.
func TestInvokeInteractiveProtocol(t *testing.T) {
	t.Parallel()

	inv, dir := newFixture(t, promptingScript, func(cfg *Config) {
		cfg.Protocol = InteractiveProtocol()
	})

	if _, err := inv.Invoke(context.Background(), "example.com", nil); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got := readResult(t, dir, filepath.Join("results", "example.com", "answers.txt")); got != "example.com n" {
		t.Errorf("answers = %q, expected %q", got, "example.com n")
	}
}

// TestInvokeNonZeroExit tests that a failing pipeline reports its exit code
// and a bounded stderr excerpt.
func TestInvokeNonZeroExit(t *testing.T) {
	t.Parallel()

	t.Run("after answering prompts", func(t *testing.T) {
		t.Parallel()

		script := `#!/bin/bash
echo "domain:"
read d
echo "payloads (y/n)"
read a
echo "subfinder: command not found" >&2
exit 127
`
		inv, _ := newFixture(t, script, nil)
		_, err := inv.Invoke(context.Background(), "example.com", nil)
		f := requireFailure(t, err, model.ErrPipeline, model.ErrNonZeroExit)
		if f.ExitCode != 127 {
			t.Errorf("ExitCode = %d, expected 127", f.ExitCode)
		}
		if !strings.Contains(f.Detail, "subfinder: command not found") {
			t.Errorf("Detail = %q, expected stderr excerpt", f.Detail)
		}
	})

	t.Run("before the first prompt", func(t *testing.T) {
		t.Parallel()

		script := "#!/bin/bash\necho 'missing dependency' >&2\nexit 1\n"
		inv, _ := newFixture(t, script, nil)
		_, err := inv.Invoke(context.Background(), "example.com", nil)
		f := requireFailure(t, err, model.ErrPipeline, model.ErrNonZeroExit)
		if f.ExitCode != 1 {
			t.Errorf("ExitCode = %d, expected 1", f.ExitCode)
		}
		if errors.Is(err, model.ErrProtocolDeviation) {
			t.Error("exit status should take precedence over the unfinished protocol")
		}
	})

	t.Run("long stderr is truncated", func(t *testing.T) {
		t.Parallel()

		script := "#!/bin/bash\nprintf 'e%.0s' $(seq 1 1000) >&2\nexit 2\n"
		inv, _ := newFixture(t, script, nil)
		_, err := inv.Invoke(context.Background(), "example.com", nil)
		f := requireFailure(t, err, model.ErrPipeline, model.ErrNonZeroExit)
		if n := len([]rune(f.Detail)); n > model.MaxDetailLength {
			t.Errorf("Detail has %d characters, expected at most %d", n, model.MaxDetailLength)
		}
	})

	t.Run("stdout used when stderr is empty", func(t *testing.T) {
		t.Parallel()

		script := "#!/bin/bash\necho 'httpx failed on batch 3'\nexit 3\n"
		inv, _ := newFixture(t, script, nil)
		_, err := inv.Invoke(context.Background(), "example.com", nil)
		f := requireFailure(t, err, model.ErrPipeline, model.ErrNonZeroExit)
		if !strings.Contains(f.Detail, "httpx failed on batch 3") {
			t.Errorf("Detail = %q, expected stdout excerpt", f.Detail)
		}
	})
}

// TestInvokeMissingScript tests that nothing is spawned without a script.
func TestInvokeMissingScript(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		setup func(dir string) error
	}{
		{"absent", func(string) error { return nil }},
		{"directory", func(dir string) error { return os.Mkdir(filepath.Join(dir, "xss_automation.sh"), 0o750) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			if err := tc.setup(dir); err != nil {
				t.Fatal(err)
			}
			inv, err := New(DefaultConfig(dir), WithLogger(discardLogger()))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			requireFailure(t, inv.Check(), model.ErrPipelineNotFound, nil)

			sink := &recordingSink{}
			_, err = inv.Invoke(context.Background(), "example.com", sink)
			requireFailure(t, err, model.ErrPipelineNotFound, nil)
			if got := sink.all(); len(got) != 0 {
				t.Errorf("expected no progress updates, got %v", got)
			}
		})
	}
}

// TestInvokeTimeout tests that the overall deadline stops a hung pipeline.
func TestInvokeTimeout(t *testing.T) {
	t.Parallel()

	script := `#!/bin/bash
echo "domain:"
read d
echo "(y/n)"
read a
sleep 60
`
	inv, _ := newFixture(t, script, func(cfg *Config) {
		cfg.Timeout = 500 * time.Millisecond
		cfg.WaitDelay = 200 * time.Millisecond
	})

	start := time.Now()
	_, err := inv.Invoke(context.Background(), "example.com", nil)
	requireFailure(t, err, model.ErrPipeline, model.ErrTimeout)
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Invoke took %s, expected the deadline to stop it", elapsed)
	}
}

// TestInvokePromptTimeout tests that a missing prompt is reported as a
// protocol deviation.
func TestInvokePromptTimeout(t *testing.T) {
	t.Parallel()

	script := "#!/bin/bash\necho 'installing tools...'\nsleep 60\n"
	inv, _ := newFixture(t, script, func(cfg *Config) {
		cfg.Protocol = InteractiveProtocol()
		cfg.PromptTimeout = 300 * time.Millisecond
		cfg.WaitDelay = 200 * time.Millisecond
	})

	_, err := inv.Invoke(context.Background(), "example.com", nil)
	f := requireFailure(t, err, model.ErrPipeline, model.ErrProtocolDeviation)
	if !strings.Contains(f.Detail, "domain") {
		t.Errorf("Detail = %q, expected the missing prompt's name", f.Detail)
	}
}

// TestInvokeCleanExitWithoutPrompts tests a pipeline that exits 0 without
// reading its answers.
func TestInvokeCleanExitWithoutPrompts(t *testing.T) {
	t.Parallel()

	const script = "#!/bin/bash\necho 'nothing to do'\nexit 0\n"

	t.Run("unread answers are dropped", func(t *testing.T) {
		t.Parallel()

		inv, _ := newFixture(t, script, nil)
		if _, err := inv.Invoke(context.Background(), "example.com", nil); err != nil {
			t.Errorf("Invoke() error = %v", err)
		}
	})

	t.Run("missing prompts are a deviation", func(t *testing.T) {
		t.Parallel()

		inv, _ := newFixture(t, script, func(cfg *Config) {
			cfg.Protocol = InteractiveProtocol()
		})
		_, err := inv.Invoke(context.Background(), "example.com", nil)
		requireFailure(t, err, model.ErrPipeline, model.ErrProtocolDeviation)
	})
}

// TestInvokeCanceled tests cancellation by the caller.
func TestInvokeCanceled(t *testing.T) {
	t.Parallel()

	inv, _ := newFixture(t, "#!/bin/bash\necho 'domain:'\nsleep 60\n", func(cfg *Config) {
		cfg.WaitDelay = 200 * time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	sink := model.ProgressFunc(func(string) {
		time.AfterFunc(200*time.Millisecond, cancel)
	})

	_, err := inv.Invoke(ctx, "example.com", sink)
	requireFailure(t, err, model.ErrPipeline, model.ErrCanceled)
}

// TestNew tests configuration validation.
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		inv, err := New(Config{Dir: "/opt/pipeline", Script: "run.sh"})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if got := inv.ScriptPath(); got != filepath.Join("/opt/pipeline", "run.sh") {
			t.Errorf("ScriptPath() = %q", got)
		}
		if got := inv.ResultsDir("a.com"); got != filepath.Join("/opt/pipeline", "results", "a.com") {
			t.Errorf("ResultsDir() = %q", got)
		}
		if inv.cfg.Shell != DefaultShell {
			t.Errorf("Shell = %q, expected %q", inv.cfg.Shell, DefaultShell)
		}
	})

	t.Run("absolute script and results dir", func(t *testing.T) {
		t.Parallel()

		inv, err := New(Config{Dir: "/opt/pipeline", Script: "/usr/local/bin/scan.sh", ResultsDir: "/var/xss"})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if got := inv.ScriptPath(); got != "/usr/local/bin/scan.sh" {
			t.Errorf("ScriptPath() = %q", got)
		}
		if got := inv.ResultsDir("a.com"); got != filepath.Join("/var/xss", "a.com") {
			t.Errorf("ResultsDir() = %q", got)
		}
	})

	errorCases := []struct {
		name string
		cfg  Config
	}{
		{"missing dir", Config{Script: "run.sh"}},
		{"missing script", Config{Dir: "/opt"}},
		{"negative timeout", Config{Dir: "/opt", Script: "run.sh", Timeout: -time.Second}},
		{"bad pattern", Config{Dir: "/opt", Script: "run.sh", Protocol: []PromptStep{{Expect: "("}}}},
		{"multi-line response", Config{Dir: "/opt", Script: "run.sh", Protocol: []PromptStep{{Response: "a\nb"}}}},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tc.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// TestEnvironment tests how the child's environment is assembled.
func TestEnvironment(t *testing.T) {
	t.Setenv("PATH", "/usr/bin:/bin")
	t.Setenv("XSSBOT_ENV_KEEP", "parent")
	t.Setenv("GOPATH", "/parent/go")

	inv, err := New(Config{
		Dir:        "/opt/pipeline",
		Script:     "run.sh",
		PathAppend: []string{"/usr/local/go/bin", ""},
		Env:        map[string]string{"GOPATH": "/home/scanner/go"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	env := inv.environment()
	lookup := func(key string) []string {
		var values []string
		for _, kv := range env {
			if k, v, _ := strings.Cut(kv, "="); k == key {
				values = append(values, v)
			}
		}
		return values
	}

	if got := lookup("PATH"); len(got) != 1 || got[0] != "/usr/bin:/bin:/usr/local/go/bin" {
		t.Errorf("PATH = %v", got)
	}
	if got := lookup("GOPATH"); len(got) != 1 || got[0] != "/home/scanner/go" {
		t.Errorf("GOPATH = %v", got)
	}
	if got := lookup("XSSBOT_ENV_KEEP"); len(got) != 1 || got[0] != "parent" {
		t.Errorf("XSSBOT_ENV_KEEP = %v", got)
	}
	if got := os.Getenv("PATH"); got != "/usr/bin:/bin" {
		t.Errorf("parent PATH modified: %q", got)
	}
}
