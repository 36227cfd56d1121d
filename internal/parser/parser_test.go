package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xssautomation/xssbot/internal/model"
)

// writeArtifact writes content to name inside dir.
func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

// numberedLines returns n URL lines joined by newlines.
func numberedLines(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "https://example.com/page?id=%d\n", i)
	}
	return sb.String()
}

// TestParse tests parsing of a results directory.
func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("single artifact leaves other kinds unmeasured", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeArtifact(t, dir, "wayback.txt", numberedLines(12))

		report, err := New().Parse(context.Background(), dir, "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if n, ok := report.Count(model.HarvestedURLs); !ok || n != 12 {
			t.Errorf("expected 12 harvested URLs, got %d (measured=%v)", n, ok)
		}
		if len(report.Counts) != 1 || len(report.Artifacts) != 1 {
			t.Errorf("expected exactly one measured kind, got counts=%v", report.Counts)
		}
		if _, ok := report.Counts[model.VulnerableURLs]; ok {
			t.Error("vulnerable URLs must be absent from counts")
		}
		if _, ok := report.Artifacts[model.VulnerableURLs]; ok {
			t.Error("vulnerable URLs must be absent from artifacts")
		}
		if report.Domain != "example.com" {
			t.Errorf("unexpected domain %q", report.Domain)
		}
	})

	t.Run("all five artifacts", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeArtifact(t, dir, "wayback.txt", numberedLines(3))
		writeArtifact(t, dir, "subdomains.txt", "a.example.com\nb.example.com\nc.example.com\nd.example.com\ne.example.com\n")
		writeArtifact(t, dir, "live_uro1.txt", numberedLines(2))
		writeArtifact(t, dir, "xss_ready.txt", numberedLines(2))
		writeArtifact(t, dir, "Vulnerable_XSS.txt", "https://example.com/?q=<script>\n")

		report, err := New().Parse(context.Background(), dir, "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := map[model.ArtifactKind]int{
			model.HarvestedURLs:  3,
			model.Subdomains:     5,
			model.LiveURLs:       2,
			model.TestableURLs:   2,
			model.VulnerableURLs: 1,
		}
		for kind, want := range expected {
			if got, ok := report.Count(kind); !ok || got != want {
				t.Errorf("%s: got %d (measured=%v), expected %d", kind, got, ok, want)
			}
		}
		if err := report.Validate(); err != nil {
			t.Errorf("invariant violated: %v", err)
		}
	})

	t.Run("empty file is a measured zero", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeArtifact(t, dir, "Vulnerable_XSS.txt", "\n  \n\t\n")

		report, err := New().Parse(context.Background(), dir, "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n, ok := report.Count(model.VulnerableURLs); !ok || n != 0 {
			t.Errorf("expected measured zero, got %d (measured=%v)", n, ok)
		}
	})

	t.Run("carriage returns separate entries", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeArtifact(t, dir, "Vulnerable_XSS.txt", "https://a.com/x\rhttps://a.com/y\r")

		report, err := New().Parse(context.Background(), dir, "a.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n, ok := report.Count(model.VulnerableURLs); !ok || n != 2 {
			t.Errorf("expected 2 vulnerable URLs, got %d (measured=%v)", n, ok)
		}
		if got := report.Artifacts[model.VulnerableURLs]; len(got) != 2 || got[1] != "https://a.com/y" {
			t.Errorf("unexpected entries %q", got)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "results", "example.com")

		_, err := New().Parse(context.Background(), dir, "example.com")
		if !errors.Is(err, model.ErrResultsMissing) {
			t.Errorf("expected ErrResultsMissing, got %v", err)
		}
	})

	t.Run("path is a file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		file := filepath.Join(dir, "example.com")
		writeArtifact(t, dir, "example.com", "not a directory")

		_, err := New().Parse(context.Background(), file, "example.com")
		if !errors.Is(err, model.ErrResultsMissing) {
			t.Errorf("expected ErrResultsMissing, got %v", err)
		}
	})

	t.Run("unreadable artifact is absent", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		// A directory where a file is expected cannot be read as text.
		if err := os.Mkdir(filepath.Join(dir, "wayback.txt"), 0750); err != nil {
			t.Fatal(err)
		}
		writeArtifact(t, dir, "subdomains.txt", "a.example.com\n")

		report, err := New().Parse(context.Background(), dir, "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Measured(model.HarvestedURLs) {
			t.Error("expected harvested URLs to be unmeasured")
		}
		if n, _ := report.Count(model.Subdomains); n != 1 {
			t.Errorf("expected 1 subdomain, got %d", n)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeArtifact(t, dir, "wayback.txt", numberedLines(1))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := New().Parse(ctx, dir, "example.com")
		if !errors.Is(err, model.ErrParse) {
			t.Errorf("expected ErrParse, got %v", err)
		}
	})
}

// TestReadLines tests line splitting, trimming and permissive decoding.
func TestReadLines(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "trims whitespace and drops blanks",
			input:    "  a  \n\n\tb\t\n   \nc",
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "windows line endings",
			input:    "a\r\nb\r\n",
			expected: []string{"a", "b"},
		},
		{
			name:     "bare carriage returns",
			input:    "https://a.com/x\rhttps://a.com/y\r",
			expected: []string{"https://a.com/x", "https://a.com/y"},
		},
		{
			name:     "mixed line endings",
			input:    "a\rb\r\nc\nd",
			expected: []string{"a", "b", "c", "d"},
		},
		{
			name:     "preserves order and duplicates",
			input:    "z\na\nz\n",
			expected: []string{"z", "a", "z"},
		},
		{
			name:     "drops malformed bytes",
			input:    "https://exa\xffmple.com\n\xfe\xfe\nok\n",
			expected: []string{"https://example.com", "ok"},
		},
		{
			name:     "keeps valid multibyte text",
			input:    "https://example.com/é\n",
			expected: []string{"https://example.com/é"},
		},
		{
			name:     "empty input",
			input:    "",
			expected: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := readLines(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tc.expected) {
				t.Fatalf("got %q, expected %q", got, tc.expected)
			}
			for i := range got {
				if got[i] != tc.expected[i] {
					t.Errorf("line %d: got %q, expected %q", i, got[i], tc.expected[i])
				}
			}
		})
	}

	t.Run("very long line", func(t *testing.T) {
		t.Parallel()

		long := strings.Repeat("x", 1<<20)
		got, err := readLines(strings.NewReader(long + "\nshort\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || len(got[0]) != len(long) {
			t.Errorf("expected long line to survive intact, got %d lines", len(got))
		}
	})
}
