package parser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xssautomation/xssbot/internal/model"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Parser reads pipeline artifacts from a results directory.
// A Parser is stateless and safe for concurrent use.
type Parser struct {
	logger *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for per-file warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Parse builds a report for domain from the files in resultsDir.
//
// It fails with model.ReasonResultsMissing when resultsDir does not exist or
// is not a directory. Problems with individual files are logged and leave
// the corresponding kind unmeasured.
func (p *Parser) Parse(ctx context.Context, resultsDir string, domain model.Domain) (*model.Report, error) {
	info, err := os.Stat(resultsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.NewFailure(model.ReasonResultsMissing, "no results directory for "+domain.String(), err)
		}
		return nil, model.NewFailure(model.ReasonParseError, "cannot access results directory", err)
	}
	if !info.IsDir() {
		return nil, model.NewFailure(model.ReasonResultsMissing, resultsDir+" is not a directory", nil)
	}

	report := model.NewReport(domain)

	for _, kind := range model.AllArtifactKinds() {
		if err := ctx.Err(); err != nil {
			return nil, model.NewFailure(model.ReasonParseError, "parsing interrupted", err)
		}

		path := filepath.Join(resultsDir, kind.Filename())
		lines, err := readArtifact(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				p.logger.Debug("artifact not produced",
					"domain", domain,
					"kind", kind,
					"file", kind.Filename(),
				)
			} else {
				p.logger.Warn("skipping unreadable artifact",
					"domain", domain,
					"kind", kind,
					"file", path,
					"error", err,
				)
			}
			continue
		}

		report.SetArtifact(kind, lines)
		p.logger.Debug("artifact parsed",
			"domain", domain,
			"kind", kind,
			"count", len(lines),
		)
	}

	return report, nil
}

// readArtifact returns the trimmed, non-empty lines of the file at path.
func readArtifact(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from a fixed file name
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	return readLines(f)
}

// normalizeText replaces ill-formed UTF-8 with U+FFFD and then removes every
// U+FFFD, so malformed bytes disappear instead of aborting the read. A bare
// carriage return becomes a newline; the blank line this leaves inside a
// CRLF pair is skipped like any other.
func normalizeText() transform.Transformer {
	return transform.Chain(
		runes.ReplaceIllFormed(),
		runes.Remove(runes.Predicate(func(r rune) bool { return r == utf8.RuneError })),
		runes.Map(func(r rune) rune {
			if r == '\r' {
				return '\n'
			}
			return r
		}),
	)
}

// readLines splits r into lines at "\n", "\r\n" or a bare "\r", trimming
// surrounding whitespace and skipping lines that end up empty. Lines of any
// length are accepted.
func readLines(r io.Reader) ([]string, error) {
	reader := bufio.NewReader(transform.NewReader(r, normalizeText()))

	lines := make([]string, 0)
	for {
		raw, err := reader.ReadString('\n')
		if line := strings.TrimSpace(raw); line != "" {
			lines = append(lines, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return nil, err
		}
	}
}
