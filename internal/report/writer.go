package report

import (
	"io"
	"strconv"

	"github.com/xssautomation/xssbot/internal/model"
)

// notMeasured is shown in place of a count for an absent artifact kind.
const notMeasured = "not measured"

// Writer writes scan results in one format.
type Writer interface {
	// Write outputs the full report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.Report) (int, error)

	// WriteSummary outputs only the counts and the verdict.
	WriteSummary(summary model.Summary) (int, error)
}

// MultiWriter writes to multiple Writers, e.g. text to the terminal and
// JSON to a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written and stops on the first error.
func (m *MultiWriter) Write(report *model.Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to all configured Writers.
func (m *MultiWriter) WriteSummary(summary model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// countText renders kind's count from counts, or notMeasured.
func countText(counts map[model.ArtifactKind]int, kind model.ArtifactKind) string {
	n, ok := counts[kind]
	if !ok {
		return notMeasured
	}
	return strconv.Itoa(n)
}

// verdict returns the one-line conclusion for a summary.
func verdict(summary model.Summary) string {
	if summary.Vulnerable {
		return "XSS vulnerabilities found"
	}
	if _, ok := summary.Count(model.VulnerableURLs); !ok {
		return "No vulnerability results produced"
	}
	return "No XSS vulnerabilities found"
}

// unmeasured returns the kinds absent from counts, in pipeline order.
func unmeasured(counts map[model.ArtifactKind]int) []model.ArtifactKind {
	var kinds []model.ArtifactKind
	for _, kind := range model.AllArtifactKinds() {
		if _, ok := counts[kind]; !ok {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}
