package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/xssautomation/xssbot/internal/model"
)

// JSONWriter writes one JSON document per call, for tool integration.
// Payload URLs are written as-is: "<script>" is not escaped to "\u003cscript\u003e".
type JSONWriter struct {
	baseWriter

	prefix string
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent pretty-prints the output as json.Encoder.SetIndent does.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.prefix = prefix
		w.indent = indent
	}
}

// WithPrettyPrint indents with two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter writing compact JSON to output.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the full report.
func (w *JSONWriter) Write(report *model.Report) (int, error) {
	return w.encode(report)
}

// WriteSummary outputs the counts and verdict.
func (w *JSONWriter) WriteSummary(summary model.Summary) (int, error) {
	return w.encode(summary)
}

// encode writes v followed by a newline. Nothing is written if v cannot be
// encoded.
func (w *JSONWriter) encode(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(w.prefix, w.indent)
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}

// JSONReport is the exported form of a scan: the report plus the version
// that produced it, its summary and the change since the previous scan.
type JSONReport struct {
	Version string        `json:"version"`
	Summary model.Summary `json:"summary"`
	Report  *model.Report `json:"report"`

	// Delta is omitted for a first scan.
	Delta *model.Delta `json:"delta,omitempty"`
}

// NewJSONReport creates a JSONReport. delta may be nil.
func NewJSONReport(report *model.Report, delta *model.Delta, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Summary: report.Summary(),
		Report:  report,
		Delta:   delta,
	}
}

// FullJSONWriter writes reports wrapped in a JSONReport.
type FullJSONWriter struct {
	*JSONWriter

	version string
	delta   *model.Delta
}

// NewFullJSONWriter creates a FullJSONWriter stamping version into every
// document.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// WithDelta returns a copy of w that includes delta in the output.
func (w *FullJSONWriter) WithDelta(delta *model.Delta) *FullJSONWriter {
	c := *w
	c.delta = delta
	return &c
}

// Write outputs the wrapped report.
func (w *FullJSONWriter) Write(report *model.Report) (int, error) {
	return w.encode(NewJSONReport(report, w.delta, w.version))
}
