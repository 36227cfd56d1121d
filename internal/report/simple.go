package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xssautomation/xssbot/internal/model"
)

// ruleWidth is the width of the separator lines.
const ruleWidth = 70

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose lists every artifact line, not only the vulnerable URLs.
	verbose bool

	// maxLines caps the lines listed per kind. Zero means no cap.
	maxLines int
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists the lines of every measured kind.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithMaxLines caps how many lines are listed per kind.
func WithMaxLines(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		if n >= 0 {
			w.maxLines = n
		}
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary followed by the listed artifacts.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder

	summary := report.Summary()
	w.writeHeader(&sb, summary)
	w.writeCounts(&sb, summary)

	kinds := []model.ArtifactKind{model.VulnerableURLs}
	if w.verbose {
		kinds = model.AllArtifactKinds()
	}
	for _, kind := range kinds {
		lines, ok := report.Lines(kind)
		if !ok || len(lines) == 0 {
			continue
		}
		w.writeLines(&sb, kind, lines)
	}

	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs the counts and verdict only.
func (w *SimpleWriter) WriteSummary(summary model.Summary) (int, error) {
	var sb strings.Builder
	w.writeHeader(&sb, summary)
	w.writeCounts(&sb, summary)
	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                          XSS SCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Domain:    %s\n", summary.Domain)
	fmt.Fprintf(sb, "Scan Date: %s\n", summary.ScannedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Verdict:   %s\n", verdict(summary))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCounts(sb *strings.Builder, summary model.Summary) {
	writeSection(sb, "PIPELINE RESULTS")

	for _, kind := range model.AllArtifactKinds() {
		fmt.Fprintf(sb, "  %-20s %s\n", kind.Label()+":", countText(summary.Counts, kind))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeLines(sb *strings.Builder, kind model.ArtifactKind, lines []string) {
	writeSection(sb, strings.ToUpper(kind.Label()))

	shown := lines
	if w.maxLines > 0 && len(shown) > w.maxLines {
		shown = shown[:w.maxLines]
	}
	for _, line := range shown {
		fmt.Fprintf(sb, "  [+] %s\n", line)
	}
	if hidden := len(lines) - len(shown); hidden > 0 {
		fmt.Fprintf(sb, "  ... and %d more\n", hidden)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by xssbot\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}
