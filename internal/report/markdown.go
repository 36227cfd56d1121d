package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/xssautomation/xssbot/internal/model"
)

// MarkdownWriter outputs reports in Markdown for documentation and sharing.
type MarkdownWriter struct {
	baseWriter

	delta *model.Delta
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WithDelta returns a copy of w that adds a section on what changed since
// the previous scan.
func (w *MarkdownWriter) WithDelta(delta *model.Delta) *MarkdownWriter {
	c := *w
	c.delta = delta
	return &c
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := report.Summary()

	w.writeHeader(md, summary)
	w.writeCounts(md, summary)
	w.writeVulnerable(md, report)
	w.writeTestable(md, report)
	if w.delta != nil {
		w.writeDelta(md, w.delta)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the counts and verdict in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeCounts(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary model.Summary) {
	md.H1("XSS Scan Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Domain", "`" + summary.Domain.String() + "`"},
			{"Scan Date", summary.ScannedAt.Format("2006-01-02 15:04:05 MST")},
			{"Verdict", w.verdictText(summary)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) verdictText(summary model.Summary) string {
	if summary.Vulnerable {
		return "🚨 " + verdict(summary)
	}
	if _, ok := summary.Count(model.VulnerableURLs); !ok {
		return "⚠️ " + verdict(summary)
	}
	return "✅ " + verdict(summary)
}

func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, summary model.Summary) {
	md.H2("Pipeline Results")
	md.PlainText("")

	kinds := model.AllArtifactKinds()
	rows := make([][]string, len(kinds))
	for i, kind := range kinds {
		rows[i] = []string{kind.Label(), "`" + kind.Filename() + "`", countText(summary.Counts, kind)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Stage", "File", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, summary)
	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart of the non-zero counts.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pipeline Output"),
		piechart.WithShowData(true),
	)

	var plotted int
	for _, kind := range model.AllArtifactKinds() {
		if n, ok := summary.Count(kind); ok && n > 0 {
			chart.LabelAndIntValue(kind.Label(), uint64(n))
			plotted++
		}
	}
	if plotted == 0 {
		return
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary model.Summary) {
	missing := unmeasured(summary.Counts)

	switch {
	case summary.Vulnerable:
		n, _ := summary.Count(model.VulnerableURLs)
		md.Cautionf("XSS vulnerabilities detected! %d URL(s) executed an injected payload.", n)
	case len(missing) == len(model.AllArtifactKinds()):
		md.Warningf("The pipeline produced no result files for %s.", summary.Domain)
	case len(missing) > 0:
		labels := make([]string, len(missing))
		for i, kind := range missing {
			labels[i] = kind.Label()
		}
		md.Importantf("Some stages produced no result file: %s.", strings.Join(labels, ", "))
	default:
		md.Tip("No XSS vulnerabilities detected.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeVulnerable(md *markdown.Markdown, report *model.Report) {
	lines, ok := report.Lines(model.VulnerableURLs)
	if !ok || len(lines) == 0 {
		return
	}

	md.H2(model.VulnerableURLs.Label())
	md.PlainText("")
	items := make([]string, len(lines))
	for i, line := range lines {
		items[i] = codeSpan(line)
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeTestable(md *markdown.Markdown, report *model.Report) {
	lines, ok := report.Lines(model.TestableURLs)
	if !ok || len(lines) == 0 {
		return
	}

	md.H2(model.TestableURLs.Label())
	md.PlainText("")
	md.Details(strconv.Itoa(len(lines))+" URL(s) tested", strings.Join(lines, "<br>"))
	md.PlainText("")
}

func (w *MarkdownWriter) writeDelta(md *markdown.Markdown, delta *model.Delta) {
	md.H2("Changes Since Last Scan")
	md.PlainText("")
	md.PlainTextf("Previous scan: %s. Overall: **%s**.",
		delta.PreviousScan.Format("2006-01-02 15:04:05 MST"), delta.Direction)
	md.PlainText("")

	var rows [][]string
	for _, kind := range model.AllArtifactKinds() {
		if n, ok := delta.CountDeltas[kind]; ok {
			rows = append(rows, []string{kind.Label(), model.FormatDelta(n)})
		}
	}
	if len(rows) > 0 {
		md.Table(markdown.TableSet{
			Header: []string{"Stage", "Change"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(delta.NewVulnerable) > 0 {
		md.PlainText("**New vulnerable URLs:**")
		md.PlainText("")
		md.BulletList(codeSpans(delta.NewVulnerable)...)
		md.PlainText("")
	}
	if len(delta.ResolvedVulnerable) > 0 {
		md.PlainText("**No longer vulnerable:**")
		md.PlainText("")
		md.BulletList(codeSpans(delta.ResolvedVulnerable)...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by xssbot*")
}

// codeSpan wraps s in a code span, widening the fence when s contains
// backticks.
func codeSpan(s string) string {
	fence := "`"
	for strings.Contains(s, fence) {
		fence += "`"
	}
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		return fence + " " + s + " " + fence
	}
	return fence + s + fence
}

func codeSpans(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = codeSpan(line)
	}
	return out
}
