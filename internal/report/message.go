package report

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/xssautomation/xssbot/internal/model"
)

// MaxMessageLength is the largest text a chat message may carry, in UTF-16
// code units as Telegram counts them: a character outside the Basic
// Multilingual Plane, like most emoji, counts twice.
const MaxMessageLength = 4096

// SummaryMessage renders the five counts and the verdict for a chat user.
// delta may be nil.
func SummaryMessage(summary model.Summary, delta *model.Delta) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🎯 Scan results for %s\n\n", summary.Domain)
	b.WriteString("📊 Statistics:\n")
	for _, kind := range model.AllArtifactKinds() {
		fmt.Fprintf(&b, "• %s: %s\n", kind.Label(), countText(summary.Counts, kind))
	}
	b.WriteString("\n")

	switch {
	case summary.Vulnerable:
		b.WriteString("🚨 XSS vulnerabilities found!")
	default:
		if _, ok := summary.Count(model.VulnerableURLs); !ok {
			b.WriteString("⚠️ The pipeline produced no vulnerability results.")
		} else {
			b.WriteString("✅ No XSS vulnerabilities found.")
		}
	}

	if delta != nil {
		b.WriteString("\n\n")
		b.WriteString(DeltaMessage(delta))
	}
	return b.String()
}

// DeltaMessage renders what changed since the previous scan.
func DeltaMessage(delta *model.Delta) string {
	if !delta.HasChanges() {
		return fmt.Sprintf("🔁 No changes since the previous scan (%s).", delta.PreviousScan.Format("2006-01-02 15:04"))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔁 Since the previous scan (%s): %s\n", delta.PreviousScan.Format("2006-01-02 15:04"), delta.Direction)
	for _, kind := range model.AllArtifactKinds() {
		n, ok := delta.CountDeltas[kind]
		if !ok || n == 0 {
			continue
		}
		fmt.Fprintf(&b, "• %s: %s\n", kind.Label(), model.FormatDelta(n))
	}
	if n := len(delta.NewVulnerable); n > 0 {
		fmt.Fprintf(&b, "• New vulnerable URLs: %d\n", n)
	}
	if n := len(delta.ResolvedVulnerable); n > 0 {
		fmt.Fprintf(&b, "• No longer vulnerable: %d\n", n)
	}
	return strings.TrimRight(b.String(), "\n")
}

// StatsMessage renders the detailed statistics view: counts with their
// result files and the yield of each pipeline stage.
func StatsMessage(summary model.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 Detailed statistics for %s\n", summary.Domain)
	fmt.Fprintf(&b, "Scanned at %s\n\n", summary.ScannedAt.Format("2006-01-02 15:04:05 MST"))

	for _, kind := range model.AllArtifactKinds() {
		fmt.Fprintf(&b, "• %s (%s): %s\n", kind.Label(), kind.Filename(), countText(summary.Counts, kind))
	}

	stages := []struct {
		label    string
		from, to model.ArtifactKind
	}{
		{"Live / archived", model.HarvestedURLs, model.LiveURLs},
		{"Testable / live", model.LiveURLs, model.TestableURLs},
		{"Vulnerable / testable", model.TestableURLs, model.VulnerableURLs},
	}
	var ratios []string
	for _, s := range stages {
		if r, ok := ratio(summary, s.from, s.to); ok {
			ratios = append(ratios, fmt.Sprintf("• %s: %s", s.label, r))
		}
	}
	if len(ratios) > 0 {
		b.WriteString("\n📈 Stage yield:\n")
		b.WriteString(strings.Join(ratios, "\n"))
		b.WriteString("\n")
	}

	if missing := unmeasured(summary.Counts); len(missing) > 0 {
		labels := make([]string, len(missing))
		for i, kind := range missing {
			labels[i] = kind.Label()
		}
		fmt.Fprintf(&b, "\n⚠️ Not measured: %s\n", strings.Join(labels, ", "))
	}

	return strings.TrimRight(b.String(), "\n")
}

// ratio formats to/from as a percentage when both are measured and from is
// non-zero.
func ratio(summary model.Summary, from, to model.ArtifactKind) (string, bool) {
	f, okFrom := summary.Count(from)
	t, okTo := summary.Count(to)
	if !okFrom || !okTo || f == 0 {
		return "", false
	}
	return fmt.Sprintf("%.1f%% (%d of %d)", float64(t)*100/float64(f), t, f), true
}

// DrillDownMessage renders the lines of one artifact kind. measured is
// false when the pipeline did not produce the kind's file.
func DrillDownMessage(domain model.Domain, kind model.ArtifactKind, lines []string, measured bool) string {
	switch {
	case !measured:
		return fmt.Sprintf("%s for %s: %s (the pipeline produced no %s).", kind.Label(), domain, notMeasured, kind.Filename())
	case len(lines) == 0:
		return fmt.Sprintf("%s for %s: none.", kind.Label(), domain)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s for %s (%d):\n\n", drillDownIcon(kind), kind.Label(), domain, len(lines))
	for i, line := range lines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, line)
	}
	return strings.TrimRight(b.String(), "\n")
}

func drillDownIcon(kind model.ArtifactKind) string {
	switch kind {
	case model.VulnerableURLs:
		return "🚨"
	case model.TestableURLs:
		return "🔍"
	default:
		return "📄"
	}
}

// SplitMessage cuts text into chunks of at most limit UTF-16 code units,
// breaking at line boundaries where possible. A single line longer than
// limit is cut between characters. A limit below 1 means MaxMessageLength.
func SplitMessage(text string, limit int) []string {
	if limit < 1 {
		limit = MaxMessageLength
	}
	if MessageLength(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := MessageLength(line)
		if currentLen+n <= limit {
			current.WriteString(line)
			currentLen += n
			continue
		}
		flush()
		for n > limit {
			head, rest := splitUnits(line, limit)
			chunks = append(chunks, head)
			line = rest
			n = MessageLength(line)
		}
		current.WriteString(line)
		currentLen = n
	}
	flush()

	out := chunks[:0]
	for _, chunk := range chunks {
		if chunk = strings.TrimRight(chunk, "\n"); chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

// MessageLength returns the length of s in UTF-16 code units.
func MessageLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// splitUnits splits s after as many whole characters as fit in n UTF-16
// code units, taking at least one character.
func splitUnits(s string, n int) (string, string) {
	used := 0
	for pos, r := range s {
		used += utf16.RuneLen(r)
		if used > n && pos > 0 {
			return s[:pos], s[pos:]
		}
	}
	return s, ""
}
