// Package report renders scan reports for people and programs.
//
// Writers produce whole documents:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter and FullJSONWriter: JSON for tool integration
//   - MarkdownWriter: Markdown with a Mermaid chart for sharing
//
// The message functions (SummaryMessage, DrillDownMessage, ...) build the
// short texts sent to chat users, and SplitMessage cuts long texts to the
// chat message size limit.
//
// A kind the pipeline did not produce is shown as "not measured", never as
// zero.
package report
