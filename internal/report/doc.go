// Package report builds explainable reports and writes them out.
//
// Builder turns the URL, content and API findings of one analysis into a
// model.Report: per-category scores, a weighted overall risk score, a status
// label and the findings sorted with classifier results first.
//
// Writers render a report in different formats:
//   - SimpleWriter: plain text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: Markdown with a severity pie chart for sharing
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report
