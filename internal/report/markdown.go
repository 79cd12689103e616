package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/phishguard/internal/model"
)

// MarkdownWriter outputs reports in Markdown for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeFindings(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	md.H1("phishguard Report")
	md.PlainText("")

	rows := [][]string{
		{"URL", "`" + report.URL + "`"},
		{"Analyzed", report.Timestamp.Format("2006-01-02 15:04:05 MST")},
		{"Risk Score", strconv.Itoa(report.RiskScore) + "/100"},
		{"Status", report.Status},
	}
	if report.ID != "" {
		rows = append(rows, []string{"Report ID", "`" + report.ID + "`"})
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.Report) {
	md.H2("Summary")
	md.PlainText("")

	rows := make([][]string, 0, 4)
	for _, c := range model.Categories() {
		rows = append(rows, []string{string(c), strconv.Itoa(report.CategoryScores[c])})
	}
	md.Table(markdown.TableSet{Header: []string{"Category", "Score"}, Rows: rows})
	md.PlainText("")

	if b := report.Breakdown; b != nil {
		md.Table(markdown.TableSet{
			Header: []string{"Signal", "Score"},
			Rows: [][]string{
				{"Classifier", fmt.Sprintf("%.3f", b.MLScore)},
				{"Features", fmt.Sprintf("%.3f", b.FeatureScore)},
				{"Reputation", fmt.Sprintf("%.3f", b.ReputationScore)},
				{"**Final**", fmt.Sprintf("**%.3f** (%s)", b.FinalScore, b.Verdict)},
			},
		})
		md.PlainText("")
		if b.UsedFallback {
			md.Note("The classifier was unavailable; the score uses feature and reputation signals only.")
			md.PlainText("")
		}
	}

	counts := report.SeverityCounts()
	if len(report.Findings) > 0 {
		w.writePieChart(md, counts)
	}
	w.writeAlert(md, report, counts)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts map[model.Severity]int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Finding Severity Distribution"),
		piechart.WithShowData(true),
	)
	for _, sev := range severityOrder {
		if n := counts[sev]; n > 0 {
			chart.LabelAndIntValue(severityLabel(sev), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.Report, counts map[model.Severity]int) {
	switch {
	case report.HasMLDetection():
		md.Cautionf("The phishing classifier flagged this page. Risk score %d/100.", report.RiskScore)
	case report.RiskScore >= 70:
		md.Cautionf("High risk: %d high risk finding(s). Avoid entering any information on this site.",
			counts[model.SeverityDanger])
	case report.RiskScore >= 50:
		md.Warningf("Potentially unsafe: %d warning(s) and %d high risk finding(s).",
			counts[model.SeverityWarning], counts[model.SeverityDanger])
	case report.RiskScore >= 20:
		md.Importantf("Exercise caution: %d finding(s) need attention.",
			counts[model.SeverityWarning]+counts[model.SeverityDanger])
	default:
		md.Tip("No significant phishing indicators detected.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.Report) {
	md.H2("Findings")
	md.PlainText("")

	if len(report.Findings) == 0 {
		md.PlainText("No findings recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Findings))
	for i, f := range report.Findings {
		title := f.Title
		if f.IsMLResult {
			title += " (ML)"
		}
		rec := "-"
		if info := model.GetFindingInfo(f.Check); info.Recommendation != "" {
			rec = info.Recommendation
		}
		rows[i] = []string{
			severityLabel(f.Severity),
			string(f.Category),
			title,
			fmt.Sprintf("%.0f/%.0f", f.RiskFactor, f.MaxRisk),
			truncateString(rec, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Category", "Check", "Risk", "Recommendation"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range report.Findings {
		if f.Description != "" {
			md.Details(f.Title, f.Description)
		}
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [phishguard](https://github.com/nao1215/phishguard)*")
}
