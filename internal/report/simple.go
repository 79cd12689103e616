package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/phishguard/internal/model"
)

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty shows severity sections without findings.
	showEmpty bool

	// verbose prints descriptions and the score breakdown.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) { w.showEmpty = show }
}

// WithVerbose enables descriptions and the score breakdown.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) { w.verbose = verbose }
}

// NewSimpleWriter creates a SimpleWriter.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeScores(&sb, report)
	w.writeFindings(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                        PHISHGUARD REPORT\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "URL:        %s\n", report.URL)
	fmt.Fprintf(sb, "Analyzed:   %s\n", report.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Risk Score: %d/100\n", report.RiskScore)
	fmt.Fprintf(sb, "Status:     %s\n", report.Status)
	if report.ID != "" {
		fmt.Fprintf(sb, "Report ID:  %s\n", report.ID)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeScores(sb *strings.Builder, report *model.Report) {
	rule(sb, "-")
	sb.WriteString("SCORES\n")
	rule(sb, "-")
	sb.WriteString("\n")

	for _, c := range model.Categories() {
		fmt.Fprintf(sb, "  %-8s %3d\n", strings.ToUpper(string(c))+":", report.CategoryScores[c])
	}
	counts := report.SeverityCounts()
	fmt.Fprintf(sb, "\n  HIGH RISK: %d   WARNING: %d   SAFE: %d\n",
		counts[model.SeverityDanger], counts[model.SeverityWarning], counts[model.SeveritySafe])

	if w.verbose && report.Breakdown != nil {
		b := report.Breakdown
		fmt.Fprintf(sb, "\n  ML: %.3f  FEATURES: %.3f  REPUTATION: %.3f  FINAL: %.3f  VERDICT: %s\n",
			b.MLScore, b.FeatureScore, b.ReputationScore, b.FinalScore, b.Verdict)
		if b.UsedFallback {
			sb.WriteString("  (classifier unavailable, fallback weights applied)\n")
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFindings(sb *strings.Builder, report *model.Report) {
	if len(report.Findings) == 0 && !w.showEmpty {
		return
	}

	rule(sb, "-")
	sb.WriteString("FINDINGS\n")
	rule(sb, "-")
	sb.WriteString("\n")

	for _, sev := range severityOrder {
		var findings []model.Finding
		for _, f := range report.Findings {
			if f.Severity == sev {
				findings = append(findings, f)
			}
		}
		if len(findings) == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(sb, "[%s] %s\n", severityIndicator(sev), severityLabel(sev))
		if len(findings) == 0 {
			sb.WriteString("  No findings\n\n")
			continue
		}
		for _, f := range findings {
			ml := ""
			if f.IsMLResult {
				ml = " (ML)"
			}
			fmt.Fprintf(sb, "  * %s%s [%s, risk %.0f/%.0f]\n", f.Title, ml, f.Category, f.RiskFactor, f.MaxRisk)
			if w.verbose && f.Description != "" {
				fmt.Fprintf(sb, "    %s\n", f.Description)
			}
		}
		sb.WriteString("\n")
	}
}

func severityIndicator(s model.Severity) string {
	switch s {
	case model.SeverityDanger:
		return "!!"
	case model.SeverityWarning:
		return "!"
	case model.SeveritySafe:
		return "ok"
	default:
		return "?"
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by phishguard\n")
	rule(sb, "=")
}
