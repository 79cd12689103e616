package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/phishguard/internal/features"
	"github.com/nao1215/phishguard/internal/model"
	"github.com/nao1215/phishguard/internal/store"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
)

// Risk directions.
const (
	riskDirectionWorsened  = "worsened"
	riskDirectionImproved  = "improved"
	riskDirectionUnchanged = "unchanged"
)

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <url>",
		Short: "Compare the latest report of a URL with an earlier one",
		Long: `Compare shows how the analysis of a URL changed between two stored reports.

It reports:
- The change in overall risk score and status
- New findings that appeared since the earlier report
- Resolved findings that are no longer present
- Findings whose severity or risk changed
- A line diff of both finding lists

By default the latest two reports are compared. Use 'phishguard history <url>'
to list report IDs.

Examples:
  phishguard compare https://example.com/login
  phishguard compare --with-id 3f0c... https://example.com/login
  phishguard compare --json https://example.com/login`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().StringP("with-id", "i", "",
		"Compare with the report of this ID instead of the previous one")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

func runCompareCmd(cmd *cobra.Command, args []string) error {
	target, err := features.NormalizeURL(args[0])
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	withID, err := cmd.Flags().GetString("with-id")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	ctx := context.Background()
	st, err := openHistoryStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	previous, current, err := selectReports(ctx, st, target, withID)
	if err != nil {
		return err
	}
	result := compareReports(previous, current)

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return writeIndentedJSON(out, result)
	case markdownOutput:
		outputComparisonMarkdown(out, result)
	default:
		outputComparisonText(out, result)
	}
	return nil
}

// selectReports returns the earlier and the latest report of target.
func selectReports(ctx context.Context, st store.Store, target, withID string) (previous, current *model.Report, err error) {
	latest, err := st.Latest(ctx, target, 2)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get reports: %w", err)
	}
	if len(latest) == 0 {
		return nil, nil, fmt.Errorf("no reports found for %s", target)
	}
	current = latest[0]

	if withID != "" {
		previous, err = st.Get(ctx, withID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("report %s not found", withID)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get report %s: %w", withID, err)
		}
		if previous.URL != target {
			return nil, nil, fmt.Errorf("report %s belongs to %s, not %s", withID, previous.URL, target)
		}
		if previous.ID == current.ID {
			return nil, nil, fmt.Errorf("report %s is the latest report; choose an earlier one", withID)
		}
		return previous, current, nil
	}

	if len(latest) < 2 {
		return nil, nil, fmt.Errorf("at least 2 reports are required for comparison (found %d)", len(latest))
	}
	return latest[1], current, nil
}

// ComparisonResult holds the result of comparing two reports of one URL.
type ComparisonResult struct {
	URL              string           `json:"url"`
	Previous         ReportSummary    `json:"previous"`
	Current          ReportSummary    `json:"current"`
	NewFindings      []model.Finding  `json:"newFindings,omitempty"`
	ResolvedFindings []model.Finding  `json:"resolvedFindings,omitempty"`
	ChangedFindings  []FindingChange  `json:"changedFindings,omitempty"`
	UnchangedCount   int              `json:"unchangedCount"`
	RiskChange       RiskChange       `json:"riskChange"`
	Diff             []FindingDiffRow `json:"diff,omitempty"`
}

// ReportSummary describes one side of a comparison.
type ReportSummary struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	RiskScore int       `json:"riskScore"`
	Status    string    `json:"status"`
	Danger    int       `json:"danger"`
	Warning   int       `json:"warning"`
	Safe      int       `json:"safe"`
}

// FindingChange is a check present in both reports with a different result.
type FindingChange struct {
	Before model.Finding `json:"before"`
	After  model.Finding `json:"after"`
}

// RiskChange describes the change in risk between the two reports.
type RiskChange struct {
	// Direction is "improved", "worsened", or "unchanged".
	Direction    string `json:"direction"`
	ScoreDelta   int    `json:"scoreDelta"`
	DangerDelta  int    `json:"dangerDelta"`
	WarningDelta int    `json:"warningDelta"`
}

// FindingDiffRow is one line of the finding list diff.
// Op is "+" for added lines and "-" for removed lines.
type FindingDiffRow struct {
	Op   string `json:"op"`
	Line string `json:"line"`
}

func summarize(r *model.Report) ReportSummary {
	counts := r.SeverityCounts()
	return ReportSummary{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		RiskScore: r.RiskScore,
		Status:    r.Status,
		Danger:    counts[model.SeverityDanger],
		Warning:   counts[model.SeverityWarning],
		Safe:      counts[model.SeveritySafe],
	}
}

// compareReports compares two reports of the same URL.
// Findings are matched by check identifier.
func compareReports(previous, current *model.Report) *ComparisonResult {
	result := &ComparisonResult{
		URL:      current.URL,
		Previous: summarize(previous),
		Current:  summarize(current),
	}

	before := make(map[string]model.Finding, len(previous.Findings))
	for _, f := range previous.Findings {
		before[f.Check] = f
	}
	after := make(map[string]model.Finding, len(current.Findings))
	for _, f := range current.Findings {
		after[f.Check] = f
	}

	for _, f := range current.Findings {
		old, ok := before[f.Check]
		switch {
		case !ok:
			result.NewFindings = append(result.NewFindings, f)
		case old.Severity != f.Severity || old.RiskFactor != f.RiskFactor:
			result.ChangedFindings = append(result.ChangedFindings, FindingChange{Before: old, After: f})
		default:
			result.UnchangedCount++
		}
	}
	for _, f := range previous.Findings {
		if _, ok := after[f.Check]; !ok {
			result.ResolvedFindings = append(result.ResolvedFindings, f)
		}
	}

	result.RiskChange = calculateRiskChange(result.Previous, result.Current)
	result.Diff = diffFindings(previous.Findings, current.Findings)
	return result
}

// calculateRiskChange derives the direction from the overall risk score.
func calculateRiskChange(previous, current ReportSummary) RiskChange {
	change := RiskChange{
		ScoreDelta:   current.RiskScore - previous.RiskScore,
		DangerDelta:  current.Danger - previous.Danger,
		WarningDelta: current.Warning - previous.Warning,
	}
	switch {
	case change.ScoreDelta < 0:
		change.Direction = riskDirectionImproved
	case change.ScoreDelta > 0:
		change.Direction = riskDirectionWorsened
	default:
		change.Direction = riskDirectionUnchanged
	}
	return change
}

// findingLines renders findings one per line, sorted by check, for diffing.
func findingLines(findings []model.Finding) string {
	lines := make([]string, 0, len(findings))
	for _, f := range findings {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s (%g/%g)", f.Severity, f.Check, f.Title, f.RiskFactor, f.MaxRisk))
	}
	sort.Strings(lines)
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// diffFindings returns the line diff of two finding lists.
func diffFindings(previous, current []model.Finding) []FindingDiffRow {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(findingLines(previous), findingLines(current))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var rows []FindingDiffRow
	for _, d := range diffs {
		var op string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = "+"
		case diffmatchpatch.DiffDelete:
			op = "-"
		case diffmatchpatch.DiffEqual:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			if strings.TrimSpace(line) != "" {
				rows = append(rows, FindingDiffRow{Op: op, Line: line})
			}
		}
	}
	return rows
}

// outputComparisonText writes the comparison in human-readable text.
func outputComparisonText(out io.Writer, result *ComparisonResult) {
	fmt.Fprintf(out, "Report Comparison: %s\n", result.URL)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nRisk Status: %s\n", formatRiskDirection(result.RiskChange.Direction))
	fmt.Fprintf(out, "\nPrevious: %s  %3d/100  %s\n",
		result.Previous.Timestamp.Local().Format("2006-01-02 15:04:05"), result.Previous.RiskScore, result.Previous.Status)
	fmt.Fprintf(out, "Current:  %s  %3d/100  %s\n",
		result.Current.Timestamp.Local().Format("2006-01-02 15:04:05"), result.Current.RiskScore, result.Current.Status)

	fmt.Fprintln(out, "\nFindings Summary:")
	fmt.Fprintf(out, "  %-10s  %-10s  %-10s  %-10s\n", "Severity", "Previous", "Current", "Change")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 45))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Danger",
		result.Previous.Danger, result.Current.Danger, formatDelta(result.RiskChange.DangerDelta))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Warning",
		result.Previous.Warning, result.Current.Warning, formatDelta(result.RiskChange.WarningDelta))
	fmt.Fprintf(out, "  %-10s  %-10d  %-10d  %-10s\n", "Safe",
		result.Previous.Safe, result.Current.Safe, formatDelta(result.Current.Safe-result.Previous.Safe))

	if len(result.NewFindings) > 0 {
		fmt.Fprintf(out, "\nNew Findings (%d):\n", len(result.NewFindings))
		for _, f := range result.NewFindings {
			fmt.Fprintf(out, "  [+] [%s] %s\n", f.Severity, f.Title)
		}
	}
	if len(result.ResolvedFindings) > 0 {
		fmt.Fprintf(out, "\nResolved Findings (%d):\n", len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			fmt.Fprintf(out, "  [-] [%s] %s\n", f.Severity, f.Title)
		}
	}
	if len(result.ChangedFindings) > 0 {
		fmt.Fprintf(out, "\nChanged Findings (%d):\n", len(result.ChangedFindings))
		for _, c := range result.ChangedFindings {
			fmt.Fprintf(out, "  [~] %s: %s -> %s\n", c.After.Title, c.Before.Severity, c.After.Severity)
		}
	}
	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d findings\n", result.UnchangedCount)
	}

	if len(result.Diff) > 0 {
		fmt.Fprintln(out, "\nDiff:")
		for _, row := range result.Diff {
			fmt.Fprintf(out, "  %s %s\n", row.Op, row.Line)
		}
	}
}

// outputComparisonMarkdown writes the comparison as Markdown.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) {
	fmt.Fprintf(out, "# Report Comparison: %s\n\n", result.URL)
	fmt.Fprintln(out, "## Summary")
	fmt.Fprintf(out, "\n**Risk Status:** %s\n\n", formatRiskDirection(result.RiskChange.Direction))

	fmt.Fprintln(out, "| Metric | Previous | Current | Change |")
	fmt.Fprintln(out, "|--------|----------|---------|--------|")
	fmt.Fprintf(out, "| Date | %s | %s | - |\n",
		result.Previous.Timestamp.Format("2006-01-02 15:04"),
		result.Current.Timestamp.Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "| Risk score | %d | %d | %s |\n",
		result.Previous.RiskScore, result.Current.RiskScore, formatDelta(result.RiskChange.ScoreDelta))
	fmt.Fprintf(out, "| Danger | %d | %d | %s |\n",
		result.Previous.Danger, result.Current.Danger, formatDelta(result.RiskChange.DangerDelta))
	fmt.Fprintf(out, "| Warning | %d | %d | %s |\n",
		result.Previous.Warning, result.Current.Warning, formatDelta(result.RiskChange.WarningDelta))

	if len(result.NewFindings) > 0 {
		fmt.Fprintf(out, "\n## New Findings (%d)\n\n", len(result.NewFindings))
		for _, f := range result.NewFindings {
			fmt.Fprintf(out, "- **[%s]** %s: %s\n", f.Severity, f.Title, f.Description)
		}
	}
	if len(result.ResolvedFindings) > 0 {
		fmt.Fprintf(out, "\n## Resolved Findings (%d)\n\n", len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			fmt.Fprintf(out, "- ~~**[%s]** %s~~\n", f.Severity, f.Title)
		}
	}
	if len(result.ChangedFindings) > 0 {
		fmt.Fprintf(out, "\n## Changed Findings (%d)\n\n", len(result.ChangedFindings))
		for _, c := range result.ChangedFindings {
			fmt.Fprintf(out, "- %s: %s → %s\n", c.After.Title, c.Before.Severity, c.After.Severity)
		}
	}
	if len(result.Diff) > 0 {
		fmt.Fprintln(out, "\n## Diff\n\n```diff")
		for _, row := range result.Diff {
			fmt.Fprintf(out, "%s %s\n", row.Op, row.Line)
		}
		fmt.Fprintln(out, "```")
	}
	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\n---\n\n*%d findings unchanged*\n", result.UnchangedCount)
	}
}

// formatRiskDirection formats the risk change direction for display.
func formatRiskDirection(direction string) string {
	switch direction {
	case riskDirectionImproved:
		return "IMPROVED (risk decreased)"
	case riskDirectionWorsened:
		return "WORSENED (risk increased)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
