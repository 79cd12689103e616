package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/features"
	"github.com/nao1215/phishguard/internal/model"
	"github.com/nao1215/phishguard/internal/report"
	"github.com/nao1215/phishguard/internal/store"
	"github.com/spf13/cobra"
)

const noFindingsMessage = "No findings"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "List stored reports",
		Long: `History lists the reports stored by previous scans.

Without a URL it lists every analyzed URL with its latest score. With a URL
it lists the reports of that URL, newest first.

Examples:
  phishguard history
  phishguard history https://example.com/login --limit 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", config.DefaultHistoryLimit,
		"Maximum number of reports to list")
	cmd.Flags().BoolP("json", "j", false,
		"Output as JSON")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	if limit <= 0 {
		return fmt.Errorf("invalid limit %d: must be positive", limit)
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	// Validate before opening the database.
	var target string
	if len(args) == 1 {
		target, err = features.NormalizeURL(args[0])
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
	}

	ctx := context.Background()
	st, err := openHistoryStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	if target == "" {
		return listURLs(ctx, out, st, limit, jsonOutput)
	}
	return listReports(ctx, out, st, target, limit, jsonOutput)
}

// openHistoryStore opens the store used by scan.
func openHistoryStore(ctx context.Context) (store.Store, error) {
	cfg := config.NewConfig()
	cfg.DBDir = config.XDGDataDir()
	cfg.DatabaseURL = os.Getenv(config.EnvDatabaseURL)
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

// listURLs lists every URL with stored reports.
func listURLs(ctx context.Context, out io.Writer, st store.Store, limit int, jsonOutput bool) error {
	urls, err := st.URLs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list urls: %w", err)
	}
	if len(urls) > limit {
		urls = urls[:limit]
	}
	if jsonOutput {
		return writeIndentedJSON(out, urls)
	}

	if len(urls) == 0 {
		fmt.Fprintln(out, "No reports found in the database.")
		fmt.Fprintln(out, "\nUse 'phishguard scan <url>' to analyze a page.")
		return nil
	}

	fmt.Fprintf(out, "Analyzed URLs (%d):\n\n", len(urls))
	fmt.Fprintf(out, "  %-5s  %-7s  %-19s  %s\n", "Score", "Reports", "Last scan", "URL")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 70))
	for _, u := range urls {
		fmt.Fprintf(out, "  %5d  %7d  %-19s  %s\n",
			u.LastScore,
			u.Reports,
			u.LastScan.Local().Format("2006-01-02 15:04:05"),
			u.URL,
		)
	}
	fmt.Fprintln(out, "\nUse 'phishguard history <url>' to see the reports of one URL.")
	return nil
}

// listReports lists the stored reports of target.
func listReports(ctx context.Context, out io.Writer, st store.Store, target string, limit int, jsonOutput bool) error {
	reports, err := st.History(ctx, target, limit)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}
	if jsonOutput {
		return writeIndentedJSON(out, reports)
	}

	if len(reports) == 0 {
		fmt.Fprintf(out, "No reports found for %s\n", target)
		return nil
	}

	fmt.Fprintf(out, "Reports for %s (%d):\n\n", target, len(reports))
	fmt.Fprintf(out, "  %-36s  %-19s  %-5s  %-22s  %s\n", "ID", "Date", "Score", "Status", "Findings")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))
	for _, meta := range reports {
		fmt.Fprintf(out, "  %-36s  %-19s  %5d  %-22s  %s\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			meta.RiskScore,
			meta.Status,
			formatRiskSummary(meta.Summary),
		)
	}
	fmt.Fprintln(out, "\nUse 'phishguard compare <url>' to compare the latest two reports.")
	return nil
}

// formatRiskSummary formats per-severity counts, e.g. "D:2 W:1 S:5".
func formatRiskSummary(summary map[string]int) string {
	if summary == nil {
		return "N/A"
	}

	var parts []string
	for _, s := range []model.Severity{model.SeverityDanger, model.SeverityWarning, model.SeveritySafe} {
		if v := summary[s.String()]; v > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", strings.ToUpper(s.String()[:1]), v))
		}
	}
	if len(parts) == 0 {
		return noFindingsMessage
	}
	return strings.Join(parts, " ")
}

func writeIndentedJSON(out io.Writer, v any) error {
	_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteValue(v)
	return err
}
