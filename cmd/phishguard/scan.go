package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/pipeline"
	"github.com/nao1215/phishguard/internal/report"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url]...",
		Short: "Analyze web pages for phishing",
		Long: `Scan fetches each URL and scores how likely it is to be a phishing page.

Every scan combines:
- URL heuristics (protocol, IP hosts, look-alike domains, URL shape)
- Content heuristics (login forms, brand impersonation, urgency, hidden fields)
- Reputation lookups (Safe Browsing, WHOIS age, DNS blocklists, certificates)
- A classifier over the combined feature vector

Examples:
  # Scan a single page
  phishguard scan https://example.com/login

  # Scan many pages listed one per line
  phishguard scan --list urls.txt

  # Render JavaScript-heavy pages in headless Chrome
  phishguard scan --browser https://example.com/

  # Output a JSON report to a file
  phishguard scan --json --report-file out/report.json https://example.com/

Configuration file (.phishguard.yaml) example:
  reputation:
    safe_browsing:
      api_key: ""   # or PHISHGUARD_SAFE_BROWSING_KEY
  sites:
    intranet.example.com:
      cookie: "session_id=abc123"`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for fetching one page")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent scans")
	cmd.Flags().StringP("list", "l", "",
		"File with one URL per line (blank lines and # comments are ignored)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .phishguard.yaml in current directory or XDG config)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent when fetching pages")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of body bytes read per page")
	cmd.Flags().Bool("browser", false,
		"Render pages in headless Chrome before analysis")
	cmd.Flags().Bool("no-db", false,
		"Do not store reports in the database")
	cmd.Flags().String("proxy", "",
		"Fetch pages through this SOCKS5 proxy (host:port), e.g. Tor at 127.0.0.1:9050")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report-file", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.RequireTargets(); err != nil {
		return err
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	if err := loadScoring(cfg, logger); err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runScan(ctx, cfg, cmd.OutOrStdout(), logger)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}
	cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size")
	if err != nil {
		return nil, err
	}
	cfg.UseBrowser, err = cmd.Flags().GetBool("browser")
	if err != nil {
		return nil, err
	}
	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}
	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}
	cfg.ReportFile, err = cmd.Flags().GetString("report-file")
	if err != nil {
		return nil, err
	}

	cfg.SaveToDB = !noDB
	cfg.DBDir = config.XDGDataDir()
	cfg.DatabaseURL = os.Getenv(config.EnvDatabaseURL)

	cfg.Targets = append(cfg.Targets, args...)
	listFile, err := cmd.Flags().GetString("list")
	if err != nil {
		return nil, err
	}
	if listFile != "" {
		targets, err := readTargetList(listFile)
		if err != nil {
			return nil, err
		}
		cfg.Targets = append(cfg.Targets, targets...)
	}

	return cfg, nil
}

// readTargetList reads one URL per line, skipping blank lines and # comments.
func readTargetList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open target list: %w", err)
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read target list: %w", err)
	}
	return targets, nil
}

// runScan analyzes every target and writes one report per target.
func runScan(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	logger.Info("starting scan",
		"targets", len(cfg.Targets),
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
		"browser", cfg.UseBrowser,
	)

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	svc, err := newServices(cfg, st, logger)
	if err != nil {
		return err
	}

	w := reportWriter(cfg, out)
	if cfg.ReportFile != "" {
		f, err := createReportFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		// The file gets the requested format; the terminal gets a summary.
		w = report.NewMultiWriter(reportWriter(cfg, f), report.NewSimpleWriter(out))
	}

	var results []pipeline.BatchResult
	if len(cfg.Targets) > 1 && cfg.BatchSize > 1 {
		results, err = runBatchScan(ctx, cfg, svc.analyzer, w, logger)
	} else {
		results, err = runSequentialScan(ctx, cfg, svc.analyzer, w, logger)
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(results))
	}
	return nil
}

// runSequentialScan scans targets one at a time.
func runSequentialScan(ctx context.Context, cfg *config.Config, a pipeline.URLAnalyzer, w report.Writer, logger *slog.Logger) ([]pipeline.BatchResult, error) {
	results := make([]pipeline.BatchResult, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		fmt.Fprintf(os.Stderr, "Scanning %s...\n", target)
		startTime := time.Now()

		outcome, err := a.AnalyzeURL(ctx, target)
		results = append(results, pipeline.BatchResult{Target: target, Outcome: outcome, Err: err})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return results, ctxErr
			}
			logger.Error("scan failed", "target", target, "error", err)
			fmt.Fprintf(os.Stderr, "Scan error for %s: %v\n", target, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "Scan completed in %s\n\n", time.Since(startTime).Round(time.Millisecond))

		if err := outputReport(w, outcome); err != nil {
			logger.Error("report failed", "target", target, "error", err)
		}
	}
	return results, nil
}

// runBatchScan scans targets concurrently and writes reports as they complete.
func runBatchScan(ctx context.Context, cfg *config.Config, a pipeline.URLAnalyzer, w report.Writer, logger *slog.Logger) ([]pipeline.BatchResult, error) {
	fmt.Fprintf(os.Stderr, "Starting batch scan of %d targets (concurrency: %d)...\n\n",
		len(cfg.Targets), cfg.BatchSize)
	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(a,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	results := make([]pipeline.BatchResult, len(cfg.Targets))
	var mu sync.Mutex
	err := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r pipeline.BatchResult, index int) {
		mu.Lock()
		defer mu.Unlock()

		results[index] = r
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "[%d/%d] Scan error for %s: %v\n", index+1, len(cfg.Targets), r.Target, r.Err)
			return
		}
		fmt.Fprintf(os.Stderr, "[%d/%d] Scan completed: %s\n", index+1, len(cfg.Targets), r.Target)
		if err := outputReport(w, r.Outcome); err != nil {
			logger.Error("report failed", "target", r.Target, "error", err)
		}
	})

	fmt.Fprintf(os.Stderr, "\nBatch scan completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	return results, err
}

// outputReport writes the report of outcome with w.
func outputReport(w report.Writer, outcome *pipeline.Outcome) error {
	if outcome == nil || outcome.Report == nil {
		return errors.New("no report to output")
	}
	if outcome.FetchError != "" {
		fmt.Fprintf(os.Stderr, "Warning: page content unavailable (%s); scored without content signals\n", outcome.FetchError)
	}
	_, err := w.Write(outcome.Report)
	return err
}

// createReportFile creates path and its parent directories. The file is
// truncated once so every report of a batch lands in it.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	// Reports may contain session data in URLs; keep them owner-readable.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided report path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// reportWriter selects the writer for the configured format.
func reportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}
