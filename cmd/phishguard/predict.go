package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/features"
	"github.com/nao1215/phishguard/internal/model"
	"github.com/spf13/cobra"
)

// NewPredictCmd creates the predict command.
func NewPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a feature vector",
		Long: `Predict answers a predictPhishing request: it scores a feature vector
without reputation lookups or a report.

The vector is either given directly with --features, or extracted from a
page with --url the same way a browser client computes it (URL and content
features, empty reputation slot).

Layout: 9 URL features, then content features, then one reputation signal.
Each feature is 1 (risky), -1 (benign) or 0 (unknown); "nan" marks a
missing value.

Examples:
  phishguard predict --features "1,1,-1,-1,-1,-1,-1,-1,-1,-1"
  phishguard predict --url https://example.com/login --json`,
		Args: cobra.NoArgs,
		RunE: runPredictCmd,
	}

	cmd.Flags().StringP("features", "f", "",
		"Comma-separated feature vector")
	cmd.Flags().StringP("url", "u", "",
		"Extract the feature vector from this page")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for fetching the page")
	cmd.Flags().String("proxy", "",
		"Fetch pages through this SOCKS5 proxy (host:port), e.g. Tor at 127.0.0.1:9050")
	cmd.Flags().Bool("browser", false,
		"Render the page in headless Chrome before extraction")
	cmd.Flags().BoolP("json", "j", false,
		"Output the response as JSON")
	cmd.MarkFlagsMutuallyExclusive("features", "url")

	return cmd
}

// predictResult is the JSON output of predict.
type predictResult struct {
	model.AnalysisResponse
	Features []float64 `json:"features,omitempty"`
}

func runPredictCmd(cmd *cobra.Command, _ []string) error {
	raw, err := cmd.Flags().GetString("features")
	if err != nil {
		return err
	}
	target, err := cmd.Flags().GetString("url")
	if err != nil {
		return err
	}
	if raw == "" && target == "" {
		return errors.New("either --features or --url is required")
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)
	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return err
	}
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return err
	}
	if cfg.UseBrowser, err = cmd.Flags().GetBool("browser"); err != nil {
		return err
	}
	if cfg.ProxyAddress, err = cmd.Flags().GetString("proxy"); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)
	if err := loadScoring(cfg, logger); err != nil {
		return err
	}
	// Reputation lookups are not part of a predict request.
	cfg.Scoring.Features.Reputation = false

	ctx, cancel := signalContext(logger)
	defer cancel()

	svc, err := newServices(cfg, nil, logger)
	if err != nil {
		return err
	}

	var fv model.FeatureVector
	if raw != "" {
		fv, err = features.ParseVector(raw)
	} else {
		fv, err = svc.analyzer.ExtractFeatures(ctx, target)
	}
	if err != nil {
		return err
	}

	resp := svc.analyzer.Handle(ctx, model.AnalysisRequest{
		Action:   model.ActionPredictPhishing,
		Features: fv,
		URL:      target,
	})

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(predictResult{AnalysisResponse: resp, Features: jsonSafe(fv)})
	}
	fmt.Fprintln(out, verdictLine(resp))
	if cfg.Verbose {
		fmt.Fprintf(out, "features: %s\n", formatVector(fv))
	}
	return nil
}

// verdictLine formats a response for terminal output.
func verdictLine(resp model.AnalysisResponse) string {
	line := fmt.Sprintf("%s (score %.3f)", strings.ToUpper(string(resp.Result)), resp.Score)
	if resp.Fallback {
		line += " [classifier unavailable, fallback weights]"
	}
	if resp.Error != "" {
		line += ": " + resp.Error
	}
	return line
}

// jsonSafe replaces values JSON cannot encode with 0, the unknown feature value.
func jsonSafe(fv model.FeatureVector) []float64 {
	out := make([]float64, len(fv))
	for i, v := range fv {
		if model.IsValidNumber(v) {
			out[i] = v
		}
	}
	return out
}

func formatVector(fv model.FeatureVector) string {
	parts := make([]string, len(fv))
	for i, v := range fv {
		if model.IsValidNumber(v) {
			parts[i] = fmt.Sprintf("%g", v)
		} else {
			parts[i] = "nan"
		}
	}
	return strings.Join(parts, ",")
}
