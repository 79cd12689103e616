package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/phishguard/internal/aggregator"
	"github.com/nao1215/phishguard/internal/classifier"
	"github.com/nao1215/phishguard/internal/config"
	applog "github.com/nao1215/phishguard/internal/log"
	"github.com/nao1215/phishguard/internal/pipeline"
	"github.com/nao1215/phishguard/internal/reputation"
	"github.com/nao1215/phishguard/internal/store"
	"github.com/spf13/cobra"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates a redacting text logger on stderr.
func setupLogger(verbose bool) *slog.Logger {
	return applog.NewSecureLogger(os.Stderr, verbose)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// loadScoring loads the scoring configuration into cfg.Scoring.
// An explicitly named file must exist; otherwise defaults are used.
func loadScoring(cfg *config.Config, logger *slog.Logger) error {
	fc, path, err := config.Load(cfg.ConfigFilePath)
	if err != nil {
		if cfg.ConfigFilePath != "" && path == "" {
			return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
		}
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	if path != "" {
		logger.Debug("loaded configuration", "path", path)
	}
	cfg.Scoring = fc
	return nil
}

// openStore opens the report store when cfg.SaveToDB is set.
// It returns nil without error when saving is disabled.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if !cfg.SaveToDB {
		return nil, nil
	}
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("database opened", "postgres", cfg.DatabaseURL != "", "path", cfg.DatabasePath())
	return st, nil
}

// services holds the long-lived components of one invocation.
type services struct {
	analyzer   *pipeline.Analyzer
	reputation *reputation.Service
}

// startSweepers evicts expired cache entries until ctx ends.
func (s *services) startSweepers(ctx context.Context, cfg *config.Config) {
	interval := cfg.Scoring.Cache.SweepInterval
	s.analyzer.StartSweeper(ctx, interval)
	if s.reputation != nil {
		s.reputation.StartSweeper(ctx, interval)
	}
}

// newServices wires the classifier, aggregator, reputation service and
// analyzer from cfg. st may be nil.
func newServices(cfg *config.Config, st store.Store, logger *slog.Logger) (*services, error) {
	fc := cfg.Scoring

	clf := classifier.New(classifier.NewLoader(fc.Classifier.ModelPath), classifier.WithLogger(logger))
	agg, err := aggregator.New(fc, clf, aggregator.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("invalid scoring configuration: %w", err)
	}

	s := &services{}
	opts := []pipeline.AnalyzerOption{pipeline.WithAnalyzerLogger(logger)}
	if fc.Features.Reputation {
		s.reputation, err = reputation.New(fc.Reputation,
			reputation.WithLogger(logger),
			reputation.WithCache(fc.Cache.ReputationTTL, fc.Cache.MaxEntries),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create reputation service: %w", err)
		}
		opts = append(opts, pipeline.WithReputation(s.reputation))
	}
	if st != nil {
		opts = append(opts, pipeline.WithStore(st))
	}
	s.analyzer = pipeline.NewAnalyzer(cfg, agg, opts...)
	return s, nil
}
