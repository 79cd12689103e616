package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"

	"github.com/nao1215/phishguard/internal/aggregator"
	"github.com/nao1215/phishguard/internal/analyzer"
	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/features"
	"github.com/nao1215/phishguard/internal/fetcher"
	"github.com/nao1215/phishguard/internal/model"
	"github.com/nao1215/phishguard/internal/report"
	"github.com/nao1215/phishguard/internal/reputation"
	"github.com/nao1215/phishguard/internal/store"
	"golang.org/x/sync/errgroup"
)

// Reputation looks up third-party signals for a URL.
// *reputation.Service implements it.
type Reputation interface {
	Check(ctx context.Context, u *url.URL) (reputation.Result, error)
}

// FetchStep downloads and parses the page.
// A page that cannot be fetched is not an error: the analysis continues
// with URL and reputation signals only.
type FetchStep struct {
	fetcher fetcher.Fetcher
	logger  *slog.Logger
}

// NewFetchStep creates a FetchStep.
func NewFetchStep(f fetcher.Fetcher, logger *slog.Logger) *FetchStep {
	return &FetchStep{fetcher: f, logger: logger}
}

// Name returns the step name.
func (s *FetchStep) Name() string { return "fetch" }

// Do fetches a.URL.
func (s *FetchStep) Do(ctx context.Context, a *Analysis) error {
	page, err := s.fetcher.Fetch(ctx, a.URL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.Warn("page unavailable", "url", a.Target(), "error", err)
		a.FetchErr = err
		return nil
	}

	doc, err := features.ParseHTML(bytes.NewReader(page.Body))
	if err != nil {
		s.logger.Warn("page is not parseable", "url", a.Target(), "error", err)
		a.FetchErr = err
		return nil
	}
	a.Page = page
	a.Document = doc
	s.logger.Debug("page fetched",
		"url", a.Target(),
		"status", page.StatusCode,
		"bytes", len(page.Body),
		"rendered", page.Rendered,
	)
	return nil
}

// SignalsStep runs the heuristic checks and the reputation lookups
// concurrently.
type SignalsStep struct {
	checks     *analyzer.Analyzer
	reputation Reputation
	logger     *slog.Logger
}

// NewSignalsStep creates a SignalsStep. rep may be nil.
func NewSignalsStep(checks *analyzer.Analyzer, rep Reputation, logger *slog.Logger) *SignalsStep {
	return &SignalsStep{checks: checks, reputation: rep, logger: logger}
}

// Name returns the step name.
func (s *SignalsStep) Name() string { return "signals" }

// Do fills the URL, content and API findings of a.
func (s *SignalsStep) Do(ctx context.Context, a *Analysis) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		found, err := s.checks.Analyze(gctx, analyzer.NewPage(a.URL, a.Document))
		if err != nil {
			return err
		}
		for _, f := range found {
			if f.Category == model.CategoryURL {
				a.URLFindings = append(a.URLFindings, f)
			} else {
				a.ContentFindings = append(a.ContentFindings, f)
			}
		}
		return nil
	})

	if s.reputation != nil {
		g.Go(func() error {
			res, err := s.reputation.Check(gctx, a.URL)
			if err != nil {
				return err
			}
			if res.Failed > 0 {
				s.logger.Debug("reputation degraded", "url", a.Target(), "failed", res.Failed)
			}
			a.Reputation = res
			return nil
		})
	}

	return g.Wait()
}

// ScoreStep assembles the feature vector and aggregates it.
type ScoreStep struct {
	aggregator *aggregator.Aggregator
}

// NewScoreStep creates a ScoreStep.
func NewScoreStep(agg *aggregator.Aggregator) *ScoreStep {
	return &ScoreStep{aggregator: agg}
}

// Name returns the step name.
func (s *ScoreStep) Name() string { return "score" }

// Do sets a.Vector and a.Breakdown and appends the classifier finding.
func (s *ScoreStep) Do(ctx context.Context, a *Analysis) error {
	cfg := s.aggregator.Config()

	urlFeatures := features.ExtractURL(a.URL, features.DomainInfo{Age: a.Reputation.DomainAge})
	contentFeatures := unknownFeatures(features.ContentFeatureCount)
	if a.Document != nil {
		contentFeatures = features.ExtractContent(a.Document)
	}
	slot := math.NaN()
	if score, ok := a.Reputation.Score(); ok {
		slot = aggregator.ReputationSignal(score, cfg.Layout.ReputationRange)
	}

	fv, err := features.Assemble(cfg.Layout, urlFeatures, contentFeatures, slot)
	if err != nil {
		return fmt.Errorf("failed to assemble features: %w", err)
	}
	a.Vector = fv
	a.Breakdown = s.aggregator.AnalyzeWithFindings(ctx, fv, a.Reputation.Findings)

	if cfg.Features.Classifier {
		if f, ok := report.MLFinding(a.Breakdown, cfg.Thresholds.Phishing, cfg.Thresholds.Suspicious); ok {
			a.ContentFindings = append(a.ContentFindings, f)
		}
	}
	return nil
}

// unknownFeatures returns n NaN entries; the aggregator skips them.
func unknownFeatures(n int) []float64 {
	f := make([]float64, n)
	for i := range f {
		f[i] = math.NaN()
	}
	return f
}

// ReportStep builds the report.
type ReportStep struct {
	builder *report.Builder
}

// NewReportStep creates a ReportStep.
func NewReportStep(b *report.Builder) *ReportStep {
	return &ReportStep{builder: b}
}

// Name returns the step name.
func (s *ReportStep) Name() string { return "report" }

// Do sets a.Report.
func (s *ReportStep) Do(_ context.Context, a *Analysis) error {
	breakdown := a.Breakdown
	r := s.builder.BuildWithBreakdown(a.URL.String(), a.URLFindings, a.ContentFindings, a.Reputation.Findings, &breakdown)
	a.Report = &r
	return nil
}

// StoreStep saves the report.
type StoreStep struct {
	store store.Store
}

// NewStoreStep creates a StoreStep.
func NewStoreStep(s store.Store) *StoreStep {
	return &StoreStep{store: s}
}

// Name returns the step name.
func (s *StoreStep) Name() string { return "store" }

// Do saves a.Report.
func (s *StoreStep) Do(ctx context.Context, a *Analysis) error {
	if a.Report == nil {
		return nil
	}
	if err := s.store.Save(ctx, a.Report); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// defaultFetcher builds the fetcher selected by cfg.
func defaultFetcher(cfg *config.Config, sites fetcher.SiteSource) fetcher.Fetcher {
	if cfg.UseBrowser {
		opts := []fetcher.ChromeOption{
			fetcher.WithChromeUserAgent(cfg.UserAgent),
			fetcher.WithChromeSites(sites),
			fetcher.WithChromeMaxBodySize(cfg.EffectiveMaxBodySize()),
		}
		if cfg.ProxyAddress != "" {
			opts = append(opts, fetcher.WithChromeProxy(cfg.ProxyAddress))
		}
		return fetcher.NewChromeFetcher(cfg.Timeout, opts...)
	}
	opts := []fetcher.HTTPOption{
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithSites(sites),
		fetcher.WithMaxBodySize(cfg.EffectiveMaxBodySize()),
	}
	if cfg.ProxyAddress != "" {
		opts = append(opts, fetcher.WithTransport(fetcher.SOCKS5Transport(cfg.ProxyAddress)))
	}
	return fetcher.NewHTTPFetcher(cfg.Timeout, opts...)
}
