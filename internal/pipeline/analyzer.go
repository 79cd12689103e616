package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"time"

	"github.com/nao1215/phishguard/internal/aggregator"
	"github.com/nao1215/phishguard/internal/analyzer"
	"github.com/nao1215/phishguard/internal/cache"
	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/features"
	"github.com/nao1215/phishguard/internal/fetcher"
	"github.com/nao1215/phishguard/internal/model"
	"github.com/nao1215/phishguard/internal/report"
	"github.com/nao1215/phishguard/internal/store"
)

// Outcome is the cached result of analyzing one URL.
type Outcome struct {
	Report    *model.Report
	Breakdown model.ScoreBreakdown
	Vector    model.FeatureVector

	// FetchError is set when the page could not be retrieved.
	FetchError string
}

// Analyzer analyzes URLs end to end and answers analysis requests.
// It is safe for concurrent use.
type Analyzer struct {
	aggregator *aggregator.Aggregator
	checks     *analyzer.Analyzer
	fetcher    fetcher.Fetcher
	reputation Reputation
	store      store.Store
	builder    *report.Builder
	results    *cache.Cache[*Outcome]
	ttl        time.Duration
	logger     *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithFetcher replaces the fetcher. A nil fetcher skips page retrieval.
func WithFetcher(f fetcher.Fetcher) AnalyzerOption {
	return func(a *Analyzer) { a.fetcher = f }
}

// WithReputation sets the reputation source.
func WithReputation(r Reputation) AnalyzerOption {
	return func(a *Analyzer) { a.reputation = r }
}

// WithStore saves every new report to s.
func WithStore(s store.Store) AnalyzerOption {
	return func(a *Analyzer) { a.store = s }
}

// WithBuilder replaces the report builder.
func WithBuilder(b *report.Builder) AnalyzerOption {
	return func(a *Analyzer) { a.builder = b }
}

// WithChecks replaces the heuristic checks.
func WithChecks(c *analyzer.Analyzer) AnalyzerOption {
	return func(a *Analyzer) { a.checks = c }
}

// WithAnalyzerLogger sets the logger.
func WithAnalyzerLogger(l *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.logger = l }
}

// NewAnalyzer creates an Analyzer around agg. Without options it fetches
// pages over plain HTTP and has no reputation source and no store.
func NewAnalyzer(cfg *config.Config, agg *aggregator.Aggregator, opts ...AnalyzerOption) *Analyzer {
	fc := agg.Config()
	a := &Analyzer{
		aggregator: agg,
		builder:    report.NewBuilder(),
		ttl:        fc.Cache.AnalysisTTL,
		logger:     slog.Default(),
	}
	if fc.Features.Content {
		a.fetcher = defaultFetcher(cfg, fc)
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.checks == nil {
		a.checks = analyzer.New(
			analyzer.WithURLChecks(fc.Features.URL),
			analyzer.WithContentChecks(fc.Features.Content),
			analyzer.WithTrustedHosts(fc.IsTrustedDomain),
			analyzer.WithLogger(a.logger),
		)
	}
	if a.ttl > 0 {
		a.results = cache.New[*Outcome](
			cache.WithName("analysis"),
			cache.WithMaxEntries(fc.Cache.MaxEntries),
			cache.WithLogger(a.logger),
		)
	}
	return a
}

// Pipeline returns the steps that produce one report. The first failing
// step ends the run.
func (a *Analyzer) Pipeline() *Pipeline {
	p := New(WithLogger(a.logger))
	if a.fetcher != nil {
		p.AddStep(NewFetchStep(a.fetcher, a.logger))
	}
	p.AddSteps(
		NewSignalsStep(a.checks, a.reputation, a.logger),
		NewScoreStep(a.aggregator),
		NewReportStep(a.builder),
	)
	return p
}

// PersistPipeline returns the steps that run once a report exists. They
// keep going past failures, which end up in Analysis.Err and the log and
// never fail the analysis.
func (a *Analyzer) PersistPipeline() *Pipeline {
	p := New(WithLogger(a.logger), WithContinueOnError(true))
	if a.store != nil {
		p.AddStep(NewStoreStep(a.store))
	}
	return p
}

// AnalyzeURL analyzes raw. Results are cached per normalized URL for the
// analysis TTL and concurrent calls for one URL share a single run.
// Errors are invalid input or the end of ctx.
func (a *Analyzer) AnalyzeURL(ctx context.Context, raw string) (*Outcome, error) {
	u, err := features.ParseTarget(raw)
	if err != nil {
		return nil, &model.InvalidInputError{Reason: err.Error()}
	}
	if a.results == nil {
		return a.run(ctx, u)
	}
	return a.results.GetOrCompute(ctx, u.String(), a.ttl, func(ctx context.Context) (*Outcome, error) {
		return a.run(ctx, u)
	})
}

func (a *Analyzer) run(ctx context.Context, u *url.URL) (*Outcome, error) {
	an := NewAnalysis(u)
	if err := a.Pipeline().Execute(ctx, an); err != nil {
		return nil, err
	}
	if persist := a.PersistPipeline(); persist.StepCount() > 0 {
		if err := persist.Execute(ctx, an); err != nil {
			a.logger.Debug("persistence interrupted", "url", an.Target(), "error", err)
		}
	}
	out := &Outcome{
		Report:    an.Report,
		Breakdown: an.Breakdown,
		Vector:    an.Vector,
	}
	if an.FetchErr != nil {
		out.FetchError = an.FetchErr.Error()
	}
	a.logger.Info("analysis complete",
		"url", an.Target(),
		"verdict", out.Breakdown.Verdict,
		"score", out.Breakdown.FinalScore,
		"risk", out.Report.RiskScore,
	)
	return out, nil
}

// ExtractFeatures fetches raw and returns its feature vector the way a
// browser client computes it: URL and content features with an empty
// reputation slot.
func (a *Analyzer) ExtractFeatures(ctx context.Context, raw string) (model.FeatureVector, error) {
	u, err := features.ParseTarget(raw)
	if err != nil {
		return nil, &model.InvalidInputError{Reason: err.Error()}
	}

	an := NewAnalysis(u)
	p := New(WithLogger(a.logger))
	if a.fetcher != nil {
		p.AddStep(NewFetchStep(a.fetcher, a.logger))
	}
	if err := p.Execute(ctx, an); err != nil {
		return nil, err
	}
	if an.FetchErr != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", an.Target(), an.FetchErr)
	}

	contentFeatures := unknownFeatures(features.ContentFeatureCount)
	if an.Document != nil {
		contentFeatures = features.ExtractContent(an.Document)
	}
	return features.Assemble(a.aggregator.Config().Layout,
		features.ExtractURL(u, features.DomainInfo{}), contentFeatures, math.NaN())
}

// Predict scores a caller-supplied feature vector.
func (a *Analyzer) Predict(ctx context.Context, fv model.FeatureVector) model.ScoreBreakdown {
	return a.aggregator.Analyze(ctx, fv)
}

// Handle answers one message. It always returns a complete response;
// failures are reported in its Error field.
func (a *Analyzer) Handle(ctx context.Context, req model.AnalysisRequest) (resp model.AnalysisResponse) {
	defer func() {
		if r := recover(); r != nil {
			err := &model.AggregationError{Err: fmt.Errorf("%v", r)}
			a.logger.Error("request failed", "action", req.Action, "error", err)
			resp = model.ErrorResponse(err)
		}
		resp.TabID = req.TabID
	}()

	if err := req.Validate(); err != nil {
		return model.ErrorResponse(err)
	}

	switch req.Action {
	case model.ActionAnalyzeURL:
		out, err := a.AnalyzeURL(ctx, req.URL)
		if err != nil {
			return model.ErrorResponse(err)
		}
		resp = model.ResponseFromBreakdown(out.Breakdown)
		resp.Report = out.Report
		return resp
	default:
		return model.ResponseFromBreakdown(a.Predict(ctx, req.Features))
	}
}

// StartSweeper removes expired cached results every interval until ctx ends.
func (a *Analyzer) StartSweeper(ctx context.Context, interval time.Duration) {
	if a.results != nil {
		a.results.StartSweeper(ctx, interval)
	}
}

// CacheStats returns the analysis cache statistics.
func (a *Analyzer) CacheStats() cache.Stats {
	if a.results == nil {
		return cache.Stats{}
	}
	return a.results.Stats()
}
