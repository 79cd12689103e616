package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/nao1215/phishguard/internal/classifier"
	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/model"
)

// Classifier scores a feature vector, reporting failures as a degraded result.
// *classifier.Adapter implements it.
type Classifier interface {
	Score(ctx context.Context, features model.FeatureVector) classifier.Result
}

// Aggregator turns feature vectors into ScoreBreakdowns.
// It holds no mutable state and is safe for concurrent use.
type Aggregator struct {
	cfg        *config.FeatureConfig
	classifier Classifier
	logger     *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// New creates an Aggregator. cfg is normalized if it has not been already.
// clf may be nil, in which case every analysis uses the fallback weights.
func New(cfg *config.FeatureConfig, clf Classifier, opts ...Option) (*Aggregator, error) {
	if cfg == nil {
		cfg = config.DefaultFeatureConfig()
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	a := &Aggregator{
		cfg:        cfg,
		classifier: clf,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Config returns the scoring configuration.
func (a *Aggregator) Config() *config.FeatureConfig {
	return a.cfg
}

// Analyze scores a vector using its trailing slot as the reputation signal.
func (a *Aggregator) Analyze(ctx context.Context, features model.FeatureVector) model.ScoreBreakdown {
	return a.analyze(ctx, features, nil)
}

// AnalyzeWithFindings scores a vector using API findings as the reputation
// signal. Without API findings it behaves like Analyze.
func (a *Aggregator) AnalyzeWithFindings(ctx context.Context, features model.FeatureVector, findings []model.Finding) model.ScoreBreakdown {
	return a.analyze(ctx, features, findings)
}

func (a *Aggregator) analyze(ctx context.Context, features model.FeatureVector, findings []model.Finding) (b model.ScoreBreakdown) {
	defer func() {
		if r := recover(); r != nil {
			err := &model.AggregationError{Err: fmt.Errorf("%v", r)}
			a.logger.Error("aggregation failed", "error", err)
			b = model.EmptyBreakdown(err.Error())
		}
	}()

	if len(features) == 0 {
		return model.EmptyBreakdown(model.NoFeaturesMessage)
	}
	if len(features) < a.cfg.Layout.MinLength {
		err := &model.InvalidInputError{
			Reason: fmt.Sprintf("feature vector has %d entries, need at least %d", len(features), a.cfg.Layout.MinLength),
		}
		a.logger.Debug("analysis skipped", "error", err)
		return model.EmptyBreakdown(err.Reason)
	}

	featureScore := a.FeatureScore(features)

	reputationScore, ok := ReputationFromFindings(findings)
	if !ok {
		reputationScore = a.ReputationFromSlot(features)
	}

	var mlScore float64
	degraded := false
	if a.cfg.Features.Classifier {
		mlScore, degraded = a.classify(ctx, features)
	}

	weights := a.cfg.Weights
	if degraded {
		weights = a.cfg.FallbackWeights()
	}

	final := clamp01(mlScore*weights.ML + featureScore*weights.Feature + reputationScore*weights.Reputation)

	return model.ScoreBreakdown{
		MLScore:         mlScore,
		FeatureScore:    featureScore,
		ReputationScore: reputationScore,
		FinalScore:      final,
		UsedFallback:    degraded,
		Verdict:         a.Classify(final),
	}
}

// classify runs the classifier, treating a missing or panicking classifier as degraded.
func (a *Aggregator) classify(ctx context.Context, features model.FeatureVector) (score float64, degraded bool) {
	if a.classifier == nil {
		return 0, true
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("classifier panicked", "error", r)
			score, degraded = 0, true
		}
	}()
	res := a.classifier.Score(ctx, features)
	if res.Degraded {
		return 0, true
	}
	return clamp01(res.Score), false
}

// FeatureScore returns the weighted average of the URL and content segment means.
func (a *Aggregator) FeatureScore(features model.FeatureVector) float64 {
	urlEnd := a.cfg.Layout.URLFeatures
	urlMean := SegmentMean(features.Segment(0, urlEnd))
	contentMean := SegmentMean(features.Segment(urlEnd, len(features)-1))
	sw := a.cfg.SegmentWeights
	return clamp01(urlMean*sw.URL + contentMean*sw.Content)
}

// ReputationFromSlot maps the trailing slot to [0, 1] according to the
// configured range. A non-numeric slot counts as no evidence (0).
func (a *Aggregator) ReputationFromSlot(features model.FeatureVector) float64 {
	v, ok := features.Last()
	if !ok || !model.IsValidNumber(v) {
		return 0
	}
	if a.cfg.Layout.ReputationRange == config.RangeUnit {
		return clamp01(v)
	}
	return signedToUnit(v)
}

// Classify maps a final score to a verdict using strict greater-than.
func (a *Aggregator) Classify(score float64) model.Verdict {
	switch {
	case score > a.cfg.Thresholds.Phishing:
		return model.VerdictPhishing
	case score > a.cfg.Thresholds.Suspicious:
		return model.VerdictSuspicious
	default:
		return model.VerdictSafe
	}
}

// SegmentMean averages the valid entries of a segment after mapping them
// from [-1, 1] to [0, 1]. Invalid entries shrink the denominator; a segment
// without valid entries has mean 0.
func SegmentMean(segment []float64) float64 {
	sum := 0.0
	n := 0
	for _, v := range segment {
		if !model.IsValidNumber(v) {
			continue
		}
		sum += signedToUnit(v)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ReputationFromFindings returns ΣRiskFactor/ΣMaxRisk over API findings.
// ok is false when no API finding carries a positive maximum.
func ReputationFromFindings(findings []model.Finding) (score float64, ok bool) {
	var risk, maxRisk float64
	for _, f := range findings {
		if f.Category != model.CategoryAPI || f.MaxRisk <= 0 {
			continue
		}
		risk += f.RiskFactor
		maxRisk += f.MaxRisk
	}
	if maxRisk <= 0 {
		return 0, false
	}
	return clamp01(risk / maxRisk), true
}

// ReputationSignal encodes a [0, 1] reputation score into the trailing slot
// for the configured range.
func ReputationSignal(score float64, reputationRange string) float64 {
	score = clamp01(score)
	if reputationRange == config.RangeUnit {
		return score
	}
	return score*2 - 1
}

func signedToUnit(v float64) float64 {
	return clamp01((v + 1) / 2)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
