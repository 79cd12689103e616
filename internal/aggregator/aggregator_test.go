package aggregator

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/nao1215/phishguard/internal/classifier"
	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/model"
)

const tolerance = 1e-9

// fakeClassifier returns a fixed result and counts calls.
type fakeClassifier struct {
	result classifier.Result
	panic  bool
	calls  atomic.Int32
}

func (f *fakeClassifier) Score(context.Context, model.FeatureVector) classifier.Result {
	f.calls.Add(1)
	if f.panic {
		panic("boom")
	}
	return f.result
}

// vector builds a default-layout vector: 9 URL, 11 content and the reputation slot.
func vector(url []float64, content []float64, slot float64) model.FeatureVector {
	fv := make(model.FeatureVector, 0, 21)
	fv = append(fv, url...)
	fv = append(fv, content...)
	return append(fv, slot)
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestAnalyzeEmptyVector(t *testing.T) {
	t.Parallel()

	clf := &fakeClassifier{result: classifier.Result{Score: 0.9}}
	a, err := New(config.DefaultFeatureConfig(), clf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	b := a.Analyze(context.Background(), nil)
	if b.Verdict != model.VerdictSafe || b.FinalScore != 0 {
		t.Errorf("got %+v, expected safe with score 0", b)
	}
	if b.Error != "No features provided" {
		t.Errorf("got error %q, expected %q", b.Error, "No features provided")
	}
	if clf.calls.Load() != 0 {
		t.Error("classifier should not run for an empty vector")
	}

	resp := model.ResponseFromBreakdown(b)
	if resp.Result != model.VerdictSafe || resp.Score != 0 || resp.Error != "No features provided" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestAnalyzeUndersizedVector(t *testing.T) {
	t.Parallel()

	a, err := New(config.DefaultFeatureConfig(), &fakeClassifier{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	b := a.Analyze(context.Background(), model.FeatureVector{1, 1, 1})
	if b.Verdict != model.VerdictSafe || b.FinalScore != 0 || b.Error == "" {
		t.Errorf("got %+v, expected skipped analysis", b)
	}
}

// TestAnalyzeWorkedExample checks the documented formula with
// weights {ml:0.3, feature:0.4, reputation:0.3} and mlScore 0.8.
func TestAnalyzeWorkedExample(t *testing.T) {
	t.Parallel()

	url := []float64{1, 1, -1, -1, -1, -1, -1, -1, -1}
	urlMean := 2.0 / 9.0
	content := repeat(-1, 11)
	featureScore := 0.5*urlMean + 0.5*0

	testCases := []struct {
		name       string
		slot       float64
		reputation float64
		verdict    model.Verdict
	}{
		{"clean reputation", -1, 0, model.VerdictSafe},
		{"unknown reputation", 0, 0.5, model.VerdictSuspicious},
		{"malicious reputation", 1, 1, model.VerdictPhishing},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			clf := &fakeClassifier{result: classifier.Result{Score: 0.8}}
			a, err := New(config.DefaultFeatureConfig(), clf)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			b := a.Analyze(context.Background(), vector(url, content, tc.slot))
			expected := 0.8*0.3 + featureScore*0.4 + tc.reputation*0.3

			if math.Abs(b.FeatureScore-featureScore) > tolerance {
				t.Errorf("featureScore %v, expected %v", b.FeatureScore, featureScore)
			}
			if math.Abs(b.ReputationScore-tc.reputation) > tolerance {
				t.Errorf("reputationScore %v, expected %v", b.ReputationScore, tc.reputation)
			}
			if math.Abs(b.FinalScore-expected) > tolerance {
				t.Errorf("finalScore %v, expected %v", b.FinalScore, expected)
			}
			if b.Verdict != tc.verdict {
				t.Errorf("verdict %q, expected %q (score %v)", b.Verdict, tc.verdict, b.FinalScore)
			}
			if b.UsedFallback {
				t.Error("fallback should not be used")
			}
		})
	}
}

func TestAnalyzeClassifierFallback(t *testing.T) {
	t.Parallel()

	fv := vector(repeat(1, 9), repeat(-1, 11), 1)
	// featureScore = 0.5*1 + 0.5*0 = 0.5, reputation = 1
	expected := 0.5*(0.4/0.7) + 1*(0.3/0.7)

	testCases := []struct {
		name string
		clf  Classifier
	}{
		{"degraded result", &fakeClassifier{result: classifier.Result{Degraded: true, Err: errors.New("offline")}}},
		{"panicking classifier", &fakeClassifier{panic: true}},
		{"nil classifier", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a, err := New(config.DefaultFeatureConfig(), tc.clf)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			b := a.Analyze(context.Background(), fv)
			if !b.UsedFallback {
				t.Fatal("expected fallback")
			}
			if b.MLScore != 0 {
				t.Errorf("mlScore %v, expected 0", b.MLScore)
			}
			if math.Abs(b.FinalScore-expected) > tolerance {
				t.Errorf("finalScore %v, expected %v", b.FinalScore, expected)
			}
			if b.Verdict != model.VerdictPhishing {
				t.Errorf("verdict %q, expected phishing", b.Verdict)
			}
		})
	}
}

func TestAnalyzeWithRealAdapterFallback(t *testing.T) {
	t.Parallel()

	adapter := classifier.New(classifier.LoaderFunc(func(context.Context) (classifier.Scorer, error) {
		return nil, errors.New("model file missing")
	}))
	a, err := New(config.DefaultFeatureConfig(), adapter)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b := a.Analyze(context.Background(), vector(repeat(-1, 9), repeat(-1, 11), -1))
	if !b.UsedFallback {
		t.Error("expected fallback when the model cannot load")
	}
	resp := model.ResponseFromBreakdown(b)
	if !resp.Fallback {
		t.Error("response should carry fallback flag")
	}
}

func TestClassifyStrictThresholds(t *testing.T) {
	t.Parallel()

	a, err := New(config.DefaultFeatureConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	testCases := []struct {
		score    float64
		expected model.Verdict
	}{
		{0, model.VerdictSafe},
		{0.3, model.VerdictSafe},
		{0.3000001, model.VerdictSuspicious},
		{0.5, model.VerdictSuspicious},
		{0.5000001, model.VerdictPhishing},
		{1, model.VerdictPhishing},
	}

	for _, tc := range testCases {
		if got := a.Classify(tc.score); got != tc.expected {
			t.Errorf("Classify(%v) = %q, expected %q", tc.score, got, tc.expected)
		}
	}
}

func TestSegmentMean(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		segment  []float64
		expected float64
	}{
		{"empty", nil, 0},
		{"all invalid", []float64{math.NaN(), math.Inf(1)}, 0},
		{"all risky", []float64{1, 1}, 1},
		{"all benign", []float64{-1, -1}, 0},
		{"invalid entries shrink denominator", []float64{1, math.NaN(), -1, math.Inf(-1)}, 0.5},
		{"out of range clamped", []float64{5}, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := SegmentMean(tc.segment); math.Abs(got-tc.expected) > tolerance {
				t.Errorf("got %v, expected %v", got, tc.expected)
			}
		})
	}
}

func TestAnalyzeInvalidEntries(t *testing.T) {
	t.Parallel()

	a, err := New(config.DefaultFeatureConfig(), &fakeClassifier{result: classifier.Result{Score: 0}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	url := repeat(math.NaN(), 9)
	url[0] = 1
	b := a.Analyze(context.Background(), vector(url, repeat(math.NaN(), 11), math.NaN()))
	if math.Abs(b.FeatureScore-0.5) > tolerance {
		t.Errorf("featureScore %v, expected 0.5", b.FeatureScore)
	}
	if b.ReputationScore != 0 {
		t.Errorf("reputationScore %v, expected 0 for NaN slot", b.ReputationScore)
	}
}

func TestAnalyzeWithFindings(t *testing.T) {
	t.Parallel()

	clf := &fakeClassifier{result: classifier.Result{Score: 0}}
	a, err := New(config.DefaultFeatureConfig(), clf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	findings := []model.Finding{
		model.NewFinding("api_domain_age", model.CategoryAPI, model.SeverityDanger, 30, 40, "", ""),
		model.NewFinding("api_ssl", model.CategoryAPI, model.SeveritySafe, 0, 40, "", ""),
		model.NewFinding("url_protocol", model.CategoryURL, model.SeverityDanger, 25, 25, "", ""),
	}
	// Slot says clean; findings override it.
	b := a.AnalyzeWithFindings(context.Background(), vector(repeat(-1, 9), repeat(-1, 11), -1), findings)
	if math.Abs(b.ReputationScore-30.0/80.0) > tolerance {
		t.Errorf("reputationScore %v, expected %v", b.ReputationScore, 30.0/80.0)
	}

	b = a.AnalyzeWithFindings(context.Background(), vector(repeat(-1, 9), repeat(-1, 11), 1), nil)
	if b.ReputationScore != 1 {
		t.Errorf("without findings the slot should be used, got %v", b.ReputationScore)
	}
}

func TestReputationUnitRange(t *testing.T) {
	t.Parallel()

	cfg, err := config.ParseConfig([]byte("layout:\n  reputation_range: unit\n"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := a.ReputationFromSlot(model.FeatureVector{0.25}); got != 0.25 {
		t.Errorf("got %v, expected 0.25", got)
	}
	if got := ReputationSignal(0.25, config.RangeUnit); got != 0.25 {
		t.Errorf("got %v, expected 0.25", got)
	}
	if got := ReputationSignal(0.25, config.RangeSigned); got != -0.5 {
		t.Errorf("got %v, expected -0.5", got)
	}
}

func TestDisabledClassifierSkipsModel(t *testing.T) {
	t.Parallel()

	cfg, err := config.ParseConfig([]byte("features:\n  classifier: false\n"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	clf := &fakeClassifier{result: classifier.Result{Score: 1}}
	a, err := New(cfg, clf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b := a.Analyze(context.Background(), vector(repeat(-1, 9), repeat(-1, 11), -1))
	if clf.calls.Load() != 0 {
		t.Error("disabled classifier should not be called")
	}
	if b.UsedFallback || b.MLScore != 0 {
		t.Errorf("unexpected breakdown: %+v", b)
	}
}

// TestAnalyzeProperties checks range, threshold consistency and idempotence
// over random vectors.
func TestAnalyzeProperties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	clf := &fakeClassifier{result: classifier.Result{Score: 0.6}}
	a, err := New(config.DefaultFeatureConfig(), clf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for i := range 500 {
		fv := make(model.FeatureVector, 10+rng.IntN(20))
		for j := range fv {
			fv[j] = rng.Float64()*4 - 2
		}

		first := a.Analyze(context.Background(), fv)
		second := a.Analyze(context.Background(), fv)

		if first != second {
			t.Fatalf("case %d: analyze is not idempotent: %+v vs %+v", i, first, second)
		}
		if first.FinalScore < 0 || first.FinalScore > 1 {
			t.Fatalf("case %d: finalScore %v out of range", i, first.FinalScore)
		}
		if first.Verdict != a.Classify(first.FinalScore) {
			t.Fatalf("case %d: verdict %q inconsistent with score %v", i, first.Verdict, first.FinalScore)
		}
	}
}
