package pipeline

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/phishguard/internal/aggregator"
	"github.com/nao1215/phishguard/internal/classifier"
	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/fetcher"
	"github.com/nao1215/phishguard/internal/model"
	"github.com/nao1215/phishguard/internal/report"
	"github.com/nao1215/phishguard/internal/reputation"
	"github.com/nao1215/phishguard/internal/store"
)

const phishingPage = `<html><head><title>PayPal - Log in</title></head><body>
<img src="http://cdn.example.test/paypal-logo.png" alt="PayPal logo">
<form action="">
<input type="email" name="email">
<input type="password" name="pass">
</form>
<p>Your account has been suspended! Verify your account immediately!!!</p>
</body></html>`

type fixedClassifier struct{ score float64 }

func (c fixedClassifier) Score(context.Context, model.FeatureVector) classifier.Result {
	return classifier.Result{Score: c.score}
}

type fakeReputation struct {
	calls  atomic.Int32
	result reputation.Result
}

func (r *fakeReputation) Check(ctx context.Context, _ *url.URL) (reputation.Result, error) {
	r.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return reputation.Result{}, err
	}
	return r.result, nil
}

type memoryStore struct {
	mu      sync.Mutex
	reports []*model.Report
	err     error
}

func (s *memoryStore) Save(_ context.Context, r *model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.reports = append(s.reports, r)
	return nil
}

func (s *memoryStore) Get(context.Context, string) (*model.Report, error) {
	return nil, store.ErrNotFound
}

func (s *memoryStore) Latest(context.Context, string, int) ([]*model.Report, error) {
	return nil, nil
}

func (s *memoryStore) History(context.Context, string, int) ([]store.ReportMetadata, error) {
	return nil, nil
}

func (s *memoryStore) URLs(context.Context) ([]store.URLSummary, error) {
	return nil, nil
}

func (s *memoryStore) Close() error {
	return nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

func dangerousReputation() *fakeReputation {
	return &fakeReputation{result: reputation.Result{
		Findings: []model.Finding{
			model.NewFinding("api_safe_browsing", model.CategoryAPI, model.SeverityDanger, 40, 40, "Listed", "listed"),
		},
	}}
}

// pageServer serves html and counts requests.
func pageServer(t *testing.T, html string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func newTestAnalyzer(t *testing.T, mlScore float64, opts ...AnalyzerOption) *Analyzer {
	t.Helper()
	agg, err := aggregator.New(config.DefaultFeatureConfig(), fixedClassifier{score: mlScore})
	if err != nil {
		t.Fatal(err)
	}
	base := []AnalyzerOption{
		WithAnalyzerLogger(quietLogger()),
		WithFetcher(fetcher.NewHTTPFetcher(config.DefaultTimeout)),
	}
	return NewAnalyzer(config.NewConfig(), agg, append(base, opts...)...)
}

func TestAnalyzeURL(t *testing.T) {
	t.Parallel()

	t.Run("phishing page", func(t *testing.T) {
		t.Parallel()

		server, _ := pageServer(t, phishingPage)
		st := &memoryStore{}
		a := newTestAnalyzer(t, 0.95, WithReputation(dangerousReputation()), WithStore(st))

		out, err := a.AnalyzeURL(context.Background(), server.URL+"/login")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Breakdown.Verdict != model.VerdictPhishing {
			t.Errorf("got verdict %q, expected phishing (breakdown %+v)", out.Breakdown.Verdict, out.Breakdown)
		}
		if len(out.Vector) != 21 {
			t.Errorf("got vector of %d entries, expected 21", len(out.Vector))
		}
		if out.FetchError != "" {
			t.Errorf("unexpected fetch error %q", out.FetchError)
		}

		r := out.Report
		if r == nil {
			t.Fatal("expected a report")
		}
		if r.RiskScore < report.MLOverrideScore || r.Status != report.StatusMLPhishing {
			t.Errorf("got %d/%q, expected the ML override", r.RiskScore, r.Status)
		}
		if !r.Findings[0].IsMLResult {
			t.Errorf("got %q first, expected the ML finding", r.Findings[0].Check)
		}
		for _, c := range model.Categories() {
			if len(r.FindingsByCategory(c)) == 0 {
				t.Errorf("expected findings in category %s", c)
			}
		}
		if r.Breakdown == nil || r.Breakdown.FinalScore != out.Breakdown.FinalScore {
			t.Error("expected the breakdown in the report")
		}
		if st.count() != 1 {
			t.Errorf("got %d stored reports, expected 1", st.count())
		}
	})

	t.Run("storage failure does not fail the analysis", func(t *testing.T) {
		t.Parallel()

		server, _ := pageServer(t, phishingPage)
		st := &memoryStore{err: errors.New("disk full")}
		a := newTestAnalyzer(t, 0.95, WithStore(st))

		out, err := a.AnalyzeURL(context.Background(), server.URL+"/login")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Report == nil {
			t.Fatal("expected a report")
		}
		if st.count() != 0 {
			t.Errorf("got %d stored reports, expected 0", st.count())
		}
	})

	t.Run("results are cached", func(t *testing.T) {
		t.Parallel()

		server, hits := pageServer(t, phishingPage)
		st := &memoryStore{}
		rep := dangerousReputation()
		a := newTestAnalyzer(t, 0.1, WithReputation(rep), WithStore(st))

		first, err := a.AnalyzeURL(context.Background(), server.URL+"/login")
		if err != nil {
			t.Fatal(err)
		}
		// Same URL after normalization.
		second, err := a.AnalyzeURL(context.Background(), strings.ToUpper(server.URL[:4])+server.URL[4:]+"/login#top")
		if err != nil {
			t.Fatal(err)
		}
		if first != second {
			t.Error("expected the cached outcome")
		}
		if hits.Load() != 1 || rep.calls.Load() != 1 || st.count() != 1 {
			t.Errorf("got %d fetches, %d lookups, %d saves, expected 1 each", hits.Load(), rep.calls.Load(), st.count())
		}
		if stats := a.CacheStats(); stats.Hits != 1 || stats.Computes != 1 || stats.Size != 1 {
			t.Errorf("got %+v, expected one hit, one compute and one entry", stats)
		}
	})

	t.Run("concurrent calls share one run", func(t *testing.T) {
		t.Parallel()

		server, hits := pageServer(t, phishingPage)
		a := newTestAnalyzer(t, 0.1)

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := a.AnalyzeURL(context.Background(), server.URL); err != nil {
					t.Error(err)
				}
			}()
		}
		wg.Wait()
		if hits.Load() != 1 {
			t.Errorf("got %d fetches, expected 1", hits.Load())
		}
	})

	t.Run("unreachable page", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		target := server.URL
		server.Close()

		a := newTestAnalyzer(t, 0.1)
		out, err := a.AnalyzeURL(context.Background(), target)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.FetchError == "" {
			t.Error("expected the fetch error to be recorded")
		}
		for _, f := range out.Report.FindingsByCategory(model.CategoryContent) {
			if f.IsMLResult {
				continue
			}
			if f.Severity != model.SeverityWarning || f.RiskFactor != model.NeutralRisk {
				t.Errorf("%s: got %s/%v, expected a neutral finding", f.Check, f.Severity, f.RiskFactor)
			}
		}
	})

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()

		a := newTestAnalyzer(t, 0.1)
		_, err := a.AnalyzeURL(context.Background(), "ftp://example.com/")
		var inv *model.InvalidInputError
		if !errors.As(err, &inv) {
			t.Errorf("got %v, expected InvalidInputError", err)
		}
	})
}

func TestExtractFeatures(t *testing.T) {
	t.Parallel()

	t.Run("page", func(t *testing.T) {
		t.Parallel()

		server, _ := pageServer(t, phishingPage)
		a := newTestAnalyzer(t, 0.1)

		fv, err := a.ExtractFeatures(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(fv) != 21 {
			t.Fatalf("got %d entries, expected 21", len(fv))
		}
		if slot := fv[len(fv)-1]; !math.IsNaN(slot) {
			t.Errorf("got reputation slot %v, expected NaN", slot)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		target := server.URL
		server.Close()

		a := newTestAnalyzer(t, 0.1)
		if _, err := a.ExtractFeatures(context.Background(), target); err == nil {
			t.Error("expected error")
		}
	})
}

func TestAnalyzerPipeline(t *testing.T) {
	t.Parallel()

	agg, err := aggregator.New(config.DefaultFeatureConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("with store", func(t *testing.T) {
		t.Parallel()

		a := NewAnalyzer(config.NewConfig(), agg, WithAnalyzerLogger(quietLogger()), WithStore(&memoryStore{}))

		expected := []string{"fetch", "signals", "score", "report"}
		names := a.Pipeline().StepNames()
		if strings.Join(names, ",") != strings.Join(expected, ",") {
			t.Errorf("got %v, expected %v", names, expected)
		}
		persist := a.PersistPipeline().StepNames()
		if strings.Join(persist, ",") != "store" {
			t.Errorf("got %v, expected [store]", persist)
		}
	})

	t.Run("without store", func(t *testing.T) {
		t.Parallel()

		a := NewAnalyzer(config.NewConfig(), agg, WithAnalyzerLogger(quietLogger()))
		if n := a.PersistPipeline().StepCount(); n != 0 {
			t.Errorf("got %d persistence steps, expected 0", n)
		}
	})
}

func TestPersistPipeline(t *testing.T) {
	t.Parallel()

	agg, err := aggregator.New(config.DefaultFeatureConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	diskFull := errors.New("disk full")
	a := NewAnalyzer(config.NewConfig(), agg, WithAnalyzerLogger(quietLogger()), WithStore(&memoryStore{err: diskFull}))

	an := testAnalysis()
	an.Report = &model.Report{URL: an.Target()}
	if err := a.PersistPipeline().Execute(context.Background(), an); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(an.Err, diskFull) {
		t.Errorf("got %v recorded, expected the storage error", an.Err)
	}
	if len(an.PerformedSteps) != 1 || an.PerformedSteps[0] != "store" {
		t.Errorf("got %v performed steps, expected [store]", an.PerformedSteps)
	}
}

func TestHandle(t *testing.T) {
	t.Parallel()

	t.Run("predict", func(t *testing.T) {
		t.Parallel()

		a := newTestAnalyzer(t, 0.8)
		features := []float64{1, 1, -1, -1, -1, -1, -1, -1, -1, -1}
		resp := a.Handle(context.Background(), model.AnalysisRequest{
			Action:   model.ActionPredictPhishing,
			Features: features,
			TabID:    7,
		})
		if resp.Error != "" || resp.TabID != 7 {
			t.Errorf("got %+v, expected no error and tab 7", resp)
		}
		if resp.Score <= 0 || resp.Score > 1 {
			t.Errorf("got score %v, expected (0, 1]", resp.Score)
		}
	})

	t.Run("empty features", func(t *testing.T) {
		t.Parallel()

		a := newTestAnalyzer(t, 0.8)
		resp := a.Handle(context.Background(), model.AnalysisRequest{Action: model.ActionPredictPhishing})
		if resp.Result != model.VerdictSafe || resp.Score != 0 || resp.Error != model.NoFeaturesMessage {
			t.Errorf("got %+v, expected the no-features response", resp)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		t.Parallel()

		a := newTestAnalyzer(t, 0.8)
		resp := a.Handle(context.Background(), model.AnalysisRequest{Action: "launch", TabID: 3})
		if resp.Result != model.VerdictSafe || resp.Error == "" || resp.TabID != 3 {
			t.Errorf("got %+v, expected a safe error response for tab 3", resp)
		}
	})

	t.Run("analyze url returns the report", func(t *testing.T) {
		t.Parallel()

		server, _ := pageServer(t, phishingPage)
		a := newTestAnalyzer(t, 0.95, WithReputation(dangerousReputation()))
		resp := a.Handle(context.Background(), model.AnalysisRequest{Action: model.ActionAnalyzeURL, URL: server.URL})
		if resp.Result != model.VerdictPhishing || resp.Report == nil {
			t.Errorf("got %+v, expected phishing with a report", resp)
		}
	})

	t.Run("analyze invalid url", func(t *testing.T) {
		t.Parallel()

		a := newTestAnalyzer(t, 0.95)
		resp := a.Handle(context.Background(), model.AnalysisRequest{Action: model.ActionAnalyzeURL, URL: "mailto:someone@example.com"})
		if resp.Result != model.VerdictSafe || resp.Error == "" || resp.Report != nil {
			t.Errorf("got %+v, expected a safe error response", resp)
		}
	})
}
