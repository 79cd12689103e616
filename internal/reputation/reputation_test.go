package reputation

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/model"
)

type fakeChecker struct {
	name  string
	risk  float64
	err   error
	panic bool
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeChecker) Name() string     { return f.name }
func (f *fakeChecker) Title() string    { return "Fake " + f.name }
func (f *fakeChecker) MaxRisk() float64 { return APIMaxRisk }

func (f *fakeChecker) Check(ctx context.Context, _ *url.URL) (model.Finding, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return model.Finding{}, ctx.Err()
		}
	}
	if f.panic {
		panic("checker exploded")
	}
	if f.err != nil {
		return model.Finding{}, f.err
	}
	sev := model.SeveritySafe
	if f.risk > 0 {
		sev = model.SeverityDanger
	}
	return model.NewFinding(f.name, model.CategoryURL, sev, f.risk, APIMaxRisk, f.Title(), "fake"), nil
}

func testConfig() config.ReputationConfig {
	return config.DefaultFeatureConfig().Reputation
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func newTestService(t *testing.T, ttl time.Duration, checkers ...Checker) *Service {
	t.Helper()
	s, err := New(testConfig(),
		WithCheckers(checkers...),
		WithCache(ttl, 10),
		WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestServiceCheck(t *testing.T) {
	t.Parallel()

	t.Run("findings keep registration order", func(t *testing.T) {
		t.Parallel()

		slow := &fakeChecker{name: "slow", risk: 40, delay: 30 * time.Millisecond}
		fast := &fakeChecker{name: "fast"}
		s := newTestService(t, 0, slow, fast)

		res, err := s.Check(context.Background(), mustURL(t, "https://example.com/"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Findings) != 2 || res.Findings[0].Check != "slow" || res.Findings[1].Check != "fast" {
			t.Fatalf("got %+v, expected slow then fast", res.Findings)
		}
		for _, f := range res.Findings {
			if f.Category != model.CategoryAPI {
				t.Errorf("%s: got category %s, expected api", f.Check, f.Category)
			}
		}
		score, ok := res.Score()
		if !ok || score != 0.5 {
			t.Errorf("got score %v (%v), expected 0.5", score, ok)
		}
	})

	t.Run("failures become neutral findings", func(t *testing.T) {
		t.Parallel()

		s := newTestService(t, 0,
			&fakeChecker{name: "broken", err: errors.New("connection refused")},
			&fakeChecker{name: "panics", panic: true},
			&fakeChecker{name: "ok"},
		)
		res, err := s.Check(context.Background(), mustURL(t, "https://example.com/"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Failed != 2 {
			t.Errorf("got %d failures, expected 2", res.Failed)
		}
		for _, f := range res.Findings[:2] {
			if f.Severity != model.SeverityWarning || f.RiskFactor != model.NeutralRisk || f.MaxRisk != APIMaxRisk {
				t.Errorf("%s: got %s/%v/%v, expected neutral warning", f.Check, f.Severity, f.RiskFactor, f.MaxRisk)
			}
		}
		if res.Findings[2].Severity != model.SeveritySafe {
			t.Errorf("got %s, expected safe", res.Findings[2].Severity)
		}
	})

	t.Run("results are cached per url", func(t *testing.T) {
		t.Parallel()

		c := &fakeChecker{name: "counted"}
		s := newTestService(t, time.Hour, c)
		u := mustURL(t, "https://example.com/")
		for range 3 {
			if _, err := s.Check(context.Background(), u); err != nil {
				t.Fatal(err)
			}
		}
		if got := c.calls.Load(); got != 1 {
			t.Errorf("got %d calls, expected 1", got)
		}
		if _, err := s.Check(context.Background(), mustURL(t, "https://other.example/")); err != nil {
			t.Fatal(err)
		}
		if got := c.calls.Load(); got != 2 {
			t.Errorf("got %d calls, expected 2", got)
		}
	})

	t.Run("results with failures are not cached", func(t *testing.T) {
		t.Parallel()

		c := &fakeChecker{name: "flaky", err: errors.New("timeout")}
		s := newTestService(t, time.Hour, c)
		u := mustURL(t, "https://example.com/")
		for range 2 {
			if _, err := s.Check(context.Background(), u); err != nil {
				t.Fatal(err)
			}
		}
		if got := c.calls.Load(); got != 2 {
			t.Errorf("got %d calls, expected 2", got)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		s := newTestService(t, time.Hour, &fakeChecker{name: "slow", delay: time.Second})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := s.Check(ctx, mustURL(t, "https://example.com/")); !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, expected context.Canceled", err)
		}
	})
}

func TestNewRegistersBuiltins(t *testing.T) {
	t.Parallel()

	t.Run("without credentials", func(t *testing.T) {
		t.Parallel()

		s, err := New(testConfig())
		if err != nil {
			t.Fatal(err)
		}
		var names []string
		for _, c := range s.Checkers() {
			names = append(names, c.Name())
		}
		expected := []string{"api_dnsbl", "api_network", "api_ssl"}
		if len(names) != len(expected) {
			t.Fatalf("got %v, expected %v", names, expected)
		}
		for i := range expected {
			if names[i] != expected[i] {
				t.Errorf("got %q, expected %q", names[i], expected[i])
			}
		}
	})

	t.Run("with credentials", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.Whois.APIKey = "test-whois"
		cfg.SafeBrowsing.APIKey = "test-sb"
		s, err := New(cfg)
		if err != nil {
			t.Fatal(err)
		}
		checkers := s.Checkers()
		if len(checkers) != 5 || checkers[0].Name() != "api_domain_age" || checkers[1].Name() != "api_safe_browsing" {
			t.Errorf("unexpected checkers: %d", len(checkers))
		}
	})

	t.Run("invalid blocked network", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.BlockedNetworks = []string{"not-a-cidr"}
		if _, err := New(cfg); err == nil {
			t.Error("expected error")
		}
	})
}

func TestResultScore(t *testing.T) {
	t.Parallel()

	if _, ok := (Result{}).Score(); ok {
		t.Error("empty result must have no evidence")
	}
	r := Result{Findings: []model.Finding{
		model.NewFinding("a", model.CategoryAPI, model.SeverityDanger, 40, 40, "", ""),
		model.NewFinding("b", model.CategoryAPI, model.SeveritySafe, 0, 40, "", ""),
		model.NewFinding("c", model.CategoryAPI, model.SeverityWarning, 20, 40, "", ""),
	}}
	if got, _ := r.Score(); got != 0.5 {
		t.Errorf("got %v, expected 0.5", got)
	}
}
