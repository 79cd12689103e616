package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/phishguard/internal/features"
	"github.com/nao1215/phishguard/internal/model"
)

func newTestPage(t *testing.T, rawURL, html string) *Page {
	t.Helper()

	u, err := features.ParseTarget(rawURL)
	if err != nil {
		t.Fatalf("ParseTarget(%q): %v", rawURL, err)
	}
	if html == "" {
		return NewPage(u, nil)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return NewPage(u, doc)
}

type panicCheck struct{}

func (panicCheck) Name() string             { return "panics" }
func (panicCheck) Title() string            { return "Panicking Check" }
func (panicCheck) Category() model.Category { return model.CategoryContent }
func (panicCheck) MaxRisk() float64         { return 30 }
func (panicCheck) Analyze(context.Context, *Page) (model.Finding, error) {
	panic("boom")
}

func TestAnalyzer(t *testing.T) {
	t.Parallel()

	const benign = `<html><head><title>Docs</title></head><body><p>Read the manual.</p></body></html>`

	t.Run("benign page produces one safe finding per check", func(t *testing.T) {
		t.Parallel()

		a := New()
		findings, err := a.Analyze(context.Background(), newTestPage(t, "https://example.com/", benign))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(findings) != len(a.Checks()) {
			t.Fatalf("got %d findings, expected %d", len(findings), len(a.Checks()))
		}
		for _, f := range findings {
			if f.Severity != model.SeveritySafe || f.RiskFactor != 0 {
				t.Errorf("%s: got %s/%v, expected safe/0", f.Check, f.Severity, f.RiskFactor)
			}
			if f.MaxRisk == 0 {
				t.Errorf("%s: max risk must be set", f.Check)
			}
		}
	})

	t.Run("missing document yields neutral content findings", func(t *testing.T) {
		t.Parallel()

		findings, err := New().Analyze(context.Background(), newTestPage(t, "https://example.com/", ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, f := range findings {
			if f.Category != model.CategoryContent {
				continue
			}
			if f.Severity != model.SeverityWarning || f.RiskFactor != model.NeutralRisk {
				t.Errorf("%s: got %s/%v, expected neutral warning", f.Check, f.Severity, f.RiskFactor)
			}
		}
	})

	t.Run("panicking check is neutralized", func(t *testing.T) {
		t.Parallel()

		a := New(WithURLChecks(false), WithContentChecks(false))
		a.Register(panicCheck{})
		findings, err := a.Analyze(context.Background(), newTestPage(t, "https://example.com/", benign))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(findings) != 1 || findings[0].Check != "panics" || findings[0].RiskFactor != model.NeutralRisk {
			t.Errorf("got %+v, expected one neutral finding", findings)
		}
	})

	t.Run("family toggles", func(t *testing.T) {
		t.Parallel()

		if got := len(New(WithContentChecks(false)).Checks()); got != 4 {
			t.Errorf("got %d URL checks, expected 4", got)
		}
		if got := len(New(WithURLChecks(false)).Checks()); got != 4 {
			t.Errorf("got %d content checks, expected 4", got)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New().Analyze(ctx, newTestPage(t, "https://example.com/", benign))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, expected context.Canceled", err)
		}
	})
}

func TestURLChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		check    Check
		url      string
		severity model.Severity
		risk     float64
	}{
		{name: "https", check: NewProtocolCheck(), url: "https://example.com/", severity: model.SeveritySafe, risk: 0},
		{name: "http", check: NewProtocolCheck(), url: "http://example.com/", severity: model.SeverityDanger, risk: 25},
		{name: "plain domain", check: NewDomainCheck(), url: "https://example.com/", severity: model.SeveritySafe, risk: 0},
		{name: "sensitive word", check: NewDomainCheck(), url: "https://login.example.com/", severity: model.SeverityWarning, risk: 15},
		{name: "random label", check: NewDomainCheck(), url: "https://x7k2m9q4z1.example.com/", severity: model.SeverityWarning, risk: 15},
		{name: "two factors are capped", check: NewDomainCheck(), url: "https://secure.a.b.example.com/", severity: model.SeverityWarning, risk: 25},
		{name: "clean url", check: NewPatternCheck(), url: "https://example.com/docs", severity: model.SeveritySafe, risk: 0},
		{name: "ip with redirect", check: NewPatternCheck(), url: "http://192.168.1.1/a?redirect=x", severity: model.SeverityWarning, risk: 20},
		{name: "encoding", check: NewPatternCheck(), url: "https://example.com/%61dmin", severity: model.SeverityWarning, risk: 10},
		{name: "short", check: NewLengthCheck(), url: "https://example.com/", severity: model.SeveritySafe, risk: 0},
		{name: "long", check: NewLengthCheck(), url: "https://example.com/" + strings.Repeat("a", 100), severity: model.SeveritySafe, risk: 5},
		{name: "very long", check: NewLengthCheck(), url: "https://example.com/" + strings.Repeat("a", 200), severity: model.SeverityWarning, risk: 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := tt.check.Analyze(context.Background(), newTestPage(t, tt.url, ""))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Severity != tt.severity {
				t.Errorf("got severity %s, expected %s", f.Severity, tt.severity)
			}
			if f.RiskFactor != tt.risk {
				t.Errorf("got risk %v, expected %v", f.RiskFactor, tt.risk)
			}
			if f.Category != model.CategoryURL || f.MaxRisk != 25 {
				t.Errorf("got %s/%v, expected url/25", f.Category, f.MaxRisk)
			}
		})
	}
}

func TestContentChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		check    Check
		url      string
		html     string
		severity model.Severity
		risk     float64
	}{
		{
			name: "no login form", check: NewLoginFormCheck(), url: "https://example.com/",
			html:     `<form><input name="q"></form>`,
			severity: model.SeveritySafe, risk: 0,
		},
		{
			name: "login on http page", check: NewLoginFormCheck(), url: "http://example.com/",
			html:     `<form><input type="password"></form>`,
			severity: model.SeverityDanger, risk: 30,
		},
		{
			name: "login posting to http", check: NewLoginFormCheck(), url: "https://example.com/",
			html:     `<form action="http://collector.test/"><input type="PASSWORD"></form>`,
			severity: model.SeverityDanger, risk: 30,
		},
		{
			name: "secure login", check: NewLoginFormCheck(), url: "https://example.com/",
			html:     `<form action="/session"><input type="password"></form>`,
			severity: model.SeveritySafe, risk: 5,
		},
		{
			name: "brand with logo on foreign domain", check: NewBrandCheck(), url: "https://account-check.test/",
			html:     `<title>PayPal</title><body><img src="/img/pp.png" alt="PayPal logo"><p>Sign in</p></body>`,
			severity: model.SeverityWarning, risk: 20,
		},
		{
			name: "full-width brand name", check: NewBrandCheck(), url: "https://account-check.test/",
			html:     `<body><img src="/logo.png"><p>Welcome to ＰａｙＰａｌ</p></body>`,
			severity: model.SeverityWarning, risk: 20,
		},
		{
			name: "brand mention only", check: NewBrandCheck(), url: "https://blog.test/",
			html:     `<body><p>We accept PayPal.</p></body>`,
			severity: model.SeveritySafe, risk: 5,
		},
		{
			name: "brand on its own domain", check: NewBrandCheck(), url: "https://www.paypal.com/",
			html:     `<title>PayPal</title><body><img alt="PayPal logo"></body>`,
			severity: model.SeveritySafe, risk: 0,
		},
		{
			name: "brand on a trusted domain", url: "https://login.partner.test/",
			check:    &BrandCheck{brands: DefaultBrands, trusted: func(host string) bool { return host == "login.partner.test" }},
			html:     `<title>PayPal</title><body><img alt="PayPal logo"></body>`,
			severity: model.SeveritySafe, risk: 0,
		},
		{
			name: "hidden iframe", check: NewHiddenContentCheck(), url: "https://example.com/",
			html:     `<body><iframe src="https://x.test" style="display: none"></iframe></body>`,
			severity: model.SeverityDanger, risk: 25,
		},
		{
			name: "zero sized iframe", check: NewHiddenContentCheck(), url: "https://example.com/",
			html:     `<body><iframe src="https://x.test" width="0" height="0"></iframe></body>`,
			severity: model.SeverityDanger, risk: 25,
		},
		{
			name: "many hidden elements", check: NewHiddenContentCheck(), url: "https://example.com/",
			html:     `<body>` + strings.Repeat(`<input type="hidden" name="t">`, 21) + `</body>`,
			severity: model.SeverityWarning, risk: 15,
		},
		{
			name: "few hidden elements", check: NewHiddenContentCheck(), url: "https://example.com/",
			html:     `<body><div hidden>x</div><span style="visibility:hidden">y</span></body>`,
			severity: model.SeveritySafe, risk: 0,
		},
		{
			name: "normal text", check: NewQualityCheck(), url: "https://example.com/",
			html:     `<body><p>Welcome to our documentation.</p></body>`,
			severity: model.SeveritySafe, risk: 0,
		},
		{
			name: "single phrase", check: NewQualityCheck(), url: "https://example.com/",
			html:     `<body><p>Please verify your account.</p></body>`,
			severity: model.SeverityWarning, risk: 10,
		},
		{
			name: "urgent shouting", check: NewQualityCheck(), url: "https://example.com/",
			html:     `<body><p>URGENT ACTION REQUIRED!! Verify your account.</p></body>`,
			severity: model.SeverityWarning, risk: 15,
		},
		{
			name: "scam page", check: NewQualityCheck(), url: "https://example.com/",
			html:     `<body><p>URGENT ACTION REQUIRED!! Your acount has been suspended!! Verfy your pasword NOW.</p></body>`,
			severity: model.SeverityDanger, risk: 25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := tt.check.Analyze(context.Background(), newTestPage(t, tt.url, tt.html))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Severity != tt.severity {
				t.Errorf("got severity %s, expected %s (%s)", f.Severity, tt.severity, f.Description)
			}
			if f.RiskFactor != tt.risk {
				t.Errorf("got risk %v, expected %v", f.RiskFactor, tt.risk)
			}
			if f.Category != model.CategoryContent {
				t.Errorf("got category %s, expected content", f.Category)
			}
		})
	}
}

func TestContentChecksWithoutDocument(t *testing.T) {
	t.Parallel()

	page := newTestPage(t, "https://example.com/", "")
	for _, c := range []Check{NewLoginFormCheck(), NewBrandCheck(), NewHiddenContentCheck(), NewQualityCheck()} {
		if _, err := c.Analyze(context.Background(), page); !errors.Is(err, ErrNoContent) {
			t.Errorf("%s: got %v, expected ErrNoContent", c.Name(), err)
		}
	}
}

func TestNewPageVisibleText(t *testing.T) {
	t.Parallel()

	page := newTestPage(t, "https://example.com/",
		`<html><head><title> Hello </title><style>p{}</style></head><body><p>one</p><script>var x</script><p>two</p></body></html>`)
	if page.Title != "Hello" {
		t.Errorf("got title %q, expected %q", page.Title, "Hello")
	}
	if page.Text != "one two" {
		t.Errorf("got text %q, expected %q", page.Text, "one two")
	}
}
