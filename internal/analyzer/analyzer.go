package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/phishguard/internal/model"
)

// ErrNoContent is returned by content checks when the page has no document.
var ErrNoContent = errors.New("page content is not available")

// Check is a single explainable check.
type Check interface {
	// Name returns the stable check identifier used in findings.
	Name() string

	// Title is the headline used when the check cannot complete.
	Title() string

	// Category returns the family the check belongs to.
	Category() model.Category

	// MaxRisk is the largest contribution the check can report.
	MaxRisk() float64

	// Analyze inspects the page and returns one finding.
	Analyze(ctx context.Context, page *Page) (model.Finding, error)
}

// Analyzer runs registered checks against a page.
type Analyzer struct {
	checks []Check
	logger *slog.Logger
}

// Options configures which check families are registered.
type Options struct {
	URLChecks     bool
	ContentChecks bool
	Logger        *slog.Logger

	// Trusted reports hosts that are never flagged as brand impersonation.
	Trusted func(host string) bool
}

// Option configures an Analyzer.
type Option func(*Options)

// WithURLChecks toggles the URL check family.
func WithURLChecks(enabled bool) Option {
	return func(o *Options) { o.URLChecks = enabled }
}

// WithContentChecks toggles the content check family.
func WithContentChecks(enabled bool) Option {
	return func(o *Options) { o.ContentChecks = enabled }
}

// WithTrustedHosts exempts hosts for which trusted returns true from the
// brand impersonation check.
func WithTrustedHosts(trusted func(host string) bool) Option {
	return func(o *Options) { o.Trusted = trusted }
}

// WithLogger sets the logger used for failed checks.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// New creates an Analyzer with the built-in checks registered.
func New(opts ...Option) *Analyzer {
	options := Options{URLChecks: true, ContentChecks: true}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}

	a := &Analyzer{logger: options.Logger}
	if options.URLChecks {
		a.Register(NewProtocolCheck())
		a.Register(NewDomainCheck())
		a.Register(NewPatternCheck())
		a.Register(NewLengthCheck())
	}
	if options.ContentChecks {
		a.Register(NewLoginFormCheck())
		a.Register(&BrandCheck{brands: DefaultBrands, trusted: options.Trusted})
		a.Register(NewHiddenContentCheck())
		a.Register(NewQualityCheck())
	}
	return a
}

// Register appends a check.
func (a *Analyzer) Register(c Check) {
	a.checks = append(a.checks, c)
}

// Checks returns the registered checks in order.
func (a *Analyzer) Checks() []Check {
	out := make([]Check, len(a.checks))
	copy(out, a.checks)
	return out
}

// Analyze runs every registered check. A failing check contributes a
// neutral finding. Only context cancellation aborts the run.
func (a *Analyzer) Analyze(ctx context.Context, page *Page) ([]model.Finding, error) {
	findings := make([]model.Finding, 0, len(a.checks))
	for _, c := range a.checks {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		f, err := runCheck(ctx, c, page)
		if err != nil {
			a.logger.Debug("check failed",
				slog.String("check", c.Name()),
				slog.String("error", err.Error()))
			f = model.NeutralFinding(c.Name(), c.Category(), c.MaxRisk(), c.Title())
		}
		findings = append(findings, f)
	}
	return findings, nil
}

func runCheck(ctx context.Context, c Check, page *Page) (f model.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check %s panicked: %v", c.Name(), r)
		}
	}()
	if page == nil {
		return model.Finding{}, ErrNoContent
	}
	return c.Analyze(ctx, page)
}
