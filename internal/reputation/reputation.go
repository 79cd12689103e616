package reputation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/phishguard/internal/cache"
	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// APIMaxRisk is the maximum contribution of every built-in API check.
const APIMaxRisk = 40

// Checker is one reputation sub-check.
type Checker interface {
	// Name returns the stable check identifier used in findings.
	Name() string

	// Title is the headline of the finding.
	Title() string

	// MaxRisk is the largest contribution the check can report.
	MaxRisk() float64

	// Check returns the finding for u. An error makes the service record a
	// neutral finding instead.
	Check(ctx context.Context, u *url.URL) (model.Finding, error)
}

// AgeSource is implemented by checkers that learn the registration age of
// a domain. The age feeds the domain registration feature.
type AgeSource interface {
	DomainAge(ctx context.Context, u *url.URL) (time.Duration, bool)
}

// Result is the outcome of all checks for one URL.
type Result struct {
	// Findings holds one finding per checker in registration order.
	Findings []model.Finding
	// DomainAge is the registration age, zero when unknown.
	DomainAge time.Duration
	// Failed counts checks replaced by a neutral finding.
	Failed int
}

// Score returns ΣRiskFactor/ΣMaxRisk over the findings, in [0, 1].
// ok is false when there is no evidence.
func (r Result) Score() (score float64, ok bool) {
	var risk, maxRisk float64
	for _, f := range r.Findings {
		risk += f.RiskFactor
		maxRisk += f.MaxRisk
	}
	if maxRisk <= 0 {
		return 0, false
	}
	return min(1, risk/maxRisk), true
}

// Service runs registered checkers with bounded concurrency.
type Service struct {
	checkers    []Checker
	concurrency int
	timeout     time.Duration
	ttl         time.Duration
	cache       *cache.Cache[Result]
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	httpClient *http.Client
	resolver   *Resolver
	logger     *slog.Logger
	checkers   []Checker
	ttl        time.Duration
	maxEntries int
	builtins   bool
}

// WithHTTPClient sets the client used by HTTP based checks.
func WithHTTPClient(c *http.Client) Option {
	return func(o *serviceOptions) { o.httpClient = c }
}

// WithResolver replaces the DNS resolver.
func WithResolver(r *Resolver) Option {
	return func(o *serviceOptions) { o.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *serviceOptions) { o.logger = l }
}

// WithCache sets the TTL and size cap of the result cache. A non-positive
// ttl disables caching.
func WithCache(ttl time.Duration, maxEntries int) Option {
	return func(o *serviceOptions) {
		o.ttl = ttl
		o.maxEntries = maxEntries
	}
}

// WithCheckers replaces the built-in checkers.
func WithCheckers(checkers ...Checker) Option {
	return func(o *serviceOptions) {
		o.checkers = checkers
		o.builtins = false
	}
}

// New creates a Service from cfg.
//
// WHOIS and Safe Browsing are registered only when their API keys are set;
// the DNS blocklist, network and certificate checks need no credentials.
func New(cfg config.ReputationConfig, opts ...Option) (*Service, error) {
	o := serviceOptions{
		logger:     slog.Default(),
		ttl:        config.DefaultReputationTTL,
		maxEntries: config.DefaultCacheEntries,
		builtins:   true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if o.resolver == nil {
		o.resolver = NewResolver(cfg.DNSBL.Server, cfg.Timeout)
	}

	s := &Service{
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		ttl:         o.ttl,
		logger:      o.logger,
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	if s.ttl > 0 {
		s.cache = cache.New[Result](
			cache.WithName("reputation"),
			cache.WithMaxEntries(o.maxEntries),
			cache.WithLogger(o.logger),
		)
	}

	if !o.builtins {
		s.checkers = append(s.checkers, o.checkers...)
		return s, nil
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(1, int(cfg.RatePerSecond)))
	}

	if cfg.Whois.APIKey != "" {
		s.Register(NewWhoisChecker(cfg.Whois, o.httpClient, limiter))
	}
	if cfg.SafeBrowsing.APIKey != "" {
		s.Register(NewSafeBrowsingChecker(cfg.SafeBrowsing, o.httpClient, limiter))
	}
	if len(cfg.DNSBL.Zones) > 0 {
		s.Register(NewDNSBLChecker(o.resolver, cfg.DNSBL.Zones))
	}
	network, err := NewNetworkChecker(o.resolver, cfg.BlockedNetworks)
	if err != nil {
		return nil, err
	}
	s.Register(network)
	s.Register(NewSSLChecker(cfg.SSL, o.httpClient, cfg.Timeout))
	return s, nil
}

// Register appends a checker.
func (s *Service) Register(c Checker) {
	s.checkers = append(s.checkers, c)
}

// Checkers returns the registered checkers in order.
func (s *Service) Checkers() []Checker {
	out := make([]Checker, len(s.checkers))
	copy(out, s.checkers)
	return out
}

// Check runs every checker for u. The only error is the end of ctx.
func (s *Service) Check(ctx context.Context, u *url.URL) (Result, error) {
	if s.cache == nil {
		return s.run(ctx, u)
	}

	key := u.String()
	res, err := s.cache.GetOrCompute(ctx, key, s.ttl, func(ctx context.Context) (Result, error) {
		return s.run(ctx, u)
	})
	if err != nil {
		return Result{}, err
	}
	if res.Failed > 0 {
		s.cache.Delete(key)
	}
	return res, nil
}

// StartSweeper removes expired cache entries every interval until ctx ends.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if s.cache != nil {
		s.cache.StartSweeper(ctx, interval)
	}
}

func (s *Service) run(ctx context.Context, u *url.URL) (Result, error) {
	findings := make([]model.Finding, len(s.checkers))
	failed := make([]bool, len(s.checkers))

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, c := range s.checkers {
		g.Go(func() error {
			f, err := s.runOne(ctx, c, u)
			if err != nil {
				s.logger.Warn("reputation check failed",
					slog.String("check", c.Name()),
					slog.String("url", u.String()),
					slog.String("error", err.Error()))
				f = model.NeutralFinding(c.Name(), model.CategoryAPI, c.MaxRisk(), c.Title())
				failed[i] = true
			}
			findings[i] = f
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{Findings: findings}
	for _, f := range failed {
		if f {
			res.Failed++
		}
	}
	for _, c := range s.checkers {
		if src, ok := c.(AgeSource); ok {
			if age, ok := src.DomainAge(ctx, u); ok {
				res.DomainAge = age
				break
			}
		}
	}
	return res, nil
}

func (s *Service) runOne(ctx context.Context, c Checker, u *url.URL) (f model.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &model.CollaboratorError{Check: c.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	f, err = c.Check(ctx, u)
	if err != nil {
		return model.Finding{}, &model.CollaboratorError{Check: c.Name(), Err: err}
	}
	f.Category = model.CategoryAPI
	return f, nil
}
