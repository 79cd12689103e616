package reputation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/phishguard/internal/cache"
	"github.com/nao1215/phishguard/internal/config"
	"github.com/nao1215/phishguard/internal/features"
	"github.com/nao1215/phishguard/internal/model"
	"golang.org/x/time/rate"
)

const (
	month = 30 * 24 * time.Hour

	whoisNewRisk    = 30
	whoisRecentRisk = 15
)

var whoisTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type whoisResponse struct {
	WhoisRecord struct {
		CreatedDate           string `json:"createdDate"`
		CreatedDateNormalized string `json:"createdDateNormalized"`
		RegistryData          struct {
			CreatedDate           string `json:"createdDate"`
			CreatedDateNormalized string `json:"createdDateNormalized"`
		} `json:"registryData"`
	} `json:"WhoisRecord"`
}

func (r whoisResponse) createdAt() (time.Time, error) {
	candidates := []string{
		r.WhoisRecord.CreatedDate,
		r.WhoisRecord.CreatedDateNormalized,
		r.WhoisRecord.RegistryData.CreatedDate,
		r.WhoisRecord.RegistryData.CreatedDateNormalized,
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		for _, layout := range whoisTimeLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, ErrNoCreationDate
}

// WhoisChecker rates the registration age of the domain.
// Creation dates are cached per registrable domain.
type WhoisChecker struct {
	endpoint string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	created  *cache.Cache[time.Time]
	now      func() time.Time
}

// NewWhoisChecker creates a WhoisChecker.
func NewWhoisChecker(cfg config.WhoisConfig, client *http.Client, limiter *rate.Limiter) *WhoisChecker {
	return &WhoisChecker{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
		limiter:  limiter,
		created:  cache.New[time.Time](cache.WithName("whois")),
		now:      time.Now,
	}
}

func (c *WhoisChecker) Name() string     { return "api_domain_age" }
func (c *WhoisChecker) Title() string    { return "Domain Age" }
func (c *WhoisChecker) MaxRisk() float64 { return APIMaxRisk }

// Check implements Checker.
func (c *WhoisChecker) Check(ctx context.Context, u *url.URL) (model.Finding, error) {
	created, err := c.lookup(ctx, u)
	if err != nil {
		return model.Finding{}, err
	}

	age := c.now().Sub(created)
	months := int(age / month)
	switch {
	case age < month:
		return model.NewFinding(c.Name(), model.CategoryAPI, model.SeverityDanger, whoisNewRisk, APIMaxRisk, c.Title(),
			"This domain was registered very recently (less than 1 month ago). New domains are frequently used for phishing."), nil
	case age < 6*month:
		return model.NewFinding(c.Name(), model.CategoryAPI, model.SeverityWarning, whoisRecentRisk, APIMaxRisk, c.Title(),
			fmt.Sprintf("This domain was registered %d months ago. Relatively new domains should be treated with caution.", months)), nil
	default:
		return model.NewFinding(c.Name(), model.CategoryAPI, model.SeveritySafe, 0, APIMaxRisk, c.Title(),
			fmt.Sprintf("This domain was registered %d months ago. Well-established domains are generally more trustworthy.", months)), nil
	}
}

// DomainAge returns the age learned by a previous Check.
func (c *WhoisChecker) DomainAge(_ context.Context, u *url.URL) (time.Duration, bool) {
	created, ok := c.created.Get(features.RegisteredDomain(u.Hostname()))
	if !ok {
		return 0, false
	}
	return c.now().Sub(created), true
}

func (c *WhoisChecker) lookup(ctx context.Context, u *url.URL) (time.Time, error) {
	if c.apiKey == "" {
		return time.Time{}, ErrNotConfigured
	}
	domain := features.RegisteredDomain(u.Hostname())
	if features.IsIPHost(domain) {
		return time.Time{}, fmt.Errorf("no whois record for address %s", domain)
	}

	return c.created.GetOrCompute(ctx, domain, config.DefaultReputationTTL, func(ctx context.Context) (time.Time, error) {
		q := url.Values{}
		q.Set("domainName", domain)
		q.Set("apiKey", c.apiKey)
		q.Set("outputFormat", "JSON")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
		if err != nil {
			return time.Time{}, err
		}
		req.Header.Set("Accept", "application/json")

		var resp whoisResponse
		if err := doJSON(ctx, c.client, c.limiter, req, &resp); err != nil {
			return time.Time{}, err
		}
		return resp.createdAt()
	})
}
