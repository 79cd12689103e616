package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/nao1215/phishguard/internal/model"
)

// URL check limits.
const (
	urlMaxRisk = 25

	domainFactorRisk  = 15
	patternFactorRisk = 10
)

// ProtocolCheck flags pages served without TLS.
type ProtocolCheck struct{}

// NewProtocolCheck creates a ProtocolCheck.
func NewProtocolCheck() *ProtocolCheck { return &ProtocolCheck{} }

func (c *ProtocolCheck) Name() string             { return "url_protocol" }
func (c *ProtocolCheck) Title() string            { return "Connection Security" }
func (c *ProtocolCheck) Category() model.Category { return model.CategoryURL }
func (c *ProtocolCheck) MaxRisk() float64         { return urlMaxRisk }

// Analyze implements Check.
func (c *ProtocolCheck) Analyze(_ context.Context, page *Page) (model.Finding, error) {
	if page.URL.Scheme == "https" {
		return model.NewFinding(c.Name(), c.Category(), model.SeveritySafe, 0, urlMaxRisk,
			c.Title(), "This website uses a secure connection (HTTPS)."), nil
	}
	return model.NewFinding(c.Name(), c.Category(), model.SeverityDanger, urlMaxRisk, urlMaxRisk,
		c.Title(), "This website uses an insecure connection (HTTP). Sensitive information may be at risk."), nil
}

// DomainCheck looks for sensitive words and unusual structure in the host.
type DomainCheck struct {
	sensitive *regexp.Regexp
	random    *regexp.Regexp
}

// NewDomainCheck creates a DomainCheck.
func NewDomainCheck() *DomainCheck {
	return &DomainCheck{
		sensitive: regexp.MustCompile(`(?i)secure|login|account|banking|paypal|google|apple|microsoft|verify`),
		random:    regexp.MustCompile(`[a-z0-9]{8,}\.`),
	}
}

func (c *DomainCheck) Name() string             { return "url_domain" }
func (c *DomainCheck) Title() string            { return "Domain Analysis" }
func (c *DomainCheck) Category() model.Category { return model.CategoryURL }
func (c *DomainCheck) MaxRisk() float64         { return urlMaxRisk }

// Analyze implements Check.
func (c *DomainCheck) Analyze(_ context.Context, page *Page) (model.Finding, error) {
	host := page.URL.Hostname()

	var factors []string
	if c.sensitive.MatchString(host) {
		factors = append(factors, "contains sensitive terms")
	}
	if len(strings.Split(host, ".")) > 3 {
		factors = append(factors, "has excessive subdomains")
	}
	if c.random.MatchString(host) {
		factors = append(factors, "contains random-looking characters")
	}

	if len(factors) == 0 {
		return model.NewFinding(c.Name(), c.Category(), model.SeveritySafe, 0, urlMaxRisk, c.Title(),
			fmt.Sprintf("No obvious suspicious patterns detected in the domain %s.", host)), nil
	}
	return model.NewFinding(c.Name(), c.Category(), model.SeverityWarning,
		float64(len(factors)*domainFactorRisk), urlMaxRisk, c.Title(),
		fmt.Sprintf("The domain %s appears suspicious: %s.", host, strings.Join(factors, ", "))), nil
}

// PatternCheck looks for obfuscation tricks in the full URL.
type PatternCheck struct {
	patterns []urlPattern
}

type urlPattern struct {
	re     *regexp.Regexp
	reason string
}

// NewPatternCheck creates a PatternCheck.
func NewPatternCheck() *PatternCheck {
	return &PatternCheck{
		patterns: []urlPattern{
			{regexp.MustCompile(`(?i)^https?://\d+\.\d+\.\d+\.\d+`), "uses IP address instead of domain name"},
			{regexp.MustCompile(`(?i)%[0-9a-f]{2}`), "contains suspicious URL encoding"},
			{regexp.MustCompile(`\.{5,}`), "contains excessive dots"},
			{regexp.MustCompile(`(?i)url=|redirect=|to=|link=|goto=`), "contains redirect parameters"},
		},
	}
}

func (c *PatternCheck) Name() string             { return "url_patterns" }
func (c *PatternCheck) Title() string            { return "URL Pattern Analysis" }
func (c *PatternCheck) Category() model.Category { return model.CategoryURL }
func (c *PatternCheck) MaxRisk() float64         { return urlMaxRisk }

// Analyze implements Check.
func (c *PatternCheck) Analyze(_ context.Context, page *Page) (model.Finding, error) {
	raw := page.URL.String()

	var reasons []string
	for _, p := range c.patterns {
		if p.re.MatchString(raw) {
			reasons = append(reasons, p.reason)
		}
	}
	if len(reasons) == 0 {
		return model.NewFinding(c.Name(), c.Category(), model.SeveritySafe, 0, urlMaxRisk,
			c.Title(), "No suspicious URL patterns detected."), nil
	}
	return model.NewFinding(c.Name(), c.Category(), model.SeverityWarning,
		float64(len(reasons)*patternFactorRisk), urlMaxRisk, c.Title(),
		"Suspicious URL patterns detected: "+strings.Join(reasons, ", ")+"."), nil
}

// LengthCheck flags excessively long URLs.
type LengthCheck struct{}

// NewLengthCheck creates a LengthCheck.
func NewLengthCheck() *LengthCheck { return &LengthCheck{} }

func (c *LengthCheck) Name() string             { return "url_length" }
func (c *LengthCheck) Title() string            { return "URL Length" }
func (c *LengthCheck) Category() model.Category { return model.CategoryURL }
func (c *LengthCheck) MaxRisk() float64         { return urlMaxRisk }

// Analyze implements Check.
func (c *LengthCheck) Analyze(_ context.Context, page *Page) (model.Finding, error) {
	n := len(page.URL.String())
	switch {
	case n > 200:
		return model.NewFinding(c.Name(), c.Category(), model.SeverityWarning, 15, urlMaxRisk, c.Title(),
			"URL is excessively long, which can be a characteristic of phishing URLs."), nil
	case n > 100:
		return model.NewFinding(c.Name(), c.Category(), model.SeveritySafe, 5, urlMaxRisk, c.Title(),
			"URL is somewhat long, but still within reasonable limits."), nil
	default:
		return model.NewFinding(c.Name(), c.Category(), model.SeveritySafe, 0, urlMaxRisk, c.Title(),
			"URL length is normal."), nil
	}
}
