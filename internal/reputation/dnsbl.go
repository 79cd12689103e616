package reputation

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/miekg/dns"
	"github.com/nao1215/phishguard/internal/features"
	"github.com/nao1215/phishguard/internal/model"
)

const dnsblListedRisk = 35

// DNSBLChecker queries DNS blocklists for the registrable domain, or for
// the reversed address when the host is an IP literal.
type DNSBLChecker struct {
	resolver *Resolver
	zones    []string
}

// NewDNSBLChecker creates a DNSBLChecker.
func NewDNSBLChecker(resolver *Resolver, zones []string) *DNSBLChecker {
	return &DNSBLChecker{resolver: resolver, zones: zones}
}

func (c *DNSBLChecker) Name() string     { return "api_dnsbl" }
func (c *DNSBLChecker) Title() string    { return "DNS Blocklists" }
func (c *DNSBLChecker) MaxRisk() float64 { return APIMaxRisk }

// Check implements Checker.
func (c *DNSBLChecker) Check(ctx context.Context, u *url.URL) (model.Finding, error) {
	subject, err := blocklistSubject(u.Hostname())
	if err != nil {
		return model.Finding{}, err
	}

	var listed []string
	answered := 0
	var lastErr error
	for _, zone := range c.zones {
		hit, err := c.lookup(ctx, subject+"."+strings.Trim(zone, "."))
		if err != nil {
			lastErr = err
			continue
		}
		answered++
		if hit {
			listed = append(listed, zone)
		}
	}
	if answered == 0 && lastErr != nil {
		return model.Finding{}, lastErr
	}

	if len(listed) > 0 {
		return model.NewFinding(c.Name(), model.CategoryAPI, model.SeverityDanger, dnsblListedRisk, APIMaxRisk, c.Title(),
			fmt.Sprintf("The domain is listed on DNS blocklists: %s.", strings.Join(listed, ", "))), nil
	}
	return model.NewFinding(c.Name(), model.CategoryAPI, model.SeveritySafe, 0, APIMaxRisk, c.Title(),
		"The domain is not listed on the configured DNS blocklists."), nil
}

// lookup reports whether name has a listing record. Listings answer with an
// address in 127.0.0.0/8; 127.255.255.0/24 is reserved for error codes.
func (c *DNSBLChecker) lookup(ctx context.Context, name string) (bool, error) {
	rrs, err := c.resolver.Query(ctx, name, dns.TypeA)
	if err != nil {
		return false, err
	}
	for _, rr := range rrs {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		ip := a.A.To4()
		if ip == nil || ip[0] != 127 {
			continue
		}
		if ip[1] == 255 && ip[2] == 255 {
			return false, fmt.Errorf("%w: %s returned %s", ErrBlocklistRefused, name, ip)
		}
		return true, nil
	}
	return false, nil
}

func blocklistSubject(host string) (string, error) {
	ip := net.ParseIP(strings.Trim(host, "[]"))
	if ip == nil {
		return features.RegisteredDomain(host), nil
	}
	v4 := ip.To4()
	if v4 == nil {
		return "", fmt.Errorf("ipv6 address %s is not supported by blocklists", host)
	}
	return fmt.Sprintf("%d.%d.%d.%d", v4[3], v4[2], v4[1], v4[0]), nil
}
