package reputation

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/nao1215/phishguard/internal/model"
	"github.com/yl2chen/cidranger"
)

const (
	blockedNetworkRisk  = 40
	reservedNetworkRisk = 20
)

// reservedNetworks are ranges a public web site should never resolve to.
var reservedNetworks = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
	"2001:db8::/32",
}

// NetworkChecker resolves the host and matches its addresses against
// reserved ranges and the configured blocked networks.
type NetworkChecker struct {
	resolver *Resolver
	reserved cidranger.Ranger
	blocked  cidranger.Ranger
}

// NewNetworkChecker creates a NetworkChecker. blocked holds CIDR strings.
func NewNetworkChecker(resolver *Resolver, blocked []string) (*NetworkChecker, error) {
	reserved, err := newRanger(reservedNetworks)
	if err != nil {
		return nil, err
	}
	blockedRanger, err := newRanger(blocked)
	if err != nil {
		return nil, err
	}
	return &NetworkChecker{resolver: resolver, reserved: reserved, blocked: blockedRanger}, nil
}

func newRanger(cidrs []string) (cidranger.Ranger, error) {
	r := cidranger.NewPCTrieRanger()
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("invalid network %q: %w", cidr, err)
		}
		if err := r.Insert(cidranger.NewBasicRangerEntry(*network)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (c *NetworkChecker) Name() string     { return "api_network" }
func (c *NetworkChecker) Title() string    { return "Hosting Network" }
func (c *NetworkChecker) MaxRisk() float64 { return APIMaxRisk }

// Check implements Checker.
func (c *NetworkChecker) Check(ctx context.Context, u *url.URL) (model.Finding, error) {
	ips, err := c.resolver.LookupIP(ctx, u.Hostname())
	if err != nil {
		return model.Finding{}, err
	}

	for _, ip := range ips {
		if hit, _ := c.blocked.Contains(ip); hit {
			return model.NewFinding(c.Name(), model.CategoryAPI, model.SeverityDanger, blockedNetworkRisk, APIMaxRisk, c.Title(),
				fmt.Sprintf("The site resolves to %s, which is in a blocked network.", ip)), nil
		}
	}
	for _, ip := range ips {
		if hit, _ := c.reserved.Contains(ip); hit {
			return model.NewFinding(c.Name(), model.CategoryAPI, model.SeverityWarning, reservedNetworkRisk, APIMaxRisk, c.Title(),
				fmt.Sprintf("The site resolves to %s, a private or reserved address.", ip)), nil
		}
	}
	return model.NewFinding(c.Name(), model.CategoryAPI, model.SeveritySafe, 0, APIMaxRisk, c.Title(),
		"The site is hosted on a public network."), nil
}
