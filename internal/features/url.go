package features

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// URLFeatureCount is the number of features returned by ExtractURL.
const URLFeatureCount = 9

// URL feature indexes.
const (
	FeatureIPAddress = iota
	FeatureURLLength
	FeatureShortened
	FeatureAtSymbol
	FeaturePrefixSuffix
	FeatureSubdomainLevel
	FeatureSSLState
	FeatureDomainRegistration
	FeatureHTTPSToken
)

// URLFeatureNames names the URL features in vector order.
var URLFeatureNames = [URLFeatureCount]string{
	"ip_address",
	"url_length",
	"shortened_url",
	"at_symbol",
	"prefix_suffix",
	"subdomain_level",
	"ssl_state",
	"domain_registration",
	"https_token",
}

var ipv4Pattern = regexp.MustCompile(`\d{1,3}[.]\d{1,3}[.]\d{1,3}[.]\d{1,3}`)

// youngDomainAge is the registration age below which a domain counts as new.
const youngDomainAge = 365 * 24 * time.Hour

// DomainInfo carries facts about the domain learned from collaborators.
type DomainInfo struct {
	// Age is the time since registration. Zero means unknown.
	Age time.Duration
}

// ExtractURL returns the URL features of u.
func ExtractURL(u *url.URL, info DomainInfo) []float64 {
	href := u.String()
	host := u.Hostname()

	f := make([]float64, URLFeatureCount)
	f[FeatureIPAddress] = boolFeature(IsIPHost(host) || ipv4Pattern.MatchString(href))
	f[FeatureURLLength] = lengthFeature(len(href))
	// Any URL longer than 20 characters counts as not shortened.
	f[FeatureShortened] = boolFeature(len(href) <= 20)
	f[FeatureAtSymbol] = boolFeature(strings.Contains(href, "@"))
	f[FeaturePrefixSuffix] = boolFeature(strings.Contains(host, "-"))
	f[FeatureSubdomainLevel] = subdomainFeature(host)
	f[FeatureSSLState] = boolFeature(u.Scheme != "https")
	f[FeatureDomainRegistration] = registrationFeature(info)
	f[FeatureHTTPSToken] = boolFeature(strings.Contains(strings.ToLower(host+u.EscapedPath()), "https"))
	return f
}

func boolFeature(risky bool) float64 {
	if risky {
		return 1
	}
	return -1
}

func lengthFeature(n int) float64 {
	switch {
	case n < 54:
		return -1
	case n <= 75:
		return 0
	default:
		return 1
	}
}

// subdomainFeature is the number of host labels minus two, clamped to [-1, 1].
func subdomainFeature(host string) float64 {
	if host == "" || IsIPHost(host) {
		return 0
	}
	level := float64(len(strings.Split(host, ".")) - 2)
	return clampUnit(level)
}

func registrationFeature(info DomainInfo) float64 {
	switch {
	case info.Age <= 0:
		return 0
	case info.Age < youngDomainAge:
		return 1
	default:
		return -1
	}
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
