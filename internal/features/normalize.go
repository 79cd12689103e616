package features

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// URL validation errors.
var (
	// ErrEmptyURL is returned for an empty target.
	ErrEmptyURL = errors.New("url is empty")
	// ErrUnsupportedScheme is returned for schemes other than http and https.
	ErrUnsupportedScheme = errors.New("unsupported url scheme: only http and https are analyzed")
	// ErrMissingHost is returned when the URL has no host.
	ErrMissingHost = errors.New("url has no host")
)

// ParseTarget parses and normalizes a user-supplied URL.
//
// A missing scheme defaults to https. The host is lower-cased and converted
// to its ASCII (punycode) form, default ports and the fragment are dropped
// and an empty path becomes "/".
func ParseTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrUnsupportedScheme
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return nil, ErrMissingHost
	}
	if net.ParseIP(host) == nil {
		if ascii, err := idna.Lookup.ToASCII(host); err == nil {
			host = ascii
		}
	}

	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host = host + ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// NormalizeURL returns the normalized string form of raw, used as cache key.
func NormalizeURL(raw string) (string, error) {
	u, err := ParseTarget(raw)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// RegisteredDomain returns the registrable domain (eTLD+1) of host, e.g.
// "login.paypal.co.uk" → "paypal.co.uk". IP addresses and hosts without a
// known public suffix are returned unchanged.
func RegisteredDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if IsIPHost(host) {
		return host
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// IsIPHost reports whether host is an IPv4 or IPv6 literal.
func IsIPHost(host string) bool {
	return net.ParseIP(strings.Trim(host, "[]")) != nil
}

// UnicodeHost returns the display form of a punycode host.
func UnicodeHost(host string) string {
	if u, err := idna.Display.ToUnicode(host); err == nil {
		return u
	}
	return host
}
