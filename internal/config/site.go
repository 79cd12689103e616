package config

import "strings"

// SiteConfig holds per-host fetch overrides.
// Some pages only render their login form with a cookie or header set.
type SiteConfig struct {
	// Cookie is sent as the Cookie header, e.g. "name=value; other=x".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the global User-Agent for this host.
	UserAgent string `yaml:"user_agent,omitempty"`
}

// GetSiteConfig returns the overrides for host merged over SiteDefaults.
// Host matching is case-insensitive.
func (fc *FeatureConfig) GetSiteConfig(host string) SiteConfig {
	result := SiteConfig{
		Cookie:    fc.SiteDefaults.Cookie,
		UserAgent: fc.SiteDefaults.UserAgent,
	}
	if len(fc.SiteDefaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(fc.SiteDefaults.Headers))
		for k, v := range fc.SiteDefaults.Headers {
			result.Headers[k] = v
		}
	}

	site, ok := fc.Sites[strings.ToLower(host)]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	return result
}
