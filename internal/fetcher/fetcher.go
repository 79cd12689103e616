package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/nao1215/phishguard/internal/config"
)

// ErrNotHTML is returned for responses that are not HTML documents.
var ErrNotHTML = errors.New("response is not an HTML document")

// Page is a fetched document.
type Page struct {
	// URL is the final URL after redirects.
	URL *url.URL

	// StatusCode is the HTTP status, or 0 when rendered in a browser.
	StatusCode int

	// Header holds the response headers of the final response.
	Header http.Header

	// ContentType is the media type without parameters.
	ContentType string

	// Body is the UTF-8 decoded document.
	Body []byte

	// Truncated is set when the body exceeded the size limit.
	Truncated bool

	// Rendered is set when the body is the DOM after script execution.
	Rendered bool
}

// Fetcher retrieves a page.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) (*Page, error)
}

// SiteSource returns the fetch overrides for a host.
type SiteSource interface {
	GetSiteConfig(host string) config.SiteConfig
}

// isHTML reports whether a media type can hold an HTML document.
func isHTML(mediaType string) bool {
	switch strings.ToLower(mediaType) {
	case "", "text/html", "application/xhtml+xml", "text/plain":
		return true
	default:
		return false
	}
}

// siteConfig resolves overrides for u, falling back to userAgent.
func siteConfig(sites SiteSource, u *url.URL, userAgent string) config.SiteConfig {
	var sc config.SiteConfig
	if sites != nil {
		sc = sites.GetSiteConfig(u.Hostname())
	}
	if sc.UserAgent == "" {
		sc.UserAgent = userAgent
	}
	return sc
}
