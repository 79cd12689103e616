package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/phishguard/internal/config"
	"golang.org/x/net/html/charset"
)

// maxRedirects bounds redirect chains.
const maxRedirects = 10

// HTTPFetcher fetches pages with a plain HTTP client.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	sites       SiteSource
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithUserAgent sets the default User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) { f.userAgent = ua }
}

// WithMaxBodySize sets the maximum number of body bytes read.
func WithMaxBodySize(size int64) HTTPOption {
	return func(f *HTTPFetcher) { f.maxBodySize = size }
}

// WithSites sets the per-host overrides.
func WithSites(sites SiteSource) HTTPOption {
	return func(f *HTTPFetcher) { f.sites = sites }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(f *HTTPFetcher) { f.client = client }
}

// WithTransport replaces the transport of the client, e.g. with SOCKS5Transport.
func WithTransport(rt http.RoundTripper) HTTPOption {
	return func(f *HTTPFetcher) { f.client.Transport = rt }
}

// NewHTTPFetcher creates an HTTPFetcher with a client limited to timeout.
func NewHTTPFetcher(timeout time.Duration, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent:   config.DefaultUserAgent,
		maxBodySize: config.DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads u and decodes the body to UTF-8.
// Non-2xx responses are returned as pages; phishing kits often serve their
// form with an error status.
func (f *HTTPFetcher) Fetch(ctx context.Context, u *url.URL) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	sc := siteConfig(f.sites, u, f.userAgent)
	req.Header.Set("User-Agent", sc.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if sc.Cookie != "" {
		req.Header.Set("Cookie", sc.Cookie)
	}
	for k, v := range sc.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}
	if !isHTML(mediaType) {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, mediaType)
	}

	// One extra byte detects truncation.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	truncated := int64(len(raw)) > f.maxBodySize
	if truncated {
		raw = raw[:f.maxBodySize]
	}

	body, err := decode(raw, contentType)
	if err != nil {
		return nil, err
	}

	return &Page{
		URL:         resp.Request.URL,
		StatusCode:  resp.StatusCode,
		Header:      resp.Header.Clone(),
		ContentType: mediaType,
		Body:        body,
		Truncated:   truncated,
	}, nil
}

// decode converts raw to UTF-8 using the Content-Type charset, a <meta>
// declaration, or content sniffing, in that order.
func decode(raw []byte, contentType string) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode body: %w", err)
	}
	return body, nil
}
