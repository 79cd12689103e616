package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/nao1215/phishguard/internal/config"
)

// Defaults of ChromeFetcher.
const (
	DefaultIdleAfter = 2 * time.Second
	DefaultMaxWait   = 10 * time.Second
)

// ChromeFetcher renders pages in headless Chrome.
type ChromeFetcher struct {
	timeout     time.Duration
	idleAfter   time.Duration
	maxWait     time.Duration
	userAgent   string
	maxBodySize int64
	sites       SiteSource
	execPath    string
	proxyAddr   string
}

// ChromeOption configures a ChromeFetcher.
type ChromeOption func(*ChromeFetcher)

// WithChromeUserAgent sets the default browser User-Agent.
func WithChromeUserAgent(ua string) ChromeOption {
	return func(f *ChromeFetcher) { f.userAgent = ua }
}

// WithChromeSites sets the per-host overrides.
func WithChromeSites(sites SiteSource) ChromeOption {
	return func(f *ChromeFetcher) { f.sites = sites }
}

// WithIdleWait sets how long the network must stay idle and the upper
// bound on waiting for it.
func WithIdleWait(idleAfter, maxWait time.Duration) ChromeOption {
	return func(f *ChromeFetcher) {
		f.idleAfter = idleAfter
		f.maxWait = maxWait
	}
}

// WithExecPath sets the Chrome binary. Empty searches the PATH.
func WithExecPath(path string) ChromeOption {
	return func(f *ChromeFetcher) { f.execPath = path }
}

// WithChromeProxy routes the browser through the SOCKS5 proxy at addr.
func WithChromeProxy(addr string) ChromeOption {
	return func(f *ChromeFetcher) { f.proxyAddr = addr }
}

// WithChromeMaxBodySize sets the maximum size of the rendered DOM.
func WithChromeMaxBodySize(size int64) ChromeOption {
	return func(f *ChromeFetcher) { f.maxBodySize = size }
}

// NewChromeFetcher creates a ChromeFetcher bounded by timeout per page.
func NewChromeFetcher(timeout time.Duration, opts ...ChromeOption) *ChromeFetcher {
	f := &ChromeFetcher{
		timeout:     timeout,
		idleAfter:   DefaultIdleAfter,
		maxWait:     DefaultMaxWait,
		userAgent:   config.DefaultUserAgent,
		maxBodySize: config.DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch navigates to u, waits for the network to settle and returns the DOM.
// Each call starts its own browser so that cookies never leak between pages.
func (f *ChromeFetcher) Fetch(ctx context.Context, u *url.URL) (*Page, error) {
	sc := siteConfig(f.sites, u, f.userAgent)

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.UserAgent(sc.UserAgent),
		chromedp.Flag("disable-extensions", true),
	)
	if f.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(f.execPath))
	}
	if f.proxyAddr != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer("socks5://"+f.proxyAddr))
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	headers := network.Headers{}
	for k, v := range sc.Headers {
		headers[k] = v
	}
	if sc.Cookie != "" {
		headers["Cookie"] = sc.Cookie
	}

	var status atomic.Int64
	idle := waitNetworkIdle(browserCtx, f.idleAfter, &status)

	actions := []chromedp.Action{network.Enable()}
	if len(headers) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}
	actions = append(actions, chromedp.Navigate(u.String()))
	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", u.Redacted(), err)
	}

	select {
	case <-idle:
	case <-time.After(f.maxWait):
	case <-browserCtx.Done():
		return nil, browserCtx.Err()
	}

	var html, location string
	if err := chromedp.Run(browserCtx,
		chromedp.OuterHTML("html", &html),
		chromedp.Location(&location),
	); err != nil {
		return nil, fmt.Errorf("failed to capture DOM: %w", err)
	}

	final, err := url.Parse(location)
	if err != nil || final.Host == "" {
		final = u
	}
	body := []byte(html)
	truncated := int64(len(body)) > f.maxBodySize
	if truncated {
		body = body[:f.maxBodySize]
	}
	return &Page{
		URL:         final,
		StatusCode:  int(status.Load()),
		ContentType: "text/html",
		Body:        body,
		Truncated:   truncated,
		Rendered:    true,
	}, nil
}

// waitNetworkIdle returns a channel that is closed once no request has been
// in flight for idleAfter. The status of the main document is stored in
// status.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration, status *atomic.Int64) <-chan struct{} {
	idle := make(chan struct{})
	var (
		active atomic.Int32
		mu     sync.Mutex
		timer  *time.Timer
		once   sync.Once
	)

	restart := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(idleAfter, func() {
			if active.Load() <= 0 {
				once.Do(func() { close(idle) })
			}
		})
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			active.Add(1)
		case *network.EventResponseReceived:
			if e.Type == network.ResourceTypeDocument && e.Response != nil {
				status.Store(e.Response.Status)
			}
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			if active.Add(-1) <= 0 {
				restart()
			}
		}
	})
	return idle
}
