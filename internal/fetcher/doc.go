// Package fetcher retrieves the page behind a URL for content analysis.
//
// HTTPFetcher issues a plain GET with a bounded body and decodes it to
// UTF-8. ChromeFetcher renders the page in headless Chrome first, which
// exposes login forms that only exist after scripts run.
//
// Per-host cookies, headers and user agents come from the site section of
// the scoring configuration.
package fetcher
