// Package reputation runs third-party reputation checks for a URL.
//
// Each Checker contributes exactly one API-category finding. Checks run in
// parallel with a concurrency cap and their findings are returned in
// registration order. A check that fails (network error, bad response,
// missing credentials) is replaced by a neutral warning finding so that one
// unreachable service never aborts an analysis.
//
// Built-in checkers:
//   - WhoisChecker: domain age from the WhoisXML API
//   - SafeBrowsingChecker: Google Safe Browsing v4 threat matches
//   - DNSBLChecker: domain and IP blocklists over DNS
//   - NetworkChecker: resolved addresses in reserved or blocked networks
//   - SSLChecker: TLS handshake, certificate expiry and OCSP revocation
//
// Results are cached per normalized URL for the configured reputation TTL.
// Results containing a failed check are not cached.
package reputation
