// Package log provides slog-based logging that never writes credentials.
//
// The SecureHandler masks:
//   - attributes whose key names a credential (api_key, token, cookie, dsn)
//   - values shaped like Google or WhoisXML API keys, JWTs, bearer tokens
//     and Postgres DSNs carrying a password
//   - userinfo and credential query parameters (key=, token=) in URLs
//
// Usage:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("lookup", "url", "https://safebrowsing.googleapis.com/v4/threatMatches:find?key=AIza...")
//	// url=https://safebrowsing.googleapis.com/v4/threatMatches:find?key=%2A%2A%2AREDACTED%2A%2A%2A
package log
