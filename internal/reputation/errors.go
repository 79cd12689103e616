package reputation

import "errors"

var (
	// ErrNotConfigured is returned by checks whose credentials are missing.
	ErrNotConfigured = errors.New("check is not configured")
	// ErrUnexpectedStatus is returned when an API answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrNoCreationDate is returned when a WHOIS record carries no creation date.
	ErrNoCreationDate = errors.New("whois record has no creation date")
	// ErrNoAddresses is returned when a host resolves to no address.
	ErrNoAddresses = errors.New("host has no addresses")
	// ErrBlocklistRefused is returned when a blocklist refuses to answer
	// (for example queries through public resolvers).
	ErrBlocklistRefused = errors.New("blocklist refused the query")
)
