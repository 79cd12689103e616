package config

import "errors"

// Configuration validation errors.
// They are returned by Config.Validate and FeatureConfig.Normalize so that
// callers can use errors.Is for programmatic handling.
var (
	// ErrNoTarget is returned when no URL or list file is specified.
	ErrNoTarget = errors.New("no target specified: provide a URL or use --list")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidProxyAddress is returned when the proxy is not in host:port form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: must be host:port")

	// ErrInvalidWeights is returned when a weight is negative or not a number,
	// or when all weights of a set are zero.
	ErrInvalidWeights = errors.New("invalid weights: must be non-negative with a positive sum")

	// ErrInvalidThresholds is returned when thresholds are outside [0, 1]
	// or the suspicious threshold exceeds the phishing threshold.
	ErrInvalidThresholds = errors.New("invalid thresholds: require 0 <= suspicious <= phishing <= 1")

	// ErrInvalidLayout is returned when the feature vector layout is inconsistent.
	ErrInvalidLayout = errors.New("invalid layout: url_features must be >= 1 and min_length > url_features")

	// ErrInvalidReputationRange is returned for an unknown reputation signal range.
	ErrInvalidReputationRange = errors.New("invalid reputation_range: must be \"signed\" or \"unit\"")

	// ErrInvalidCache is returned when cache TTLs or size are not positive.
	ErrInvalidCache = errors.New("invalid cache settings: TTLs and max_entries must be positive")

	// ErrInvalidNetwork is returned when a blocked network is not valid CIDR.
	ErrInvalidNetwork = errors.New("invalid blocked network: must be CIDR notation")
)
