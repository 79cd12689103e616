package config

import (
	"math"
	"net"
	"strings"
	"time"
)

// Default scoring values.
const (
	DefaultMLWeight         = 0.3
	DefaultFeatureWeight    = 0.4
	DefaultReputationWeight = 0.3

	DefaultURLSegmentWeight     = 0.5
	DefaultContentSegmentWeight = 0.5

	DefaultPhishingThreshold   = 0.5
	DefaultSuspiciousThreshold = 0.3

	// DefaultURLFeatures is the size of the URL segment of a feature vector.
	DefaultURLFeatures = 9
	// DefaultMinLength is the shortest vector accepted: the URL segment
	// followed by the reputation slot.
	DefaultMinLength = DefaultURLFeatures + 1

	DefaultAnalysisTTL   = 5 * time.Minute
	DefaultReputationTTL = 24 * time.Hour
	DefaultCacheEntries  = 1000
	DefaultSweepInterval = time.Minute

	DefaultReputationTimeout     = 10 * time.Second
	DefaultReputationConcurrency = 4
	DefaultRatePerSecond         = 5.0
	DefaultCertExpiryWarning     = 14 * 24 * time.Hour

	DefaultSafeBrowsingEndpoint = "https://safebrowsing.googleapis.com/v4/threatMatches:find"
	DefaultWhoisEndpoint        = "https://www.whoisxmlapi.com/whoisserver/WhoisService"
	DefaultDNSServer            = "1.1.1.1:53"
	DefaultDNSBLZone            = "dbl.spamhaus.org"
)

// Reputation signal ranges for the trailing vector slot.
const (
	// RangeSigned means the slot holds a value in [-1, 1].
	RangeSigned = "signed"
	// RangeUnit means the slot holds a value in [0, 1].
	RangeUnit = "unit"
)

// Environment variables that override credentials from the file.
const (
	EnvSafeBrowsingKey = "PHISHGUARD_SAFE_BROWSING_KEY" //nolint:gosec // variable name, not a credential
	EnvWhoisKey        = "PHISHGUARD_WHOIS_KEY"         //nolint:gosec // variable name, not a credential
	EnvDatabaseURL     = "PHISHGUARD_DATABASE_URL"
)

// EnabledFeatures switches whole signal families on or off.
type EnabledFeatures struct {
	URL        bool `yaml:"url"`
	Content    bool `yaml:"content"`
	Reputation bool `yaml:"reputation"`
	Classifier bool `yaml:"classifier"`
}

// SignalWeights weights the three inputs of the final score.
type SignalWeights struct {
	ML         float64 `yaml:"ml" json:"ml"`
	Feature    float64 `yaml:"feature" json:"feature"`
	Reputation float64 `yaml:"reputation" json:"reputation"`
}

// Sum returns the total of the weights.
func (w SignalWeights) Sum() float64 {
	return w.ML + w.Feature + w.Reputation
}

// SegmentWeights weights the URL and content segment means of featureScore.
type SegmentWeights struct {
	URL     float64 `yaml:"url" json:"url"`
	Content float64 `yaml:"content" json:"content"`
}

// Thresholds are compared with strict greater-than.
type Thresholds struct {
	Phishing   float64 `yaml:"phishing"`
	Suspicious float64 `yaml:"suspicious"`
}

// Layout fixes the segment boundaries of a feature vector.
//
// Entries [0, URLFeatures) are URL features, [URLFeatures, len-1) are content
// features and the last entry is the reputation signal.
type Layout struct {
	URLFeatures     int    `yaml:"url_features"`
	MinLength       int    `yaml:"min_length"`
	ReputationRange string `yaml:"reputation_range"`
}

// CacheConfig holds TTLs and the size cap of the in-memory caches.
type CacheConfig struct {
	AnalysisTTL   time.Duration `yaml:"analysis_ttl"`
	ReputationTTL time.Duration `yaml:"reputation_ttl"`
	MaxEntries    int           `yaml:"max_entries"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ClassifierConfig selects the model file.
type ClassifierConfig struct {
	// ModelPath is a YAML or JSON linear model. Empty selects built-in weights.
	ModelPath string `yaml:"model_path"`
}

// SafeBrowsingConfig configures the Safe Browsing v4 lookup.
type SafeBrowsingConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	ClientID string `yaml:"client_id"`
}

// WhoisConfig configures the WHOIS domain age lookup.
type WhoisConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

// DNSBLConfig configures DNS blocklist lookups.
type DNSBLConfig struct {
	Server string   `yaml:"server"`
	Zones  []string `yaml:"zones"`
}

// SSLConfig configures the certificate check.
type SSLConfig struct {
	ExpiryWarning time.Duration `yaml:"expiry_warning"`
	CheckOCSP     bool          `yaml:"check_ocsp"`
}

// ReputationConfig configures the reputation collaborators.
type ReputationConfig struct {
	Timeout         time.Duration      `yaml:"timeout"`
	Concurrency     int                `yaml:"concurrency"`
	RatePerSecond   float64            `yaml:"rate_per_second"`
	SafeBrowsing    SafeBrowsingConfig `yaml:"safe_browsing"`
	Whois           WhoisConfig        `yaml:"whois"`
	DNSBL           DNSBLConfig        `yaml:"dnsbl"`
	SSL             SSLConfig          `yaml:"ssl"`
	BlockedNetworks []string           `yaml:"blocked_networks"`
}

// FeatureConfig is the process-wide scoring configuration.
// Call Normalize once after construction; LoadConfigFile does this.
type FeatureConfig struct {
	Features       EnabledFeatures       `yaml:"features"`
	Weights        SignalWeights         `yaml:"weights"`
	SegmentWeights SegmentWeights        `yaml:"segment_weights"`
	Thresholds     Thresholds            `yaml:"thresholds"`
	Layout         Layout                `yaml:"layout"`
	Cache          CacheConfig           `yaml:"cache"`
	Classifier     ClassifierConfig      `yaml:"classifier"`
	Reputation     ReputationConfig      `yaml:"reputation"`
	TrustedDomains []string              `yaml:"trusted_domains"`
	SiteDefaults   SiteConfig            `yaml:"site_defaults"`
	Sites          map[string]SiteConfig `yaml:"sites"`

	fallback   SignalWeights
	normalized bool
}

// DefaultFeatureConfig returns the built-in scoring configuration, normalized.
func DefaultFeatureConfig() *FeatureConfig {
	fc := newFeatureConfig()
	// Defaults always validate.
	_ = fc.Normalize()
	return fc
}

func newFeatureConfig() *FeatureConfig {
	return &FeatureConfig{
		Features: EnabledFeatures{URL: true, Content: true, Reputation: true, Classifier: true},
		Weights: SignalWeights{
			ML:         DefaultMLWeight,
			Feature:    DefaultFeatureWeight,
			Reputation: DefaultReputationWeight,
		},
		SegmentWeights: SegmentWeights{URL: DefaultURLSegmentWeight, Content: DefaultContentSegmentWeight},
		Thresholds:     Thresholds{Phishing: DefaultPhishingThreshold, Suspicious: DefaultSuspiciousThreshold},
		Layout: Layout{
			URLFeatures:     DefaultURLFeatures,
			MinLength:       DefaultMinLength,
			ReputationRange: RangeSigned,
		},
		Cache: CacheConfig{
			AnalysisTTL:   DefaultAnalysisTTL,
			ReputationTTL: DefaultReputationTTL,
			MaxEntries:    DefaultCacheEntries,
			SweepInterval: DefaultSweepInterval,
		},
		Reputation: ReputationConfig{
			Timeout:       DefaultReputationTimeout,
			Concurrency:   DefaultReputationConcurrency,
			RatePerSecond: DefaultRatePerSecond,
			SafeBrowsing:  SafeBrowsingConfig{Endpoint: DefaultSafeBrowsingEndpoint, ClientID: AppName},
			Whois:         WhoisConfig{Endpoint: DefaultWhoisEndpoint},
			DNSBL:         DNSBLConfig{Server: DefaultDNSServer, Zones: []string{DefaultDNSBLZone}},
			SSL:           SSLConfig{ExpiryWarning: DefaultCertExpiryWarning, CheckOCSP: true},
		},
		Sites: make(map[string]SiteConfig),
	}
}

// Normalize validates the configuration and rescales weights to sum to 1.
//
// Disabled feature families get zero weight before rescaling. The fallback
// weight set (classifier weight zero, feature and reputation renormalized)
// is derived here as well. Normalize runs at most once; later calls are
// no-ops so effective weights never drift.
func (fc *FeatureConfig) Normalize() error {
	if fc.normalized {
		return nil
	}

	if err := fc.validateStatic(); err != nil {
		return err
	}

	w := fc.Weights
	seg := fc.SegmentWeights
	if !fc.Features.Classifier {
		w.ML = 0
	}
	if !fc.Features.URL {
		seg.URL = 0
	}
	if !fc.Features.Content {
		seg.Content = 0
	}
	if !fc.Features.URL && !fc.Features.Content {
		w.Feature = 0
	}
	if !fc.Features.Reputation {
		w.Reputation = 0
	}

	if !validWeights(w.ML, w.Feature, w.Reputation) {
		return ErrInvalidWeights
	}
	sum := w.Sum()
	fc.Weights = SignalWeights{ML: w.ML / sum, Feature: w.Feature / sum, Reputation: w.Reputation / sum}

	if segSum := seg.URL + seg.Content; segSum > 0 {
		fc.SegmentWeights = SegmentWeights{URL: seg.URL / segSum, Content: seg.Content / segSum}
	} else {
		fc.SegmentWeights = SegmentWeights{}
	}

	fb := fc.Weights.Feature + fc.Weights.Reputation
	if fb > 0 {
		fc.fallback = SignalWeights{Feature: fc.Weights.Feature / fb, Reputation: fc.Weights.Reputation / fb}
	} else {
		fc.fallback = SignalWeights{}
	}

	fc.normalized = true
	return nil
}

func (fc *FeatureConfig) validateStatic() error {
	if !validWeights(fc.Weights.ML, fc.Weights.Feature, fc.Weights.Reputation) {
		return ErrInvalidWeights
	}
	if fc.SegmentWeights.URL < 0 || fc.SegmentWeights.Content < 0 ||
		math.IsNaN(fc.SegmentWeights.URL) || math.IsNaN(fc.SegmentWeights.Content) {
		return ErrInvalidWeights
	}

	t := fc.Thresholds
	if t.Suspicious < 0 || t.Phishing > 1 || t.Suspicious > t.Phishing ||
		math.IsNaN(t.Phishing) || math.IsNaN(t.Suspicious) {
		return ErrInvalidThresholds
	}

	if fc.Layout.URLFeatures < 1 || fc.Layout.MinLength <= fc.Layout.URLFeatures {
		return ErrInvalidLayout
	}
	switch fc.Layout.ReputationRange {
	case RangeSigned, RangeUnit:
	default:
		return ErrInvalidReputationRange
	}

	c := fc.Cache
	if c.AnalysisTTL <= 0 || c.ReputationTTL <= 0 || c.MaxEntries < 1 || c.SweepInterval < 0 {
		return ErrInvalidCache
	}

	for _, cidr := range fc.Reputation.BlockedNetworks {
		if _, _, err := net.ParseCIDR(strings.TrimSpace(cidr)); err != nil {
			return ErrInvalidNetwork
		}
	}
	return nil
}

func validWeights(ws ...float64) bool {
	sum := 0.0
	for _, w := range ws {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return false
		}
		sum += w
	}
	return sum > 0
}

// Normalized reports whether Normalize has completed.
func (fc *FeatureConfig) Normalized() bool {
	return fc.normalized
}

// FallbackWeights returns the weight set used when the classifier is degraded.
func (fc *FeatureConfig) FallbackWeights() SignalWeights {
	return fc.fallback
}

// IsTrustedDomain reports whether host equals or is a subdomain of a trusted domain.
func (fc *FeatureConfig) IsTrustedDomain(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, d := range fc.TrustedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
