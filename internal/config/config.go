package config

import (
	"net"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default runtime values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "phishguard"

	// DefaultTimeout bounds one page fetch including redirects.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize is the number of URLs analyzed concurrently by scan --list.
	DefaultBatchSize = 10

	// DefaultUserAgent identifies phishguard in HTTP requests.
	DefaultUserAgent = "phishguard/1.0 (+https://github.com/nao1215/phishguard)"

	// DefaultMaxBodySize limits the response body read from a page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultServerAddr is the listen address of phishguard serve.
	DefaultServerAddr = "127.0.0.1:8080"

	// DefaultHistoryLimit is the number of reports listed by history.
	DefaultHistoryLimit = 20
)

// Config holds runtime options for one phishguard invocation.
// It is populated from CLI flags and passed down explicitly.
type Config struct {
	// Timeout is the fetch timeout for a single page.
	Timeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// BatchSize is the number of concurrent analyses for batch scans.
	BatchSize int

	// ConfigFilePath is the scoring configuration file. If empty, the
	// default search order of FindConfigFile is used.
	ConfigFilePath string

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// Targets is the list of URLs to analyze.
	Targets []string

	// DBDir is the directory of the SQLite database.
	// Defaults to the XDG data directory.
	DBDir string

	// DatabaseURL selects the Postgres backend when set.
	// It is normally read from PHISHGUARD_DATABASE_URL.
	DatabaseURL string

	// SaveToDB stores reports for later retrieval and comparison.
	SaveToDB bool

	// UseBrowser renders pages in headless Chrome before analysis.
	UseBrowser bool

	// UserAgent is the User-Agent header sent when fetching pages.
	UserAgent string

	// MaxBodySize is the maximum number of body bytes read per page.
	// Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// ProxyAddress routes page fetches through a SOCKS5 proxy (host:port).
	// Empty means direct connections.
	ProxyAddress string

	// ServerAddr is the listen address of the HTTP service.
	ServerAddr string

	// Scoring is the loaded scoring configuration.
	Scoring *FeatureConfig
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:     DefaultTimeout,
		BatchSize:   DefaultBatchSize,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		ServerAddr:  DefaultServerAddr,
		SaveToDB:    true,
	}
}

// XDGDataDir returns the data directory (~/.local/share/phishguard on Linux).
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory (~/.config/phishguard on Linux).
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the cache directory (~/.cache/phishguard on Linux).
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks the runtime options.
// Targets are checked separately by RequireTargets because only scan needs them.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.ProxyAddress != "" {
		host, port, err := net.SplitHostPort(c.ProxyAddress)
		if err != nil || host == "" || port == "" {
			return ErrInvalidProxyAddress
		}
	}
	return nil
}

// RequireTargets returns ErrNoTarget when no target was given.
func (c *Config) RequireTargets() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	return nil
}

// EffectiveMaxBodySize returns MaxBodySize, or the default when unset.
func (c *Config) EffectiveMaxBodySize() int64 {
	if c.MaxBodySize <= 0 {
		return DefaultMaxBodySize
	}
	return c.MaxBodySize
}

// DatabasePath returns the SQLite database path inside DBDir.
func (c *Config) DatabasePath() string {
	dir := c.DBDir
	if dir == "" {
		dir = XDGDataDir()
	}
	return filepath.Join(dir, "phishguard.db")
}
