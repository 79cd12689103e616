package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name searched in the current directory.
const DefaultConfigFile = ".phishguard.yaml"

// XDGConfigFile is the configuration file name inside XDGConfigDir.
const XDGConfigFile = "config.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads the scoring configuration from a YAML file.
//
// Values missing from the file keep their defaults. Credentials from the
// environment override the file, and the result is normalized before it is
// returned.
func LoadConfigFile(path string) (*FeatureConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML into a normalized FeatureConfig.
func ParseConfig(data []byte) (*FeatureConfig, error) {
	fc := newFeatureConfig()
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, err
	}
	if fc.Sites == nil {
		fc.Sites = make(map[string]SiteConfig)
	}
	lowered := make(map[string]SiteConfig, len(fc.Sites))
	for host, site := range fc.Sites {
		lowered[strings.ToLower(host)] = site
	}
	fc.Sites = lowered

	fc.ApplyEnv(os.Getenv)
	if err := fc.Normalize(); err != nil {
		return nil, err
	}
	return fc, nil
}

// ApplyEnv overrides credentials with values returned by getenv.
func (fc *FeatureConfig) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvSafeBrowsingKey); v != "" {
		fc.Reputation.SafeBrowsing.APIKey = v
	}
	if v := getenv(EnvWhoisKey); v != "" {
		fc.Reputation.Whois.APIKey = v
	}
}

// Load finds and loads the scoring configuration.
// When no file exists and configPath is empty, defaults are returned.
// An explicit configPath that does not exist returns ErrConfigNotFound.
func Load(configPath string) (*FeatureConfig, string, error) {
	path := FindConfigFile(configPath)
	if path == "" {
		if configPath != "" {
			return nil, "", ErrConfigNotFound
		}
		fc := newFeatureConfig()
		fc.ApplyEnv(os.Getenv)
		if err := fc.Normalize(); err != nil {
			return nil, "", err
		}
		return fc, "", nil
	}
	fc, err := LoadConfigFile(path)
	if err != nil {
		return nil, path, err
	}
	return fc, path, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. configPath, if specified
// 2. .phishguard.yaml in the current directory
// 3. config.yaml in the XDG config directory
//
// It returns an empty string if nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), XDGConfigFile)
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}
