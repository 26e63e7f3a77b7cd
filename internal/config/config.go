// Package config handles Forcefile parsing and location resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adamancini/forceupdate/pkg/forceupdate"
)

// DefaultWatchInterval is used by `forceupdate watch` when none is configured.
const DefaultWatchInterval = 30 * time.Minute

// ManifestSource locates the operator-hosted manifest.
type ManifestSource struct {
	URL         string   `yaml:"url" toml:"url" json:"url"`
	Timeout     string   `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty"`
	DateLayouts []string `yaml:"date_layouts,omitempty" toml:"date_layouts,omitempty" json:"date_layouts,omitempty"`
}

// MarketplaceSource locates the marketplace listing of the application.
type MarketplaceSource struct {
	URL           string   `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty"` // Overrides bundle_id/country
	BundleID      string   `yaml:"bundle_id,omitempty" toml:"bundle_id,omitempty" json:"bundle_id,omitempty"`
	Country       string   `yaml:"country,omitempty" toml:"country,omitempty" json:"country,omitempty"`
	Timeout       string   `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty"`
	DateLayouts   []string `yaml:"date_layouts,omitempty" toml:"date_layouts,omitempty" json:"date_layouts,omitempty"`
	StorefrontURL string   `yaml:"storefront_url,omitempty" toml:"storefront_url,omitempty" json:"storefront_url,omitempty"`
}

// LogConfig sets the log level and destination.
type LogConfig struct {
	Level string `yaml:"level,omitempty" toml:"level,omitempty" json:"level,omitempty"`
	File  string `yaml:"file,omitempty" toml:"file,omitempty" json:"file,omitempty"` // "console" or a path
}

// WatchConfig controls `forceupdate watch`.
type WatchConfig struct {
	Interval string `yaml:"interval,omitempty" toml:"interval,omitempty" json:"interval,omitempty"`
}

// Forcefile represents the parsed configuration file.
type Forcefile struct {
	Version          int               `yaml:"version" toml:"version" json:"version"`
	InstalledVersion string            `yaml:"installed_version,omitempty" toml:"installed_version,omitempty" json:"installed_version,omitempty"`
	Platform         string            `yaml:"platform,omitempty" toml:"platform,omitempty" json:"platform,omitempty"`
	Manifest         ManifestSource    `yaml:"manifest" toml:"manifest" json:"manifest"`
	Marketplace      MarketplaceSource `yaml:"marketplace" toml:"marketplace" json:"marketplace"`
	Log              LogConfig         `yaml:"log,omitempty" toml:"log,omitempty" json:"log,omitempty"`
	Watch            WatchConfig       `yaml:"watch,omitempty" toml:"watch,omitempty" json:"watch,omitempty"`
}

// ControllerConfig converts the Forcefile into a controller configuration.
// Call Validate first; conversion errors are reported for the first bad field only.
func (f *Forcefile) ControllerConfig() (forceupdate.Config, error) {
	cfg := forceupdate.Config{
		ManifestURL:      f.Manifest.URL,
		LookupURL:        f.Marketplace.URL,
		BundleID:         f.Marketplace.BundleID,
		Country:          f.Marketplace.Country,
		StorefrontURL:    f.Marketplace.StorefrontURL,
		InstalledVersion: f.InstalledVersion,
	}

	if f.Platform != "" {
		p, err := forceupdate.ParsePlatform(f.Platform)
		if err != nil {
			return forceupdate.Config{}, err
		}
		cfg.Platform = p
	}

	var err error
	if cfg.LookupTimeout, err = parseDuration(f.Marketplace.Timeout); err != nil {
		return forceupdate.Config{}, fmt.Errorf("marketplace.timeout: %w", err)
	}
	if cfg.ManifestTimeout, err = parseDuration(f.Manifest.Timeout); err != nil {
		return forceupdate.Config{}, fmt.Errorf("manifest.timeout: %w", err)
	}

	if len(f.Marketplace.DateLayouts) > 0 {
		cfg.LookupDates = forceupdate.DateDecoder{Layouts: f.Marketplace.DateLayouts}
	}
	if len(f.Manifest.DateLayouts) > 0 {
		cfg.ManifestDates = forceupdate.DateDecoder{Layouts: f.Manifest.DateLayouts}
	}

	return cfg, nil
}

// WatchInterval returns the configured watch interval or the default.
func (f *Forcefile) WatchInterval() (time.Duration, error) {
	d, err := parseDuration(f.Watch.Interval)
	if err != nil {
		return 0, fmt.Errorf("watch.interval: %w", err)
	}
	if d == 0 {
		return DefaultWatchInterval, nil
	}
	return d, nil
}

// parseDuration returns zero for an empty string.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// fileNames lists the accepted Forcefile names in order of precedence.
var fileNames = []string{
	"Forcefile",
	"forceupdate.yaml",
	"forceupdate.yml",
	"forceupdate.toml",
	"forceupdate.json",
	".forceupdate.yaml",
	".forceupdate.yml",
	".forceupdate.toml",
	".forceupdate.json",
}

// FindForcefile searches for a Forcefile in the standard locations.
// Returns the path to the first Forcefile found, or an error if none exists.
func FindForcefile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified Forcefile not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Check FORCEUPDATE_CONFIG environment variable
	if envPath := os.Getenv("FORCEUPDATE_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	var searchPaths []string

	// Working directory takes precedence over per-user locations.
	if wd, err := os.Getwd(); err == nil {
		searchPaths = append(searchPaths, wd)
	}

	if home, err := os.UserHomeDir(); err == nil {
		xdgConfig := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfig == "" {
			xdgConfig = filepath.Join(home, ".config")
		}
		searchPaths = append(searchPaths,
			filepath.Join(xdgConfig, "forceupdate"),
			filepath.Join(home, ".forceupdate"),
			home,
		)
	}

	for _, dir := range searchPaths {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("no Forcefile found in standard locations")
}

// Load reads and parses a Forcefile from the given path.
func Load(path string) (*Forcefile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read Forcefile: %w", err)
	}
	return LoadBytes(path, content)
}

// LoadBytes parses and validates Forcefile content. The name is only used
// to detect the format and may be a bare file name.
func LoadBytes(name string, content []byte) (*Forcefile, error) {
	format := detectFormat(name, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", name)
	}

	forcefile, err := parse(content, format)
	if err != nil {
		return nil, err
	}

	if err := Validate(forcefile); err != nil {
		return nil, err
	}

	return forcefile, nil
}
