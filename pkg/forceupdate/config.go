package forceupdate

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds each remote request when no timeout is configured.
const DefaultTimeout = 120 * time.Second

// ErrInvalidConfig is wrapped by every construction error caused by Config.
var ErrInvalidConfig = errors.New("invalid force update configuration")

// Config describes where the controller looks for version information.
// Only ManifestURL is required.
type Config struct {
	// ManifestURL points at the operator-hosted manifest.
	ManifestURL string

	// LookupURL overrides the marketplace lookup URL. When empty it is built
	// from BundleID and Country.
	LookupURL string
	BundleID  string
	Country   string

	// Platform selects the manifest entry. Defaults to DetectPlatform().
	Platform Platform

	LookupTimeout   time.Duration
	ManifestTimeout time.Duration

	// LookupDates and ManifestDates default to ISO8601Dates and ManifestDates.
	LookupDates   DateDecoder
	ManifestDates DateDecoder

	// StorefrontURL is used in events when no product page is known.
	StorefrontURL string

	// InstalledVersion is the version of the running application. When
	// empty the main module version from the build info is used.
	InstalledVersion string
}

func (c Config) withDefaults() Config {
	if c.Country == "" {
		c.Country = DefaultCountry
	}
	if c.Platform == "" {
		c.Platform = DetectPlatform()
	}
	if c.LookupTimeout == 0 {
		c.LookupTimeout = DefaultTimeout
	}
	if c.ManifestTimeout == 0 {
		c.ManifestTimeout = DefaultTimeout
	}
	if len(c.LookupDates.Layouts) == 0 {
		c.LookupDates = ISO8601Dates
	}
	if len(c.ManifestDates.Layouts) == 0 {
		c.ManifestDates = ManifestDates
	}
	if c.StorefrontURL == "" {
		c.StorefrontURL = DefaultStorefrontURL
	}
	return c
}

// lookupURL returns the marketplace lookup URL for c.
func (c Config) lookupURL() string {
	if c.LookupURL != "" {
		return c.LookupURL
	}
	return DefaultLookupURL(c.BundleID, c.Country)
}

func (c Config) validate() error {
	var problems []string

	if c.ManifestURL == "" {
		problems = append(problems, "manifest URL is required")
	} else if err := validateHTTPURL(c.ManifestURL); err != nil {
		problems = append(problems, fmt.Sprintf("manifest URL: %v", err))
	}

	if c.LookupURL == "" && c.BundleID == "" {
		problems = append(problems, "either a lookup URL or a bundle identifier is required")
	} else if err := validateHTTPURL(c.lookupURL()); err != nil {
		problems = append(problems, fmt.Sprintf("lookup URL: %v", err))
	}

	if err := c.Platform.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.LookupTimeout < 0 {
		problems = append(problems, "lookup timeout must not be negative")
	}
	if c.ManifestTimeout < 0 {
		problems = append(problems, "manifest timeout must not be negative")
	}
	if err := c.LookupDates.validate(); err != nil {
		problems = append(problems, fmt.Sprintf("lookup dates: %v", err))
	}
	if err := c.ManifestDates.validate(); err != nil {
		problems = append(problems, fmt.Sprintf("manifest dates: %v", err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}
