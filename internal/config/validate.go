package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/adamancini/forceupdate/pkg/forceupdate"
)

// SupportedVersion is the only Forcefile schema version understood.
const SupportedVersion = 1

// ValidationError represents a Forcefile validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the Forcefile for required fields and valid values.
// All problems are reported together.
func Validate(f *Forcefile) error {
	var errs []error

	if f.Version != SupportedVersion {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (expected %d)", f.Version, SupportedVersion),
		})
	}

	if f.Platform != "" {
		if err := forceupdate.Platform(f.Platform).Validate(); err != nil {
			errs = append(errs, ValidationError{Field: "platform", Message: err.Error()})
		}
	}

	errs = append(errs, validateManifest(f.Manifest)...)
	errs = append(errs, validateMarketplace(f.Marketplace)...)

	if f.Log.Level != "" {
		if _, err := log.ParseLevel(f.Log.Level); err != nil {
			errs = append(errs, ValidationError{Field: "log.level", Message: err.Error()})
		}
	}

	if err := validateDuration("watch.interval", f.Watch.Interval); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(msgs, "\n  - "))
	}

	return nil
}

func validateManifest(m ManifestSource) []error {
	var errs []error

	if m.URL == "" {
		errs = append(errs, ValidationError{Field: "manifest.url", Message: "url is required"})
	} else if err := validateHTTPURL(m.URL); err != nil {
		errs = append(errs, ValidationError{Field: "manifest.url", Message: err.Error()})
	}

	if err := validateDuration("manifest.timeout", m.Timeout); err != nil {
		errs = append(errs, err)
	}
	if err := validateLayouts("manifest.date_layouts", m.DateLayouts); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func validateMarketplace(m MarketplaceSource) []error {
	var errs []error

	switch {
	case m.URL != "":
		if err := validateHTTPURL(m.URL); err != nil {
			errs = append(errs, ValidationError{Field: "marketplace.url", Message: err.Error()})
		}
	case m.BundleID == "":
		errs = append(errs, ValidationError{
			Field:   "marketplace",
			Message: "either url or bundle_id is required",
		})
	}

	if err := validateDuration("marketplace.timeout", m.Timeout); err != nil {
		errs = append(errs, err)
	}
	if err := validateLayouts("marketplace.date_layouts", m.DateLayouts); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q (scheme must be http or https)", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q (missing host)", raw)
	}
	return nil
}

func validateDuration(field, raw string) error {
	d, err := parseDuration(raw)
	if err != nil {
		return ValidationError{Field: field, Message: err.Error()}
	}
	if d < 0 {
		return ValidationError{Field: field, Message: fmt.Sprintf("must not be negative (got %s)", d.Round(time.Millisecond))}
	}
	return nil
}

func validateLayouts(field string, layouts []string) error {
	for i, layout := range layouts {
		if strings.TrimSpace(layout) == "" {
			return ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "layout cannot be blank",
			}
		}
	}
	return nil
}
