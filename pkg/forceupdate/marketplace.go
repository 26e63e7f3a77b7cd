package forceupdate

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

const (
	// DefaultCountry scopes the marketplace lookup when none is configured.
	DefaultCountry = "at"

	// DefaultStorefrontURL opens the marketplace itself when no product page is known.
	DefaultStorefrontURL = "itms-apps://itunes.apple.com/"

	lookupEndpoint = "https://itunes.apple.com/lookup"
)

// DefaultLookupURL builds the marketplace lookup URL for a bundle identifier.
func DefaultLookupURL(bundleID, country string) string {
	if country == "" {
		country = DefaultCountry
	}
	q := url.Values{}
	q.Set("bundleId", bundleID)
	q.Set("country", country)
	return lookupEndpoint + "?" + q.Encode()
}

// MarketplaceListing is the subset of a marketplace lookup result we keep.
type MarketplaceListing struct {
	BundleID                  string    `json:"bundleId" yaml:"bundle_id"`
	TrackID                   int64     `json:"trackId" yaml:"track_id"`
	TrackName                 string    `json:"trackName" yaml:"track_name"`
	Version                   string    `json:"version" yaml:"version"`
	TrackViewURL              string    `json:"trackViewUrl" yaml:"track_view_url"`
	ReleaseNotes              string    `json:"releaseNotes,omitempty" yaml:"release_notes,omitempty"`
	MinimumOSVersion          string    `json:"minimumOsVersion,omitempty" yaml:"minimum_os_version,omitempty"`
	ReleaseDate               time.Time `json:"releaseDate" yaml:"release_date"`
	CurrentVersionReleaseDate time.Time `json:"currentVersionReleaseDate" yaml:"current_version_release_date"`
}

// lookupEnvelope mirrors the marketplace response. Dates stay raw so the
// configured DateDecoder decides how to read them.
type lookupEnvelope struct {
	ResultCount int `json:"resultCount"`
	Results     []struct {
		BundleID                  string `json:"bundleId"`
		TrackID                   int64  `json:"trackId"`
		TrackName                 string `json:"trackName"`
		Version                   string `json:"version"`
		TrackViewURL              string `json:"trackViewUrl"`
		ReleaseNotes              string `json:"releaseNotes"`
		MinimumOSVersion          string `json:"minimumOsVersion"`
		ReleaseDate               string `json:"releaseDate"`
		CurrentVersionReleaseDate string `json:"currentVersionReleaseDate"`
	} `json:"results"`
}

// DecodeLookup decodes a marketplace lookup response and returns its first
// result. An envelope without results, or a first result without a version,
// is an error.
func DecodeLookup(data []byte, dates DateDecoder) (*MarketplaceListing, error) {
	var env lookupEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}

	if len(env.Results) == 0 {
		return nil, fmt.Errorf("lookup response has no results")
	}
	first := env.Results[0]
	if first.Version == "" {
		return nil, fmt.Errorf("lookup result has no version")
	}

	released, err := dates.Parse(first.ReleaseDate)
	if err != nil {
		return nil, fmt.Errorf("releaseDate: %w", err)
	}
	current, err := dates.Parse(first.CurrentVersionReleaseDate)
	if err != nil {
		return nil, fmt.Errorf("currentVersionReleaseDate: %w", err)
	}

	return &MarketplaceListing{
		BundleID:                  first.BundleID,
		TrackID:                   first.TrackID,
		TrackName:                 first.TrackName,
		Version:                   first.Version,
		TrackViewURL:              first.TrackViewURL,
		ReleaseNotes:              first.ReleaseNotes,
		MinimumOSVersion:          first.MinimumOSVersion,
		ReleaseDate:               released,
		CurrentVersionReleaseDate: current,
	}, nil
}
