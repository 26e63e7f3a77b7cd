package forceupdate

import (
	"fmt"
	"strings"
	"time"
)

// ManifestFallbackLayout is the date-only layout tried after RFC 3339.
const ManifestFallbackLayout = "2006-01-02"

// DateDecoder parses date strings found in remote documents.
// Layouts are tried in order and the first match wins.
type DateDecoder struct {
	Layouts []string
}

var (
	// ISO8601Dates decodes marketplace lookup dates.
	ISO8601Dates = DateDecoder{Layouts: []string{time.RFC3339Nano, time.RFC3339}}

	// ManifestDates decodes manifest dates: RFC 3339 first, then a plain date.
	ManifestDates = DateDecoder{Layouts: []string{time.RFC3339, ManifestFallbackLayout}}
)

// Parse converts raw into a time. An empty string yields the zero time.
func (d DateDecoder) Parse(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}

	for _, layout := range d.Layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("couldn't decode date from %q", raw)
}

func (d DateDecoder) validate() error {
	if len(d.Layouts) == 0 {
		return fmt.Errorf("at least one date layout is required")
	}
	for i, layout := range d.Layouts {
		if strings.TrimSpace(layout) == "" {
			return fmt.Errorf("date layout %d is empty", i)
		}
	}
	return nil
}
