package forceupdate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// PlatformRequirement is the manifest entry for one platform.
type PlatformRequirement struct {
	MinSupportedVersion string    `json:"minSupportedVersion" yaml:"min_supported_version"`
	LatestVersion       string    `json:"latestVersion,omitempty" yaml:"latest_version,omitempty"`
	Message             string    `json:"message,omitempty" yaml:"message,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt" yaml:"updated_at"`
}

type rawRequirement struct {
	MinSupportedVersion string `json:"minSupportedVersion"`
	LatestVersion       string `json:"latestVersion"`
	Message             string `json:"message"`
	UpdatedAt           string `json:"updatedAt"`
}

// manifestSchema is filled with the platform key at construction.
const manifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "updatedAt": {"type": "string"}
  },
  "patternProperties": {
    %[1]s: {
      "type": "object",
      "required": ["minSupportedVersion"],
      "properties": {
        "minSupportedVersion": {"type": "string", "minLength": 1},
        "latestVersion": {"type": "string"},
        "message": {"type": "string"},
        "updatedAt": {"type": "string"}
      }
    }
  },
  "minProperties": 1
}`

// ManifestDecoder validates and decodes remote manifests for one platform.
type ManifestDecoder struct {
	platform Platform
	dates    DateDecoder
	schema   *jsonschema.Schema
}

// NewManifestDecoder compiles the manifest schema for platform.
func NewManifestDecoder(platform Platform, dates DateDecoder) (*ManifestDecoder, error) {
	if err := platform.Validate(); err != nil {
		return nil, err
	}
	if err := dates.validate(); err != nil {
		return nil, err
	}

	// Case-insensitive match on the platform key, e.g. "(?i)^ios$".
	pattern, err := json.Marshal("(?i)^" + string(platform) + "$")
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(fmt.Sprintf(manifestSchema, pattern)))
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("manifest.schema.json", doc); err != nil {
		return nil, fmt.Errorf("failed to add manifest schema: %w", err)
	}
	schema, err := c.Compile("manifest.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile manifest schema: %w", err)
	}

	return &ManifestDecoder{platform: platform, dates: dates, schema: schema}, nil
}

// Platform returns the platform whose entry is decoded.
func (d *ManifestDecoder) Platform() Platform {
	return d.platform
}

// Decode validates data against the schema and returns the platform entry.
func (d *ManifestDecoder) Decode(data []byte) (*PlatformRequirement, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if err := d.schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("manifest does not match schema: %w", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	entry := platformEntry(doc, d.platform)
	if entry == nil {
		return nil, fmt.Errorf("manifest has no entry for %s", d.platform)
	}

	var raw rawRequirement
	if err := json.Unmarshal(entry, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s entry: %w", d.platform, err)
	}

	updatedAt, err := d.dates.Parse(raw.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s.updatedAt: %w", d.platform, err)
	}
	if top, ok := doc["updatedAt"]; ok {
		var s string
		if err := json.Unmarshal(top, &s); err != nil {
			return nil, fmt.Errorf("updatedAt: %w", err)
		}
		t, err := d.dates.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("updatedAt: %w", err)
		}
		if updatedAt.IsZero() {
			updatedAt = t
		}
	}

	return &PlatformRequirement{
		MinSupportedVersion: raw.MinSupportedVersion,
		LatestVersion:       raw.LatestVersion,
		Message:             raw.Message,
		UpdatedAt:           updatedAt,
	}, nil
}

// platformEntry returns the entry stored under the exact platform key, or
// else the first key in sorted order that matches it ignoring case.
func platformEntry(doc map[string]json.RawMessage, platform Platform) json.RawMessage {
	if entry, ok := doc[string(platform)]; ok {
		return entry
	}

	keys := make([]string, 0, len(doc))
	for key := range doc {
		if strings.EqualFold(key, string(platform)) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	return doc[keys[0]]
}
