package forceupdate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion is returned when a string is not a dotted numeric version.
var ErrInvalidVersion = errors.New("invalid version")

// Version is a dotted numeric version such as "1.4" or "2.0.13.7".
// A nil *Version means the version is unknown.
type Version struct {
	segments []uint64
}

// ParseVersion parses a version string made of non-negative integers
// separated by dots. Any number of segments is accepted.
func ParseVersion(s string) (*Version, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidVersion)
	}

	parts := strings.Split(s, ".")
	segments := make([]uint64, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment at position %d", ErrInvalidVersion, s, i)
		}
		// ParseUint accepts only decimal digits, so signs, spaces and "v" prefixes fail here.
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q segment %q: %v", ErrInvalidVersion, s, part, err)
		}
		segments = append(segments, n)
	}

	return &Version{segments: segments}, nil
}

// VersionFrom parses s and returns nil when it is not a valid version.
func VersionFrom(s string) *Version {
	v, err := ParseVersion(s)
	if err != nil {
		return nil
	}
	return v
}

// MustParseVersion is like ParseVersion but panics on invalid input.
func MustParseVersion(s string) *Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Segments returns a copy of the numeric segments.
func (v *Version) Segments() []uint64 {
	out := make([]uint64, len(v.segments))
	copy(out, v.segments)
	return out
}

// clone returns an independent copy of v. A nil version stays nil.
func (v *Version) clone() *Version {
	if v == nil {
		return nil
	}
	return &Version{segments: v.Segments()}
}

// String returns the dotted representation
func (v *Version) String() string {
	if v == nil {
		return ""
	}
	parts := make([]string, len(v.segments))
	for i, n := range v.segments {
		parts[i] = strconv.FormatUint(n, 10)
	}
	return strings.Join(parts, ".")
}

// Compare compares two present versions.
// Returns:
//   - 1 if v > other
//   - 0 if v == other
//   - -1 if v < other
//
// Missing trailing segments count as zero, so "1.2" equals "1.2.0".
func (v *Version) Compare(other *Version) int {
	n := len(v.segments)
	if len(other.segments) > n {
		n = len(other.segments)
	}

	for i := 0; i < n; i++ {
		a, b := segmentAt(v.segments, i), segmentAt(other.segments, i)
		if a != b {
			if a > b {
				return 1
			}
			return -1
		}
	}

	return 0
}

func segmentAt(segments []uint64, i int) uint64 {
	if i < len(segments) {
		return segments[i]
	}
	return 0
}

// Equal returns true if v == other
func (v *Version) Equal(other *Version) bool {
	return v.Compare(other) == 0
}

// LessThan returns true if v < other
func (v *Version) LessThan(other *Version) bool {
	return v.Compare(other) < 0
}

// GreaterThan returns true if v > other
func (v *Version) GreaterThan(other *Version) bool {
	return v.Compare(other) > 0
}

// MarshalText implements encoding.TextMarshaler.
func (v *Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	v.segments = parsed.segments
	return nil
}

// Compare orders two possibly unknown versions. A known version is greater
// than an unknown one and two unknown versions compare equal.
func Compare(a, b *Version) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(b)
	}
}

// Less reports whether a orders strictly before b when either may be unknown.
// Less(nil, nil) is false, so two unknown versions never trigger an update.
func Less(a, b *Version) bool {
	return Compare(a, b) < 0
}

// CompareVersions compares two version strings
// Returns:
//   - 1 if v1 > v2
//   - 0 if v1 == v2
//   - -1 if v1 < v2
//   - error if either version is invalid
func CompareVersions(v1, v2 string) (int, error) {
	ver1, err := ParseVersion(v1)
	if err != nil {
		return 0, fmt.Errorf("invalid version v1: %w", err)
	}

	ver2, err := ParseVersion(v2)
	if err != nil {
		return 0, fmt.Errorf("invalid version v2: %w", err)
	}

	return ver1.Compare(ver2), nil
}
