package forceupdate

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform is the key under which a manifest declares its requirements.
type Platform string

const (
	PlatformIOS     Platform = "iOS"
	PlatformAndroid Platform = "android"
	PlatformMacOS   Platform = "macOS"
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
)

// AllPlatforms returns all known platforms.
func AllPlatforms() []Platform {
	return []Platform{PlatformIOS, PlatformAndroid, PlatformMacOS, PlatformWindows, PlatformLinux}
}

// ParsePlatform matches s against the known platforms, ignoring case.
func ParsePlatform(s string) (Platform, error) {
	for _, p := range AllPlatforms() {
		if strings.EqualFold(s, string(p)) {
			return p, nil
		}
	}
	if s == "" {
		return "", fmt.Errorf("platform is required")
	}
	return "", fmt.Errorf("invalid platform '%s' (must be one of %s)", s, joinPlatforms())
}

// Validate checks if the Platform is a known value.
func (p Platform) Validate() error {
	_, err := ParsePlatform(string(p))
	return err
}

// String returns the manifest key for the platform.
func (p Platform) String() string {
	return string(p)
}

// DetectPlatform returns the platform the process is running on.
// Unknown operating systems fall back to iOS, the default manifest key.
func DetectPlatform() Platform {
	return platformForGOOS(runtime.GOOS)
}

func platformForGOOS(goos string) Platform {
	switch goos {
	case "ios":
		return PlatformIOS
	case "android":
		return PlatformAndroid
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	case "linux":
		return PlatformLinux
	default:
		return PlatformIOS
	}
}

func joinPlatforms() string {
	names := make([]string, 0, len(AllPlatforms()))
	for _, p := range AllPlatforms() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}
