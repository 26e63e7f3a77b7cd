package forceupdate

import (
	"runtime"
	"testing"
)

func TestDetectPlatform(t *testing.T) {
	p := DetectPlatform()

	if err := p.Validate(); err != nil {
		t.Errorf("detected platform %q is invalid: %v", p, err)
	}

	if p != platformForGOOS(runtime.GOOS) {
		t.Errorf("DetectPlatform() = %s, want %s", p, platformForGOOS(runtime.GOOS))
	}
}

func TestPlatformForGOOS(t *testing.T) {
	tests := []struct {
		goos string
		want Platform
	}{
		{goos: "ios", want: PlatformIOS},
		{goos: "android", want: PlatformAndroid},
		{goos: "darwin", want: PlatformMacOS},
		{goos: "windows", want: PlatformWindows},
		{goos: "linux", want: PlatformLinux},
		{goos: "plan9", want: PlatformIOS},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			if got := platformForGOOS(tt.goos); got != tt.want {
				t.Errorf("platformForGOOS(%s) = %s, want %s", tt.goos, got, tt.want)
			}
		})
	}
}

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		input   string
		want    Platform
		wantErr bool
	}{
		{input: "iOS", want: PlatformIOS},
		{input: "ios", want: PlatformIOS},
		{input: "ANDROID", want: PlatformAndroid},
		{input: "macos", want: PlatformMacOS},
		{input: "", wantErr: true},
		{input: "symbian", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePlatform(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePlatform(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePlatform(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}
