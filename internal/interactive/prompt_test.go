package interactive

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "y\n", true},
		{"full yes", "YES\n", true},
		{"no", "n\n", false},
		{"empty line", "\n", false},
		{"garbage", "maybe\n", false},
		{"end of input", "", false},
		{"yes without newline", "y", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			p := NewPrompterWithIO(strings.NewReader(tt.input), output)

			if got := p.Confirm("Overwrite %s?", "forceupdate.yaml"); got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
			if output.String() != "Overwrite forceupdate.yaml? [y/N]: " {
				t.Errorf("prompt = %q", output.String())
			}
		})
	}
}

func TestAsk(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   string
		want  string
	}{
		{"answer", "/tmp/f.yaml\n", "default.yaml", "/tmp/f.yaml"},
		{"empty uses default", "\n", "default.yaml", "default.yaml"},
		{"end of input uses default", "", "default.yaml", "default.yaml"},
		{"no default", "  spaced  \n", "", "spaced"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPrompterWithIO(strings.NewReader(tt.input), &bytes.Buffer{})
			got, err := p.Ask("Where?", tt.def)
			if err != nil {
				t.Fatalf("Ask() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Ask() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAskPromptShowsDefault(t *testing.T) {
	output := &bytes.Buffer{}
	p := NewPrompterWithIO(strings.NewReader("\n"), output)
	_, _ = p.Ask("Where?", "x.yaml")
	if output.String() != "Where? [x.yaml]: " {
		t.Errorf("prompt = %q", output.String())
	}
}

func TestChoose(t *testing.T) {
	options := []Option{
		{Name: "ios", Description: "App Store"},
		{Name: "android", Description: "Play"},
	}

	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"first", "1\n", 0, false},
		{"second", "2\n", 1, false},
		{"zero", "0\n", 0, true},
		{"too large", "3\n", 0, true},
		{"not a number", "ios\n", 0, true},
		{"end of input", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			p := NewPrompterWithIO(strings.NewReader(tt.input), output)

			got, err := p.Choose("Pick one:", options)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Choose() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Choose() = %d, want %d", got, tt.want)
			}
			if !strings.Contains(output.String(), "  2. android      - Play") {
				t.Errorf("menu not rendered: %q", output.String())
			}
		})
	}
}

func TestChooseEmpty(t *testing.T) {
	p := NewPrompterWithIO(strings.NewReader("1\n"), &bytes.Buffer{})
	if _, err := p.Choose("Pick one:", nil); err == nil {
		t.Error("Choose() with no options should fail")
	}
}

func TestPromptsShareInput(t *testing.T) {
	p := NewPrompterWithIO(strings.NewReader("y\n2\nout.yaml\n"), &bytes.Buffer{})

	if !p.Confirm("Overwrite?") {
		t.Error("first answer should confirm")
	}
	idx, err := p.Choose("Pick:", []Option{{Name: "a"}, {Name: "b"}})
	if err != nil || idx != 1 {
		t.Errorf("Choose() = %d, %v", idx, err)
	}
	path, err := p.Ask("Where?", "")
	if err != nil || path != "out.yaml" {
		t.Errorf("Ask() = %q, %v", path, err)
	}
}
