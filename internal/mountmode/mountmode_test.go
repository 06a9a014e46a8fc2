package mountmode

import (
	"context"
	"errors"
	"testing"
)

// fakeReader serves file contents from a map.
type fakeReader struct {
	files map[string]string
}

func (f fakeReader) Exists(_ context.Context, path string) (bool, error) {
	_, ok := f.files[path]
	return ok, nil
}

func (f fakeReader) ReadAll(_ context.Context, path string) ([]byte, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return []byte(content), nil
}

// failingReader fails every call, standing in for a broken elevated channel.
type failingReader struct{}

func (failingReader) Exists(context.Context, string) (bool, error) {
	return false, errors.New("channel unavailable")
}

func (failingReader) ReadAll(context.Context, string) ([]byte, error) {
	return nil, errors.New("channel unavailable")
}

// readFailReader reports existence but fails the read.
type readFailReader struct{}

func (readFailReader) Exists(context.Context, string) (bool, error) {
	return true, nil
}

func (readFailReader) ReadAll(context.Context, string) ([]byte, error) {
	return nil, errors.New("permission denied")
}

const marker = "/data/adb/.mount_mode"
const lite = "/data/adb/.litemode"

func TestIsMetaModule(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  bool
	}{
		{"absent", map[string]string{}, false},
		{"exact token", map[string]string{marker: "metamodule"}, true},
		{"surrounding whitespace", map[string]string{marker: "  metamodule\n"}, true},
		{"wrong token", map[string]string{marker: "metamodule2"}, false},
		{"empty content", map[string]string{marker: ""}, false},
		{"other mode", map[string]string{marker: "magic"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(fakeReader{files: tt.files}, marker, lite)
			if got := p.IsMetaModule(context.Background()); got != tt.want {
				t.Errorf("IsMetaModule = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsMetaModuleChannelFailure(t *testing.T) {
	p := New(failingReader{}, marker, lite)
	if p.IsMetaModule(context.Background()) {
		t.Error("failed channel must classify as false")
	}

	p = New(readFailReader{}, marker, lite)
	if p.IsMetaModule(context.Background()) {
		t.Error("failed read must classify as false")
	}
}

func TestIsMetaModuleIdempotent(t *testing.T) {
	p := New(fakeReader{files: map[string]string{marker: "metamodule"}}, marker, lite)
	first := p.IsMetaModule(context.Background())
	for i := 0; i < 10; i++ {
		if p.IsMetaModule(context.Background()) != first {
			t.Fatal("repeated calls with unchanged backing file must agree")
		}
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  Mode
	}{
		{"default magic", map[string]string{}, ModeMagic},
		{"explicit magic", map[string]string{marker: "magic\n"}, ModeMagic},
		{"metamodule", map[string]string{marker: "metamodule"}, ModeMetaModule},
		{"disabled", map[string]string{marker: "disabled"}, ModeDisabled},
		{"unknown content falls back", map[string]string{marker: "weird"}, ModeMagic},
		{"legacy lite mode", map[string]string{lite: ""}, ModeDisabled},
		{"marker wins over lite", map[string]string{marker: "metamodule", lite: ""}, ModeMetaModule},
		{"unknown marker, lite present", map[string]string{marker: "weird", lite: ""}, ModeDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(fakeReader{files: tt.files}, marker, lite)
			if got := p.Detect(context.Background()); got != tt.want {
				t.Errorf("Detect = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDetectChannelFailure(t *testing.T) {
	p := New(failingReader{}, marker, lite)
	if got := p.Detect(context.Background()); got != ModeMagic {
		t.Errorf("failed channel must fall back to magic, got %s", got)
	}
}
