package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestVersionString(t *testing.T) {
	v := Version{Major: 1, Minor: 2, Patch: 3, Metadata: "rc1"}
	if got := v.String(); got != "1.2.3-rc1" {
		t.Fatalf("unexpected version string %q", got)
	}
}

func TestBuildFrom(t *testing.T) {
	info := &debug.BuildInfo{
		GoVersion: "go1.21.5",
		Deps:      []*debug.Module{{Path: "github.com/a/b", Version: "v1.0.0", Replace: &debug.Module{Path: "github.com/c/d", Version: "v1.1.0"}}},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2024-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	b := buildFrom(info)
	if got := b.String(); got != "abc123 2024-01-02T03:04:05Z (modified)" {
		t.Errorf("build %q", got)
	}
	if got := (Build{}).String(); got != "unknown" {
		t.Errorf("empty build %q", got)
	}

	out := Summary(b, 3, false)
	for _, want := range []string{"Movetrace", Movetrace.String(), "abc123", "Trace formats 1-3"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary does not contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "go1.21.5") {
		t.Errorf("summary is verbose:\n%s", out)
	}
	out = Summary(b, 3, true)
	for _, want := range []string{"go1.21.5", "github.com/c/d v1.1.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("verbose summary does not contain %q:\n%s", want, out)
		}
	}
}
