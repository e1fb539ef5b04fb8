package cmds

import (
	"bytes"
	"strings"
	"testing"

	"github.com/movetrace/movetrace/pkg/config"
)

func TestConfigureSet(t *testing.T) {
	var conf config.Config
	if err := configureSet(&conf, "show-bytecode", []string{"true"}); err != nil || !conf.ShowBytecode {
		t.Fatalf("show-bytecode: %v %v", conf.ShowBytecode, err)
	}
	if err := configureSet(&conf, "max-array-values", []string{"8"}); err != nil || conf.MaxArray() != 8 {
		t.Fatalf("max-array-values: %v %v", conf.MaxArray(), err)
	}
	if err := configureSet(&conf, "max-array-values", []string{"-1"}); err == nil {
		t.Error("negative limit accepted")
	}
	if err := configureSet(&conf, "debug-info-directories", []string{"a", "b"}); err != nil || len(conf.DebugInfoDirectories) != 2 {
		t.Fatalf("debug-info-directories: %v %v", conf.DebugInfoDirectories, err)
	}
	if err := configureSet(&conf, "no-such-key", []string{"1"}); err == nil {
		t.Error("unknown key accepted")
	}
}

func TestConfigureSubstitutePath(t *testing.T) {
	var conf config.Config
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(configureSet(&conf, "substitute-path", []string{"/a", "/b"}))
	must(configureSet(&conf, "substitute-path", []string{"/c", "/d"}))
	must(configureSet(&conf, "substitute-path", []string{"/a", "/e"}))
	if len(conf.SubstitutePath) != 2 || conf.SubstitutePath[0].To != "/e" {
		t.Fatalf("rules %v", conf.SubstitutePath)
	}
	must(configureSet(&conf, "substitute-path", []string{"/a"}))
	if len(conf.SubstitutePath) != 1 || conf.SubstitutePath[0].From != "/c" {
		t.Fatalf("rules %v", conf.SubstitutePath)
	}
	if err := configureSet(&conf, "substitute-path", []string{"/x"}); err == nil {
		t.Error("removed missing rule")
	}
}

func TestConfigureList(t *testing.T) {
	conf := config.Config{ShowBytecode: true}
	var buf bytes.Buffer
	if err := configureList(&buf, &conf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"show-bytecode", "true", "max-array-values", "<not defined>"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}
