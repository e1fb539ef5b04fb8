package cmds

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattn/go-colorable"

	"github.com/movetrace/movetrace/pkg/trace"
)

const sourceIndex = `{
  "kind": "source",
  "file_hash": "h1",
  "file_path": "sources/m.move",
  "module": {"addr": "0x2", "name": "m"},
  "functions": [{
    "name": "f",
    "start": {"line": 3, "column": 5},
    "end": {"line": 9, "column": 6},
    "locals": [{"name": "x", "index": 0}],
    "pc_locs": [{"line": 4, "column": 9}, {"line": 5, "column": 9}]
  }]
}`

const traceFile = `{"version":1}
{"OpenFrame":{"frame":{"binary_member_index":0,"frame_id":0,"function_name":"f","is_native":false,"locals_types":[{"type_":"u64","ref_type":null}],"module":{"address":"0x2","name":"m"},"parameters":[{"RuntimeValue":{"value":{"type":"U64","value":"7"}}}],"return_types":[],"type_instantiation":[]},"gas_left":1000}}
{"Instruction":{"gas_left":900,"instruction":"COPY_LOC","pc":0,"type_parameters":[]}}
{"Instruction":{"gas_left":890,"instruction":"RET","pc":1,"type_parameters":[]}}
{"CloseFrame":{"frame_id":0,"gas_left":800,"return_":[]}}
`

func writeTrace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "m.json"), []byte(sourceIndex), 0600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "trace.jsonl")
	if err := os.WriteFile(path, []byte(traceFile), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadTestTrace(t *testing.T) string {
	t.Helper()
	path := writeTrace(t)
	debugInfoDirs = nil
	return path
}

func stripped(f func(*bytes.Buffer) error) (string, error) {
	var buf bytes.Buffer
	err := f(&buf)
	var out bytes.Buffer
	_, werr := colorable.NewNonColorable(&out).Write(buf.Bytes())
	if err == nil {
		err = werr
	}
	return out.String(), err
}

func TestDebugInfoDirs(t *testing.T) {
	defer func() { debugInfoDirs = nil }()
	debugInfoDirs = nil
	if dirs := traceDebugInfoDirs("/traces/t.jsonl"); len(dirs) != 1 || dirs[0] != "/traces" {
		t.Errorf("unexpected default %v", dirs)
	}
	debugInfoDirs = []string{"/a", "/b"}
	if dirs := traceDebugInfoDirs("/traces/t.jsonl"); len(dirs) != 2 || dirs[1] != "/b" {
		t.Errorf("flag not honored: %v", dirs)
	}
}

func TestEvents(t *testing.T) {
	tr, _, err := loadTrace(loadTestTrace(t))
	if err != nil {
		t.Fatal(err)
	}
	out, err := stripped(func(b *bytes.Buffer) error { return printEvents(b, tr) })
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("unexpected output:\n%s", out)
	}
	for i, want := range []string{"OpenFrame 0 for f", "source line 4", "source line 5", "CloseFrame 0"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d: %q does not contain %q", i, lines[i], want)
		}
	}
}

func TestLinesAndLifetimes(t *testing.T) {
	tr, _, err := loadTrace(loadTestTrace(t))
	if err != nil {
		t.Fatal(err)
	}
	out, err := stripped(func(b *bytes.Buffer) error { return printLines(b, tr, false) })
	if err != nil {
		t.Fatal(err)
	}
	if out != "sources/m.move: 4 5\n" {
		t.Errorf("lines %q", out)
	}
	out, err = stripped(func(b *bytes.Buffer) error { return printLines(b, tr, true) })
	if err != nil || out != "" {
		t.Errorf("bytecode lines %q, %v", out, err)
	}

	out, err = stripped(func(b *bytes.Buffer) error { return printLifetimes(b, tr) })
	if err != nil {
		t.Fatal(err)
	}
	if out != "frame 0: 0=0\n" {
		t.Errorf("lifetimes %q", out)
	}
}

func TestLifetimeString(t *testing.T) {
	for end, want := range map[int]string{trace.FrameLifetime: "frame", trace.LifetimeUnset: "unset", 12: "12"} {
		if got := lifetimeString(end); got != want {
			t.Errorf("lifetimeString(%d) = %q; want %q", end, got, want)
		}
	}
}

func TestReplay(t *testing.T) {
	tr, files, err := loadTrace(loadTestTrace(t))
	if err != nil {
		t.Fatal(err)
	}
	out, err := stripped(func(b *bytes.Buffer) error { return printReplay(b, tr, files, false) })
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"stop 0:", "stop 1:", "f at sources/m.move:4", "f at sources/m.move:5", "x = 7"} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}

	var buf bytes.Buffer
	if err := printReplay(&buf, tr, files, true); err != nil {
		t.Fatal(err)
	}
	dec := json.NewDecoder(&buf)
	var stops []replayStop
	for dec.More() {
		var s replayStop
		if err := dec.Decode(&s); err != nil {
			t.Fatal(err)
		}
		stops = append(stops, s)
	}
	if len(stops) != 2 {
		t.Fatalf("got %d stops", len(stops))
	}
	if s := stops[0]; s.Stop != "instruction" || len(s.Frames) != 1 || s.Frames[0].Line != 4 || len(s.Locals) != 1 || s.Locals[0].Value != "7" {
		t.Errorf("unexpected stop %+v", s)
	}
	// x is last used at PC 0
	if s := stops[1]; len(s.Frames) != 1 || s.Frames[0].Line != 5 || len(s.Locals) != 0 {
		t.Errorf("unexpected stop %+v", s)
	}
}

func TestMissingDebugInfo(t *testing.T) {
	path := loadTestTrace(t)
	if err := os.Remove(filepath.Join(filepath.Dir(path), "m.json")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := loadTrace(path); err == nil {
		t.Fatal("trace loaded without debug info")
	}
}
