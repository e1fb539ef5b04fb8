package replay

import (
	"io"
	"reflect"
	"testing"

	"github.com/pkg/errors"

	"github.com/movetrace/movetrace/pkg/debuginfo"
	"github.com/movetrace/movetrace/pkg/trace"
)

var (
	sameFile = trace.FrameID{Kind: trace.InlinedSameFile}
	diffFile = trace.FrameID{Kind: trace.InlinedDifferentFile}
)

func open(id int, name string, params ...trace.Value) *trace.OpenFrame {
	return &trace.OpenFrame{
		ID:          trace.Real(id),
		Name:        name,
		SrcFileHash: "hm",
		LocalsTypes: []string{"u64", "vector<u64>", "&mut u64"},
		LocalsNames: []debuginfo.LocalInfo{{Name: "x", Index: 0}, {Name: "v", Index: 1}, {Name: "r", Index: 2}},
		ParamValues: params,
	}
}

func inst(pc, line int) *trace.Instruction {
	return &trace.Instruction{PC: pc, SrcLoc: debuginfo.Loc{Line: line, Column: 1}}
}

func write(frame, slot int, v trace.Value, path ...int) *trace.Effect {
	return &trace.Effect{
		Type:  trace.EffectWrite,
		Loc:   trace.Loc{Base: trace.LocalLoc{Frame: frame, Slot: slot}, IndexPath: path},
		Value: v,
	}
}

func stepAll(t *testing.T, r *Replayer) []*Stop {
	t.Helper()
	var stops []*Stop
	for {
		stop, err := r.Step()
		if err == io.EOF {
			return stops
		}
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		stops = append(stops, stop)
	}
}

func names(frames []*Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.ID.String() + ":" + f.Name
	}
	return out
}

func TestStepStack(t *testing.T) {
	tr := &trace.Trace{
		Events: []trace.Event{
			open(0, "main", trace.Scalar("1")),
			inst(0, 3),
			&trace.OpenFrame{ID: sameFile, Name: trace.InlinedFrameName, SrcFileHash: "hm"},
			inst(1, 30),
			&trace.OpenFrame{ID: diffFile, Name: trace.InlinedFrameName, SrcFileHash: "hmac"},
			inst(2, 5),
			&trace.ReplaceInlinedFrame{FileHash: "hoth", OptimizedLines: []int{2}},
			inst(3, 6),
			&trace.CloseFrame{ID: diffFile},
			&trace.CloseFrame{ID: sameFile},
			inst(4, 4),
			&trace.CloseFrame{ID: trace.Real(0)},
		},
		LocalLifetimeEnds: map[int][]int{0: {trace.FrameLifetime}},
	}
	r := New(tr)

	var stacks [][]string
	for {
		stop, err := r.Step()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if stop.Kind != StopInstruction {
			t.Fatalf("unexpected stop %v", stop.Kind)
		}
		stacks = append(stacks, names(r.Stack()))
	}
	want := [][]string{
		{"0:main"},
		{"inlined-same-file:__inlined__", "0:main"},
		{"inlined-different-file:__inlined__", "inlined-same-file:__inlined__", "0:main"},
		{"inlined-different-file:__inlined__", "inlined-same-file:__inlined__", "0:main"},
		{"0:main"},
	}
	if !reflect.DeepEqual(stacks, want) {
		t.Fatalf("got stacks %v\nwant %v", stacks, want)
	}
	if len(r.Stack()) != 0 {
		t.Fatalf("stack not empty at end: %v", names(r.Stack()))
	}
}

func TestReplaceInlinedFrame(t *testing.T) {
	tr := &trace.Trace{Events: []trace.Event{
		open(0, "main"),
		&trace.OpenFrame{ID: diffFile, Name: trace.InlinedFrameName, SrcFileHash: "hmac"},
		&trace.ReplaceInlinedFrame{FileHash: "hoth", OptimizedLines: []int{2}},
		inst(3, 6),
	}}
	r := New(tr)
	if _, err := r.Step(); err != nil {
		t.Fatal(err)
	}
	top := r.Stack()[0]
	if top.SrcFileHash != "hoth" || !reflect.DeepEqual(top.OptimizedSrcLines, []int{2}) || top.Line != 6 {
		t.Errorf("unexpected top frame %+v", top)
	}
}

func TestInlinedFramesShareLocals(t *testing.T) {
	tr := &trace.Trace{
		Events: []trace.Event{
			open(0, "main", trace.Scalar("1")),
			inst(0, 3),
			&trace.OpenFrame{ID: sameFile, Name: trace.InlinedFrameName, SrcFileHash: "hm"},
			inst(1, 30),
			write(0, 0, trace.Scalar("2")),
			inst(2, 31),
		},
		LocalLifetimeEnds: map[int][]int{0: {trace.FrameLifetime}},
	}
	r := New(tr)
	stepAll(t, r)
	stack := r.Stack()
	for _, f := range stack {
		locals := r.VisibleLocals(f)
		if len(locals) != 1 || locals[0].Name != "x" || locals[0].Type != "u64" || locals[0].Value != trace.Scalar("2") {
			t.Errorf("frame %s: locals %+v", f.ID, locals)
		}
	}
}

func TestWrites(t *testing.T) {
	s := func(g ...trace.Value) *trace.Compound {
		return &trace.Compound{
			Type:   "0x2::m::S",
			Fields: []trace.Field{{Name: "f", Value: trace.Scalar("b")}, {Name: "g", Value: trace.Vector(g)}},
		}
	}
	tr := &trace.Trace{
		Events: []trace.Event{
			open(0, "main", trace.Scalar("1"), trace.Vector{trace.Scalar("a"), s(trace.Scalar("c"), trace.Scalar("d"))}),
			inst(0, 1),
			// v[1].g[0] = e; the effect carries all of v, the index path
			// lists the outermost index first
			write(0, 1, trace.Vector{trace.Scalar("a"), s(trace.Scalar("e"), trace.Scalar("d"))}, 0, 1, 1),
			// r = &mut v[1].f
			write(0, 2, trace.Ref{Mutable: true, Loc: trace.Loc{Base: trace.LocalLoc{Frame: 0, Slot: 1}, IndexPath: []int{0, 1}}}),
			inst(1, 2),
			&trace.Effect{
				Type:  trace.EffectWrite,
				Loc:   trace.Loc{Base: trace.GlobalLoc{Index: 0}},
				Value: trace.Vector{trace.Scalar("g0")},
			},
			&trace.Effect{
				Type:  trace.EffectWrite,
				Loc:   trace.Loc{Base: trace.GlobalLoc{Index: 0}, IndexPath: []int{0}},
				Value: trace.Vector{trace.Scalar("g1")},
			},
			&trace.Effect{Type: trace.EffectExecutionError, Message: "ABORTED"},
			inst(2, 3),
		},
		LocalLifetimeEnds: map[int][]int{0: {trace.FrameLifetime, trace.FrameLifetime, trace.FrameLifetime}},
	}
	original := tr.Events[0].(*trace.OpenFrame).ParamValues[1].String()

	r := New(tr)
	stepAll(t, r)
	main := r.Stack()[0]
	locals := r.VisibleLocals(main)
	if len(locals) != 3 {
		t.Fatalf("locals %+v", locals)
	}
	if got, want := locals[1].Value.String(), "[a, 0x2::m::S{f: b, g: [e, d]}]"; got != want {
		t.Errorf("v = %s, want %s", got, want)
	}
	ref, ok := locals[2].Value.(trace.Ref)
	if !ok {
		t.Fatalf("r = %v", locals[2].Value)
	}
	target, err := r.Deref(ref)
	if err != nil || target != trace.Scalar("b") {
		t.Errorf("*r = %v, %v", target, err)
	}
	if g, _ := r.Global(0); !reflect.DeepEqual(g, trace.Vector{trace.Scalar("g1")}) {
		t.Errorf("global 0 = %v", g)
	}
	if !reflect.DeepEqual(r.ExecutionErrors(), []string{"ABORTED"}) {
		t.Errorf("execution errors %v", r.ExecutionErrors())
	}
	if got := tr.Events[0].(*trace.OpenFrame).ParamValues[1].String(); got != original {
		t.Errorf("write modified the trace: %s", got)
	}
}

func TestIndexedWriteReplacesRoot(t *testing.T) {
	tr := &trace.Trace{
		Events: []trace.Event{
			open(0, "main", trace.Vector{trace.Scalar("1"), trace.Scalar("2")}),
			inst(0, 1),
			write(0, 0, trace.Vector{trace.Scalar("9"), trace.Scalar("2")}, 0),
			inst(1, 2),
		},
		LocalLifetimeEnds: map[int][]int{0: {trace.FrameLifetime}},
	}
	r := New(tr)
	stepAll(t, r)
	locals := r.VisibleLocals(r.Stack()[0])
	if len(locals) != 1 {
		t.Fatalf("locals %+v", locals)
	}
	if got := locals[0].Value.String(); got != "[9, 2]" {
		t.Errorf("x = %s", got)
	}
}

func TestWriteToReferent(t *testing.T) {
	tr := &trace.Trace{
		Events: []trace.Event{
			open(0, "main", trace.Scalar("1"), trace.Vector{trace.Scalar("a"), trace.Scalar("b")}),
			inst(0, 1),
			write(0, 2, trace.Ref{Mutable: true, Loc: trace.Loc{Base: trace.LocalLoc{Frame: 0, Slot: 1}}}),
			// *r[1] = z is reported at the referent's location
			write(0, 1, trace.Vector{trace.Scalar("a"), trace.Scalar("z")}, 1),
			inst(1, 2),
		},
		LocalLifetimeEnds: map[int][]int{0: {trace.FrameLifetime, trace.FrameLifetime, trace.FrameLifetime}},
	}
	r := New(tr)
	stepAll(t, r)
	locals := r.VisibleLocals(r.Stack()[0])
	if got := locals[1].Value.String(); got != "[a, z]" {
		t.Errorf("v = %s", got)
	}
	ref, ok := locals[2].Value.(trace.Ref)
	if !ok {
		t.Fatalf("r = %v", locals[2].Value)
	}
	if target, err := r.Deref(ref); err != nil || target.String() != "[a, z]" {
		t.Errorf("*r = %v, %v", target, err)
	}
}

func TestVisibleLocalsHonorsLifetimes(t *testing.T) {
	tr := &trace.Trace{
		Events: []trace.Event{
			open(0, "main", trace.Scalar("1"), trace.Scalar("2")),
			inst(0, 1),
			inst(1, 2),
			inst(2, 3),
		},
		LocalLifetimeEnds: map[int][]int{0: {1, trace.FrameLifetime}},
	}
	r := New(tr)
	var visible [][]string
	for {
		if _, err := r.Step(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatal(err)
		}
		var ns []string
		for _, l := range r.VisibleLocals(r.Stack()[0]) {
			ns = append(ns, l.Name)
		}
		visible = append(visible, ns)
	}
	want := [][]string{{"x", "v"}, {"x", "v"}, {"v"}}
	if !reflect.DeepEqual(visible, want) {
		t.Errorf("got %v want %v", visible, want)
	}
}

func TestExternalFrames(t *testing.T) {
	tr := &trace.Trace{Events: []trace.Event{
		&trace.External{Type: trace.MoveCallStart},
		&trace.ExternalSummary{ID: trace.FrameID{Kind: trace.ExternalSummaryFrame}, Name: "PTB", Summary: []trace.SummaryEntry{{Text: "SplitCoins"}}},
		&trace.External{
			Type:         trace.ExtEventStart,
			ID:           trace.FrameID{Kind: trace.ExternalEventFrame},
			Name:         "SplitCoins",
			Description:  "split",
			LocalsTypes:  []string{"u64"},
			LocalsNames:  []string{"amount"},
			LocalsValues: []trace.Value{trace.Scalar("5")},
		},
		&trace.External{Type: trace.ExtEventEnd},
		&trace.External{Type: trace.MoveCallEnd},
	}}
	r := New(tr)

	stop, err := r.Step()
	if err != nil || stop.Kind != StopExternalSummary {
		t.Fatalf("got %v, %v", stop, err)
	}
	if s := r.Stack(); len(s) != 1 || s[0].Name != "PTB" || len(s[0].Summary) != 1 {
		t.Fatalf("summary stack %v", names(s))
	}

	stop, err = r.Step()
	if err != nil || stop.Kind != StopExternalEvent {
		t.Fatalf("got %v, %v", stop, err)
	}
	s := r.Stack()
	if len(s) != 1 || s[0].Name != "SplitCoins" || s[0].Description != "split" {
		t.Fatalf("event stack %v", names(s))
	}
	locals := r.VisibleLocals(s[0])
	if len(locals) != 1 || locals[0].Name != "amount" || locals[0].Value != trace.Scalar("5") {
		t.Errorf("event locals %+v", locals)
	}

	if _, err := r.Step(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if len(r.Stack()) != 0 {
		t.Fatalf("stack not empty: %v", names(r.Stack()))
	}
}

func TestErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		events []trace.Event
		want   error
	}{
		{"close mismatch", []trace.Event{open(0, "main"), &trace.CloseFrame{ID: trace.Real(1)}}, ErrStackDiscipline},
		{"close empty", []trace.Event{&trace.CloseFrame{ID: trace.Real(0)}}, ErrStackDiscipline},
		{"replace without inline frame", []trace.Event{open(0, "main"), &trace.ReplaceInlinedFrame{FileHash: "x"}}, ErrStackDiscipline},
		{"instruction without frame", []trace.Event{inst(0, 1)}, ErrStackDiscipline},
		{"inline without function", []trace.Event{&trace.OpenFrame{ID: sameFile}}, ErrStackDiscipline},
		{"event end without start", []trace.Event{&trace.External{Type: trace.ExtEventEnd}}, ErrStackDiscipline},
		{"write to closed frame", []trace.Event{open(0, "main"), write(7, 0, trace.Scalar("1"))}, ErrBadWrite},
		{"index out of range", []trace.Event{open(0, "main", trace.Vector{}), write(0, 0, trace.Vector{}, 3)}, ErrBadWrite},
		{"index into scalar", []trace.Event{open(0, "main", trace.Scalar("1")), write(0, 0, trace.Scalar("1"), 0)}, ErrBadWrite},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := New(&trace.Trace{Events: tc.events}).Run()
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}
