// Package trace reads execution traces of the Move VM and reconstructs the
// sequence of events a debugger steps through.
//
// A trace is a zstd-compressed stream of newline separated JSON records: a
// header carrying the format version followed by OpenFrame, Instruction,
// Effect, CloseFrame and External records. Reading a trace resolves every
// record against debug info, synthesizes virtual frames for inlined macro
// code, and computes where local variables stop being live and which lines
// were executed.
package trace

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/movetrace/movetrace/pkg/debuginfo"
	"github.com/movetrace/movetrace/pkg/logflags"
)

// Trace is a fully processed execution trace.
type Trace struct {
	// Version is the trace format version from the header.
	Version int
	Events  []Event
	// LocalLifetimeEnds maps each real frame id to the PC at which each of
	// its locals stops being live, indexed by local slot. FrameLifetime
	// means live until the frame closes, LifetimeUnset that the slot was
	// never accessed.
	LocalLifetimeEnds map[int][]int
	// TracedSrcLines and TracedBcodeLines hold the executed lines keyed by
	// file path.
	TracedSrcLines   map[string]LineSet
	TracedBcodeLines map[string]LineSet
}

// ReadFile reads the trace stored at path.
func ReadFile(path string, files *debuginfo.Registry) (*Trace, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Parse(raw, files)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading trace %s", path)
	}
	return t, nil
}

// Read reads a trace from r.
func Read(r io.Reader, files *debuginfo.Registry) (*Trace, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return Parse(buf.Bytes(), files)
}

// Decode decompresses raw and returns the trace format version and the
// undecoded record lines.
func Decode(raw []byte) (int, [][]byte, error) {
	data, err := Decompress(raw)
	if err != nil {
		return 0, nil, err
	}
	return splitTrace(data)
}

// Parse processes a trace, compressed or not. The registry is only read.
func Parse(raw []byte, files *debuginfo.Registry) (*Trace, error) {
	version, records, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	r := newReader(files)
	r.log.Debugf("trace version %d, %d records", version, len(records))
	if version > MaxVersion {
		r.log.Warnf("trace format version %d is newer than %d", version, MaxVersion)
	}
	for i, line := range records {
		rec, err := decodeRecord(line, i+1)
		if err != nil {
			return nil, err
		}
		if err := r.process(rec); err != nil {
			return nil, errors.WithMessagef(err, "record %d", i+1)
		}
	}
	hits, misses := r.res.addrs.Stats()
	r.log.Debugf("%d events, address cache %d hits %d misses", len(r.events), hits, misses)
	return &Trace{
		Version:           version,
		Events:            r.events,
		LocalLifetimeEnds: r.lifetimes.ends,
		TracedSrcLines:    r.srcLines,
		TracedBcodeLines:  r.bcodeLines,
	}, nil
}

// reader holds the state of a single pass over a trace.
type reader struct {
	files *debuginfo.Registry
	res   *resolver
	log   logflags.Logger

	stack      frameStack
	lifetimes  *lifetimes
	srcLines   lineRecorder
	bcodeLines lineRecorder

	events []Event
}

func newReader(files *debuginfo.Registry) *reader {
	return &reader{
		files:      files,
		res:        newResolver(),
		log:        logflags.TraceLogger(),
		lifetimes:  newLifetimes(),
		srcLines:   make(lineRecorder),
		bcodeLines: make(lineRecorder),
	}
}

func (r *reader) emit(ev Event) {
	r.events = append(r.events, ev)
}

func (r *reader) process(rec *jsonRecord) error {
	switch {
	case rec.OpenFrame != nil:
		return r.openFrame(rec.OpenFrame)
	case rec.CloseFrame != nil:
		return r.closeFrame(rec.CloseFrame)
	case rec.Instruction != nil:
		return r.instruction(rec.Instruction)
	case rec.Effect != nil:
		return r.effect(rec.Effect)
	case rec.External != nil:
		return r.external(rec.External)
	}
	r.log.Debugf("skipping record of unknown kind")
	return nil
}

func (r *reader) effect(e *jsonEffect) error {
	if r.stack.top() == nil {
		return errors.Wrap(ErrMalformedTrace, "effect outside of any frame")
	}
	var jl *jsonLocation
	switch {
	case e.Write != nil:
		jl = &e.Write.Location
	case e.Read != nil:
		jl = &e.Read.Location
	case e.DataLoad != nil:
		jl = &e.DataLoad.Location
	}
	if jl != nil {
		// Any access keeps the local alive, reads included.
		loc, err := location(jl, r.lifetimes)
		if err != nil {
			return err
		}
		switch {
		case e.Write != nil:
			v, err := r.written(loc, &e.Write.RootValueAfterWrite)
			if err != nil {
				return err
			}
			r.emit(&Effect{Type: EffectWrite, Loc: loc, Value: v})
		case e.DataLoad != nil:
			v, err := r.res.value(&e.DataLoad.Snapshot)
			if err != nil {
				return err
			}
			r.emit(&Effect{Type: EffectWrite, Loc: loc, Value: v})
		}
	}
	if e.ExecutionError != nil {
		r.emit(&Effect{Type: EffectExecutionError, Message: *e.ExecutionError})
	}
	return nil
}

// written returns the value stored by a write to loc.
func (r *reader) written(loc Loc, v *jsonValue) (Value, error) {
	if v.RuntimeValue != nil {
		return r.res.value(&v.RuntimeValue.Value)
	}
	// A global is a reference with no referent in the trace, e.g. an
	// argument of the top level call. Storing the reference itself would
	// make the global refer to itself, so the snapshot is stored instead.
	if _, ok := loc.Base.(GlobalLoc); ok {
		return r.res.deref(v)
	}
	return ref(v)
}
