// Package replay steps through the events of a processed trace,
// maintaining the call stack and the values of local and global variables
// the way a debugger presents them at each stop.
package replay

import (
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/movetrace/movetrace/pkg/logflags"
	"github.com/movetrace/movetrace/pkg/trace"
)

var (
	// ErrStackDiscipline is returned when frame events do not nest.
	ErrStackDiscipline = errors.New("frame events do not nest")
	// ErrBadWrite is returned when a write targets a location that does
	// not exist.
	ErrBadWrite = errors.New("write to nonexistent location")
)

// maxRefDepth bounds the number of references followed by Deref.
const maxRefDepth = 64

// StopKind tells why Step stopped.
type StopKind uint8

const (
	StopInstruction StopKind = iota
	StopExternalSummary
	StopExternalEvent
)

func (k StopKind) String() string {
	switch k {
	case StopInstruction:
		return "instruction"
	case StopExternalSummary:
		return "external summary"
	case StopExternalEvent:
		return "external event"
	}
	return "unknown"
}

// Stop describes the event Step stopped at.
type Stop struct {
	Kind  StopKind
	Event trace.Event
}

// locals holds the variables of a frame. Virtual inline frames share the
// locals of the real frame they were inlined into.
type locals struct {
	names  map[int]string
	types  []string
	values []trace.Value
}

func (l *locals) set(slot int, v trace.Value) {
	for len(l.values) <= slot {
		l.values = append(l.values, nil)
	}
	l.values[slot] = v
}

// Frame is a frame of the replayed call stack.
type Frame struct {
	ID   trace.FrameID
	Name string

	SrcFileHash   string
	BcodeFileHash string

	OptimizedSrcLines   []int
	OptimizedBcodeLines []int

	// PC and Line are those of the last instruction executed in the
	// frame. Line is 0 before the first instruction; BcodeLine is 0 when
	// there is no disassembly.
	PC        int
	Line      int
	BcodeLine int

	// Summary is set for external summary frames.
	Summary []trace.SummaryEntry
	// Description is set for external event frames.
	Description string

	// realID is the trace id of the real frame that owns locals.
	realID int
	locals *locals
}

// Local is a variable visible in a frame.
type Local struct {
	Slot  int
	Name  string
	Type  string
	Value trace.Value
}

// Replayer steps forward through a trace.
type Replayer struct {
	tr  *trace.Trace
	pos int
	log logflags.Logger

	stack   []*Frame
	globals map[int]trace.Value
	errs    []string

	// popSummary is set while an external summary frame is shown.
	popSummary bool
}

// New returns a replayer positioned before the first event of tr.
func New(tr *trace.Trace) *Replayer {
	return &Replayer{
		tr:      tr,
		log:     logflags.ReplayLogger(),
		globals: make(map[int]trace.Value),
	}
}

// Step executes events up to and including the next stop: an instruction,
// an external summary or the start of an external event. It returns io.EOF
// once all events have been executed.
func (r *Replayer) Step() (*Stop, error) {
	if r.popSummary {
		r.stack = r.stack[:len(r.stack)-1]
		r.popSummary = false
	}
	for r.pos < len(r.tr.Events) {
		ev := r.tr.Events[r.pos]
		r.pos++
		stop, err := r.apply(ev)
		if err != nil {
			return nil, errors.WithMessagef(err, "event %d (%s)", r.pos-1, trace.EventString(ev))
		}
		if stop != nil {
			return stop, nil
		}
	}
	return nil, io.EOF
}

// Run executes all remaining events.
func (r *Replayer) Run() error {
	for {
		if _, err := r.Step(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (r *Replayer) top() *Frame {
	if len(r.stack) == 0 {
		return nil
	}
	return r.stack[len(r.stack)-1]
}

func (r *Replayer) apply(ev trace.Event) (*Stop, error) {
	switch ev := ev.(type) {
	case *trace.OpenFrame:
		return nil, r.openFrame(ev)

	case *trace.CloseFrame:
		top := r.top()
		if top == nil || top.ID != ev.ID {
			return nil, errors.Wrapf(ErrStackDiscipline, "closing frame %s", ev.ID)
		}
		r.stack = r.stack[:len(r.stack)-1]
		return nil, nil

	case *trace.ReplaceInlinedFrame:
		top := r.top()
		if top == nil || top.ID.Kind != trace.InlinedDifferentFile {
			return nil, errors.Wrap(ErrStackDiscipline, "no inlined frame to replace")
		}
		top.SrcFileHash = ev.FileHash
		top.OptimizedSrcLines = ev.OptimizedLines
		return nil, nil

	case *trace.Instruction:
		top := r.top()
		if top == nil {
			return nil, errors.Wrapf(ErrStackDiscipline, "instruction at PC %d outside of any frame", ev.PC)
		}
		top.PC = ev.PC
		top.Line = ev.SrcLoc.Line
		top.BcodeLine = 0
		if ev.BcodeLoc != nil {
			top.BcodeLine = ev.BcodeLoc.Line
		}
		return &Stop{Kind: StopInstruction, Event: ev}, nil

	case *trace.Effect:
		if ev.Type == trace.EffectExecutionError {
			r.log.Debugf("execution error: %s", ev.Message)
			r.errs = append(r.errs, ev.Message)
			return nil, nil
		}
		return nil, r.write(ev.Loc, ev.Value)

	case *trace.ExternalSummary:
		r.stack = append(r.stack, &Frame{ID: ev.ID, Name: ev.Name, Summary: ev.Summary})
		r.popSummary = true
		return &Stop{Kind: StopExternalSummary, Event: ev}, nil

	case *trace.External:
		return r.external(ev)
	}
	return nil, errors.Errorf("unknown event %T", ev)
}

func (r *Replayer) openFrame(ev *trace.OpenFrame) error {
	f := &Frame{
		ID:                  ev.ID,
		Name:                ev.Name,
		SrcFileHash:         ev.SrcFileHash,
		BcodeFileHash:       ev.BcodeFileHash,
		OptimizedSrcLines:   ev.OptimizedSrcLines,
		OptimizedBcodeLines: ev.OptimizedBcodeLines,
	}
	if ev.ID.IsInlined() {
		owner := r.top()
		if owner == nil || owner.locals == nil {
			return errors.Wrapf(ErrStackDiscipline, "inlined frame %s without an enclosing function", ev.ID)
		}
		f.realID = owner.realID
		f.locals = owner.locals
		f.PC, f.Line, f.BcodeLine = owner.PC, owner.Line, owner.BcodeLine
		r.stack = append(r.stack, f)
		return nil
	}
	l := &locals{
		names: make(map[int]string, len(ev.LocalsNames)),
		types: ev.LocalsTypes,
	}
	for _, n := range ev.LocalsNames {
		l.names[n.Index] = n.Name
	}
	// absent parameters have already been dropped
	for i, v := range ev.ParamValues {
		l.set(i, v)
	}
	f.realID = ev.ID.ID
	f.locals = l
	r.stack = append(r.stack, f)
	return nil
}

func (r *Replayer) external(ev *trace.External) (*Stop, error) {
	switch ev.Type {
	case trace.MoveCallStart, trace.MoveCallEnd:
		r.log.Debugf("%s", ev.Type)
		return nil, nil
	case trace.ExtEventStart:
		l := &locals{names: make(map[int]string, len(ev.LocalsNames)), types: ev.LocalsTypes}
		for i, n := range ev.LocalsNames {
			l.names[i] = n
		}
		for i, v := range ev.LocalsValues {
			l.set(i, v)
		}
		r.stack = append(r.stack, &Frame{
			ID:          ev.ID,
			Name:        ev.Name,
			Description: ev.Description,
			realID:      -1,
			locals:      l,
		})
		return &Stop{Kind: StopExternalEvent, Event: ev}, nil
	case trace.ExtEventEnd:
		top := r.top()
		if top == nil || top.ID.Kind != trace.ExternalEventFrame {
			return nil, errors.Wrap(ErrStackDiscipline, "external event end without a start")
		}
		r.stack = r.stack[:len(r.stack)-1]
		return nil, nil
	}
	return nil, errors.Errorf("unknown external event %s", ev.Type)
}

// Stack returns the frames of the call stack, innermost first.
func (r *Replayer) Stack() []*Frame {
	frames := make([]*Frame, len(r.stack))
	for i, f := range r.stack {
		frames[len(r.stack)-1-i] = f
	}
	return frames
}

// Global returns the value of global slot i.
func (r *Replayer) Global(i int) (trace.Value, bool) {
	v, ok := r.globals[i]
	return v, ok
}

// ExecutionErrors returns the execution errors seen so far.
func (r *Replayer) ExecutionErrors() []string {
	return r.errs
}

// VisibleLocals returns the locals of f that hold a value and are live at
// f's current PC.
func (r *Replayer) VisibleLocals(f *Frame) []Local {
	if f.locals == nil {
		return nil
	}
	var ends []int
	if f.realID >= 0 {
		ends = r.tr.LocalLifetimeEnds[f.realID]
	}
	var out []Local
	for slot, v := range f.locals.values {
		if v == nil {
			continue
		}
		if f.realID >= 0 && slot < len(ends) {
			end := ends[slot]
			if end >= 0 && f.PC > end {
				continue
			}
		}
		l := Local{Slot: slot, Name: f.locals.names[slot], Value: v}
		if l.Name == "" {
			l.Name = "_" + strconv.Itoa(slot)
		}
		if slot < len(f.locals.types) {
			l.Type = f.locals.types[slot]
		}
		out = append(out, l)
	}
	return out
}
