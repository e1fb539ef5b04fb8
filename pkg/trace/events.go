package trace

import (
	"fmt"

	"github.com/movetrace/movetrace/pkg/debuginfo"
)

// FrameKind distinguishes real frames from the virtual frames synthesized
// while reading a trace.
type FrameKind uint8

const (
	// RealFrame is a frame opened by a function call in the trace.
	RealFrame FrameKind = iota
	// InlinedSameFile represents a macro inlined from the file of the
	// enclosing function.
	InlinedSameFile
	// InlinedDifferentFile represents a macro inlined from another file.
	InlinedDifferentFile
	// ExternalSummaryFrame represents a summary of external events.
	ExternalSummaryFrame
	// ExternalEventFrame represents a single external event.
	ExternalEventFrame
)

func (k FrameKind) String() string {
	switch k {
	case RealFrame:
		return "real"
	case InlinedSameFile:
		return "inlined-same-file"
	case InlinedDifferentFile:
		return "inlined-different-file"
	case ExternalSummaryFrame:
		return "external-summary"
	case ExternalEventFrame:
		return "external-event"
	}
	return fmt.Sprintf("FrameKind(%d)", uint8(k))
}

// FrameID identifies a frame. ID is only meaningful for real frames.
type FrameID struct {
	Kind FrameKind
	ID   int
}

// Real returns the identifier of the real frame with the given trace id.
func Real(id int) FrameID {
	return FrameID{Kind: RealFrame, ID: id}
}

var (
	sameFileInlineID      = FrameID{Kind: InlinedSameFile}
	differentFileInlineID = FrameID{Kind: InlinedDifferentFile}
	extSummaryID          = FrameID{Kind: ExternalSummaryFrame}
	extEventID            = FrameID{Kind: ExternalEventFrame}
)

// IsInlined reports whether f is a virtual frame for inlined code.
func (f FrameID) IsInlined() bool {
	return f.Kind == InlinedSameFile || f.Kind == InlinedDifferentFile
}

func (f FrameID) String() string {
	if f.Kind == RealFrame {
		return fmt.Sprint(f.ID)
	}
	return f.Kind.String()
}

// InlinedFrameName is the function name given to virtual inline frames.
const InlinedFrameName = "__inlined__"

// EventKind is the kind of a trace event.
type EventKind uint8

const (
	// KindReplaceInlinedFrame replaces the content of the current
	// different-file inline frame with that of another file. Inline frames
	// are not pushed and popped symmetrically, so rather than stacking them
	// the reader keeps at most one per kind and swaps its identity.
	KindReplaceInlinedFrame EventKind = iota
	KindOpenFrame
	KindCloseFrame
	KindInstruction
	KindEffect
	KindExternalSummary
	KindExternal
)

var eventKindNames = [...]string{
	KindReplaceInlinedFrame: "ReplaceInlinedFrame",
	KindOpenFrame:           "OpenFrame",
	KindCloseFrame:          "CloseFrame",
	KindInstruction:         "Instruction",
	KindEffect:              "Effect",
	KindExternalSummary:     "ExternalSummary",
	KindExternal:            "ExternalEvent",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// Event is a trace event. It is one of *ReplaceInlinedFrame, *OpenFrame,
// *CloseFrame, *Instruction, *Effect, *ExternalSummary or *External.
type Event interface {
	Kind() EventKind
	isEvent()
}

// ReplaceInlinedFrame swaps the file of the topmost inline frame.
type ReplaceInlinedFrame struct {
	FileHash       string
	OptimizedLines []int
}

// OpenFrame opens a real or virtual frame.
type OpenFrame struct {
	ID            FrameID
	Name          string
	SrcFileHash   string
	BcodeFileHash string // empty when there is no disassembly
	IsNative      bool
	LocalsTypes   []string
	LocalsNames   []debuginfo.LocalInfo
	ParamValues   []Value

	OptimizedSrcLines   []int
	OptimizedBcodeLines []int
}

// CloseFrame closes the most recently opened frame, which has the given id.
type CloseFrame struct {
	ID FrameID
}

// InstructionKind classifies instructions. Only calls matter to a stepper.
type InstructionKind uint8

const (
	InstructionUnknown InstructionKind = iota
	InstructionCall
	InstructionCallGeneric
)

func (k InstructionKind) String() string {
	switch k {
	case InstructionCall:
		return "CALL"
	case InstructionCallGeneric:
		return "CALL_GENERIC"
	}
	return "UNKNOWN"
}

func instructionKind(mnemonic string) InstructionKind {
	switch mnemonic {
	case "CALL":
		return InstructionCall
	case "CALL_GENERIC":
		return InstructionCallGeneric
	}
	return InstructionUnknown
}

// Instruction is an executed instruction.
type Instruction struct {
	PC       int
	Mnemonic string
	Class    InstructionKind
	SrcLoc   debuginfo.Loc
	BcodeLoc *debuginfo.Loc
}

// EffectKind is the kind of an instruction effect.
type EffectKind uint8

const (
	// EffectWrite is a value written to a location. Loads from global
	// storage are reported as writes as well.
	EffectWrite EffectKind = iota
	EffectExecutionError
)

func (k EffectKind) String() string {
	if k == EffectExecutionError {
		return "ExecutionError"
	}
	return "Write"
}

// Effect is an observable effect of the preceding instruction.
type Effect struct {
	Type EffectKind
	// Loc and Value are set for writes.
	Loc   Loc
	Value Value
	// Message is set for execution errors.
	Message string
}

// MoveCall names a function called by an external computation.
type MoveCall struct {
	Pkg      string
	Module   string
	Function string
}

func (c MoveCall) String() string {
	return c.Pkg + "::" + c.Module + "::" + c.Function
}

// SummaryEntry is one entry of an external summary: a call or free text.
type SummaryEntry struct {
	Call *MoveCall
	Text string
}

func (s SummaryEntry) String() string {
	if s.Call != nil {
		return s.Call.String()
	}
	return s.Text
}

// ExternalSummary summarizes computation performed outside the VM.
type ExternalSummary struct {
	ID      FrameID
	Name    string
	Summary []SummaryEntry
}

// ExtEventKind is the kind of an External event.
type ExtEventKind uint8

const (
	MoveCallStart ExtEventKind = iota
	MoveCallEnd
	ExtEventStart
	ExtEventEnd
)

func (k ExtEventKind) String() string {
	switch k {
	case MoveCallStart:
		return "MoveCallStart"
	case MoveCallEnd:
		return "MoveCallEnd"
	case ExtEventStart:
		return "ExtEventStart"
	case ExtEventEnd:
		return "ExtEventEnd"
	}
	return fmt.Sprintf("ExtEventKind(%d)", uint8(k))
}

// External is an event originating outside the VM. ExtEventStart events
// carry the event's description and locals and are always followed by a
// matching ExtEventEnd.
type External struct {
	Type ExtEventKind

	ID           FrameID
	Description  string
	Name         string
	LocalsTypes  []string
	LocalsNames  []string
	LocalsValues []Value
}

func (*ReplaceInlinedFrame) Kind() EventKind { return KindReplaceInlinedFrame }
func (*OpenFrame) Kind() EventKind           { return KindOpenFrame }
func (*CloseFrame) Kind() EventKind          { return KindCloseFrame }
func (*Instruction) Kind() EventKind         { return KindInstruction }
func (*Effect) Kind() EventKind              { return KindEffect }
func (*ExternalSummary) Kind() EventKind     { return KindExternalSummary }
func (*External) Kind() EventKind            { return KindExternal }

func (*ReplaceInlinedFrame) isEvent() {}
func (*OpenFrame) isEvent()           {}
func (*CloseFrame) isEvent()          {}
func (*Instruction) isEvent()         {}
func (*Effect) isEvent()              {}
func (*ExternalSummary) isEvent()     {}
func (*External) isEvent()            {}
