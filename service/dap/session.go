// Package dap presents the state of a trace replay in terms of the Debug
// Adapter Protocol: stack frames, scopes and variables as defined by
// github.com/google/go-dap. Serving the protocol is left to the caller.
package dap

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/go-dap"

	"github.com/movetrace/movetrace/pkg/config"
	"github.com/movetrace/movetrace/pkg/debuginfo"
	"github.com/movetrace/movetrace/pkg/logflags"
	"github.com/movetrace/movetrace/pkg/replay"
	"github.com/movetrace/movetrace/pkg/trace"
)

// Session projects a replayer's state onto DAP types. Frame and variable
// references are valid until the next call to Step.
type Session struct {
	r     *replay.Replayer
	files *debuginfo.Registry
	conf  *config.Config
	log   logflags.Logger

	stackFrameHandles *handlesMap
	variableHandles   *variablesHandlesMap
}

// NewSession returns a session for r. Source paths are resolved through
// files and rewritten with the substitute-path rules of conf.
func NewSession(r *replay.Replayer, files *debuginfo.Registry, conf *config.Config) *Session {
	if conf == nil {
		conf = &config.Config{}
	}
	return &Session{
		r:                 r,
		files:             files,
		conf:              conf,
		log:               logflags.DAPLogger(),
		stackFrameHandles: newHandlesMap(),
		variableHandles:   newVariablesHandlesMap(),
	}
}

// Step advances the replay to the next stop and invalidates all
// references handed out so far. It returns io.EOF at the end of the trace.
func (s *Session) Step() (*replay.Stop, error) {
	s.clearStateHandles()
	stop, err := s.r.Step()
	if err != nil && err != io.EOF {
		return nil, newError(UnableToStep, "Unable to step", err.Error())
	}
	return stop, err
}

func (s *Session) clearStateHandles() {
	s.stackFrameHandles.reset()
	s.variableHandles.reset()
}

// StackTrace returns the current stack, innermost frame first, together
// with the total number of frames. startFrame and levels select a window
// of the stack as in a stackTrace request; levels <= 0 means all frames.
func (s *Session) StackTrace(startFrame, levels int) ([]dap.StackFrame, int) {
	frames := s.r.Stack()
	stackFrames := make([]dap.StackFrame, len(frames))
	for i, f := range frames {
		stackFrames[i] = dap.StackFrame{
			Id:   s.stackFrameHandles.create(f),
			Name: frameName(f),
			Line: f.Line,
		}
		switch f.ID.Kind {
		case trace.ExternalSummaryFrame, trace.ExternalEventFrame:
			stackFrames[i].PresentationHint = "label"
			continue
		case trace.InlinedSameFile, trace.InlinedDifferentFile:
			stackFrames[i].PresentationHint = "subtle"
		}
		hash, line := f.SrcFileHash, f.Line
		if s.conf.ShowBytecode && f.BcodeFileHash != "" && f.BcodeLine > 0 {
			hash, line = f.BcodeFileHash, f.BcodeLine
		}
		if file, ok := s.files.File(hash); ok {
			path := s.conf.SubstitutePath.Substitute(file.Path)
			stackFrames[i].Source = dap.Source{Name: filepath.Base(path), Path: path}
			stackFrames[i].Line = line
		} else {
			s.log.Warnf("no file for hash %s of frame %s", hash, f.ID)
		}
	}
	total := len(stackFrames)
	if startFrame > 0 {
		stackFrames = stackFrames[min(startFrame, len(stackFrames)):]
	}
	if levels > 0 {
		stackFrames = stackFrames[:min(levels, len(stackFrames))]
	}
	return stackFrames, total
}

func frameName(f *replay.Frame) string {
	switch f.ID.Kind {
	case trace.InlinedSameFile, trace.InlinedDifferentFile:
		return "[inlined]"
	case trace.ExternalSummaryFrame, trace.ExternalEventFrame:
		return "[external] " + f.Name
	}
	return f.Name
}

// Scopes returns the scopes of the frame with the given reference.
func (s *Session) Scopes(frameID int) ([]dap.Scope, error) {
	sf, ok := s.stackFrameHandles.get(frameID)
	if !ok {
		return nil, newError(UnableToListLocals, "Unable to list locals", fmt.Sprintf("unknown frame id %d", frameID))
	}
	f := sf.(*replay.Frame)
	if f.ID.Kind == trace.ExternalSummaryFrame {
		sum := &variable{name: "Summary", isScope: true, summary: f.Summary}
		return []dap.Scope{{
			Name:               sum.name,
			VariablesReference: s.variableHandles.create(sum),
			NamedVariables:     len(f.Summary),
		}}, nil
	}
	locals := s.r.VisibleLocals(f)
	locScope := &variable{name: "Locals", isScope: true, locals: locals}
	return []dap.Scope{{
		Name:               locScope.name,
		PresentationHint:   "locals",
		VariablesReference: s.variableHandles.create(locScope),
		NamedVariables:     len(locals),
	}}, nil
}

// Variables returns the children of the scope or variable with the given
// reference. Vectors are truncated to the configured maximum length.
func (s *Session) Variables(ref int) ([]dap.Variable, error) {
	v, ok := s.variableHandles.get(ref)
	if !ok {
		return nil, newError(UnableToLookupVariable, "Unable to lookup variable", fmt.Sprintf("unknown reference %d", ref))
	}
	if v.isScope {
		children := make([]dap.Variable, 0, len(v.locals)+len(v.summary))
		for _, l := range v.locals {
			value, variablesReference := s.convertVariable(l.Name, l.Value)
			children = append(children, dap.Variable{
				Name:               l.Name,
				Value:              value,
				Type:               l.Type,
				VariablesReference: variablesReference,
			})
		}
		for i, e := range v.summary {
			children = append(children, dap.Variable{Name: fmt.Sprintf("[%d]", i), Value: e.String()})
		}
		return children, nil
	}

	val := v.value
	if ref, ok := val.(trace.Ref); ok {
		target, err := s.r.Deref(ref)
		if err != nil {
			return nil, newError(UnableToLookupVariable, "Unable to lookup variable", err.Error())
		}
		val = target
	}
	switch val := val.(type) {
	case trace.Vector:
		n := min(len(val), s.conf.MaxArray())
		children := make([]dap.Variable, n)
		for i := 0; i < n; i++ {
			name := fmt.Sprintf("[%d]", i)
			value, variablesReference := s.convertVariable(name, val[i])
			children[i] = dap.Variable{Name: name, Value: value, VariablesReference: variablesReference}
		}
		return children, nil
	case *trace.Compound:
		children := make([]dap.Variable, len(val.Fields))
		for i, f := range val.Fields {
			value, variablesReference := s.convertVariable(f.Name, f.Value)
			children[i] = dap.Variable{Name: f.Name, Value: value, VariablesReference: variablesReference}
		}
		return children, nil
	}
	return []dap.Variable{}, nil
}

// convertVariable converts a value to its DAP rendering and reference.
// A positive reference signals the client that another variables request
// can be issued to get the elements of the compound value; scalars get a
// zero reference.
func (s *Session) convertVariable(name string, v trace.Value) (value string, variablesReference int) {
	switch v := v.(type) {
	case trace.Scalar:
		value = string(v)
	case trace.Vector:
		value = fmt.Sprintf("vector (length: %d)", len(v))
		if len(v) > 0 {
			variablesReference = s.variableHandles.create(&variable{name: name, value: v})
		}
	case *trace.Compound:
		value = compoundType(v)
		if len(v.Fields) > 0 {
			variablesReference = s.variableHandles.create(&variable{name: name, value: v})
		}
	case trace.Ref:
		target, err := s.r.Deref(v)
		if err != nil {
			value = fmt.Sprintf("unreadable <%v>", err)
			return
		}
		prefix := "&"
		if v.Mutable {
			prefix = "&mut "
		}
		if _, ok := target.(trace.Ref); ok {
			value = prefix + target.String()
			return
		}
		inner, innerRef := s.convertVariable(name, target)
		value = prefix + inner
		if innerRef > 0 {
			variablesReference = innerRef
		}
	default:
		value = fmt.Sprintf("%v", v)
	}
	return
}

func compoundType(c *trace.Compound) string {
	t := c.Type
	if c.Variant != nil {
		t += "::" + c.Variant.Name
	}
	return t
}
