package trace

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/movetrace/movetrace/pkg/debuginfo"
)

// frameContext is the reader's view of a frame on the stack.
type frameContext struct {
	id FrameID

	srcFilePath   string
	srcFileHash   string
	bcodeFilePath string
	bcodeFileHash string

	optimizedSrcLines   []int
	optimizedBcodeLines []int

	funName  string
	srcFun   *debuginfo.Function
	bcodeFun *debuginfo.Function
}

// inlined returns a virtual frame for code inlined into c's function. The
// function, and with it the PC to location table, stays the same.
func (c *frameContext) inlined(id FrameID) *frameContext {
	f := *c
	f.id = id
	return &f
}

type frameStack []*frameContext

func (s frameStack) top() *frameContext {
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

// below returns the frame n levels under the top of the stack.
func (s frameStack) below(n int) *frameContext {
	if len(s) <= n {
		return nil
	}
	return s[len(s)-1-n]
}

func (s *frameStack) push(c *frameContext) {
	*s = append(*s, c)
}

func (s *frameStack) pop() *frameContext {
	c := s.top()
	if c != nil {
		*s = (*s)[:len(*s)-1]
	}
	return c
}

// nearestReal returns the topmost frame that is not a virtual inline frame.
func (s frameStack) nearestReal() *frameContext {
	for i := len(s) - 1; i >= 0; i-- {
		if !s[i].id.IsInlined() {
			return s[i]
		}
	}
	return nil
}

func (r *reader) openFrame(of *jsonOpenFrame) error {
	frame := &of.Frame

	localsTypes := make([]string, len(frame.LocalsTypes))
	for i := range frame.LocalsTypes {
		lt := &frame.LocalsTypes[i]
		localsTypes[i] = r.res.typeString(&lt.Type, lt.RefType)
	}

	paramValues := make([]Value, 0, len(frame.Parameters))
	present := make([]bool, len(frame.Parameters))
	for i, p := range frame.Parameters {
		if p == nil {
			continue
		}
		v, err := r.res.runtimeOrRef(p)
		if err != nil {
			return errors.WithMessagef(err, "parameter %d of %s", i, frame.FunctionName)
		}
		paramValues = append(paramValues, v)
		present[i] = true
	}
	r.lifetimes.openFrame(frame.FrameID, present)

	// The version id is the address of the package version that contains
	// the function; it differs from the module address once a package has
	// been upgraded.
	mod := debuginfo.ModuleKey{Addr: frame.Module.Address, Name: frame.Module.Name}
	if frame.VersionID != "" {
		mod.Addr = frame.VersionID
	}
	di, ok := r.files.SourceByModule(mod)
	if !ok {
		return errors.Wrapf(ErrMissingDebugInfo, "module %s in package %s", mod.Name, mod.Addr)
	}
	srcFun, ok := di.Functions[frame.FunctionName]
	if !ok {
		return errors.Wrapf(ErrMissingFunction, "function %s in module %s in package %s when processing OpenFrame event", frame.FunctionName, mod.Name, mod.Addr)
	}
	srcFile, ok := r.files.File(di.FileHash)
	if !ok {
		return errors.Wrapf(ErrMissingFile, "hash %s of module %s", di.FileHash, mod)
	}

	ctx := &frameContext{
		id:                Real(frame.FrameID),
		srcFilePath:       srcFile.Path,
		srcFileHash:       di.FileHash,
		optimizedSrcLines: di.OptimizedLines,
		funName:           frame.FunctionName,
		srcFun:            srcFun,
	}
	// there may be no disassembly for a module
	if bdi, ok := r.files.BytecodeByModule(mod); ok {
		ctx.bcodeFileHash = bdi.FileHash
		ctx.optimizedBcodeLines = bdi.OptimizedLines
		ctx.bcodeFun = bdi.Functions[frame.FunctionName]
		if f, ok := r.files.File(bdi.FileHash); ok {
			ctx.bcodeFilePath = f.Path
		}
	}

	// Events own their slices; consumers may modify them.
	r.emit(&OpenFrame{
		ID:                  ctx.id,
		Name:                frame.FunctionName,
		SrcFileHash:         ctx.srcFileHash,
		BcodeFileHash:       ctx.bcodeFileHash,
		IsNative:            frame.IsNative,
		LocalsTypes:         localsTypes,
		LocalsNames:         slices.Clone(srcFun.Locals),
		ParamValues:         paramValues,
		OptimizedSrcLines:   slices.Clone(ctx.optimizedSrcLines),
		OptimizedBcodeLines: slices.Clone(ctx.optimizedBcodeLines),
	})
	r.stack.push(ctx)
	return nil
}

func (r *reader) closeFrame(cf *jsonCloseFrame) error {
	id := Real(cf.FrameID)
	// A function may return from inside inlined code; the inline frames
	// go away with it.
	for top := r.stack.top(); top != nil && top.id.IsInlined(); top = r.stack.top() {
		r.emit(&CloseFrame{ID: top.id})
		r.stack.pop()
	}
	top := r.stack.pop()
	if top == nil {
		return errors.Wrapf(ErrMalformedTrace, "CloseFrame %d with no open frame", cf.FrameID)
	}
	if top.id != id {
		return errors.Wrapf(ErrMalformedTrace, "CloseFrame %d does not match open frame %s", cf.FrameID, top.id)
	}
	r.emit(&CloseFrame{ID: id})
	return nil
}

func (r *reader) instruction(in *jsonInstruction) error {
	frame := r.stack.top()
	if frame == nil {
		return errors.Wrapf(ErrMalformedTrace, "instruction at PC %d outside of any frame", in.PC)
	}
	srcLoc, ok := frame.srcFun.PCLoc(in.PC)
	if !ok {
		return errors.Wrapf(ErrMalformedTrace, "no source locations for function %s", frame.funName)
	}
	var bcodeLoc *debuginfo.FileLoc
	if frame.bcodeFun != nil {
		if loc, ok := frame.bcodeFun.PCLoc(in.PC); ok {
			bcodeLoc = &loc
		}
	}

	popped, err := r.inline(in.PC, srcLoc)
	if err != nil {
		return err
	}
	if popped {
		// Leaving a macro from another file may land directly in a macro
		// defined in the function's own file.
		if _, err := r.inline(in.PC, srcLoc); err != nil {
			return err
		}
	}

	if err := r.srcLines.record(r.files, srcLoc); err != nil {
		return err
	}
	ev := &Instruction{
		PC:       in.PC,
		Mnemonic: in.Instruction,
		Class:    instructionKind(in.Instruction),
		SrcLoc:   srcLoc.Loc,
	}
	if bcodeLoc != nil {
		if err := r.bcodeLines.record(r.files, *bcodeLoc); err != nil {
			return err
		}
		loc := bcodeLoc.Loc
		ev.BcodeLoc = &loc
	}
	r.emit(ev)

	// Instructions in inlined code close lifetimes of the function they
	// were inlined into.
	if real := r.stack.nearestReal(); real != nil {
		r.lifetimes.instruction(real.id.ID, in.PC)
	}
	return nil
}

// inline moves between a function's own code and code inlined from macros.
// Inlined code has no open and close markers in the trace and its frames
// do not nest symmetrically: given
//
//	macro fun baz() { ... }
//	macro fun bar() { baz!(); ... }
//	fun foo() { bar!(); }
//
// the first instruction of foo already belongs to baz, and control then
// flows to bar and back to foo. Instead of one virtual frame per macro the
// stack therefore holds at most one frame for a macro from the same file
// and, above it, at most one frame for a macro from a different file:
//
//   - moving to a different file either returns to the frame below the
//     current inline frame, if that frame is in the target file, or
//     replaces the current different-file frame, or opens one;
//   - within the same file, leaving the function's range opens a
//     same-file frame and coming back closes it.
//
// It reports whether a different-file frame was closed, in which case the
// caller must run it once more for the same instruction.
func (r *reader) inline(pc int, loc debuginfo.FileLoc) (bool, error) {
	frame := r.stack.top()
	if loc.FileHash != frame.srcFileHash {
		if below := r.stack.below(1); frame.id.IsInlined() && below != nil && below.srcFileHash == loc.FileHash {
			r.log.Debugf("leaving inlined code of %s at PC %d", frame.funName, pc)
			r.stack.pop()
			r.emit(&CloseFrame{ID: frame.id})
			return true, nil
		}
		di, ok := r.files.SourceByHash(loc.FileHash)
		if !ok {
			return false, errors.Wrapf(ErrMissingDebugInfo, "file with hash %s when frame switching within frame %s at PC %d", loc.FileHash, frame.id, pc)
		}
		if frame.id == differentFileInlineID {
			r.emit(&ReplaceInlinedFrame{
				FileHash:       loc.FileHash,
				OptimizedLines: slices.Clone(di.OptimizedLines),
			})
			r.stack.pop()
		} else {
			r.emit(&OpenFrame{
				ID:          differentFileInlineID,
				Name:        InlinedFrameName,
				SrcFileHash: loc.FileHash,
				// disassembly stays the same for inlined code
				BcodeFileHash:       frame.bcodeFileHash,
				LocalsTypes:         []string{},
				LocalsNames:         []debuginfo.LocalInfo{},
				ParamValues:         []Value{},
				OptimizedSrcLines:   slices.Clone(di.OptimizedLines),
				OptimizedBcodeLines: slices.Clone(frame.optimizedBcodeLines),
			})
		}
		r.log.Debugf("entering inlined code from %s in %s at PC %d", di.FilePath, frame.funName, pc)
		next := frame.inlined(differentFileInlineID)
		next.srcFilePath = di.FilePath
		next.srcFileHash = di.FileHash
		next.optimizedSrcLines = di.OptimizedLines
		r.stack.push(next)
		return false, nil
	}

	// Same file: inlined code, if any, is a macro from this file unless we
	// are already inside code inlined from another file.
	if frame.id == differentFileInlineID {
		return false, nil
	}
	inside := frame.srcFun.Contains(loc.Loc)
	switch {
	case !inside && frame.id != sameFileInlineID:
		r.emit(&OpenFrame{
			ID:                  sameFileInlineID,
			Name:                InlinedFrameName,
			SrcFileHash:         loc.FileHash,
			BcodeFileHash:       frame.bcodeFileHash,
			LocalsTypes:         []string{},
			LocalsNames:         []debuginfo.LocalInfo{},
			ParamValues:         []Value{},
			OptimizedSrcLines:   slices.Clone(frame.optimizedSrcLines),
			OptimizedBcodeLines: slices.Clone(frame.optimizedBcodeLines),
		})
		r.stack.push(frame.inlined(sameFileInlineID))
	case inside && frame.id == sameFileInlineID:
		// Distinct ids for the two kinds of inline frames keep this from
		// closing a frame for a macro from another file.
		r.emit(&CloseFrame{ID: sameFileInlineID})
		r.stack.pop()
	}
	return false, nil
}
