// Package debuginfo holds the per-file debug information that the trace
// reader consumes: function ranges, program counter to source location
// tables and local variable names, indexed by file content hash and by
// module identity, plus the registry mapping file hashes to paths.
//
// Debug info is produced by the package build; this package only
// indexes and looks it up.
package debuginfo

import "fmt"

// Loc is a position in a file. Lines and columns are 1-based.
type Loc struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Before reports whether l comes strictly before o.
func (l Loc) Before(o Loc) bool {
	return l.Line < o.Line || (l.Line == o.Line && l.Column < o.Column)
}

// FileLoc is a position qualified by the content hash of its file.
type FileLoc struct {
	FileHash string `json:"file_hash"`
	Loc
}

// LocalInfo names one local variable slot of a function.
type LocalInfo struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// Function is the debug info for a single function.
type Function struct {
	Name string
	// Start and End delimit the function body in its defining file.
	Start Loc
	End   Loc
	// PCLocs maps each program counter to its location. Locations of
	// inlined macro code may refer to other files.
	PCLocs []FileLoc
	Locals []LocalInfo
}

// PCLoc returns the location of the instruction at pc. Trailing
// instructions past the end of the table share the last mapped location.
func (fn *Function) PCLoc(pc int) (FileLoc, bool) {
	if len(fn.PCLocs) == 0 || pc < 0 {
		return FileLoc{}, false
	}
	if pc >= len(fn.PCLocs) {
		return fn.PCLocs[len(fn.PCLocs)-1], true
	}
	return fn.PCLocs[pc], true
}

// Contains reports whether loc lies within the function's declared range.
func (fn *Function) Contains(loc Loc) bool {
	return !loc.Before(fn.Start) && !fn.End.Before(loc)
}

// ModuleKey identifies a module by the address of the package version that
// contains it and by module name.
type ModuleKey struct {
	Addr string `json:"addr"`
	Name string `json:"name"`
}

func (k ModuleKey) String() string {
	return fmt.Sprintf("%s::%s", k.Addr, k.Name)
}

// DebugInfo is the debug info for one file: either a source file or a
// disassembled bytecode file.
type DebugInfo struct {
	FileHash string
	FilePath string
	Module   ModuleKey
	// OptimizedLines lists lines of the file whose code was optimized away.
	OptimizedLines []int
	Functions      map[string]*Function
}

// FileInfo describes a file known to the registry.
type FileInfo struct {
	Hash string
	Path string
}
