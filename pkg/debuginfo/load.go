package debuginfo

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/movetrace/movetrace/pkg/logflags"
)

// Kind tells whether an index file describes a source file or a
// disassembled bytecode file.
type Kind string

const (
	SourceKind   Kind = "source"
	BytecodeKind Kind = "bytecode"
)

// indexFile is the on-disk form of one debug info index:
//
//	{
//	  "kind": "source",
//	  "file_hash": "...", "file_path": "sources/m.move",
//	  "module": {"addr": "0x2", "name": "m"},
//	  "optimized_lines": [7],
//	  "functions": [{
//	    "name": "f",
//	    "start": {"line": 3, "column": 5}, "end": {"line": 9, "column": 6},
//	    "locals": [{"name": "x", "index": 0}],
//	    "pc_locs": [{"line": 4, "column": 9}, {"file_hash": "...", "line": 2, "column": 1}]
//	  }]
//	}
//
// A pc_locs entry without a file_hash refers to the index's own file.
type indexFile struct {
	Kind           Kind           `json:"kind"`
	FileHash       string         `json:"file_hash"`
	FilePath       string         `json:"file_path"`
	Module         ModuleKey      `json:"module"`
	OptimizedLines []int          `json:"optimized_lines"`
	Functions      []indexFunc    `json:"functions"`
	Files          []indexFileRef `json:"files"`
}

type indexFunc struct {
	Name   string      `json:"name"`
	Start  Loc         `json:"start"`
	End    Loc         `json:"end"`
	Locals []LocalInfo `json:"locals"`
	PCLocs []FileLoc   `json:"pc_locs"`
}

// indexFileRef registers an additional file, such as one that only holds
// macros and therefore has no module of its own.
type indexFileRef struct {
	Hash string `json:"hash"`
	Path string `json:"path"`
}

// Decode reads one index from r.
func Decode(r io.Reader) (Kind, *DebugInfo, []FileInfo, error) {
	var idx indexFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&idx); err != nil {
		return "", nil, nil, errors.Wrap(err, "malformed debug info index")
	}
	switch idx.Kind {
	case "":
		idx.Kind = SourceKind
	case SourceKind, BytecodeKind:
	default:
		return "", nil, nil, errors.Errorf("unknown debug info kind %q", idx.Kind)
	}
	di := &DebugInfo{
		FileHash:       idx.FileHash,
		FilePath:       idx.FilePath,
		Module:         idx.Module,
		OptimizedLines: idx.OptimizedLines,
		Functions:      make(map[string]*Function, len(idx.Functions)),
	}
	for _, f := range idx.Functions {
		fn := &Function{
			Name:   f.Name,
			Start:  f.Start,
			End:    f.End,
			Locals: f.Locals,
			PCLocs: f.PCLocs,
		}
		for i := range fn.PCLocs {
			if fn.PCLocs[i].FileHash == "" {
				fn.PCLocs[i].FileHash = idx.FileHash
			}
		}
		di.Functions[f.Name] = fn
	}
	extra := make([]FileInfo, 0, len(idx.Files))
	for _, f := range idx.Files {
		extra = append(extra, FileInfo{Hash: f.Hash, Path: f.Path})
	}
	return idx.Kind, di, extra, nil
}

// LoadDir adds every *.json index found in dir to r.
func (r *Registry) LoadDir(dir string) error {
	logger := logflags.DebugInfoLogger()
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return err
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := r.LoadFile(p); err != nil {
			return err
		}
		logger.Debugf("loaded debug info %s", p)
	}
	return nil
}

// LoadFile adds the index stored at path to r.
func (r *Registry) LoadFile(path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	kind, di, extra, err := Decode(fh)
	if err != nil {
		return errors.Wrapf(err, "loading %s", path)
	}
	if kind == BytecodeKind {
		err = r.AddBytecode(di)
	} else {
		err = r.AddSource(di)
	}
	if err != nil {
		return errors.Wrapf(err, "loading %s", path)
	}
	for _, f := range extra {
		r.AddFile(f.Hash, f.Path)
	}
	return nil
}

// Load builds a registry from the index files in dirs.
func Load(dirs ...string) (*Registry, error) {
	r := NewRegistry()
	for _, dir := range dirs {
		if err := r.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	return r, nil
}
