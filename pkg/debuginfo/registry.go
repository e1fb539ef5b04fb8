package debuginfo

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrInvalidDebugInfo is returned when debug info cannot be registered.
var ErrInvalidDebugInfo = errors.New("invalid debug info")

// Registry indexes debug info for a set of packages. Once built it is only
// read, so a single Registry may serve concurrent trace reads.
type Registry struct {
	srcByHash     map[string]*DebugInfo
	srcByModule   map[ModuleKey]*DebugInfo
	bcodeByModule map[ModuleKey]*DebugInfo
	files         map[string]*FileInfo
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		srcByHash:     make(map[string]*DebugInfo),
		srcByModule:   make(map[ModuleKey]*DebugInfo),
		bcodeByModule: make(map[ModuleKey]*DebugInfo),
		files:         make(map[string]*FileInfo),
	}
}

// AddSource registers debug info for a source file.
func (r *Registry) AddSource(di *DebugInfo) error {
	if err := r.addFile(di); err != nil {
		return err
	}
	r.srcByHash[di.FileHash] = di
	r.srcByModule[di.Module] = di
	return nil
}

// AddBytecode registers debug info for a disassembled bytecode file.
func (r *Registry) AddBytecode(di *DebugInfo) error {
	if err := r.addFile(di); err != nil {
		return err
	}
	r.bcodeByModule[di.Module] = di
	return nil
}

// AddFile registers a file without debug info.
func (r *Registry) AddFile(hash, path string) {
	r.files[hash] = &FileInfo{Hash: hash, Path: path}
}

func (r *Registry) addFile(di *DebugInfo) error {
	if di.FileHash == "" {
		return errors.Wrapf(ErrInvalidDebugInfo, "module %s has no file hash", di.Module)
	}
	if f, ok := r.files[di.FileHash]; ok && f.Path != di.FilePath {
		return errors.Wrapf(ErrInvalidDebugInfo, "file hash %s registered for both %s and %s", di.FileHash, f.Path, di.FilePath)
	}
	r.AddFile(di.FileHash, di.FilePath)
	return nil
}

// SourceByHash returns the source debug info for the file with the given hash.
func (r *Registry) SourceByHash(hash string) (*DebugInfo, bool) {
	di, ok := r.srcByHash[hash]
	return di, ok
}

// SourceByModule returns the source debug info for a module.
func (r *Registry) SourceByModule(key ModuleKey) (*DebugInfo, bool) {
	di, ok := r.srcByModule[key]
	return di, ok
}

// BytecodeByModule returns the disassembly debug info for a module, if any.
func (r *Registry) BytecodeByModule(key ModuleKey) (*DebugInfo, bool) {
	di, ok := r.bcodeByModule[key]
	return di, ok
}

// File returns the file with the given content hash.
func (r *Registry) File(hash string) (*FileInfo, bool) {
	f, ok := r.files[hash]
	return f, ok
}

// Modules returns the keys of all modules with source debug info, sorted.
func (r *Registry) Modules() []ModuleKey {
	keys := make([]ModuleKey, 0, len(r.srcByModule))
	for k := range r.srcByModule {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Addr != keys[j].Addr {
			return keys[i].Addr < keys[j].Addr
		}
		return keys[i].Name < keys[j].Name
	})
	return keys
}
