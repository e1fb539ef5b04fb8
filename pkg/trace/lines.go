package trace

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/movetrace/movetrace/pkg/debuginfo"
)

// LineSet is a set of line numbers.
type LineSet map[int]struct{}

// Contains reports whether line is in the set.
func (s LineSet) Contains(line int) bool {
	_, ok := s[line]
	return ok
}

// Sorted returns the lines in ascending order.
func (s LineSet) Sorted() []int {
	lines := make([]int, 0, len(s))
	for l := range s {
		lines = append(lines, l)
	}
	sort.Ints(lines)
	return lines
}

// lineRecorder accumulates traced lines keyed by file path.
type lineRecorder map[string]LineSet

func (lr lineRecorder) record(files *debuginfo.Registry, loc debuginfo.FileLoc) error {
	f, ok := files.File(loc.FileHash)
	if !ok {
		return errors.Wrapf(ErrMissingFile, "hash %s when recording traced line", loc.FileHash)
	}
	lines := lr[f.Path]
	if lines == nil {
		lines = make(LineSet)
		lr[f.Path] = lines
	}
	lines[loc.Line] = struct{}{}
	return nil
}
