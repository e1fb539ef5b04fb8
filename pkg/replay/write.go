package replay

import (
	"github.com/pkg/errors"

	"github.com/movetrace/movetrace/pkg/trace"
)

// write replaces the root of loc with v. A write effect carries the value
// of the whole root location after the write; the index path only names
// the element that changed and must be addressable in v.
func (r *Replayer) write(loc trace.Loc, v trace.Value) error {
	if err := checkPath(v, applicationOrder(loc.IndexPath)); err != nil {
		return errors.WithMessagef(err, "in %s", loc.Base)
	}
	switch base := loc.Base.(type) {
	case trace.LocalLoc:
		f := r.realFrame(base.Frame)
		if f == nil {
			return errors.Wrapf(ErrBadWrite, "frame %d is not on the stack", base.Frame)
		}
		f.locals.set(base.Slot, v)
		return nil
	case trace.GlobalLoc:
		r.globals[base.Index] = v
		return nil
	}
	return errors.Wrapf(ErrBadWrite, "unsupported location %v", loc.Base)
}

// applicationOrder returns the index path of a Loc in the order the
// indexes are applied, starting from the root value.
func applicationOrder(indexPath []int) []int {
	path := make([]int, len(indexPath))
	for i, idx := range indexPath {
		path[len(indexPath)-1-i] = idx
	}
	return path
}

// checkPath verifies that path addresses an element of root. The walk
// stops at a reference, whose referent is stored elsewhere.
func checkPath(root trace.Value, path []int) error {
	v := root
	for _, idx := range path {
		switch cur := v.(type) {
		case trace.Vector:
			if idx < 0 || idx >= len(cur) {
				return errors.Wrapf(ErrBadWrite, "index %d out of range of vector of length %d", idx, len(cur))
			}
			v = cur[idx]
		case *trace.Compound:
			if idx < 0 || idx >= len(cur.Fields) {
				return errors.Wrapf(ErrBadWrite, "field %d out of range of %s", idx, cur.Type)
			}
			v = cur.Fields[idx].Value
		case trace.Ref:
			return nil
		default:
			return errors.Wrapf(ErrBadWrite, "index %d into %v", idx, cur)
		}
	}
	return nil
}

// realFrame returns the innermost frame on the stack with trace id id.
func (r *Replayer) realFrame(id int) *Frame {
	for i := len(r.stack) - 1; i >= 0; i-- {
		f := r.stack[i]
		if f.ID.Kind == trace.RealFrame && f.ID.ID == id {
			return f
		}
	}
	return nil
}

// Deref returns the value a reference refers to.
func (r *Replayer) Deref(ref trace.Ref) (trace.Value, error) {
	return r.load(ref.Loc.Base, applicationOrder(ref.Loc.IndexPath), 0)
}

func (r *Replayer) load(base trace.Location, path []int, depth int) (trace.Value, error) {
	if depth > maxRefDepth {
		return nil, errors.New("too many nested references")
	}
	var v trace.Value
	switch base := base.(type) {
	case trace.LocalLoc:
		f := r.realFrame(base.Frame)
		if f == nil || base.Slot >= len(f.locals.values) {
			return nil, errors.Errorf("%s is not available", base)
		}
		v = f.locals.values[base.Slot]
	case trace.GlobalLoc:
		v = r.globals[base.Index]
	}
	for i, idx := range path {
		switch cur := v.(type) {
		case trace.Vector:
			if idx < 0 || idx >= len(cur) {
				return nil, errors.Errorf("index %d out of range of vector of length %d", idx, len(cur))
			}
			v = cur[idx]
		case *trace.Compound:
			if idx < 0 || idx >= len(cur.Fields) {
				return nil, errors.Errorf("field %d out of range of %s", idx, cur.Type)
			}
			v = cur.Fields[idx].Value
		case trace.Ref:
			return r.load(cur.Loc.Base, append(applicationOrder(cur.Loc.IndexPath), path[i:]...), depth+1)
		default:
			return nil, errors.Errorf("cannot index %v", v)
		}
	}
	if v == nil {
		return nil, errors.Errorf("%s has no value", base)
	}
	return v, nil
}
