package trace

import (
	"fmt"
	"strings"
)

// Value is a runtime value reconstructed from the trace. It is one of
// Scalar, Vector, *Compound or Ref.
type Value interface {
	isValue()
	String() string
}

// Scalar is an integer, boolean or address in its string form.
type Scalar string

// Vector is a sequence of values.
type Vector []Value

// Field is a named field of a struct or enum variant.
type Field struct {
	Name  string
	Value Value
}

// Compound is a struct or enum variant value.
type Compound struct {
	Type   string
	Fields []Field
	// Variant is set for enum values.
	Variant *Variant
}

// Variant identifies the variant of an enum value.
type Variant struct {
	Name string
	Tag  int
}

// Ref is a reference to a location.
type Ref struct {
	Mutable bool
	Loc     Loc
}

func (Scalar) isValue()    {}
func (Vector) isValue()    {}
func (*Compound) isValue() {}
func (Ref) isValue()       {}

func (s Scalar) String() string { return string(s) }

func (v Vector) String() string {
	elems := make([]string, len(v))
	for i := range v {
		elems[i] = v[i].String()
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

func (c *Compound) String() string {
	var b strings.Builder
	b.WriteString(c.Type)
	if c.Variant != nil {
		b.WriteString("::")
		b.WriteString(c.Variant.Name)
	}
	b.WriteString("{")
	for i, f := range c.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value.String())
	}
	b.WriteString("}")
	return b.String()
}

// Field returns the value of the named field.
func (c *Compound) Field(name string) (Value, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func (r Ref) String() string {
	if r.Mutable {
		return "&mut " + r.Loc.String()
	}
	return "&" + r.Loc.String()
}

// Location is the root of a Loc: a LocalLoc or a GlobalLoc.
type Location interface {
	isLocation()
	String() string
}

// LocalLoc is a local variable slot of a (real) frame.
type LocalLoc struct {
	Frame int
	Slot  int
}

// GlobalLoc is a global slot. Globals are values that appear without an
// enclosing frame, such as arguments passed into a top level call.
type GlobalLoc struct {
	Index int
}

func (LocalLoc) isLocation()  {}
func (GlobalLoc) isLocation() {}

func (l LocalLoc) String() string {
	return fmt.Sprintf("local at %d in frame %d", l.Slot, l.Frame)
}

func (g GlobalLoc) String() string {
	return fmt.Sprintf("global at %d", g.Index)
}

// Loc is a location together with a path of field or element indexes
// leading into the value stored there. IndexPath holds the index of the
// outermost Indexed wrapper first; the value is reached from Base by
// applying the indexes from last to first, so field 1 of a local followed
// by its element 7 is [7, 1].
type Loc struct {
	Base      Location
	IndexPath []int
}

func (l Loc) String() string {
	if l.Base == nil {
		return "unsupported location"
	}
	if len(l.IndexPath) == 0 {
		return l.Base.String()
	}
	path := make([]string, len(l.IndexPath))
	for i, idx := range l.IndexPath {
		path[i] = fmt.Sprint(idx)
	}
	return l.Base.String() + " [" + strings.Join(path, ".") + "]"
}
