package trace

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/movetrace/movetrace/pkg/internal/lru"
)

const addressCacheSize = 1024

// resolver converts wire types, values and locations into their runtime
// form. The only state it holds is a memo of canonicalized addresses, which
// recur in nearly every struct type of a trace.
type resolver struct {
	addrs *lru.Cache[string, string]
}

func newResolver() *resolver {
	return &resolver{addrs: lru.NewCache[string, string](addressCacheSize)}
}

// typeString renders a type, e.g. "&mut vector<0x2::coin::Coin<0x2::sui::SUI>>".
func (r *resolver) typeString(t *jsonBaseType, refType string) string {
	prefix := ""
	switch refType {
	case refMut:
		prefix = "&mut "
	case refImm:
		prefix = "&"
	}
	switch {
	case t.Vector != nil:
		return prefix + "vector<" + r.typeString(t.Vector, "") + ">"
	case t.Struct != nil:
		return prefix + r.structTypeString(t.Struct)
	}
	return prefix + t.Primitive
}

func (r *resolver) structTypeString(s *jsonStructType) string {
	var b strings.Builder
	b.WriteString(r.address(s.Address))
	b.WriteString("::")
	b.WriteString(s.Module)
	b.WriteString("::")
	b.WriteString(s.Name)
	if len(s.TypeArgs) > 0 {
		b.WriteByte('<')
		for i := range s.TypeArgs {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(r.typeString(&s.TypeArgs[i], ""))
		}
		b.WriteByte('>')
	}
	return b.String()
}

func (r *resolver) address(addr string) string {
	return r.addrs.Memo(addr, CanonicalAddress)
}

// CanonicalAddress converts an address as found in a trace (a decimal,
// or 0x/0o/0b prefixed, integer string) to a short hex string, e.g. "10"
// becomes "0xa". Strings that are not integers are returned unchanged.
func CanonicalAddress(addr string) string {
	s := strings.TrimSpace(addr)
	if s == "" {
		return "0x0"
	}
	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 10 {
			s = s[2:]
			if s[0] == '+' || s[0] == '-' {
				return addr
			}
		}
	}
	if strings.ContainsRune(s, '_') {
		return addr
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return addr
	}
	return "0x" + n.Text(16)
}

// value converts a typed wire value to a runtime value.
func (r *resolver) value(v *jsonMoveValue) (Value, error) {
	switch kind := v.kind(); kind {
	case "U8", "U16", "U32", "U64", "U128", "Bool", "Address":
		return Scalar(scalarText(v.Value)), nil
	case "U256":
		var words []json.RawMessage
		if err := json.Unmarshal(v.Value, &words); err != nil {
			return nil, errors.Wrapf(ErrMalformedTrace, "U256 value is not an array of words: %s", v.Value)
		}
		return u256FromWords(words)
	case "Vector":
		var elems []jsonMoveValue
		if err := json.Unmarshal(v.Value, &elems); err != nil {
			return nil, errors.Wrapf(ErrMalformedTrace, "vector value is not an array: %s", v.Value)
		}
		vec := make(Vector, len(elems))
		for i := range elems {
			elem, err := r.value(&elems[i])
			if err != nil {
				return nil, err
			}
			vec[i] = elem
		}
		return vec, nil
	case "Struct", "Variant":
		var c jsonCompound
		if err := json.Unmarshal(v.Value, &c); err != nil || c.Type == nil {
			return nil, errors.Wrapf(ErrMalformedTrace, "%s value without a type: %s", kind, v.Value)
		}
		return r.compound(&c)
	}
	return nil, errors.Wrapf(ErrMalformedTrace, "unsupported value of type %s", v.Type)
}

func (r *resolver) compound(c *jsonCompound) (*Compound, error) {
	out := &Compound{
		Type:   r.typeString(c.Type, ""),
		Fields: make([]Field, len(c.Fields)),
	}
	for i := range c.Fields {
		fv, err := r.value(&c.Fields[i].Value)
		if err != nil {
			return nil, err
		}
		out.Fields[i] = Field{Name: c.Fields[i].Name, Value: fv}
	}
	if c.VariantName != nil || c.VariantTag != nil {
		out.Variant = &Variant{}
		if c.VariantName != nil {
			out.Variant.Name = *c.VariantName
		}
		if c.VariantTag != nil {
			out.Variant.Tag = *c.VariantTag
		}
	}
	return out, nil
}

// scalarText returns the string form of a JSON scalar: strings are
// unquoted, numbers and booleans keep their literal text.
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// u256FromWords reassembles a 256-bit integer from 64-bit words, least
// significant first.
func u256FromWords(words []json.RawMessage) (Value, error) {
	if len(words) > 4 {
		return nil, errors.Wrapf(ErrMalformedTrace, "U256 value has %d words", len(words))
	}
	var n uint256.Int
	for i, w := range words {
		word, err := strconv.ParseUint(scalarText(w), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedTrace, "U256 word %d: %v", i, err)
		}
		n[i] = word
	}
	return Scalar(n.Dec()), nil
}

// location converts a wire location. When lt is not nil and the location
// is rooted at a local variable, that variable is marked live until the
// end of its frame.
func location(l *jsonLocation, lt *lifetimes) (Loc, error) {
	var path []int
	for {
		switch {
		case l.Local != nil:
			frame, slot := l.Local[0], l.Local[1]
			if lt != nil {
				lt.markAlive(frame, slot)
			}
			return Loc{Base: LocalLoc{Frame: frame, Slot: slot}, IndexPath: path}, nil
		case l.Global != nil:
			return Loc{Base: GlobalLoc{Index: *l.Global}, IndexPath: path}, nil
		case l.Indexed != nil:
			path = append(path, l.Indexed.Index)
			l = &l.Indexed.Loc
		default:
			return Loc{}, ErrUnsupportedLocation
		}
	}
}

// ref converts a reference value.
func ref(v *jsonValue) (Ref, error) {
	var content *jsonRefContent
	mutable := false
	switch {
	case v.MutRef != nil:
		content, mutable = v.MutRef, true
	case v.ImmRef != nil:
		content = v.ImmRef
	default:
		return Ref{}, errors.Wrap(ErrMalformedTrace, "expected a reference value")
	}
	loc, err := location(&content.Location, nil)
	if err != nil {
		if mutable {
			return Ref{}, errors.WithMessage(err, "in MutRef")
		}
		return Ref{}, errors.WithMessage(err, "in ImmRef")
	}
	return Ref{Mutable: mutable, Loc: loc}, nil
}

// deref returns the value a reference value refers to, as captured in
// its snapshot.
func (r *resolver) deref(v *jsonValue) (Value, error) {
	switch {
	case v.MutRef != nil:
		return r.value(&v.MutRef.Snapshot)
	case v.ImmRef != nil:
		return r.value(&v.ImmRef.Snapshot)
	}
	return nil, errors.Wrap(ErrMalformedTrace, "expected a reference value")
}

// runtimeOrRef converts a value that is either a plain runtime value or a
// reference.
func (r *resolver) runtimeOrRef(v *jsonValue) (Value, error) {
	if v.RuntimeValue != nil {
		return r.value(&v.RuntimeValue.Value)
	}
	return ref(v)
}
