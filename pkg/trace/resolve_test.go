package trace

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestCanonicalAddress(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"10", "0xa"},
		{"0x0000000000000000000000000000000000000000000000000000000000000002", "0x2"},
		{"0XFF", "0xff"},
		{"0o17", "0xf"},
		{"0b101", "0x5"},
		{"", "0x0"},
		{"115792089237316195423570985008687907853269984665640564039457584007913129639935", "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"},
		{"sui", "sui"},
		{"0x-1", "0x-1"},
		{"1_000", "1_000"},
	} {
		if got := CanonicalAddress(tc.in); got != tc.want {
			t.Errorf("CanonicalAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func decodeValue(t *testing.T, s string) Value {
	t.Helper()
	var mv jsonMoveValue
	if err := json.Unmarshal([]byte(s), &mv); err != nil {
		t.Fatal(err)
	}
	v, err := newResolver().value(&mv)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestU256(t *testing.T) {
	for _, tc := range []struct {
		words, want string
	}{
		{"[1,0,0,0]", "1"},
		{"[0,1,0,0]", "18446744073709551616"},
		{`["18446744073709551615","18446744073709551615","18446744073709551615","18446744073709551615"]`,
			"115792089237316195423570985008687907853269984665640564039457584007913129639935"},
		{"[0,0,0,0]", "0"},
	} {
		got := decodeValue(t, `{"type":"U256","value":`+tc.words+`}`)
		if got != Scalar(tc.want) {
			t.Errorf("%s: got %v want %s", tc.words, got, tc.want)
		}
	}
}

func TestCompoundValues(t *testing.T) {
	v := decodeValue(t, `{"type":"Variant","value":{
		"type_":{"address":"2","module":"option","name":"Option","type_args":["u8"]},
		"variant_name":"Some","variant_tag":1,
		"fields":[["v",{"type":"Vector","value":[{"type":"U8","value":1},{"type":"Address","value":"0x3"}]}]]}}`)
	c, ok := v.(*Compound)
	if !ok {
		t.Fatalf("got %T", v)
	}
	if c.Type != "0x2::option::Option<u8>" || c.Variant == nil || c.Variant.Name != "Some" || c.Variant.Tag != 1 {
		t.Errorf("unexpected compound %+v", c)
	}
	field, ok := c.Field("v")
	if !ok || !reflect.DeepEqual(field, Vector{Scalar("1"), Scalar("0x3")}) {
		t.Errorf("field v = %v", field)
	}
	if got, want := c.String(), "0x2::option::Option<u8>::Some{v: [1, 0x3]}"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestTypeString(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{`{"type_":"u64"}`, "u64"},
		{`{"type_":"bool","ref_type":"Imm"}`, "&bool"},
		{`{"type_":{"vector":{"struct":{"address":"2","module":"coin","name":"Coin","type_args":[{"struct":{"address":"2","module":"sui","name":"SUI","type_args":[]}}]}}},"ref_type":"Mut"}`,
			"&mut vector<0x2::coin::Coin<0x2::sui::SUI>>"},
		{`{"type_":{"address":"0x1","module":"string","name":"String","type_args":[]}}`, "0x1::string::String"},
	} {
		var jt jsonType
		if err := json.Unmarshal([]byte(tc.in), &jt); err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if got := newResolver().typeString(&jt.Type, jt.RefType); got != tc.want {
			t.Errorf("got %q want %q", got, tc.want)
		}
	}
}

func TestLocationMarksLifetimes(t *testing.T) {
	var jl jsonLocation
	if err := json.Unmarshal([]byte(`{"Indexed":[{"Local":[2,3]},0]}`), &jl); err != nil {
		t.Fatal(err)
	}
	lt := newLifetimes()
	loc, err := location(&jl, lt)
	if err != nil {
		t.Fatal(err)
	}
	if loc.Base != (LocalLoc{Frame: 2, Slot: 3}) || !reflect.DeepEqual(loc.IndexPath, []int{0}) {
		t.Errorf("unexpected location %v", loc)
	}
	if want := []int{LifetimeUnset, LifetimeUnset, LifetimeUnset, FrameLifetime}; !reflect.DeepEqual(lt.ends[2], want) {
		t.Errorf("lifetime ends %v", lt.ends[2])
	}
	if _, err := location(&jl, nil); err != nil {
		t.Fatal(err)
	}
}
