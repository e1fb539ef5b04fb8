package trace

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Types in this file mirror the JSON schema of trace records. Unions are
// decoded by UnmarshalJSON methods so that tag dispatch happens in exactly
// one place per union.

type jsonHeader struct {
	Version *int `json:"version"`
}

type jsonRecord struct {
	OpenFrame   *jsonOpenFrame   `json:"OpenFrame"`
	Instruction *jsonInstruction `json:"Instruction"`
	Effect      *jsonEffect      `json:"Effect"`
	CloseFrame  *jsonCloseFrame  `json:"CloseFrame"`
	External    *jsonExternal    `json:"External"`
}

type jsonModule struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type jsonStructType struct {
	Address  string         `json:"address"`
	Module   string         `json:"module"`
	Name     string         `json:"name"`
	TypeArgs []jsonBaseType `json:"type_args"`
}

// jsonBaseType is a primitive type name, a vector type, or a struct type
// (either wrapped in {"struct": ...} or bare).
type jsonBaseType struct {
	Primitive string
	Vector    *jsonBaseType
	Struct    *jsonStructType
}

func (t *jsonBaseType) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &t.Primitive)
	}
	var tagged struct {
		Vector  *jsonBaseType   `json:"vector"`
		Struct  *jsonStructType `json:"struct"`
		Address *string         `json:"address"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	switch {
	case tagged.Vector != nil:
		t.Vector = tagged.Vector
	case tagged.Struct != nil:
		t.Struct = tagged.Struct
	case tagged.Address != nil:
		t.Struct = new(jsonStructType)
		return json.Unmarshal(data, t.Struct)
	default:
		return errors.Wrapf(ErrMalformedTrace, "unsupported type %s", data)
	}
	return nil
}

const (
	refMut = "Mut"
	refImm = "Imm"
)

type jsonType struct {
	Type    jsonBaseType `json:"type_"`
	RefType string       `json:"ref_type,omitempty"`
}

// jsonMoveValue is a typed value. The shape of Value depends on Type:
// scalars are JSON strings, numbers or booleans, U256 is an array of four
// 64-bit words, vectors are arrays and structs/variants are jsonCompound.
type jsonMoveValue struct {
	Type  json.RawMessage `json:"type"`
	Value json.RawMessage `json:"value"`
}

// kind returns the value type tag, or "" if the tag is not a string.
func (v *jsonMoveValue) kind() string {
	var s string
	if err := json.Unmarshal(v.Type, &s); err != nil {
		return ""
	}
	return s
}

type jsonField struct {
	Name  string
	Value jsonMoveValue
}

func (f *jsonField) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return errors.Wrapf(ErrMalformedTrace, "struct field must be a [name, value] pair: %s", data)
	}
	if err := json.Unmarshal(pair[0], &f.Name); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &f.Value)
}

type jsonCompound struct {
	Fields      []jsonField   `json:"fields"`
	Type        *jsonBaseType `json:"type_"`
	VariantName *string       `json:"variant_name"`
	VariantTag  *int          `json:"variant_tag"`
}

type jsonRuntimeValue struct {
	Value jsonMoveValue `json:"value"`
}

type jsonRefContent struct {
	Location jsonLocation  `json:"location"`
	Snapshot jsonMoveValue `json:"snapshot"`
}

// jsonValue is either a plain runtime value or a (mutable or immutable)
// reference.
type jsonValue struct {
	RuntimeValue *jsonRuntimeValue `json:"RuntimeValue"`
	MutRef       *jsonRefContent   `json:"MutRef"`
	ImmRef       *jsonRefContent   `json:"ImmRef"`
}

type jsonFrame struct {
	BinaryMemberIndex int          `json:"binary_member_index"`
	FrameID           int          `json:"frame_id"`
	FunctionName      string       `json:"function_name"`
	IsNative          bool         `json:"is_native"`
	LocalsTypes       []jsonType   `json:"locals_types"`
	Module            jsonModule   `json:"module"`
	VersionID         string       `json:"version_id,omitempty"`
	Parameters        []*jsonValue `json:"parameters"`
	ReturnTypes       []jsonType   `json:"return_types"`
	TypeInstantiation []string     `json:"type_instantiation"`
}

type jsonOpenFrame struct {
	Frame   jsonFrame `json:"frame"`
	GasLeft uint64    `json:"gas_left"`
}

type jsonInstruction struct {
	GasLeft        uint64            `json:"gas_left"`
	Instruction    string            `json:"instruction"`
	PC             int               `json:"pc"`
	TypeParameters []json.RawMessage `json:"type_parameters"`
}

// jsonLocation is Local [frame, slot], Global index, or Indexed
// [location, index].
type jsonLocation struct {
	Local   *[2]int      `json:"Local"`
	Global  *int         `json:"Global"`
	Indexed *jsonIndexed `json:"Indexed"`
}

type jsonIndexed struct {
	Loc   jsonLocation
	Index int
}

func (ix *jsonIndexed) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return errors.Wrapf(ErrUnsupportedLocation, "indexed location must be a [location, index] pair: %s", data)
	}
	if err := json.Unmarshal(pair[0], &ix.Loc); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &ix.Index)
}

type jsonWriteEffect struct {
	Location            jsonLocation `json:"location"`
	RootValueAfterWrite jsonValue    `json:"root_value_after_write"`
}

type jsonReadEffect struct {
	Location      jsonLocation `json:"location"`
	Moved         bool         `json:"moved"`
	RootValueRead jsonValue    `json:"root_value_read"`
}

type jsonDataLoadEffect struct {
	RefType  string        `json:"ref_type"`
	Location jsonLocation  `json:"location"`
	Snapshot jsonMoveValue `json:"snapshot"`
}

type jsonEffect struct {
	Push           json.RawMessage     `json:"Push"`
	Pop            json.RawMessage     `json:"Pop"`
	Write          *jsonWriteEffect    `json:"Write"`
	Read           *jsonReadEffect     `json:"Read"`
	DataLoad       *jsonDataLoadEffect `json:"DataLoad"`
	ExecutionError *string             `json:"ExecutionError"`
}

type jsonCloseFrame struct {
	FrameID int               `json:"frame_id"`
	GasLeft uint64            `json:"gas_left"`
	Return  []json.RawMessage `json:"return_"`
}

type jsonMoveCall struct {
	Pkg      *string `json:"pkg"`
	Module   *string `json:"module"`
	Function *string `json:"function"`
}

type jsonSummary struct {
	Name   string            `json:"name"`
	Events []json.RawMessage `json:"events"`
}

type jsonExtValueInfo struct {
	Type  jsonType      `json:"type_"`
	Value jsonMoveValue `json:"value"`
}

type jsonExtSingle struct {
	Name string           `json:"name"`
	Info jsonExtValueInfo `json:"info"`
}

type jsonExtVector struct {
	Name  string          `json:"name"`
	Type  jsonType        `json:"type_"`
	Value []jsonMoveValue `json:"value"`
}

type jsonExtValue struct {
	Single *jsonExtSingle `json:"Single"`
	Vector *jsonExtVector `json:"Vector"`
}

type jsonExtEvent struct {
	Description string         `json:"description"`
	Name        string         `json:"name"`
	Values      []jsonExtValue `json:"values"`
}

// jsonExternal is a bare marker string, a Summary or an ExternalEvent.
type jsonExternal struct {
	Marker  string
	Summary *jsonSummary
	Event   *jsonExtEvent
}

func (e *jsonExternal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &e.Marker)
	}
	var tagged struct {
		Summary       *jsonSummary  `json:"Summary"`
		ExternalEvent *jsonExtEvent `json:"ExternalEvent"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	e.Summary = tagged.Summary
	e.Event = tagged.ExternalEvent
	return nil
}
