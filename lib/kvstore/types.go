package kvstore

import (
	"encoding/json"
	"fmt"
)

// Type is the logical type of a stored value. The numeric values are part
// of the AT and rpc wire formats and must not be reordered.
type Type uint8

const (
	TypeI8 Type = iota
	TypeU8
	TypeI16
	TypeU16
	TypeI32
	TypeU32
	TypeI64
	TypeU64
	TypeStr
	TypeBlob
	TypeInvalid
)

// typeInfo is the per-width dispatch table used by the typed codec.
var typeInfo = [...]struct {
	name string
	size int
}{
	TypeI8:      {"i8", 1},
	TypeU8:      {"u8", 1},
	TypeI16:     {"i16", 2},
	TypeU16:     {"u16", 2},
	TypeI32:     {"i32", 4},
	TypeU32:     {"u32", 4},
	TypeI64:     {"i64", 8},
	TypeU64:     {"u64", 8},
	TypeStr:     {"str", 0},
	TypeBlob:    {"blob", 0},
	TypeInvalid: {"invalid", 0},
}

// probeOrder is the fixed order in which type discovery tries decodes.
var probeOrder = [...]Type{
	TypeI8, TypeU8, TypeI16, TypeU16, TypeI32, TypeU32, TypeI64, TypeU64,
}

func (t Type) String() string {
	if t > TypeInvalid {
		return typeInfo[TypeInvalid].name
	}
	return typeInfo[t].name
}

// Size returns the fixed width of scalar types and 0 for str, blob and invalid.
func (t Type) Size() int {
	if t > TypeInvalid {
		return 0
	}
	return typeInfo[t].size
}

// IsScalar reports whether t is one of the fixed-width integer types.
func (t Type) IsScalar() bool {
	return t <= TypeU64
}

// IsSigned reports whether t is a signed integer type.
func (t Type) IsSigned() bool {
	switch t {
	case TypeI8, TypeI16, TypeI32, TypeI64:
		return true
	default:
		return false
	}
}

// Valid reports whether t names a storable type.
func (t Type) Valid() bool {
	return t < TypeInvalid
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, error) {
	for t := TypeI8; t < TypeInvalid; t++ {
		if typeInfo[t].name == s {
			return t, nil
		}
	}
	return TypeInvalid, fmt.Errorf("unknown type %q (expected one of i8, u8, i16, u16, i32, u32, i64, u64, str, blob)", s)
}

// MarshalJSON serializes a Type by name.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts the names produced by MarshalJSON.
func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == typeInfo[TypeInvalid].name {
		*t = TypeInvalid
		return nil
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TypeOf returns the type tag used to store values of type T.
func TypeOf[T Scalar]() Type {
	var zero T
	return TypeOfValue(zero)
}

// TypeOfValue maps a Go value to the tag it is stored under. bool shares
// the i8 tag; floating point values have no native tag and are blobs.
func TypeOfValue(v any) Type {
	switch v.(type) {
	case int8:
		return TypeI8
	case uint8:
		return TypeU8
	case int16:
		return TypeI16
	case uint16:
		return TypeU16
	case int32:
		return TypeI32
	case uint32:
		return TypeU32
	case int64:
		return TypeI64
	case uint64:
		return TypeU64
	case bool:
		return TypeI8
	case string, *string:
		return TypeStr
	case []byte, float32, float64:
		return TypeBlob
	default:
		return TypeInvalid
	}
}
