package common

import (
	"encoding/hex"
	"fmt"
	"strconv"
)

// --------------------------------------------------------------------------
// Value
// --------------------------------------------------------------------------

// ValueKind defines which field of a Value is set.
type ValueKind uint8

const (
	ValueNone    ValueKind = iota // Empty value, e.g. "no previous value"
	ValueString                   // UTF-8 string
	ValueBinary                   // Raw bytes
	ValueInteger                  // 64 bit signed integer
	ValueFloat                    // 64 bit float
	ValueBool                     // Boolean
)

// String returns the string representation of a ValueKind.
func (k ValueKind) String() string {
	switch k {
	case ValueNone:
		return "none"
	case ValueString:
		return "string"
	case ValueBinary:
		return "binary"
	case ValueInteger:
		return "integer"
	case ValueFloat:
		return "float"
	case ValueBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the value types that can be stored in a table
// or published to a topic. Only the field matching Kind is meaningful.
type Value struct {
	Kind  ValueKind `json:"kind"`
	Str   string    `json:"str,omitempty"`
	Bin   []byte    `json:"bin,omitempty"`
	Int   int64     `json:"int,omitempty"`
	Float float64   `json:"float,omitempty"`
	Bool  bool      `json:"bool,omitempty"`
}

// StringValue creates a string value
func StringValue(s string) Value {
	return Value{Kind: ValueString, Str: s}
}

// BinaryValue creates a binary value
func BinaryValue(b []byte) Value {
	return Value{Kind: ValueBinary, Bin: b}
}

// IntValue creates an integer value
func IntValue(i int64) Value {
	return Value{Kind: ValueInteger, Int: i}
}

// FloatValue creates a float value
func FloatValue(f float64) Value {
	return Value{Kind: ValueFloat, Float: f}
}

// BoolValue creates a bool value
func BoolValue(b bool) Value {
	return Value{Kind: ValueBool, Bool: b}
}

// IsNone reports whether the value is empty.
func (v Value) IsNone() bool {
	return v.Kind == ValueNone
}

// AsInt returns the integer held by the value.
func (v Value) AsInt() (int64, error) {
	if v.Kind != ValueInteger {
		return 0, NewError(KindInvalidCommand, "cannot convert %s value to integer", v.Kind)
	}
	return v.Int, nil
}

// String renders the value for humans (CLI output and logs).
func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueBinary:
		return "0x" + hex.EncodeToString(v.Bin)
	case ValueInteger:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return "<none>"
	}
}

// ParseValue converts a CLI argument into a value. Integers, floats and
// booleans are detected, "0x" prefixed input is treated as hex bytes and
// everything else is a string.
func ParseValue(s string) Value {
	if len(s) > 2 && s[:2] == "0x" {
		if b, err := hex.DecodeString(s[2:]); err == nil {
			return BinaryValue(b)
		}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FloatValue(f)
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return BoolValue(b)
	}
	return StringValue(s)
}

// --------------------------------------------------------------------------
// Kvpair
// --------------------------------------------------------------------------

// Kvpair is a single key with its value
type Kvpair struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// NewKvpair creates a new key-value pair
func NewKvpair(key string, value Value) Kvpair {
	return Kvpair{Key: key, Value: value}
}

// String renders the pair as key=value
func (p Kvpair) String() string {
	return fmt.Sprintf("%s=%s", p.Key, p.Value)
}
