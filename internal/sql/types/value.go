package types

import (
	"fmt"
	"strconv"
	"time"
)

// ValueKind identifies which arm of the Value union is populated.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindOpaque
)

var kindNames = map[ValueKind]string{
	KindNull:   "null",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindBool:   "bool",
	KindOpaque: "opaque",
}

func (k ValueKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Value is a dynamically typed scalar carried in rows. It is a tagged
// union: only the field selected by Kind is meaningful. Opaque holds
// nested values from semi-structured sources; it can be projected but
// never compared or coerced.
type Value struct {
	Kind   ValueKind
	Int    int64
	Float  float64
	Str    string
	Bool   bool
	Opaque any
}

// Null creates a NULL value
func Null() Value {
	return Value{Kind: KindNull}
}

// NewInt creates an integer value
func NewInt(v int64) Value {
	return Value{Kind: KindInt, Int: v}
}

// NewFloat creates a float value
func NewFloat(v float64) Value {
	return Value{Kind: KindFloat, Float: v}
}

// NewString creates a string value
func NewString(v string) Value {
	return Value{Kind: KindString, Str: v}
}

// NewBool creates a boolean value
func NewBool(v bool) Value {
	return Value{Kind: KindBool, Bool: v}
}

// NewOpaque creates an opaque value for nested or source-specific data
func NewOpaque(v any) Value {
	return Value{Kind: KindOpaque, Opaque: v}
}

// FromAny converts a dynamically typed scalar, as produced by driver
// scans and JSON decoding, into a Value.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case bool:
		return NewBool(x)
	case int:
		return NewInt(int64(x))
	case int8:
		return NewInt(int64(x))
	case int16:
		return NewInt(int64(x))
	case int32:
		return NewInt(int64(x))
	case int64:
		return NewInt(x)
	case uint:
		return NewInt(int64(x))
	case uint8:
		return NewInt(int64(x))
	case uint16:
		return NewInt(int64(x))
	case uint32:
		return NewInt(int64(x))
	case uint64:
		return NewInt(int64(x))
	case float32:
		return NewFloat(float64(x))
	case float64:
		return NewFloat(x)
	case string:
		return NewString(x)
	case []byte:
		return NewString(string(x))
	case time.Time:
		return NewString(x.Format(time.RFC3339))
	default:
		return NewOpaque(v)
	}
}

// IsNull returns true if the value is NULL
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// String returns the SQL display form of the value
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindOpaque:
		return fmt.Sprintf("%v", v.Opaque)
	}
	return "NULL"
}

// Any converts the value back to a plain Go scalar for display,
// JSON encoding, and driver parameter binding.
func (v Value) Any() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindBool:
		return v.Bool
	case KindOpaque:
		return v.Opaque
	}
	return nil
}

// AsInt returns the value as an int64
func (v Value) AsInt() (int64, error) {
	switch v.Kind {
	case KindInt:
		return v.Int, nil
	case KindFloat:
		if v.Float == float64(int64(v.Float)) {
			return int64(v.Float), nil
		}
		return 0, fmt.Errorf("cannot convert %s to int without loss", v.String())
	case KindNull:
		return 0, fmt.Errorf("cannot convert NULL to int")
	}
	return 0, fmt.Errorf("cannot convert %s to int", v.Kind)
}

// AsFloat returns the value as a float64
func (v Value) AsFloat() (float64, error) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), nil
	case KindFloat:
		return v.Float, nil
	case KindNull:
		return 0, fmt.Errorf("cannot convert NULL to float")
	}
	return 0, fmt.Errorf("cannot convert %s to float", v.Kind)
}

// AsString returns the value as a string
func (v Value) AsString() (string, error) {
	if v.Kind == KindString {
		return v.Str, nil
	}
	if v.Kind == KindNull {
		return "", fmt.Errorf("cannot convert NULL to string")
	}
	return "", fmt.Errorf("cannot convert %s to string", v.Kind)
}

// AsBool returns the value as a boolean
func (v Value) AsBool() (bool, error) {
	if v.Kind == KindBool {
		return v.Bool, nil
	}
	if v.Kind == KindNull {
		return false, fmt.Errorf("cannot convert NULL to bool")
	}
	return false, fmt.Errorf("cannot convert %s to bool", v.Kind)
}
