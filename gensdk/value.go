package gensdk

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValueKind enumerates the kinds a property value can have.
type ValueKind int

// Property value kinds, mirroring GenICam node types.
const (
	KindFloat ValueKind = iota
	KindInt
	KindBool
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a typed property value. Reading it as the wrong kind wraps
// ErrWrongKind rather than silently converting, because vendor nodemaps
// reject mistyped writes the same way.
type Value struct {
	kind ValueKind
	f    float64
	i    int64
	b    bool
	s    string
}

// Float wraps a float property value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Int wraps an integer property value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Bool wraps a boolean property value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// String wraps a string (or enumeration) property value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns the kind of the value.
func (v Value) Kind() ValueKind { return v.kind }

func (v Value) kindErr(want ValueKind) error {
	return errors.Wrapf(ErrWrongKind, "want %s, have %s", want, v.kind)
}

// AsFloat returns the value as a float.
func (v Value) AsFloat() (float64, error) {
	if v.kind != KindFloat {
		return 0, v.kindErr(KindFloat)
	}
	return v.f, nil
}

// AsInt returns the value as an integer.
func (v Value) AsInt() (int64, error) {
	if v.kind != KindInt {
		return 0, v.kindErr(KindInt)
	}
	return v.i, nil
}

// AsBool returns the value as a boolean.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, v.kindErr(KindBool)
	}
	return v.b, nil
}

// AsString returns the value as a string.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", v.kindErr(KindString)
	}
	return v.s, nil
}

func (v Value) String() string {
	switch v.kind {
	case KindFloat:
		return fmt.Sprintf("%v", v.f)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindString:
		return v.s
	default:
		return "<invalid>"
	}
}
