package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the value type of an agent. It is fixed when the agent is built.
type Kind uint8

const (
	KindNone Kind = iota
	KindInteger
	KindBoolean
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindString:
		return "string"
	default:
		return "none"
	}
}

func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return KindNone, nil
	case "integer", "int":
		return KindInteger, nil
	case "boolean", "bool":
		return KindBoolean, nil
	case "string":
		return KindString, nil
	}
	return KindNone, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Value is the payload of an agent. The zero Value has KindNone.
// Values are comparable with ==.
type Value struct {
	kind Kind
	i    int64
	b    bool
	s    string
}

func Integer(v int64) Value { return Value{kind: KindInteger, i: v} }
func Boolean(v bool) Value  { return Value{kind: KindBoolean, b: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }

// Zero returns the initial value of an agent of kind k.
func Zero(k Kind) Value {
	return Value{kind: k}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) Int() (int64, bool) {
	return v.i, v.kind == KindInteger
}

func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBoolean
}

func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

// Interface returns the payload as a plain Go value, nil for KindNone.
func (v Value) Interface() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindBoolean:
		return v.b
	case KindString:
		return v.s
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	}
	return ""
}

// ValueOf converts a decoded configuration or driver value.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return v, nil
	case bool:
		return Boolean(v), nil
	case string:
		return String(v), nil
	case []byte:
		return String(string(v)), nil
	case int:
		return Integer(int64(v)), nil
	case int8:
		return Integer(int64(v)), nil
	case int16:
		return Integer(int64(v)), nil
	case int32:
		return Integer(int64(v)), nil
	case int64:
		return Integer(v), nil
	case uint8:
		return Integer(int64(v)), nil
	case uint16:
		return Integer(int64(v)), nil
	case uint32:
		return Integer(int64(v)), nil
	case uint64:
		if v > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: %d overflows integer", ErrKindMismatch, v)
		}
		return Integer(int64(v)), nil
	case float32:
		return floatValue(float64(v))
	case float64:
		return floatValue(v)
	}
	return Value{}, fmt.Errorf("%w: %T", ErrUnknownKind, x)
}

func floatValue(f float64) (Value, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return Value{}, fmt.Errorf("%w: %v is not an integer", ErrKindMismatch, f)
	}
	return Integer(int64(f)), nil
}

// Coerce converts v into kind k. Strings are parsed; integers and booleans
// convert into each other (non-zero is true). KindNone accepts anything.
func Coerce(v Value, k Kind) (Value, error) {
	if k == KindNone || v.kind == k {
		return v, nil
	}

	switch k {
	case KindString:
		return String(v.String()), nil
	case KindInteger:
		switch v.kind {
		case KindBoolean:
			if v.b {
				return Integer(1), nil
			}
			return Integer(0), nil
		case KindString:
			n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
			if err != nil {
				return Value{}, fmt.Errorf("%w: %q is not an integer", ErrKindMismatch, v.s)
			}
			return Integer(n), nil
		}
	case KindBoolean:
		switch v.kind {
		case KindInteger:
			return Boolean(v.i != 0), nil
		case KindString:
			b, err := strconv.ParseBool(strings.TrimSpace(v.s))
			if err != nil {
				return Value{}, fmt.Errorf("%w: %q is not a boolean", ErrKindMismatch, v.s)
			}
			return Boolean(b), nil
		}
	}
	return Value{}, fmt.Errorf("%w: cannot convert %s to %s", ErrKindMismatch, v.kind, k)
}
