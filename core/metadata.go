package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the scalar type held by a Value.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a scalar metadata value.
type Value struct {
	Kind Kind
	S    string
	I    int64
	F    float64
	B    bool
}

// String returns a string Value.
func String(s string) Value { return Value{Kind: KindString, S: s} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{Kind: KindInt, I: i} }

// Float returns a floating point Value.
func Float(f float64) Value { return Value{Kind: KindFloat, F: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBool, B: b} }

// Text renders the value as a string for lexical matching.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.S
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.B)
	default:
		return ""
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.S == o.S
	case KindInt:
		return v.I == o.I
	case KindFloat:
		return v.F == o.F
	case KindBool:
		return v.B == o.B
	}
	return true
}

// Any returns the underlying Go value.
func (v Value) Any() any {
	switch v.Kind {
	case KindString:
		return v.S
	case KindInt:
		return v.I
	case KindFloat:
		return v.F
	case KindBool:
		return v.B
	default:
		return nil
	}
}

// ValueOf converts a Go scalar into a Value.
// JSON numbers that are whole become integers.
func ValueOf(x any) (Value, bool) {
	switch t := x.(type) {
	case string:
		return String(t), true
	case bool:
		return Bool(t), true
	case int:
		return Int(int64(t)), true
	case int32:
		return Int(int64(t)), true
	case int64:
		return Int(t), true
	case float32:
		return Float(float64(t)), true
	case float64:
		if t == float64(int64(t)) {
			return Int(int64(t)), true
		}
		return Float(t), true
	}
	return Value{}, false
}

// Metadata maps keys to scalar values.
type Metadata map[string]Value

// Clone returns a copy of the metadata map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Equal reports whether both maps hold the same keys and values.
func (m Metadata) Equal(o Metadata) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// GetString returns the text form of key, or "" when absent.
func (m Metadata) GetString(key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	return v.Text()
}

// ToMap converts the metadata into plain Go values, as used for JSON output.
func (m Metadata) ToMap() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Any()
	}
	return out
}

// MetadataFromMap converts plain Go values into Metadata.
// Keys whose values are not scalars are skipped and reported.
func MetadataFromMap(in map[string]any) (Metadata, []string) {
	out := make(Metadata, len(in))
	var skipped []string
	for k, x := range in {
		v, ok := ValueOf(x)
		if !ok {
			skipped = append(skipped, k)
			continue
		}
		out[k] = v
	}
	return out, skipped
}

// EqualFold reports whether the text form of v equals s ignoring case.
func (v Value) EqualFold(s string) bool {
	return strings.EqualFold(v.Text(), s)
}

// MarshalJSON encodes the value as its plain JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes a JSON scalar. Whole numbers become KindInt.
func (v *Value) UnmarshalJSON(data []byte) error {
	var x any
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	out, ok := ValueOf(x)
	if !ok {
		return fmt.Errorf("metadata value must be a scalar, got %s", data)
	}
	*v = out
	return nil
}
