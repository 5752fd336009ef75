package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind names the variant held by a Value.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindNull   Kind = "null"
	KindObject Kind = "object"
	KindList   Kind = "list"
)

// Value is one field value of a payload or of node parameters.
// The set of implementations is closed: String, Int, Float, Bool, Null,
// Object and List. Int and Float together form the numeric variant.
type Value interface {
	Kind() Kind
	isValue()
}

type (
	// String is a text value.
	String string
	// Int is an integral number.
	Int int64
	// Float is a non-integral number.
	Float float64
	// Bool is a boolean value.
	Bool bool
	// Null is the absent value. It marshals to JSON null.
	Null struct{}
	// Object is a string-keyed mapping. Payloads and node params are Objects.
	Object map[string]Value
	// List is an ordered sequence.
	List []Value
)

func (String) Kind() Kind { return KindString }
func (Int) Kind() Kind    { return KindInt }
func (Float) Kind() Kind  { return KindFloat }
func (Bool) Kind() Kind   { return KindBool }
func (Null) Kind() Kind   { return KindNull }
func (Object) Kind() Kind { return KindObject }
func (List) Kind() Kind   { return KindList }

func (String) isValue() {}
func (Int) isValue()    {}
func (Float) isValue()  {}
func (Bool) isValue()   {}
func (Null) isValue()   {}
func (Object) isValue() {}
func (List) isValue()   {}

// IsNumber reports whether v is an Int or a Float.
func IsNumber(v Value) bool {
	switch v.(type) {
	case Int, Float:
		return true
	}
	return false
}

// AsFloat returns the numeric value of an Int or Float.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}

// MarshalJSON renders Null as JSON null.
func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// MarshalYAML renders Null as YAML null.
func (Null) MarshalYAML() (any, error) { return nil, nil }

// MarshalJSON keeps NaN and Inf from breaking the encoder.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// =============================================================================
// Object helpers
// =============================================================================

// Clone returns a shallow copy of the object. A nil object clones to an
// empty, non-nil one.
func (o Object) Clone() Object {
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Merge writes every field of src into o, overwriting existing keys.
func (o Object) Merge(src Object) {
	for k, v := range src {
		o[k] = v
	}
}

// Get returns the field and whether it is present.
func (o Object) Get(key string) (Value, bool) {
	v, ok := o[key]
	return v, ok
}

// Keys returns the field names in sorted order.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnmarshalJSON decodes a JSON object, keeping integral literals as Int.
func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := ParseJSON(data)
	if err != nil {
		return err
	}
	switch obj := v.(type) {
	case Object:
		*o = obj
	case Null:
		*o = nil
	default:
		return fmt.Errorf("expected JSON object, got %s", v.Kind())
	}
	return nil
}

// UnmarshalYAML decodes a YAML mapping into an Object.
func (o *Object) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := FromAny(raw)
	if err != nil {
		return err
	}
	switch obj := v.(type) {
	case Object:
		*o = obj
	case Null:
		*o = nil
	default:
		return fmt.Errorf("expected YAML mapping, got %s", v.Kind())
	}
	return nil
}

// UnmarshalJSON decodes a JSON array.
func (l *List) UnmarshalJSON(data []byte) error {
	v, err := ParseJSON(data)
	if err != nil {
		return err
	}
	switch list := v.(type) {
	case List:
		*l = list
	case Null:
		*l = nil
	default:
		return fmt.Errorf("expected JSON array, got %s", v.Kind())
	}
	return nil
}

// =============================================================================
// Conversion
// =============================================================================

// ParseJSON decodes any JSON document into a Value.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// FromAny converts decoded JSON/YAML data or plain Go values into a Value.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(x), nil
	case int8:
		return Int(x), nil
	case int16:
		return Int(x), nil
	case int32:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case uint:
		return Int(x), nil
	case uint8:
		return Int(x), nil
	case uint16:
		return Int(x), nil
	case uint32:
		return Int(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return Float(x), nil
		}
		return Int(x), nil
	case float32:
		return Float(x), nil
	case float64:
		return Float(x), nil
	case json.Number:
		if i, err := strconv.ParseInt(x.String(), 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
		return Float(f), nil
	case map[string]any:
		out := make(Object, len(x))
		for k, item := range x {
			cv, err := FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = cv
		}
		return out, nil
	case map[any]any:
		out := make(Object, len(x))
		for k, item := range x {
			cv, err := FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("field %v: %w", k, err)
			}
			out[fmt.Sprint(k)] = cv
		}
		return out, nil
	case map[string]string:
		out := make(Object, len(x))
		for k, item := range x {
			out[k] = String(item)
		}
		return out, nil
	case []any:
		out := make(List, 0, len(x))
		for i, item := range x {
			cv, err := FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out = append(out, cv)
		}
		return out, nil
	case []string:
		return Strings(x), nil
	case []map[string]any:
		out := make(List, 0, len(x))
		for i, item := range x {
			cv, err := FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out = append(out, cv)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// MustFromAny is FromAny for literals known to be valid. It panics on error.
func MustFromAny(v any) Value {
	cv, err := FromAny(v)
	if err != nil {
		panic(err)
	}
	return cv
}

// ObjectFrom converts a plain map into an Object.
func ObjectFrom(m map[string]any) (Object, error) {
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	obj, _ := v.(Object)
	return obj, nil
}

// Strings builds a List of String values.
func Strings(items []string) List {
	out := make(List, 0, len(items))
	for _, s := range items {
		out = append(out, String(s))
	}
	return out
}

// ToAny converts a Value back into plain Go data (map[string]any, []any,
// string, int64, float64, bool, nil).
func ToAny(v Value) any {
	switch x := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(x)
	case Int:
		return int64(x)
	case Float:
		return float64(x)
	case Bool:
		return bool(x)
	case Object:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = ToAny(item)
		}
		return out
	case List:
		out := make([]any, 0, len(x))
		for _, item := range x {
			out = append(out, ToAny(item))
		}
		return out
	}
	return nil
}

// Text renders a value as prompt text: strings verbatim, everything else in
// compact JSON form.
func Text(v Value) string {
	if s, ok := v.(String); ok {
		return string(s)
	}
	if v == nil {
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(ToAny(v))
	}
	return string(data)
}
