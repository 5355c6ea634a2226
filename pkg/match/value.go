package match

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind identifies the variant held by a Value.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindSequence
)

// String returns the kind name as used in mismatch messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Value is an immutable JSON-like value: an object keyed by strings, an
// ordered sequence, or a scalar (string, number, bool, null). Values are
// built with FromJSON or Decode and never mutated afterwards.
type Value struct {
	kind Kind
	boo  bool
	num  float64
	str  string
	obj  map[string]Value
	seq  []Value
}

// Kind returns the variant tag of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// FromJSON converts a decoded JSON value (as produced by encoding/json:
// nil, bool, float64, string, map[string]any, []any) into a Value. Go
// integer and float types are accepted for convenience; all numbers are
// held as float64, matching encoding/json's default decoding.
func FromJSON(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Value{kind: KindNull}, nil
	case Value:
		return x, nil
	case bool:
		return Value{kind: KindBool, boo: x}, nil
	case string:
		return Value{kind: KindString, str: x}, nil
	case float64:
		return Value{kind: KindNumber, num: x}, nil
	case float32:
		return Value{kind: KindNumber, num: float64(x)}, nil
	case int:
		return Value{kind: KindNumber, num: float64(x)}, nil
	case int8:
		return Value{kind: KindNumber, num: float64(x)}, nil
	case int16:
		return Value{kind: KindNumber, num: float64(x)}, nil
	case int32:
		return Value{kind: KindNumber, num: float64(x)}, nil
	case int64:
		return Value{kind: KindNumber, num: float64(x)}, nil
	case uint:
		return Value{kind: KindNumber, num: float64(x)}, nil
	case uint8:
		return Value{kind: KindNumber, num: float64(x)}, nil
	case uint16:
		return Value{kind: KindNumber, num: float64(x)}, nil
	case uint32:
		return Value{kind: KindNumber, num: float64(x)}, nil
	case uint64:
		return Value{kind: KindNumber, num: float64(x)}, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("match: number %q: %w", x.String(), err)
		}
		return Value{kind: KindNumber, num: f}, nil
	case map[string]any:
		obj := make(map[string]Value, len(x))
		for k, raw := range x {
			child, err := FromJSON(raw)
			if err != nil {
				return Value{}, err
			}
			obj[k] = child
		}
		return Value{kind: KindObject, obj: obj}, nil
	case []any:
		seq := make([]Value, len(x))
		for i, raw := range x {
			child, err := FromJSON(raw)
			if err != nil {
				return Value{}, err
			}
			seq[i] = child
		}
		return Value{kind: KindSequence, seq: seq}, nil
	default:
		return Value{}, fmt.Errorf("match: cannot represent %T as a value", v)
	}
}

// MustValue converts v like FromJSON and panics on unsupported input.
// Intended for fixtures and tests where the input is known to be valid.
func MustValue(v any) Value {
	val, err := FromJSON(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Decode parses JSON text into a Value.
func Decode(data []byte) (Value, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Value{}, fmt.Errorf("match: decode: %w", err)
	}
	return FromJSON(raw)
}

// Interface returns the value as plain Go data (nil, bool, float64,
// string, map[string]any, []any), suitable for re-encoding with
// encoding/json.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.boo
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindObject:
		m := make(map[string]any, len(v.obj))
		for k, child := range v.obj {
			m[k] = child.Interface()
		}
		return m
	case KindSequence:
		s := make([]any, len(v.seq))
		for i, child := range v.seq {
			s[i] = child.Interface()
		}
		return s
	default:
		return nil
	}
}

// String renders the value as compact JSON for use in messages.
func (v Value) String() string {
	b, err := json.Marshal(v.Interface())
	if err != nil {
		return fmt.Sprintf("%v", v.Interface())
	}
	return string(b)
}

// sortedKeys returns the object keys in sorted order. Objects are
// semantically unordered, so traversal uses sorted keys to keep the first
// reported divergence stable across runs.
func (v Value) sortedKeys() []string {
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
