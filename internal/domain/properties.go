package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"
)

// ValueKind identifies the variant held by a Value.
type ValueKind int

// Value kinds. KindRaw holds non-scalar JSON (objects, arrays, null) that is
// passed through on export and dropped when writing to a relational store.
const (
	KindInvalid ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindRaw
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindRaw:
		return "raw"
	}
	return "invalid"
}

// Value is a feature attribute value.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
	raw  json.RawMessage
}

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// IntValue wraps an integer.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue wraps a float.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// BoolValue wraps a bool.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// RawValue wraps verbatim JSON.
func RawValue(raw json.RawMessage) Value {
	return Value{kind: KindRaw, raw: slices.Clone(raw)}
}

// Kind returns the variant.
func (v Value) Kind() ValueKind { return v.kind }

// IsScalar reports whether the value can be bound as a column value.
func (v Value) IsScalar() bool {
	switch v.kind {
	case KindString, KindInt, KindFloat, KindBool:
		return true
	}
	return false
}

// Interface returns the Go value: string, int64, float64, bool, or the
// decoded JSON for raw values.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindRaw:
		var out any
		if err := json.Unmarshal(v.raw, &out); err != nil {
			return string(v.raw)
		}
		return out
	}
	return nil
}

// Float returns the numeric value for int and float kinds.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// String returns a display form of the value.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindRaw:
		return string(v.raw)
	}
	return ""
}

// Equal compares two values. Ints and floats compare numerically.
func (v Value) Equal(o Value) bool {
	if a, ok := v.Float(); ok {
		b, ok := o.Float()
		return ok && a == b
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindBool:
		return v.b == o.b
	case KindRaw:
		var a, b bytes.Buffer
		if json.Compact(&a, v.raw) != nil || json.Compact(&b, o.raw) != nil {
			return bytes.Equal(v.raw, o.raw)
		}
		return bytes.Equal(a.Bytes(), b.Bytes())
	}
	return true
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return marshalString(v.s)
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.f)
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	case KindRaw:
		if len(v.raw) == 0 {
			return []byte("null"), nil
		}
		return v.raw, nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	*v = ValueFromJSON(data)
	return nil
}

// ValueFromJSON classifies a JSON value. Integral number literals become
// ints, other numbers floats, objects, arrays and null stay raw.
func ValueFromJSON(raw json.RawMessage) Value {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return RawValue(json.RawMessage("null"))
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return StringValue(s)
		}
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err == nil {
			return BoolValue(b)
		}
	case '{', '[', 'n':
	default:
		lit := string(trimmed)
		if !bytes.ContainsAny(trimmed, ".eE") {
			if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
				return IntValue(i)
			}
		}
		if f, err := strconv.ParseFloat(lit, 64); err == nil {
			return FloatValue(f)
		}
	}
	return RawValue(trimmed)
}

// ValueOf converts a Go value as produced by database drivers or YAML
// decoding. It reports false for nil.
func ValueOf(x any) (Value, bool) {
	switch v := x.(type) {
	case nil:
		return Value{}, false
	case Value:
		return v, v.kind != KindInvalid
	case string:
		return StringValue(v), true
	case []byte:
		return StringValue(string(v)), true
	case bool:
		return BoolValue(v), true
	case int:
		return IntValue(int64(v)), true
	case int8:
		return IntValue(int64(v)), true
	case int16:
		return IntValue(int64(v)), true
	case int32:
		return IntValue(int64(v)), true
	case int64:
		return IntValue(v), true
	case uint8:
		return IntValue(int64(v)), true
	case uint16:
		return IntValue(int64(v)), true
	case uint32:
		return IntValue(int64(v)), true
	case uint64:
		if v <= math.MaxInt64 {
			return IntValue(int64(v)), true
		}
		return FloatValue(float64(v)), true
	case float32:
		return FloatValue(float64(v)), true
	case float64:
		return FloatValue(v), true
	case time.Time:
		return StringValue(v.UTC().Format(time.RFC3339Nano)), true
	case json.RawMessage:
		return ValueFromJSON(v), true
	case map[string]any, []any:
		raw, err := json.Marshal(v)
		if err != nil {
			return StringValue(fmt.Sprint(v)), true
		}
		return RawValue(raw), true
	case fmt.Stringer:
		return StringValue(v.String()), true
	}
	return StringValue(fmt.Sprint(x)), true
}

func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Properties is an insertion-ordered attribute map.
type Properties struct {
	keys []string
	vals map[string]Value
}

// Set adds or replaces a value. Replacing keeps the original position.
func (p *Properties) Set(key string, v Value) {
	if p.vals == nil {
		p.vals = make(map[string]Value)
	}
	if _, ok := p.vals[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.vals[key] = v
}

// Get returns the value stored under key.
func (p Properties) Get(key string) (Value, bool) {
	v, ok := p.vals[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (p Properties) Keys() []string {
	return slices.Clone(p.keys)
}

// Len returns the number of entries.
func (p Properties) Len() int {
	return len(p.keys)
}

// Each calls fn for every entry in insertion order.
func (p Properties) Each(fn func(key string, v Value)) {
	for _, k := range p.keys {
		fn(k, p.vals[k])
	}
}

// Without returns a copy lacking the given keys.
func (p Properties) Without(keys ...string) Properties {
	var out Properties
	p.Each(func(k string, v Value) {
		if !slices.Contains(keys, k) {
			out.Set(k, v)
		}
	})
	return out
}

// Equal compares keys and values, ignoring order.
func (p Properties) Equal(o Properties) bool {
	if p.Len() != o.Len() {
		return false
	}
	for _, k := range p.keys {
		ov, ok := o.vals[k]
		if !ok || !p.vals[k].Equal(ov) {
			return false
		}
	}
	return true
}

// MarshalJSON writes an object with keys in insertion order.
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalString(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := p.vals[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keeping key order. null yields no entries.
func (p *Properties) UnmarshalJSON(data []byte) error {
	*p = Properties{}
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("properties: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("properties: expected key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("properties: value of %s: %w", key, err)
		}
		p.Set(key, ValueFromJSON(raw))
	}
	_, err = dec.Token()
	return err
}
