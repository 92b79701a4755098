package envelope

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Kind is the JSON type of a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "null"
}

// Value is a parsed JSON value. Nested objects and arrays are wrapped only
// when accessed. The zero Value is null.
type Value struct {
	v any
}

// Wrap returns a Value for a tree produced by encoding/json with UseNumber.
func Wrap(v any) Value {
	return Value{v: v}
}

// Kind returns the JSON type.
func (v Value) Kind() Kind {
	switch v.v.(type) {
	case bool:
		return Bool
	case json.Number, float64, int, int64:
		return Number
	case string:
		return String
	case []any:
		return Array
	case map[string]any:
		return Object
	}
	return Null
}

// IsNull reports whether v is JSON null or missing.
func (v Value) IsNull() bool {
	return v.Kind() == Null
}

// Raw returns the underlying decoded value.
func (v Value) Raw() any {
	return v.v
}

// Lookup returns the member named key of an object.
func (v Value) Lookup(key string) (Value, bool) {
	m, ok := v.v.(map[string]any)
	if !ok {
		return Value{}, false
	}
	child, ok := m[key]
	return Value{v: child}, ok
}

// Get returns the member named key, or null.
func (v Value) Get(key string) Value {
	child, _ := v.Lookup(key)
	return child
}

// Index returns the i-th element of an array, or null.
func (v Value) Index(i int) Value {
	a, ok := v.v.([]any)
	if !ok || i < 0 || i >= len(a) {
		return Value{}
	}
	return Value{v: a[i]}
}

// Field follows a dotted path such as "user.name" or "statuses.0.id".
// Numeric segments index arrays. Missing steps yield null.
func (v Value) Field(path string) Value {
	cur := v
	if path == "" {
		return cur
	}
	for _, seg := range strings.Split(path, ".") {
		switch cur.Kind() {
		case Object:
			cur = cur.Get(seg)
		case Array:
			i, err := strconv.Atoi(seg)
			if err != nil {
				return Value{}
			}
			cur = cur.Index(i)
		default:
			return Value{}
		}
	}
	return cur
}

// Len returns the number of elements, members or bytes; 0 otherwise.
func (v Value) Len() int {
	switch t := v.v.(type) {
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	case string:
		return len(t)
	}
	return 0
}

// Keys returns the member names of an object, sorted.
func (v Value) Keys() []string {
	m, ok := v.v.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Items returns the elements of an array.
func (v Value) Items() []Value {
	a, ok := v.v.([]any)
	if !ok {
		return nil
	}
	out := make([]Value, len(a))
	for i, e := range a {
		out[i] = Value{v: e}
	}
	return out
}

// Str returns a string for scalars: the string itself, the number's
// literal text, or "true"/"false". Null, arrays and objects yield "".
func (v Value) Str() string {
	switch t := v.v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}

// Int returns a number, or a numeric string, as int64. Other kinds yield 0.
func (v Value) Int() int64 {
	n, _ := v.IntOK()
	return n
}

// IntOK is Int with a success flag.
func (v Value) IntOK() (int64, bool) {
	switch v.Kind() {
	case Number, String:
		s := v.Str()
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

// Float returns a number, or a numeric string, as float64.
func (v Value) Float() float64 {
	switch v.Kind() {
	case Number, String:
		if f, err := strconv.ParseFloat(v.Str(), 64); err == nil {
			return f
		}
	}
	return 0
}

// Bool returns a JSON boolean. Other kinds yield false; see Truthy.
func (v Value) Bool() bool {
	b, _ := v.v.(bool)
	return b
}

// Truthy applies the providers' loose convention: null, false, 0, "" and
// empty containers are false; everything else is true.
func (v Value) Truthy() bool {
	switch v.Kind() {
	case Null:
		return false
	case Bool:
		return v.Bool()
	case Number:
		return v.Float() != 0
	}
	return v.Len() > 0
}

// Decode converts v into dst via JSON, like json.Unmarshal.
func (v Value) Decode(dst any) error {
	data, err := json.Marshal(v.v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// MarshalJSON encodes the underlying value.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.v)
}

// String returns compact JSON.
func (v Value) String() string {
	data, err := json.Marshal(v.v)
	if err != nil {
		return ""
	}
	return string(data)
}
