// Package value defines the serializable value domain shared by the state
// synchronization layer.
//
// A Value is one of:
//
//	Null        JSON null
//	String      text
//	Number      finite float64
//	Bool        true / false
//	Array       ordered list of Values
//	*Object     key-ordered map of Values
//
// A nil Value means "undefined": a field with no known value. Undefined is
// allowed as a template default and as a merge operand, but it never survives
// serialization (it is omitted from objects and rejected inside arrays).
//
// Example:
//
//	tmpl := value.NewObject().
//	    Set("diameter", value.Number(10)).
//	    Set("metric", value.Bool(true)).
//	    Set("tags", value.Array{})
package value

import (
	"math"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a serializable value. The set of implementations is closed.
type Value interface {
	Kind() Kind
	sealed()
}

// Null is the JSON null value.
type Null struct{}

// String is a text value.
type String string

// Number is a numeric value. Only finite numbers are valid.
type Number float64

// Bool is a boolean value.
type Bool bool

// Array is an ordered list of values.
type Array []Value

func (Null) Kind() Kind   { return KindNull }
func (String) Kind() Kind { return KindString }
func (Number) Kind() Kind { return KindNumber }
func (Bool) Kind() Kind   { return KindBool }
func (Array) Kind() Kind  { return KindArray }

func (Null) sealed()   {}
func (String) sealed() {}
func (Number) sealed() {}
func (Bool) sealed()   {}
func (Array) sealed()  {}

// KindOf returns the kind of v, treating nil as undefined.
func KindOf(v Value) Kind {
	if v == nil {
		return KindUndefined
	}
	if o, ok := v.(*Object); ok && o == nil {
		return KindUndefined
	}
	return v.Kind()
}

// IsEmpty reports whether v is omitted from URLs: undefined, null or "".
func IsEmpty(v Value) bool {
	switch t := v.(type) {
	case nil, Null:
		return true
	case String:
		return t == ""
	case *Object:
		return t == nil
	}
	return false
}

// Equal reports whether a and b hold the same value. Object key order is
// not significant.
func Equal(a, b Value) bool {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case KindUndefined, KindNull:
		return true
	case KindString:
		return a.(String) == b.(String)
	case KindNumber:
		return a.(Number) == b.(Number)
	case KindBool:
		return a.(Bool) == b.(Bool)
	case KindArray:
		x, y := a.(Array), b.(Array)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case KindObject:
		x, y := a.(*Object), b.(*Object)
		if x.Len() != y.Len() {
			return false
		}
		for _, k := range x.keys {
			yv, ok := y.Get(k)
			if !ok || !Equal(x.fields[k], yv) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch t := v.(type) {
	case Array:
		if t == nil {
			return Array(nil)
		}
		out := make(Array, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	case *Object:
		return t.Clone()
	default:
		return v
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
