package value

import (
	"fmt"
	"reflect"
	"sort"
)

// Valid reports whether v is a serializable value: finite numbers, no
// undefined elements inside arrays, and valid fields throughout. Undefined
// object fields are allowed since serialization drops them.
func Valid(v Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case Null, String, Bool:
		return true
	case Number:
		return finite(float64(t))
	case Array:
		for _, e := range t {
			if !Valid(e) {
				return false
			}
		}
		return true
	case *Object:
		if t == nil {
			return false
		}
		ok := true
		t.Range(func(_ string, fv Value) bool {
			if fv != nil && !Valid(fv) {
				ok = false
			}
			return ok
		})
		return ok
	}
	return false
}

// IsSerializable reports whether an arbitrary Go value can be represented
// in the serializable domain. It accepts nil, strings, booleans, integers,
// finite floats, Value implementations, and slices, arrays and string-keyed
// maps whose elements are each serializable.
func IsSerializable(v any) bool {
	_, err := FromAny(v)
	return err == nil
}

// FromAny converts a Go value to a Value. Map keys are sorted so the
// resulting object has a deterministic order.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		if KindOf(t) == KindUndefined || !Valid(t) {
			return nil, fmt.Errorf("value: invalid %s", KindOf(t))
		}
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		if !finite(t) {
			return nil, fmt.Errorf("value: non-finite number %v", t)
		}
		return Number(t), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			fv, err := FromAny(t[k])
			if err != nil {
				return nil, fmt.Errorf("value: field %q: %w", k, err)
			}
			obj.Set(k, fv)
		}
		return obj, nil
	case []any:
		arr := make(Array, len(t))
		for i, e := range t {
			ev, err := FromAny(e)
			if err != nil {
				return nil, fmt.Errorf("value: index %d: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	}
	return fromReflect(reflect.ValueOf(v))
}

func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if !finite(f) {
			return nil, fmt.Errorf("value: non-finite number %v", f)
		}
		return Number(f), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Array{}, nil
		}
		arr := make(Array, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, err := FromAny(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("value: index %d: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("value: map key type %s is not string", rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			fv, err := FromAny(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
			if err != nil {
				return nil, fmt.Errorf("value: field %q: %w", k, err)
			}
			obj.Set(k, fv)
		}
		return obj, nil
	case reflect.Interface:
		if rv.IsNil() {
			return Null{}, nil
		}
		return FromAny(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("value: unsupported type %s", rv.Type())
}
