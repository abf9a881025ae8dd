package value

// Object is a key-ordered map of values. Keys keep the position of their
// first insertion; setting an existing key replaces its value in place.
//
// A field may hold a nil Value (undefined). Such fields are kept by the
// object but skipped by Marshal and by URL encoding.
type Object struct {
	keys   []string
	fields map[string]Value
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{fields: make(map[string]Value)}
}

func (*Object) Kind() Kind { return KindObject }
func (*Object) sealed()    {}

// Len returns the number of fields.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns the field names in order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Has reports whether the field exists, even if it is undefined.
func (o *Object) Has(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.fields[key]
	return ok
}

// Get returns the field value and whether the field exists.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.fields[key]
	return v, ok
}

// Set stores v under key and returns o for chaining.
func (o *Object) Set(key string, v Value) *Object {
	if o.fields == nil {
		o.fields = make(map[string]Value)
	}
	if _, ok := o.fields[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = v
	return o
}

// Delete removes key.
func (o *Object) Delete(key string) {
	if o == nil {
		return
	}
	if _, ok := o.fields[key]; !ok {
		return
	}
	delete(o.fields, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for every field in order until fn returns false.
func (o *Object) Range(fn func(key string, v Value) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.fields[k]) {
			return
		}
	}
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	out := &Object{
		keys:   make([]string, len(o.keys)),
		fields: make(map[string]Value, len(o.fields)),
	}
	copy(out.keys, o.keys)
	for k, v := range o.fields {
		out.fields[k] = Clone(v)
	}
	return out
}

// Merge returns a copy of o with every field of partial applied on top.
// This is a shallow, field-level merge: partial's values replace o's.
func (o *Object) Merge(partial *Object) *Object {
	out := o.Clone()
	if out == nil {
		out = NewObject()
	}
	partial.Range(func(k string, v Value) bool {
		out.Set(k, Clone(v))
		return true
	})
	return out
}
