// Package urlcodec maps a namespaced subset of state fields to and from URL
// query parameters, one parameter per field.
//
// A field "diameter" under namespace "thread" travels as "thread_diameter".
// Only fields present in the template are accepted on the way in, and empty
// fields ("" / null / undefined) are left out on the way out, so the URL
// stays minimal.
package urlcodec

import (
	"net/url"
	"sort"
	"strings"

	"github.com/vango-dev/statesync/pkg/coerce"
	"github.com/vango-dev/statesync/pkg/value"
)

// Separator joins the namespace prefix and the field name.
const Separator = "_"

// ParamName returns the query parameter name for field under namespace.
func ParamName(namespace, field string) string {
	return namespace + Separator + field
}

// Skip describes a namespaced parameter that Decode did not apply.
type Skip struct {
	Field string
	// Unknown is true when the field is not in the template; otherwise the
	// value could not be reconstructed for the field's shape.
	Unknown bool
}

// Decode reconstructs the partial state carried by params. Parameters
// whose field is not in the template, or whose value cannot be coerced to
// the template's shape, are skipped. When a parameter repeats, the last
// value wins. The result's key order follows the template.
func Decode(params url.Values, template *value.Object, namespace string) *value.Object {
	out, _ := DecodeWithSkips(params, template, namespace)
	return out
}

// DecodeWithSkips is Decode that also reports skipped parameters, sorted
// by field name.
func DecodeWithSkips(params url.Values, template *value.Object, namespace string) (*value.Object, []Skip) {
	prefix := namespace + Separator
	found := make(map[string]string)
	var skips []Skip

	for _, name := range sortedKeys(params) {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		field := strings.TrimPrefix(name, prefix)
		vals := params[name]
		if len(vals) == 0 {
			continue
		}
		if !template.Has(field) {
			skips = append(skips, Skip{Field: field, Unknown: true})
			continue
		}
		found[field] = vals[len(vals)-1]
	}

	out := value.NewObject()
	for _, field := range template.Keys() {
		raw, ok := found[field]
		if !ok {
			continue
		}
		tmpl, _ := template.Get(field)
		v, ok := coerce.Coerce(raw, tmpl)
		if !ok {
			skips = append(skips, Skip{Field: field})
			continue
		}
		out.Set(field, v)
	}
	return out, skips
}

// Encode renders every non-empty field of state as a namespaced parameter.
// Arrays and objects are JSON then percent-encoded, numbers and booleans
// are written as plain text. Strings are written as-is unless Coerce would
// read them back differently, in which case they are JSON-quoted and
// percent-encoded.
func Encode(state *value.Object, namespace string) url.Values {
	params := url.Values{}
	state.Range(func(field string, v value.Value) bool {
		if value.IsEmpty(v) {
			return true
		}
		if text, ok := encodeValue(v); ok {
			params.Set(ParamName(namespace, field), text)
		}
		return true
	})
	return params
}

func encodeValue(v value.Value) (string, bool) {
	if !value.Valid(v) {
		return "", false
	}
	switch t := v.(type) {
	case value.String:
		s := string(t)
		if !needsQuoting(s) {
			return s, true
		}
		data, err := value.Marshal(t)
		if err != nil {
			return "", false
		}
		return url.PathEscape(string(data)), true
	case value.Number, value.Bool:
		return value.Format(v), true
	default:
		data, err := value.Marshal(v)
		if err != nil {
			return "", false
		}
		return url.PathEscape(string(data)), true
	}
}

// needsQuoting reports whether s would not survive Coerce as a plain
// string: it contains an escape character, or it is itself a JSON string
// literal that the structural parse would unwrap.
func needsQuoting(s string) bool {
	if strings.Contains(s, "%") {
		return true
	}
	parsed, err := value.ParseString(s)
	return err == nil && value.KindOf(parsed) == value.KindString
}

func sortedKeys(params url.Values) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
