package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// ErrTrailingData is returned by Parse when text follows the first literal.
var ErrTrailingData = errors.New("value: trailing data after JSON literal")

// Parse decodes a single JSON literal, keeping object key order.
// Numbers outside the float64 range are rejected.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseNext(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrTrailingData
	}
	return v, nil
}

// ParseString is Parse for text input.
func ParseString(text string) (Value, error) {
	return Parse([]byte(text))
}

func parseNext(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil || !finite(f) {
			return nil, fmt.Errorf("value: number %s out of range", t)
		}
		return Number(f), nil
	case json.Delim:
		switch t {
		case '[':
			arr := Array{}
			for dec.More() {
				e, err := parseNext(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, e)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		case '{':
			obj := NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("value: object key %v is not a string", kt)
				}
				fv, err := parseNext(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, fv)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		}
	}
	return nil, fmt.Errorf("value: unexpected token %v", tok)
}

// Marshal encodes v as JSON text the way a browser's JSON.stringify does:
// ES6 number formatting, no HTML escaping, undefined object fields omitted.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	return Marshal(o)
}

// UnmarshalJSON implements json.Unmarshaler. The text must be an object.
func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := Parse(data)
	if err != nil {
		return err
	}
	parsed, ok := v.(*Object)
	if !ok {
		return fmt.Errorf("value: expected object, got %s", KindOf(v))
	}
	*o = *parsed
	return nil
}

func appendJSON(buf *bytes.Buffer, v Value) error {
	switch t := v.(type) {
	case nil:
		return errors.New("value: cannot encode undefined")
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(t)))
	case Number:
		if !finite(float64(t)) {
			return fmt.Errorf("value: cannot encode non-finite number %v", float64(t))
		}
		buf.WriteString(formatNumber(float64(t)))
	case String:
		quoteTo(buf, string(t))
	case Array:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *Object:
		if t == nil {
			return errors.New("value: cannot encode undefined")
		}
		buf.WriteByte('{')
		first := true
		var err error
		t.Range(func(k string, fv Value) bool {
			if fv == nil {
				return true
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			quoteTo(buf, k)
			buf.WriteByte(':')
			err = appendJSON(buf, fv)
			return err == nil
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("value: unsupported type %T", v)
	}
	return nil
}

func quoteTo(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encode of a string never fails.
	_ = enc.Encode(s)
	// Encoder terminates each value with a newline.
	buf.Truncate(buf.Len() - 1)
}

// formatNumber renders f as JavaScript's Number#toString would.
func formatNumber(f float64) string {
	if f == 0 {
		// -0 prints as 0.
		return "0"
	}
	abs := math.Abs(f)
	fmtByte := byte('f')
	if abs < 1e-6 || abs >= 1e21 {
		fmtByte = 'e'
	}
	b := strconv.AppendFloat(nil, f, fmtByte, -1, 64)
	if fmtByte == 'e' {
		// clean up e-09 to e-9
		n := len(b)
		if n >= 4 && b[n-4] == 'e' && b[n-3] == '-' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
		// and e+09 to e+9
		n = len(b)
		if n >= 4 && b[n-4] == 'e' && b[n-3] == '+' && b[n-2] == '0' {
			b[n-2] = b[n-1]
			b = b[:n-1]
		}
	}
	return string(b)
}

// Format returns the text form of v used for URL primitives: strings as-is,
// numbers and booleans as JavaScript prints them, null as "null", and arrays
// and objects as JSON. Undefined formats as "".
func Format(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case String:
		return string(t)
	case Number:
		return formatNumber(float64(t))
	case Bool:
		return strconv.FormatBool(bool(t))
	case Null:
		return "null"
	}
	data, err := Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
