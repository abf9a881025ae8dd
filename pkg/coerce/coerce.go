// Package coerce rebuilds typed values from text fragments, using a
// template value as the shape oracle.
//
// URL parameters carry primitives without quoting and structured values as
// JSON, both in a single slot. Coerce first tries a structural JSON parse and
// keeps the result only if its shape matches the template, then falls back to
// primitive conversion keyed on the template's kind.
package coerce

import (
	"math"
	"math/big"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/vango-dev/statesync/pkg/value"
)

// Coerce reconstructs a value for a field from raw URL text. The boolean is
// false when the field cannot be reconstructed and must be left out.
func Coerce(raw string, template value.Value) (value.Value, bool) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return nil, false
	}

	if parsed, err := value.ParseString(decoded); err == nil && value.Valid(parsed) && Matches(parsed, template) {
		return parsed, true
	}

	switch template.(type) {
	case value.Number:
		n, ok := toNumber(decoded)
		if !ok {
			return nil, false
		}
		return value.Number(n), true
	case value.Bool:
		// Only the literal "true" is true. "false" is already handled by the
		// structural parse above; every other text falls through to false.
		return value.Bool(decoded == "true"), true
	case value.String:
		return value.String(decoded), true
	default:
		return nil, false
	}
}

// Matches reports whether candidate has the template's shape. A null
// template matches only null, an undefined template matches nothing, array
// and object templates match any array or object, and every other template
// requires the same kind.
func Matches(candidate, template value.Value) bool {
	tk := value.KindOf(template)
	ck := value.KindOf(candidate)
	switch tk {
	case value.KindUndefined:
		return false
	case value.KindNull:
		return ck == value.KindNull
	default:
		return ck == tk
	}
}

// FromStored accepts a value read from persisted JSON for a field. Stored
// JSON is self-describing, so an undefined template accepts any valid value;
// otherwise the value must match the template's shape.
func FromStored(stored, template value.Value) (value.Value, bool) {
	if stored == nil || !value.Valid(stored) {
		return nil, false
	}
	if value.KindOf(template) == value.KindUndefined {
		return stored, true
	}
	if !Matches(stored, template) {
		return nil, false
	}
	return stored, true
}

var decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// toNumber converts text the way JavaScript's Number() does, accepting only
// finite results.
func toNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			digits := s[2:]
			if strings.ContainsAny(digits, "_+-") {
				return 0, false
			}
			n, ok := new(big.Int).SetString(digits, base)
			if !ok {
				return 0, false
			}
			f, _ := n.Float64()
			if math.IsInf(f, 0) {
				return 0, false
			}
			return f, true
		}
	}

	if !decimalLiteral.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
