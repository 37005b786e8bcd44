package types

import (
	"fmt"
	"strconv"
	"strings"
)

// The coercion table is fixed:
//
//	int    ↔ float    int widens to float
//	string ↔ int      string parses as integer, else both sides to float
//	string ↔ float    string parses as float
//	bool   ↔ bool     identity only; bool never coerces to number or string
//	null              propagates, handled by callers before coercion
//	opaque            never coerces
//
// Anything outside the table is a coercion error.

// CoercePair brings two values to a common comparable kind.
func CoercePair(a, b Value) (Value, Value, error) {
	if a.Kind == b.Kind {
		if a.Kind == KindOpaque {
			return a, b, fmt.Errorf("opaque values cannot be compared")
		}
		return a, b, nil
	}

	switch {
	case a.Kind == KindInt && b.Kind == KindFloat:
		return NewFloat(float64(a.Int)), b, nil
	case a.Kind == KindFloat && b.Kind == KindInt:
		return a, NewFloat(float64(b.Int)), nil

	case a.Kind == KindString && (b.Kind == KindInt || b.Kind == KindFloat):
		av, err := parseNumeric(a.Str)
		if err != nil {
			return a, b, fmt.Errorf("cannot coerce %q to %s", a.Str, b.Kind)
		}
		return CoercePair(av, b)
	case (a.Kind == KindInt || a.Kind == KindFloat) && b.Kind == KindString:
		bv, err := parseNumeric(b.Str)
		if err != nil {
			return a, b, fmt.Errorf("cannot coerce %q to %s", b.Str, a.Kind)
		}
		return CoercePair(a, bv)
	}

	return a, b, fmt.Errorf("cannot coerce %s to %s", a.Kind, b.Kind)
}

// ToNumber coerces a value to a numeric Value (int or float),
// parsing numeric strings. Used by SUM/AVG and key normalization.
func ToNumber(v Value) (Value, error) {
	switch v.Kind {
	case KindInt, KindFloat:
		return v, nil
	case KindString:
		return parseNumeric(v.Str)
	}
	return v, fmt.Errorf("cannot coerce %s to number", v.Kind)
}

func parseNumeric(s string) (Value, error) {
	t := strings.TrimSpace(s)
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return NewInt(i), nil
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return NewFloat(f), nil
	}
	return Null(), fmt.Errorf("not a number: %q", s)
}

// CanonicalKey normalizes a value for use as a join or grouping key so
// that values equal under the coercion table produce equal keys:
// numeric strings become numbers and integral floats become ints.
func CanonicalKey(v Value) (Value, error) {
	switch v.Kind {
	case KindNull, KindInt, KindBool:
		return v, nil
	case KindFloat:
		if v.Float == float64(int64(v.Float)) {
			return NewInt(int64(v.Float)), nil
		}
		return v, nil
	case KindString:
		if n, err := parseNumeric(v.Str); err == nil {
			return CanonicalKey(n)
		}
		return v, nil
	}
	return v, fmt.Errorf("opaque values cannot be used as keys")
}

// EncodeKey renders values into a single hashable key. Callers pass
// values already normalized by CanonicalKey.
func EncodeKey(vals ...Value) string {
	var b strings.Builder
	for _, v := range vals {
		switch v.Kind {
		case KindNull:
			b.WriteByte('n')
		case KindInt:
			b.WriteByte('i')
			b.WriteString(strconv.FormatInt(v.Int, 10))
		case KindFloat:
			b.WriteByte('f')
			b.WriteString(strconv.FormatFloat(v.Float, 'g', -1, 64))
		case KindString:
			b.WriteByte('s')
			b.WriteString(v.Str)
		case KindBool:
			if v.Bool {
				b.WriteString("bt")
			} else {
				b.WriteString("bf")
			}
		}
		b.WriteByte(0)
	}
	return b.String()
}
