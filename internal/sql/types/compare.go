package types

// CompareValues compares two values, handling NULLs.
// NULL is considered less than any non-NULL value, which fixes the sort
// order of NULLs. Cross-kind comparisons go through the coercion table;
// values outside the table return an error.
func CompareValues(a, b Value) (int, error) {
	if a.IsNull() && b.IsNull() {
		return 0, nil
	}
	if a.IsNull() {
		return -1, nil
	}
	if b.IsNull() {
		return 1, nil
	}

	ca, cb, err := CoercePair(a, b)
	if err != nil {
		return 0, err
	}

	switch ca.Kind {
	case KindInt:
		return compareOrdered(ca.Int, cb.Int), nil
	case KindFloat:
		return compareOrdered(ca.Float, cb.Float), nil
	case KindString:
		return compareOrdered(ca.Str, cb.Str), nil
	case KindBool:
		return compareBool(ca.Bool, cb.Bool), nil
	}
	return 0, nil
}

// Equal reports whether two values compare equal under coercion.
func Equal(a, b Value) (bool, error) {
	c, err := CompareValues(a, b)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

func compareOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareBool(a, b bool) int {
	switch {
	case !a && b:
		return -1
	case a && !b:
		return 1
	}
	return 0
}
