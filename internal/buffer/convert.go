package buffer

// Number is the set of Go element types a buffer can be converted to or from.
type Number interface {
	~float32 | ~float64 | ~int32 | ~int64
}

// Convert coerces every element of src to D. Float to integer conversions
// truncate toward zero, float32 to float64 widens exactly.
func Convert[D, S Number](src []S) []D {
	out := make([]D, len(src))
	for i, v := range src {
		out[i] = D(v)
	}
	return out
}

// Values returns the full contents of b as a []T.
func Values[T Number](b DataBuffer) ([]T, error) {
	var zero T
	switch any(zero).(type) {
	case float32:
		v, err := b.AsFloat()
		return any(v).([]T), err
	case float64:
		v, err := b.AsDouble()
		return any(v).([]T), err
	case int32:
		v, err := b.AsInt()
		return any(v).([]T), err
	}
	d, err := b.AsDouble()
	if err != nil {
		return nil, err
	}
	return Convert[T](d), nil
}
