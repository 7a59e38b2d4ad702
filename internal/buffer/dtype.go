package buffer

import "fmt"

// DataType tags the numeric representation of every element in a buffer.
type DataType int

const (
	Float16 DataType = iota
	Float32
	Float64
	Int32
	Int64
)

// Size returns the byte width of one element.
func (dt DataType) Size() int {
	switch dt {
	case Float16:
		return 2
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	default:
		panic(fmt.Sprintf("unknown data type %d", int(dt)))
	}
}

// IsFloat reports whether the type is a floating-point representation.
func (dt DataType) IsFloat() bool {
	return dt == Float16 || dt == Float32 || dt == Float64
}

func (dt DataType) String() string {
	switch dt {
	case Float16:
		return "float16"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// ParseDataType maps a configuration string (as produced by String) to a DataType.
func ParseDataType(s string) (DataType, error) {
	switch s {
	case "float16", "fp16":
		return Float16, nil
	case "float32", "fp32", "float":
		return Float32, nil
	case "float64", "fp64", "double":
		return Float64, nil
	case "int32", "int":
		return Int32, nil
	case "int64", "long":
		return Int64, nil
	}
	return 0, fmt.Errorf("%w: unknown data type %q", ErrInvalidArgument, s)
}
