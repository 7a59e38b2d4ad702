package buffer

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// Elements are stored little-endian in their native width.
var byteOrder = binary.LittleEndian

// load decodes one element as float64. Int64 values beyond 2^53 lose precision.
func load(dt DataType, b []byte) float64 {
	switch dt {
	case Float16:
		return float64(float16.Frombits(byteOrder.Uint16(b)).Float32())
	case Float32:
		return float64(math.Float32frombits(byteOrder.Uint32(b)))
	case Float64:
		return math.Float64frombits(byteOrder.Uint64(b))
	case Int32:
		return float64(int32(byteOrder.Uint32(b)))
	case Int64:
		return float64(int64(byteOrder.Uint64(b)))
	}
	panic("load: unknown data type " + dt.String())
}

// loadInt decodes one element as an integer, truncating floats toward zero.
func loadInt(dt DataType, b []byte) int64 {
	switch dt {
	case Int32:
		return int64(int32(byteOrder.Uint32(b)))
	case Int64:
		return int64(byteOrder.Uint64(b))
	}
	return int64(load(dt, b))
}

func store(dt DataType, b []byte, v float64) {
	switch dt {
	case Float16:
		byteOrder.PutUint16(b, float16.Fromfloat32(float32(v)).Bits())
	case Float32:
		byteOrder.PutUint32(b, math.Float32bits(float32(v)))
	case Float64:
		byteOrder.PutUint64(b, math.Float64bits(v))
	case Int32:
		byteOrder.PutUint32(b, uint32(int32(v)))
	case Int64:
		byteOrder.PutUint64(b, uint64(int64(v)))
	default:
		panic("store: unknown data type " + dt.String())
	}
}

func storeInt(dt DataType, b []byte, v int64) {
	switch dt {
	case Int32:
		byteOrder.PutUint32(b, uint32(int32(v)))
	case Int64:
		byteOrder.PutUint64(b, uint64(v))
	default:
		store(dt, b, float64(v))
	}
}

// EncodeElement writes v into b (len >= dt.Size()) using the element encoding of dt.
func EncodeElement(dt DataType, b []byte, v float64) { store(dt, b, v) }

// DecodeElement reads one element of dt from b.
func DecodeElement(dt DataType, b []byte) float64 { return load(dt, b) }
