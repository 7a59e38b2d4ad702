// Package buffer provides fixed-length, homogeneously-typed numeric buffers.
//
// A buffer holds Length() elements of a single DataType. Its length never
// changes; contents are mutated in place through element or bulk writes and
// duplicated by value with Dup. Buffers are not safe for concurrent mutation.
package buffer

import (
	"fmt"
)

// DataBuffer is the contract shared by host buffers and accelerator-resident
// buffers. Every read and write is interpreted under DataType().
type DataBuffer interface {
	Length() int
	ElementSize() int
	DataType() DataType

	GetFloat64(i int) (float64, error)
	GetFloat32(i int) (float32, error)
	GetInt(i int) (int32, error)
	PutFloat64(i int, v float64) error
	PutFloat32(i int, v float32) error
	PutInt(i int, v int32) error

	// Assign writes values at the positions described by indices. Only a
	// contiguous run starting at indices[0], advancing by stride, is supported.
	Assign(indices []int, values []float64, contiguous bool, stride int) error
	// Fill writes value into every element from offset to the end.
	Fill(value float64, offset int) error
	// SetData replaces the full contents; len(values) must equal Length().
	SetData(values []float64) error

	GetFloatsAt(offset, stride, count int) ([]float32, error)
	GetDoublesAt(offset, stride, count int) ([]float64, error)
	GetIntsAt(offset, stride, count int) ([]int32, error)

	// AsBytes serializes every element in native width, little-endian,
	// with no header or padding.
	AsBytes() ([]byte, error)
	AsFloat() ([]float32, error)
	AsDouble() ([]float64, error)
	AsInt() ([]int32, error)

	// Dup returns an independent deep copy.
	Dup() (DataBuffer, error)
}

// ensure interface compliance
var _ DataBuffer = (*HostBuffer)(nil)

// HostBuffer is a DataBuffer backed by host memory.
type HostBuffer struct {
	dtype  DataType
	length int
	data   []byte
}

// New creates a zeroed host buffer of length elements.
func New(dtype DataType, length int) (*HostBuffer, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrInvalidArgument, length)
	}
	return &HostBuffer{
		dtype:  dtype,
		length: length,
		data:   make([]byte, length*dtype.Size()),
	}, nil
}

// FromFloat64 creates a host buffer of dtype initialised from values.
func FromFloat64(dtype DataType, values []float64) *HostBuffer {
	b, _ := New(dtype, len(values))
	_ = b.SetData(values)
	return b
}

// FromFloat32 creates a host buffer of dtype initialised from values.
func FromFloat32(dtype DataType, values []float32) *HostBuffer {
	return FromFloat64(dtype, Convert[float64](values))
}

// FromInt32 creates a host buffer of dtype initialised from values.
func FromInt32(dtype DataType, values []int32) *HostBuffer {
	b, _ := New(dtype, len(values))
	for i, v := range values {
		storeInt(dtype, b.at(i), int64(v))
	}
	return b
}

// FromBytes wraps a copy of raw native-width little-endian elements.
func FromBytes(dtype DataType, raw []byte) (*HostBuffer, error) {
	size := dtype.Size()
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of the %s element size %d",
			ErrInvalidArgument, len(raw), dtype, size)
	}
	data := make([]byte, len(raw))
	copy(data, raw)
	return &HostBuffer{dtype: dtype, length: len(raw) / size, data: data}, nil
}

func (b *HostBuffer) Length() int        { return b.length }
func (b *HostBuffer) ElementSize() int   { return b.dtype.Size() }
func (b *HostBuffer) DataType() DataType { return b.dtype }

// Raw exposes the underlying storage. Writes through it bypass type checks.
func (b *HostBuffer) Raw() []byte { return b.data }

func (b *HostBuffer) at(i int) []byte {
	size := b.dtype.Size()
	return b.data[i*size : (i+1)*size]
}

func (b *HostBuffer) check(i int) error {
	if i < 0 || i >= b.length {
		return fmt.Errorf("%w: index %d for buffer of length %d", ErrIndexOutOfRange, i, b.length)
	}
	return nil
}

func (b *HostBuffer) GetFloat64(i int) (float64, error) {
	if err := b.check(i); err != nil {
		return 0, err
	}
	return load(b.dtype, b.at(i)), nil
}

func (b *HostBuffer) GetFloat32(i int) (float32, error) {
	v, err := b.GetFloat64(i)
	return float32(v), err
}

func (b *HostBuffer) GetInt(i int) (int32, error) {
	if err := b.check(i); err != nil {
		return 0, err
	}
	return int32(loadInt(b.dtype, b.at(i))), nil
}

func (b *HostBuffer) PutFloat64(i int, v float64) error {
	if err := b.check(i); err != nil {
		return err
	}
	store(b.dtype, b.at(i), v)
	return nil
}

func (b *HostBuffer) PutFloat32(i int, v float32) error {
	return b.PutFloat64(i, float64(v))
}

func (b *HostBuffer) PutInt(i int, v int32) error {
	if err := b.check(i); err != nil {
		return err
	}
	storeInt(b.dtype, b.at(i), int64(v))
	return nil
}

func (b *HostBuffer) Assign(indices []int, values []float64, contiguous bool, stride int) error {
	if err := CheckAssign(b.length, indices, values, contiguous, stride); err != nil {
		return err
	}
	for k, v := range values {
		store(b.dtype, b.at(indices[0]+k*stride), v)
	}
	return nil
}

// CheckAssign validates an Assign request against a buffer of the given length.
func CheckAssign(length int, indices []int, values []float64, contiguous bool, stride int) error {
	if len(indices) != len(values) {
		return fmt.Errorf("%w: indices and data length must be the same (indices %d, data %d)",
			ErrInvalidArgument, len(indices), len(values))
	}
	if len(indices) > length {
		return fmt.Errorf("%w: more elements than space to assign, buffer is of length %d where the indices are of length %d",
			ErrInvalidArgument, length, len(indices))
	}
	if !contiguous {
		return fmt.Errorf("%w: only contiguous assignment is supported", ErrUnsupportedOperation)
	}
	if len(values) == 0 {
		return nil
	}
	if stride <= 0 {
		return fmt.Errorf("%w: stride must be positive, got %d", ErrInvalidArgument, stride)
	}
	last := indices[0] + (len(values)-1)*stride
	if indices[0] < 0 || last >= length {
		return fmt.Errorf("%w: assignment covers [%d, %d] in buffer of length %d",
			ErrIndexOutOfRange, indices[0], last, length)
	}
	return nil
}

func (b *HostBuffer) Fill(value float64, offset int) error {
	if offset < 0 || offset > b.length {
		return fmt.Errorf("%w: fill offset %d for buffer of length %d", ErrIndexOutOfRange, offset, b.length)
	}
	for i := offset; i < b.length; i++ {
		store(b.dtype, b.at(i), value)
	}
	return nil
}

func (b *HostBuffer) SetData(values []float64) error {
	if len(values) != b.length {
		return fmt.Errorf("%w: unable to set data, must be of length %d but found length %d",
			ErrInvalidArgument, b.length, len(values))
	}
	for i, v := range values {
		store(b.dtype, b.at(i), v)
	}
	return nil
}

// CheckRange validates a strided extraction of count elements from offset.
func CheckRange(length, offset, stride, count int) error {
	if count < 0 || stride <= 0 {
		return fmt.Errorf("%w: count %d, stride %d", ErrInvalidArgument, count, stride)
	}
	if count == 0 {
		return nil
	}
	last := offset + (count-1)*stride
	if offset < 0 || last >= length {
		return fmt.Errorf("%w: range [%d, %d] exceeds buffer of length %d",
			ErrIndexOutOfRange, offset, last, length)
	}
	return nil
}

func (b *HostBuffer) GetDoublesAt(offset, stride, count int) ([]float64, error) {
	if err := CheckRange(b.length, offset, stride, count); err != nil {
		return nil, err
	}
	out := make([]float64, count)
	for k := range out {
		out[k] = load(b.dtype, b.at(offset+k*stride))
	}
	return out, nil
}

func (b *HostBuffer) GetFloatsAt(offset, stride, count int) ([]float32, error) {
	d, err := b.GetDoublesAt(offset, stride, count)
	if err != nil {
		return nil, err
	}
	return Convert[float32](d), nil
}

func (b *HostBuffer) GetIntsAt(offset, stride, count int) ([]int32, error) {
	if err := CheckRange(b.length, offset, stride, count); err != nil {
		return nil, err
	}
	out := make([]int32, count)
	for k := range out {
		out[k] = int32(loadInt(b.dtype, b.at(offset+k*stride)))
	}
	return out, nil
}

func (b *HostBuffer) AsBytes() ([]byte, error) {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

func (b *HostBuffer) AsDouble() ([]float64, error) {
	out := make([]float64, b.length)
	for i := range out {
		out[i] = load(b.dtype, b.at(i))
	}
	return out, nil
}

func (b *HostBuffer) AsFloat() ([]float32, error) {
	d, _ := b.AsDouble()
	return Convert[float32](d), nil
}

func (b *HostBuffer) AsInt() ([]int32, error) {
	out := make([]int32, b.length)
	for i := range out {
		out[i] = int32(loadInt(b.dtype, b.at(i)))
	}
	return out, nil
}

func (b *HostBuffer) Dup() (DataBuffer, error) {
	data := make([]byte, len(b.data))
	copy(data, b.data)
	return &HostBuffer{dtype: b.dtype, length: b.length, data: data}, nil
}
