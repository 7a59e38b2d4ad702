// Package interop moves buffers in and out of Apache Arrow arrays and IPC streams.
package interop

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/float16"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-ndbuffer/internal/buffer"
)

// ArrowType returns the Arrow type with the same element encoding as dt.
func ArrowType(dt buffer.DataType) (arrow.DataType, error) {
	switch dt {
	case buffer.Float16:
		return arrow.FixedWidthTypes.Float16, nil
	case buffer.Float32:
		return arrow.PrimitiveTypes.Float32, nil
	case buffer.Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case buffer.Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case buffer.Int64:
		return arrow.PrimitiveTypes.Int64, nil
	}
	return nil, fmt.Errorf("%w: no arrow type for %s", buffer.ErrUnsupportedOperation, dt)
}

// ToArrow copies the elements of b into a new Arrow array of the matching
// type. The caller owns the returned array and must Release it.
func ToArrow(mem memory.Allocator, b buffer.DataBuffer) (arrow.Array, error) {
	switch b.DataType() {
	case buffer.Float16:
		values, err := b.AsFloat()
		if err != nil {
			return nil, err
		}
		bld := array.NewFloat16Builder(mem)
		defer bld.Release()
		bld.Reserve(len(values))
		for _, v := range values {
			bld.Append(float16.New(v))
		}
		return bld.NewArray(), nil

	case buffer.Float32:
		values, err := b.AsFloat()
		if err != nil {
			return nil, err
		}
		bld := array.NewFloat32Builder(mem)
		defer bld.Release()
		bld.AppendValues(values, nil)
		return bld.NewArray(), nil

	case buffer.Float64:
		values, err := b.AsDouble()
		if err != nil {
			return nil, err
		}
		bld := array.NewFloat64Builder(mem)
		defer bld.Release()
		bld.AppendValues(values, nil)
		return bld.NewArray(), nil

	case buffer.Int32:
		values, err := b.AsInt()
		if err != nil {
			return nil, err
		}
		bld := array.NewInt32Builder(mem)
		defer bld.Release()
		bld.AppendValues(values, nil)
		return bld.NewArray(), nil

	case buffer.Int64:
		raw, err := b.AsBytes()
		if err != nil {
			return nil, err
		}
		bld := array.NewInt64Builder(mem)
		defer bld.Release()
		bld.Reserve(b.Length())
		for i := 0; i < b.Length(); i++ {
			bld.Append(int64(binary.LittleEndian.Uint64(raw[i*8:])))
		}
		return bld.NewArray(), nil
	}
	return nil, fmt.Errorf("%w: no arrow type for %s", buffer.ErrUnsupportedOperation, b.DataType())
}

// FromArrow copies a primitive Arrow array into a new host buffer. Arrays
// with nulls cannot be represented and are rejected.
func FromArrow(arr arrow.Array) (*buffer.HostBuffer, error) {
	if arr.NullN() > 0 {
		return nil, fmt.Errorf("%w: arrow array has %d nulls", buffer.ErrInvalidArgument, arr.NullN())
	}

	switch a := arr.(type) {
	case *array.Float16:
		values := make([]float32, a.Len())
		for i := range values {
			values[i] = a.Value(i).Float32()
		}
		return buffer.FromFloat32(buffer.Float16, values), nil
	case *array.Float32:
		return buffer.FromFloat32(buffer.Float32, a.Float32Values()), nil
	case *array.Float64:
		return buffer.FromFloat64(buffer.Float64, a.Float64Values()), nil
	case *array.Int32:
		return buffer.FromInt32(buffer.Int32, a.Int32Values()), nil
	case *array.Int64:
		raw := make([]byte, a.Len()*8)
		for i, v := range a.Int64Values() {
			binary.LittleEndian.PutUint64(raw[i*8:], uint64(v))
		}
		return buffer.FromBytes(buffer.Int64, raw)
	}
	return nil, fmt.Errorf("%w: arrow type %s", buffer.ErrUnsupportedOperation, arr.DataType())
}

// RecordBatchBuilder collects named buffers into a RecordBatch with one row
// per buffer.
type RecordBatchBuilder struct {
	mem memory.Allocator
}

// NewRecordBatchBuilder creates a new builder.
func NewRecordBatchBuilder(mem memory.Allocator) *RecordBatchBuilder {
	return &RecordBatchBuilder{mem: mem}
}

// Schema is the layout produced by BuildRecordBatch.
var Schema = arrow.NewSchema(
	[]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "dtype", Type: arrow.BinaryTypes.String},
		{Name: "values", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	},
	nil,
)

// BuildRecordBatch converts buffers into a RecordBatch. Values are widened to
// float64. Returns nil for empty input.
func (b *RecordBatchBuilder) BuildRecordBatch(names []string, bufs []buffer.DataBuffer) (arrow.RecordBatch, error) {
	if len(names) != len(bufs) {
		return nil, fmt.Errorf("%w: %d names for %d buffers", buffer.ErrInvalidArgument, len(names), len(bufs))
	}
	if len(bufs) == 0 {
		return nil, nil
	}

	nameBuilder := array.NewStringBuilder(b.mem)
	defer nameBuilder.Release()
	typeBuilder := array.NewStringBuilder(b.mem)
	defer typeBuilder.Release()
	listBuilder := array.NewListBuilder(b.mem, arrow.PrimitiveTypes.Float64)
	defer listBuilder.Release()
	valueBuilder := listBuilder.ValueBuilder().(*array.Float64Builder)

	for i, buf := range bufs {
		values, err := buf.AsDouble()
		if err != nil {
			return nil, fmt.Errorf("buffer %q: %w", names[i], err)
		}
		nameBuilder.Append(names[i])
		typeBuilder.Append(buf.DataType().String())
		listBuilder.Append(true)
		valueBuilder.AppendValues(values, nil)
	}

	cols := []arrow.Array{nameBuilder.NewArray(), typeBuilder.NewArray(), listBuilder.NewArray()}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	return array.NewRecordBatch(Schema, cols, int64(len(bufs))), nil
}

// WriteStream writes rec to w as an Arrow IPC stream.
func WriteStream(w io.Writer, rec arrow.RecordBatch) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}
