package interop

import (
	"bytes"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-ndbuffer/internal/buffer"
)

func TestArrowRoundTrip(t *testing.T) {
	pool := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer pool.AssertSize(t, 0)

	for _, dt := range []buffer.DataType{buffer.Float16, buffer.Float32, buffer.Float64, buffer.Int32, buffer.Int64} {
		t.Run(dt.String(), func(t *testing.T) {
			src := buffer.FromFloat64(dt, []float64{1, -2, 3.5, 0})
			if !dt.IsFloat() {
				src = buffer.FromFloat64(dt, []float64{1, -2, 3, 0})
			}

			arr, err := ToArrow(pool, src)
			require.NoError(t, err)
			defer arr.Release()

			want, _ := ArrowType(dt)
			assert.True(t, arrow.TypeEqual(want, arr.DataType()))
			assert.Equal(t, 4, arr.Len())

			back, err := FromArrow(arr)
			require.NoError(t, err)
			assert.Equal(t, dt, back.DataType())

			a, _ := src.AsBytes()
			b, _ := back.AsBytes()
			assert.Equal(t, a, b)
		})
	}
}

func TestFromArrow_Int64Precision(t *testing.T) {
	bld := array.NewInt64Builder(memory.DefaultAllocator)
	defer bld.Release()
	bld.Append(math.MaxInt64)
	arr := bld.NewArray()
	defer arr.Release()

	b, err := FromArrow(arr)
	require.NoError(t, err)

	out, err := ToArrow(memory.DefaultAllocator, b)
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, int64(math.MaxInt64), out.(*array.Int64).Value(0))
}

func TestFromArrow_Rejects(t *testing.T) {
	bld := array.NewFloat32Builder(memory.DefaultAllocator)
	defer bld.Release()
	bld.Append(1)
	bld.AppendNull()
	withNulls := bld.NewArray()
	defer withNulls.Release()

	_, err := FromArrow(withNulls)
	assert.ErrorIs(t, err, buffer.ErrInvalidArgument)

	sb := array.NewStringBuilder(memory.DefaultAllocator)
	defer sb.Release()
	sb.Append("x")
	strs := sb.NewArray()
	defer strs.Release()

	_, err = FromArrow(strs)
	assert.ErrorIs(t, err, buffer.ErrUnsupportedOperation)
}

func TestBuildRecordBatch(t *testing.T) {
	pool := memory.NewGoAllocator()
	builder := NewRecordBatchBuilder(pool)

	t.Run("Empty input", func(t *testing.T) {
		rb, err := builder.BuildRecordBatch(nil, nil)
		assert.NoError(t, err)
		assert.Nil(t, rb)
	})

	t.Run("Mismatched input", func(t *testing.T) {
		_, err := builder.BuildRecordBatch([]string{"a"}, nil)
		assert.ErrorIs(t, err, buffer.ErrInvalidArgument)
	})

	t.Run("Valid input", func(t *testing.T) {
		bufs := []buffer.DataBuffer{
			buffer.FromFloat32(buffer.Float32, []float32{1, 2, 3}),
			buffer.FromInt32(buffer.Int32, []int32{4, 5, 6}),
		}

		rb, err := builder.BuildRecordBatch([]string{"a.bin", "b.bin"}, bufs)
		require.NoError(t, err)
		require.NotNil(t, rb)
		defer rb.Release()

		assert.Equal(t, int64(2), rb.NumRows())
		assert.Equal(t, int64(3), rb.NumCols())
		assert.Equal(t, "values", rb.ColumnName(2))
		assert.Equal(t, "int32", rb.Column(1).(*array.String).Value(1))

		listArr := rb.Column(2).(*array.List)
		assert.Equal(t, []int32{0, 3, 6}, listArr.Offsets())
		values := listArr.ListValues().(*array.Float64)
		assert.Equal(t, 6.0, values.Value(5))

		var buf bytes.Buffer
		require.NoError(t, WriteStream(&buf, rb))

		reader, err := ipc.NewReader(&buf, ipc.WithAllocator(pool))
		require.NoError(t, err)
		defer reader.Release()

		require.True(t, reader.Next())
		got := reader.Record()
		assert.Equal(t, int64(2), got.NumRows())
		assert.True(t, got.Schema().Equal(Schema))
		assert.Equal(t, "a.bin", got.Column(0).(*array.String).Value(0))
	})
}
