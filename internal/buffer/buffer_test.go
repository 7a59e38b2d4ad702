package buffer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allTypes = []DataType{Float16, Float32, Float64, Int32, Int64}

func TestHostBuffer_Float32Scenario(t *testing.T) {
	b := FromFloat32(Float32, []float32{1.0, 2.0, 3.0, 4.0})

	f, err := b.AsFloat()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, f)

	d, err := b.AsDouble()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, d)

	raw, err := b.AsBytes()
	require.NoError(t, err)
	require.Len(t, raw, 16)
	for i, want := range []float32{1, 2, 3, 4} {
		got := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		assert.Equal(t, want, got, "element %d", i)
	}
}

func TestHostBuffer_DupIsIndependent(t *testing.T) {
	for _, dt := range allTypes {
		t.Run(dt.String(), func(t *testing.T) {
			for _, length := range []int{1, 4, 17} {
				values := make([]float64, length)
				for i := range values {
					values[i] = float64(i + 1)
				}
				orig := FromFloat64(dt, values)

				cp, err := orig.Dup()
				require.NoError(t, err)
				require.Equal(t, orig.Length(), cp.Length())
				require.Equal(t, dt, cp.DataType())

				got, _ := cp.AsDouble()
				assert.Equal(t, values, got)

				require.NoError(t, cp.PutFloat64(0, 99))
				v, err := orig.GetFloat64(0)
				require.NoError(t, err)
				assert.Equal(t, 1.0, v, "mutating the duplicate changed the original")
			}
		})
	}
}

func TestHostBuffer_Assign(t *testing.T) {
	t.Run("Contiguous", func(t *testing.T) {
		b := FromFloat64(Float32, []float64{1, 2, 3, 4})
		require.NoError(t, b.Assign([]int{2}, []float64{9}, true, 1))
		got, _ := b.AsDouble()
		assert.Equal(t, []float64{1, 2, 9, 4}, got)
	})

	t.Run("Strided", func(t *testing.T) {
		b := FromFloat64(Float64, make([]float64, 6))
		require.NoError(t, b.Assign([]int{1, 3, 5}, []float64{7, 8, 9}, true, 2))
		got, _ := b.AsDouble()
		assert.Equal(t, []float64{0, 7, 0, 8, 0, 9}, got)
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		b, _ := New(Float32, 4)
		err := b.Assign([]int{0, 1}, []float64{1}, true, 1)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		err = b.Assign([]int{0, 1}, []float64{1}, false, 1)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("TooManyIndices", func(t *testing.T) {
		b, _ := New(Float32, 2)
		err := b.Assign([]int{0, 1, 2}, []float64{1, 2, 3}, true, 1)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("NonContiguous", func(t *testing.T) {
		b, _ := New(Float32, 4)
		err := b.Assign([]int{0, 2}, []float64{1, 2}, false, 1)
		assert.ErrorIs(t, err, ErrUnsupportedOperation)
	})

	t.Run("PastEnd", func(t *testing.T) {
		b, _ := New(Float32, 4)
		err := b.Assign([]int{3, 4}, []float64{1, 2}, true, 1)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	})
}

func TestHostBuffer_SetData(t *testing.T) {
	b, _ := New(Int32, 3)
	err := b.SetData([]float64{1, 2})
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "must be of length 3 but found length 2")

	require.NoError(t, b.SetData([]float64{1.9, -2.7, 3}))
	got, _ := b.AsInt()
	assert.Equal(t, []int32{1, -2, 3}, got)
}

func TestHostBuffer_Bounds(t *testing.T) {
	b, _ := New(Float64, 2)
	_, err := b.GetFloat64(2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.ErrorIs(t, b.PutFloat64(-1, 1), ErrIndexOutOfRange)
	assert.ErrorIs(t, b.PutInt(5, 1), ErrIndexOutOfRange)
}

func TestHostBuffer_GetAt(t *testing.T) {
	b := FromFloat64(Float32, []float64{0, 1, 2, 3, 4, 5})

	f, err := b.GetFloatsAt(1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 3, 5}, f)

	d, err := b.GetDoublesAt(2, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, d)

	i, err := b.GetIntsAt(0, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 3}, i)

	_, err = b.GetFloatsAt(4, 1, 4)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestHostBuffer_Fill(t *testing.T) {
	b, _ := New(Int64, 4)
	require.NoError(t, b.Fill(7, 2))
	got, _ := b.AsInt()
	assert.Equal(t, []int32{0, 0, 7, 7}, got)
	assert.ErrorIs(t, b.Fill(1, 5), ErrIndexOutOfRange)
}

func TestHostBuffer_Float16(t *testing.T) {
	b := FromFloat64(Float16, []float64{1, -2, 0.5})
	assert.Equal(t, 2, b.ElementSize())

	raw, _ := b.AsBytes()
	require.Len(t, raw, 6)
	assert.Equal(t, uint16(0x3c00), binary.LittleEndian.Uint16(raw[0:]))
	assert.Equal(t, uint16(0xc000), binary.LittleEndian.Uint16(raw[2:]))

	got, _ := b.AsDouble()
	assert.Equal(t, []float64{1, -2, 0.5}, got)
}

func TestHostBuffer_Int64Exact(t *testing.T) {
	b, _ := New(Int64, 1)
	require.NoError(t, b.PutInt(0, math.MaxInt32))
	v, err := b.GetInt(0)
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32), v)
}

func TestFromBytes(t *testing.T) {
	_, err := FromBytes(Float32, make([]byte, 6))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	src := FromFloat64(Float64, []float64{1.5, 2.5})
	raw, _ := src.AsBytes()
	b, err := FromBytes(Float64, raw)
	require.NoError(t, err)
	got, _ := b.AsDouble()
	assert.Equal(t, []float64{1.5, 2.5}, got)
}

func TestParseDataType(t *testing.T) {
	for _, dt := range allTypes {
		got, err := ParseDataType(dt.String())
		require.NoError(t, err)
		assert.Equal(t, dt, got)
	}
	_, err := ParseDataType("complex64")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
