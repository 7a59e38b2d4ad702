package buffer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostCodec_RoundTrip(t *testing.T) {
	for _, dt := range allTypes {
		t.Run(dt.String(), func(t *testing.T) {
			c := NewCodec(dt)
			src := FromFloat64(dt, []float64{1, 2, 3, -4, 5})

			data, err := c.Encode(src)
			require.NoError(t, err)
			require.Len(t, data, HeaderSize+5*dt.Size())
			assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(data))

			out, err := c.Decode(data)
			require.NoError(t, err)
			require.Equal(t, src.Length(), out.Length())
			want, _ := src.AsDouble()
			got, _ := out.AsDouble()
			assert.Equal(t, want, got)
		})
	}
}

func TestHostCodec_Empty(t *testing.T) {
	c := NewCodec(Float32)
	data, err := c.Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, data)

	out, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Length())
}

func TestHostCodec_Errors(t *testing.T) {
	c := NewCodec(Float32)

	_, err := c.Encode(FromFloat64(Float64, []float64{1}))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.Decode([]byte{1, 0})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// count says 2 elements but only one follows
	_, err = c.Decode([]byte{2, 0, 0, 0, 0, 0, 0x80, 0x3f})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.Decode([]byte{0xff, 0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
