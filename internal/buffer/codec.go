package buffer

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Codec persists buffers in the element-count-prefixed layout:
//
//	[elementCount int32 LE][elementCount x native-width elements]
//
// An elementCount of 0 means no data was available when the buffer was persisted.
type Codec interface {
	Encode(b DataBuffer) ([]byte, error)
	Decode(data []byte) (DataBuffer, error)
}

// HeaderSize is the byte length of the element count prefix.
const HeaderSize = 4

// HostCodec decodes into host buffers of a fixed DataType.
type HostCodec struct {
	DType DataType
}

// NewCodec returns the host codec for dtype.
func NewCodec(dtype DataType) *HostCodec {
	return &HostCodec{DType: dtype}
}

func (c *HostCodec) Encode(b DataBuffer) ([]byte, error) {
	if b == nil {
		return EncodePayload(nil, 0), nil
	}
	if b.DataType() != c.DType {
		return nil, fmt.Errorf("%w: codec for %s cannot encode %s buffer", ErrInvalidArgument, c.DType, b.DataType())
	}
	raw, err := b.AsBytes()
	if err != nil {
		return nil, err
	}
	return EncodePayload(raw, b.Length()), nil
}

func (c *HostCodec) Decode(data []byte) (DataBuffer, error) {
	raw, err := DecodePayload(c.DType, data)
	if err != nil {
		return nil, err
	}
	return FromBytes(c.DType, raw)
}

// EncodePayload prefixes raw element bytes with the element count.
func EncodePayload(raw []byte, count int) []byte {
	out := make([]byte, HeaderSize+len(raw))
	binary.LittleEndian.PutUint32(out, uint32(int32(count)))
	copy(out[HeaderSize:], raw)
	return out
}

// DecodePayload validates the persisted layout and returns the element bytes.
func DecodePayload(dtype DataType, data []byte) ([]byte, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: persisted buffer needs %d header bytes, got %d", ErrInvalidArgument, HeaderSize, len(data))
	}
	n := int32(binary.LittleEndian.Uint32(data))
	if n < 0 {
		return nil, fmt.Errorf("%w: negative element count %d", ErrInvalidArgument, n)
	}
	size := dtype.Size()
	if int64(n)*int64(size) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: element count %d too large", ErrInvalidArgument, n)
	}
	want := HeaderSize + int(n)*size
	if len(data) != want {
		return nil, fmt.Errorf("%w: %d %s elements need %d bytes, got %d", ErrInvalidArgument, n, dtype, want, len(data))
	}
	return data[HeaderSize:], nil
}
