package device

import (
	"context"
	"fmt"

	"github.com/23skdu/longbow-ndbuffer/internal/buffer"
)

// ensure interface compliance
var _ buffer.Codec = (*Codec)(nil)

// Codec persists buffers in the element-count-prefixed layout and restores
// them into fresh allocations on Backend.
type Codec struct {
	Backend *Backend
	DType   buffer.DataType
}

func NewCodec(b *Backend, dtype buffer.DataType) *Codec {
	return &Codec{Backend: b, DType: dtype}
}

func (c *Codec) Encode(b buffer.DataBuffer) ([]byte, error) {
	db, ok := b.(*DeviceBuffer)
	if !ok {
		return buffer.NewCodec(c.DType).Encode(b)
	}
	if db.DataType() != c.DType {
		return nil, fmt.Errorf("%w: codec for %s cannot encode %s buffer",
			buffer.ErrInvalidArgument, c.DType, db.DataType())
	}
	return db.Persist(context.Background())
}

func (c *Codec) Decode(data []byte) (buffer.DataBuffer, error) {
	db, err := c.Backend.Restore(context.Background(), c.DType, data)
	if err != nil {
		return nil, err
	}
	return db, nil
}
