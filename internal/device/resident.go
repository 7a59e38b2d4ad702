package device

import (
	"context"
	"fmt"

	"github.com/23skdu/longbow-ndbuffer/internal/buffer"
)

// Location says which copies of a DeviceBuffer hold its contents.
type Location int

const (
	// Invalid: the device allocation was freed and there is no host mirror.
	Invalid Location = iota
	// DeviceOnly: the device holds the data, there is no host mirror.
	DeviceOnly
	// HostOnly: the host mirror holds the data, there is no device allocation.
	HostOnly
	// Synced: both copies exist and are equal.
	Synced
	// Stale: both copies exist and the host mirror is newer than the device.
	Stale
)

func (l Location) String() string {
	switch l {
	case DeviceOnly:
		return "device-only"
	case HostOnly:
		return "host-only"
	case Synced:
		return "synced"
	case Stale:
		return "stale"
	default:
		return "invalid"
	}
}

// ensure interface compliance
var _ buffer.DataBuffer = (*DeviceBuffer)(nil)

// DeviceBuffer is a DataBuffer whose primary store is device memory, with an
// optional host mirror. Element reads and writes go to whichever copy is
// authoritative; bulk reads download the mirror first. Writes to the mirror
// are never uploaded implicitly, call Upload before device execution.
//
// The device allocation is owned exclusively by this buffer and released once
// by Free. A DeviceBuffer has no internal locking.
type DeviceBuffer struct {
	backend *Backend
	dtype   buffer.DataType
	length  int

	host   *buffer.HostBuffer
	dev    Pointer
	hasDev bool
	state  Location
}

func (d *DeviceBuffer) Length() int               { return d.length }
func (d *DeviceBuffer) ElementSize() int          { return d.dtype.Size() }
func (d *DeviceBuffer) DataType() buffer.DataType { return d.dtype }

// Location returns the current synchronisation state.
func (d *DeviceBuffer) Location() Location { return d.state }

// Backend returns the backend that owns the device allocation.
func (d *DeviceBuffer) Backend() *Backend { return d.backend }

// DevicePointer returns the device allocation for use by an execution engine.
func (d *DeviceBuffer) DevicePointer() (Pointer, bool) { return d.dev, d.hasDev }

func (d *DeviceBuffer) nbytes() int { return d.length * d.dtype.Size() }

func (d *DeviceBuffer) errInvalid() error {
	return fmt.Errorf("%w: buffer has no valid location", buffer.ErrInvalidArgument)
}

// ensureHost makes sure a host mirror reflects the contents, downloading if needed.
func (d *DeviceBuffer) ensureHost(ctx context.Context) error {
	switch d.state {
	case HostOnly, Synced, Stale:
		return nil
	case DeviceOnly:
		mirror, err := buffer.New(d.dtype, d.length)
		if err != nil {
			return err
		}
		if err := d.backend.download(ctx, mirror.Raw(), d.dev, 0); err != nil {
			return err
		}
		d.host = mirror
		d.state = Synced
		return nil
	}
	return d.errInvalid()
}

// hostWritten records that the mirror has changed.
func (d *DeviceBuffer) hostWritten() {
	switch {
	case d.hasDev:
		d.state = Stale
	default:
		d.state = HostOnly
	}
}

// element returns a buffer and index to read element i from: the mirror when
// present, otherwise a one-element copy fetched from the device.
func (d *DeviceBuffer) element(i int) (*buffer.HostBuffer, int, error) {
	if i < 0 || i >= d.length {
		return nil, 0, fmt.Errorf("%w: index %d for buffer of length %d", buffer.ErrIndexOutOfRange, i, d.length)
	}
	switch d.state {
	case HostOnly, Synced, Stale:
		return d.host, i, nil
	case DeviceOnly:
		size := d.dtype.Size()
		raw := make([]byte, size)
		if err := d.backend.download(context.Background(), raw, d.dev, i*size); err != nil {
			return nil, 0, err
		}
		one, err := buffer.FromBytes(d.dtype, raw)
		return one, 0, err
	}
	return nil, 0, d.errInvalid()
}

// write applies put to element i of the authoritative copy.
func (d *DeviceBuffer) write(i int, put func(b *buffer.HostBuffer, j int) error) error {
	if i < 0 || i >= d.length {
		return fmt.Errorf("%w: index %d for buffer of length %d", buffer.ErrIndexOutOfRange, i, d.length)
	}
	switch d.state {
	case HostOnly, Synced, Stale:
		if err := put(d.host, i); err != nil {
			return err
		}
		d.hostWritten()
		return nil
	case DeviceOnly:
		one, err := buffer.New(d.dtype, 1)
		if err != nil {
			return err
		}
		if err := put(one, 0); err != nil {
			return err
		}
		return d.backend.upload(context.Background(), d.dev, i*d.dtype.Size(), one.Raw())
	}
	return d.errInvalid()
}

func (d *DeviceBuffer) GetFloat64(i int) (float64, error) {
	b, j, err := d.element(i)
	if err != nil {
		return 0, err
	}
	return b.GetFloat64(j)
}

func (d *DeviceBuffer) GetFloat32(i int) (float32, error) {
	b, j, err := d.element(i)
	if err != nil {
		return 0, err
	}
	return b.GetFloat32(j)
}

func (d *DeviceBuffer) GetInt(i int) (int32, error) {
	b, j, err := d.element(i)
	if err != nil {
		return 0, err
	}
	return b.GetInt(j)
}

func (d *DeviceBuffer) PutFloat64(i int, v float64) error {
	return d.write(i, func(b *buffer.HostBuffer, j int) error { return b.PutFloat64(j, v) })
}

func (d *DeviceBuffer) PutFloat32(i int, v float32) error {
	return d.write(i, func(b *buffer.HostBuffer, j int) error { return b.PutFloat32(j, v) })
}

func (d *DeviceBuffer) PutInt(i int, v int32) error {
	return d.write(i, func(b *buffer.HostBuffer, j int) error { return b.PutInt(j, v) })
}

func (d *DeviceBuffer) Assign(indices []int, values []float64, contiguous bool, stride int) error {
	if err := buffer.CheckAssign(d.length, indices, values, contiguous, stride); err != nil {
		return err
	}
	if err := d.ensureHost(context.Background()); err != nil {
		return err
	}
	if err := d.host.Assign(indices, values, contiguous, stride); err != nil {
		return err
	}
	d.hostWritten()
	return nil
}

func (d *DeviceBuffer) Fill(value float64, offset int) error {
	if offset < 0 || offset > d.length {
		return fmt.Errorf("%w: fill offset %d for buffer of length %d", buffer.ErrIndexOutOfRange, offset, d.length)
	}
	if err := d.ensureHost(context.Background()); err != nil {
		return err
	}
	if err := d.host.Fill(value, offset); err != nil {
		return err
	}
	d.hostWritten()
	return nil
}

// SetData replaces the contents of the host mirror. It does not upload.
func (d *DeviceBuffer) SetData(values []float64) error {
	if len(values) != d.length {
		return fmt.Errorf("%w: unable to set data, must be of length %d but found length %d",
			buffer.ErrInvalidArgument, d.length, len(values))
	}
	if d.state == Invalid {
		return d.errInvalid()
	}
	if d.host == nil {
		mirror, err := buffer.New(d.dtype, d.length)
		if err != nil {
			return err
		}
		d.host = mirror
	}
	if err := d.host.SetData(values); err != nil {
		return err
	}
	d.hostWritten()
	return nil
}

func (d *DeviceBuffer) GetDoublesAt(offset, stride, count int) ([]float64, error) {
	if err := buffer.CheckRange(d.length, offset, stride, count); err != nil {
		return nil, err
	}
	if err := d.ensureHost(context.Background()); err != nil {
		return nil, err
	}
	return d.host.GetDoublesAt(offset, stride, count)
}

func (d *DeviceBuffer) GetFloatsAt(offset, stride, count int) ([]float32, error) {
	if err := buffer.CheckRange(d.length, offset, stride, count); err != nil {
		return nil, err
	}
	if err := d.ensureHost(context.Background()); err != nil {
		return nil, err
	}
	return d.host.GetFloatsAt(offset, stride, count)
}

func (d *DeviceBuffer) GetIntsAt(offset, stride, count int) ([]int32, error) {
	if err := buffer.CheckRange(d.length, offset, stride, count); err != nil {
		return nil, err
	}
	if err := d.ensureHost(context.Background()); err != nil {
		return nil, err
	}
	return d.host.GetIntsAt(offset, stride, count)
}

func (d *DeviceBuffer) AsBytes() ([]byte, error) {
	if err := d.ensureHost(context.Background()); err != nil {
		return nil, err
	}
	return d.host.AsBytes()
}

func (d *DeviceBuffer) AsFloat() ([]float32, error) {
	if err := d.ensureHost(context.Background()); err != nil {
		return nil, err
	}
	return d.host.AsFloat()
}

func (d *DeviceBuffer) AsDouble() ([]float64, error) {
	if err := d.ensureHost(context.Background()); err != nil {
		return nil, err
	}
	return d.host.AsDouble()
}

func (d *DeviceBuffer) AsInt() ([]int32, error) {
	if err := d.ensureHost(context.Background()); err != nil {
		return nil, err
	}
	return d.host.AsInt()
}

// Upload copies the host mirror to the device, allocating if there is no
// device location yet. On failure the buffer is left Stale.
func (d *DeviceBuffer) Upload(ctx context.Context) error {
	switch d.state {
	case DeviceOnly, Synced:
		return nil
	case Invalid:
		return d.errInvalid()
	}

	if !d.hasDev {
		ptr, err := d.backend.dev.Alloc(d.nbytes())
		if err != nil {
			return fmt.Errorf("%w: allocate %d bytes on %s: %w", buffer.ErrTransfer, d.nbytes(), d.backend.Name(), err)
		}
		d.dev = ptr
		d.hasDev = true
		d.state = Stale
	}
	if err := d.backend.upload(ctx, d.dev, 0, d.host.Raw()); err != nil {
		return err
	}
	d.state = Synced
	return nil
}

// Download refreshes the host mirror from the device when the device is the
// only copy. A mirror that already exists is authoritative and kept.
func (d *DeviceBuffer) Download(ctx context.Context) error {
	return d.ensureHost(ctx)
}

// MarkDeviceModified records that an execution engine wrote the device copy,
// discarding the host mirror.
func (d *DeviceBuffer) MarkDeviceModified() error {
	switch d.state {
	case DeviceOnly:
		return nil
	case Synced, Stale:
		d.host = nil
		d.state = DeviceOnly
		return nil
	case HostOnly:
		return fmt.Errorf("%w: buffer has no device location to modify", buffer.ErrInvalidArgument)
	}
	return d.errInvalid()
}

// ReleaseHost drops the host mirror, uploading it first if the device copy is
// missing or older.
func (d *DeviceBuffer) ReleaseHost(ctx context.Context) error {
	switch d.state {
	case DeviceOnly:
		return nil
	case Invalid:
		return d.errInvalid()
	case HostOnly, Stale:
		if err := d.Upload(ctx); err != nil {
			return err
		}
	}
	d.host = nil
	d.state = DeviceOnly
	return nil
}

// Free releases the device allocation. It is safe to call more than once;
// only the first call frees. A remaining host mirror stays readable.
func (d *DeviceBuffer) Free() error {
	if !d.hasDev {
		return nil
	}
	ptr := d.dev
	d.dev = 0
	d.hasDev = false
	if d.host != nil {
		d.state = HostOnly
	} else {
		d.state = Invalid
	}
	return d.backend.free(ptr)
}

// Dup returns an independent copy with its own device allocation.
func (d *DeviceBuffer) Dup() (buffer.DataBuffer, error) {
	out, err := d.DupContext(context.Background())
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DupContext is Dup with a context for the device-to-device copy.
func (d *DeviceBuffer) DupContext(ctx context.Context) (*DeviceBuffer, error) {
	if d.state == Invalid {
		return nil, d.errInvalid()
	}
	out := &DeviceBuffer{
		backend: d.backend,
		dtype:   d.dtype,
		length:  d.length,
		state:   d.state,
	}
	if d.hasDev {
		ptr, err := d.backend.dev.Alloc(d.nbytes())
		if err != nil {
			return nil, fmt.Errorf("allocate %d bytes on %s: %w", d.nbytes(), d.backend.Name(), err)
		}
		out.dev = ptr
		out.hasDev = true
		if err := d.backend.copyDevice(ctx, ptr, d.dev, d.nbytes()); err != nil {
			_ = out.Free()
			return nil, err
		}
	}
	if d.host != nil {
		mirror, err := d.host.Dup()
		if err != nil {
			_ = out.Free()
			return nil, err
		}
		out.host = mirror.(*buffer.HostBuffer)
	}
	return out, nil
}

// Persist encodes the buffer in the element-count-prefixed layout, downloading
// first if the device is the only copy. A buffer with no valid location
// persists as an element count of 0.
func (d *DeviceBuffer) Persist(ctx context.Context) ([]byte, error) {
	if d.state == Invalid {
		return buffer.EncodePayload(nil, 0), nil
	}
	if err := d.ensureHost(ctx); err != nil {
		return nil, err
	}
	return buffer.EncodePayload(d.host.Raw(), d.length), nil
}
