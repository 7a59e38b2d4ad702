// Package device keeps numeric buffers resident on an accelerator and
// synchronised with a host mirror.
package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/23skdu/longbow-ndbuffer/internal/buffer"
)

var tracer = otel.Tracer("github.com/23skdu/longbow-ndbuffer/internal/device")

// Direction labels a transfer for metrics and traces.
type Direction string

const (
	Upload         Direction = "upload"
	Download       Direction = "download"
	DeviceToDevice Direction = "device"
)

// Backend creates accelerator-resident buffers on a Device and funnels every
// transfer through one place, where deadlines, tracing, metrics and the
// circuit breaker are applied.
type Backend struct {
	dev     Device
	cfg     Config
	breaker *transferBreaker
	fence   *copyFence
}

// NewBackend wraps dev with the runtime settings in cfg.
func NewBackend(dev Device, cfg Config) *Backend {
	b := &Backend{dev: dev, cfg: cfg, fence: newCopyFence()}
	if cfg.MaxFailures > 0 {
		b.breaker = newTransferBreaker(cfg.MaxFailures, cfg.BreakerCooldown)
	}
	return b
}

// NewHostBackend is shorthand for a Backend over a fresh HostDevice.
func NewHostBackend(cfg Config) *Backend {
	return NewBackend(NewHostDevice(cfg), cfg)
}

func (b *Backend) Name() string {
	return b.dev.Name()
}

// Device returns the underlying memory runtime.
func (b *Backend) Device() Device {
	return b.dev
}

// BreakerState reports the transfer circuit breaker state.
func (b *Backend) BreakerState() BreakerState {
	return b.breaker.current()
}

// Synchronize blocks until queued device work is complete.
func (b *Backend) Synchronize() {
	b.dev.Synchronize()
}

// NewBuffer allocates a zeroed buffer that lives only on the device.
func (b *Backend) NewBuffer(dtype buffer.DataType, length int) (*DeviceBuffer, error) {
	nbytes := bytesFor(length, dtype.Size())
	if nbytes < 0 {
		return nil, fmt.Errorf("%w: invalid buffer length %d", buffer.ErrInvalidArgument, length)
	}
	ptr, err := b.dev.Alloc(nbytes)
	if err != nil {
		return nil, fmt.Errorf("allocate %d bytes on %s: %w", nbytes, b.dev.Name(), err)
	}
	return &DeviceBuffer{
		backend: b,
		dtype:   dtype,
		length:  length,
		dev:     ptr,
		hasDev:  true,
		state:   DeviceOnly,
	}, nil
}

// FromHost creates a device buffer holding a copy of src, uploaded and synced.
func (b *Backend) FromHost(ctx context.Context, src buffer.DataBuffer) (*DeviceBuffer, error) {
	raw, err := src.AsBytes()
	if err != nil {
		return nil, err
	}
	host, err := buffer.FromBytes(src.DataType(), raw)
	if err != nil {
		return nil, err
	}
	return b.adopt(ctx, host)
}

// FromFloat64 creates a synced device buffer of dtype initialised from values.
func (b *Backend) FromFloat64(ctx context.Context, dtype buffer.DataType, values []float64) (*DeviceBuffer, error) {
	return b.adopt(ctx, buffer.FromFloat64(dtype, values))
}

// Restore rebuilds a buffer from its persisted form into a new device allocation.
func (b *Backend) Restore(ctx context.Context, dtype buffer.DataType, data []byte) (*DeviceBuffer, error) {
	raw, err := buffer.DecodePayload(dtype, data)
	if err != nil {
		return nil, err
	}
	host, err := buffer.FromBytes(dtype, raw)
	if err != nil {
		return nil, err
	}
	return b.adopt(ctx, host)
}

// adopt takes ownership of host as the mirror of a new buffer and uploads it.
func (b *Backend) adopt(ctx context.Context, host *buffer.HostBuffer) (*DeviceBuffer, error) {
	db := &DeviceBuffer{
		backend: b,
		dtype:   host.DataType(),
		length:  host.Length(),
		host:    host,
		state:   HostOnly,
	}
	if err := db.Upload(ctx); err != nil {
		_ = db.Free()
		return nil, err
	}
	return db, nil
}

func (b *Backend) upload(ctx context.Context, dst Pointer, offset int, src []byte) error {
	return b.transfer(ctx, Upload, len(src), []Pointer{dst}, func() error {
		return b.dev.CopyToDevice(dst, offset, src)
	})
}

func (b *Backend) download(ctx context.Context, dst []byte, src Pointer, offset int) error {
	return b.transfer(ctx, Download, len(dst), []Pointer{src}, func() error {
		return b.dev.CopyToHost(dst, src, offset)
	})
}

func (b *Backend) copyDevice(ctx context.Context, dst, src Pointer, nbytes int) error {
	return b.transfer(ctx, DeviceToDevice, nbytes, []Pointer{dst, src}, func() error {
		return b.dev.CopyDevice(dst, src, nbytes)
	})
}

func (b *Backend) free(p Pointer) error {
	// An abandoned copy may still target p.
	_ = b.fence.wait(context.Background(), p)
	if err := b.dev.Free(p); err != nil {
		log.Warn().Err(err).Str("device", b.dev.Name()).Msg("Device free failed")
		return fmt.Errorf("free on %s: %w", b.dev.Name(), err)
	}
	return nil
}

// transfer runs one blocking copy touching ptrs. Failures are never absorbed:
// every error comes back wrapping buffer.ErrTransfer and the underlying cause.
// A copy is not started until any abandoned copy on the same allocations has
// finished, so a late copy can never land on top of a newer one.
func (b *Backend) transfer(ctx context.Context, dir Direction, nbytes int, ptrs []Pointer, copyFn func() error) error {
	name := b.dev.Name()

	if !b.breaker.allow() {
		transferFailures.WithLabelValues(name, string(dir)).Inc()
		return fmt.Errorf("%w: %s of %d bytes on %s rejected, circuit breaker open",
			buffer.ErrTransfer, dir, nbytes, name)
	}

	ctx, span := tracer.Start(ctx, "device."+string(dir), trace.WithAttributes(
		attribute.String("device", name),
		attribute.Int("bytes", nbytes),
	))
	defer span.End()

	if b.cfg.TransferTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, b.cfg.TransferTimeout)
			defer cancel()
		}
	}

	start := time.Now()
	err := b.fence.wait(ctx, ptrs...)
	if err == nil {
		var abandoned <-chan struct{}
		abandoned, err = runBlocking(ctx, copyFn)
		if abandoned != nil {
			b.fence.hold(abandoned, ptrs...)
			log.Debug().Str("device", name).Str("direction", string(dir)).Msg("Transfer abandoned, fencing allocation")
		}
	}
	transferDuration.WithLabelValues(name, string(dir)).Observe(time.Since(start).Seconds())

	if err != nil {
		b.breaker.failure()
		transferFailures.WithLabelValues(name, string(dir)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfer failed")
		log.Warn().Err(err).Str("device", name).Str("direction", string(dir)).Int("bytes", nbytes).Msg("Device transfer failed")
		return fmt.Errorf("%w: %s of %d bytes on %s: %w", buffer.ErrTransfer, dir, nbytes, name, err)
	}

	b.breaker.success()
	transfersTotal.WithLabelValues(name, string(dir)).Inc()
	transferBytes.WithLabelValues(name, string(dir)).Add(float64(nbytes))
	return nil
}

// runBlocking calls fn, giving up when ctx is done. A copy abandoned this way
// keeps running in the background; the returned channel is closed when it
// finishes and is nil when fn completed before returning.
func runBlocking(ctx context.Context, fn func() error) (<-chan struct{}, error) {
	if ctx.Done() == nil {
		return nil, fn()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		result <- fn()
		close(finished)
	}()

	select {
	case err := <-result:
		return nil, err
	case <-ctx.Done():
		return finished, ctx.Err()
	}
}

// copyFence tracks abandoned copies per device allocation.
type copyFence struct {
	mu      sync.Mutex
	pending map[Pointer]<-chan struct{}
}

func newCopyFence() *copyFence {
	return &copyFence{pending: make(map[Pointer]<-chan struct{})}
}

// hold blocks copies on ptrs until done is closed.
func (f *copyFence) hold(done <-chan struct{}, ptrs ...Pointer) {
	f.mu.Lock()
	for _, p := range ptrs {
		f.pending[p] = done
	}
	f.mu.Unlock()

	go func() {
		<-done
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, p := range ptrs {
			if f.pending[p] == done {
				delete(f.pending, p)
			}
		}
	}()
}

// wait returns once no abandoned copy is running on ptrs, or ctx is done.
func (f *copyFence) wait(ctx context.Context, ptrs ...Pointer) error {
	for _, p := range ptrs {
		f.mu.Lock()
		done, ok := f.pending[p]
		f.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
