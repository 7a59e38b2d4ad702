package device

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ensure interface compliance
var _ Device = (*HostDevice)(nil)

var errInjected = errors.New("injected transfer fault")

// HostDevice emulates an accelerator inside the Go heap. Device memory is a
// separate set of regions reachable only through Pointer handles, so every
// host/device move is an explicit copy, exactly as with a discrete GPU.
type HostDevice struct {
	mu        sync.Mutex
	regions   map[Pointer][]byte
	next      Pointer
	pool      *bufferPool
	capacity  int64
	allocated int64

	failNext int
	latency  time.Duration
}

// NewHostDevice creates an emulated accelerator configured by cfg.
func NewHostDevice(cfg Config) *HostDevice {
	d := &HostDevice{
		regions:  make(map[Pointer][]byte),
		capacity: cfg.Capacity,
	}
	if cfg.PoolEnabled {
		d.pool = newBufferPool(cfg.PoolMaxBytes)
	}
	return d
}

func (d *HostDevice) Name() string {
	return "host"
}

func (d *HostDevice) Alloc(nbytes int) (Pointer, error) {
	if nbytes < 0 {
		return 0, fmt.Errorf("alloc: negative size %d", nbytes)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capacity > 0 && d.allocated+int64(nbytes) > d.capacity {
		return 0, fmt.Errorf("alloc: out of device memory (%d requested, %d of %d in use)",
			nbytes, d.allocated, d.capacity)
	}

	var region []byte
	if d.pool != nil {
		region = d.pool.get(nbytes)
	} else {
		region = make([]byte, nbytes)
	}

	d.next++
	d.regions[d.next] = region
	d.allocated += int64(nbytes)
	allocatedBytes.WithLabelValues(d.Name()).Set(float64(d.allocated))

	log.Debug().Uint64("ptr", uint64(d.next)).Int("bytes", nbytes).Msg("Device alloc")
	return d.next, nil
}

func (d *HostDevice) Free(p Pointer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	region, ok := d.regions[p]
	if !ok {
		return fmt.Errorf("free: unknown device pointer %d", p)
	}
	delete(d.regions, p)
	d.allocated -= int64(len(region))
	allocatedBytes.WithLabelValues(d.Name()).Set(float64(d.allocated))

	if d.pool != nil {
		d.pool.put(region)
	}
	return nil
}

func (d *HostDevice) CopyToDevice(dst Pointer, offset int, src []byte) error {
	if err := d.beginCopy(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	region, ok := d.regions[dst]
	if !ok {
		return fmt.Errorf("copy to device: unknown device pointer %d", dst)
	}
	if !checkSpan(len(region), offset, len(src)) {
		return fmt.Errorf("copy to device: %d bytes at offset %d exceeds allocation of %d", len(src), offset, len(region))
	}
	copy(region[offset:], src)
	return nil
}

func (d *HostDevice) CopyToHost(dst []byte, src Pointer, offset int) error {
	if err := d.beginCopy(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	region, ok := d.regions[src]
	if !ok {
		return fmt.Errorf("copy to host: unknown device pointer %d", src)
	}
	if !checkSpan(len(region), offset, len(dst)) {
		return fmt.Errorf("copy to host: %d bytes at offset %d exceeds allocation of %d", len(dst), offset, len(region))
	}
	copy(dst, region[offset:offset+len(dst)])
	return nil
}

func (d *HostDevice) CopyDevice(dst, src Pointer, nbytes int) error {
	if err := d.beginCopy(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	to, ok1 := d.regions[dst]
	from, ok2 := d.regions[src]
	if !ok1 || !ok2 {
		return fmt.Errorf("copy device: unknown device pointer (dst %d, src %d)", dst, src)
	}
	if !checkSpan(len(to), 0, nbytes) || !checkSpan(len(from), 0, nbytes) {
		return fmt.Errorf("copy device: %d bytes exceeds allocation (dst %d, src %d)", nbytes, len(to), len(from))
	}
	copy(to[:nbytes], from[:nbytes])
	return nil
}

func (d *HostDevice) Synchronize() {
	// Copies complete before returning.
}

func (d *HostDevice) MemoryUsage() (int64, int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated, d.capacity
}

// FailTransfers makes the next n copy calls fail.
func (d *HostDevice) FailTransfers(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = n
}

// SetLatency delays every copy by latency, simulating a slow bus.
func (d *HostDevice) SetLatency(latency time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.latency = latency
}

func (d *HostDevice) beginCopy() error {
	d.mu.Lock()
	latency := d.latency
	fail := d.failNext > 0
	if fail {
		d.failNext--
	}
	d.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}
	if fail {
		return errInjected
	}
	return nil
}
