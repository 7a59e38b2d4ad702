package device

// Pointer is an opaque handle to a region of accelerator memory.
// The zero value never refers to a live allocation.
type Pointer uint64

// Device is the accelerator memory runtime: allocation plus blocking copies
// between host memory and device memory. Implementations must be safe for
// concurrent use; the buffers built on top of them are not.
type Device interface {
	// Name identifies the device in logs, metrics and traces.
	Name() string

	// Alloc reserves nbytes of zeroed device memory.
	Alloc(nbytes int) (Pointer, error)

	// Free releases an allocation. Freeing an unknown pointer is an error.
	Free(p Pointer) error

	// CopyToDevice copies src into dst starting at byte offset.
	// It blocks until the copy completes.
	CopyToDevice(dst Pointer, offset int, src []byte) error

	// CopyToHost copies len(dst) bytes from src starting at byte offset.
	// It blocks until the copy completes.
	CopyToHost(dst []byte, src Pointer, offset int) error

	// CopyDevice copies nbytes between two device allocations.
	CopyDevice(dst, src Pointer, nbytes int) error

	// Synchronize blocks until all queued device work is complete.
	Synchronize()

	// MemoryUsage reports allocated and total device bytes (0 total means unbounded).
	MemoryUsage() (allocated int64, total int64)
}
