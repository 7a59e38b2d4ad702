package device

import (
	"math"
	"math/bits"
)

// getBucket maps a byte size to its pool bucket: the ceiling of log2(size).
// E.g. 1-2 bytes -> bucket 1, 3-4 bytes -> bucket 2, 5-8 bytes -> bucket 3.
func getBucket(size int) int {
	if size <= 1 {
		return 0
	}
	return bits.Len(uint(size - 1))
}

// checkSpan reports whether [offset, offset+n) lies within an allocation of size bytes.
func checkSpan(size, offset, n int) bool {
	if offset < 0 || n < 0 {
		return false
	}
	return offset <= size && n <= size-offset
}

// bytesFor returns length*elemSize, or -1 when it would overflow an int.
func bytesFor(length, elemSize int) int {
	if length < 0 || elemSize <= 0 {
		return -1
	}
	if length > math.MaxInt/elemSize {
		return -1
	}
	return length * elemSize
}
