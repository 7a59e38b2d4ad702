package device

import "sync"

// bufferPool recycles freed device regions by log2 size bucket.
type bufferPool struct {
	mu       sync.Mutex
	buckets  map[int][][]byte
	maxBytes int64
	held     int64
}

func newBufferPool(maxBytes int64) *bufferPool {
	return &bufferPool{
		buckets:  make(map[int][][]byte),
		maxBytes: maxBytes,
	}
}

// get returns a zeroed region of exactly size bytes, reusing a pooled one when
// a bucket within two steps of the requested size has a fit.
func (p *bufferPool) get(size int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := getBucket(size)
	for i := bucket; i <= bucket+2; i++ {
		list := p.buckets[i]
		bestIdx := -1
		for idx, buf := range list {
			if cap(buf) >= size && (bestIdx == -1 || cap(buf) < cap(list[bestIdx])) {
				bestIdx = idx
			}
		}
		if bestIdx == -1 {
			continue
		}
		buf := list[bestIdx][:size]
		p.buckets[i] = append(list[:bestIdx], list[bestIdx+1:]...)
		p.held -= int64(cap(buf))

		poolHits.Inc()
		poolSizeBytes.Sub(float64(cap(buf)))
		poolBuffers.Dec()

		clear(buf)
		return buf
	}

	poolMisses.Inc()
	return make([]byte, size)
}

// put hands a region back. Regions that would push the pool past maxBytes are dropped.
func (p *bufferPool) put(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	size := int64(cap(buf))
	if p.maxBytes > 0 && p.held+size > p.maxBytes {
		return
	}
	bucket := getBucket(cap(buf))
	p.buckets[bucket] = append(p.buckets[bucket], buf[:cap(buf)])
	p.held += size

	poolSizeBytes.Add(float64(size))
	poolBuffers.Inc()
}
