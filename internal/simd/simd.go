// Package simd holds the unrolled float64 loops used by the reference executor.
package simd

import "math"

// Map writes fn(src[i]) into dst[i]. dst and src may alias.
func Map(dst, src []float64, fn func(float64) float64) {
	n := min(len(dst), len(src))
	i := 0
	for ; i <= n-4; i += 4 {
		dst[i] = fn(src[i])
		dst[i+1] = fn(src[i+1])
		dst[i+2] = fn(src[i+2])
		dst[i+3] = fn(src[i+3])
	}
	for ; i < n; i++ {
		dst[i] = fn(src[i])
	}
}

// Clamp writes src clamped to [lo, hi] into dst.
func Clamp(dst, src []float64, lo, hi float64) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		v := src[i]
		if v < lo {
			v = lo
		} else if v > hi {
			v = hi
		}
		dst[i] = v
	}
}

// Threshold writes src[i] where it exceeds t, and t otherwise.
func Threshold(dst, src []float64, t float64) {
	n := min(len(dst), len(src))
	i := 0
	for ; i <= n-4; i += 4 {
		dst[i] = max(src[i], t)
		dst[i+1] = max(src[i+1], t)
		dst[i+2] = max(src[i+2], t)
		dst[i+3] = max(src[i+3], t)
	}
	for ; i < n; i++ {
		dst[i] = max(src[i], t)
	}
}

// Softmax writes the numerically stable softmax of src into dst.
func Softmax(dst, src []float64) {
	n := min(len(dst), len(src))
	if n == 0 {
		return
	}
	peak := src[0]
	for _, v := range src[:n] {
		if v > peak {
			peak = v
		}
	}

	var sum float64
	for i := 0; i < n; i++ {
		dst[i] = math.Exp(src[i] - peak)
		sum += dst[i]
	}

	inv := 1.0 / sum
	for i := 0; i < n; i++ {
		dst[i] *= inv
	}
}

// Sigmoid writes 1/(1+exp(-x)) for each element of src into dst.
func Sigmoid(dst, src []float64) {
	Map(dst, src, func(x float64) float64 {
		return 1 / (1 + math.Exp(-x))
	})
}

// DotProduct computes the dot product of two float64 vectors of equal length.
func DotProduct(a, b []float64) float64 {
	var sum float64
	i := 0
	for ; i <= len(a)-4; i += 4 {
		sum += a[i] * b[i]
		sum += a[i+1] * b[i+1]
		sum += a[i+2] * b[i+2]
		sum += a[i+3] * b[i+3]
	}
	for ; i < len(a); i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Broadcast sets every element of dst to v.
func Broadcast(dst []float64, v float64) {
	for i := range dst {
		dst[i] = v
	}
}
