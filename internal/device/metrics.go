package device

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	poolHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ndbuf_device_pool_hits_total",
		Help: "Total number of allocations served from the device buffer pool",
	})

	poolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ndbuf_device_pool_misses_total",
		Help: "Total number of device buffer pool misses (fresh allocations)",
	})

	poolSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ndbuf_device_pool_size_bytes",
		Help: "Current total size of buffers held in the pool in bytes",
	})

	poolBuffers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ndbuf_device_pool_buffers_count",
		Help: "Current total number of buffers held in the pool",
	})

	allocatedBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ndbuf_device_allocated_bytes",
		Help: "Bytes of device memory currently allocated",
	}, []string{"device"})

	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ndbuf_device_transfers_total",
		Help: "Total number of completed host/device transfers",
	}, []string{"device", "direction"})

	transferBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ndbuf_device_transfer_bytes_total",
		Help: "Total bytes moved by completed transfers",
	}, []string{"device", "direction"})

	transferFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ndbuf_device_transfer_failures_total",
		Help: "Total number of failed or rejected transfers",
	}, []string{"device", "direction"})

	transferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ndbuf_device_transfer_duration_seconds",
		Help:    "Time spent blocked in host/device transfers",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"device", "direction"})
)
