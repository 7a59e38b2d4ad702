package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ndbuf_ops_resolutions_total",
		Help: "Total number of operation name resolutions",
	}, []string{"family", "outcome"})

	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ndbuf_ops_executions_total",
		Help: "Total number of operations run by the reference executor",
	}, []string{"family", "name"})

	executionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ndbuf_ops_execution_duration_seconds",
		Help:    "Time spent running operations in the reference executor",
		Buckets: prometheus.DefBuckets,
	}, []string{"family"})
)
