package aggregator

import "github.com/prometheus/client_golang/prometheus"

var (
	flushBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autobulk_flush_batches_total",
			Help: "Number of batches handed to an executor.",
		},
		[]string{"target", "trigger"},
	)

	flushedOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autobulk_flushed_ops_total",
			Help: "Number of operations flushed successfully.",
		},
		[]string{"target"},
	)

	flushFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autobulk_flush_failures_total",
			Help: "Number of batches whose flush returned an error or panicked.",
		},
		[]string{"target"},
	)

	lostOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autobulk_lost_ops_total",
			Help: "Number of operations discarded after a failed flush.",
		},
		[]string{"target"},
	)

	flushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autobulk_flush_duration_seconds",
			Help:    "Wall time of executor flush calls.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"target"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autobulk_queue_depth",
			Help: "Operations waiting in an aggregator queue.",
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(flushBatches)
	prometheus.MustRegister(flushedOps)
	prometheus.MustRegister(flushFailures)
	prometheus.MustRegister(lostOps)
	prometheus.MustRegister(flushDuration)
	prometheus.MustRegister(queueDepth)
}
