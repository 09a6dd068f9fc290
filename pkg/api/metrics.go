package api

import (
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"autobulk/pkg/router"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autobulk_http_requests_total",
			Help: "Gateway requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autobulk_http_request_duration_seconds",
			Help:    "Gateway request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	acceptedOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autobulk_intake_accepted_ops_total",
			Help: "Operations accepted through the intake endpoint.",
		},
		[]string{"target"},
	)

	heapAlloc = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "autobulk_heap_alloc_bytes",
			Help: "Current heap allocation in bytes.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapAlloc)
		},
	)

	gcPauseTotal = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "autobulk_gc_pause_total_ns",
			Help: "Total GC pause time in nanoseconds.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.PauseTotalNs)
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, acceptedOps, heapAlloc, gcPauseTotal)
}

// instrument records request count and latency labelled by route pattern.
// Unmatched and rejected requests share the "unmatched" label.
func instrument(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		route := router.Pattern(ctx)
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(route, strconv.Itoa(ctx.Response.StatusCode())).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
