package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Traffic-authority API call rate by endpoint. Watch for: error vs success ratio.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream API latency per request. Watch for: p99 near the 15s timeout.
	UpstreamCallDuration *prometheus.HistogramVec

	// Time callers spend blocked in the rate limiter. Sustained waits = quota pressure.
	RateLimitWaitSeconds prometheus.Histogram

	// Cache hits by tier (memory, disk). Watch for: hit rate collapse after restart.
	CacheHitsTotal *prometheus.CounterVec

	// Cache misses by tier. Disk misses include expired records.
	CacheMissesTotal *prometheus.CounterVec

	// Disk cache I/O failures by operation. Non-fatal; watch for sustained growth.
	DiskCacheErrorsTotal *prometheus.CounterVec

	// Completed background refresh runs by cadence tier (essential, frequent, infrequent).
	RefreshRunsTotal *prometheus.CounterVec

	// Refresh runs that ended with at least one failed fetch, by tier.
	RefreshErrorsTotal *prometheus.CounterVec

	// Refresh run duration by tier.
	RefreshDuration *prometheus.HistogramVec

	// Snow detection results by level. Watch for: heavy-detection bursts during storms.
	SnowDetectionsTotal *prometheus.CounterVec

	// Inbound rate limit denials (429). Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of traffic-authority API calls",
		},
		[]string{"endpoint", "status"},
	)
	UpstreamCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamCallDurationSeconds",
			Help:    "Traffic-authority API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"endpoint", "status"},
	)
	RateLimitWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rateLimitWaitSeconds",
			Help:    "Time callers spent waiting on the outbound rate limiter",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits by tier",
		},
		[]string{"tier"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of cache misses by tier",
		},
		[]string{"tier"},
	)
	DiskCacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diskCacheErrorsTotal",
			Help: "Disk cache I/O failures by operation (read, write, delete); treated as misses",
		},
		[]string{"operation"},
	)
	RefreshRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refreshRunsTotal",
			Help: "Completed background refresh runs by cadence tier",
		},
		[]string{"tier"},
	)
	RefreshErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refreshErrorsTotal",
			Help: "Background refresh runs with at least one failed fetch, by tier",
		},
		[]string{"tier"},
	)
	RefreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refreshDurationSeconds",
			Help:    "Background refresh run duration by tier",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"tier"},
	)
	SnowDetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowDetectionsTotal",
			Help: "Snow detection results by level",
		},
		[]string{"level"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by the inbound rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamCallDuration, RateLimitWaitSeconds,
		CacheHitsTotal, CacheMissesTotal, DiskCacheErrorsTotal,
		RefreshRunsTotal, RefreshErrorsTotal, RefreshDuration,
		SnowDetectionsTotal,
		RateLimitDeniedTotal,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
