// Package observability holds the service's prometheus metrics.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "healthsync"

var (
	mergeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "merge",
		Name:      "dates_total",
		Help:      "Number of dates merged, grouped by outcome.",
	}, []string{"outcome"})

	fetchFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "fetch_failures_total",
		Help:      "Number of per-date fetches that failed and were treated as no data.",
	})

	generatorCallCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "annotation",
		Name:      "generator_calls_total",
		Help:      "Number of calls made to the annotation generator.",
	})

	cacheHitCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "annotation",
		Name:      "cache_hits_total",
		Help:      "Number of generations skipped because the fingerprint matched.",
	})

	generationFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "annotation",
		Name:      "generation_failures_total",
		Help:      "Number of generations that failed and left the stored annotation untouched.",
	})

	requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "annotation",
		Name:      "requests_total",
		Help:      "Number of annotation requests, grouped by reason.",
	}, []string{"reason"})

	queueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "queue_depth",
		Help:      "Number of background tasks waiting to run.",
	})

	httpRequestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of HTTP requests served, labeled by method, route pattern and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving HTTP requests, labeled by route pattern.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(
		mergeCounter,
		fetchFailureCounter,
		generatorCallCounter,
		cacheHitCounter,
		generationFailureCounter,
		requestCounter,
		queueDepthGauge,
		httpRequestCounter,
		httpDuration,
	)
}

// RecordMerge counts one merged date. outcome is "updated" or "unchanged".
func RecordMerge(outcome string) {
	mergeCounter.WithLabelValues(outcome).Inc()
}

// RecordFetchFailure counts one failed fetch.
func RecordFetchFailure() {
	fetchFailureCounter.Inc()
}

// RecordGeneratorCall counts one generator invocation.
func RecordGeneratorCall() {
	generatorCallCounter.Inc()
}

// RecordCacheHit counts one fingerprint cache hit.
func RecordCacheHit() {
	cacheHitCounter.Inc()
}

// RecordGenerationFailure counts one failed generation.
func RecordGenerationFailure() {
	generationFailureCounter.Inc()
}

// RecordRequest counts one annotation request.
func RecordRequest(reason string) {
	requestCounter.WithLabelValues(reason).Inc()
}

// SetQueueDepth reports the current background queue length.
func SetQueueDepth(n int) {
	queueDepthGauge.Set(float64(n))
}

// RecordHTTPRequest counts one served request. route must be the router
// pattern, not the raw path, to keep label cardinality bounded.
func RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	httpRequestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
