// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stream metrics
	StreamReconnects    prometheus.Counter
	StreamFramesDropped prometheus.Counter
	TradesProcessed     prometheus.Counter

	// Query metrics
	QueryRefetchFailures *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec

	// Response cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_dashboard"
	}

	return &Metrics{
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of websocket reconnect attempts",
		}),
		StreamFramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_dropped_total",
			Help:      "Total number of malformed or unparseable frames dropped",
		}),
		TradesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "trades_processed_total",
			Help:      "Total number of trade events delivered",
		}),

		QueryRefetchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "refetch_failures_total",
			Help:      "Total number of failed fetches by query kind",
		}, []string{"kind"}),

		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of response cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of response cache misses",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordStreamReconnect increments the reconnect attempts counter.
func RecordStreamReconnect() {
	DefaultMetrics.StreamReconnects.Inc()
}

// RecordFrameDropped increments the dropped frames counter.
func RecordFrameDropped() {
	DefaultMetrics.StreamFramesDropped.Inc()
}

// RecordTradeProcessed increments the trades processed counter.
func RecordTradeProcessed() {
	DefaultMetrics.TradesProcessed.Inc()
}

// RecordQueryRefetchFailure records a failed fetch. Query names are keyed by
// their parameters ("markets:usd:20:1"); only the kind prefix is used as a
// label to keep cardinality bounded.
func RecordQueryRefetchFailure(query string) {
	kind := query
	if i := strings.IndexByte(query, ':'); i >= 0 {
		kind = query[:i]
	}
	DefaultMetrics.QueryRefetchFailures.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, route string, status int, seconds float64) {
	if route == "" {
		route = "unmatched"
	}
	DefaultMetrics.HTTPRequestDuration.
		WithLabelValues(method, route, strconv.Itoa(status)).
		Observe(seconds)
}

// RecordCacheHit increments the response cache hit counter.
func RecordCacheHit() {
	DefaultMetrics.CacheHits.Inc()
}

// RecordCacheMiss increments the response cache miss counter.
func RecordCacheMiss() {
	DefaultMetrics.CacheMisses.Inc()
}
