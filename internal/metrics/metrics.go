// Package metrics provides Prometheus metrics for the navigator.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache metrics
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duopane_cache_lookups_total",
			Help: "Listing cache lookups by result",
		},
		[]string{"result"},
	)

	staleResultsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duopane_stale_results_discarded_total",
			Help: "Listings dropped because a newer navigation superseded them",
		},
	)

	// Fetch metrics
	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duopane_fetch_duration_seconds",
			Help:    "Backend listing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duopane_fetches_total",
			Help: "Backend listings by kind and status",
		},
		[]string{"kind", "status"},
	)

	partialRemoteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duopane_remote_partial_failures_total",
			Help: "Remote listings where some but not all probes failed",
		},
		[]string{"remote"},
	)

	// Drag and drop
	dropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duopane_drops_total",
			Help: "Drops by whether a target accepted them",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordStaleDiscard records a result that was never published.
func RecordStaleDiscard() {
	staleResultsDiscarded.Inc()
}

// RecordFetch records one backend listing.
func RecordFetch(kind string, duration time.Duration, success bool) {
	fetchDuration.WithLabelValues(kind).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	fetchesTotal.WithLabelValues(kind, status).Inc()
}

// RecordPartialRemoteFailure records a remote listing that lost a probe.
func RecordPartialRemoteFailure(remote string) {
	partialRemoteFailures.WithLabelValues(remote).Inc()
}

// RecordDrop records a drop and whether it hit a target.
func RecordDrop(routed bool) {
	result := "missed"
	if routed {
		result = "routed"
	}
	dropsTotal.WithLabelValues(result).Inc()
}
