// Package metrics holds the Prometheus collectors for the guidance
// pipeline and exposes the scrape handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "budtender"

var (
	GuidanceRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guidance_requests_total",
		Help:      "Guidance requests submitted.",
	})
	PartialFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guidance_partial_failures_total",
		Help:      "Guidance responses assembled with at least one fallback value.",
	})
	SupersededRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guidance_superseded_total",
		Help:      "In-flight guidance requests cancelled by a newer submission for the same session.",
	})
	HandleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "guidance_handle_duration_seconds",
		Help:      "Wall-clock time to assemble one guidance response.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "response_cache_hits_total",
		Help:      "Cache reads that returned a valid response.",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "response_cache_misses_total",
		Help:      "Cache reads with no entry present.",
	})
	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "response_cache_evictions_total",
		Help:      "Cache entries rejected and deleted on read, by reason.",
	}, []string{"reason"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "API requests served, by route and status class.",
	}, []string{"route", "status"})
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_rate_limited_total",
		Help:      "API requests rejected by the per-IP rate limiter.",
	})
)

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHandle records one completed guidance request.
func ObserveHandle(start time.Time, partial bool) {
	HandleDuration.Observe(time.Since(start).Seconds())
	if partial {
		PartialFailures.Inc()
	}
}
