// Package metrics exposes Prometheus collectors for album rendering.
//
// Render metrics:
//   - album_render_jobs_total: finished renders (counter), labels: status
//   - album_render_duration_seconds: wall time of a render (histogram)
//   - album_render_pages: pages per successful album (histogram)
//
// Image metrics:
//   - album_image_resolution_failures_total: dropped images (counter), labels: kind
//   - album_image_cache_requests_total: cache lookups (counter), labels: result
//
// Storage metrics:
//   - album_object_store_breaker_state: 0=closed, 1=half-open, 2=open (gauge), labels: name
//
// HTTP metrics:
//   - album_http_requests_total (counter), labels: method, route, status
//   - album_http_request_duration_seconds (histogram), labels: method, route
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RenderJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "album_render_jobs_total",
			Help: "Finished album renders by terminal status",
		},
		[]string{"status"},
	)

	RenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "album_render_duration_seconds",
			Help:    "Wall time of one album render",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	RenderPages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "album_render_pages",
			Help:    "Page count of successful albums",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
		},
	)

	ImageResolutionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "album_image_resolution_failures_total",
			Help: "Images dropped from albums by failure kind",
		},
		[]string{"kind"},
	)

	ImageCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "album_image_cache_requests_total",
			Help: "Image cache lookups by result",
		},
		[]string{"result"},
	)

	ObjectStoreBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "album_object_store_breaker_state",
			Help: "Object store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "album_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "album_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordRender records one finished render. pages is ignored for failures.
func RecordRender(status string, d time.Duration, pages int) {
	RenderJobs.WithLabelValues(status).Inc()
	RenderDuration.Observe(d.Seconds())
	if status == "succeeded" && pages > 0 {
		RenderPages.Observe(float64(pages))
	}
}

// RecordResolutionFailure counts one dropped image.
func RecordResolutionFailure(kind string) {
	ImageResolutionFailures.WithLabelValues(kind).Inc()
}

// RecordCacheLookup counts one image cache lookup ("hit", "miss" or "error").
func RecordCacheLookup(result string) {
	ImageCacheRequests.WithLabelValues(result).Inc()
}

// SetBreakerState publishes the numeric state of a named circuit breaker.
func SetBreakerState(name string, state int) {
	ObjectStoreBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
