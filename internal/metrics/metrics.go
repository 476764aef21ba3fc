// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperFetchesTotal         *prometheus.CounterVec
	scraperBytesTotal           *prometheus.CounterVec
	scraperFetchDurationSeconds *prometheus.HistogramVec
	scraperRetriesTotal         prometheus.Counter
	scraperTasksTotal           *prometheus.CounterVec
	scraperActiveTasks          prometheus.Gauge
	scraperBatchesTotal         prometheus.Counter
	scraperRateLimitDelays      *prometheus.HistogramVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scraperFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetches_total",
				Help: "Total number of fetches performed, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		scraperBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		scraperFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies including retries, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		scraperRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_retries_total",
				Help: "Total number of retry attempts scheduled.",
			},
		)

		scraperTasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_tasks_total",
				Help: "Total number of tasks processed, labeled by status.",
			},
			[]string{"status"},
		)

		scraperActiveTasks = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_tasks",
				Help: "Number of tasks currently in flight.",
			},
		)

		scraperBatchesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_batches_total",
				Help: "Total number of batches processed.",
			},
		)

		scraperRateLimitDelays = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one completed fetch attempt sequence.
func ObserveFetch(site string, status string, bytesFetched int, duration time.Duration) {
	sanitized := SanitizeSite(site)
	scraperFetchesTotal.WithLabelValues(sanitized, status).Inc()
	if bytesFetched > 0 {
		scraperBytesTotal.WithLabelValues(sanitized).Add(float64(bytesFetched))
	}
	scraperFetchDurationSeconds.WithLabelValues(sanitized).Observe(duration.Seconds())
}

// IncRetries increments the retry counter.
func IncRetries() {
	scraperRetriesTotal.Inc()
}

// ObserveTask increments the task counter for the given result status.
func ObserveTask(status string) {
	scraperTasksTotal.WithLabelValues(status).Inc()
}

// IncBatches increments the processed batch counter.
func IncBatches() {
	scraperBatchesTotal.Inc()
}

// IncActiveTasks increments the in-flight tasks gauge.
func IncActiveTasks() {
	scraperActiveTasks.Inc()
}

// DecActiveTasks decrements the in-flight tasks gauge.
func DecActiveTasks() {
	scraperActiveTasks.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	scraperRateLimitDelays.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
