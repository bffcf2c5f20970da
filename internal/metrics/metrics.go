// Package metrics exposes Prometheus collectors for the client and its ops server.
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
	apiRequestsTotal           *prometheus.CounterVec
	apiRequestDurationSeconds  *prometheus.HistogramVec
	pollsTotal                 *prometheus.CounterVec
	pollWaitSeconds            *prometheus.HistogramVec
	jobsTotal                  *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	recordsTotal               *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		apiRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webcrawler_api_requests_total",
				Help: "Total number of calls made to the crawling service, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		apiRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webcrawler_api_request_duration_seconds",
				Help:    "Histogram of service call latencies, labeled by method and host.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "host"},
		)

		pollsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webcrawler_polls_total",
				Help: "Total number of status polls, labeled by job kind and observed status.",
			},
			[]string{"kind", "status"},
		)

		pollWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webcrawler_poll_wait_seconds",
				Help:    "Histogram of waits between polls, labeled by job kind.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"kind"},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webcrawler_jobs_total",
				Help: "Total number of jobs finished, labeled by kind and final status.",
			},
			[]string{"kind", "status"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webcrawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webcrawler_records_total",
				Help: "Total number of results persisted, labeled by sink and outcome.",
			},
			[]string{"sink", "outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method and code.",
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

// ObserveAPIRequest records one call to the crawling service. A code of 0
// means the call never produced a response.
func ObserveAPIRequest(method, rawURL string, code int, duration time.Duration) {
	label := strconv.Itoa(code)
	if code == 0 {
		label = "error"
	}
	apiRequestsTotal.WithLabelValues(method, label).Inc()
	apiRequestDurationSeconds.WithLabelValues(method, SanitizeSite(rawURL)).Observe(duration.Seconds())
}

// ObservePoll counts a status poll and, when a wait follows, its length.
func ObservePoll(kind, status string, wait time.Duration) {
	pollsTotal.WithLabelValues(kind, status).Inc()
	if wait > 0 {
		pollWaitSeconds.WithLabelValues(kind).Observe(wait.Seconds())
	}
}

// ObserveJob increments the job counter for the given kind and status.
func ObserveJob(kind, status string) {
	jobsTotal.WithLabelValues(kind, status).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveRecord counts a persistence attempt for one sink (blob, db, publish).
func ObserveRecord(sink string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	recordsTotal.WithLabelValues(sink, outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Observer forwards client polling events to the package collectors.
type Observer struct{}

// NewObserver initializes the collectors and returns an Observer.
func NewObserver() Observer {
	Init()
	return Observer{}
}

// ObservePoll implements the client's observer hook.
func (Observer) ObservePoll(kind, status string, wait time.Duration) {
	ObservePoll(kind, status, wait)
}

// ObserveJob implements the client's observer hook.
func (Observer) ObserveJob(kind, status string) {
	ObserveJob(kind, status)
}
