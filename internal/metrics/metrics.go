// Package metrics exposes Prometheus collectors for the conversion service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	conversionsTotal           *prometheus.CounterVec
	conversionDurationSeconds  prometheus.Histogram
	rateLimitDeniedTotal       *prometheus.CounterVec
	botRequestsTotal           *prometheus.CounterVec
	stackExportsTotal          *prometheus.CounterVec
	billingEventsTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		conversionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conversions_total",
				Help: "Total conversions attempted, labeled by tier and outcome.",
			},
			[]string{"tier", "outcome"},
		)

		conversionDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "conversion_duration_seconds",
				Help:    "Histogram of end-to-end conversion latencies.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		rateLimitDeniedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_denied_total",
				Help: "Total requests denied by the quota, labeled by tier.",
			},
			[]string{"tier"},
		)

		botRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_requests_total",
				Help: "Total read requests classified as bots, labeled by category.",
			},
			[]string{"category"},
		)

		stackExportsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stack_exports_total",
				Help: "Total context stack exports, labeled by format.",
			},
			[]string{"format"},
		)

		billingEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_events_total",
				Help: "Total billing webhook deliveries, labeled by type and outcome.",
			},
			[]string{"type", "outcome"},
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveConversion records one conversion attempt.
func ObserveConversion(tier, outcome string, duration time.Duration) {
	conversionsTotal.WithLabelValues(tier, outcome).Inc()
	if outcome == "success" {
		conversionDurationSeconds.Observe(duration.Seconds())
	}
}

// ObserveRateLimitDenied counts a quota rejection.
func ObserveRateLimitDenied(tier string) {
	rateLimitDeniedTotal.WithLabelValues(tier).Inc()
}

// ObserveBotRequest counts a read request attributed to a bot.
func ObserveBotRequest(category string) {
	botRequestsTotal.WithLabelValues(category).Inc()
}

// ObserveStackExport counts one stack export.
func ObserveStackExport(format string) {
	stackExportsTotal.WithLabelValues(format).Inc()
}

// ObserveBillingEvent counts one webhook delivery.
func ObserveBillingEvent(eventType, outcome string) {
	billingEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
