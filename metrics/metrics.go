// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIMetrics counts calls per API and the business status each returned.
// Each instance owns its registry so tests can build as many as they like.
type APIMetrics struct {
	Registry        *prometheus.Registry
	Requests        *prometheus.CounterVec
	Statuses        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AnalyticsErrors prometheus.Counter
}

func NewAPIMetrics(namespace string) *APIMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &APIMetrics{
		Registry: reg,
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total API requests by api name and HTTP code",
			},
			[]string{"api", "code"},
		),
		Statuses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_status_total",
				Help:      "API responses by api name and status code string",
			},
			[]string{"api", "status", "success"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Histogram of API handler latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"api"},
		),
		AnalyticsErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analytics_publish_errors_total",
				Help:      "Analytics actions saved but not published",
			},
		),
	}
}

// Observe records one finished request
func (m *APIMetrics) Observe(api string, code int, elapsed time.Duration) {
	m.Requests.WithLabelValues(api, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(api).Observe(elapsed.Seconds())
}

// ObserveStatus records the status string a handler answered with
func (m *APIMetrics) ObserveStatus(api, status string, success bool) {
	m.Statuses.WithLabelValues(api, status, strconv.FormatBool(success)).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *APIMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
