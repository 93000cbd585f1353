// Package metrics provides Prometheus metrics for parkadmin.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parkadmin"

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// PrometheusMetrics holds the process's counters and histograms.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	BackendRequests *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec
	Mutations       *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	StreamClients   prometheus.Gauge
	Refreshes       *prometheus.CounterVec
}

// NewPrometheusMetrics creates the metrics and registers them on reg.
func NewPrometheusMetrics(reg *prometheus.Registry) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		registry: reg,
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Requests made to the parking backend by route and status code.",
		}, []string{"method", "route", "status"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Latency of parking backend requests.",
			Buckets:   latencyBuckets,
		}, []string{"method", "route"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_mutations_total",
			Help:      "Subscription mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Dashboard API requests by route and status code.",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Dashboard API request latency.",
			Buckets:   latencyBuckets,
		}, []string{"method", "path"}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dashboard_stream_clients",
			Help:      "Connected dashboard websocket clients.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_refreshes_total",
			Help:      "Scheduled catalog and registry reloads by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{
		m.BackendRequests, m.BackendDuration, m.Mutations,
		m.HTTPRequests, m.HTTPDuration, m.StreamClients, m.Refreshes,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

// ObserveRequest records one backend request. status 0 means the request
// never got a response.
func (m *PrometheusMetrics) ObserveRequest(method, route string, status int, d time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.BackendRequests.WithLabelValues(method, route, code).Inc()
	m.BackendDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveMutation records the outcome of a subscription mutation.
func (m *PrometheusMetrics) ObserveMutation(operation, outcome string) {
	m.Mutations.WithLabelValues(operation, outcome).Inc()
}

// ObserveHTTP records one dashboard API request.
func (m *PrometheusMetrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveRefresh records a scheduled reload.
func (m *PrometheusMetrics) ObserveRefresh(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
}

// SetStreamClients sets the number of connected websocket clients.
func (m *PrometheusMetrics) SetStreamClients(n int) {
	m.StreamClients.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
