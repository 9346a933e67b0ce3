// Package metrics provides Prometheus metrics for the garage.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the garage
type Metrics struct {
	// Garage operation metrics
	OperationsTotal      *prometheus.CounterVec
	StoreErrorsTotal     *prometheus.CounterVec
	SkippedEntitiesTotal *prometheus.CounterVec
	Vehicles             prometheus.Gauge

	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them with reg. A nil reg gets a
// private registry, which keeps tests independent of each other.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	m := &Metrics{gatherer: reg}

	m.OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garage_operations_total",
			Help: "Total number of garage operations",
		},
		[]string{"operation", "status"},
	)

	m.StoreErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garage_store_errors_total",
			Help: "Total number of failed key-value store calls",
		},
		[]string{"operation"},
	)

	m.SkippedEntitiesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garage_skipped_entities_total",
			Help: "Persisted entries dropped while loading",
		},
		[]string{"reason"},
	)

	m.Vehicles = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "garage_vehicles",
			Help: "Number of vehicles currently in the garage",
		},
	)

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garage_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "garage_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	return m
}

// RecordOperation counts a garage operation
func (m *Metrics) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordStoreError counts a failed store call
func (m *Metrics) RecordStoreError(operation string) {
	if m == nil {
		return
	}
	m.StoreErrorsTotal.WithLabelValues(operation).Inc()
}

// RecordSkipped counts an entry dropped during load
func (m *Metrics) RecordSkipped(reason string) {
	if m == nil {
		return
	}
	m.SkippedEntitiesTotal.WithLabelValues(reason).Inc()
}

// SetVehicles updates the fleet size gauge
func (m *Metrics) SetVehicles(n int) {
	if m == nil {
		return
	}
	m.Vehicles.Set(float64(n))
}

// RecordHTTPRequest records a served request
func (m *Metrics) RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
