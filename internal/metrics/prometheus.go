// Package metrics provides Prometheus metrics for relaunch.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for relaunch.
type Metrics struct {
	// Update cycle metrics
	CyclesTotal    *prometheus.CounterVec
	CycleDuration  *prometheus.HistogramVec
	CyclesInFlight prometheus.Gauge
	RetriesTotal   prometheus.Counter

	// Refresh metrics
	LastCheckTimestamp prometheus.Gauge
	SinceLastCheck     prometheus.Gauge
	AppState           *prometheus.GaugeVec

	// System metrics
	Uptime     prometheus.Gauge
	GoRoutines prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaunch_update_cycles_total",
			Help: "Total number of update cycles by outcome",
		},
		[]string{"outcome"},
	)

	m.CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relaunch_update_cycle_duration_seconds",
			Help:    "Duration of admitted update cycles",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
		},
		[]string{"outcome"},
	)

	m.CyclesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relaunch_update_in_progress",
			Help: "1 while an update cycle is running",
		},
	)

	m.RetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relaunch_update_retries_total",
			Help: "Total number of startup retries scheduled",
		},
	)

	m.LastCheckTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relaunch_last_check_timestamp_seconds",
			Help: "Unix time of the last admitted update check",
		},
	)

	m.SinceLastCheck = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relaunch_seconds_since_last_check",
			Help: "Seconds elapsed since the last admitted update check",
		},
	)

	m.AppState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relaunch_app_state",
			Help: "Current application lifecycle state (1 for the active label)",
		},
		[]string{"state"},
	)

	m.Uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relaunch_uptime_seconds",
			Help: "Process uptime in seconds",
		},
	)

	m.GoRoutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relaunch_goroutines",
			Help: "Number of goroutines",
		},
	)

	m.registry.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.CyclesInFlight,
		m.RetriesTotal,
		m.LastCheckTimestamp,
		m.SinceLastCheck,
		m.AppState,
		m.Uptime,
		m.GoRoutines,
	)

	// Register default Go metrics
	m.registry.MustRegister(prometheus.NewGoCollector())
	m.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
