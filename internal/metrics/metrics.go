// Package metrics provides Prometheus metrics for recognition sessions and the attendance ledger
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Save results used as the "result" label of attendance_ledger_saves_total.
const (
	ResultSuccess = "success"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

// Metrics contains the Prometheus metrics of the attendance service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Recognition metrics
	cyclesTotal       prometheus.Counter
	marksTotal        prometheus.Counter
	unknownFacesTotal prometheus.Counter
	cycleDuration     prometheus.Histogram
	activeSessions    prometheus.Gauge

	// Ledger metrics
	savesTotal        *prometheus.CounterVec
	recordsSavedTotal prometheus.Counter
}

// New creates and registers the metrics on registry
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Registry returns the registry the metrics were registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) initMetrics() {
	m.cyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_recognition_cycles_total",
		Help: "Total number of detection cycles run by recognition sessions",
	})

	m.marksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_recognition_marks_total",
		Help: "Total number of face scan mark events emitted",
	})

	m.unknownFacesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_recognition_unknown_faces_total",
		Help: "Total number of detected faces that matched no enrolled student",
	})

	m.cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "attendance_recognition_cycle_duration_seconds",
		Help: "Time taken by one detection cycle including the embedding request",
		// 10ms to ~5s
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	m.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_active_sessions",
		Help: "Number of recognition sessions currently active",
	})

	m.savesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_ledger_saves_total",
			Help: "Total number of attendance batch saves",
		},
		[]string{"result"}, // result: success, invalid, error
	)

	m.recordsSavedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_ledger_records_saved_total",
		Help: "Total number of attendance records committed",
	})
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.cyclesTotal.Describe(ch)
	m.marksTotal.Describe(ch)
	m.unknownFacesTotal.Describe(ch)
	m.cycleDuration.Describe(ch)
	m.activeSessions.Describe(ch)
	m.savesTotal.Describe(ch)
	m.recordsSavedTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.cyclesTotal.Collect(ch)
	m.marksTotal.Collect(ch)
	m.unknownFacesTotal.Collect(ch)
	m.cycleDuration.Collect(ch)
	m.activeSessions.Collect(ch)
	m.savesTotal.Collect(ch)
	m.recordsSavedTotal.Collect(ch)
}

// RecordCycle records one detection cycle, its duration and outcome counts
func (m *Metrics) RecordCycle(duration time.Duration, marks, unknown int) {
	if m == nil {
		return
	}
	m.cyclesTotal.Inc()
	m.cycleDuration.Observe(duration.Seconds())
	m.marksTotal.Add(float64(marks))
	m.unknownFacesTotal.Add(float64(unknown))
}

// SessionStarted increments the active session gauge
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionStopped decrements the active session gauge
func (m *Metrics) SessionStopped() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// RecordSave records a ledger save attempt with its result and committed record count
func (m *Metrics) RecordSave(result string, records int) {
	if m == nil {
		return
	}
	m.savesTotal.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		m.recordsSavedTotal.Add(float64(records))
	}
}
