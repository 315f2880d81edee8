// Package metrics holds the Prometheus collectors shared by the HTTP
// server and the persistence layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	CounterRequests       *prometheus.CounterVec
	CounterStorageOps     *prometheus.CounterVec
	CounterSuggestions    *prometheus.CounterVec
	CounterListenerPanics prometheus.Counter

	GaugeRequests prometheus.Gauge

	HistRequestDuration prometheus.Histogram
}

// NewTestManager registers on a throwaway registry.
func NewTestManager() *Manager {
	return NewManager("liftlog", "test", prometheus.NewRegistry())
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	return &Manager{
		CounterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "The total number of incoming requests",
		}, []string{"method", "status"}),
		CounterStorageOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "storage_ops_total",
			Help:      "Persistence layer operations by name and outcome",
		}, []string{"op", "result"}),
		CounterSuggestions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "suggestions_total",
			Help:      "Weight suggestions computed, by performance level",
		}, []string{"level"}),
		CounterListenerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "listener_panics_total",
			Help:      "Tracker subscribers that panicked during notify",
		}),
		GaugeRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "current_requests",
			Help:      "Current number of requests served",
		}),
		HistRequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// StorageOp counts one persistence operation. Safe on a nil Manager.
func (m *Manager) StorageOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CounterStorageOps.WithLabelValues(op, result).Inc()
}

// Suggestion counts one computed suggestion. Safe on a nil Manager.
func (m *Manager) Suggestion(level string) {
	if m == nil {
		return
	}
	m.CounterSuggestions.WithLabelValues(level).Inc()
}

// ListenerPanic counts one recovered subscriber panic. Safe on a nil Manager.
func (m *Manager) ListenerPanic() {
	if m == nil {
		return
	}
	m.CounterListenerPanics.Inc()
}
