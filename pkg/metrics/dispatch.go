package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records webhook ingestion and print dispatch outcomes.
type DispatchMetrics struct {
	callbacks        *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Inbound gateway callbacks by outcome.",
	}, []string{"outcome"})
	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "print_dispatch_total",
		Help: "Print job dispatch attempts by route and outcome.",
	}, []string{"route", "outcome"})
	dispatchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "print_dispatch_duration_seconds",
		Help:    "Duration of print dispatch attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	reg.MustRegister(callbacks, dispatches, dispatchDuration)
	return &DispatchMetrics{
		callbacks:        callbacks,
		dispatches:       dispatches,
		dispatchDuration: dispatchDuration,
	}
}

// IncCallback increments the callback counter for the given outcome.
func (m *DispatchMetrics) IncCallback(outcome string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDispatch increments the dispatch counter for the given route and outcome.
func (m *DispatchMetrics) IncDispatch(route, outcome string) {
	if m == nil || m.dispatches == nil {
		return
	}
	m.dispatches.WithLabelValues(normalizeLabel(route), normalizeLabel(outcome)).Inc()
}

// ObserveDispatchDuration records how long a dispatch attempt took.
func (m *DispatchMetrics) ObserveDispatchDuration(route string, duration time.Duration) {
	if m == nil || m.dispatchDuration == nil {
		return
	}
	m.dispatchDuration.WithLabelValues(normalizeLabel(route)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
