package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records backend attempts, failovers and request durations. A nil
// *Metrics records nothing.
type Metrics struct {
	attempts  *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics registers the orchestrator metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kulkasku_backend_attempts_total",
				Help: "Backend calls by flow, backend and outcome",
			},
			[]string{"flow", "backend", "outcome"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kulkasku_backend_fallbacks_total",
				Help: "Requests that failed over from the primary to the secondary backend",
			},
			[]string{"flow"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kulkasku_request_duration_seconds",
				Help:    "Time spent serving a flow, backend calls included",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"flow", "result"},
		),
	}
}

func (m *Metrics) attempt(flow string, backend Backend, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(flow, string(backend), outcome).Inc()
}

func (m *Metrics) fallback(flow string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(flow).Inc()
}

func (m *Metrics) observe(flow string, success bool, seconds float64) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.duration.WithLabelValues(flow, result).Observe(seconds)
}
