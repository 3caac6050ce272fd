// Package metrics exposes Prometheus counters for the turn pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics
// is valid and records nothing, which keeps tests free of registry
// setup.
type Metrics struct {
	registry *prometheus.Registry

	// Turn metrics
	TurnsTotal   *prometheus.CounterVec
	TurnDuration *prometheus.HistogramVec

	// Provider failure metrics
	SynthesisFailuresTotal  prometheus.Counter
	ReasoningFallbacksTotal *prometheus.CounterVec
	ReasoningRetriesTotal   prometheus.Counter
}

// New creates a Metrics instance with all metrics registered on a fresh
// registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "safehaven"
	}

	registry := prometheus.NewRegistry()

	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of conversation turns processed",
		},
		[]string{"input", "outcome"},
	)

	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"input"},
	)

	synthesisFailuresTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_failures_total",
			Help:      "Turns that completed without audio because speech synthesis failed",
		},
	)

	reasoningFallbacksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_fallbacks_total",
			Help:      "Turns answered with a canned fallback reply",
		},
		[]string{"reason"},
	)

	reasoningRetriesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_retries_total",
			Help:      "Retried reasoning attempts",
		},
	)

	registry.MustRegister(
		turnsTotal,
		turnDuration,
		synthesisFailuresTotal,
		reasoningFallbacksTotal,
		reasoningRetriesTotal,
	)

	return &Metrics{
		registry:                registry,
		TurnsTotal:              turnsTotal,
		TurnDuration:            turnDuration,
		SynthesisFailuresTotal:  synthesisFailuresTotal,
		ReasoningFallbacksTotal: reasoningFallbacksTotal,
		ReasoningRetriesTotal:   reasoningRetriesTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordTurn records a completed turn.
func (m *Metrics) RecordTurn(input, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(input, outcome).Inc()
	m.TurnDuration.WithLabelValues(input).Observe(duration.Seconds())
}

// RecordSynthesisFailure records a turn that lost its audio.
func (m *Metrics) RecordSynthesisFailure() {
	if m == nil {
		return
	}
	m.SynthesisFailuresTotal.Inc()
}

// RecordReasoningFallback records a turn answered with a canned reply.
func (m *Metrics) RecordReasoningFallback(reason string) {
	if m == nil {
		return
	}
	m.ReasoningFallbacksTotal.WithLabelValues(reason).Inc()
}

// RecordReasoningRetry records one retried reasoning attempt.
func (m *Metrics) RecordReasoningRetry() {
	if m == nil {
		return
	}
	m.ReasoningRetriesTotal.Inc()
}
