package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the orchestrator.
type Metrics struct {
	registry *prometheus.Registry

	// Turn metrics
	TurnsTotal            *prometheus.CounterVec
	TurnDuration          *prometheus.HistogramVec
	RoutingDecisionsTotal *prometheus.CounterVec
	FanoutSize            prometheus.Histogram
	SynthesisFallbacks    prometheus.Counter

	// Backend metrics
	BackendRequestsTotal  *prometheus.CounterVec
	BackendFallbacksTotal prometheus.Counter
	TokensTotal           *prometheus.CounterVec

	// Retrieval metrics
	RetrievalRequestsTotal     prometheus.Counter
	RetrievalDegradationsTotal prometheus.Counter
}

// New creates and registers all metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turns_total",
				Help: "Total number of conversation turns processed",
			},
			[]string{"course_id", "status"},
		),
		TurnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "turn_duration_seconds",
				Help:    "Duration of conversation turns in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"course_id"},
		),
		RoutingDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routing_decisions_total",
				Help: "Total routing decisions by kind",
			},
			[]string{"decision"},
		),
		FanoutSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fanout_size",
				Help:    "Number of agents dispatched per multi-agent turn",
				Buckets: []float64{1, 2, 3, 4, 5, 8},
			},
		),
		SynthesisFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "synthesis_fallbacks_total",
				Help: "Total synthesis failures recovered by returning a single agent response",
			},
		),

		BackendRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_requests_total",
				Help: "Total backend completion requests",
			},
			[]string{"backend", "status"},
		),
		BackendFallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_fallbacks_total",
				Help: "Total fallback attempts to an alternate backend",
			},
		),
		TokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokens_total",
				Help: "Total tokens consumed by backend and direction",
			},
			[]string{"backend", "direction"},
		),

		RetrievalRequestsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieval_requests_total",
				Help: "Total retrieval collaborator calls",
			},
		),
		RetrievalDegradationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieval_degradations_total",
				Help: "Total retrieval failures degraded to empty context",
			},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.TurnsTotal)
	m.registry.MustRegister(m.TurnDuration)
	m.registry.MustRegister(m.RoutingDecisionsTotal)
	m.registry.MustRegister(m.FanoutSize)
	m.registry.MustRegister(m.SynthesisFallbacks)

	m.registry.MustRegister(m.BackendRequestsTotal)
	m.registry.MustRegister(m.BackendFallbacksTotal)
	m.registry.MustRegister(m.TokensTotal)

	m.registry.MustRegister(m.RetrievalRequestsTotal)
	m.registry.MustRegister(m.RetrievalDegradationsTotal)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
