// Package metrics provides Prometheus metrics for the refinement pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adrefiner"

// Metrics holds the Prometheus instruments for refinement outcomes and
// model-call latency.
type Metrics struct {
	RefinementsTotal   *prometheus.CounterVec
	ParseFailuresTotal *prometheus.CounterVec
	ModelCallDuration  prometheus.Histogram
	RefinementDuration prometheus.Histogram
}

// Default is the instance wired to the global registry.
var Default = New(prometheus.DefaultRegisterer)

// New creates the metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RefinementsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refinements_total",
			Help:      "Total refinement calls by terminal status",
		}, []string{"status"}),
		ParseFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Model responses with no recoverable JSON payload",
		}, []string{"kind"}),
		ModelCallDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Latency of the model transport call in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		RefinementDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refinement_duration_seconds",
			Help:      "End-to-end refinement latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}
}

// RecordRefinement records one finished refinement with its terminal status.
func (m *Metrics) RecordRefinement(status string, seconds float64) {
	m.RefinementsTotal.WithLabelValues(status).Inc()
	m.RefinementDuration.Observe(seconds)
}

// RecordParseFailure records a response that yielded no payload.
func (m *Metrics) RecordParseFailure(kind string) {
	m.ParseFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordModelCall records the transport latency of one model invocation.
func (m *Metrics) RecordModelCall(seconds float64) {
	m.ModelCallDuration.Observe(seconds)
}
