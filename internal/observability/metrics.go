// Package observability owns the Prometheus metrics and OpenTelemetry tracing
// setup. Metrics satisfies the recorder interfaces of the ensemble and llm
// packages so neither imports Prometheus directly.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

const namespace = "driftradar"

// outcomeOK labels a successful run or request.
const outcomeOK = "ok"

// Metrics holds every collector the service exports.
type Metrics struct {
	registry prometheus.Gatherer

	runs        *prometheus.CounterVec
	ensembleDur prometheus.Histogram
	ensembles   *prometheus.CounterVec
	requests    *prometheus.CounterVec
	corrections *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests
// to avoid duplicate registration panics on the default registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ensemble_runs_total",
			Help:      "Ensemble runs by mode and outcome code.",
		}, []string{"mode", "outcome"}),
		ensembleDur: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ensemble_duration_seconds",
			Help:      "Wall time of a whole ensemble dispatch.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90, 120},
		}),
		ensembles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ensembles_total",
			Help:      "Ensemble dispatches by result (complete, partial, failed).",
		}, []string{"result"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyze_requests_total",
			Help:      "Analysis requests by endpoint and outcome code.",
		}, []string{"endpoint", "code"}),
		corrections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_corrections_total",
			Help:      "Judgments repaired by a deterministic guardrail.",
		}, []string{"guardrail"}),
	}
}

// RecordRun counts one finished ensemble run. An empty code is a success.
func (m *Metrics) RecordRun(mode string, code schema.ErrorCode) {
	m.runs.WithLabelValues(mode, outcome(code)).Inc()
}

// RecordEnsemble observes one ensemble dispatch.
func (m *Metrics) RecordEnsemble(d time.Duration, successes, failures int) {
	m.ensembleDur.Observe(d.Seconds())
	result := "complete"
	switch {
	case successes < 2:
		result = "failed"
	case failures > 0:
		result = "partial"
	}
	m.ensembles.WithLabelValues(result).Inc()
}

// RecordCorrection counts one guardrail correction.
func (m *Metrics) RecordCorrection(guardrail string) {
	m.corrections.WithLabelValues(guardrail).Inc()
}

// RecordRequest counts one API request. An empty code is a success.
func (m *Metrics) RecordRequest(endpoint string, code schema.ErrorCode) {
	m.requests.WithLabelValues(endpoint, outcome(code)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(code schema.ErrorCode) string {
	if code == "" {
		return outcomeOK
	}
	return string(code)
}
