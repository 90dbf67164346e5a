// Package metrics exposes Prometheus instrumentation for the radar.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the radar's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so components can be tested without a registry.
type Metrics struct {
	registry *prometheus.Registry

	blocksScanned       prometheus.Counter
	deploymentsSeen     prometheus.Counter
	deploymentsSkipped  prometheus.Counter
	evaluations         *prometheus.CounterVec
	evaluationsDegraded *prometheus.CounterVec
	alertsDispatched    *prometheus.CounterVec
	sinkFailures        *prometheus.CounterVec
	lastHeight          prometheus.Gauge
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		blocksScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "riskradar",
			Name:      "blocks_scanned_total",
			Help:      "Blocks fully drained by the scan loop.",
		}),
		deploymentsSeen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "riskradar",
			Name:      "deployments_seen_total",
			Help:      "New contract deployments handed to the pipeline.",
		}),
		deploymentsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "riskradar",
			Name:      "deployments_skipped_total",
			Help:      "Deployments skipped because their event id was already processed.",
		}),
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskradar",
			Name:      "evaluations_total",
			Help:      "Risk evaluations by tier.",
		}, []string{"tier"}),
		evaluationsDegraded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskradar",
			Name:      "evaluations_degraded_total",
			Help:      "Evaluations substituted with the neutral fallback, by tier.",
		}, []string{"tier"}),
		alertsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskradar",
			Name:      "alerts_dispatched_total",
			Help:      "Alerts handed to the dispatcher, by tier.",
		}, []string{"tier"}),
		sinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskradar",
			Name:      "sink_failures_total",
			Help:      "Failed channel sends, by sink.",
		}, []string{"sink"}),
		lastHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "riskradar",
			Name:      "last_processed_height",
			Help:      "Last fully-processed block height.",
		}),
	}
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// BlockScanned counts a fully-drained block.
func (m *Metrics) BlockScanned() {
	if m == nil {
		return
	}
	m.blocksScanned.Inc()
}

// DeploymentSeen counts a deployment handed to the pipeline.
func (m *Metrics) DeploymentSeen() {
	if m == nil {
		return
	}
	m.deploymentsSeen.Inc()
}

// DeploymentSkipped counts an idempotence-guard skip.
func (m *Metrics) DeploymentSkipped() {
	if m == nil {
		return
	}
	m.deploymentsSkipped.Inc()
}

// Evaluation counts one evaluator pass.
func (m *Metrics) Evaluation(tier string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(tier).Inc()
}

// EvaluationDegraded counts a fallback substitution.
func (m *Metrics) EvaluationDegraded(tier string) {
	if m == nil {
		return
	}
	m.evaluationsDegraded.WithLabelValues(tier).Inc()
}

// AlertDispatched counts an alert handed to the dispatcher.
func (m *Metrics) AlertDispatched(tier string) {
	if m == nil {
		return
	}
	m.alertsDispatched.WithLabelValues(tier).Inc()
}

// SinkFailure counts one failed channel send.
func (m *Metrics) SinkFailure(sink string) {
	if m == nil {
		return
	}
	m.sinkFailures.WithLabelValues(sink).Inc()
}

// ObserveHeight records the last fully-processed height.
func (m *Metrics) ObserveHeight(height uint64) {
	if m == nil {
		return
	}
	m.lastHeight.Set(float64(height))
}
