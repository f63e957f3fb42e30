package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports policy engine metrics to Prometheus. Each instance
// owns its registry, so tests and multiple engines never fight over
// global collector registration.
type Metrics struct {
	registry *prometheus.Registry

	evaluationCounter *prometheus.CounterVec
	guardrailFailures *prometheus.CounterVec
	pipelineOutcomes  *prometheus.CounterVec
	applyDuration     *prometheus.HistogramVec
	activePolicies    prometheus.Gauge
	reloadCounter     *prometheus.CounterVec
}

// New creates a Metrics instance with standard policy engine collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		evaluationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policy_evaluations_total",
			Help: "Policy resolutions performed, by policy name",
		}, []string{"policy"}),

		guardrailFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policy_guardrail_failures_total",
			Help: "Guardrail runtime failures recorded during apply",
		}, []string{"guardrail"}),

		pipelineOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policy_pipeline_outcomes_total",
			Help: "Pipeline executions by policy and terminal action",
		}, []string{"policy", "action"}),

		applyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "policy_guardrail_apply_duration_seconds",
			Help:    "Wall time of guardrail application per request",
			Buckets: prometheus.DefBuckets,
		}, []string{"input_type"}),

		activePolicies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "policy_active_policies",
			Help: "Policies currently in the active store",
		}),

		reloadCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policy_store_reloads_total",
			Help: "Hot reloads of the policy store by outcome",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.evaluationCounter,
		m.guardrailFailures,
		m.pipelineOutcomes,
		m.applyDuration,
		m.activePolicies,
		m.reloadCounter,
	)
	return m
}

// RecordEvaluation counts one policy resolution.
func (m *Metrics) RecordEvaluation(policy string) {
	m.evaluationCounter.WithLabelValues(policy).Inc()
}

// RecordGuardrailFailure counts one guardrail runtime failure.
func (m *Metrics) RecordGuardrailFailure(guardrail string) {
	m.guardrailFailures.WithLabelValues(guardrail).Inc()
}

// RecordPipelineOutcome counts one pipeline execution's terminal action.
func (m *Metrics) RecordPipelineOutcome(policy, action string) {
	m.pipelineOutcomes.WithLabelValues(policy, action).Inc()
}

// RecordApplyDuration observes one guardrail application.
func (m *Metrics) RecordApplyDuration(inputType string, d time.Duration) {
	m.applyDuration.WithLabelValues(inputType).Observe(d.Seconds())
}

// SetActivePolicies sets the active policy gauge.
func (m *Metrics) SetActivePolicies(n int) {
	m.activePolicies.Set(float64(n))
}

// RecordReload counts a policy store reload attempt.
func (m *Metrics) RecordReload(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.reloadCounter.WithLabelValues(status).Inc()
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
