// Package metrics holds the Prometheus collectors for control operations,
// deployments and inbound state reports.
//
// All recording methods are safe to call on a nil *Metrics, so components
// can be constructed without metrics in tests and one-shot CLI commands.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "steward"

// Report results recorded by RecordStateReport. Peer counts state
// envelopes applied from other steward processes.
const (
	ReportApplied = "applied"
	ReportDropped = "dropped"
	ReportInvalid = "invalid"
	ReportPeer    = "peer"
)

// Metrics wraps a private Prometheus registry and the collectors registered
// on it.
type Metrics struct {
	registry *prometheus.Registry

	ControlOperations *prometheus.CounterVec
	ControlDuration   *prometheus.HistogramVec
	Deployments       *prometheus.CounterVec
	StepDuration      *prometheus.HistogramVec
	StateReports      *prometheus.CounterVec
}

// New creates the collectors on their own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ControlOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_operations_total",
			Help:      "Total number of control operations by outcome classification",
		}, []string{"kind", "operation", "classification"}),
		ControlDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "control_operation_duration_seconds",
			Help:      "Duration of control operations in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind", "operation"}),
		Deployments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployments_total",
			Help:      "Total number of deployment pipelines by result",
		}, []string{"kind", "result"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deployment_step_duration_seconds",
			Help:      "Duration of deployment pipeline steps in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		StateReports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_reports_total",
			Help:      "Total number of inbound agent state reports by result",
		}, []string{"result"}),
	}

	reg.MustRegister(m.ControlOperations, m.ControlDuration, m.Deployments, m.StepDuration, m.StateReports)
	return m
}

// Registry exposes the private registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordControl records one finished control operation.
func (m *Metrics) RecordControl(kind, operation, classification string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ControlOperations.WithLabelValues(kind, operation, classification).Inc()
	m.ControlDuration.WithLabelValues(kind, operation).Observe(duration.Seconds())
}

// RecordDeployment records one finished deployment pipeline.
func (m *Metrics) RecordDeployment(kind, result string) {
	if m == nil {
		return
	}
	m.Deployments.WithLabelValues(kind, result).Inc()
}

// RecordStep records the duration of one pipeline step.
func (m *Metrics) RecordStep(step string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordStateReport records how an inbound report was handled.
func (m *Metrics) RecordStateReport(result string) {
	if m == nil {
		return
	}
	m.StateReports.WithLabelValues(result).Inc()
}
