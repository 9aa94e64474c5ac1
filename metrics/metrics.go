// Package metrics exposes Prometheus collectors for research runs.
//
// All methods are safe on a nil *Metrics, so components can take an optional
// *Metrics without checking it.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smallnest/researchflow/graph"
)

const namespace = "researchflow"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	StageDuration *prometheus.HistogramVec
	StepOutcomes  *prometheus.CounterVec
	ExternalCalls *prometheus.CounterVec
	Runs          *prometheus.CounterVec
	HTTPRequests  *prometheus.CounterVec
}

// New creates and registers every collector. Go runtime and process
// collectors are registered too so /metrics is useful on its own.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"stage", "outcome"}),
		StepOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_outcomes_total",
			Help:      "Research steps by final status.",
		}, []string{"status"}),
		ExternalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "Calls to search and extraction services by outcome.",
		}, []string{"service", "outcome"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed research runs by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		m.StageDuration,
		m.StepOutcomes,
		m.ExternalCalls,
		m.Runs,
		m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) StepOutcome(status string) {
	if m == nil {
		return
	}
	m.StepOutcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) ExternalCall(service, outcome string) {
	if m == nil {
		return
	}
	m.ExternalCalls.WithLabelValues(service, outcome).Inc()
}

func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// StageListener records node durations from a state graph.
func (m *Metrics) StageListener() graph.NodeListener {
	return graph.NodeListenerFunc(func(_ context.Context, info graph.NodeEventInfo) {
		if m == nil {
			return
		}
		switch info.Event {
		case graph.NodeEventComplete:
			m.StageDuration.WithLabelValues(info.Node, "ok").Observe(info.Duration.Seconds())
		case graph.NodeEventError:
			m.StageDuration.WithLabelValues(info.Node, "error").Observe(info.Duration.Seconds())
		}
	})
}
