// Package metrics exposes Prometheus collectors for the refresh loop and the
// state transitions of the agent tree.
//
// All methods are safe on a nil *Metrics, so components can run with metrics
// disabled without branching.
package metrics

import (
	"net/http"
	"time"

	"AgentTree/internal/agent/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "agenttree"
	subsystem = "runtime"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultPanic   = "panic"
)

type Metrics struct {
	registry *prometheus.Registry

	// RefreshesTotal counts completed refreshes. Labels: result.
	RefreshesTotal *prometheus.CounterVec

	RefreshDuration prometheus.Histogram

	RefreshesInFlight prometheus.Gauge

	// TransitionsTotal counts level changes by the level entered. Labels: level.
	TransitionsTotal *prometheus.CounterVec

	TicksTotal prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RefreshesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "refreshes_total",
				Help:      "Total number of agent refreshes by result",
			},
			[]string{"result"},
		),
		RefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "refresh_duration_seconds",
				Help:      "Duration of agent refreshes in seconds",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		RefreshesInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "refreshes_in_flight",
				Help:      "Number of refreshes currently running",
			},
		),
		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "transitions_total",
				Help:      "Total number of agent level changes by the level entered",
			},
			[]string{"level"},
		),
		TicksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ticks_total",
				Help:      "Total number of scheduler scans",
			},
		),
	}
}

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
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RefreshStarted() {
	if m == nil {
		return
	}
	m.RefreshesInFlight.Inc()
}

func (m *Metrics) RefreshFinished(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RefreshesInFlight.Dec()
	m.RefreshesTotal.WithLabelValues(result).Inc()
	m.RefreshDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.TicksTotal.Inc()
}

// OnTransition implements domain.Listener.
func (m *Metrics) OnTransition(tr domain.Transition) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(tr.To.Level().String()).Inc()
}
