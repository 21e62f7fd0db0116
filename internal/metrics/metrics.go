// Package metrics exposes the daemon's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wcp"

type Metrics struct {
	Registry *prometheus.Registry

	commands    *prometheus.CounterVec
	errors      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	events      *prometheus.CounterVec
	connections *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry, alongside the go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands dispatched, by command name.",
		}, []string{"command"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Error messages sent, by error kind.",
		}, []string{"kind"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent handling a command.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events pushed to the attached client.",
		}, []string{"event"}),
		connections: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open client connections, by transport.",
		}, []string{"transport"}),
	}
}

// All recorders are nil-safe so callers can run without metrics.

func (m *Metrics) ObserveCommand(command string, took time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command).Inc()
	m.duration.WithLabelValues(command).Observe(took.Seconds())
}

func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncEvent(event string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event).Inc()
}

// ConnOpened bumps the gauge and returns the matching decrement.
func (m *Metrics) ConnOpened(transport string) func() {
	if m == nil {
		return func() {}
	}
	g := m.connections.WithLabelValues(transport)
	g.Inc()
	return g.Dec
}
