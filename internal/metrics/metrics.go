// Package metrics exports Prometheus counters for seeks, preloads and
// remote commands.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	registry       *prometheus.Registry
	seeksTotal     *prometheus.CounterVec
	preloadEvents  *prometheus.CounterVec
	preloadEntries prometheus.Gauge
	remoteCommands *prometheus.CounterVec
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	seeksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quire_seeks_total",
		Help: "Seek operations by operation and result",
	}, []string{"operation", "result"})
	preloadEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quire_preload_events_total",
		Help: "Preload cache events",
	}, []string{"event"})
	preloadEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quire_preload_entries",
		Help: "Sessions currently held by the preload cache",
	})
	remoteCommands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quire_remote_commands_total",
		Help: "Remote commands by command and outcome",
	}, []string{"command", "outcome"})

	registry.MustRegister(
		seeksTotal,
		preloadEvents,
		preloadEntries,
		remoteCommands,
	)

	return &Metrics{
		registry:       registry,
		seeksTotal:     seeksTotal,
		preloadEvents:  preloadEvents,
		preloadEntries: preloadEntries,
		remoteCommands: remoteCommands,
	}
}

// SeekCompleted counts a finished, failed, cancelled or rejected seek.
func (m *Metrics) SeekCompleted(operation, result string) {
	m.seeksTotal.WithLabelValues(operation, result).Inc()
}

// PreloadEvent counts a preload cache event.
func (m *Metrics) PreloadEvent(event string) {
	m.preloadEvents.WithLabelValues(event).Inc()
}

// SetPreloadEntries sets the preload entries gauge.
func (m *Metrics) SetPreloadEntries(n int) {
	m.preloadEntries.Set(float64(n))
}

// RemoteCommand counts a dispatched remote command.
func (m *Metrics) RemoteCommand(command, outcome string) {
	m.remoteCommands.WithLabelValues(command, outcome).Inc()
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
