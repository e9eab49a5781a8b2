// SPDX-License-Identifier: MPL-2.0

// Package metrics exposes modkit's operational counters in Prometheus form.
// Every Metrics value owns a private registry so that several engines (and
// parallel tests) never collide on the global one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modkit/modkit/internal/registry"
)

// InstallSucceeded is the kind label recorded for successful installs.
const InstallSucceeded = "ok"

// Metrics holds the modkit collectors.
type Metrics struct {
	registry           *prometheus.Registry
	Installs           *prometheus.CounterVec
	UpdateChecks       *prometheus.CounterVec
	InFlight           prometheus.Gauge
	Conflicts          *prometheus.GaugeVec
	RegistryGeneration prometheus.Gauge
}

// New creates a Metrics instance with every collector registered on a fresh
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{
		registry: reg,
		Installs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modkit_installs_total",
			Help: "Archive installs by result kind (ok or the failure kind)",
		}, []string{"kind"}),
		UpdateChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "modkit_update_checks_total",
			Help: "Update checks by outcome",
		}, []string{"outcome"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "modkit_operations_in_flight",
			Help: "Operations accepted but not yet finished",
		}),
		Conflicts: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "modkit_conflicts",
			Help: "Current resolver conflicts by kind",
		}, []string{"kind"}),
		RegistryGeneration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "modkit_registry_generation",
			Help: "Number of registry mutations since startup",
		}),
	}
	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the collected metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstallFinished records an install result. An empty kind counts as success.
func (m *Metrics) InstallFinished(kind string) {
	if kind == "" {
		kind = InstallSucceeded
	}
	m.Installs.WithLabelValues(kind).Inc()
}

// UpdateChecked records one update check outcome.
func (m *Metrics) UpdateChecked(outcome string) {
	m.UpdateChecks.WithLabelValues(outcome).Inc()
}

// OperationStarted increments the in-flight gauge.
func (m *Metrics) OperationStarted() { m.InFlight.Inc() }

// OperationFinished decrements the in-flight gauge.
func (m *Metrics) OperationFinished() { m.InFlight.Dec() }

// ObserveSnapshot replaces the conflict gauges with the counts in snap.
// Kinds with no conflicts are reported as zero.
func (m *Metrics) ObserveSnapshot(snap registry.Snapshot) {
	counts := map[registry.ConflictKind]int{
		registry.ConflictDuplicate:       0,
		registry.ConflictUnmetDependency: 0,
		registry.ConflictGameVersion:     0,
		registry.ConflictCycle:           0,
	}
	for _, c := range snap.Conflicts {
		counts[c.Kind]++
	}
	for kind, n := range counts {
		m.Conflicts.WithLabelValues(string(kind)).Set(float64(n))
	}
	m.RegistryGeneration.Set(float64(snap.Generation))
}
