// Package metrics exposes the peer's capacity/occupation gauges and
// per-protocol outcome counters, grounded on the prometheus wiring in
// _examples/other_examples/manifests/man0j-012-distributed_object_store
// and Klingon-tech-klingnet (both require github.com/prometheus/client_golang).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric a ChordVault peer publishes.
type Registry struct {
	reg *prometheus.Registry

	Capacity   prometheus.Gauge
	Occupation prometheus.Gauge

	BackupOutcomes  *prometheus.CounterVec
	RestoreOutcomes *prometheus.CounterVec
	DeleteCount     prometheus.Counter
	ReclaimEvicted  prometheus.Counter
}

// New builds a fresh, unregistered-with-default-registry metric set so
// multiple peers in one test process don't collide on global state.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		Capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chordvault_capacity_bytes",
			Help: "Configured storage capacity in bytes.",
		}),
		Occupation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chordvault_occupation_bytes",
			Help: "Bytes currently occupied by stored files.",
		}),
		BackupOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chordvault_backup_outcomes_total",
			Help: "BACKUP per-target outcomes by result.",
		}, []string{"result"}),
		RestoreOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chordvault_restore_outcomes_total",
			Help: "RESTORE attempts by result.",
		}, []string{"result"}),
		DeleteCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chordvault_delete_total",
			Help: "DELETE requests dispatched.",
		}),
		ReclaimEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chordvault_reclaim_evicted_total",
			Help: "Files evicted by RECLAIM.",
		}),
	}

	reg.MustRegister(r.Capacity, r.Occupation, r.BackupOutcomes, r.RestoreOutcomes, r.DeleteCount, r.ReclaimEvicted)
	return r
}

// Handler returns an http.Handler serving this registry's metrics in the
// Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
