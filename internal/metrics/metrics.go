// Package metrics holds the prometheus collectors shared across components
// and the storage observation hook.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the server registers.
type Metrics struct {
	Registry *prometheus.Registry

	Deliveries  *prometheus.CounterVec
	Broadcasts  prometheus.Counter
	Mutations   *prometheus.CounterVec
	TocRebuilds *prometheus.CounterVec
	Connections prometheus.Gauge

	storageWrite  prometheus.Histogram
	storageRead   prometheus.Histogram
	storageCommit prometheus.Histogram
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphserver_deliveries_total",
			Help: "Message delivery attempts by result.",
		}, []string{"result"}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphserver_broadcasts_total",
			Help: "Channel fan-out operations.",
		}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphserver_mutations_total",
			Help: "Document mutations by result.",
		}, []string{"result"}),
		TocRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphserver_toc_rebuilds_total",
			Help: "TOC index rebuilds by result.",
		}, []string{"result"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphserver_connections",
			Help: "Currently registered client connections.",
		}),
		storageWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "graphserver_storage_write_seconds",
			Help:    "Blob store write latency.",
			Buckets: prometheus.DefBuckets,
		}),
		storageRead: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "graphserver_storage_read_seconds",
			Help:    "Blob store read latency.",
			Buckets: prometheus.DefBuckets,
		}),
		storageCommit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "graphserver_storage_commit_seconds",
			Help:    "Storage batch commit latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.Deliveries, m.Broadcasts, m.Mutations, m.TocRebuilds, m.Connections,
		m.storageWrite, m.storageRead, m.storageCommit,
	)
	return m
}

// ObserveWrite implements the storage metrics hook.
func (m *Metrics) ObserveWrite(elapsed time.Duration, _ int) {
	m.storageWrite.Observe(elapsed.Seconds())
}

// ObserveRead implements the storage metrics hook.
func (m *Metrics) ObserveRead(elapsed time.Duration, _ int) {
	m.storageRead.Observe(elapsed.Seconds())
}

// ObserveBatchCommit implements the storage metrics hook.
func (m *Metrics) ObserveBatchCommit(elapsed time.Duration, _ int, _ int) {
	m.storageCommit.Observe(elapsed.Seconds())
}
