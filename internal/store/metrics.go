package store

import "github.com/prometheus/client_golang/prometheus"

// Gateway-level observability, grounded on the prometheus/client_golang
// usage pattern in the vjache-cie and semspec pack entries: the ingest
// path is instrumented with counters/histograms rather than left opaque.
var (
	verticesWrittenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ckg_vertices_written_total",
		Help: "Total vertices upserted into the graph store.",
	})
	edgesWrittenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ckg_edges_written_total",
		Help: "Total edges upserted into the graph store.",
	})
	pendingEdgesTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ckg_pending_edges_total",
		Help: "Edges deferred this batch pending their endpoint vertex.",
	})
	writeBatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ckg_write_batch_duration_seconds",
		Help:    "WriteBatch call latency.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(verticesWrittenTotal, edgesWrittenTotal, pendingEdgesTotal, writeBatchDuration)
}

// Registerer exposes the package's metrics for an external /metrics
// endpoint; returns the default prometheus registry.
func Registerer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}
