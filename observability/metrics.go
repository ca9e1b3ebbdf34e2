// Package observability provides Prometheus metrics instrumentation for
// the ingestion runtime and an HTTP handler to expose them.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readingsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readings_ingested_total",
			Help: "Total number of readings accepted into an aggregator buffer",
		},
		[]string{"tenant", "well", "tag"},
	)

	activeConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of currently active SCADA connections per tenant",
		},
		[]string{"tenant"},
	)

	connectionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_errors_total",
			Help: "Total number of adapter errors by connection and error kind",
		},
		[]string{"tenant", "connection", "type"},
	)

	dbWriteDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_write_duration_seconds",
			Help:    "Duration of a timestore batch write",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"tenant"},
	)

	batchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "batch_size",
			Help:    "Number of readings flushed in a single aggregator batch",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
		},
		[]string{"tenant"},
	)

	bufferSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "buffer_size",
			Help: "Current number of readings buffered in a tenant aggregator",
		},
		[]string{"tenant"},
	)
)

// Metrics implements the metrics seams used by the aggregator, timestore,
// and router packages, all backed by the package-level Prometheus
// collectors above.
type Metrics struct{}

// New returns a Metrics instance. The underlying Prometheus collectors are
// package-level and registered once via promauto, so New never fails and
// every instance shares the same registry.
func New() *Metrics { return &Metrics{} }

// ObserveBatchSize implements aggregator.MetricsSink.
func (Metrics) ObserveBatchSize(tenantID string, size int) {
	batchSize.WithLabelValues(tenantID).Observe(float64(size))
}

// SetBufferSize implements aggregator.MetricsSink.
func (Metrics) SetBufferSize(tenantID string, size int) {
	bufferSize.WithLabelValues(tenantID).Set(float64(size))
}

// ObserveWriteLatency implements timestore.MetricsSink.
func (Metrics) ObserveWriteLatency(tenantID string, d time.Duration) {
	dbWriteDurationSeconds.WithLabelValues(tenantID).Observe(d.Seconds())
}

// IncReadingsIngested implements router.Metrics.
func (Metrics) IncReadingsIngested(tenantID, wellID, tagName string) {
	readingsIngestedTotal.WithLabelValues(tenantID, wellID, tagName).Inc()
}

// SetActiveConnections implements router.Metrics.
func (Metrics) SetActiveConnections(tenantID string, count int) {
	activeConnections.WithLabelValues(tenantID).Set(float64(count))
}

// IncConnectionErrors implements router.Metrics.
func (Metrics) IncConnectionErrors(tenantID, connectionID, errKind string) {
	connectionErrorsTotal.WithLabelValues(tenantID, connectionID, errKind).Inc()
}
