// Package metrics holds the Prometheus instruments for the library server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics groups all counters and gauges exposed on /metrics.
type Metrics struct {
	// HTTP surface
	RequestsTotal *prometheus.CounterVec // tracklib_http_requests_total{method,status}

	// Library operations, labeled by operation and outcome
	// (ok, unauthorized, not_found, invalid_input, storage_error).
	OpsTotal *prometheus.CounterVec // tracklib_library_operations_total{op,outcome}

	// Records currently in the document store.
	Records prometheus.Gauge

	// Document reads that soft-failed to an empty collection.
	DocumentCorruptions prometheus.Counter

	// Orphaned blobs removed by the sweeper.
	SweepRemovedTotal prometheus.Counter
}

// Init registers the metrics once and returns the shared instance.
// Pass nil to use the default Prometheus registry.
func Init(registry prometheus.Registerer) *Metrics {
	once.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		instance = &Metrics{
			RequestsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "tracklib_http_requests_total",
				Help: "HTTP requests served, by method and status code",
			}, []string{"method", "status"}),

			OpsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "tracklib_library_operations_total",
				Help: "Library operations, by operation and outcome",
			}, []string{"op", "outcome"}),

			Records: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
				Name: "tracklib_library_records",
				Help: "Number of records in the document store",
			}),

			DocumentCorruptions: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "tracklib_document_corruptions_total",
				Help: "Times the library document was unreadable and degraded to empty",
			}),

			SweepRemovedTotal: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "tracklib_sweep_removed_blobs_total",
				Help: "Orphaned blob files removed by the sweeper",
			}),
		}
	})

	return instance
}
