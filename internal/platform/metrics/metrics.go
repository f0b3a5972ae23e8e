// Package metrics registers the Prometheus instruments for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RecordsFinalized *prometheus.CounterVec
	FinalizeFailures prometheus.Counter
	LedgerAppends    prometheus.Counter
	RunEventsEmitted prometheus.Counter
	PublishFailures  prometheus.Counter
	FinalizeSeconds  prometheus.Histogram
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		RecordsFinalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gnce_records_finalized_total",
			Help: "Records finalized, partitioned by final verdict",
		}, []string{"verdict"}),
		FinalizeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gnce_finalize_failures_total",
			Help: "Finalize requests rejected or failed",
		}),
		LedgerAppends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gnce_ledger_appends_total",
			Help: "Artifacts appended to the hash-chained ledger",
		}),
		RunEventsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gnce_run_events_emitted_total",
			Help: "Run events written to the NDJSON log",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gnce_publish_failures_total",
			Help: "Broker publish failures (fire and forget path)",
		}),
		FinalizeSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gnce_finalize_duration_seconds",
			Help:    "End-to-end finalize latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
