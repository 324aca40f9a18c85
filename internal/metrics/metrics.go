package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for the sync engine
type MetricsRegistry struct {
	// HTTP Metrics
	HTTPRequestsTotal    prometheus.CounterVec
	HTTPRequestDuration  prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.GaugeVec

	// Ingestion Metrics
	IngestEventsTotal prometheus.CounterVec

	// Sync Metrics
	SyncRunsTotal     prometheus.CounterVec
	SyncRunDuration   prometheus.HistogramVec
	RecordsReconciled prometheus.CounterVec

	// Remote API Metrics
	RemoteCallsTotal prometheus.CounterVec
}

// NewMetricsRegistry initializes and returns a new MetricsRegistry with all metrics
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		// HTTP Metrics
		HTTPRequestsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncengine_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "syncengine_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "syncengine_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),

		// Ingestion Metrics
		IngestEventsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncengine_ingest_events_total",
				Help: "Webhook deliveries by table and outcome (committed, duplicate_skipped, filtered_out, failed)",
			},
			[]string{"table", "outcome"},
		),

		// Sync Metrics
		SyncRunsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncengine_sync_runs_total",
				Help: "Reconcile passes by table, mode, and status",
			},
			[]string{"table", "mode", "status"},
		),
		SyncRunDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "syncengine_sync_run_duration_seconds",
				Help:    "Reconcile pass duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"table", "mode"},
		),
		RecordsReconciled: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncengine_records_reconciled_total",
				Help: "Records touched by reconciliation, by table and action (kept_local, kept_remote, added, deleted)",
			},
			[]string{"table", "action"},
		),

		// Remote API Metrics
		RemoteCallsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncengine_remote_calls_total",
				Help: "Remote spreadsheet API calls by operation and result",
			},
			[]string{"operation", "result"},
		),
	}
}
