package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insighthub_provider_requests_total",
			Help: "Outbound provider requests by client and outcome",
		},
		[]string{"client", "outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insighthub_cache_lookups_total",
			Help: "Memoization lookups by namespace and result",
		},
		[]string{"namespace", "result"},
	)

	SignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insighthub_signals_total",
			Help: "Classification signals emitted",
		},
		[]string{"algorithm", "signal"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insighthub_pipeline_duration_seconds",
			Help:    "Wall time of model pipelines",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"pipeline"},
	)

	LedgerWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insighthub_ledger_writes_total",
			Help: "Ledger persist operations",
		},
		[]string{"ledger", "outcome"},
	)

	PredictionsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insighthub_predictions_reconciled_total",
			Help: "Prediction records moved out of pending",
		},
		[]string{"status"},
	)
)
