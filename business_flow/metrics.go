package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Rows processed partitioned by terminal state
	importRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Total number of imported rows by terminal state",
		},
		[]string{"state"},
	)

	// Batch commits against the store
	importBatchCommitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "import_batch_commits_total",
			Help: "Total number of batch transactions committed",
		},
	)

	// Link id create collisions that triggered the one-shot retry
	importLinkCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "import_link_collisions_total",
			Help: "Total number of link id create collisions",
		},
	)

	// Geocoding lookups partitioned by outcome
	importGeocodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_geocode_lookups_total",
			Help: "Total number of geocoding lookups by outcome",
		},
		[]string{"outcome"},
	)

	// Duration of a whole import run in seconds
	importRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "import_run_duration_seconds",
			Help:    "Import run latencies in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)
