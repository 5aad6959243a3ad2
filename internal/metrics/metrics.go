package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event ingestion metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siem_ingest_events_total",
			Help: "Total number of events received, by outcome",
		},
		[]string{"outcome"},
	)

	EventBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siem_ingest_event_bytes_total",
			Help: "Total bytes of event data received",
		},
	)

	NormalizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siem_ingest_normalization_duration_seconds",
			Help:    "Duration of event normalization in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Buffer metrics
	BufferDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "siem_buffer_depth",
			Help: "Events currently staged in the ingestion buffer",
		},
	)

	BufferRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siem_buffer_rejections_total",
			Help: "Offers rejected because the buffer was at capacity",
		},
	)

	BatchesClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siem_buffer_batches_closed_total",
			Help: "Batches closed and handed to the store writer",
		},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siem_buffer_batch_size",
			Help:    "Events per closed batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// Writer metrics
	CommitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siem_writer_commit_duration_seconds",
			Help:    "Duration of successful batch commits in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CommitRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siem_writer_commit_retries_total",
			Help: "Transient commit failures that were retried",
		},
	)

	CommitFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siem_writer_commit_failures_total",
			Help: "Batches abandoned after exhausting commit retries",
		},
	)

	EventsCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siem_writer_events_committed_total",
			Help: "Events durably committed to the store",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siem_ingest_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"client"},
	)
)
