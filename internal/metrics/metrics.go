package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cruncher"

var (
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Work messages accepted from the queue, by scope",
		},
		[]string{"scope"},
	)

	MessagesMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_malformed_total",
			Help:      "Deliveries rejected without requeue because they could not be parsed",
		},
	)

	MessagesDisposed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_disposed_total",
			Help:      "Messages settled after a crunch, by disposition (commit, dead_letter, requeue)",
		},
		[]string{"disposition"},
	)

	BatchesFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_flushed_total",
			Help:      "Batches handed to the pipeline, by flush trigger",
		},
		[]string{"trigger"},
	)

	BatchMessages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_messages",
			Help:      "Messages per flushed batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1 to 2048
		},
	)

	CrunchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crunch_duration_seconds",
			Help:      "Time from flush to disposition of one batch",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~163s
		},
		[]string{"disposition"},
	)

	Aggregations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_total",
			Help:      "Bucket aggregations, by scope and result (record, empty, error)",
		},
		[]string{"scope", "result"},
	)

	RecordsCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_committed_total",
			Help:      "Stat rows upserted, by scope",
		},
		[]string{"scope"},
	)

	NotificationsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Stat update notifications that could not be published",
		},
	)

	CubeBuckets = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cube_buckets",
			Help:      "Precomputed filter buckets, by scope",
		},
		[]string{"scope"},
	)

	ConnectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Failed attempts to reach a dependency at startup, by target",
		},
		[]string{"target"},
	)
)
