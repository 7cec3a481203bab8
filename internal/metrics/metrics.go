// Package metrics exposes the dispatcher's Prometheus collectors. The HTTP
// layer serves them at /metrics via promhttp.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SignalsEnqueued counts signals accepted into the queue.
	SignalsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_signals_enqueued_total",
			Help: "Signals accepted into the queue.",
		},
		[]string{"account"},
	)

	// SignalsReplaced counts waiting signals overwritten by a newer one
	// for the same account/instrument key.
	SignalsReplaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_signals_replaced_total",
			Help: "Waiting signals replaced before processing started.",
		},
		[]string{"account"},
	)

	// SignalsProcessed counts finished signals by outcome (ok or error).
	SignalsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_signals_processed_total",
			Help: "Signals fully processed, by outcome.",
		},
		[]string{"account", "outcome"},
	)

	// ProcessingDuration observes broker reconciliation time per signal.
	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatcher_processing_duration_seconds",
			Help:    "Time spent processing one signal against the broker.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"account"},
	)

	// QueueProcessing tracks keys currently being processed.
	QueueProcessing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatcher_queue_processing",
			Help: "Account/instrument keys with a signal in flight.",
		},
	)

	// QueueWaiting tracks keys with a signal parked behind an in-flight one.
	QueueWaiting = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatcher_queue_waiting",
			Help: "Account/instrument keys with a waiting signal.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SignalsEnqueued,
		SignalsReplaced,
		SignalsProcessed,
		ProcessingDuration,
		QueueProcessing,
		QueueWaiting,
	)
}
