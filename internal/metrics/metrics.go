// Package metrics holds the Prometheus collectors of the sentiment pipeline.
// Collectors are registered on the default registry and served by promhttp.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineOutcomes counts Process results by source type and outcome
	// (ingested, skipped_empty, skipped_duplicate, classify_failed, store_failed).
	PipelineOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brandsentry_pipeline_items_total",
		Help: "Feedback items processed by the sentiment pipeline, by outcome",
	}, []string{"source_type", "outcome"})

	ClassifyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brandsentry_classify_duration_seconds",
		Help:    "Latency of classification provider calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"provider"})

	ClassifyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brandsentry_classify_failures_total",
		Help: "Classification failures by provider and kind",
	}, []string{"provider", "kind"})

	RecomputeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brandsentry_rollup_recompute_total",
		Help: "Daily rollup recomputations by result",
	}, []string{"result"})

	RecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "brandsentry_rollup_recompute_duration_seconds",
		Help:    "Time to recompute and store one daily rollup",
		Buckets: prometheus.DefBuckets,
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brandsentry_notifications_total",
		Help: "Notification gate decisions by event type and result",
	}, []string{"event_type", "result"})

	EmailsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brandsentry_emails_enqueued_total",
		Help: "Outbound alert emails enqueued, by result",
	}, []string{"result"})

	QueueDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brandsentry_queue_dropped_total",
		Help: "Tasks rejected by the local queue because it was full",
	}, []string{"task_type"})

	BackfillItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brandsentry_backfill_items_total",
		Help: "Items visited by backfill runs, by source type",
	}, []string{"source_type"})
)

var gaugesOnce sync.Once

// RegisterGauges exposes live values read at scrape time. Only the first call
// registers; later calls are ignored.
func RegisterGauges(sseClients, queueDepth func() float64, queueAsync bool) {
	gaugesOnce.Do(func() {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "brandsentry_sse_active_clients",
			Help: "Number of active SSE connections",
		}, sseClients)
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "brandsentry_local_queue_depth",
			Help: "Tasks buffered in the in-process queue",
		}, queueDepth)
		async := 0.0
		if queueAsync {
			async = 1
		}
		promauto.NewGauge(prometheus.GaugeOpts{
			Name: "brandsentry_queue_async_enabled",
			Help: "Whether the Redis-backed queue is active (1=yes, 0=no)",
		}).Set(async)
	})
}
