package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of a DLQ entry.
const (
	dlqOutcomeRequeued    = "requeued"
	dlqOutcomeRetry       = "retry_scheduled"
	dlqOutcomeQuarantined = "quarantined"
)

var (
	publishedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellness",
		Subsystem: "outbox",
		Name:      "events_published_total",
		Help:      "Outbox events handed to Kafka, by topic and result (delivered or dead_lettered).",
	}, []string{"topic", "result"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wellness",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent claiming, publishing and marking one outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellness",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "DLQ entries handled by the manager, by topic, event type and outcome.",
	}, []string{"topic", "event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wellness",
		Subsystem: "dlq",
		Name:      "entries",
		Help:      "Entries currently held in the DLQ, split into waiting and quarantined.",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(publishedCounter, batchDuration, dlqOutcomeCounter, dlqBacklogGauge)
}

func recordPublished(messages []Message, result string) {
	for _, msg := range messages {
		publishedCounter.WithLabelValues(msg.Topic, result).Inc()
	}
}

func recordDLQOutcome(entry dlqEntry, outcome string) {
	dlqOutcomeCounter.WithLabelValues(entry.Topic, entry.EventType, outcome).Inc()
}

func updateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) {
	var waiting, quarantined int
	err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE quarantined_at IS NULL), COUNT(*) FILTER (WHERE quarantined_at IS NOT NULL) FROM outbox_dlq`,
	).Scan(&waiting, &quarantined)
	if err != nil {
		return
	}
	dlqBacklogGauge.WithLabelValues("waiting").Set(float64(waiting))
	dlqBacklogGauge.WithLabelValues("quarantined").Set(float64(quarantined))
}
