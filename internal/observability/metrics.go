// Package observability holds request-path Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	aggregatePersistGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wellness",
		Subsystem: "persistence",
		Name:      "last_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent aggregate persisted to Postgres.",
	}, []string{"aggregate"})
	recognitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellness",
		Subsystem: "nutrition",
		Name:      "recognitions_total",
		Help:      "Meal photo recognitions partitioned by result source.",
	}, []string{"source"})
	nutrientCacheCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellness",
		Subsystem: "nutrition",
		Name:      "nutrient_cache_lookups_total",
		Help:      "Nutrient cache lookups partitioned by outcome.",
	}, []string{"outcome"})
	vendorDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wellness",
		Subsystem: "ai",
		Name:      "vendor_request_duration_seconds",
		Help:      "Latency of vendor API calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"vendor", "operation", "outcome"})
	rateLimitedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wellness",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-user rate limiter.",
	}, []string{"route"})
	bookingSweepCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wellness",
		Subsystem: "bookings",
		Name:      "completed_by_sweep_total",
		Help:      "Bookings marked completed by the scheduled sweep.",
	})
)

func init() {
	prometheus.MustRegister(aggregatePersistGauge, recognitionCounter, nutrientCacheCounter, vendorDuration, rateLimitedCounter, bookingSweepCounter)
}

// RecordPersisted updates the persistence watermark of an aggregate type.
func RecordPersisted(aggregate string, ts time.Time) {
	if ts.IsZero() {
		return
	}
	aggregatePersistGauge.WithLabelValues(aggregate).Set(float64(ts.Unix()))
}

// RecordRecognition counts a recognition by source (ai or fallback).
func RecordRecognition(source string) {
	recognitionCounter.WithLabelValues(source).Inc()
}

// RecordNutrientCache counts a cache hit or miss.
func RecordNutrientCache(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	nutrientCacheCounter.WithLabelValues(outcome).Inc()
}

// ObserveVendorCall records the latency of a vendor call started at start.
func ObserveVendorCall(vendor, operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	vendorDuration.WithLabelValues(vendor, operation, outcome).Observe(time.Since(start).Seconds())
}

// RecordRateLimited counts a throttled request.
func RecordRateLimited(route string) {
	rateLimitedCounter.WithLabelValues(route).Inc()
}

// RecordBookingsCompleted counts bookings closed by the sweep.
func RecordBookingsCompleted(n int) {
	if n > 0 {
		bookingSweepCounter.Add(float64(n))
	}
}
