package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tariffmatch_match_duration_seconds",
			Help:    "Match processing duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"mode"},
	)

	MatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariffmatch_match_total",
			Help: "Total number of match requests processed",
		},
		[]string{"mode", "status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariffmatch_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariffmatch_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tariffmatch_batch_size",
			Help:    "Number of queries per batch request",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	BatchSlotFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tariffmatch_batch_slot_failures_total",
			Help: "Total failed slots across batch requests",
		},
	)

	ClassifierRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tariffmatch_classifier_retries_total",
			Help: "Total classifier call retries",
		},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tariffmatch_confidence_score",
			Help:    "Primary match confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	CacheInvalidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tariffmatch_cache_invalidations_total",
			Help: "Total cache entries removed by pattern invalidation",
		},
	)
)

func Init() {
	prometheus.MustRegister(MatchDuration)
	prometheus.MustRegister(MatchTotal)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(BatchSize)
	prometheus.MustRegister(BatchSlotFailures)
	prometheus.MustRegister(ClassifierRetries)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(CacheInvalidations)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
