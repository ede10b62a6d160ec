package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Métricas de sessão
	ActiveVoiceSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "drivethru_active_voice_sessions",
		Help: "Number of open voice sessions",
	})

	TranscriptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivethru_transcriptions_total",
		Help: "Transcriptions produced, by detected language",
	}, []string{"language"})

	IntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivethru_intents_total",
		Help: "Classified intents, by intent and source",
	}, []string{"intent", "source"})

	InterruptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "drivethru_interruptions_total",
		Help: "Barge-in events detected during assistant replies",
	})

	LanguageDetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivethru_language_detections_total",
		Help: "Language detections, by language and method",
	}, []string{"language", "method"})

	GroundingMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivethru_grounding_matches_total",
		Help: "Keyword matches returned by the grounder",
	}, []string{"match_type"})

	// Latência
	NLULatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "drivethru_nlu_latency_seconds",
		Help:    "End-to-end NLU processing latency",
		Buckets: []float64{.005, .01, .025, .05, .1, .2, .5, 1, 2.5},
	})

	InterruptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "drivethru_interruption_latency_seconds",
		Help:    "Time spent classifying one audio chunk for barge-in",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .2},
	})

	LanguageDetectionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "drivethru_language_detection_latency_seconds",
		Help:    "Language detection latency",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	})

	LatencyBreachesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivethru_latency_breaches_total",
		Help: "Operations that exceeded their latency target",
	}, []string{"component"})

	// Backends
	BackendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "drivethru_backend_request_duration_seconds",
		Help:    "Inference backend call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	BackendErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivethru_backend_errors_total",
		Help: "Failed inference backend calls",
	}, []string{"backend"})

	CatalogCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivethru_catalog_cache_total",
		Help: "Keyword catalog cache lookups, by result",
	}, []string{"result"})

	// Events
	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "drivethru_events_consumed_total",
		Help: "Voice events read back from the event bus, by type",
	}, []string{"type"})
)
