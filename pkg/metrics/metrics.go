package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wanderai_messages_processed_total",
			Help: "Total number of user messages processed, by routing path and reply type",
		},
		[]string{"path", "type"},
	)

	RoutingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wanderai_routing_decisions_total",
			Help: "Total number of routing decisions, by intent, path and classifier stage",
		},
		[]string{"intent", "path", "stage"},
	)

	ValidationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wanderai_validation_outcomes_total",
			Help: "Total number of validated responses, by outcome",
		},
		[]string{"outcome"},
	)

	UnsupportedClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wanderai_unsupported_claims_total",
			Help: "Total number of unsupported claims flagged, by detector",
		},
		[]string{"detector"},
	)

	GenerationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wanderai_generation_calls_total",
			Help: "Total number of language model calls, by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wanderai_generation_duration_seconds",
			Help:    "Duration of language model calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"provider"},
	)

	KnowledgeBaseRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wanderai_kb_refreshes_total",
			Help: "Total number of knowledge base refreshes",
		},
	)

	KnowledgeBaseDocuments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wanderai_kb_documents",
			Help: "Number of documents currently indexed",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wanderai_sessions_active",
			Help: "Number of chat sessions held in memory",
		},
	)
)
