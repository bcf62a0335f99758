package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

// Prometheus metrics
var (
	ingestDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachrag_ingest_documents_total",
			Help: "Documents processed by ingest, by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)
	ingestChunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coachrag_ingest_chunks_total",
			Help: "Chunks written to the vector store",
		},
	)
	askTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coachrag_ask_total",
			Help: "Questions answered, by outcome",
		},
		[]string{"outcome"},
	)
	askSources = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coachrag_ask_sources",
			Help:    "Chunks used as context per answer",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coachrag_stage_duration_seconds",
			Help:    "Latency of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~41s
		},
		[]string{"stage"},
	)
)

var tracer = otel.Tracer("github.com/smallnest/coachrag/rag/engine")

func init() {
	prometheus.MustRegister(ingestDocuments, ingestChunks, askTotal, askSources, stageDuration)
}

