// Package metrics exposes the engine's Prometheus collectors. They
// are registered on the default registry and served by the /metrics
// route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RetrievalLatency covers embedding the query plus the index search.
	RetrievalLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "certrag",
		Subsystem: "retrieval",
		Name:      "latency_seconds",
		Help:      "Time spent embedding a query and searching the index.",
		Buckets:   prometheus.DefBuckets,
	})

	// RerankDegraded counts reranks that fell back to vector order
	// after a judge failure or unparseable response.
	RerankDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "certrag",
		Subsystem: "rerank",
		Name:      "degraded_total",
		Help:      "Reranks that fell back to similarity order.",
	})

	// LLMTokens counts tokens by model and direction (input/output).
	LLMTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "certrag",
		Subsystem: "llm",
		Name:      "tokens_total",
		Help:      "Tokens consumed by model calls.",
	}, []string{"model", "direction"})

	// IndexErrors counts failed calls to the vector index.
	IndexErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "certrag",
		Subsystem: "index",
		Name:      "errors_total",
		Help:      "Vector index call failures.",
	})
)
