// Package retrieval implements the query paths over the vector index:
// plain top-k retrieval, judge-based reranking and scenario expansion
// for exam questions, plus the context assembly they share.
package retrieval

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/studyforge/certrag/internal/corpus"
	"github.com/studyforge/certrag/internal/llm"
	"github.com/studyforge/certrag/internal/metrics"
)

// Searcher is the slice of the vector index the retriever needs.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int, filter corpus.Filter) ([]corpus.SearchResult, error)
}

// Retriever embeds queries and searches the index. For a fixed index
// state and embedding, retrieval is deterministic.
type Retriever struct {
	embedder llm.Embedder
	store    Searcher
	logger   *log.Logger
}

func NewRetriever(embedder llm.Embedder, store Searcher) *Retriever {
	return &Retriever{
		embedder: embedder,
		store:    store,
		logger:   log.New(log.Writer(), "[RETRIEVE] ", log.LstdFlags),
	}
}

// Retrieve returns the k best passages for the query plus the
// assembled context text. Zero matches is a valid outcome: an empty
// slice and empty context, not an error. Embedding failures come back
// as ErrEmbedding; index errors pass through unchanged so callers can
// match the index sentinels.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filter corpus.Filter) ([]corpus.SearchResult, string, error) {
	if k <= 0 {
		return nil, "", fmt.Errorf("k must be positive, got %d", k)
	}

	timer := prometheus.NewTimer(metrics.RetrievalLatency)
	defer timer.ObserveDuration()

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vectors) != 1 {
		return nil, "", fmt.Errorf("%w: got %d vectors for one query", ErrEmbedding, len(vectors))
	}

	results, err := r.store.Search(ctx, vectors[0], k, filter)
	if err != nil {
		metrics.IndexErrors.Inc()
		return nil, "", err
	}
	return results, BuildContext(results), nil
}
