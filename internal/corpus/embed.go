package corpus

import (
	"context"
	"fmt"
	"log"
)

// Embedder produces one vector per input text. The llm package's
// OpenAI client satisfies this.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// DefaultEmbedBatchSize is the number of combined texts sent per
// embedding request.
const DefaultEmbedBatchSize = 100

// EmbedPipeline computes vectors for a loaded corpus in batches.
type EmbedPipeline struct {
	embedder  Embedder
	batchSize int
	logger    *log.Logger
}

func NewEmbedPipeline(embedder Embedder, batchSize int) *EmbedPipeline {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &EmbedPipeline{
		embedder:  embedder,
		batchSize: batchSize,
		logger:    log.New(log.Writer(), "[CORPUS] ", log.LstdFlags),
	}
}

// Run embeds every passage over its combined header+summary+content
// text and returns new passages with Embedding set, preserving input
// order. A failed batch aborts the run; partial output is never
// written.
func (p *EmbedPipeline) Run(ctx context.Context, passages []Passage) ([]Passage, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	texts := make([]string, len(passages))
	for i, passage := range passages {
		texts[i] = passage.CombinedText()
	}

	out := make([]Passage, len(passages))
	copy(out, passages)

	batches := (len(texts) + p.batchSize - 1) / p.batchSize
	p.logger.Printf("embedding %d chunks with %s (%d batches of up to %d)",
		len(texts), p.embedder.Model(), batches, p.batchSize)

	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := p.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d/%d: %w", start/p.batchSize+1, batches, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embed batch %d/%d: got %d vectors for %d texts", start/p.batchSize+1, batches, len(vectors), end-start)
		}
		for i, vec := range vectors {
			out[start+i].Embedding = vec
		}
		p.logger.Printf("batch %d/%d done (%d/%d chunks)", start/p.batchSize+1, batches, end, len(texts))
	}
	return out, nil
}
