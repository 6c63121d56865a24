package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedEmbedder wraps an Embedder with a Redis read-through cache
// keyed by model and text hash. Cache failures never fail a request;
// the call falls through to the wrapped embedder.
type CachedEmbedder struct {
	inner  Embedder
	rdb    *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

var _ Embedder = (*CachedEmbedder)(nil)

func NewCachedEmbedder(inner Embedder, rdb *redis.Client, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		inner:  inner,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[EMBED] ", log.LstdFlags),
	}
}

func (c *CachedEmbedder) Model() string  { return c.inner.Model() }
func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.inner.Model() + ":" + hex.EncodeToString(sum[:])
}

// Embed serves cached vectors where possible and embeds only the
// misses through the wrapped embedder, preserving input order.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.cacheKey(t)
	}

	cached, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Printf("cache read failed, embedding directly: %v", err)
		return c.inner.Embed(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	var missIdx []int
	for i, raw := range cached {
		s, ok := raw.(string)
		if !ok {
			missIdx = append(missIdx, i)
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(s), &vec); err != nil || len(vec) == 0 {
			missIdx = append(missIdx, i)
			continue
		}
		vectors[i] = vec
	}

	if len(missIdx) == 0 {
		return vectors, nil
	}

	missTexts := make([]string, len(missIdx))
	for i, idx := range missIdx {
		missTexts[i] = texts[idx]
	}
	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}

	pipe := c.rdb.Pipeline()
	for i, idx := range missIdx {
		vectors[idx] = fresh[i]
		if raw, err := json.Marshal(fresh[i]); err == nil {
			pipe.Set(ctx, keys[idx], raw, c.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Printf("cache write failed: %v", err)
	}
	return vectors, nil
}
