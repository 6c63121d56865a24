package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeEmbedder struct {
	calls     int
	lastTexts []string
	err       error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.lastTexts = texts
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string  { return "fake-model" }
func (f *fakeEmbedder) Dimension() int { return 1 }

func newCacheFixture(t *testing.T) (*miniredis.Miniredis, *fakeEmbedder, *CachedEmbedder) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &fakeEmbedder{}
	return mr, inner, NewCachedEmbedder(inner, rdb, time.Hour)
}

func TestCachedEmbedderMissThenHit(t *testing.T) {
	_, inner, cache := newCacheFixture(t)
	ctx := context.Background()

	first, err := cache.Embed(ctx, []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("first Embed: %v", err)
	}
	if inner.calls != 1 || len(inner.lastTexts) != 2 {
		t.Fatalf("expected one inner call for both texts, got calls=%d texts=%v", inner.calls, inner.lastTexts)
	}

	second, err := cache.Embed(ctx, []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("second Embed: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("cache hit still called inner embedder (%d calls)", inner.calls)
	}
	for i := range first {
		if first[i][0] != second[i][0] {
			t.Fatalf("cached vector differs at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestCachedEmbedderPartialHit(t *testing.T) {
	_, inner, cache := newCacheFixture(t)
	ctx := context.Background()

	if _, err := cache.Embed(ctx, []string{"alpha"}); err != nil {
		t.Fatalf("seed Embed: %v", err)
	}

	vectors, err := cache.Embed(ctx, []string{"alpha", "gamma!", "alpha"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("inner calls = %d, want 2", inner.calls)
	}
	if len(inner.lastTexts) != 1 || inner.lastTexts[0] != "gamma!" {
		t.Fatalf("only the miss should hit the embedder, got %v", inner.lastTexts)
	}
	// len("alpha")=5, len("gamma!")=6; order must match inputs.
	if vectors[0][0] != 5 || vectors[1][0] != 6 || vectors[2][0] != 5 {
		t.Fatalf("vectors out of order: %v", vectors)
	}
}

func TestCachedEmbedderRedisDown(t *testing.T) {
	mr, inner, cache := newCacheFixture(t)
	mr.Close()

	vectors, err := cache.Embed(context.Background(), []string{"alpha"})
	if err != nil {
		t.Fatalf("Embed with cache down: %v", err)
	}
	if inner.calls != 1 || len(vectors) != 1 {
		t.Fatalf("direct path not taken: calls=%d vectors=%v", inner.calls, vectors)
	}
}

func TestCachedEmbedderInnerError(t *testing.T) {
	_, inner, cache := newCacheFixture(t)
	boom := errors.New("quota exceeded")
	inner.err = boom

	if _, err := cache.Embed(context.Background(), []string{"alpha"}); !errors.Is(err, boom) {
		t.Fatalf("expected inner error, got %v", err)
	}
}

func TestCostTable(t *testing.T) {
	u := Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	if got := Cost("claude-3-haiku-20240307", u); got != 0.25+1.25 {
		t.Fatalf("haiku cost = %v", got)
	}
	if got := Cost("gpt-4o-mini", Usage{InputTokens: 2_000_000}); got != 0.30 {
		t.Fatalf("gpt-4o-mini cost = %v", got)
	}
	if got := Cost("unknown-model", u); got != 0 {
		t.Fatalf("unknown model cost = %v", got)
	}
}
