package cmd

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studyforge/certrag/config"
	"github.com/studyforge/certrag/internal/answer"
	"github.com/studyforge/certrag/internal/index"
	"github.com/studyforge/certrag/internal/llm"
	"github.com/studyforge/certrag/internal/pipeline"
	"github.com/studyforge/certrag/internal/retrieval"
	"github.com/studyforge/certrag/internal/usage"
)

func buildStore(cfg *config.Config) (*index.Store, error) {
	return index.New(index.Options{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Qdrant.Collection,
		Dimension:  cfg.Embedding.Dimension,
	})
}

// buildEmbedder returns the OpenAI embedder, wrapped in the redis
// cache when one is configured.
func buildEmbedder(cfg *config.Config) (llm.Embedder, error) {
	embedder, err := llm.NewOpenAIEmbedder(llm.OpenAIOptions{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Timeout:    timeoutOr(cfg.Embedding.Timeout, cfg.General.Timeout),
		MaxRetries: cfg.Embedding.MaxRetries,
	}, cfg.Embedding.Model, cfg.Embedding.Dimension)
	if err != nil {
		return nil, err
	}
	if !cfg.Redis.Enabled {
		return embedder, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return llm.NewCachedEmbedder(embedder, rdb, cfg.Redis.TTL), nil
}

func buildJudge(cfg *config.Config) (llm.Judge, error) {
	switch cfg.Judge.Provider {
	case "openai":
		return llm.NewOpenAIChat(llm.OpenAIOptions{
			APIKey:     cfg.Judge.APIKey,
			BaseURL:    cfg.Judge.BaseURL,
			Timeout:    timeoutOr(cfg.Judge.Timeout, cfg.General.Timeout),
			MaxRetries: cfg.Judge.MaxRetries,
		}, cfg.Judge.Model)
	default:
		return llm.NewAnthropicClient(llm.AnthropicOptions{
			APIKey:     cfg.Judge.APIKey,
			BaseURL:    cfg.Judge.BaseURL,
			Timeout:    timeoutOr(cfg.Judge.Timeout, cfg.General.Timeout),
			MaxRetries: cfg.Judge.MaxRetries,
		}, cfg.Judge.Model)
	}
}

func buildGenerator(cfg *config.Config) (llm.Generator, error) {
	switch cfg.Generator.Provider {
	case "openai":
		return llm.NewOpenAIChat(llm.OpenAIOptions{
			APIKey:     cfg.Generator.APIKey,
			BaseURL:    cfg.Generator.BaseURL,
			Timeout:    timeoutOr(cfg.Generator.Timeout, cfg.General.Timeout),
			MaxRetries: cfg.Generator.MaxRetries,
		}, cfg.Generator.Model)
	default:
		return llm.NewAnthropicClient(llm.AnthropicOptions{
			APIKey:     cfg.Generator.APIKey,
			BaseURL:    cfg.Generator.BaseURL,
			Timeout:    timeoutOr(cfg.Generator.Timeout, cfg.General.Timeout),
			MaxRetries: cfg.Generator.MaxRetries,
		}, cfg.Generator.Model)
	}
}

// buildPipeline wires the full answering pipeline from config.
// Clients whose API keys are missing fail here, before any request
// is taken.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	store, err := buildStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	judge, err := buildJudge(cfg)
	if err != nil {
		return nil, fmt.Errorf("judge: %w", err)
	}
	generator, err := buildGenerator(cfg)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}

	tracker := usage.NewTracker()
	return pipeline.New(pipeline.Components{
		Retriever: retrieval.NewRetriever(embedder, store),
		Reranker:  retrieval.NewReranker(judge, tracker),
		Engine:    answer.NewEngine(generator, tracker),
		Index:     store,
		Embedder:  embedder,
		Tracker:   tracker,
		Chapters:  cfg.Retrieval.Chapters,
	}), nil
}

func timeoutOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
