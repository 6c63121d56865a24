// Package llm provides the OpenAI and Anthropic clients behind the
// engine's three model roles: embedding queries and passages,
// judging candidate relevance, and generating answers.
package llm

import "context"

// Usage counts the tokens consumed by a single model call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimension() int
}

// JudgeRequest is a short single-turn selection prompt. Prefill seeds
// the assistant turn so the model continues mid-structure; generation
// stops before emitting any stop sequence.
type JudgeRequest struct {
	Prompt        string
	Prefill       string
	StopSequences []string
	MaxTokens     int
	Temperature   float64
}

// Judge runs selection prompts and returns the raw completion text.
type Judge interface {
	Judge(ctx context.Context, req JudgeRequest) (string, Usage, error)
	Model() string
}

// GenerateRequest is a free-form completion request.
type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Generator produces long-form answer text.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, Usage, error)
	Model() string
}
