package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultEmbeddingModel and its dimension match the vectors the
	// corpus was indexed with.
	DefaultEmbeddingModel     = "text-embedding-3-small"
	DefaultEmbeddingDimension = 1536
)

// OpenAIOptions carries the connection settings shared by the OpenAI
// embedder and chat clients.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

func (o OpenAIOptions) baseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	return defaultOpenAIBaseURL
}

// OpenAIEmbedder calls the embeddings endpoint.
type OpenAIEmbedder struct {
	apiKey  string
	baseURL string
	model   string
	dim     int
	http    *httpClient
}

var _ Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(opts OpenAIOptions, model string, dim int) (*OpenAIEmbedder, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai embedder: api key is required")
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if dim <= 0 {
		dim = DefaultEmbeddingDimension
	}
	return &OpenAIEmbedder{
		apiKey:  opts.APIKey,
		baseURL: opts.baseURL(),
		model:   model,
		dim:     dim,
		http:    newHTTPClient(opts.Timeout, opts.MaxRetries, opts.Backoff),
	}, nil
}

func (e *OpenAIEmbedder) Model() string  { return e.model }
func (e *OpenAIEmbedder) Dimension() int { return e.dim }

// Embed returns one vector per input text, in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{e.model, texts}

	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	err := e.http.doJSON(ctx, http.MethodPost, e.baseURL+"/embeddings", e.headers(), reqBody, &resp)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	// The index field is authoritative, not response order.
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.apiKey}
}

// OpenAIChat calls the chat completions endpoint. It serves both the
// judge and generator roles; chat completions cannot seed an assistant
// prefill, so judge prefills are appended as an assistant turn and
// callers must tolerate the marker reappearing in the output.
type OpenAIChat struct {
	apiKey  string
	baseURL string
	model   string
	http    *httpClient
}

var (
	_ Judge     = (*OpenAIChat)(nil)
	_ Generator = (*OpenAIChat)(nil)
)

func NewOpenAIChat(opts OpenAIOptions, model string) (*OpenAIChat, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai chat: api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("openai chat: model is required")
	}
	return &OpenAIChat{
		apiKey:  opts.APIKey,
		baseURL: opts.baseURL(),
		model:   model,
		http:    newHTTPClient(opts.Timeout, opts.MaxRetries, opts.Backoff),
	}, nil
}

func (c *OpenAIChat) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *OpenAIChat) complete(ctx context.Context, messages []chatMessage, maxTokens int, temperature float64, stop []string) (string, Usage, error) {
	reqBody := struct {
		Model       string        `json:"model"`
		Messages    []chatMessage `json:"messages"`
		MaxTokens   int           `json:"max_tokens"`
		Temperature float64       `json:"temperature"`
		Stop        []string      `json:"stop,omitempty"`
	}{c.model, messages, maxTokens, temperature, stop}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	err := c.http.doJSON(ctx, http.MethodPost, c.baseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}, reqBody, &resp)
	if err != nil {
		return "", Usage{}, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("openai chat: no choices in response")
	}
	usage := Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	return resp.Choices[0].Message.Content, usage, nil
}

func (c *OpenAIChat) Judge(ctx context.Context, req JudgeRequest) (string, Usage, error) {
	messages := []chatMessage{{Role: "user", Content: req.Prompt}}
	if req.Prefill != "" {
		messages = append(messages, chatMessage{Role: "assistant", Content: req.Prefill})
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 50
	}
	return c.complete(ctx, messages, maxTokens, req.Temperature, req.StopSequences)
}

func (c *OpenAIChat) Generate(ctx context.Context, req GenerateRequest) (string, Usage, error) {
	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2500
	}
	return c.complete(ctx, messages, maxTokens, req.Temperature, nil)
}
