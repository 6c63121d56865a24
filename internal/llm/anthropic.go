package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
)

// AnthropicOptions carries the connection settings for the Anthropic
// messages client.
type AnthropicOptions struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// AnthropicClient calls the messages endpoint. Unlike chat
// completions it supports real assistant prefill: the completion
// continues the seeded text and stop sequences are honored without
// being emitted.
type AnthropicClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *httpClient
}

var (
	_ Judge     = (*AnthropicClient)(nil)
	_ Generator = (*AnthropicClient)(nil)
)

func NewAnthropicClient(opts AnthropicOptions, model string) (*AnthropicClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("anthropic: model is required")
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &AnthropicClient{
		apiKey:  opts.APIKey,
		baseURL: baseURL,
		model:   model,
		http:    newHTTPClient(opts.Timeout, opts.MaxRetries, opts.Backoff),
	}, nil
}

func (c *AnthropicClient) Model() string { return c.model }

func (c *AnthropicClient) complete(ctx context.Context, system string, messages []chatMessage, maxTokens int, temperature float64, stop []string) (string, Usage, error) {
	reqBody := struct {
		Model         string        `json:"model"`
		MaxTokens     int           `json:"max_tokens"`
		Temperature   float64       `json:"temperature"`
		System        string        `json:"system,omitempty"`
		Messages      []chatMessage `json:"messages"`
		StopSequences []string      `json:"stop_sequences,omitempty"`
	}{c.model, maxTokens, temperature, system, messages, stop}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	err := c.http.doJSON(ctx, http.MethodPost, c.baseURL+"/messages", map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}, reqBody, &resp)
	if err != nil {
		return "", Usage{}, fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", Usage{}, fmt.Errorf("anthropic: no text content in response")
	}
	usage := Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens}
	return text.String(), usage, nil
}

func (c *AnthropicClient) Judge(ctx context.Context, req JudgeRequest) (string, Usage, error) {
	messages := []chatMessage{{Role: "user", Content: req.Prompt}}
	if req.Prefill != "" {
		messages = append(messages, chatMessage{Role: "assistant", Content: req.Prefill})
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 50
	}
	return c.complete(ctx, "", messages, maxTokens, req.Temperature, req.StopSequences)
}

func (c *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (string, Usage, error) {
	messages := []chatMessage{{Role: "user", Content: req.Prompt}}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2500
	}
	return c.complete(ctx, req.System, messages, maxTokens, req.Temperature, nil)
}
