package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicJudge(t *testing.T) {
	var gotVersion, gotKey string
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxTokens     int      `json:"max_tokens"`
		Temperature   float64  `json:"temperature"`
		StopSequences []string `json:"stop_sequences"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotVersion = r.Header.Get("anthropic-version")
		gotKey = r.Header.Get("x-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{
			"content":[{"type":"text","text":"1,0"}],
			"stop_reason":"stop_sequence",
			"usage":{"input_tokens":200,"output_tokens":4}
		}`))
	}))
	defer srv.Close()

	client, err := NewAnthropicClient(AnthropicOptions{APIKey: "ak-test", BaseURL: srv.URL}, "claude-3-haiku-20240307")
	if err != nil {
		t.Fatalf("NewAnthropicClient: %v", err)
	}

	text, usage, err := client.Judge(context.Background(), JudgeRequest{
		Prompt:        "rank these",
		Prefill:       "<relevant_indices>",
		StopSequences: []string{"</relevant_indices>"},
	})
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if text != "1,0" {
		t.Fatalf("text = %q", text)
	}
	if usage.InputTokens != 200 || usage.OutputTokens != 4 {
		t.Fatalf("usage = %+v", usage)
	}
	if gotKey != "ak-test" || gotVersion != "2023-06-01" {
		t.Fatalf("headers: key=%q version=%q", gotKey, gotVersion)
	}
	if gotBody.Model != "claude-3-haiku-20240307" {
		t.Fatalf("model = %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[1].Role != "assistant" {
		t.Fatalf("prefill turn missing: %+v", gotBody.Messages)
	}
	if len(gotBody.StopSequences) != 1 || gotBody.StopSequences[0] != "</relevant_indices>" {
		t.Fatalf("stop_sequences = %v", gotBody.StopSequences)
	}
}

func TestAnthropicGenerateMultiBlock(t *testing.T) {
	var gotBody struct {
		System string `json:"system"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{
			"content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}],
			"usage":{"input_tokens":10,"output_tokens":8}
		}`))
	}))
	defer srv.Close()

	client, _ := NewAnthropicClient(AnthropicOptions{APIKey: "ak-test", BaseURL: srv.URL}, "claude-sonnet-4-20250514")
	text, _, err := client.Generate(context.Background(), GenerateRequest{System: "stay factual", Prompt: "q"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "part one part two" {
		t.Fatalf("text blocks not concatenated: %q", text)
	}
	if gotBody.System != "stay factual" {
		t.Fatalf("system = %q", gotBody.System)
	}
}

func TestAnthropicEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[],"usage":{"input_tokens":1,"output_tokens":0}}`))
	}))
	defer srv.Close()

	client, _ := NewAnthropicClient(AnthropicOptions{APIKey: "ak-test", BaseURL: srv.URL}, "claude-3-haiku-20240307")
	if _, _, err := client.Judge(context.Background(), JudgeRequest{Prompt: "q"}); err == nil {
		t.Fatalf("expected error for empty content")
	}
}
