package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ChatDigest/internal/infrastructure/resilience"
)

func TestOpenAIGeneratorGenerate(t *testing.T) {
	t.Parallel()

	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"요약 결과"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	gen, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "key", BaseURL: server.URL + "/v1", SystemPrompt: "digest writer", HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	text, err := gen.Generate(context.Background(), "prompt body")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "요약 결과" {
		t.Fatalf("unexpected text %q", text)
	}
	if got.Model != DefaultOpenAIModel {
		t.Fatalf("unexpected model %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "prompt body" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestOpenAIGeneratorClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	gen, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "key", BaseURL: server.URL, HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	_, err = gen.Generate(context.Background(), "prompt")
	if !resilience.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestNewOpenAIGeneratorRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewOpenAIGenerator(OpenAIConfig{}); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
