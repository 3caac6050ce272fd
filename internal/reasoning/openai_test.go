package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIComplete(t *testing.T) {
	var gotBody struct {
		Model       string        `json:"model"`
		Messages    []chatMessage `json:"messages"`
		Temperature float64       `json:"temperature"`
		MaxTokens   int           `json:"max_tokens"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "That sounds heavy."}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", WithOpenAIBaseURL(srv.URL), WithOpenAIModel("gpt-4o"))

	history := []Exchange{
		{Role: RoleUser, Text: "hello"},
		{Role: RoleAssistant, Text: "I'm here with you."},
	}
	reply, err := p.Complete(context.Background(), "be kind", history, "work has been rough")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "That sounds heavy." {
		t.Errorf("reply = %q", reply)
	}

	if gotBody.Model != "gpt-4o" {
		t.Errorf("model = %q", gotBody.Model)
	}
	if gotBody.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", gotBody.Temperature)
	}
	if gotBody.MaxTokens != 200 {
		t.Errorf("max_tokens = %d, want 200", gotBody.MaxTokens)
	}
	if len(gotBody.Messages) != 4 {
		t.Fatalf("messages = %d, want system + 2 history + user", len(gotBody.Messages))
	}
	if gotBody.Messages[0].Role != "system" || gotBody.Messages[0].Content != "be kind" {
		t.Errorf("system message = %+v", gotBody.Messages[0])
	}
	if gotBody.Messages[3].Role != RoleUser || gotBody.Messages[3].Content != "work has been rough" {
		t.Errorf("final message = %+v", gotBody.Messages[3])
	}
}

func TestOpenAICompleteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", WithOpenAIBaseURL(srv.URL))

	_, err := p.Complete(context.Background(), "be kind", nil, "hello")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
	if pe.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", pe.StatusCode)
	}
	if pe.Message != "rate limit exceeded" {
		t.Errorf("Message = %q", pe.Message)
	}
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAI("sk-test", WithOpenAIBaseURL(srv.URL))

	_, err := p.Complete(context.Background(), "be kind", nil, "hello")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProviderError", err)
	}
}
