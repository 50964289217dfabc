package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/clausewise-backend/pkg/config"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(config.OpenAIConfig{
		BaseURL:     url + "/v1/",
		APIKey:      "sk-test",
		Model:       "gpt-4",
		Temperature: 0.2,
		MaxTokens:   2000,
	}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  {\"overallRisk\":\"low\"}  "}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	out, err := client.Complete(context.Background(), ChatRequest{
		Model:    "gpt-3.5-turbo",
		Messages: []Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "hi"}},
		JSONMode: true,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != `{"overallRisk":"low"}` {
		t.Fatalf("unexpected content %q", out)
	}
	if captured.Model != "gpt-3.5-turbo" {
		t.Fatalf("expected model override, got %q", captured.Model)
	}
	if captured.Temperature != 0.2 || captured.MaxTokens != 2000 {
		t.Fatalf("expected defaults, got temp=%v max=%d", captured.Temperature, captured.MaxTokens)
	}
	if captured.ResponseFormat == nil || captured.ResponseFormat.Type != "json_object" {
		t.Fatalf("expected json response format")
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(captured.Messages))
	}
}

func TestCompleteDecodesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Complete(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "slow down" || !apiErr.Retryable() {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Complete(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected empty completion error, got %v", err)
	}
}

func TestNewClientValidates(t *testing.T) {
	if _, err := NewClient(config.OpenAIConfig{Model: "gpt-4"}, nil); err == nil {
		t.Fatal("expected missing base url error")
	}
	if _, err := NewClient(config.OpenAIConfig{BaseURL: "http://x"}, nil); err == nil {
		t.Fatal("expected missing model error")
	}
}
