package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-dispatch/internal/types"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{Model: "claude-3-5-sonnet-20241022"}, testLogger())

	var confErr *types.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
	if !strings.Contains(confErr.Error(), "API key") {
		t.Errorf("Unexpected error message: %v", confErr)
	}
}

func TestNewRequiresModel(t *testing.T) {
	_, err := New(Config{APIKey: "test-key"}, testLogger())

	var confErr *types.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
	if !strings.Contains(confErr.Error(), "model") {
		t.Errorf("Unexpected error message: %v", confErr)
	}
}

func TestInvoke(t *testing.T) {
	var gotPath string
	var gotAPIKey string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("x-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_test",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "Hello from Claude"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	adapter, err := New(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "claude-3-5-sonnet-20241022",
	}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	backend := types.NewBackend("claude", types.LocalityRemote, 0.005, 0.02)
	content, err := adapter.Invoke(context.Background(), backend, types.Request{PromptText: "hi"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if content != "Hello from Claude" {
		t.Errorf("Unexpected content: %q", content)
	}
	if gotPath != "/v1/messages" {
		t.Errorf("Expected /v1/messages, got %s", gotPath)
	}
	if gotAPIKey != "test-key" {
		t.Errorf("Expected x-api-key header, got %q", gotAPIKey)
	}
	if gotBody["model"] != "claude-3-5-sonnet-20241022" {
		t.Errorf("Unexpected model in request: %v", gotBody["model"])
	}
	if gotBody["max_tokens"] != float64(defaultMaxTokens) {
		t.Errorf("Expected default max_tokens %d, got %v", defaultMaxTokens, gotBody["max_tokens"])
	}
}

func TestInvokeConcatenatesTextBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_test",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [
				{"type": "text", "text": "part one"},
				{"type": "text", "text": " part two"}
			],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 3, "output_tokens": 6}
		}`))
	}))
	defer srv.Close()

	adapter, err := New(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "claude-3-5-sonnet-20241022",
	}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	backend := types.NewBackend("claude", types.LocalityRemote, 0.005, 0.02)
	content, err := adapter.Invoke(context.Background(), backend, types.Request{PromptText: "hi"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if content != "part one part two" {
		t.Errorf("Expected concatenated blocks, got %q", content)
	}
}

// TestInvokeLive exercises the real Anthropic API. It only runs when
// ANTHROPIC_API_KEY is set, so CI without credentials skips it.
func TestInvokeLive(t *testing.T) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		t.Skip("ANTHROPIC_API_KEY not set")
	}

	adapter, err := New(Config{
		APIKey: apiKey,
		Model:  "claude-3-5-haiku-20241022",
	}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backend := types.NewBackend("claude", types.LocalityRemote, 0.005, 0.02)
	content, err := adapter.Invoke(ctx, backend, types.Request{
		PromptText: "Reply with the single word: pong",
	})
	if err != nil {
		t.Fatalf("Live invoke failed: %v", err)
	}
	if content == "" {
		t.Error("Expected non-empty completion")
	}
	t.Logf("Live response: %s", content)
}
