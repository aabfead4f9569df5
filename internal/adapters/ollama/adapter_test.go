package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-dispatch/internal/types"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestNewRequiresModel(t *testing.T) {
	_, err := New(Config{}, testLogger())
	if err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestNewDefaultsBaseURL(t *testing.T) {
	adapter, err := New(Config{Model: "llama3.2"}, testLogger())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if adapter.config.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", adapter.config.BaseURL, DefaultBaseURL)
	}
}

func TestInvoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "llama3.2" {
			t.Errorf("model = %q, want llama3.2", req.Model)
		}
		if req.Stream {
			t.Error("stream should be disabled")
		}
		if req.Prompt != "What is Python?" {
			t.Errorf("prompt = %q", req.Prompt)
		}

		json.NewEncoder(w).Encode(generateResponse{Response: "Python is a programming language.", Done: true})
	}))
	defer server.Close()

	adapter, err := New(Config{Model: "llama3.2", BaseURL: server.URL}, testLogger())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	backend := types.NewBackend("ollama", types.LocalityLocal, 0, 0)
	got, err := adapter.Invoke(context.Background(), backend, types.Request{PromptText: "What is Python?"})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if got != "Python is a programming language." {
		t.Errorf("Invoke = %q", got)
	}
}

func TestInvokeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	adapter, err := New(Config{Model: "missing", BaseURL: server.URL}, testLogger())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = adapter.Invoke(context.Background(), types.NewBackend("ollama", types.LocalityLocal, 0, 0), types.Request{PromptText: "hi"})
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error %q should mention the status code", err)
	}
}

func TestInvokeHonorsContext(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	adapter, err := New(Config{Model: "llama3.2", BaseURL: server.URL}, testLogger())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err = adapter.Invoke(ctx, types.NewBackend("ollama", types.LocalityLocal, 0, 0), types.Request{PromptText: "hi"})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
