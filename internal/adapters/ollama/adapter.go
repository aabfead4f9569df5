// Package ollama adapts dispatch requests to a local Ollama instance. Ollama
// exposes a plain HTTP API, so the adapter speaks to it directly instead of
// pulling in an SDK.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-dispatch/internal/adapters"
	"github.com/tributary-ai/llm-dispatch/internal/types"
)

const (
	// DefaultBaseURL is the standard Ollama listen address.
	DefaultBaseURL = "http://localhost:11434"

	defaultTimeout = 120 * time.Second
)

// Config holds Ollama-specific settings.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Adapter invokes models served by a local Ollama daemon.
type Adapter struct {
	config Config
	client *http.Client
	logger *logrus.Logger
}

// New creates an Ollama adapter. The model name is required; the base URL
// defaults to the local daemon address.
func New(config Config, logger *logrus.Logger) (*Adapter, error) {
	if config.Model == "" {
		return nil, &types.ConfigurationError{Reason: "ollama adapter requires a model name"}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	return &Adapter{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

func (a *Adapter) Name() string {
	return "ollama"
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (a *Adapter) Invoke(ctx context.Context, backend types.Backend, req types.Request) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  a.config.Model,
		Prompt: req.PromptText,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		a.logger.WithError(err).WithField("backend", backend.Name).Error("Ollama API call failed")
		return "", fmt.Errorf("ollama api call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}
	if genResp.Response == "" {
		return "", fmt.Errorf("ollama returned no text content")
	}

	a.logger.WithFields(logrus.Fields{
		"backend": backend.Name,
		"model":   a.config.Model,
	}).Debug("Ollama completion finished")

	return genResp.Response, nil
}

var _ adapters.Adapter = (*Adapter)(nil)
